package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/assetdesk/internal/model"
)

const operatorColumns = `id, username, password_hash, role, created_at, deleted_at`

func scanOperator(s scanner) (*model.Operator, error) {
	o := &model.Operator{}
	if err := s.Scan(&o.ID, &o.Username, &o.PasswordHash, &o.Role, &o.CreatedAt, &o.DeletedAt); err != nil {
		return nil, err
	}
	return o, nil
}

// CreateOperator creates a new console operator. A username held by an
// active operator is a conflict.
func CreateOperator(ctx context.Context, db *sql.DB, username, passwordHash, role string) (*model.Operator, error) {
	if !model.ValidRole(role) {
		return nil, model.Invalid("role", "invalid role %q", role)
	}
	result, err := db.ExecContext(ctx,
		`INSERT INTO operators (username, password_hash, role) VALUES (?, ?, ?)`,
		username, passwordHash, role,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("username %q is taken: %w", username, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("creating operator: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting operator id: %w", err)
	}

	return GetOperator(ctx, db, id)
}

// GetOperator returns an operator by ID, including deleted ones.
func GetOperator(ctx context.Context, db *sql.DB, id int64) (*model.Operator, error) {
	o, err := scanOperator(db.QueryRowContext(ctx,
		`SELECT `+operatorColumns+` FROM operators WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("operator %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting operator: %w", err)
	}
	return o, nil
}

// GetOperatorByUsername returns the active operator with the given username.
func GetOperatorByUsername(ctx context.Context, db *sql.DB, username string) (*model.Operator, error) {
	o, err := scanOperator(db.QueryRowContext(ctx,
		`SELECT `+operatorColumns+` FROM operators WHERE username = ? AND deleted_at IS NULL`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("operator %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting operator by username: %w", err)
	}
	return o, nil
}

// ListOperators returns all non-deleted operators.
func ListOperators(ctx context.Context, db *sql.DB) ([]model.Operator, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+operatorColumns+` FROM operators WHERE deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing operators: %w", err)
	}
	defer rows.Close()

	operators := []model.Operator{}
	for rows.Next() {
		o, err := scanOperator(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning operator: %w", err)
		}
		operators = append(operators, *o)
	}
	return operators, rows.Err()
}

// CountOperators returns the number of active operators.
func CountOperators(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM operators WHERE deleted_at IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting operators: %w", err)
	}
	return n, nil
}

// UpdateOperatorRole changes an operator's role.
func UpdateOperatorRole(ctx context.Context, db *sql.DB, id int64, role string) error {
	if !model.ValidRole(role) {
		return model.Invalid("role", "invalid role %q", role)
	}
	return updateActiveOperator(ctx, db, id, `UPDATE operators SET role = ? WHERE id = ? AND deleted_at IS NULL`, role)
}

// UpdateOperatorPassword updates an operator's password hash.
func UpdateOperatorPassword(ctx context.Context, db *sql.DB, id int64, passwordHash string) error {
	return updateActiveOperator(ctx, db, id,
		`UPDATE operators SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`, passwordHash)
}

// DeleteOperator soft-deletes an operator so their username can be reused.
func DeleteOperator(ctx context.Context, db *sql.DB, id int64) error {
	res, err := db.ExecContext(ctx,
		`UPDATE operators SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("deleting operator: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return fmt.Errorf("deleting operator: %w", err)
	}
	if !ok {
		return fmt.Errorf("operator %d: %w", id, ErrNotFound)
	}
	return nil
}

func updateActiveOperator(ctx context.Context, db *sql.DB, id int64, query string, value any) error {
	res, err := db.ExecContext(ctx, query, value, id)
	if err != nil {
		return fmt.Errorf("updating operator: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return fmt.Errorf("updating operator: %w", err)
	}
	if !ok {
		return fmt.Errorf("operator %d: %w", id, ErrNotFound)
	}
	return nil
}
