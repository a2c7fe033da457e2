package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/erazemk/assetdesk/internal/model"
)

const employeeColumns = `id, employee_id, name, email, department, position, employee_type,
	version, created_at, updated_at`

func scanEmployee(s scanner) (*model.Employee, error) {
	e := &model.Employee{}
	err := s.Scan(&e.ID, &e.EmployeeID, &e.Name, &e.Email, &e.Department, &e.Position, &e.EmployeeType,
		&e.Version, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// CreateEmployee stores a new employee. A duplicate external employee id
// is a conflict.
func CreateEmployee(ctx context.Context, db *sql.DB, e *model.Employee) (*model.Employee, error) {
	e.ID = uuid.NewString()
	e.ApplyDefaults()
	if err := e.Validate(); err != nil {
		return nil, err
	}

	ts := now()
	_, err := db.ExecContext(ctx,
		`INSERT INTO employees (`+employeeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		e.ID, e.EmployeeID, e.Name, e.Email, e.Department, e.Position, e.EmployeeType, ts, ts,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("employee id %q already exists: %w", e.EmployeeID, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("creating employee: %w", err)
	}

	return GetEmployee(ctx, db, e.ID)
}

// GetEmployee returns an employee by internal ID.
func GetEmployee(ctx context.Context, db *sql.DB, id string) (*model.Employee, error) {
	e, err := scanEmployee(db.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("employee %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting employee: %w", err)
	}
	return e, nil
}

// GetEmployeeByExternalID returns the employee with the given company
// employee id.
func GetEmployeeByExternalID(ctx context.Context, db *sql.DB, employeeID string) (*model.Employee, error) {
	e, err := scanEmployee(db.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE employee_id = ?`, employeeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("employee %q: %w", employeeID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting employee by employee id: %w", err)
	}
	return e, nil
}

// ListEmployees returns all employees ordered by name.
func ListEmployees(ctx context.Context, db *sql.DB) ([]model.Employee, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+employeeColumns+` FROM employees ORDER BY name, employee_id`)
	if err != nil {
		return nil, fmt.Errorf("listing employees: %w", err)
	}
	defer rows.Close()

	employees := []model.Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning employee: %w", err)
		}
		employees = append(employees, *e)
	}
	return employees, rows.Err()
}

// UpdateEmployee merges a JSON patch onto the stored employee.
func UpdateEmployee(ctx context.Context, db *sql.DB, id string, patch []byte) (*model.Employee, error) {
	current, err := GetEmployee(ctx, db, id)
	if err != nil {
		return nil, err
	}

	updated := *current
	if err := json.Unmarshal(patch, &updated); err != nil {
		return nil, model.Invalid("", "invalid patch: %v", err)
	}
	if updated.ID != current.ID {
		return nil, model.Invalid("id", "cannot be changed")
	}
	if updated.Version != current.Version {
		return nil, fmt.Errorf("employee %s version %d is stale: %w", id, updated.Version, ErrConflict)
	}
	updated.ApplyDefaults()
	if err := updated.Validate(); err != nil {
		return nil, err
	}

	res, err := db.ExecContext(ctx,
		`UPDATE employees SET employee_id = ?, name = ?, email = ?, department = ?, position = ?,
		        employee_type = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		updated.EmployeeID, updated.Name, updated.Email, updated.Department, updated.Position,
		updated.EmployeeType, now(), id, current.Version,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("employee id %q already exists: %w", updated.EmployeeID, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("updating employee: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return nil, fmt.Errorf("updating employee: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("employee %s changed concurrently: %w", id, ErrConflict)
	}

	return GetEmployee(ctx, db, id)
}

// DeleteEmployee removes an employee. Assignments keep their copied
// employee details.
func DeleteEmployee(ctx context.Context, db *sql.DB, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM employees WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting employee: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return fmt.Errorf("deleting employee: %w", err)
	}
	if !ok {
		return fmt.Errorf("employee %s: %w", id, ErrNotFound)
	}
	return nil
}
