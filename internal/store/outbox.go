package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/assetdesk/internal/model"
)

const notificationColumns = `id, assignment_id, kind, recipient_name, recipient_email, payload, status,
	attempts, last_error, next_attempt_at, created_at, sent_at`

func scanNotification(s scanner) (*model.Notification, error) {
	n := &model.Notification{}
	var sentAt sql.NullTime
	err := s.Scan(&n.ID, &n.AssignmentID, &n.Kind, &n.RecipientName, &n.RecipientEmail, &n.Payload, &n.Status,
		&n.Attempts, &n.LastError, &n.NextAttemptAt, &n.CreatedAt, &sentAt)
	if err != nil {
		return nil, err
	}
	if sentAt.Valid {
		n.SentAt = &sentAt.Time
	}
	return n, nil
}

// enqueue records a pending notification. It is called inside the
// transaction of the change that triggers it.
func enqueue(ctx context.Context, q querier, n *model.Notification) error {
	ts := now()
	n.ID = uuid.NewString()
	n.Status = model.NotificationPending
	n.CreatedAt = ts
	n.NextAttemptAt = ts

	_, err := q.ExecContext(ctx,
		`INSERT INTO notifications (id, assignment_id, kind, recipient_name, recipient_email, payload,
		                            status, next_attempt_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.AssignmentID, n.Kind, n.RecipientName, n.RecipientEmail, n.Payload,
		n.Status, n.NextAttemptAt, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("enqueueing notification: %w", err)
	}
	return nil
}

// ClaimDueNotifications returns up to limit pending notifications whose
// next attempt is due and pushes their next attempt back by lease, so a
// crash mid-delivery leads to a later retry rather than a lost message.
func ClaimDueNotifications(ctx context.Context, db *sql.DB, at time.Time, limit int, lease time.Duration) ([]model.Notification, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE status = ? AND next_attempt_at <= ?
		 ORDER BY next_attempt_at, created_at
		 LIMIT ?`,
		model.NotificationPending, at.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying due notifications: %w", err)
	}

	var due []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		due = append(due, *n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying due notifications: %w", err)
	}

	leased := at.Add(lease).UTC()
	for _, n := range due {
		if _, err := tx.ExecContext(ctx,
			`UPDATE notifications SET next_attempt_at = ? WHERE id = ?`, leased, n.ID,
		); err != nil {
			return nil, fmt.Errorf("leasing notification: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}
	return due, nil
}

// MarkNotificationSent records a successful delivery.
func MarkNotificationSent(ctx context.Context, db *sql.DB, id string, at time.Time) error {
	_, err := db.ExecContext(ctx,
		`UPDATE notifications SET status = ?, attempts = attempts + 1, last_error = '', sent_at = ?
		 WHERE id = ?`,
		model.NotificationSent, at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("marking notification sent: %w", err)
	}
	return nil
}

// RescheduleNotification records a failed attempt and schedules the next
// one.
func RescheduleNotification(ctx context.Context, db *sql.DB, id, lastError string, next time.Time) error {
	_, err := db.ExecContext(ctx,
		`UPDATE notifications SET attempts = attempts + 1, last_error = ?, next_attempt_at = ?
		 WHERE id = ?`,
		lastError, next.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("rescheduling notification: %w", err)
	}
	return nil
}

// MarkNotificationFailed gives up on a notification.
func MarkNotificationFailed(ctx context.Context, db *sql.DB, id, lastError string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE notifications SET status = ?, attempts = attempts + 1, last_error = ? WHERE id = ?`,
		model.NotificationFailed, lastError, id,
	)
	if err != nil {
		return fmt.Errorf("marking notification failed: %w", err)
	}
	return nil
}

// GetNotification returns a notification by ID.
func GetNotification(ctx context.Context, db *sql.DB, id string) (*model.Notification, error) {
	n, err := scanNotification(db.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns notifications, newest first, optionally
// filtered by status.
func ListNotifications(ctx context.Context, db *sql.DB, status string) ([]model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	notifications := []model.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		notifications = append(notifications, *n)
	}
	return notifications, rows.Err()
}
