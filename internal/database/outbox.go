package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"venuebook/internal/models"
)

// sqlExecutor is satisfied by both *sql.DB and *sql.Tx.
type sqlExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertOutboxEvent(ctx context.Context, ex sqlExecutor, event *models.OutboxEvent) error {
	if event.Status == "" {
		event.Status = models.OutboxPending
	}
	query := `INSERT INTO outbox (event_type, resource, booking_id, payload, status, retry_count, last_error, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	ts := utcNow()
	result, err := ex.ExecContext(ctx, query,
		event.EventType,
		event.Resource,
		event.BookingID,
		event.Payload,
		event.Status,
		event.RetryCount,
		event.LastError,
		ts,
		event.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	event.ID = id
	event.CreatedAt = ts

	return nil
}

// writeStaged inserts the rows a stage built, inside the caller's transaction.
func writeStaged(ctx context.Context, tx *sql.Tx, staged []*models.OutboxEvent, err error) error {
	if err != nil {
		return fmt.Errorf("failed to stage outbox events: %w", err)
	}
	for _, event := range staged {
		if err := insertOutboxEvent(ctx, tx, event); err != nil {
			return err
		}
	}
	return nil
}

func stageVenue(ctx context.Context, tx *sql.Tx, stage models.VenueOutboxStage, bookings []*models.VenueBooking) error {
	if stage == nil {
		return nil
	}
	staged, err := stage(bookings)
	return writeStaged(ctx, tx, staged, err)
}

func stageActivity(ctx context.Context, tx *sql.Tx, stage models.ActivityOutboxStage, booking *models.ActivityBooking) error {
	if stage == nil {
		return nil
	}
	staged, err := stage(booking)
	return writeStaged(ctx, tx, staged, err)
}

func (db *DB) GetPendingOutboxEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	query := `SELECT id, event_type, resource, booking_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at
              FROM outbox
              WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY created_at ASC, id ASC LIMIT ?`
	return db.queryOutbox(ctx, query, models.OutboxPending, models.OutboxRetry, utcNow(), limit)
}

// GetFailedOutboxEvents returns dead-lettered events, newest first, at most limit rows.
func (db *DB) GetFailedOutboxEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	query := `SELECT id, event_type, resource, booking_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at
              FROM outbox WHERE status = ? ORDER BY created_at DESC, id DESC LIMIT ?`
	return db.queryOutbox(ctx, query, models.OutboxFailed, limit)
}

// CountOutboxByStatus reports how many outbox rows sit in each status.
func (db *DB) CountOutboxByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM outbox GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count outbox events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan outbox count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (db *DB) UpdateOutboxStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []any
	ts := utcNow()

	var lastErr *string
	if errMsg != "" {
		lastErr = &errMsg
	}
	if nextRetryAt != nil {
		utc := nextRetryAt.UTC()
		nextRetryAt = &utc
	}

	switch status {
	case models.OutboxRetry:
		query = `UPDATE outbox SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []any{status, lastErr, nextRetryAt, id}
	case models.OutboxCompleted, models.OutboxFailed:
		query = `UPDATE outbox SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []any{status, lastErr, nextRetryAt, ts, id}
	default:
		query = `UPDATE outbox SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []any{status, lastErr, nextRetryAt, id}
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update outbox status: %w", err)
	}
	return nil
}

func (db *DB) queryOutbox(ctx context.Context, query string, args ...any) ([]models.OutboxEvent, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	var events []models.OutboxEvent
	for rows.Next() {
		var e models.OutboxEvent
		err := rows.Scan(
			&e.ID, &e.EventType, &e.Resource, &e.BookingID, &e.Payload, &e.Status, &e.RetryCount,
			&e.LastError, &e.CreatedAt, &e.ProcessedAt, &e.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
