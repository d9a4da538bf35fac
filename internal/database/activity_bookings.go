package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"venuebook/internal/models"
)

const activityBookingColumns = `b.id, b.activity_id, b.user_id, b.quantity, b.price, b.status, b.created_at, b.updated_at, b.version,
        a.date, a.time`

// CreateActivityBooking admits b.Quantity seats: conditional decrement of the
// activity limit, participant rows and the booking record commit together.
// b.Price is computed from the activity price inside the transaction.
func (db *DB) CreateActivityBooking(ctx context.Context, b *models.ActivityBooking, stage models.ActivityOutboxStage) error {
	if b.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", b.Quantity)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := takeSeats(ctx, tx, b.ActivityID, b.Quantity); err != nil {
		return err
	}

	var price float64
	var date, clock string
	err = tx.QueryRowContext(ctx, `SELECT price, date, time FROM activities WHERE id = ?`, b.ActivityID).Scan(&price, &date, &clock)
	if err != nil {
		return fmt.Errorf("failed to read activity price in tx: %w", err)
	}

	ts := utcNow()
	b.Price = price * float64(b.Quantity)
	result, err := tx.ExecContext(ctx, `INSERT INTO activity_bookings (
            activity_id, user_id, quantity, price, status, created_at, updated_at, version
        ) VALUES (?, ?, ?, ?, ?, ?, ?, 1)`,
		b.ActivityID, b.UserID, b.Quantity, b.Price, models.StatusBooked, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to insert activity booking in tx: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}

	if err := addParticipants(ctx, tx, b.ActivityID, id, b.UserID, b.Quantity); err != nil {
		return err
	}

	committed := *b
	committed.ID = id
	committed.Status = models.StatusBooked
	committed.CreatedAt = ts
	committed.UpdatedAt = ts
	committed.Version = 1
	committed.ActivityDate = date
	committed.ActivityTime = clock
	if err := stageActivity(ctx, tx, stage, &committed); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit activity booking: %w", err)
	}
	*b = committed
	return nil
}

// UpdateActivityBookingQuantity changes the seat count of an active booking.
// Growth is a conditional decrement of the activity limit; shrinking releases the
// booking's newest participant rows. The version guards against a concurrent change.
func (db *DB) UpdateActivityBookingQuantity(ctx context.Context, id, fromVersion int64, quantity int, stage models.ActivityOutboxStage) (*models.ActivityBooking, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	current, err := scanActivityBooking(tx.QueryRowContext(ctx, `SELECT `+activityBookingColumns+`
        FROM activity_bookings b JOIN activities a ON a.id = b.activity_id WHERE b.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("activity booking %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read activity booking in tx: %w", err)
	}
	if current.Status == models.StatusCancelled {
		return nil, ErrAlreadyCancelled
	}
	if current.Version != fromVersion {
		return nil, ErrConcurrentModification
	}

	delta := quantity - current.Quantity
	switch {
	case delta > 0:
		if err := takeSeats(ctx, tx, current.ActivityID, delta); err != nil {
			return nil, err
		}
		if err := addParticipants(ctx, tx, current.ActivityID, id, current.UserID, delta); err != nil {
			return nil, err
		}
	case delta < 0:
		if err := releaseSeats(ctx, tx, current.ActivityID, id, -delta); err != nil {
			return nil, err
		}
	}

	var unitPrice float64
	if err := tx.QueryRowContext(ctx, `SELECT price FROM activities WHERE id = ?`, current.ActivityID).Scan(&unitPrice); err != nil {
		return nil, fmt.Errorf("failed to read activity price in tx: %w", err)
	}

	ts := utcNow()
	price := unitPrice * float64(quantity)
	result, err := tx.ExecContext(ctx, `UPDATE activity_bookings
        SET quantity = ?, price = ?, version = version + 1, updated_at = ?
        WHERE id = ? AND version = ? AND status = ?`,
		quantity, price, ts, id, fromVersion, models.StatusBooked)
	if err != nil {
		return nil, fmt.Errorf("failed to update activity booking: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, ErrConcurrentModification
	}

	current.Quantity = quantity
	current.Price = price
	current.Version = fromVersion + 1
	current.UpdatedAt = ts
	if err := stageActivity(ctx, tx, stage, current); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit activity booking update: %w", err)
	}
	return current, nil
}

// CancelActivityBooking reverses the admission: the limit gets the booking's
// quantity back and its participant rows are removed.
func (db *DB) CancelActivityBooking(ctx context.Context, id, fromVersion int64, stage models.ActivityOutboxStage) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var activityID int64
	var quantity int
	var status string
	var version int64
	err = tx.QueryRowContext(ctx, `SELECT activity_id, quantity, status, version FROM activity_bookings WHERE id = ?`, id).
		Scan(&activityID, &quantity, &status, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("activity booking %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read activity booking in tx: %w", err)
	}
	if status == models.StatusCancelled {
		return ErrAlreadyCancelled
	}
	if version != fromVersion {
		return ErrConcurrentModification
	}

	result, err := tx.ExecContext(ctx, `UPDATE activity_bookings
        SET status = ?, version = version + 1, updated_at = ?
        WHERE id = ? AND version = ? AND status = ?`,
		models.StatusCancelled, utcNow(), id, fromVersion, models.StatusBooked)
	if err != nil {
		return fmt.Errorf("failed to cancel activity booking: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrConcurrentModification
	}

	if err := releaseSeats(ctx, tx, activityID, id, quantity); err != nil {
		return err
	}

	if stage != nil {
		cancelled, err := scanActivityBooking(tx.QueryRowContext(ctx, `SELECT `+activityBookingColumns+`
            FROM activity_bookings b JOIN activities a ON a.id = b.activity_id WHERE b.id = ?`, id))
		if err != nil {
			return fmt.Errorf("failed to read activity booking in tx: %w", err)
		}
		if err := stageActivity(ctx, tx, stage, cancelled); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit activity booking cancel: %w", err)
	}
	return nil
}

func (db *DB) GetActivityBooking(ctx context.Context, id int64) (*models.ActivityBooking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+activityBookingColumns+`
        FROM activity_bookings b JOIN activities a ON a.id = b.activity_id WHERE b.id = ?`, id)
	b, err := scanActivityBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("activity booking %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity booking: %w", err)
	}
	return b, nil
}

// ListActivityBookings returns bookings of any status matching the filter, earliest activity first.
func (db *DB) ListActivityBookings(ctx context.Context, filter models.BookingFilter) ([]*models.ActivityBooking, error) {
	var conds []string
	var args []any
	if filter.ActivityID != 0 {
		conds = append(conds, "b.activity_id = ?")
		args = append(args, filter.ActivityID)
	}
	if filter.UserID != 0 {
		conds = append(conds, "b.user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.From != "" {
		conds = append(conds, "a.date >= ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		conds = append(conds, "a.date <= ?")
		args = append(args, filter.To)
	}

	query := `SELECT ` + activityBookingColumns + ` FROM activity_bookings b JOIN activities a ON a.id = b.activity_id`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY a.date, a.time, b.id"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity bookings: %w", err)
	}
	defer rows.Close()

	bookings := []*models.ActivityBooking{}
	for rows.Next() {
		b, err := scanActivityBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activity bookings: %w", err)
	}
	return bookings, nil
}

// takeSeats is the conditional decrement: it only succeeds while enough seats remain.
func takeSeats(ctx context.Context, tx *sql.Tx, activityID int64, n int) error {
	result, err := tx.ExecContext(ctx, `UPDATE activities
        SET participants_limit = participants_limit - ?, updated_at = ?
        WHERE id = ? AND participants_limit >= ?`, n, utcNow(), activityID, n)
	if err != nil {
		if isCheckViolation(err) {
			return ErrCapacityExceeded
		}
		return fmt.Errorf("failed to take seats: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM activities WHERE id = ?`, activityID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("activity %d: %w", activityID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check activity: %w", err)
	}
	return ErrCapacityExceeded
}

func releaseSeats(ctx context.Context, tx *sql.Tx, activityID, bookingID int64, n int) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM activity_participants WHERE id IN (
            SELECT id FROM activity_participants WHERE booking_id = ? ORDER BY id DESC LIMIT ?
        )`, bookingID, n)
	if err != nil {
		return fmt.Errorf("failed to remove participants: %w", err)
	}
	removed, _ := result.RowsAffected()
	if int(removed) != n {
		return fmt.Errorf("booking %d: expected to release %d participants, found %d", bookingID, n, removed)
	}

	result, err = tx.ExecContext(ctx, `UPDATE activities
        SET participants_limit = participants_limit + ?, updated_at = ?
        WHERE id = ? AND participants_limit + ? <= capacity`, n, utcNow(), activityID, n)
	if err != nil {
		return fmt.Errorf("failed to restore seats: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("activity %d: restoring %d seats would exceed capacity", activityID, n)
	}
	return nil
}

func addParticipants(ctx context.Context, tx *sql.Tx, activityID, bookingID, userID int64, n int) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO activity_participants (activity_id, booking_id, user_id) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare participant insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, activityID, bookingID, userID); err != nil {
			return fmt.Errorf("failed to add participant: %w", err)
		}
	}
	return nil
}

func scanActivityBooking(row rowScanner) (*models.ActivityBooking, error) {
	var b models.ActivityBooking
	err := row.Scan(&b.ID, &b.ActivityID, &b.UserID, &b.Quantity, &b.Price, &b.Status,
		&b.CreatedAt, &b.UpdatedAt, &b.Version, &b.ActivityDate, &b.ActivityTime)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
