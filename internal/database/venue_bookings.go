package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"venuebook/internal/models"
)

const venueBookingColumns = `id, venue_id, user_id, booking_date, slot_from, slot_to, status, created_at, updated_at, version`

// CreateVenueBookings inserts the whole batch and its staged outbox rows in one transaction.
// The active-slot unique index is the commit-time guard: the first rejected slot
// aborts the batch with a *SlotTakenError.
func (db *DB) CreateVenueBookings(ctx context.Context, bookings []*models.VenueBooking, stage models.VenueOutboxStage) error {
	if len(bookings) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	ts := utcNow()
	for _, b := range bookings {
		result, err := tx.ExecContext(ctx, `INSERT INTO venue_bookings (
                venue_id, user_id, booking_date, slot_from, slot_to, status, created_at, updated_at, version
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			b.VenueID, b.UserID, b.Date, b.Slot.From, b.Slot.To, models.StatusBooked, ts, ts)
		if err != nil {
			if isUniqueViolation(err) {
				return &SlotTakenError{VenueID: b.VenueID, Date: b.Date, Slot: b.Slot.String()}
			}
			return fmt.Errorf("failed to insert venue booking in tx: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id in tx: %w", err)
		}
		b.ID = id
		b.Status = models.StatusBooked
		b.CreatedAt = ts
		b.UpdatedAt = ts
		b.Version = 1
	}

	if err := stageVenue(ctx, tx, stage, bookings); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit venue bookings: %w", err)
	}
	return nil
}

func (db *DB) GetVenueBooking(ctx context.Context, id int64) (*models.VenueBooking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+venueBookingColumns+` FROM venue_bookings WHERE id = ?`, id)
	b, err := scanVenueBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("venue booking %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get venue booking: %w", err)
	}
	return b, nil
}

// GetActiveVenueBookings returns the booked rows of one venue on one date.
func (db *DB) GetActiveVenueBookings(ctx context.Context, venueID int64, date string) ([]*models.VenueBooking, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+venueBookingColumns+` FROM venue_bookings
        WHERE venue_id = ? AND booking_date = ? AND status = ? ORDER BY slot_from`,
		venueID, date, models.StatusBooked)
	if err != nil {
		return nil, fmt.Errorf("failed to get venue bookings by date: %w", err)
	}
	defer rows.Close()
	return collectVenueBookings(rows)
}

// ListVenueBookings returns bookings of any status matching the filter, oldest first.
func (db *DB) ListVenueBookings(ctx context.Context, filter models.BookingFilter) ([]*models.VenueBooking, error) {
	var conds []string
	var args []any
	if filter.VenueID != 0 {
		conds = append(conds, "venue_id = ?")
		args = append(args, filter.VenueID)
	}
	if filter.UserID != 0 {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.From != "" {
		conds = append(conds, "booking_date >= ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		conds = append(conds, "booking_date <= ?")
		args = append(args, filter.To)
	}

	query := `SELECT ` + venueBookingColumns + ` FROM venue_bookings`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY booking_date, slot_from, id"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list venue bookings: %w", err)
	}
	defer rows.Close()
	return collectVenueBookings(rows)
}

// RescheduleVenueBooking moves an active booking to a new date/slot under its version.
func (db *DB) RescheduleVenueBooking(ctx context.Context, id, fromVersion int64, date string, slot models.TimeSlot, stage models.VenueOutboxStage) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `UPDATE venue_bookings
        SET booking_date = ?, slot_from = ?, slot_to = ?, version = version + 1, updated_at = ?
        WHERE id = ? AND version = ? AND status = ?`,
		date, slot.From, slot.To, utcNow(), id, fromVersion, models.StatusBooked)
	if err != nil {
		if isUniqueViolation(err) {
			var venueID int64
			if getErr := tx.QueryRowContext(ctx, `SELECT venue_id FROM venue_bookings WHERE id = ?`, id).Scan(&venueID); getErr != nil {
				return fmt.Errorf("%w: %s", ErrSlotTaken, slot.String())
			}
			return &SlotTakenError{VenueID: venueID, Date: date, Slot: slot.String()}
		}
		return fmt.Errorf("failed to reschedule venue booking: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return venueBookingMissReason(ctx, tx, id)
	}

	if err := stageVenueRow(ctx, tx, stage, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit venue booking reschedule: %w", err)
	}
	return nil
}

// CancelVenueBooking frees the slot; the row is kept with status cancelled.
func (db *DB) CancelVenueBooking(ctx context.Context, id, fromVersion int64, stage models.VenueOutboxStage) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `UPDATE venue_bookings
        SET status = ?, version = version + 1, updated_at = ?
        WHERE id = ? AND version = ? AND status = ?`,
		models.StatusCancelled, utcNow(), id, fromVersion, models.StatusBooked)
	if err != nil {
		return fmt.Errorf("failed to cancel venue booking: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return venueBookingMissReason(ctx, tx, id)
	}

	if err := stageVenueRow(ctx, tx, stage, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit venue booking cancel: %w", err)
	}
	return nil
}

// stageVenueRow re-reads the changed row inside tx and stages its events.
func stageVenueRow(ctx context.Context, tx *sql.Tx, stage models.VenueOutboxStage, id int64) error {
	if stage == nil {
		return nil
	}
	b, err := scanVenueBooking(tx.QueryRowContext(ctx, `SELECT `+venueBookingColumns+` FROM venue_bookings WHERE id = ?`, id))
	if err != nil {
		return fmt.Errorf("failed to read venue booking in tx: %w", err)
	}
	return stageVenue(ctx, tx, stage, []*models.VenueBooking{b})
}

// venueBookingMissReason explains why a versioned update touched no row.
func venueBookingMissReason(ctx context.Context, ex sqlExecutor, id int64) error {
	var status string
	err := ex.QueryRowContext(ctx, `SELECT status FROM venue_bookings WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("venue booking %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check venue booking status: %w", err)
	}
	if status == models.StatusCancelled {
		return ErrAlreadyCancelled
	}
	return ErrConcurrentModification
}

func scanVenueBooking(row rowScanner) (*models.VenueBooking, error) {
	var b models.VenueBooking
	err := row.Scan(&b.ID, &b.VenueID, &b.UserID, &b.Date, &b.Slot.From, &b.Slot.To, &b.Status,
		&b.CreatedAt, &b.UpdatedAt, &b.Version)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func collectVenueBookings(rows *sql.Rows) ([]*models.VenueBooking, error) {
	bookings := []*models.VenueBooking{}
	for rows.Next() {
		b, err := scanVenueBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan venue booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate venue bookings: %w", err)
	}
	return bookings, nil
}
