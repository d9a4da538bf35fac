package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"venuebook/internal/models"
)

// SyncCatalog upserts venues and activities in one transaction.
// Seats already taken survive a capacity change; shrinking below them fails.
func (db *DB) SyncCatalog(ctx context.Context, catalog models.Catalog) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin catalog sync: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	ts := utcNow()
	for i := range catalog.Venues {
		v := &catalog.Venues[i]
		timings, err := json.Marshal(v.Timings)
		if err != nil {
			return fmt.Errorf("failed to encode timings of venue %d: %w", v.ID, err)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO venues (id, name, owner_id, capacity, price_per_hour, timings, created_at, updated_at)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT(id) DO UPDATE SET
                name = excluded.name,
                owner_id = excluded.owner_id,
                capacity = excluded.capacity,
                price_per_hour = excluded.price_per_hour,
                timings = excluded.timings,
                updated_at = excluded.updated_at`,
			v.ID, v.Name, v.OwnerID, v.Capacity, v.PricePerHour, string(timings), ts, ts)
		if err != nil {
			return fmt.Errorf("failed to upsert venue %d: %w", v.ID, err)
		}
	}

	for i := range catalog.Activities {
		a := &catalog.Activities[i]
		_, err := tx.ExecContext(ctx, `INSERT INTO activities (
                id, name, host_id, venue_id, date, time, price, capacity, participants_limit, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT(id) DO UPDATE SET
                name = excluded.name,
                host_id = excluded.host_id,
                venue_id = excluded.venue_id,
                date = excluded.date,
                time = excluded.time,
                price = excluded.price,
                participants_limit = excluded.capacity - (activities.capacity - activities.participants_limit),
                capacity = excluded.capacity,
                updated_at = excluded.updated_at`,
			a.ID, a.Name, a.HostID, a.VenueID, a.Date, a.Time, a.Price, a.Capacity, a.Capacity, ts, ts)
		if err != nil {
			if isCheckViolation(err) {
				return fmt.Errorf("activity %d: capacity %d is below seats already booked", a.ID, a.Capacity)
			}
			return fmt.Errorf("failed to upsert activity %d: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit catalog sync: %w", err)
	}

	db.logger.Info().
		Int("venues", len(catalog.Venues)).
		Int("activities", len(catalog.Activities)).
		Msg("catalog synced")
	return nil
}

func (db *DB) GetVenue(ctx context.Context, id int64) (*models.Venue, error) {
	row := db.QueryRowContext(ctx, `SELECT id, name, owner_id, capacity, price_per_hour, timings, created_at, updated_at
        FROM venues WHERE id = ?`, id)
	v, err := scanVenue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("venue %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get venue: %w", err)
	}
	return v, nil
}

func (db *DB) ListVenues(ctx context.Context) ([]*models.Venue, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, owner_id, capacity, price_per_hour, timings, created_at, updated_at
        FROM venues ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list venues: %w", err)
	}
	defer rows.Close()

	var venues []*models.Venue
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan venue: %w", err)
		}
		venues = append(venues, v)
	}
	return venues, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVenue(row rowScanner) (*models.Venue, error) {
	var v models.Venue
	var timings string
	if err := row.Scan(&v.ID, &v.Name, &v.OwnerID, &v.Capacity, &v.PricePerHour, &timings, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(timings), &v.Timings); err != nil {
		return nil, fmt.Errorf("failed to decode timings of venue %d: %w", v.ID, err)
	}
	return &v, nil
}

// GetActivity returns the activity with its current limit and participant list.
func (db *DB) GetActivity(ctx context.Context, id int64) (*models.Activity, error) {
	var a models.Activity
	err := db.QueryRowContext(ctx, `SELECT id, name, host_id, venue_id, date, time, price, capacity, participants_limit, created_at, updated_at
        FROM activities WHERE id = ?`, id).Scan(
		&a.ID, &a.Name, &a.HostID, &a.VenueID, &a.Date, &a.Time, &a.Price, &a.Capacity, &a.ParticipantsLimit, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("activity %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}

	participants, err := db.activityParticipants(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Participants = participants
	return &a, nil
}

func (db *DB) ListActivities(ctx context.Context) ([]*models.Activity, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, host_id, venue_id, date, time, price, capacity, participants_limit, created_at, updated_at
        FROM activities ORDER BY date, time, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	activities := []*models.Activity{}
	for rows.Next() {
		var a models.Activity
		if err := rows.Scan(&a.ID, &a.Name, &a.HostID, &a.VenueID, &a.Date, &a.Time, &a.Price, &a.Capacity,
			&a.ParticipantsLimit, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, &a)
	}
	return activities, rows.Err()
}

func (db *DB) activityParticipants(ctx context.Context, activityID int64) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT user_id FROM activity_participants WHERE activity_id = ? ORDER BY id`, activityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	participants := []int64{}
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, userID)
	}
	return participants, rows.Err()
}
