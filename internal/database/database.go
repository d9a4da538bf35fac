package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrSlotTaken              = errors.New("slot already booked")
	ErrCapacityExceeded       = errors.New("not enough participant slots")
	ErrConcurrentModification = errors.New("booking was modified concurrently")
	ErrAlreadyCancelled       = errors.New("booking already cancelled")
)

// SlotTakenError names the slot rejected by the active-slot unique index.
type SlotTakenError struct {
	VenueID int64
	Date    string
	Slot    string
}

func (e *SlotTakenError) Error() string {
	return fmt.Sprintf("venue %d on %s: slot %s already booked", e.VenueID, e.Date, e.Slot)
}

func (e *SlotTakenError) Is(target error) bool {
	return target == ErrSlotTaken
}

// DB is the SQLite store behind the resource catalog and the booking ledger.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite has a single writer, and :memory: databases are per connection.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{DB: sqlDB, path: path, logger: logger}, nil
}

// Path returns the file the store was opened from.
func (db *DB) Path() string {
	return db.path
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS venues (
            id INTEGER PRIMARY KEY,
            name TEXT NOT NULL,
            owner_id INTEGER NOT NULL DEFAULT 0,
            capacity INTEGER NOT NULL DEFAULT 0,
            price_per_hour REAL NOT NULL DEFAULT 0,
            timings TEXT NOT NULL DEFAULT '[]',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS activities (
            id INTEGER PRIMARY KEY,
            name TEXT NOT NULL,
            host_id INTEGER NOT NULL DEFAULT 0,
            venue_id INTEGER NOT NULL DEFAULT 0,
            date TEXT NOT NULL,
            time TEXT NOT NULL,
            price REAL NOT NULL DEFAULT 0,
            capacity INTEGER NOT NULL CHECK (capacity >= 0),
            participants_limit INTEGER NOT NULL CHECK (participants_limit >= 0),
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS activity_participants (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            activity_id INTEGER NOT NULL,
            booking_id INTEGER NOT NULL,
            user_id INTEGER NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS venue_bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            venue_id INTEGER NOT NULL,
            user_id INTEGER NOT NULL,
            booking_date TEXT NOT NULL,
            slot_from TEXT NOT NULL,
            slot_to TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'booked',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            version INTEGER NOT NULL DEFAULT 1
        )`,
		`CREATE TABLE IF NOT EXISTS activity_bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            activity_id INTEGER NOT NULL,
            user_id INTEGER NOT NULL,
            quantity INTEGER NOT NULL CHECK (quantity > 0),
            price REAL NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'booked',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            version INTEGER NOT NULL DEFAULT 1
        )`,
		`CREATE TABLE IF NOT EXISTS outbox (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            event_type TEXT NOT NULL,
            resource TEXT NOT NULL,
            booking_id INTEGER NOT NULL,
            payload TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		// At most one active booking per (venue, date, slot); cancelled rows keep history.
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_venue_bookings_active_slot
            ON venue_bookings(venue_id, booking_date, slot_from, slot_to) WHERE status = 'booked'`,
		`CREATE INDEX IF NOT EXISTS idx_venue_bookings_user ON venue_bookings(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_venue_bookings_date ON venue_bookings(booking_date)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_bookings_activity ON activity_bookings(activity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_bookings_user ON activity_bookings(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_participants_booking ON activity_participants(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_participants_activity ON activity_participants(activity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(status, next_retry_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", strings.TrimSpace(query), err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func isCheckViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintCheck
	}
	return false
}

func utcNow() time.Time {
	return time.Now().UTC()
}
