package models

import "time"

const (
	OutboxPending   = "pending"
	OutboxRetry     = "retry"
	OutboxCompleted = "completed"
	OutboxFailed    = "failed"
)

// OutboxEvent is a booking event waiting to be relayed to the broker.
type OutboxEvent struct {
	ID          int64      `json:"id"`
	EventType   string     `json:"event_type"`
	Resource    string     `json:"resource"`
	BookingID   int64      `json:"booking_id"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	LastError   *string    `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	NextRetryAt *time.Time `json:"next_retry_at"`
}

// VenueOutboxStage builds the outbox rows for a venue ledger write. The store calls it
// inside the write transaction with the rows as they will be committed, and inserts what
// it returns before commit. A nil stage writes no events.
type VenueOutboxStage func(bookings []*VenueBooking) ([]*OutboxEvent, error)

// ActivityOutboxStage is VenueOutboxStage for activity bookings.
type ActivityOutboxStage func(booking *ActivityBooking) ([]*OutboxEvent, error)
