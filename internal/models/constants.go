package models

const (
	StatusBooked    = "booked"
	StatusCancelled = "cancelled"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"

	// SlotDelimiter separates the two ends of a requested slot string.
	SlotDelimiter = "-"
)

const (
	ResourceVenue    = "venue"
	ResourceActivity = "activity"
)

const (
	// DefaultLockInHours is the window before a scheduled start in which bookings are frozen.
	DefaultLockInHours = 48

	// MaxSlotsPerRequest caps a single venue admission batch.
	MaxSlotsPerRequest = 24

	// OutboxQueueSize is the in-memory relay buffer.
	OutboxQueueSize = 256
)
