package domain

import (
	"context"
	"io"
	"time"

	"venuebook/internal/models"
)

// CatalogStore holds venues and activities.
type CatalogStore interface {
	SyncCatalog(ctx context.Context, catalog models.Catalog) error
	GetVenue(ctx context.Context, id int64) (*models.Venue, error)
	ListVenues(ctx context.Context) ([]*models.Venue, error)
	GetActivity(ctx context.Context, id int64) (*models.Activity, error)
	ListActivities(ctx context.Context) ([]*models.Activity, error)
}

// Ledger is the authoritative store of bookings. Every mutating call commits atomically
// and re-checks slot uniqueness or seat capacity at commit time. The outbox rows built by
// its stage commit in the same transaction.
type Ledger interface {
	CreateVenueBookings(ctx context.Context, bookings []*models.VenueBooking, stage models.VenueOutboxStage) error
	GetVenueBooking(ctx context.Context, id int64) (*models.VenueBooking, error)
	GetActiveVenueBookings(ctx context.Context, venueID int64, date string) ([]*models.VenueBooking, error)
	ListVenueBookings(ctx context.Context, filter models.BookingFilter) ([]*models.VenueBooking, error)
	RescheduleVenueBooking(ctx context.Context, id, fromVersion int64, date string, slot models.TimeSlot, stage models.VenueOutboxStage) error
	CancelVenueBooking(ctx context.Context, id, fromVersion int64, stage models.VenueOutboxStage) error

	CreateActivityBooking(ctx context.Context, booking *models.ActivityBooking, stage models.ActivityOutboxStage) error
	GetActivityBooking(ctx context.Context, id int64) (*models.ActivityBooking, error)
	ListActivityBookings(ctx context.Context, filter models.BookingFilter) ([]*models.ActivityBooking, error)
	UpdateActivityBookingQuantity(ctx context.Context, id, fromVersion int64, quantity int, stage models.ActivityOutboxStage) (*models.ActivityBooking, error)
	CancelActivityBooking(ctx context.Context, id, fromVersion int64, stage models.ActivityOutboxStage) error
}

// Repository is everything the booking service needs from storage.
type Repository interface {
	CatalogStore
	Ledger
}

// ReleaseFunc gives a lock back. It must be called exactly once.
type ReleaseFunc func(ctx context.Context) error

// Locker serializes work on one booking key. Acquire blocks until the key is free
// or ctx is done.
type Locker interface {
	Acquire(ctx context.Context, key string) (ReleaseFunc, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// OutboxDispatcher hands already committed outbox rows to the relay's fast path.
// Rows it drops are still found by polling.
type OutboxDispatcher interface {
	Dispatch(ctx context.Context, events []*models.OutboxEvent)
}

// OutboxInspector reports on events the relay gave up on.
type OutboxInspector interface {
	GetFailedOutboxEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error)
}

// BrokerPublisher delivers one message to the external broker.
type BrokerPublisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// Clock is injected so lock-in and past/upcoming decisions are testable.
type Clock interface {
	Now() time.Time
}

type BookingService interface {
	GetAvailableSlots(ctx context.Context, venueID int64, date string) (*models.SlotAvailability, error)
	CreateVenueBooking(ctx context.Context, who models.Requester, venueID int64, date string, slots []string) ([]*models.VenueBooking, error)
	GetVenueBooking(ctx context.Context, who models.Requester, id int64) (*models.VenueBooking, error)
	RescheduleVenueBooking(ctx context.Context, who models.Requester, id int64, date, slot string) (*models.VenueBooking, error)
	CancelVenueBooking(ctx context.Context, who models.Requester, id int64) error
	FindVenueBookings(ctx context.Context, who models.Requester, filter models.BookingFilter) (*models.VenueBookingSplit, error)

	CreateActivityBooking(ctx context.Context, who models.Requester, activityID int64, quantity int) (*models.ActivityBooking, error)
	GetActivityBooking(ctx context.Context, who models.Requester, id int64) (*models.ActivityBooking, error)
	UpdateActivityBooking(ctx context.Context, who models.Requester, id int64, quantity int) (*models.ActivityBooking, error)
	CancelActivityBooking(ctx context.Context, who models.Requester, id int64) error
	FindActivityBookings(ctx context.Context, who models.Requester, filter models.BookingFilter) (*models.ActivityBookingSplit, error)
}

type CatalogService interface {
	ListVenues(ctx context.Context) ([]*models.Venue, error)
	GetVenue(ctx context.Context, id int64) (*models.Venue, error)
	ListActivities(ctx context.Context) ([]*models.Activity, error)
	GetActivity(ctx context.Context, id int64) (*models.Activity, error)
}

// BookingExporter renders ledger contents into a spreadsheet.
type BookingExporter interface {
	WriteBookings(w io.Writer, venues []*models.VenueBooking, activities []*models.ActivityBooking) error
}
