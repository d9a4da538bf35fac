package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"venuebook/internal/models"
)

// Event types double as AMQP routing keys.
const (
	EventVenueBookingCreated      = "booking.venue.created"
	EventVenueBookingRescheduled  = "booking.venue.rescheduled"
	EventVenueBookingCancelled    = "booking.venue.cancelled"
	EventActivityBookingCreated   = "booking.activity.created"
	EventActivityBookingUpdated   = "booking.activity.updated"
	EventActivityBookingCancelled = "booking.activity.cancelled"
)

// AllBookingEvents lists every type the booking service emits.
var AllBookingEvents = []string{
	EventVenueBookingCreated,
	EventVenueBookingRescheduled,
	EventVenueBookingCancelled,
	EventActivityBookingCreated,
	EventActivityBookingUpdated,
	EventActivityBookingCancelled,
}

// BookingEventPayload describes the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	Resource      string    `json:"resource"`
	BookingID     int64     `json:"booking_id"`
	ResourceID    int64     `json:"resource_id"`
	UserID        int64     `json:"user_id"`
	Date          string    `json:"date"`
	Slot          string    `json:"slot,omitempty"`
	Quantity      int       `json:"quantity,omitempty"`
	Price         float64   `json:"price,omitempty"`
	Status        string    `json:"status"`
	ChangedByID   int64     `json:"changed_by_id,omitempty"`
	ChangedByRole string    `json:"changed_by_role,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// OutboxRow encodes the payload as a pending outbox row routed by eventType.
func (p BookingEventPayload) OutboxRow(eventType string) (*models.OutboxEvent, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return &models.OutboxEvent{
		EventType: eventType,
		Resource:  p.Resource,
		BookingID: p.BookingID,
		Payload:   string(body),
		Status:    models.OutboxPending,
	}, nil
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
	Processed bool
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	onError     func(event *Event, err error)
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// OnError sets a callback for handler failures. Without one they are dropped.
func (b *EventBus) OnError(fn func(event *Event, err error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// SubscribeAll registers the handler for each of the given types.
func (b *EventBus) SubscribeAll(eventTypes []string, handler EventHandler) {
	for _, t := range eventTypes {
		b.Subscribe(t, handler)
	}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	onError := b.onError
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
