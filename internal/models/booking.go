package models

import (
	"fmt"
	"time"
)

type VenueBooking struct {
	ID        int64     `json:"id"`
	VenueID   int64     `json:"venue_id"`
	UserID    int64     `json:"user_id"`
	Date      string    `json:"booking_date"`
	Slot      TimeSlot  `json:"time_slot"`
	Status    string    `json:"status"` // booked, cancelled
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

// StartsAt is the booking date combined with the slot start in loc.
func (b *VenueBooking) StartsAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	at, err := time.ParseInLocation(DateLayout+" "+ClockLayout, b.Date+" "+b.Slot.From, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("venue booking %d start: %w", b.ID, err)
	}
	return at, nil
}

func (b *VenueBooking) IsActive() bool {
	return b.Status == StatusBooked
}

type ActivityBooking struct {
	ID         int64     `json:"id"`
	ActivityID int64     `json:"activity_id"`
	UserID     int64     `json:"user_id"`
	Quantity   int       `json:"booking_quantity"`
	Price      float64   `json:"booking_price"`
	Status     string    `json:"booking_status"` // booked, cancelled
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Version    int64     `json:"version"`

	// Filled by list queries so callers can split past/upcoming without a second lookup.
	ActivityDate string `json:"activity_date,omitempty"`
	ActivityTime string `json:"activity_time,omitempty"`
}

func (b *ActivityBooking) IsActive() bool {
	return b.Status == StatusBooked
}

// StartsAt uses the joined activity schedule.
func (b *ActivityBooking) StartsAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	at, err := time.ParseInLocation(DateLayout+" "+ClockLayout, b.ActivityDate+" "+b.ActivityTime, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("activity booking %d start: %w", b.ID, err)
	}
	return at, nil
}

// BookingFilter narrows ledger listings; zero fields are ignored.
type BookingFilter struct {
	VenueID    int64
	ActivityID int64
	UserID     int64
	From       string // inclusive, 2006-01-02
	To         string // inclusive, 2006-01-02
}
