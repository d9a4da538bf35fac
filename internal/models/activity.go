package models

import (
	"fmt"
	"time"
)

type Activity struct {
	ID       int64   `json:"id" yaml:"id"`
	Name     string  `json:"name" yaml:"name"`
	HostID   int64   `json:"host_id" yaml:"host_id"`
	VenueID  int64   `json:"venue_id,omitempty" yaml:"venue_id"`
	Date     string  `json:"date" yaml:"date"` // 2006-01-02
	Time     string  `json:"time" yaml:"time"` // 15:04
	Price    float64 `json:"price" yaml:"price"`
	Capacity int     `json:"capacity" yaml:"capacity"`
	// ParticipantsLimit is the number of seats still free.
	ParticipantsLimit int       `json:"participants_limit" yaml:"-"`
	Participants      []int64   `json:"participants" yaml:"-"`
	CreatedAt         time.Time `json:"created_at" yaml:"-"`
	UpdatedAt         time.Time `json:"updated_at" yaml:"-"`
}

// ScheduledAt combines the activity date and time in loc.
func (a *Activity) ScheduledAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	at, err := time.ParseInLocation(DateLayout+" "+ClockLayout, a.Date+" "+a.Time, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("activity %d schedule %q %q: %w", a.ID, a.Date, a.Time, err)
	}
	return at, nil
}
