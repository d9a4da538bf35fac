package models

import (
	"fmt"
	"strings"
	"time"
)

// TimeSlot is a (from, to) interval of a venue's weekly template, both ends in "15:04".
type TimeSlot struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

func (s TimeSlot) String() string {
	return s.From + " - " + s.To
}

// Key is the compact form used in lock keys and error messages.
func (s TimeSlot) Key() string {
	return s.From + "-" + s.To
}

// ParseTimeSlot splits "HH:MM - HH:MM" on the delimiter and normalizes both halves.
func ParseTimeSlot(raw string) (TimeSlot, error) {
	parts := strings.Split(raw, SlotDelimiter)
	if len(parts) != 2 {
		return TimeSlot{}, fmt.Errorf("slot %q: expected \"HH:MM - HH:MM\"", raw)
	}
	return NewTimeSlot(parts[0], parts[1])
}

// NewTimeSlot validates both ends and returns them in canonical "15:04" form.
func NewTimeSlot(from, to string) (TimeSlot, error) {
	start, err := time.Parse(ClockLayout, strings.TrimSpace(from))
	if err != nil {
		return TimeSlot{}, fmt.Errorf("slot start %q: %w", from, err)
	}
	end, err := time.Parse(ClockLayout, strings.TrimSpace(to))
	if err != nil {
		return TimeSlot{}, fmt.Errorf("slot end %q: %w", to, err)
	}
	if !start.Before(end) {
		return TimeSlot{}, fmt.Errorf("slot %s-%s: start must be before end", from, to)
	}
	return TimeSlot{From: start.Format(ClockLayout), To: end.Format(ClockLayout)}, nil
}

// Overlaps reports whether two normalized slots share any minute.
func (s TimeSlot) Overlaps(other TimeSlot) bool {
	return s.From < other.To && other.From < s.To
}

// DayTimings lists the bookable slots of one weekday.
type DayTimings struct {
	Day   string     `json:"day" yaml:"day"`
	Times []TimeSlot `json:"times" yaml:"times"`
}

type Venue struct {
	ID           int64        `json:"id" yaml:"id"`
	Name         string       `json:"name" yaml:"name"`
	OwnerID      int64        `json:"owner_id" yaml:"owner_id"`
	Capacity     int          `json:"capacity" yaml:"capacity"`
	PricePerHour float64      `json:"price_per_hour" yaml:"price_per_hour"`
	Timings      []DayTimings `json:"timings" yaml:"timings"`
	CreatedAt    time.Time    `json:"created_at" yaml:"-"`
	UpdatedAt    time.Time    `json:"updated_at" yaml:"-"`
}

// SlotsFor returns the template for a weekday in declaration order, or nil.
func (v *Venue) SlotsFor(day time.Weekday) []TimeSlot {
	name := WeekdayName(day)
	for _, t := range v.Timings {
		if strings.EqualFold(strings.TrimSpace(t.Day), name) {
			return t.Times
		}
	}
	return nil
}

// WeekdayName is the lowercase English weekday used in venue timings.
func WeekdayName(day time.Weekday) string {
	return strings.ToLower(day.String())
}

// ParseWeekday accepts "monday" .. "sunday" in any case.
func ParseWeekday(name string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(strings.TrimSpace(name), d.String()) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", name)
}
