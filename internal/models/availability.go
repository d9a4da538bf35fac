package models

// SlotAvailability is the set of free template slots of one venue on one date.
// Message is set instead of an error when the weekday has no template.
type SlotAvailability struct {
	VenueID int64      `json:"venue_id"`
	Date    string     `json:"date"`
	Weekday string     `json:"weekday"`
	Slots   []TimeSlot `json:"slots"`
	Message string     `json:"message,omitempty"`
}

type VenueBookingSplit struct {
	Past     []*VenueBooking `json:"past"`
	Upcoming []*VenueBooking `json:"upcoming"`
}

type ActivityBookingSplit struct {
	Past     []*ActivityBooking `json:"past"`
	Upcoming []*ActivityBooking `json:"upcoming"`
}
