package api

import "venuebook/internal/models"

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type GetAvailableSlotsRequest struct {
	VenueID int64  `json:"venue_id" validate:"required"`
	Date    string `json:"date" validate:"required"`
}

type CreateVenueBookingRequest struct {
	VenueID   int64    `json:"venue_id" validate:"required"`
	Date      string   `json:"date" validate:"required"`
	TimeSlots []string `json:"time_slots" validate:"required,min=1,dive,required"`
}

type CreateVenueBookingResponse struct {
	Bookings []*models.VenueBooking `json:"bookings"`
}

type RescheduleVenueBookingRequest struct {
	Date     string `json:"date" validate:"required"`
	TimeSlot string `json:"time_slot" validate:"required"`
}

type CreateActivityBookingRequest struct {
	ActivityID int64 `json:"activity_id" validate:"required"`
	Quantity   int   `json:"quantity" validate:"gte=1"`
}

type UpdateActivityBookingRequest struct {
	Quantity int `json:"quantity" validate:"gte=1"`
}

type CancelActivityBookingRequest struct {
	BookingID int64 `json:"booking_id" validate:"required"`
}

type CancelBookingResponse struct {
	BookingID int64  `json:"booking_id"`
	Status    string `json:"status"`
}
