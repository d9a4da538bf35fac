package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"venuebook/internal/export"
	"venuebook/internal/models"
	"venuebook/internal/service"
)

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleListVenues(w http.ResponseWriter, r *http.Request) {
	venues, err := s.catalog.ListVenues(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if venues == nil {
		venues = []*models.Venue{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"venues": venues})
}

func (s *HTTPServer) handleListActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := s.catalog.ListActivities(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if activities == nil {
		activities = []*models.Activity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": activities})
}

func (s *HTTPServer) handleGetVenue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "venue_id")
	if !ok {
		return
	}
	venue, err := s.catalog.GetVenue(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, venue)
}

func (s *HTTPServer) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "activity_id")
	if !ok {
		return
	}
	activity, err := s.catalog.GetActivity(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, activity)
}

func (s *HTTPServer) handleAvailableSlots(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "venue_id")
	if !ok {
		return
	}
	req := GetAvailableSlotsRequest{VenueID: id, Date: strings.TrimSpace(r.URL.Query().Get("date"))}
	if err := validateRequest(r.Context(), &req); err != nil {
		writeServiceError(w, err)
		return
	}

	slots, err := s.booking.GetAvailableSlots(r.Context(), req.VenueID, req.Date)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func (s *HTTPServer) handleCreateVenueBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "venue_id")
	if !ok {
		return
	}
	var req CreateVenueBookingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.VenueID = id
	if err := validateRequest(r.Context(), &req); err != nil {
		writeServiceError(w, err)
		return
	}

	who, _ := RequesterFrom(r.Context())
	bookings, err := s.booking.CreateVenueBooking(r.Context(), who, req.VenueID, req.Date, req.TimeSlots)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateVenueBookingResponse{Bookings: bookings})
}

func (s *HTTPServer) handleCreateActivityBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "activity_id")
	if !ok {
		return
	}
	var req CreateActivityBookingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.ActivityID = id
	if err := validateRequest(r.Context(), &req); err != nil {
		writeServiceError(w, err)
		return
	}

	who, _ := RequesterFrom(r.Context())
	booking, err := s.booking.CreateActivityBooking(r.Context(), who, req.ActivityID, req.Quantity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleGetVenueBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	who, _ := RequesterFrom(r.Context())
	booking, err := s.booking.GetVenueBooking(r.Context(), who, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleRescheduleVenueBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req RescheduleVenueBookingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validateRequest(r.Context(), &req); err != nil {
		writeServiceError(w, err)
		return
	}

	who, _ := RequesterFrom(r.Context())
	booking, err := s.booking.RescheduleVenueBooking(r.Context(), who, id, req.Date, req.TimeSlot)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleCancelVenueBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	who, _ := RequesterFrom(r.Context())
	if err := s.booking.CancelVenueBooking(r.Context(), who, id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CancelBookingResponse{BookingID: id, Status: models.StatusCancelled})
}

func (s *HTTPServer) handleFindVenueBookings(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	who, _ := RequesterFrom(r.Context())
	split, err := s.booking.FindVenueBookings(r.Context(), who, filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, split)
}

func (s *HTTPServer) handleGetActivityBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	who, _ := RequesterFrom(r.Context())
	booking, err := s.booking.GetActivityBooking(r.Context(), who, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleUpdateActivityBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateActivityBookingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validateRequest(r.Context(), &req); err != nil {
		writeServiceError(w, err)
		return
	}

	who, _ := RequesterFrom(r.Context())
	booking, err := s.booking.UpdateActivityBooking(r.Context(), who, id, req.Quantity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleCancelActivityBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	who, _ := RequesterFrom(r.Context())
	if err := s.booking.CancelActivityBooking(r.Context(), who, id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CancelBookingResponse{BookingID: id, Status: models.StatusCancelled})
}

func (s *HTTPServer) handleFindActivityBookings(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	who, _ := RequesterFrom(r.Context())
	split, err := s.booking.FindActivityBookings(r.Context(), who, filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, split)
}

// handleExportBookings streams every booking in [from, to] as an xlsx workbook. Admin only.
func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	who, _ := RequesterFrom(r.Context())
	if !who.IsAdmin() {
		writeServiceError(w, &service.Error{Kind: service.KindUnauthorized, Message: "export is limited to admins"})
		return
	}
	if s.exporter == nil {
		writeError(w, http.StatusNotFound, "exports are disabled")
		return
	}

	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}

	venues, err := s.booking.FindVenueBookings(r.Context(), who, filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	activities, err := s.booking.FindActivityBookings(r.Context(), who, filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	err = s.exporter.WriteBookings(&buf,
		slices.Concat(venues.Past, venues.Upcoming),
		slices.Concat(activities.Past, activities.Upcoming),
	)
	if errors.Is(err, export.ErrTooManyRows) {
		writeServiceError(w, &service.Error{Kind: service.KindInvalidRequest, Message: "too many bookings, narrow the date range", Err: err})
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("export bookings")
		writeServiceError(w, err)
		return
	}

	name := fmt.Sprintf("bookings_%s.xlsx", time.Now().UTC().Format("2006-01-02_15-04-05"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

const (
	defaultFailedOutboxLimit = 50
	maxFailedOutboxLimit     = 500
)

// handleFailedOutbox lists the events the relay dead-lettered, newest first.
func (s *HTTPServer) handleFailedOutbox(w http.ResponseWriter, r *http.Request) {
	who, _ := RequesterFrom(r.Context())
	if !who.IsAdmin() {
		writeServiceError(w, &service.Error{Kind: service.KindUnauthorized, Message: "outbox inspection is limited to admins"})
		return
	}
	if s.outbox == nil {
		writeError(w, http.StatusNotFound, "outbox relay is disabled")
		return
	}

	limit := defaultFailedOutboxLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxFailedOutboxLimit {
			writeServiceError(w, &service.Error{Kind: service.KindInvalidRequest, Message: fmt.Sprintf("limit must be between 1 and %d", maxFailedOutboxLimit)})
			return
		}
		limit = n
	}

	failed, err := s.outbox.GetFailedOutboxEvents(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if failed == nil {
		failed = []models.OutboxEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": failed})
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeServiceError(w, &service.Error{Kind: service.KindInvalidRequest, Message: fmt.Sprintf("invalid %s %q", name, r.PathValue(name))})
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		writeServiceError(w, &service.Error{Kind: service.KindInvalidRequest, Message: "invalid JSON body", Err: err})
		return false
	}
	return true
}

func parseFilter(w http.ResponseWriter, r *http.Request) (models.BookingFilter, bool) {
	q := r.URL.Query()
	var filter models.BookingFilter
	for name, dst := range map[string]*int64{
		"venue_id":    &filter.VenueID,
		"activity_id": &filter.ActivityID,
		"user_id":     &filter.UserID,
	} {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v <= 0 {
			writeServiceError(w, &service.Error{Kind: service.KindInvalidRequest, Message: fmt.Sprintf("invalid %s %q", name, raw)})
			return filter, false
		}
		*dst = v
	}
	for name, dst := range map[string]*string{"from": &filter.From, "to": &filter.To} {
		raw := strings.TrimSpace(q.Get(name))
		if raw == "" {
			continue
		}
		if _, err := time.Parse(models.DateLayout, raw); err != nil {
			writeServiceError(w, &service.Error{Kind: service.KindInvalidDate, Message: fmt.Sprintf("invalid %s %q, expected YYYY-MM-DD", name, raw)})
			return filter, false
		}
		*dst = raw
	}
	return filter, true
}
