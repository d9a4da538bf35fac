package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"venuebook/internal/domain"
	"venuebook/internal/models"
)

// AvailabilityIndex derives free units from the catalog and the ledger on every call.
// Nothing is cached: each admission decision reads the current state.
type AvailabilityIndex struct {
	repo domain.Repository
}

func NewAvailabilityIndex(repo domain.Repository) *AvailabilityIndex {
	return &AvailabilityIndex{repo: repo}
}

// VenueSlots returns the weekday template and the subset not held by an active booking,
// both in template order. An empty template yields no candidates and no error.
func (ix *AvailabilityIndex) VenueSlots(ctx context.Context, venue *models.Venue, day time.Time) (candidates, available []models.TimeSlot, err error) {
	candidates = venue.SlotsFor(day.Weekday())
	if len(candidates) == 0 {
		return nil, []models.TimeSlot{}, nil
	}

	active, err := ix.repo.GetActiveVenueBookings(ctx, venue.ID, day.Format(models.DateLayout))
	if err != nil {
		return nil, nil, err
	}
	taken := make(map[string]bool, len(active))
	for _, b := range active {
		taken[b.Slot.Key()] = true
	}

	available = make([]models.TimeSlot, 0, len(candidates))
	for _, slot := range candidates {
		if !taken[slot.Key()] {
			available = append(available, slot)
		}
	}
	return candidates, available, nil
}

// ActivitySeats is the current participants limit.
func (ix *AvailabilityIndex) ActivitySeats(ctx context.Context, activityID int64) (int, error) {
	activity, err := ix.repo.GetActivity(ctx, activityID)
	if err != nil {
		return 0, err
	}
	return activity.ParticipantsLimit, nil
}

// GetAvailableSlots lists the free slots of a venue on a date.
func (s *BookingService) GetAvailableSlots(ctx context.Context, venueID int64, date string) (*models.SlotAvailability, error) {
	day, err := s.parseDate(date)
	if err != nil {
		return nil, err
	}

	venue, err := s.repo.GetVenue(ctx, venueID)
	if err != nil {
		return nil, translate(err)
	}

	candidates, available, err := s.index.VenueSlots(ctx, venue, day)
	if err != nil {
		return nil, translate(err)
	}

	result := &models.SlotAvailability{
		VenueID: venue.ID,
		Date:    day.Format(models.DateLayout),
		Weekday: models.WeekdayName(day.Weekday()),
		Slots:   available,
	}
	if len(candidates) == 0 {
		result.Message = fmt.Sprintf("venue %d has no slots on %s", venue.ID, result.Weekday)
	}
	return result, nil
}

// parseDate reads a calendar date in the booking time zone.
func (s *BookingService) parseDate(raw string) (time.Time, error) {
	day, err := time.ParseInLocation(models.DateLayout, strings.TrimSpace(raw), s.loc)
	if err != nil {
		return time.Time{}, newError(KindInvalidDate, "invalid date %q, expected YYYY-MM-DD", raw)
	}
	return day, nil
}

func containsSlot(slots []models.TimeSlot, slot models.TimeSlot) (models.TimeSlot, bool) {
	for _, s := range slots {
		if s.Key() == slot.Key() {
			return s, true
		}
	}
	return models.TimeSlot{}, false
}
