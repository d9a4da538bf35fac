package service

import (
	"context"
	"time"

	"venuebook/internal/events"
	"venuebook/internal/models"
)

// checkLockIn rejects changes once now reaches start minus the lock-in window.
func (s *BookingService) checkLockIn(start time.Time) error {
	cutoff := start.Add(-s.lockIn)
	if !s.clock.Now().Before(cutoff) {
		return newError(KindLockedWindow, "bookings cannot be changed within %s of the start at %s",
			s.lockIn, start.Format(models.DateLayout+" "+models.ClockLayout))
	}
	return nil
}

func authorize(who models.Requester, ownerID int64) error {
	if err := requireIdentity(who); err != nil {
		return err
	}
	if !who.CanActFor(ownerID) {
		return newError(KindUnauthorized, "user %d may not act on this booking", who.UserID)
	}
	return nil
}

// UpdateActivityBooking changes the seat count of a booking outside the lock-in window.
func (s *BookingService) UpdateActivityBooking(ctx context.Context, who models.Requester, id int64, quantity int) (*models.ActivityBooking, error) {
	if quantity < 1 {
		return nil, newError(KindInvalidRequest, "quantity must be at least 1, got %d", quantity)
	}

	booking, err := s.guardActivityBooking(ctx, who, id)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, activityLockKey(booking.ActivityID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Re-read under the lock: the version and quantity we change from must be current.
	current, err := s.repo.GetActivityBooking(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if !current.IsActive() {
		return nil, newError(KindAlreadyCancelled, "activity booking %d is already cancelled", id)
	}

	delta := quantity - current.Quantity
	if delta == 0 {
		return current, nil
	}
	if delta > 0 {
		seats, err := s.index.ActivitySeats(ctx, current.ActivityID)
		if err != nil {
			return nil, translate(err)
		}
		if delta > seats {
			return nil, newError(KindCapacityExceeded, "only %d participant slots left for activity %d", seats, current.ActivityID)
		}
	}

	var batch outboxBatch
	updated, err := s.repo.UpdateActivityBookingQuantity(ctx, id, current.Version, quantity,
		s.activityStage(events.EventActivityBookingUpdated, who, &batch))
	if err != nil {
		return nil, translate(err)
	}

	s.logger.Info().Int64("booking_id", id).Int("from", current.Quantity).Int("to", quantity).Msg("activity booking updated")
	s.dispatch(ctx, &batch)
	s.notify(events.EventActivityBookingUpdated, activityPayload(updated), who)
	return updated, nil
}

// CancelActivityBooking returns the booking's seats to the activity.
func (s *BookingService) CancelActivityBooking(ctx context.Context, who models.Requester, id int64) error {
	booking, err := s.guardActivityBooking(ctx, who, id)
	if err != nil {
		return err
	}

	unlock, err := s.lock(ctx, activityLockKey(booking.ActivityID))
	if err != nil {
		return err
	}
	defer unlock()

	current, err := s.repo.GetActivityBooking(ctx, id)
	if err != nil {
		return translate(err)
	}
	var batch outboxBatch
	if err := s.repo.CancelActivityBooking(ctx, id, current.Version, s.activityStage(events.EventActivityBookingCancelled, who, &batch)); err != nil {
		return translate(err)
	}

	current.Status = models.StatusCancelled
	s.logger.Info().Int64("booking_id", id).Int("quantity", current.Quantity).Msg("activity booking cancelled")
	s.dispatch(ctx, &batch)
	s.notify(events.EventActivityBookingCancelled, activityPayload(current), who)
	return nil
}

// guardActivityBooking loads a booking and applies ownership, status and lock-in checks.
func (s *BookingService) guardActivityBooking(ctx context.Context, who models.Requester, id int64) (*models.ActivityBooking, error) {
	if err := requireIdentity(who); err != nil {
		return nil, err
	}
	booking, err := s.repo.GetActivityBooking(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if err := authorize(who, booking.UserID); err != nil {
		return nil, err
	}
	if !booking.IsActive() {
		return nil, newError(KindAlreadyCancelled, "activity booking %d is already cancelled", id)
	}
	start, err := booking.StartsAt(s.loc)
	if err != nil {
		return nil, translate(err)
	}
	if err := s.checkLockIn(start); err != nil {
		return nil, err
	}
	return booking, nil
}

// RescheduleVenueBooking moves a booking to another date and template slot of the same venue.
func (s *BookingService) RescheduleVenueBooking(ctx context.Context, who models.Requester, id int64, date, rawSlot string) (*models.VenueBooking, error) {
	booking, err := s.guardVenueBooking(ctx, who, id)
	if err != nil {
		return nil, err
	}

	day, err := s.parseDate(date)
	if err != nil {
		return nil, err
	}
	slots, err := normalizeSlots([]string{rawSlot})
	if err != nil {
		return nil, err
	}
	venue, err := s.repo.GetVenue(ctx, booking.VenueID)
	if err != nil {
		return nil, translate(err)
	}
	slot, ok := containsSlot(venue.SlotsFor(day.Weekday()), slots[0])
	if !ok {
		return nil, newError(KindInvalidSlot, "slot %s is not offered by venue %d on %s", slots[0], venue.ID, models.WeekdayName(day.Weekday()))
	}

	target := &models.VenueBooking{ID: id, Date: day.Format(models.DateLayout), Slot: slot}
	if target.Date == booking.Date && target.Slot == booking.Slot {
		return booking, nil
	}
	newStart, err := target.StartsAt(s.loc)
	if err != nil {
		return nil, translate(err)
	}
	if err := s.checkLockIn(newStart); err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx,
		venueLockKey(booking.VenueID, booking.Date, booking.Slot),
		venueLockKey(venue.ID, target.Date, slot),
	)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.repo.GetVenueBooking(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if !current.IsActive() {
		return nil, newError(KindAlreadyCancelled, "venue booking %d is already cancelled", id)
	}
	_, available, err := s.index.VenueSlots(ctx, venue, day)
	if err != nil {
		return nil, translate(err)
	}
	if _, free := containsSlot(available, slot); !free {
		return nil, newError(KindSlotConflict, "slot %s on %s is already booked", slot, target.Date)
	}

	var batch outboxBatch
	if err := s.repo.RescheduleVenueBooking(ctx, id, current.Version, target.Date, slot,
		s.venueStage(events.EventVenueBookingRescheduled, who, &batch)); err != nil {
		return nil, translate(err)
	}
	s.dispatch(ctx, &batch)
	updated, err := s.repo.GetVenueBooking(ctx, id)
	if err != nil {
		return nil, translate(err)
	}

	s.logger.Info().Int64("booking_id", id).Str("date", updated.Date).Str("slot", updated.Slot.Key()).Msg("venue booking rescheduled")
	s.notify(events.EventVenueBookingRescheduled, venuePayload(updated), who)
	return updated, nil
}

// CancelVenueBooking frees the booked slot.
func (s *BookingService) CancelVenueBooking(ctx context.Context, who models.Requester, id int64) error {
	booking, err := s.guardVenueBooking(ctx, who, id)
	if err != nil {
		return err
	}

	unlock, err := s.lock(ctx, venueLockKey(booking.VenueID, booking.Date, booking.Slot))
	if err != nil {
		return err
	}
	defer unlock()

	current, err := s.repo.GetVenueBooking(ctx, id)
	if err != nil {
		return translate(err)
	}
	var batch outboxBatch
	if err := s.repo.CancelVenueBooking(ctx, id, current.Version, s.venueStage(events.EventVenueBookingCancelled, who, &batch)); err != nil {
		return translate(err)
	}

	current.Status = models.StatusCancelled
	s.logger.Info().Int64("booking_id", id).Msg("venue booking cancelled")
	s.dispatch(ctx, &batch)
	s.notify(events.EventVenueBookingCancelled, venuePayload(current), who)
	return nil
}

func (s *BookingService) guardVenueBooking(ctx context.Context, who models.Requester, id int64) (*models.VenueBooking, error) {
	if err := requireIdentity(who); err != nil {
		return nil, err
	}
	booking, err := s.repo.GetVenueBooking(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if err := authorize(who, booking.UserID); err != nil {
		return nil, err
	}
	if !booking.IsActive() {
		return nil, newError(KindAlreadyCancelled, "venue booking %d is already cancelled", id)
	}
	start, err := booking.StartsAt(s.loc)
	if err != nil {
		return nil, translate(err)
	}
	if err := s.checkLockIn(start); err != nil {
		return nil, err
	}
	return booking, nil
}
