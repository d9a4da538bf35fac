package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"venuebook/internal/domain"
	"venuebook/internal/events"
	"venuebook/internal/metrics"
	"venuebook/internal/models"
	"venuebook/internal/repository"

	"github.com/rs/zerolog"
)

// Options tune the admission and lock-in rules.
type Options struct {
	LockIn   time.Duration
	Location *time.Location
	LockWait time.Duration
	Clock    domain.Clock
}

type BookingService struct {
	repo     domain.Repository
	locker   domain.Locker
	index    *AvailabilityIndex
	eventBus domain.EventPublisher
	outbox   domain.OutboxDispatcher
	lockIn   time.Duration
	loc      *time.Location
	lockWait time.Duration
	clock    domain.Clock
	logger   *zerolog.Logger
}

func NewBookingService(
	repo domain.Repository,
	locker domain.Locker,
	eventBus domain.EventPublisher,
	outbox domain.OutboxDispatcher,
	opts Options,
	logger *zerolog.Logger,
) *BookingService {
	if locker == nil {
		locker = repository.NewMemoryLocker()
	}
	if opts.LockIn <= 0 {
		opts.LockIn = models.DefaultLockInHours * time.Hour
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.LockWait <= 0 {
		opts.LockWait = 5 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BookingService{
		repo:     repo,
		locker:   locker,
		index:    NewAvailabilityIndex(repo),
		eventBus: eventBus,
		outbox:   outbox,
		lockIn:   opts.LockIn,
		loc:      opts.Location,
		lockWait: opts.LockWait,
		clock:    opts.Clock,
		logger:   logger,
	}
}

// CreateVenueBooking admits every requested slot of one venue and date, or none.
func (s *BookingService) CreateVenueBooking(ctx context.Context, who models.Requester, venueID int64, date string, rawSlots []string) ([]*models.VenueBooking, error) {
	var batch outboxBatch
	bookings, err := s.admitVenue(ctx, who, venueID, date, rawSlots, &batch)
	s.recordAdmission(models.ResourceVenue, err)
	if err != nil {
		return nil, err
	}

	s.dispatch(ctx, &batch)
	for _, b := range bookings {
		s.notify(events.EventVenueBookingCreated, venuePayload(b), who)
	}
	return bookings, nil
}

func (s *BookingService) admitVenue(ctx context.Context, who models.Requester, venueID int64, date string, rawSlots []string, batch *outboxBatch) ([]*models.VenueBooking, error) {
	if err := requireIdentity(who); err != nil {
		return nil, err
	}
	day, err := s.parseDate(date)
	if err != nil {
		return nil, err
	}
	requested, err := normalizeSlots(rawSlots)
	if err != nil {
		return nil, err
	}

	venue, err := s.repo.GetVenue(ctx, venueID)
	if err != nil {
		return nil, translate(err)
	}

	dateKey := day.Format(models.DateLayout)
	offered := venue.SlotsFor(day.Weekday())
	slots := make([]models.TimeSlot, 0, len(requested))
	keys := make([]string, 0, len(requested))
	for _, r := range requested {
		slot, ok := containsSlot(offered, r)
		if !ok {
			return nil, newError(KindInvalidSlot, "slot %s is not offered by venue %d on %s", r, venue.ID, models.WeekdayName(day.Weekday()))
		}
		start, err := (&models.VenueBooking{Date: dateKey, Slot: slot}).StartsAt(s.loc)
		if err != nil {
			return nil, translate(err)
		}
		if start.Before(s.clock.Now()) {
			return nil, newError(KindInvalidDate, "slot %s on %s has already started", slot, dateKey)
		}
		slots = append(slots, slot)
		keys = append(keys, venueLockKey(venue.ID, dateKey, slot))
	}

	unlock, err := s.lock(ctx, keys...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	_, available, err := s.index.VenueSlots(ctx, venue, day)
	if err != nil {
		return nil, translate(err)
	}
	for _, slot := range slots {
		if _, free := containsSlot(available, slot); !free {
			return nil, newError(KindSlotConflict, "slot %s on %s is already booked", slot, dateKey)
		}
	}

	bookings := make([]*models.VenueBooking, 0, len(slots))
	for _, slot := range slots {
		bookings = append(bookings, &models.VenueBooking{
			VenueID: venue.ID,
			UserID:  who.UserID,
			Date:    dateKey,
			Slot:    slot,
		})
	}
	if err := s.repo.CreateVenueBookings(ctx, bookings, s.venueStage(events.EventVenueBookingCreated, who, batch)); err != nil {
		return nil, translate(err)
	}

	s.logger.Info().
		Int64("venue_id", venue.ID).
		Str("date", dateKey).
		Int("slots", len(bookings)).
		Int64("user_id", who.UserID).
		Msg("venue booking admitted")
	return bookings, nil
}

// CreateActivityBooking takes quantity seats of an activity for the requester.
func (s *BookingService) CreateActivityBooking(ctx context.Context, who models.Requester, activityID int64, quantity int) (*models.ActivityBooking, error) {
	var batch outboxBatch
	booking, err := s.admitActivity(ctx, who, activityID, quantity, &batch)
	s.recordAdmission(models.ResourceActivity, err)
	if err != nil {
		return nil, err
	}

	s.dispatch(ctx, &batch)
	s.notify(events.EventActivityBookingCreated, activityPayload(booking), who)
	return booking, nil
}

func (s *BookingService) admitActivity(ctx context.Context, who models.Requester, activityID int64, quantity int, batch *outboxBatch) (*models.ActivityBooking, error) {
	if err := requireIdentity(who); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, newError(KindInvalidRequest, "quantity must be at least 1, got %d", quantity)
	}

	activity, err := s.repo.GetActivity(ctx, activityID)
	if err != nil {
		return nil, translate(err)
	}
	start, err := activity.ScheduledAt(s.loc)
	if err != nil {
		return nil, translate(err)
	}
	if start.Before(s.clock.Now()) {
		return nil, newError(KindInvalidDate, "activity %d has already started", activity.ID)
	}

	unlock, err := s.lock(ctx, activityLockKey(activity.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	seats, err := s.index.ActivitySeats(ctx, activity.ID)
	if err != nil {
		return nil, translate(err)
	}
	if quantity > seats {
		return nil, newError(KindCapacityExceeded, "only %d participant slots left for activity %d", seats, activity.ID)
	}

	booking := &models.ActivityBooking{
		ActivityID: activity.ID,
		UserID:     who.UserID,
		Quantity:   quantity,
	}
	if err := s.repo.CreateActivityBooking(ctx, booking, s.activityStage(events.EventActivityBookingCreated, who, batch)); err != nil {
		return nil, translate(err)
	}

	s.logger.Info().
		Int64("activity_id", activity.ID).
		Int64("booking_id", booking.ID).
		Int("quantity", quantity).
		Int64("user_id", who.UserID).
		Msg("activity booking admitted")
	return booking, nil
}

// lock takes every key in sorted order so two batches never wait on each other in a cycle.
// The returned func releases in reverse order and survives a cancelled request context.
func (s *BookingService) lock(ctx context.Context, keys ...string) (func(), error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	waitCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	started := time.Now()
	releases := make([]domain.ReleaseFunc, 0, len(sorted))
	unlock := func() {
		releaseCtx := context.WithoutCancel(ctx)
		for i := len(releases) - 1; i >= 0; i-- {
			if err := releases[i](releaseCtx); err != nil {
				s.logger.Warn().Err(err).Msg("release booking lock")
			}
		}
	}

	for i, key := range sorted {
		if i > 0 && key == sorted[i-1] {
			continue
		}
		release, err := s.locker.Acquire(waitCtx, key)
		if err != nil {
			unlock()
			return nil, translate(err)
		}
		releases = append(releases, release)
	}
	metrics.ObserveLockWait(time.Since(started))
	return unlock, nil
}

func (s *BookingService) recordAdmission(resource string, err error) {
	outcome := "admitted"
	if err != nil {
		outcome = string(KindOf(err))
	}
	metrics.IncAdmission(resource, outcome)
}

// outboxBatch holds the rows a ledger write staged, for dispatch once it has committed.
type outboxBatch struct {
	rows []*models.OutboxEvent
}

func (s *BookingService) stamp(payload events.BookingEventPayload, who models.Requester) events.BookingEventPayload {
	payload.ChangedByID = who.UserID
	payload.ChangedByRole = string(who.Role)
	payload.OccurredAt = s.clock.Now().UTC()
	return payload
}

// venueStage builds the outbox rows committed with a venue ledger write. Without a relay
// nothing is staged.
func (s *BookingService) venueStage(eventType string, who models.Requester, batch *outboxBatch) models.VenueOutboxStage {
	if s.outbox == nil {
		return nil
	}
	return func(bookings []*models.VenueBooking) ([]*models.OutboxEvent, error) {
		rows := make([]*models.OutboxEvent, 0, len(bookings))
		for _, b := range bookings {
			row, err := s.stamp(venuePayload(b), who).OutboxRow(eventType)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
		batch.rows = rows
		return rows, nil
	}
}

func (s *BookingService) activityStage(eventType string, who models.Requester, batch *outboxBatch) models.ActivityOutboxStage {
	if s.outbox == nil {
		return nil
	}
	return func(b *models.ActivityBooking) ([]*models.OutboxEvent, error) {
		row, err := s.stamp(activityPayload(b), who).OutboxRow(eventType)
		if err != nil {
			return nil, err
		}
		batch.rows = []*models.OutboxEvent{row}
		return batch.rows, nil
	}
}

// dispatch passes committed rows to the relay. It ignores cancellation of the request:
// the rows are durable either way, and the relay polls for anything it misses.
func (s *BookingService) dispatch(ctx context.Context, batch *outboxBatch) {
	if s.outbox == nil || len(batch.rows) == 0 {
		return
	}
	s.outbox.Dispatch(context.WithoutCancel(ctx), batch.rows)
}

// notify publishes to in-process subscribers.
func (s *BookingService) notify(eventType string, payload events.BookingEventPayload, who models.Requester) {
	if s.eventBus == nil {
		return
	}
	payload = s.stamp(payload, who)
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", payload.BookingID).Msg("publish event error")
	}
}

func venuePayload(b *models.VenueBooking) events.BookingEventPayload {
	return events.BookingEventPayload{
		Resource:   models.ResourceVenue,
		BookingID:  b.ID,
		ResourceID: b.VenueID,
		UserID:     b.UserID,
		Date:       b.Date,
		Slot:       b.Slot.String(),
		Status:     b.Status,
	}
}

func activityPayload(b *models.ActivityBooking) events.BookingEventPayload {
	return events.BookingEventPayload{
		Resource:   models.ResourceActivity,
		BookingID:  b.ID,
		ResourceID: b.ActivityID,
		UserID:     b.UserID,
		Date:       b.ActivityDate,
		Quantity:   b.Quantity,
		Price:      b.Price,
		Status:     b.Status,
	}
}

// normalizeSlots parses "HH:MM - HH:MM" strings and drops repeats, keeping first-seen order.
func normalizeSlots(raw []string) ([]models.TimeSlot, error) {
	if len(raw) == 0 {
		return nil, newError(KindInvalidSlot, "at least one time slot is required")
	}
	if len(raw) > models.MaxSlotsPerRequest {
		return nil, newError(KindInvalidRequest, "at most %d time slots per request", models.MaxSlotsPerRequest)
	}

	seen := make(map[string]bool, len(raw))
	slots := make([]models.TimeSlot, 0, len(raw))
	for _, r := range raw {
		slot, err := models.ParseTimeSlot(r)
		if err != nil {
			return nil, &Error{Kind: KindInvalidSlot, Message: err.Error(), Err: err}
		}
		if seen[slot.Key()] {
			continue
		}
		seen[slot.Key()] = true
		slots = append(slots, slot)
	}
	return slots, nil
}

func requireIdentity(who models.Requester) error {
	if who.UserID <= 0 {
		return newError(KindUnauthorized, "requester identity is required")
	}
	return nil
}

func venueLockKey(venueID int64, date string, slot models.TimeSlot) string {
	return fmt.Sprintf("venue:%d:%s:%s", venueID, date, slot.Key())
}

func activityLockKey(activityID int64) string {
	return fmt.Sprintf("activity:%d", activityID)
}
