package service

import (
	"context"

	"venuebook/internal/models"
)

// FindVenueBookings lists venue bookings split around the current instant.
// Unfiltered listings are admin only; a user filter needs self or admin; a venue filter
// needs the venue owner or admin.
func (s *BookingService) FindVenueBookings(ctx context.Context, who models.Requester, filter models.BookingFilter) (*models.VenueBookingSplit, error) {
	if err := s.authorizeFilter(ctx, who, filter, s.venueOwner); err != nil {
		return nil, err
	}

	bookings, err := s.repo.ListVenueBookings(ctx, filter)
	if err != nil {
		return nil, translate(err)
	}

	now := s.clock.Now()
	split := &models.VenueBookingSplit{Past: []*models.VenueBooking{}, Upcoming: []*models.VenueBooking{}}
	for _, b := range bookings {
		start, err := b.StartsAt(s.loc)
		if err != nil {
			return nil, translate(err)
		}
		if start.Before(now) {
			split.Past = append(split.Past, b)
		} else {
			split.Upcoming = append(split.Upcoming, b)
		}
	}
	return split, nil
}

// FindActivityBookings is FindVenueBookings for activities; the host plays the owner.
func (s *BookingService) FindActivityBookings(ctx context.Context, who models.Requester, filter models.BookingFilter) (*models.ActivityBookingSplit, error) {
	if err := s.authorizeFilter(ctx, who, filter, s.activityHost); err != nil {
		return nil, err
	}

	bookings, err := s.repo.ListActivityBookings(ctx, filter)
	if err != nil {
		return nil, translate(err)
	}

	now := s.clock.Now()
	split := &models.ActivityBookingSplit{Past: []*models.ActivityBooking{}, Upcoming: []*models.ActivityBooking{}}
	for _, b := range bookings {
		start, err := b.StartsAt(s.loc)
		if err != nil {
			return nil, translate(err)
		}
		if start.Before(now) {
			split.Past = append(split.Past, b)
		} else {
			split.Upcoming = append(split.Upcoming, b)
		}
	}
	return split, nil
}

// GetVenueBooking returns one booking to its owner, the venue owner or an admin.
func (s *BookingService) GetVenueBooking(ctx context.Context, who models.Requester, id int64) (*models.VenueBooking, error) {
	if err := requireIdentity(who); err != nil {
		return nil, err
	}
	b, err := s.repo.GetVenueBooking(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if who.CanActFor(b.UserID) {
		return b, nil
	}
	owner, err := s.venueOwner(ctx, b.VenueID)
	if err != nil {
		return nil, err
	}
	if !who.CanActFor(owner) {
		return nil, newError(KindUnauthorized, "user %d may not view venue booking %d", who.UserID, id)
	}
	return b, nil
}

// GetActivityBooking returns one booking to its owner, the activity host or an admin.
func (s *BookingService) GetActivityBooking(ctx context.Context, who models.Requester, id int64) (*models.ActivityBooking, error) {
	if err := requireIdentity(who); err != nil {
		return nil, err
	}
	b, err := s.repo.GetActivityBooking(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if who.CanActFor(b.UserID) {
		return b, nil
	}
	host, err := s.activityHost(ctx, b.ActivityID)
	if err != nil {
		return nil, err
	}
	if !who.CanActFor(host) {
		return nil, newError(KindUnauthorized, "user %d may not view activity booking %d", who.UserID, id)
	}
	return b, nil
}

type ownerLookup func(ctx context.Context, resourceID int64) (int64, error)

func (s *BookingService) authorizeFilter(ctx context.Context, who models.Requester, filter models.BookingFilter, owner ownerLookup) error {
	if err := requireIdentity(who); err != nil {
		return err
	}
	if who.IsAdmin() {
		return nil
	}
	if filter.UserID != 0 && filter.UserID == who.UserID {
		return nil
	}

	resourceID := filter.VenueID
	if resourceID == 0 {
		resourceID = filter.ActivityID
	}
	if resourceID == 0 || filter.UserID != 0 {
		return newError(KindUnauthorized, "user %d may not list these bookings", who.UserID)
	}

	ownerID, err := owner(ctx, resourceID)
	if err != nil {
		return err
	}
	if ownerID != who.UserID {
		return newError(KindUnauthorized, "user %d does not manage resource %d", who.UserID, resourceID)
	}
	return nil
}

func (s *BookingService) venueOwner(ctx context.Context, venueID int64) (int64, error) {
	v, err := s.repo.GetVenue(ctx, venueID)
	if err != nil {
		return 0, translate(err)
	}
	return v.OwnerID, nil
}

func (s *BookingService) activityHost(ctx context.Context, activityID int64) (int64, error) {
	a, err := s.repo.GetActivity(ctx, activityID)
	if err != nil {
		return 0, translate(err)
	}
	return a.HostID, nil
}
