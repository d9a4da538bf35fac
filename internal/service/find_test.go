package service

import (
	"context"
	"testing"
	"time"

	"venuebook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindVenueBookings(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	_, err := env.svc.CreateVenueBooking(ctx, customer, 1, monday, []string{"09:00 - 10:00"})
	require.NoError(t, err)
	_, err = env.svc.CreateVenueBooking(ctx, customer, 1, "2030-01-14", []string{"09:00 - 10:00"})
	require.NoError(t, err)
	cancelled, err := env.svc.CreateVenueBooking(ctx, customer, 1, "2030-01-21", []string{"10:00 - 11:00"})
	require.NoError(t, err)
	require.NoError(t, env.svc.CancelVenueBooking(ctx, customer, cancelled[0].ID))
	_, err = env.svc.CreateVenueBooking(ctx, other, 1, "2030-01-14", []string{"10:00 - 11:00"})
	require.NoError(t, err)

	env.clock.Set(time.Date(2030, 1, 10, 0, 0, 0, 0, time.UTC))

	split, err := env.svc.FindVenueBookings(ctx, customer, models.BookingFilter{UserID: customer.UserID})
	require.NoError(t, err)
	require.Len(t, split.Past, 1)
	assert.Equal(t, monday, split.Past[0].Date)
	require.Len(t, split.Upcoming, 2, "cancelled bookings are listed too")

	t.Run("VenueOwnerSeesVenue", func(t *testing.T) {
		split, err := env.svc.FindVenueBookings(ctx, owner, models.BookingFilter{VenueID: 1})
		require.NoError(t, err)
		assert.Len(t, split.Past, 1)
		assert.Len(t, split.Upcoming, 3)
	})

	t.Run("AdminSeesAll", func(t *testing.T) {
		split, err := env.svc.FindVenueBookings(ctx, admin, models.BookingFilter{})
		require.NoError(t, err)
		assert.Len(t, split.Past, 1)
		assert.Len(t, split.Upcoming, 3)
	})

	t.Run("EmptyResultHasEmptySlices", func(t *testing.T) {
		split, err := env.svc.FindVenueBookings(ctx, admin, models.BookingFilter{UserID: 555})
		require.NoError(t, err)
		assert.NotNil(t, split.Past)
		assert.NotNil(t, split.Upcoming)
	})

	t.Run("Denied", func(t *testing.T) {
		filters := []struct {
			who    models.Requester
			filter models.BookingFilter
		}{
			{other, models.BookingFilter{UserID: customer.UserID}},
			{other, models.BookingFilter{}},
			{other, models.BookingFilter{VenueID: 1}},
			{owner, models.BookingFilter{VenueID: 1, UserID: customer.UserID}},
			{models.Requester{}, models.BookingFilter{}},
		}
		for _, f := range filters {
			_, err := env.svc.FindVenueBookings(ctx, f.who, f.filter)
			assert.ErrorIs(t, err, ErrUnauthorized, "%+v %+v", f.who, f.filter)
		}
	})

	t.Run("UnknownVenue", func(t *testing.T) {
		_, err := env.svc.FindVenueBookings(ctx, owner, models.BookingFilter{VenueID: 77})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestFindActivityBookings(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	_, err := env.svc.CreateActivityBooking(ctx, customer, yogaID, 1)
	require.NoError(t, err)
	_, err = env.svc.CreateActivityBooking(ctx, customer, smallID, 2)
	require.NoError(t, err)

	env.clock.Set(time.Date(2030, 1, 10, 0, 0, 0, 0, time.UTC))

	split, err := env.svc.FindActivityBookings(ctx, customer, models.BookingFilter{UserID: customer.UserID})
	require.NoError(t, err)
	require.Len(t, split.Past, 1)
	assert.Equal(t, yogaID, split.Past[0].ActivityID)
	require.Len(t, split.Upcoming, 1)
	assert.Equal(t, smallID, split.Upcoming[0].ActivityID)

	hosted, err := env.svc.FindActivityBookings(ctx, host, models.BookingFilter{ActivityID: smallID})
	require.NoError(t, err)
	assert.Len(t, hosted.Upcoming, 1)

	_, err = env.svc.FindActivityBookings(ctx, owner, models.BookingFilter{ActivityID: smallID})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGetBooking(t *testing.T) {
	env := setupService(t)
	ctx := context.Background()

	vb, err := env.svc.CreateVenueBooking(ctx, customer, 1, monday, []string{"09:00 - 10:00"})
	require.NoError(t, err)
	ab, err := env.svc.CreateActivityBooking(ctx, customer, yogaID, 1)
	require.NoError(t, err)

	for _, who := range []models.Requester{customer, owner, admin} {
		got, err := env.svc.GetVenueBooking(ctx, who, vb[0].ID)
		require.NoError(t, err, who)
		assert.Equal(t, vb[0].ID, got.ID)
	}
	_, err = env.svc.GetVenueBooking(ctx, other, vb[0].ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = env.svc.GetVenueBooking(ctx, customer, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	for _, who := range []models.Requester{customer, host, admin} {
		got, err := env.svc.GetActivityBooking(ctx, who, ab.ID)
		require.NoError(t, err, who)
		assert.Equal(t, "18:00", got.ActivityTime)
	}
	_, err = env.svc.GetActivityBooking(ctx, owner, ab.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
