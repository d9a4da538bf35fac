package database

import (
	"context"
	"testing"

	"venuebook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateActivityBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedCatalog(t, db)

	b := &models.ActivityBooking{ActivityID: 10, UserID: 7, Quantity: 3}
	require.NoError(t, db.CreateActivityBooking(ctx, b, nil))
	assert.NotZero(t, b.ID)
	assert.Equal(t, 45.0, b.Price)
	assert.Equal(t, models.StatusBooked, b.Status)
	assert.Equal(t, "2030-01-07", b.ActivityDate)

	a, err := db.GetActivity(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, a.ParticipantsLimit)
	assert.Equal(t, []int64{7, 7, 7}, a.Participants)

	t.Run("CapacityExceeded", func(t *testing.T) {
		err := db.CreateActivityBooking(ctx, &models.ActivityBooking{ActivityID: 10, UserID: 8, Quantity: 3}, nil)
		assert.ErrorIs(t, err, ErrCapacityExceeded)

		a, err := db.GetActivity(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, 2, a.ParticipantsLimit)
		assert.Len(t, a.Participants, 3)
	})

	t.Run("UnknownActivity", func(t *testing.T) {
		err := db.CreateActivityBooking(ctx, &models.ActivityBooking{ActivityID: 99, UserID: 8, Quantity: 1}, nil)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("NonPositiveQuantity", func(t *testing.T) {
		err := db.CreateActivityBooking(ctx, &models.ActivityBooking{ActivityID: 10, UserID: 8, Quantity: 0}, nil)
		assert.Error(t, err)
	})
}

func TestUpdateActivityBookingQuantity(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedCatalog(t, db)

	b := &models.ActivityBooking{ActivityID: 10, UserID: 7, Quantity: 2}
	require.NoError(t, db.CreateActivityBooking(ctx, b, nil))
	other := &models.ActivityBooking{ActivityID: 10, UserID: 8, Quantity: 1}
	require.NoError(t, db.CreateActivityBooking(ctx, other, nil))

	t.Run("GrowBeyondLimitLeavesStateUntouched", func(t *testing.T) {
		_, err := db.UpdateActivityBookingQuantity(ctx, b.ID, b.Version, 5, nil)
		assert.ErrorIs(t, err, ErrCapacityExceeded)

		got, err := db.GetActivityBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Quantity)
		a, err := db.GetActivity(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, 2, a.ParticipantsLimit)
	})

	t.Run("Grow", func(t *testing.T) {
		updated, err := db.UpdateActivityBookingQuantity(ctx, b.ID, b.Version, 4, nil)
		require.NoError(t, err)
		assert.Equal(t, 4, updated.Quantity)
		assert.Equal(t, 60.0, updated.Price)
		assert.Equal(t, int64(2), updated.Version)

		a, err := db.GetActivity(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, 0, a.ParticipantsLimit)
		assert.Equal(t, []int64{7, 7, 8, 7, 7}, a.Participants)
	})

	t.Run("StaleVersion", func(t *testing.T) {
		_, err := db.UpdateActivityBookingQuantity(ctx, b.ID, 1, 3, nil)
		assert.ErrorIs(t, err, ErrConcurrentModification)
	})

	t.Run("Shrink", func(t *testing.T) {
		updated, err := db.UpdateActivityBookingQuantity(ctx, b.ID, 2, 1, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, updated.Quantity)

		a, err := db.GetActivity(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, 3, a.ParticipantsLimit)
		assert.Equal(t, []int64{7, 8}, a.Participants)
	})
}

func TestCancelActivityBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedCatalog(t, db)

	b := &models.ActivityBooking{ActivityID: 10, UserID: 7, Quantity: 4}
	require.NoError(t, db.CreateActivityBooking(ctx, b, nil))

	require.NoError(t, db.CancelActivityBooking(ctx, b.ID, b.Version, nil))

	a, err := db.GetActivity(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, a.ParticipantsLimit)
	assert.Empty(t, a.Participants)

	err = db.CancelActivityBooking(ctx, b.ID, 2, nil)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)

	a, err = db.GetActivity(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, a.ParticipantsLimit, "second cancel must not credit seats again")

	_, err = db.UpdateActivityBookingQuantity(ctx, b.ID, 2, 1, nil)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)

	err = db.CancelActivityBooking(ctx, 12345, 1, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListActivityBookings(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedCatalog(t, db)

	require.NoError(t, db.CreateActivityBooking(ctx, &models.ActivityBooking{ActivityID: 10, UserID: 7, Quantity: 1}, nil))
	require.NoError(t, db.CreateActivityBooking(ctx, &models.ActivityBooking{ActivityID: 10, UserID: 8, Quantity: 2}, nil))

	all, err := db.ListActivityBookings(ctx, models.BookingFilter{ActivityID: 10})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := db.ListActivityBookings(ctx, models.BookingFilter{UserID: 8})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, 2, mine[0].Quantity)
	assert.Equal(t, "18:00", mine[0].ActivityTime)

	none, err := db.ListActivityBookings(ctx, models.BookingFilter{From: "2031-01-01"})
	require.NoError(t, err)
	assert.Empty(t, none)
}
