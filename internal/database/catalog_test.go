package database

import (
	"context"
	"testing"

	"venuebook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncCatalog(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedCatalog(t, db)

	t.Run("Venue", func(t *testing.T) {
		v, err := db.GetVenue(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Court A", v.Name)
		assert.Equal(t, int64(100), v.OwnerID)
		require.Len(t, v.Timings, 1)
		assert.Equal(t, []models.TimeSlot{{From: "09:00", To: "10:00"}, {From: "10:00", To: "11:00"}}, v.Timings[0].Times)

		venues, err := db.ListVenues(ctx)
		require.NoError(t, err)
		assert.Len(t, venues, 1)
	})

	t.Run("Activity", func(t *testing.T) {
		a, err := db.GetActivity(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, 5, a.Capacity)
		assert.Equal(t, 5, a.ParticipantsLimit)
		assert.Empty(t, a.Participants)

		activities, err := db.ListActivities(ctx)
		require.NoError(t, err)
		assert.Len(t, activities, 1)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := db.GetVenue(ctx, 999)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = db.GetActivity(ctx, 999)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSyncCatalog_CapacityChangeKeepsTakenSeats(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedCatalog(t, db)

	require.NoError(t, db.CreateActivityBooking(ctx, &models.ActivityBooking{ActivityID: 10, UserID: 1, Quantity: 3}, nil))

	catalog := testCatalog()
	catalog.Activities[0].Capacity = 8
	require.NoError(t, db.SyncCatalog(ctx, catalog))

	a, err := db.GetActivity(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 8, a.Capacity)
	assert.Equal(t, 5, a.ParticipantsLimit)

	catalog.Activities[0].Capacity = 2
	err = db.SyncCatalog(ctx, catalog)
	assert.Error(t, err)

	a, err = db.GetActivity(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 8, a.Capacity, "failed sync must roll back")
}
