package database

import (
	"context"
	"io"
	"testing"

	"venuebook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testCatalog() models.Catalog {
	return models.Catalog{
		Venues: []models.Venue{
			{
				ID:       1,
				Name:     "Court A",
				OwnerID:  100,
				Capacity: 12,
				Timings: []models.DayTimings{
					{Day: "monday", Times: []models.TimeSlot{{From: "09:00", To: "10:00"}, {From: "10:00", To: "11:00"}}},
				},
			},
		},
		Activities: []models.Activity{
			{ID: 10, Name: "Yoga", HostID: 200, Date: "2030-01-07", Time: "18:00", Price: 15, Capacity: 5},
		},
	}
}

func seedCatalog(t *testing.T, db *DB) {
	require.NoError(t, db.SyncCatalog(context.Background(), testCatalog()))
}
