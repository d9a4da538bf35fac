package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"venuebook/internal/database"
	"venuebook/internal/events"
	"venuebook/internal/models"
	"venuebook/internal/repository"
	"venuebook/internal/worker"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cancelOnCommit cancels the request context as soon as a venue batch commits,
// like a client that hangs up while the response is being written.
type cancelOnCommit struct {
	*database.DB
	cancel context.CancelFunc
}

func (c *cancelOnCommit) CreateVenueBookings(ctx context.Context, bookings []*models.VenueBooking, stage models.VenueOutboxStage) error {
	err := c.DB.CreateVenueBookings(ctx, bookings, stage)
	c.cancel()
	return err
}

type recordingBroker struct {
	mu   sync.Mutex
	keys []string
}

func (b *recordingBroker) Publish(ctx context.Context, routingKey string, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys = append(b.keys, routingKey)
	return nil
}

func (b *recordingBroker) sent() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.keys...)
}

func TestOutboxSurvivesCancelAfterCommit(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.SyncCatalog(context.Background(), testCatalog()))

	broker := &recordingBroker{}
	relay := worker.NewOutboxWorker(db, broker, nil, worker.OutboxOptions{PollInterval: 10 * time.Millisecond}, &logger)

	reqCtx, cancelReq := context.WithCancel(context.Background())
	defer cancelReq()
	repo := &cancelOnCommit{DB: db, cancel: cancelReq}
	svc := NewBookingService(repo, repository.NewMemoryLocker(), nil, relay, Options{
		Location: time.UTC,
		Clock:    &fixedClock{now: testNow},
	}, &logger)

	bookings, err := svc.CreateVenueBooking(reqCtx, customer, 1, monday, []string{"09:00 - 10:00"})
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	require.Error(t, reqCtx.Err())

	pending, err := db.GetPendingOutboxEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, bookings[0].ID, pending[0].BookingID)
	assert.Equal(t, events.EventVenueBookingCreated, pending[0].EventType)

	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()
	go relay.Start(relayCtx)

	require.Eventually(t, func() bool {
		return len(broker.sent()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{events.EventVenueBookingCreated}, broker.sent())
}

func TestNoRelayStagesNothing(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.SyncCatalog(context.Background(), testCatalog()))

	svc := NewBookingService(db, repository.NewMemoryLocker(), nil, nil, Options{
		Location: time.UTC,
		Clock:    &fixedClock{now: testNow},
	}, &logger)

	ctx := context.Background()
	_, err = svc.CreateVenueBooking(ctx, customer, 1, monday, []string{"09:00 - 10:00"})
	require.NoError(t, err)
	_, err = svc.CreateActivityBooking(ctx, customer, yogaID, 1)
	require.NoError(t, err)

	counts, err := db.CountOutboxByStatus(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)
}
