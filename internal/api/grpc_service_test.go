package api

import (
	"context"
	"io"
	"net"
	"testing"

	"venuebook/internal/config"
	"venuebook/internal/models"
	"venuebook/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func newTestGRPCClient(t *testing.T, cfg config.APIConfig) *BookingClient {
	t.Helper()
	env := newTestEnv(t, openConfig())
	logger := zerolog.New(io.Discard)

	srv, err := buildGRPCServer(&cfg, env.svc, &logger)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewBookingClient(conn)
}

func asUser(userID, role string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "x-user-id", userID, "x-user-role", role)
}

func TestGRPCBookingService(t *testing.T) {
	client := newTestGRPCClient(t, openConfig())

	t.Run("GetAvailableSlots", func(t *testing.T) {
		resp, err := client.GetAvailableSlots(context.Background(), &GetAvailableSlotsRequest{VenueID: 1, Date: monday})
		require.NoError(t, err)
		assert.Len(t, resp.Slots, 2)
		assert.Equal(t, "monday", resp.Weekday)
	})

	t.Run("CreateVenueBooking", func(t *testing.T) {
		resp, err := client.CreateVenueBooking(asUser("7", "customer"), &CreateVenueBookingRequest{
			VenueID:   1,
			Date:      monday,
			TimeSlots: []string{"09:00 - 10:00"},
		})
		require.NoError(t, err)
		require.Len(t, resp.Bookings, 1)
		assert.Equal(t, int64(7), resp.Bookings[0].UserID)

		_, err = client.CreateVenueBooking(asUser("8", "customer"), &CreateVenueBookingRequest{
			VenueID:   1,
			Date:      monday,
			TimeSlots: []string{"09:00 - 10:00"},
		})
		assert.Equal(t, codes.AlreadyExists, status.Code(err))
	})

	t.Run("MissingIdentity", func(t *testing.T) {
		_, err := client.CreateActivityBooking(context.Background(), &CreateActivityBookingRequest{ActivityID: yogaID, Quantity: 1})
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("ActivityLifecycle", func(t *testing.T) {
		booking, err := client.CreateActivityBooking(asUser("7", ""), &CreateActivityBookingRequest{ActivityID: yogaID, Quantity: 2})
		require.NoError(t, err)
		assert.Equal(t, 2, booking.Quantity)
		assert.Equal(t, models.StatusBooked, booking.Status)

		_, err = client.CreateActivityBooking(asUser("8", ""), &CreateActivityBookingRequest{ActivityID: yogaID, Quantity: 4})
		assert.Equal(t, codes.ResourceExhausted, status.Code(err))

		_, err = client.CancelActivityBooking(asUser("8", ""), &CancelActivityBookingRequest{BookingID: booking.ID})
		assert.Equal(t, codes.PermissionDenied, status.Code(err))

		cancelled, err := client.CancelActivityBooking(asUser("7", ""), &CancelActivityBookingRequest{BookingID: booking.ID})
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, cancelled.Status)

		_, err = client.CancelActivityBooking(asUser("7", ""), &CancelActivityBookingRequest{BookingID: booking.ID})
		assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	})

	t.Run("Validation", func(t *testing.T) {
		_, err := client.GetAvailableSlots(context.Background(), &GetAvailableSlotsRequest{VenueID: 1})
		assert.Equal(t, codes.InvalidArgument, status.Code(err))

		_, err = client.CreateActivityBooking(asUser("7", ""), &CreateActivityBookingRequest{ActivityID: yogaID})
		assert.Equal(t, codes.InvalidArgument, status.Code(err))

		_, err = client.CancelActivityBooking(asUser("7", ""), &CancelActivityBookingRequest{BookingID: 9999})
		assert.Equal(t, codes.NotFound, status.Code(err))
	})

	t.Run("LockedWindow", func(t *testing.T) {
		booking, err := client.CreateActivityBooking(asUser("7", ""), &CreateActivityBookingRequest{ActivityID: soonID, Quantity: 1})
		require.NoError(t, err)

		_, err = client.CancelActivityBooking(asUser("7", ""), &CancelActivityBookingRequest{BookingID: booking.ID})
		assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	})
}

func TestGRPCAuth(t *testing.T) {
	cfg := config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{
				{Key: "reader", Extra: "r", Permissions: []string{"read:availability"}},
			},
		},
	}
	client := newTestGRPCClient(t, cfg)

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-api-key", "reader", "x-api-extra", "r")
	_, err := client.GetAvailableSlots(ctx, &GetAvailableSlotsRequest{VenueID: 1, Date: monday})
	require.NoError(t, err)

	ctx = metadata.AppendToOutgoingContext(ctx, "x-user-id", "7")
	_, err = client.CreateActivityBooking(ctx, &CreateActivityBookingRequest{ActivityID: yogaID, Quantity: 1})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = client.GetAvailableSlots(context.Background(), &GetAvailableSlotsRequest{VenueID: 1, Date: monday})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestGRPCCodeMapping(t *testing.T) {
	cases := map[service.Kind]codes.Code{
		service.KindNotFound:         codes.NotFound,
		service.KindInvalidDate:      codes.InvalidArgument,
		service.KindInvalidSlot:      codes.InvalidArgument,
		service.KindInvalidRequest:   codes.InvalidArgument,
		service.KindSlotConflict:     codes.AlreadyExists,
		service.KindCapacityExceeded: codes.ResourceExhausted,
		service.KindLockedWindow:     codes.FailedPrecondition,
		service.KindAlreadyCancelled: codes.FailedPrecondition,
		service.KindUnauthorized:     codes.PermissionDenied,
		service.KindInternal:         codes.Internal,
	}
	for kind, want := range cases {
		assert.Equal(t, want, grpcCode(kind), string(kind))
	}
}
