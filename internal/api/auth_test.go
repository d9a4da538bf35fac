package api

import (
	"context"
	"testing"

	"venuebook/internal/config"
	"venuebook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestAuthInterceptor(t *testing.T) {
	cfg := config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			HeaderExtra:  "x-api-extra",
			APIKeys: []config.APIClientKey{
				{Key: "valid-key", Extra: "valid-extra", Permissions: []string{"read:availability"}},
			},
		},
		RateLimit: config.APIRateLimitConfig{
			RPS:   100,
			Burst: 200,
		},
	}

	auth := NewAuthInterceptor(&cfg)
	interceptor := auth.Unary()

	handler := func(_ context.Context, req any) (any, error) {
		return "ok", nil
	}

	info := &grpc.UnaryServerInfo{FullMethod: methodGetAvailableSlots}

	t.Run("Success", func(t *testing.T) {
		md := metadata.Pairs("x-api-key", "valid-key", "x-api-extra", "valid-extra")
		ctx := metadata.NewIncomingContext(context.Background(), md)
		resp, err := interceptor(ctx, "req", info, handler)
		assert.NoError(t, err)
		assert.Equal(t, "ok", resp)
	})

	t.Run("MissingMetadata", func(t *testing.T) {
		_, err := interceptor(context.Background(), "req", info, handler)
		assert.Error(t, err)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("MissingHeaders", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs())
		_, err := interceptor(ctx, "req", info, handler)
		assert.Error(t, err)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("InvalidKey", func(t *testing.T) {
		md := metadata.Pairs("x-api-key", "invalid", "x-api-extra", "valid-extra")
		ctx := metadata.NewIncomingContext(context.Background(), md)
		_, err := interceptor(ctx, "req", info, handler)
		assert.Error(t, err)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("InvalidExtra", func(t *testing.T) {
		md := metadata.Pairs("x-api-key", "valid-key", "x-api-extra", "invalid")
		ctx := metadata.NewIncomingContext(context.Background(), md)
		_, err := interceptor(ctx, "req", info, handler)
		assert.Error(t, err)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("PermissionDenied", func(t *testing.T) {
		md := metadata.Pairs("x-api-key", "valid-key", "x-api-extra", "valid-extra")
		ctx := metadata.NewIncomingContext(context.Background(), md)
		writeInfo := &grpc.UnaryServerInfo{FullMethod: methodCreateVenueBooking}
		_, err := interceptor(ctx, "req", writeInfo, handler)
		assert.Error(t, err)
		assert.Equal(t, codes.PermissionDenied, status.Code(err))
	})
}

func TestAuthInterceptor_RateLimit(t *testing.T) {
	cfg := config.APIConfig{
		Enabled: true,
		Auth:    config.APIAuthConfig{Enabled: false},
		RateLimit: config.APIRateLimitConfig{
			RPS:   1,
			Burst: 1,
		},
	}

	auth := NewAuthInterceptor(&cfg)
	interceptor := auth.Unary()
	info := &grpc.UnaryServerInfo{FullMethod: "test"}
	handler := func(_ context.Context, req any) (any, error) { return "ok", nil }

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "key1"))

	_, err := interceptor(ctx, "req", info, handler)
	assert.NoError(t, err)

	// same key, no tokens left
	_, err = interceptor(ctx, "req", info, handler)
	assert.Error(t, err)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	// a different key has its own bucket
	other := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-api-key", "key2"))
	_, err = interceptor(other, "req", info, handler)
	assert.NoError(t, err)
}

func TestLoggingUnaryInterceptor(t *testing.T) {
	interceptor := LoggingUnaryInterceptor(nil)
	handler := func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: "test"}

	resp, err := interceptor(context.Background(), "req", info, handler)
	assert.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestRecoveryUnaryInterceptor(t *testing.T) {
	interceptor := RecoveryUnaryInterceptor(nil)
	info := &grpc.UnaryServerInfo{FullMethod: methodCreateVenueBooking}

	_, err := interceptor(context.Background(), "req", info, func(context.Context, any) (any, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))

	resp, err := interceptor(context.Background(), "req", info, func(context.Context, any) (any, error) {
		return "ok", nil
	})
	assert.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestKeyring(t *testing.T) {
	keys := newKeyring(config.APIAuthConfig{
		HeaderAPIKey: "X-Key",
		APIKeys: []config.APIClientKey{
			{Key: "full", Extra: "f"},
			{Key: "reports", Extra: "r", Permissions: []string{" export:bookings "}},
		},
	})
	assert.Equal(t, "x-key", keys.keyHeader)
	assert.Equal(t, apiExtraHeaderDefault, keys.extraHeader)

	assert.NoError(t, keys.authorize("full", "f", permWriteBookings))
	assert.NoError(t, keys.authorize("reports", "r", permExportBookings))
	assert.NoError(t, keys.authorize("reports", "r", ""))
	assert.ErrorIs(t, keys.authorize("reports", "r", permWriteBookings), errPermissionDenied)
	assert.ErrorIs(t, keys.authorize("reports", "f", permExportBookings), errInvalidAPIKey)
	assert.ErrorIs(t, keys.authorize("nobody", "x", ""), errInvalidAPIKey)
	assert.ErrorIs(t, keys.authorize("", "f", ""), errMissingAPIKey)
}

func TestRateLimiter(t *testing.T) {
	off := newRateLimiter(config.APIRateLimitConfig{})
	for i := 0; i < 10; i++ {
		assert.True(t, off.allow("k"))
	}

	on := newRateLimiter(config.APIRateLimitConfig{RPS: 1, Burst: 2})
	assert.True(t, on.allow("a"))
	assert.True(t, on.allow("a"))
	assert.False(t, on.allow("a"))
	assert.True(t, on.allow("b"))
}

func TestIdentityUnaryInterceptor(t *testing.T) {
	interceptor := IdentityUnaryInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: methodCreateVenueBooking}

	var seen models.Requester
	var found bool
	handler := func(ctx context.Context, req any) (any, error) {
		seen, found = RequesterFrom(ctx)
		return "ok", nil
	}

	t.Run("Resolved", func(t *testing.T) {
		md := metadata.Pairs("x-user-id", "42", "x-user-role", "venueOwner")
		_, err := interceptor(metadata.NewIncomingContext(context.Background(), md), "req", info, handler)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, models.Requester{UserID: 42, Role: models.RoleOwner}, seen)
	})

	t.Run("DefaultRole", func(t *testing.T) {
		md := metadata.Pairs("x-user-id", "7")
		_, err := interceptor(metadata.NewIncomingContext(context.Background(), md), "req", info, handler)
		require.NoError(t, err)
		assert.Equal(t, models.RoleCustomer, seen.Role)
	})

	t.Run("Anonymous", func(t *testing.T) {
		_, err := interceptor(context.Background(), "req", info, handler)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("BadID", func(t *testing.T) {
		md := metadata.Pairs("x-user-id", "abc")
		_, err := interceptor(metadata.NewIncomingContext(context.Background(), md), "req", info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("BadRole", func(t *testing.T) {
		md := metadata.Pairs("x-user-id", "7", "x-user-role", "root")
		_, err := interceptor(metadata.NewIncomingContext(context.Background(), md), "req", info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})
}

func TestRequiredPermission(t *testing.T) {
	tests := []struct {
		method string
		want   string
	}{
		{methodGetAvailableSlots, "read:availability"},
		{methodCreateVenueBooking, "write:bookings"},
		{methodCreateActivityBooking, "write:bookings"},
		{methodCancelActivityBooking, "write:bookings"},
		{"other", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, requiredPermission(tt.method))
	}
}
