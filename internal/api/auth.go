package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"venuebook/internal/config"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const (
	apiKeyHeaderDefault   = "x-api-key"
	apiExtraHeaderDefault = "x-api-extra"
	clientKeyUnknown      = "unknown"

	permReadCatalog      = "read:catalog"
	permReadAvailability = "read:availability"
	permReadBookings     = "read:bookings"
	permWriteBookings    = "write:bookings"
	permExportBookings   = "export:bookings"
	permAdminOutbox      = "admin:outbox"
)

var (
	errMissingAPIKey    = errors.New("missing api key headers")
	errInvalidAPIKey    = errors.New("invalid api key")
	errPermissionDenied = errors.New("permission denied")
)

// keyring holds the configured API clients. HTTP and gRPC authenticate through the same one.
type keyring struct {
	keyHeader   string
	extraHeader string
	clients     map[string]config.APIClientKey
}

func newKeyring(cfg config.APIAuthConfig) *keyring {
	clients := make(map[string]config.APIClientKey, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		clients[k.Key] = k
	}
	return &keyring{
		keyHeader:   headerName(cfg.HeaderAPIKey, apiKeyHeaderDefault),
		extraHeader: headerName(cfg.HeaderExtra, apiExtraHeaderDefault),
		clients:     clients,
	}
}

// authorize checks the key pair and, when required is set, the client's permissions.
// A client with no permissions listed may call everything.
func (k *keyring) authorize(apiKey, extra, required string) error {
	apiKey, extra = strings.TrimSpace(apiKey), strings.TrimSpace(extra)
	if apiKey == "" || extra == "" {
		return errMissingAPIKey
	}

	client, ok := k.clients[apiKey]
	if !ok || subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return errInvalidAPIKey
	}

	if required == "" || len(client.Permissions) == 0 {
		return nil
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return nil
		}
	}
	return errPermissionDenied
}

func headerName(configured, fallback string) string {
	h := strings.TrimSpace(strings.ToLower(configured))
	if h == "" {
		return fallback
	}
	return h
}

// AuthInterceptor applies API-key auth and per-client rate limits to gRPC calls.
type AuthInterceptor struct {
	cfg     *config.APIConfig
	keys    *keyring
	limiter *rateLimiter
}

func NewAuthInterceptor(cfg *config.APIConfig) *AuthInterceptor {
	return &AuthInterceptor{
		cfg:     cfg,
		keys:    newKeyring(cfg.Auth),
		limiter: newRateLimiter(cfg.RateLimit),
	}
}

func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !a.cfg.Enabled {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		apiKey := first(md.Get(a.keys.keyHeader))

		if a.cfg.Auth.Enabled {
			err := a.keys.authorize(apiKey, first(md.Get(a.keys.extraHeader)), requiredPermission(info.FullMethod))
			switch {
			case errors.Is(err, errPermissionDenied):
				return nil, status.Error(codes.PermissionDenied, err.Error())
			case err != nil:
				return nil, status.Error(codes.Unauthenticated, err.Error())
			}
		}

		if !a.limiter.allow(grpcClientKey(ctx, apiKey)) {
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}

func requiredPermission(fullMethod string) string {
	switch fullMethod {
	case methodGetAvailableSlots:
		return permReadAvailability
	case methodCreateVenueBooking, methodCreateActivityBooking, methodCancelActivityBooking:
		return permWriteBookings
	default:
		return ""
	}
}

func grpcClientKey(ctx context.Context, apiKey string) string {
	if apiKey != "" {
		return apiKey
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return clientKeyUnknown
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}
