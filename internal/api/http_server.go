package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"venuebook/internal/config"
	"venuebook/internal/domain"
	"venuebook/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// HTTPServer exposes the booking API over JSON.
type HTTPServer struct {
	cfg      config.APIConfig
	booking  domain.BookingService
	catalog  domain.CatalogService
	exporter domain.BookingExporter
	outbox   domain.OutboxInspector
	server   *http.Server
	auth     *HTTPAuth
	logger   zerolog.Logger
}

func NewHTTPServer(
	cfg config.APIConfig,
	booking domain.BookingService,
	catalog domain.CatalogService,
	exporter domain.BookingExporter,
	logger *zerolog.Logger,
) *HTTPServer {
	srv := &HTTPServer{
		cfg:      cfg,
		booking:  booking,
		catalog:  catalog,
		exporter: exporter,
		auth:     NewHTTPAuth(cfg),
		logger:   zerolog.Nop(),
	}
	if logger != nil {
		srv.logger = logger.With().Str("component", "http").Logger()
	}

	mux := http.NewServeMux()
	srv.routes(mux)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.loggingMiddleware(srv.auth.Wrap(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("GET /api/v1/venues", s.handleListVenues)
	mux.HandleFunc("GET /api/v1/venues/{venue_id}", s.handleGetVenue)
	mux.HandleFunc("GET /api/v1/venues/{venue_id}/slots", s.handleAvailableSlots)
	mux.HandleFunc("POST /api/v1/venues/{venue_id}/bookings", s.withIdentity(s.handleCreateVenueBooking))
	mux.HandleFunc("GET /api/v1/activities", s.handleListActivities)
	mux.HandleFunc("GET /api/v1/activities/{activity_id}", s.handleGetActivity)
	mux.HandleFunc("POST /api/v1/activities/{activity_id}/bookings", s.withIdentity(s.handleCreateActivityBooking))

	mux.HandleFunc("GET /api/v1/venue-bookings", s.withIdentity(s.handleFindVenueBookings))
	mux.HandleFunc("GET /api/v1/venue-bookings/{id}", s.withIdentity(s.handleGetVenueBooking))
	mux.HandleFunc("PUT /api/v1/venue-bookings/{id}", s.withIdentity(s.handleRescheduleVenueBooking))
	mux.HandleFunc("DELETE /api/v1/venue-bookings/{id}", s.withIdentity(s.handleCancelVenueBooking))

	mux.HandleFunc("GET /api/v1/activity-bookings", s.withIdentity(s.handleFindActivityBookings))
	mux.HandleFunc("GET /api/v1/activity-bookings/{id}", s.withIdentity(s.handleGetActivityBooking))
	mux.HandleFunc("PUT /api/v1/activity-bookings/{id}", s.withIdentity(s.handleUpdateActivityBooking))
	mux.HandleFunc("DELETE /api/v1/activity-bookings/{id}", s.withIdentity(s.handleCancelActivityBooking))

	mux.HandleFunc("GET /api/v1/exports/bookings", s.withIdentity(s.handleExportBookings))

	mux.HandleFunc("GET /api/v1/outbox/failed", s.withIdentity(s.handleFailedOutbox))
}

// SetOutboxInspector enables the dead-letter listing. Without one the route answers 404.
func (s *HTTPServer) SetOutboxInspector(inspector domain.OutboxInspector) {
	s.outbox = inspector
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler is the fully wrapped handler, for tests and embedding.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

// HTTPAuth provides API-key auth and per-key rate limiting for HTTP endpoints.
type HTTPAuth struct {
	cfg     config.APIConfig
	keys    *keyring
	limiter *rateLimiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	return &HTTPAuth{cfg: cfg, keys: newKeyring(cfg.Auth), limiter: newRateLimiter(cfg.RateLimit)}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.Enabled || !a.cfg.HTTP.Enabled || r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := strings.TrimSpace(r.Header.Get(a.keys.keyHeader))
		if a.cfg.Auth.Enabled {
			err := a.keys.authorize(apiKey, r.Header.Get(a.keys.extraHeader), requiredPermissionHTTP(r))
			switch {
			case errors.Is(err, errPermissionDenied):
				writeError(w, http.StatusForbidden, err.Error())
				return
			case err != nil:
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
		}

		if !a.limiter.allow(httpClientKey(r, apiKey)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requiredPermissionHTTP(r *http.Request) string {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/api/v1/exports/"):
		return permExportBookings
	case strings.HasPrefix(path, "/api/v1/outbox/"):
		return permAdminOutbox
	case r.Method != http.MethodGet && strings.HasPrefix(path, "/api/v1/"):
		return permWriteBookings
	case strings.HasSuffix(path, "/slots"):
		return permReadAvailability
	case strings.HasPrefix(path, "/api/v1/venue-bookings"), strings.HasPrefix(path, "/api/v1/activity-bookings"):
		return permReadBookings
	case strings.HasPrefix(path, "/api/v1/venues"), strings.HasPrefix(path, "/api/v1/activities"):
		return permReadCatalog
	}
	return ""
}

// httpClientKey buckets callers by API key, or by remote host for anonymous traffic.
func httpClientKey(r *http.Request, apiKey string) string {
	if apiKey != "" {
		return apiKey
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.IncHTTP(endpoint)

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// withIdentity resolves the gateway identity headers; booking routes answer 401 without them.
func (s *HTTPServer) withIdentity(next func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := ParseRequester(r.Header.Get(headerUserID), r.Header.Get(headerUserRole))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error(), Kind: "Unauthorized"})
			return
		}
		next(w, r.WithContext(WithRequester(r.Context(), who)))
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Error: message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
