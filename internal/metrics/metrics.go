package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "venuebook"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	admissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "Admission decisions by resource and outcome.",
		},
		[]string{"resource", "outcome"},
	)

	lockWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting for per-resource booking locks.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	outboxEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_total",
			Help:      "Outbox relay results by status.",
		},
		[]string{"status"},
	)

	bookingEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_events_total",
			Help:      "Booking events seen on the in-process bus.",
		},
		[]string{"type"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, admissions, lockWait, outboxEvents, bookingEvents)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncAdmission records an admission outcome ("admitted" or an error kind).
func IncAdmission(resource, outcome string) {
	admissions.WithLabelValues(resource, outcome).Inc()
}

func ObserveLockWait(d time.Duration) {
	lockWait.Observe(d.Seconds())
}

func IncOutbox(status string) {
	outboxEvents.WithLabelValues(status).Inc()
}

func IncBookingEvent(eventType string) {
	bookingEvents.WithLabelValues(eventType).Inc()
}
