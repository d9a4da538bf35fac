package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("test_endpoint")
		ObserveLockWait(15 * time.Millisecond)
	})

	before := testutil.ToFloat64(admissions.WithLabelValues("venue", "admitted"))
	IncAdmission("venue", "admitted")
	assert.Equal(t, before+1, testutil.ToFloat64(admissions.WithLabelValues("venue", "admitted")))

	IncOutbox("completed")
	assert.Equal(t, 1.0, testutil.ToFloat64(outboxEvents.WithLabelValues("completed")))

	IncBookingEvent("booking.venue.created")
	IncBookingEvent("booking.venue.created")
	assert.Equal(t, 2.0, testutil.ToFloat64(bookingEvents.WithLabelValues("booking.venue.created")))
}
