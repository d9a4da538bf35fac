package worker

import "time"

// RetryPolicy schedules redelivery of outbox events with capped exponential backoff.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// Schedule returns when an event that has already failed retryCount times should be tried
// again. ok is false once the attempt that just failed was the last one allowed.
func (r RetryPolicy) Schedule(now time.Time, retryCount int) (next time.Time, ok bool) {
	attempt := retryCount + 1
	if attempt >= r.MaxRetries {
		return time.Time{}, false
	}
	return now.Add(r.NextDelay(attempt)), true
}

// NextDelay is the wait after the attempt-th failure (1-based).
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	delay := r.InitialDelay
	if delay <= 0 {
		delay = time.Second
	}
	factor := r.BackoffFactor
	if factor < 1 {
		factor = 2
	}

	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * factor)
		if r.MaxDelay > 0 && delay >= r.MaxDelay {
			return r.MaxDelay
		}
	}
	if r.MaxDelay > 0 && delay > r.MaxDelay {
		return r.MaxDelay
	}
	return delay
}
