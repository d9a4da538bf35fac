package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"venuebook/internal/domain"

	"github.com/rs/zerolog"
)

const primaryRetryAfter = time.Minute

// FailoverLocker uses the Redis locker and drops to the in-process one while Redis is
// unreachable. The store primitives stay authoritative either way.
type FailoverLocker struct {
	primary   domain.Locker
	fallback  domain.Locker
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time
}

func NewFailoverLocker(primary, fallback domain.Locker, logger *zerolog.Logger) *FailoverLocker {
	return &FailoverLocker{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (r *FailoverLocker) Acquire(ctx context.Context, key string) (domain.ReleaseFunc, error) {
	if r.usePrimary() {
		release, err := r.primary.Acquire(ctx, key)
		if err == nil {
			if r.isDown.Swap(false) {
				r.logger.Info().Msg("Primary locker recovered")
			}
			return release, nil
		}
		if errors.Is(err, ErrLockTimeout) {
			return nil, err
		}
		r.logger.Error().Err(err).Str("key", key).Msg("Primary locker failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck.Store(r.now().UnixNano())
	}

	return r.fallback.Acquire(ctx, key)
}

// usePrimary retries the primary at most once per primaryRetryAfter while it is down.
func (r *FailoverLocker) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	last := r.lastCheck.Load()
	if r.now().Sub(time.Unix(0, last)) <= primaryRetryAfter {
		return false
	}
	return r.lastCheck.CompareAndSwap(last, r.now().UnixNano())
}
