package repository

import (
	"context"
	"sync/atomic"
	"time"

	"parkwise/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverRateLimitStore uses the primary store until it errors, then serves
// from the fallback and tries the primary again once per recoveryInterval.
type FailoverRateLimitStore struct {
	primary   domain.RateLimitStore
	fallback  domain.RateLimitStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time
}

func NewFailoverRateLimitStore(primary, fallback domain.RateLimitStore, logger *zerolog.Logger) *FailoverRateLimitStore {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverRateLimitStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (r *FailoverRateLimitStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.primary != nil && r.shouldTryPrimary() {
		allowed, err := r.primary.Allow(ctx, key, limit, window)
		if err == nil {
			if r.isDown.CompareAndSwap(true, false) {
				r.logger.Info().Msg("Primary rate limit store recovered")
			}
			return allowed, nil
		}
		if !r.isDown.Swap(true) {
			r.logger.Error().Err(err).Msg("Primary rate limit store failed, falling back to memory")
		}
		r.lastCheck.Store(r.now().UnixNano())
	}

	return r.fallback.Allow(ctx, key, limit, window)
}

// Degraded reports whether requests are currently served by the fallback.
func (r *FailoverRateLimitStore) Degraded() bool {
	return r.primary == nil || r.isDown.Load()
}

func (r *FailoverRateLimitStore) shouldTryPrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	last := time.Unix(0, r.lastCheck.Load())
	return r.now().Sub(last) > recoveryInterval
}
