package api

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"parkwise/internal/auth"
	"parkwise/internal/config"
	"parkwise/internal/domain"
	"parkwise/internal/metrics"
	"parkwise/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RateLimiter applies two limits per client: an in-process token bucket that
// absorbs bursts, and a fixed-window budget shared through the store.
type RateLimiter struct {
	cfg      config.APIRateLimitConfig
	store    domain.RateLimitStore
	limiters sync.Map
	logger   *zerolog.Logger
	now      func() time.Time
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen atomic.Int64
}

func NewRateLimiter(cfg config.APIRateLimitConfig, store domain.RateLimitStore, logger *zerolog.Logger) *RateLimiter {
	if cfg.Requests <= 0 {
		cfg.Requests = models.DefaultRateLimitRequests
	}
	if cfg.Window <= 0 {
		cfg.Window = models.DefaultRateLimitWindow
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &RateLimiter{cfg: cfg, store: store, logger: logger, now: time.Now}
}

// Allow reports whether the client identified by key may proceed.
// Store failures let the request through.
func (l *RateLimiter) Allow(ctx context.Context, key string) bool {
	if l == nil || !l.cfg.Enabled {
		return true
	}

	if l.cfg.RPS > 0 && !l.getLimiter(key).Allow() {
		return false
	}

	if l.store != nil {
		allowed, err := l.store.Allow(ctx, key, l.cfg.Requests, time.Duration(l.cfg.Window)*time.Second)
		if err != nil {
			l.logger.Warn().Err(err).Str("key", key).Msg("rate limit store unavailable")
			return true
		}
		return allowed
	}
	return true
}

// Middleware keys requests by authenticated user, or by client IP before login.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + clientIP(r)
		if p, ok := auth.FromContext(r.Context()); ok {
			key = "user:" + strconv.FormatInt(p.UserID, 10)
		}

		if !l.Allow(r.Context(), key) {
			metrics.IncRateLimited()
			w.Header().Set("Retry-After", strconv.Itoa(l.cfg.Window))
			writeError(w, http.StatusTooManyRequests, errRateLimited.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) getLimiter(key string) *rate.Limiter {
	now := l.now().UnixNano()
	if v, ok := l.limiters.Load(key); ok {
		e := v.(*limiterEntry)
		e.lastSeen.Store(now)
		return e.lim
	}

	burst := l.cfg.Burst
	if burst <= 0 {
		burst = 5
	}

	e := &limiterEntry{lim: rate.NewLimiter(rate.Limit(l.cfg.RPS), burst)}
	e.lastSeen.Store(now)
	actual, _ := l.limiters.LoadOrStore(key, e)
	return actual.(*limiterEntry).lim
}

// Sweep drops token buckets not used within idle and returns how many were removed.
func (l *RateLimiter) Sweep(idle time.Duration) int {
	if l == nil {
		return 0
	}
	cutoff := l.now().Add(-idle).UnixNano()
	removed := 0
	l.limiters.Range(func(k, v interface{}) bool {
		if v.(*limiterEntry).lastSeen.Load() < cutoff {
			l.limiters.Delete(k)
			removed++
		}
		return true
	})
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done.
func (l *RateLimiter) StartSweeper(ctx context.Context, interval, idle time.Duration) {
	if l == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(idle); n > 0 {
				l.logger.Debug().Int("removed", n).Msg("swept idle rate limiters")
			}
		}
	}
}
