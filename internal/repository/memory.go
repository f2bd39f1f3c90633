package repository

import (
	"context"
	"sync"
	"time"
)

type windowCounter struct {
	count     int
	expiresAt time.Time
}

// MemoryRateLimitStore is the single-process counterpart of RedisRateLimitStore.
type MemoryRateLimitStore struct {
	mu       sync.Mutex
	counters map[string]*windowCounter
	now      func() time.Time
}

func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{
		counters: make(map[string]*windowCounter),
		now:      time.Now,
	}
}

func (r *MemoryRateLimitStore) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	c, ok := r.counters[key]
	if !ok || !now.Before(c.expiresAt) {
		c = &windowCounter{expiresAt: now.Add(window)}
		r.counters[key] = c
	}
	c.count++

	return c.count <= limit, nil
}

// Sweep drops expired windows.
func (r *MemoryRateLimitStore) Sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for key, c := range r.counters {
		if !now.Before(c.expiresAt) {
			delete(r.counters, key)
		}
	}
}
