package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverRateLimitStore(t *testing.T) {
	primary := new(mockStore)
	fallback := new(mockStore)
	logger := zerolog.New(io.Discard)
	store := NewFailoverRateLimitStore(primary, fallback, &logger)
	ctx := context.Background()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("Allow", ctx, "a", 10, time.Minute).Return(true, nil).Once()

		allowed, err := store.Allow(ctx, "a", 10, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.False(t, store.Degraded())
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		primary.On("Allow", ctx, "b", 10, time.Minute).Return(false, errors.New("conn refused")).Once()
		fallback.On("Allow", ctx, "b", 10, time.Minute).Return(true, nil).Once()

		allowed, err := store.Allow(ctx, "b", 10, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.True(t, store.Degraded())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("StaysOnFallbackWithinInterval", func(t *testing.T) {
		now = now.Add(30 * time.Second)
		fallback.On("Allow", ctx, "c", 10, time.Minute).Return(false, nil).Once()

		allowed, err := store.Allow(ctx, "c", 10, time.Minute)
		assert.NoError(t, err)
		assert.False(t, allowed)
		primary.AssertNotCalled(t, "Allow", ctx, "c", 10, time.Minute)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryAttemptFail", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		primary.On("Allow", ctx, "d", 10, time.Minute).Return(false, errors.New("still down")).Once()
		fallback.On("Allow", ctx, "d", 10, time.Minute).Return(true, nil).Once()

		_, err := store.Allow(ctx, "d", 10, time.Minute)
		assert.NoError(t, err)
		assert.True(t, store.Degraded())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryAttemptSuccess", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		primary.On("Allow", ctx, "e", 10, time.Minute).Return(true, nil).Once()

		allowed, err := store.Allow(ctx, "e", 10, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.False(t, store.Degraded())
		primary.AssertExpectations(t)
	})
}

func TestFailoverRateLimitStore_NoPrimary(t *testing.T) {
	logger := zerolog.Nop()
	store := NewFailoverRateLimitStore(nil, NewMemoryRateLimitStore(), &logger)

	allowed, err := store.Allow(context.Background(), "x", 1, time.Minute)
	assert.NoError(t, err)
	assert.True(t, allowed)
	assert.True(t, store.Degraded())
}
