// Package billing computes parking charges.
package billing

import (
	"errors"
	"math"
	"time"
)

var ErrInvalidInterval = errors.New("exit time precedes entry time")

// Charge returns the amount owed for a stay charged per started hour.
// A nil exitAt means the entry is still open and now() is used instead.
// Unusable input (non-positive fee, zero times, exit before entry) yields 0.
func Charge(hourlyFee float64, entryAt time.Time, exitAt *time.Time, now func() time.Time) float64 {
	if hourlyFee <= 0 || entryAt.IsZero() {
		return 0
	}

	exit := effectiveExit(exitAt, now)
	hours := BillableHours(entryAt, exit)
	if hours == 0 {
		return 0
	}

	return RoundCents(float64(hours) * hourlyFee)
}

// BillableHours is the number of started hours between entry and exit.
// Any positive stay counts as at least one hour.
func BillableHours(entryAt, exitAt time.Time) int64 {
	if entryAt.IsZero() || exitAt.IsZero() || !exitAt.After(entryAt) {
		return 0
	}

	minutes := int64(exitAt.Sub(entryAt) / time.Minute)
	hours := (minutes + 59) / 60
	if hours < 1 {
		hours = 1
	}
	return hours
}

// Validate reports whether the interval is one Charge would bill.
func Validate(entryAt, exitAt time.Time) error {
	if exitAt.Before(entryAt) {
		return ErrInvalidInterval
	}
	return nil
}

func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func effectiveExit(exitAt *time.Time, now func() time.Time) time.Time {
	if exitAt != nil {
		return *exitAt
	}
	if now == nil {
		return time.Now()
	}
	return now()
}
