package database

import (
	"context"
	"testing"
	"time"

	"parkwise/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flatCharge(amount float64) ChargeFunc {
	return func(*models.Parking, *models.Entry, time.Time) float64 { return amount }
}

func TestCreateEntryWithLock(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedParking(t, db, "P1", 2, 2.5)

	entry := &models.Entry{PlateNumber: "  abc123 ", ParkingCode: "P1", RegisteredBy: "op@example.com"}
	parking, err := db.CreateEntryWithLock(ctx, entry)
	require.NoError(t, err)

	assert.NotZero(t, entry.ID)
	assert.Equal(t, "ABC123", entry.PlateNumber)
	assert.True(t, entry.IsOpen())
	assert.Nil(t, entry.ChargedAmount)
	assert.Equal(t, int64(1), parking.AvailableSpaces)

	stored, err := db.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "ABC123", stored.PlateNumber)
	assert.Equal(t, "op@example.com", stored.RegisteredBy)
	assert.Nil(t, stored.ExitDateTime)
	assert.WithinDuration(t, entry.EntryDateTime, stored.EntryDateTime, time.Microsecond)
}

func TestCreateEntryWithLock_Failures(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedParking(t, db, "P1", 1, 2.5)
	seedParking(t, db, "P2", 5, 2.5)

	_, err := db.CreateEntryWithLock(ctx, &models.Entry{PlateNumber: " ", ParkingCode: "P1"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = db.CreateEntryWithLock(ctx, &models.Entry{PlateNumber: "X1", ParkingCode: "NOPE"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.CreateEntryWithLock(ctx, &models.Entry{PlateNumber: "X1", ParkingCode: "P2"})
	require.NoError(t, err)
	_, err = db.CreateEntryWithLock(ctx, &models.Entry{PlateNumber: "x1", ParkingCode: "P2"})
	assert.ErrorIs(t, err, ErrConflict)

	// A failed registration leaves the counter untouched.
	p2, err := db.GetParking(ctx, "P2")
	require.NoError(t, err)
	assert.Equal(t, int64(4), p2.AvailableSpaces)

	// Same plate in another parking is fine.
	_, err = db.CreateEntryWithLock(ctx, &models.Entry{PlateNumber: "X1", ParkingCode: "P1"})
	require.NoError(t, err)

	// Full and duplicate at once: the duplicate is reported first.
	_, err = db.CreateEntryWithLock(ctx, &models.Entry{PlateNumber: "X1", ParkingCode: "P1"})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = db.CreateEntryWithLock(ctx, &models.Entry{PlateNumber: "X2", ParkingCode: "P1"})
	assert.ErrorIs(t, err, ErrNoCapacity)
}

func TestCloseEntryWithLock(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedParking(t, db, "P1", 1, 2.5)

	entry := &models.Entry{PlateNumber: "ABC", ParkingCode: "P1", EntryDateTime: time.Now().Add(-65 * time.Minute)}
	_, err := db.CreateEntryWithLock(ctx, entry)
	require.NoError(t, err)

	exitAt := time.Now()
	var seenFee float64
	res, err := db.CloseEntryWithLock(ctx, entry.ID, "op@example.com", exitAt,
		func(p *models.Parking, e *models.Entry, at time.Time) float64 {
			seenFee = p.HourlyFee
			assert.Equal(t, entry.ID, e.ID)
			return 5.0
		})
	require.NoError(t, err)

	assert.Equal(t, 2.5, seenFee)
	assert.False(t, res.Clamped)
	assert.False(t, res.Entry.IsOpen())
	require.NotNil(t, res.Entry.ChargedAmount)
	assert.Equal(t, 5.0, *res.Entry.ChargedAmount)
	assert.Equal(t, int64(2), res.Entry.Version)
	assert.Equal(t, int64(1), res.Parking.AvailableSpaces)

	stored, err := db.GetEntry(ctx, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ExitDateTime)
	assert.Equal(t, "op@example.com", stored.ClosedBy)
	assert.Equal(t, models.EntryStatusClosed, stored.Status())

	_, err = db.CloseEntryWithLock(ctx, entry.ID, "", time.Now(), flatCharge(1))
	assert.ErrorIs(t, err, ErrConflict)

	_, err = db.CloseEntryWithLock(ctx, 9999, "", time.Now(), flatCharge(1))
	assert.ErrorIs(t, err, ErrNotFound)

	p, err := db.GetParking(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.AvailableSpaces)
}

func TestEntries_FiftySpaceRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedParking(t, db, "BIG", 50, 1)

	ids := make([]int64, 0, 50)
	for i := 0; i < 50; i++ {
		e := &models.Entry{PlateNumber: plate(i), ParkingCode: "BIG"}
		_, err := db.CreateEntryWithLock(ctx, e)
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}

	_, err := db.CreateEntryWithLock(ctx, &models.Entry{PlateNumber: "EXTRA", ParkingCode: "BIG"})
	assert.ErrorIs(t, err, ErrNoCapacity)

	p, err := db.GetParking(ctx, "BIG")
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.AvailableSpaces)

	for _, id := range ids {
		_, err := db.CloseEntryWithLock(ctx, id, "", time.Now(), flatCharge(1))
		require.NoError(t, err)
	}

	p, err = db.GetParking(ctx, "BIG")
	require.NoError(t, err)
	assert.Equal(t, int64(50), p.AvailableSpaces)

	active, err := db.ListEntries(ctx, EntryFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestListEntries(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedParking(t, db, "A", 10, 1)
	seedParking(t, db, "B", 10, 1)

	base := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	first := &models.Entry{PlateNumber: "AAA", ParkingCode: "A", EntryDateTime: base}
	second := &models.Entry{PlateNumber: "BBB", ParkingCode: "B", EntryDateTime: base.Add(time.Hour)}
	third := &models.Entry{PlateNumber: "CCC", ParkingCode: "A", EntryDateTime: base.Add(2 * time.Hour)}
	for _, e := range []*models.Entry{first, second, third} {
		_, err := db.CreateEntryWithLock(ctx, e)
		require.NoError(t, err)
	}
	_, err := db.CloseEntryWithLock(ctx, first.ID, "", base.Add(3*time.Hour), flatCharge(3))
	require.NoError(t, err)

	all, err := db.ListEntries(ctx, EntryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, third.ID, all[0].ID)

	inA, err := db.ListEntries(ctx, EntryFilter{ParkingCode: "A"})
	require.NoError(t, err)
	assert.Len(t, inA, 2)

	activeA, err := db.ListEntries(ctx, EntryFilter{ParkingCode: "A", ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, activeA, 1)
	assert.Equal(t, third.ID, activeA[0].ID)

	counts, err := db.CountOpenEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"A": 1, "B": 1}, counts)
}

func TestEntriesByRange(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedParking(t, db, "A", 10, 1)

	day := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	mk := func(plateNo string, in time.Duration, out *time.Duration) *models.Entry {
		e := &models.Entry{PlateNumber: plateNo, ParkingCode: "A", EntryDateTime: day.Add(in)}
		_, err := db.CreateEntryWithLock(ctx, e)
		require.NoError(t, err)
		if out != nil {
			_, err = db.CloseEntryWithLock(ctx, e.ID, "", day.Add(*out), flatCharge(2))
			require.NoError(t, err)
		}
		return e
	}
	dur := func(d time.Duration) *time.Duration { return &d }

	before := mk("BEFORE", -30*time.Hour, dur(-26*time.Hour))
	overlap := mk("OVERLAP", -2*time.Hour, dur(3*time.Hour))
	inside := mk("INSIDE", 5*time.Hour, dur(7*time.Hour))
	open := mk("OPEN", 20*time.Hour, nil)
	after := mk("AFTER", 30*time.Hour, dur(31*time.Hour))

	from, to := day, day.Add(24*time.Hour)

	exited, err := db.GetEntriesExitedBetween(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, []int64{overlap.ID, inside.ID}, ids(exited))

	entered, err := db.GetEntriesEnteredBetween(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, []int64{inside.ID, open.ID}, ids(entered))

	active, err := db.GetEntriesActiveBetween(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, []int64{overlap.ID, inside.ID, open.ID}, ids(active))

	_ = before
	_ = after
}

func plate(i int) string {
	return "CAR" + string(rune('A'+i/26)) + string(rune('A'+i%26))
}

func ids(entries []*models.Entry) []int64 {
	out := make([]int64, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}
