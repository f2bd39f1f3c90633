package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"parkwise/internal/database"
	"parkwise/internal/events"
	"parkwise/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEntryService_RegisterEntry(t *testing.T) {
	repo := &mockEntryRepo{}
	pub := &mockPublisher{}
	notifier := &mockNotifier{}
	clock := &fakeClock{t: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	svc := NewEntryService(repo, pub, notifier, nil, WithClock(clock.Now))

	parking := &models.Parking{Code: "P1", Name: "Central", TotalSpaces: 10, AvailableSpaces: 9, HourlyFee: 2.5}
	repo.On("CreateEntryWithLock", mock.Anything, mock.MatchedBy(func(e *models.Entry) bool {
		return e.PlateNumber == "AB123CD" && e.ParkingCode == "P1" && e.EntryDateTime.Equal(clock.t) && e.RegisteredBy == operator.Email
	})).Run(func(args mock.Arguments) {
		e := args.Get(1).(*models.Entry)
		e.ID = 7
		e.Version = 1
	}).Return(parking, nil)
	pub.On("PublishJSON", events.EventEntryRegistered, mock.MatchedBy(func(p events.EntryEventPayload) bool {
		return p.EntryID == 7 && p.AvailableSpaces == 9
	})).Return(nil)
	notifier.On("EnqueueTicket", mock.Anything, mock.Anything, operator.Email).Return(errors.New("queue down"))

	receipt, err := svc.RegisterEntry(context.Background(), operator, "  ab123cd ", " P1 ")
	require.NoError(t, err, "notification failures are swallowed")

	assert.Equal(t, int64(7), receipt.Entry.ID)
	assert.Equal(t, models.Ticket{
		EntryID:       7,
		TicketID:      "TKT-000007",
		PlateNumber:   "AB123CD",
		ParkingCode:   "P1",
		ParkingName:   "Central",
		EntryDateTime: clock.t,
		HourlyFee:     2.5,
	}, receipt.Ticket)

	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestEntryService_RegisterEntryValidation(t *testing.T) {
	repo := &mockEntryRepo{}
	svc := NewEntryService(repo, nil, nil, nil)

	_, err := svc.RegisterEntry(context.Background(), operator, "   ", "P1")
	assert.ErrorIs(t, err, database.ErrInvalidInput)

	_, err = svc.RegisterEntry(context.Background(), operator, "AB123CD", "")
	assert.ErrorIs(t, err, database.ErrInvalidInput)

	repo.AssertNotCalled(t, "CreateEntryWithLock", mock.Anything, mock.Anything)
}

func TestEntryService_RegisterEntryPropagatesStoreErrors(t *testing.T) {
	for _, want := range []error{database.ErrNotFound, database.ErrNoCapacity, database.ErrConflict} {
		repo := &mockEntryRepo{}
		repo.On("CreateEntryWithLock", mock.Anything, mock.Anything).Return(nil, want)
		svc := NewEntryService(repo, nil, nil, nil)

		_, err := svc.RegisterEntry(context.Background(), operator, "AB123CD", "P1")
		assert.ErrorIs(t, err, want)
	}
}

func TestEntryService_EntryExitRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreateParking(ctx, &models.Parking{Code: "P1", Name: "Central", TotalSpaces: 2, HourlyFee: 2.5}))

	clock := &fakeClock{t: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	bus := events.NewEventBus()
	var closed []events.EntryEventPayload
	bus.Subscribe(events.EventEntryClosed, func(e *events.Event) error {
		var p events.EntryEventPayload
		require.NoError(t, e.Decode(&p))
		closed = append(closed, p)
		return nil
	})
	svc := NewEntryService(db, bus, nil, nil, WithClock(clock.Now))

	in, err := svc.RegisterEntry(ctx, operator, "ab123cd", "P1")
	require.NoError(t, err)

	_, err = svc.RegisterEntry(ctx, operator, "AB123CD", "P1")
	assert.ErrorIs(t, err, database.ErrConflict, "same plate cannot enter twice")

	clock.Advance(65 * time.Minute)
	out, err := svc.RegisterExit(ctx, operator, in.Entry.ID)
	require.NoError(t, err)

	assert.Equal(t, models.BillID(in.Entry.ID), out.Bill.BillID)
	assert.Equal(t, int64(2), out.Bill.DurationHours)
	assert.Equal(t, 5.0, out.Bill.TotalAmount)
	assert.Equal(t, "Central", out.Bill.ParkingName)
	assert.True(t, out.Bill.ExitDateTime.Equal(clock.t))
	require.NotNil(t, out.Entry.ChargedAmount)
	assert.Equal(t, 5.0, *out.Entry.ChargedAmount)
	assert.Equal(t, models.EntryStatusClosed, out.Entry.Status())

	_, err = svc.RegisterExit(ctx, operator, in.Entry.ID)
	assert.ErrorIs(t, err, database.ErrConflict, "exit twice")

	_, err = svc.RegisterExit(ctx, operator, 9999)
	assert.ErrorIs(t, err, database.ErrNotFound)

	p, err := db.GetParking(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.AvailableSpaces)

	require.Len(t, closed, 1)
	assert.Equal(t, 5.0, closed[0].ChargedAmount)
	assert.Equal(t, int64(2), closed[0].AvailableSpaces)
}

func TestEntryService_ShortStayChargesOneHour(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreateParking(ctx, &models.Parking{Code: "P1", Name: "Central", TotalSpaces: 1, HourlyFee: 2.5}))

	clock := &fakeClock{t: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
	svc := NewEntryService(db, nil, nil, nil, WithClock(clock.Now))

	in, err := svc.RegisterEntry(ctx, operator, "AB123CD", "P1")
	require.NoError(t, err)

	_, err = svc.RegisterEntry(ctx, operator, "ZZ999ZZ", "P1")
	assert.ErrorIs(t, err, database.ErrNoCapacity)

	clock.Advance(time.Minute)
	out, err := svc.RegisterExit(ctx, operator, in.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Bill.DurationHours)
	assert.Equal(t, 2.5, out.Bill.TotalAmount)
}

func TestEntryService_RegisterExitNotifies(t *testing.T) {
	repo := &mockEntryRepo{}
	notifier := &mockNotifier{}
	entryAt := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	exitAt := entryAt.Add(3 * time.Hour)
	clock := &fakeClock{t: exitAt}
	svc := NewEntryService(repo, nil, notifier, nil, WithClock(clock.Now))

	charged := 7.5
	repo.On("CloseEntryWithLock", mock.Anything, int64(3), operator.Email, exitAt, mock.Anything).Return(&database.CloseResult{
		Entry: &models.Entry{
			ID: 3, ParkingCode: "P1", PlateNumber: "AB123CD",
			EntryDateTime: entryAt, ExitDateTime: &exitAt, ChargedAmount: &charged, Version: 2,
		},
		Parking: &models.Parking{Code: "P1", Name: "Central", TotalSpaces: 5, AvailableSpaces: 5, HourlyFee: 2.5},
		Clamped: true,
	}, nil)
	notifier.On("EnqueueBill", mock.Anything, mock.MatchedBy(func(b models.Bill) bool {
		return b.BillID == "BILL-000003" && b.TotalAmount == 7.5 && b.DurationHours == 3
	}), operator.Email).Return(nil)

	out, err := svc.RegisterExit(context.Background(), operator, 3)
	require.NoError(t, err)
	assert.Equal(t, 7.5, out.Bill.TotalAmount)
	notifier.AssertExpectations(t)
}

func TestEntryService_ChargeInvertedInterval(t *testing.T) {
	svc := NewEntryService(nil, nil, nil, nil)
	entryAt := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	amount := svc.charge(&models.Parking{HourlyFee: 2.5}, &models.Entry{ID: 1, EntryDateTime: entryAt}, entryAt.Add(-time.Minute))
	assert.Equal(t, 0.0, amount)
}

func TestEntryService_Queries(t *testing.T) {
	repo := &mockEntryRepo{}
	svc := NewEntryService(repo, nil, nil, nil)
	ctx := context.Background()

	repo.On("ListEntries", mock.Anything, database.EntryFilter{ActiveOnly: true}).Return([]*models.Entry{{ID: 1}}, nil)
	repo.On("ListEntries", mock.Anything, database.EntryFilter{ParkingCode: "P1"}).Return([]*models.Entry{{ID: 2}}, nil)
	repo.On("ListEntries", mock.Anything, database.EntryFilter{ParkingCode: "P1", ActiveOnly: true}).Return([]*models.Entry{}, nil)
	repo.On("GetEntry", mock.Anything, int64(5)).Return(nil, database.ErrNotFound)

	active, err := svc.ListActiveEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	byParking, err := svc.ListEntries(ctx, " P1 ")
	require.NoError(t, err)
	assert.Equal(t, int64(2), byParking[0].ID)

	openInP1, err := svc.ListEntriesByParking(ctx, "P1", true)
	require.NoError(t, err)
	assert.Empty(t, openInP1)

	_, err = svc.ListEntriesByParking(ctx, "", false)
	assert.ErrorIs(t, err, database.ErrInvalidInput)

	_, err = svc.GetEntry(ctx, 5)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestEntryService_DuplicateOnFullLotIsConflict(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.CreateParking(ctx, &models.Parking{Code: "P1", Name: "Central", TotalSpaces: 1, HourlyFee: 2.5}))

	svc := NewEntryService(db, nil, nil, nil)

	_, err := svc.RegisterEntry(ctx, operator, "ABC123", "P1")
	require.NoError(t, err)

	_, err = svc.RegisterEntry(ctx, operator, "ABC123", "P1")
	assert.ErrorIs(t, err, database.ErrConflict)
	assert.NotErrorIs(t, err, database.ErrNoCapacity)

	p, err := db.GetParking(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.AvailableSpaces)
}
