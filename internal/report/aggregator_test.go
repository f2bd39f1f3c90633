package report

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"parkwise/internal/database"
	"parkwise/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type mockRepo struct{ mock.Mock }

func (m *mockRepo) GetEntriesExitedBetween(ctx context.Context, from, to time.Time) ([]*models.Entry, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).([]*models.Entry), args.Error(1)
}

func (m *mockRepo) GetEntriesEnteredBetween(ctx context.Context, from, to time.Time) ([]*models.Entry, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).([]*models.Entry), args.Error(1)
}

func (m *mockRepo) GetEntriesActiveBetween(ctx context.Context, from, to time.Time) ([]*models.Entry, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).([]*models.Entry), args.Error(1)
}

func (m *mockRepo) ListParkings(ctx context.Context) ([]*models.Parking, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*models.Parking), args.Error(1)
}

func (m *mockRepo) CountOpenEntries(ctx context.Context) (map[string]int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[string]int64), args.Error(1)
}

func closedEntry(id int64, code string, exit time.Time, charged float64) *models.Entry {
	entry := exit.Add(-time.Hour)
	return &models.Entry{
		ID:            id,
		ParkingCode:   code,
		PlateNumber:   "PLATE",
		EntryDateTime: entry,
		ExitDateTime:  &exit,
		ChargedAmount: &charged,
	}
}

func TestParseRange(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	a := NewAggregator(nil, loc)

	r, err := a.ParseRange("2024-05-01", "2024-05-03")
	require.NoError(t, err)
	assert.True(t, r.From.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, loc)))
	assert.True(t, r.To.Equal(time.Date(2024, 5, 4, 0, 0, 0, 0, loc)))
	assert.True(t, r.Contains(time.Date(2024, 5, 3, 23, 59, 0, 0, loc)))
	assert.False(t, r.Contains(time.Date(2024, 5, 4, 0, 0, 0, 0, loc)))

	// A single day is a 24h window.
	r, err = a.ParseRange("2024-05-01", "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, r.To.Sub(r.From))

	cases := []struct{ start, end string }{
		{"", "2024-05-01"},
		{"2024-05-01", ""},
		{"01.05.2024", "2024-05-02"},
		{"2024-05-01", "tomorrow"},
		{"2024-05-03", "2024-05-01"},
	}
	for _, tc := range cases {
		_, err := a.ParseRange(tc.start, tc.end)
		assert.ErrorIs(t, err, database.ErrInvalidInput, "%q..%q", tc.start, tc.end)
	}
}

func TestOccupancy(t *testing.T) {
	repo := &mockRepo{}
	repo.On("ListParkings", mock.Anything).Return([]*models.Parking{
		{Code: "P1", Name: "Central", TotalSpaces: 100, AvailableSpaces: 70},
		{Code: "P2", Name: "North", TotalSpaces: 3, AvailableSpaces: 2},
		{Code: "P3", Name: "Closed", TotalSpaces: 0, AvailableSpaces: 0},
	}, nil)
	repo.On("CountOpenEntries", mock.Anything).Return(map[string]int64{"P1": 30, "P2": 1}, nil)

	rep, err := NewAggregator(repo, nil).Occupancy(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Parkings, 3)

	assert.Equal(t, int64(30), rep.Parkings[0].Occupied)
	assert.Equal(t, 30.0, rep.Parkings[0].OccupancyRate)
	assert.Equal(t, 33.33, rep.Parkings[1].OccupancyRate)
	assert.Equal(t, 0.0, rep.Parkings[2].OccupancyRate)

	assert.Equal(t, int64(103), rep.TotalSpaces)
	assert.Equal(t, int64(31), rep.Occupied)
	assert.Equal(t, int64(72), rep.Available)
	assert.Equal(t, 30.1, rep.OccupancyRate)
}

func TestOccupancyCountsOpenEntriesOverLedger(t *testing.T) {
	repo := &mockRepo{}
	repo.On("ListParkings", mock.Anything).Return([]*models.Parking{
		{Code: "P1", Name: "Central", TotalSpaces: 10, AvailableSpaces: 10},
		{Code: "P2", Name: "North", TotalSpaces: 4, AvailableSpaces: 0},
	}, nil)
	repo.On("CountOpenEntries", mock.Anything).Return(map[string]int64{"P1": 3, "P2": 2}, nil)

	var logs bytes.Buffer
	logger := zerolog.New(&logs)
	rep, err := NewAggregator(repo, nil, WithLogger(&logger)).Occupancy(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Parkings, 2)

	assert.Equal(t, int64(3), rep.Parkings[0].Occupied)
	assert.Equal(t, int64(7), rep.Parkings[0].Available)
	assert.Equal(t, 30.0, rep.Parkings[0].OccupancyRate)
	assert.Equal(t, int64(2), rep.Parkings[1].Occupied)
	assert.Equal(t, int64(2), rep.Parkings[1].Available)
	assert.Equal(t, int64(5), rep.Occupied)

	assert.Contains(t, logs.String(), "space ledger disagrees with open entries")
	assert.Contains(t, logs.String(), `"parking":"P1"`)
}

func TestOccupancyStoreError(t *testing.T) {
	repo := &mockRepo{}
	repo.On("ListParkings", mock.Anything).Return([]*models.Parking{{Code: "P1", TotalSpaces: 1}}, nil)
	repo.On("CountOpenEntries", mock.Anything).Return(map[string]int64(nil), errors.New("disk I/O error"))

	_, err := NewAggregator(repo, nil).Occupancy(context.Background())
	assert.Error(t, err)
}

func TestRevenueGroupedByDay(t *testing.T) {
	repo := &mockRepo{}
	a := NewAggregator(repo, time.UTC)
	r, err := a.ParseRange("2024-05-01", "2024-05-02")
	require.NoError(t, err)

	entries := []*models.Entry{
		closedEntry(1, "P1", time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), 5),
		closedEntry(2, "P2", time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC), 2.5),
		closedEntry(3, "P1", time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC), 7.5),
	}
	repo.On("GetEntriesExitedBetween", mock.Anything, r.From, r.To).Return(entries, nil)

	rep, err := a.Revenue(context.Background(), r, models.GroupByDay)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Count)
	assert.Equal(t, 15.0, rep.TotalRevenue)
	assert.Equal(t, []models.RevenueGroup{
		{Key: "2024-05-01", Count: 2, Revenue: 7.5},
		{Key: "2024-05-02", Count: 1, Revenue: 7.5},
	}, rep.Groups)

	rep, err = a.Revenue(context.Background(), r, models.GroupByParking)
	require.NoError(t, err)
	assert.Equal(t, []models.RevenueGroup{
		{Key: "P1", Count: 2, Revenue: 12.5},
		{Key: "P2", Count: 1, Revenue: 2.5},
	}, rep.Groups)

	rep, err = a.Revenue(context.Background(), r, models.GroupByNone)
	require.NoError(t, err)
	assert.Nil(t, rep.Groups)

	_, err = a.Revenue(context.Background(), r, "week")
	assert.ErrorIs(t, err, database.ErrInvalidInput)
}

func TestRevenueDayKeyUsesReportTimezone(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	repo := &mockRepo{}
	a := NewAggregator(repo, loc)
	r, err := a.ParseRange("2024-05-02", "2024-05-02")
	require.NoError(t, err)

	// 22:30 UTC on May 1 is already May 2 locally.
	repo.On("GetEntriesExitedBetween", mock.Anything, r.From, r.To).Return([]*models.Entry{
		closedEntry(1, "P1", time.Date(2024, 5, 1, 22, 30, 0, 0, time.UTC), 5),
	}, nil)

	rep, err := a.Revenue(context.Background(), r, models.GroupByDay)
	require.NoError(t, err)
	require.Len(t, rep.Groups, 1)
	assert.Equal(t, "2024-05-02", rep.Groups[0].Key)
}

func TestOutgoingIncomingEntries(t *testing.T) {
	repo := &mockRepo{}
	a := NewAggregator(repo, time.UTC)
	r, err := a.ParseRange("2024-05-01", "2024-05-01")
	require.NoError(t, err)

	closed := closedEntry(1, "P1", time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), 5)
	open := &models.Entry{ID: 2, ParkingCode: "P1", PlateNumber: "OPEN1", EntryDateTime: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}

	repo.On("GetEntriesExitedBetween", mock.Anything, r.From, r.To).Return([]*models.Entry{closed}, nil)
	repo.On("GetEntriesEnteredBetween", mock.Anything, r.From, r.To).Return([]*models.Entry(nil), nil)
	repo.On("GetEntriesActiveBetween", mock.Anything, r.From, r.To).Return([]*models.Entry{closed, open}, nil)

	out, err := a.Outgoing(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, 5.0, out.TotalCharged)

	in, err := a.Incoming(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 0, in.Count)
	assert.NotNil(t, in.Entries, "empty reports serialize as []")

	act, err := a.Entries(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 2, act.Count)
	assert.Equal(t, 1, act.Open)
	assert.Equal(t, 1, act.Closed)
	assert.Equal(t, 5.0, act.Revenue)
}

func TestExportXLSX(t *testing.T) {
	exit := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	rep := &models.OutgoingReport{
		Range:        models.DateRange{From: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)},
		Count:        1,
		TotalCharged: 5,
		Entries:      []*models.Entry{closedEntry(1, "P1", exit, 5)},
	}

	data, err := ExportXLSX(KindOutgoing, rep, time.UTC)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{KindOutgoing}, f.GetSheetList())
	title, err := f.GetCellValue(KindOutgoing, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Outgoing: 2024-05-01 - 2024-05-01", title)

	rows, err := f.GetRows(KindOutgoing)
	require.NoError(t, err)
	last := rows[len(rows)-1]
	assert.Equal(t, "P1", last[1])
	assert.Equal(t, "CLOSED", last[6])

	_, err = ExportXLSX("bogus", struct{}{}, nil)
	assert.Error(t, err)
}

func TestExportFileName(t *testing.T) {
	r := &models.DateRange{From: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, "revenue_2024-05-01_to_2024-05-03.xlsx", ExportFileName(KindRevenue, r, time.UTC))
}
