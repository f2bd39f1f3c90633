// Package report builds read-only projections over parkings and entries.
package report

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"parkwise/internal/billing"
	"parkwise/internal/database"
	"parkwise/internal/domain"
	"parkwise/internal/models"

	"github.com/rs/zerolog"
)

// Aggregator computes reports. It takes no locks, so concurrent writes may
// make a report a slightly stale snapshot.
type Aggregator struct {
	repo   domain.ReportRepository
	loc    *time.Location
	logger *zerolog.Logger
}

type AggregatorOption func(*Aggregator)

// WithLogger reports ledger drift found while building occupancy.
func WithLogger(logger *zerolog.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if logger != nil {
			l := logger.With().Str("component", "report").Logger()
			a.logger = &l
		}
	}
}

func NewAggregator(repo domain.ReportRepository, loc *time.Location, opts ...AggregatorOption) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	nop := zerolog.Nop()
	a := &Aggregator{repo: repo, loc: loc, logger: &nop}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ParseRange turns inclusive YYYY-MM-DD bounds into [start 00:00, end+1d 00:00)
// in the report timezone.
func (a *Aggregator) ParseRange(startDate, endDate string) (models.DateRange, error) {
	startDate = strings.TrimSpace(startDate)
	endDate = strings.TrimSpace(endDate)
	if startDate == "" || endDate == "" {
		return models.DateRange{}, fmt.Errorf("%w: startDate and endDate are required", database.ErrInvalidInput)
	}

	from, err := time.ParseInLocation(models.DateLayout, startDate, a.loc)
	if err != nil {
		return models.DateRange{}, fmt.Errorf("%w: startDate %q is not YYYY-MM-DD", database.ErrInvalidInput, startDate)
	}
	to, err := time.ParseInLocation(models.DateLayout, endDate, a.loc)
	if err != nil {
		return models.DateRange{}, fmt.Errorf("%w: endDate %q is not YYYY-MM-DD", database.ErrInvalidInput, endDate)
	}
	if to.Before(from) {
		return models.DateRange{}, fmt.Errorf("%w: endDate precedes startDate", database.ErrInvalidInput)
	}

	return models.DateRange{From: from, To: to.AddDate(0, 0, 1)}, nil
}

// ValidGroupBy reports whether g is a supported revenue grouping.
func ValidGroupBy(g string) bool {
	switch g {
	case models.GroupByNone, models.GroupByParking, models.GroupByDay:
		return true
	}
	return false
}

func (a *Aggregator) Outgoing(ctx context.Context, r models.DateRange) (*models.OutgoingReport, error) {
	entries, err := a.repo.GetEntriesExitedBetween(ctx, r.From, r.To)
	if err != nil {
		return nil, fmt.Errorf("outgoing report: %w", err)
	}

	rep := &models.OutgoingReport{Range: r, Count: len(entries), Entries: nonNil(entries)}
	rep.TotalCharged = sumCharged(entries)
	return rep, nil
}

func (a *Aggregator) Incoming(ctx context.Context, r models.DateRange) (*models.IncomingReport, error) {
	entries, err := a.repo.GetEntriesEnteredBetween(ctx, r.From, r.To)
	if err != nil {
		return nil, fmt.Errorf("incoming report: %w", err)
	}
	return &models.IncomingReport{Range: r, Count: len(entries), Entries: nonNil(entries)}, nil
}

// Occupancy counts open entries per parking at call time. A space ledger
// that disagrees with the open entries is logged and the entries win.
func (a *Aggregator) Occupancy(ctx context.Context) (*models.OccupancyReport, error) {
	parkings, err := a.repo.ListParkings(ctx)
	if err != nil {
		return nil, fmt.Errorf("occupancy report: %w", err)
	}
	open, err := a.repo.CountOpenEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("occupancy report: %w", err)
	}

	rep := &models.OccupancyReport{Parkings: make([]models.ParkingOccupancy, 0, len(parkings))}
	for _, p := range parkings {
		occupied := open[p.Code]
		if ledger := p.Occupied(); ledger != occupied {
			a.logger.Warn().
				Str("parking", p.Code).
				Int64("ledger_occupied", ledger).
				Int64("open_entries", occupied).
				Msg("space ledger disagrees with open entries")
		}
		available := p.TotalSpaces - occupied
		if available < 0 {
			available = 0
		}

		rep.Parkings = append(rep.Parkings, models.ParkingOccupancy{
			ParkingCode:   p.Code,
			ParkingName:   p.Name,
			TotalSpaces:   p.TotalSpaces,
			Occupied:      occupied,
			Available:     available,
			OccupancyRate: OccupancyRate(occupied, p.TotalSpaces),
		})
		rep.TotalSpaces += p.TotalSpaces
		rep.Occupied += occupied
		rep.Available += available
	}
	rep.OccupancyRate = OccupancyRate(rep.Occupied, rep.TotalSpaces)
	return rep, nil
}

// OccupancyRate is occupied/total as a percentage with two decimals, 0 for an empty lot.
func OccupancyRate(occupied, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(occupied)/float64(total)*100*100) / 100
}

func (a *Aggregator) Revenue(ctx context.Context, r models.DateRange, groupBy string) (*models.RevenueReport, error) {
	if !ValidGroupBy(groupBy) {
		return nil, fmt.Errorf("%w: groupBy must be parking or day", database.ErrInvalidInput)
	}

	entries, err := a.repo.GetEntriesExitedBetween(ctx, r.From, r.To)
	if err != nil {
		return nil, fmt.Errorf("revenue report: %w", err)
	}

	rep := &models.RevenueReport{
		Range:        r,
		GroupBy:      groupBy,
		Count:        len(entries),
		TotalRevenue: sumCharged(entries),
	}
	if groupBy == models.GroupByNone {
		return rep, nil
	}

	groups := make(map[string]*models.RevenueGroup)
	for _, e := range entries {
		key := e.ParkingCode
		if groupBy == models.GroupByDay {
			key = e.ExitDateTime.In(a.loc).Format(models.DateLayout)
		}
		g, ok := groups[key]
		if !ok {
			g = &models.RevenueGroup{Key: key}
			groups[key] = g
		}
		g.Count++
		if e.ChargedAmount != nil {
			g.Revenue += *e.ChargedAmount
		}
	}

	rep.Groups = make([]models.RevenueGroup, 0, len(groups))
	for _, g := range groups {
		g.Revenue = billing.RoundCents(g.Revenue)
		rep.Groups = append(rep.Groups, *g)
	}
	sort.Slice(rep.Groups, func(i, j int) bool { return rep.Groups[i].Key < rep.Groups[j].Key })
	return rep, nil
}

// Entries lists visits that overlap the range: entered before its end and
// not exited before its start.
func (a *Aggregator) Entries(ctx context.Context, r models.DateRange) (*models.EntriesReport, error) {
	entries, err := a.repo.GetEntriesActiveBetween(ctx, r.From, r.To)
	if err != nil {
		return nil, fmt.Errorf("entries report: %w", err)
	}

	rep := &models.EntriesReport{Range: r, Count: len(entries), Entries: nonNil(entries)}
	for _, e := range entries {
		if e.IsOpen() {
			rep.Open++
		} else {
			rep.Closed++
		}
	}
	rep.Revenue = sumCharged(entries)
	return rep, nil
}

func sumCharged(entries []*models.Entry) float64 {
	var total float64
	for _, e := range entries {
		if e.ChargedAmount != nil {
			total += *e.ChargedAmount
		}
	}
	return billing.RoundCents(total)
}

func nonNil(entries []*models.Entry) []*models.Entry {
	if entries == nil {
		return []*models.Entry{}
	}
	return entries
}
