package service

import (
	"context"
	"fmt"
	"time"

	"parkwise/internal/database"
	"parkwise/internal/models"
	"parkwise/internal/report"
)

// ReportService parses request parameters and runs the aggregator.
type ReportService struct {
	agg *report.Aggregator
	loc *time.Location
}

func NewReportService(agg *report.Aggregator, loc *time.Location) *ReportService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportService{agg: agg, loc: loc}
}

func (s *ReportService) Outgoing(ctx context.Context, startDate, endDate string) (*models.OutgoingReport, error) {
	r, err := s.agg.ParseRange(startDate, endDate)
	if err != nil {
		return nil, err
	}
	return s.agg.Outgoing(ctx, r)
}

func (s *ReportService) Incoming(ctx context.Context, startDate, endDate string) (*models.IncomingReport, error) {
	r, err := s.agg.ParseRange(startDate, endDate)
	if err != nil {
		return nil, err
	}
	return s.agg.Incoming(ctx, r)
}

func (s *ReportService) Occupancy(ctx context.Context) (*models.OccupancyReport, error) {
	return s.agg.Occupancy(ctx)
}

func (s *ReportService) Revenue(ctx context.Context, startDate, endDate, groupBy string) (*models.RevenueReport, error) {
	if !report.ValidGroupBy(groupBy) {
		return nil, fmt.Errorf("%w: groupBy must be parking or day", database.ErrInvalidInput)
	}
	r, err := s.agg.ParseRange(startDate, endDate)
	if err != nil {
		return nil, err
	}
	return s.agg.Revenue(ctx, r, groupBy)
}

func (s *ReportService) Entries(ctx context.Context, startDate, endDate string) (*models.EntriesReport, error) {
	r, err := s.agg.ParseRange(startDate, endDate)
	if err != nil {
		return nil, err
	}
	return s.agg.Entries(ctx, r)
}

// Export builds the named report and renders it as XLSX.
// It returns the workbook and a suggested file name.
func (s *ReportService) Export(ctx context.Context, kind, startDate, endDate, groupBy string) ([]byte, string, error) {
	var (
		data interface{}
		rng  *models.DateRange
		err  error
	)

	switch kind {
	case report.KindOutgoing:
		var rep *models.OutgoingReport
		rep, err = s.Outgoing(ctx, startDate, endDate)
		if rep != nil {
			data, rng = rep, &rep.Range
		}
	case report.KindIncoming:
		var rep *models.IncomingReport
		rep, err = s.Incoming(ctx, startDate, endDate)
		if rep != nil {
			data, rng = rep, &rep.Range
		}
	case report.KindRevenue:
		var rep *models.RevenueReport
		rep, err = s.Revenue(ctx, startDate, endDate, groupBy)
		if rep != nil {
			data, rng = rep, &rep.Range
		}
	case report.KindEntries:
		var rep *models.EntriesReport
		rep, err = s.Entries(ctx, startDate, endDate)
		if rep != nil {
			data, rng = rep, &rep.Range
		}
	case report.KindOccupancy:
		data, err = s.Occupancy(ctx)
	default:
		return nil, "", fmt.Errorf("report %q: %w", kind, database.ErrNotFound)
	}
	if err != nil {
		return nil, "", err
	}

	content, err := report.ExportXLSX(kind, data, s.loc)
	if err != nil {
		return nil, "", err
	}
	return content, report.ExportFileName(kind, rng, s.loc), nil
}
