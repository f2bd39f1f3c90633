package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"parkwise/internal/auth"
	"parkwise/internal/billing"
	"parkwise/internal/database"
	"parkwise/internal/domain"
	"parkwise/internal/events"
	"parkwise/internal/models"

	"github.com/rs/zerolog"
)

// EntryReceipt is returned when a vehicle enters.
type EntryReceipt struct {
	Entry  *models.Entry `json:"entry"`
	Ticket models.Ticket `json:"ticket"`
}

// ExitReceipt is returned when a vehicle leaves.
type ExitReceipt struct {
	Entry *models.Entry `json:"entry"`
	Bill  models.Bill   `json:"bill"`
}

type EntryService struct {
	repo     domain.EntryRepository
	eventBus domain.EventPublisher
	notifier domain.Notifier
	now      func() time.Time
	logger   *zerolog.Logger
}

type EntryOption func(*EntryService)

// WithClock replaces the wall clock used for entry and exit times.
func WithClock(now func() time.Time) EntryOption {
	return func(s *EntryService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewEntryService(repo domain.EntryRepository, eventBus domain.EventPublisher, notifier domain.Notifier, logger *zerolog.Logger, opts ...EntryOption) *EntryService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &EntryService{
		repo:     repo,
		eventBus: eventBus,
		notifier: notifier,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterEntry opens a visit for plate at parking code and takes one space.
func (s *EntryService) RegisterEntry(ctx context.Context, p auth.Principal, plateNumber, parkingCode string) (*EntryReceipt, error) {
	plateNumber = database.NormalizePlate(plateNumber)
	parkingCode = strings.TrimSpace(parkingCode)
	if plateNumber == "" {
		return nil, fmt.Errorf("%w: plateNumber is required", database.ErrInvalidInput)
	}
	if parkingCode == "" {
		return nil, fmt.Errorf("%w: parkingCode is required", database.ErrInvalidInput)
	}

	entry := &models.Entry{
		ParkingCode:   parkingCode,
		PlateNumber:   plateNumber,
		EntryDateTime: s.now(),
		RegisteredBy:  p.Email,
	}

	parking, err := s.repo.CreateEntryWithLock(ctx, entry)
	if err != nil {
		return nil, err
	}

	ticket := models.NewTicket(entry, parking)

	s.logger.Info().
		Int64("entry_id", entry.ID).
		Str("plate", entry.PlateNumber).
		Str("parking", parking.Code).
		Int64("available", parking.AvailableSpaces).
		Msg("vehicle entered")

	s.publishEntryEvent(events.EventEntryRegistered, entry, parking, p.Email)

	if s.notifier != nil {
		if err := s.notifier.EnqueueTicket(ctx, ticket, p.Email); err != nil {
			s.logger.Warn().Err(err).Int64("entry_id", entry.ID).Msg("ticket notification enqueue failed")
		}
	}

	return &EntryReceipt{Entry: entry, Ticket: ticket}, nil
}

// RegisterExit closes an open visit, prices it and frees its space.
func (s *EntryService) RegisterExit(ctx context.Context, p auth.Principal, entryID int64) (*ExitReceipt, error) {
	if entryID <= 0 {
		return nil, fmt.Errorf("entry %d: %w", entryID, database.ErrNotFound)
	}

	exitAt := s.now()
	res, err := s.repo.CloseEntryWithLock(ctx, entryID, p.Email, exitAt, s.charge)
	if err != nil {
		return nil, err
	}

	entry, parking := res.Entry, res.Parking
	if res.Clamped {
		s.logger.Warn().
			Int64("entry_id", entry.ID).
			Str("parking", parking.Code).
			Int64("total", parking.TotalSpaces).
			Msg("space release clamped at total, ledger out of step with entries")
	}

	bill := models.Bill{
		BillID:        models.BillID(entry.ID),
		EntryID:       entry.ID,
		PlateNumber:   entry.PlateNumber,
		ParkingCode:   parking.Code,
		ParkingName:   parking.Name,
		EntryDateTime: entry.EntryDateTime,
		ExitDateTime:  *entry.ExitDateTime,
		DurationHours: billing.BillableHours(entry.EntryDateTime, *entry.ExitDateTime),
		HourlyFee:     parking.HourlyFee,
		TotalAmount:   *entry.ChargedAmount,
	}

	s.logger.Info().
		Int64("entry_id", entry.ID).
		Str("plate", entry.PlateNumber).
		Str("parking", parking.Code).
		Float64("charged", bill.TotalAmount).
		Msg("vehicle exited")

	s.publishEntryEvent(events.EventEntryClosed, entry, parking, p.Email)

	if s.notifier != nil {
		if err := s.notifier.EnqueueBill(ctx, bill, p.Email); err != nil {
			s.logger.Warn().Err(err).Int64("entry_id", entry.ID).Msg("bill notification enqueue failed")
		}
	}

	return &ExitReceipt{Entry: entry, Bill: bill}, nil
}

func (s *EntryService) charge(parking *models.Parking, entry *models.Entry, exitAt time.Time) float64 {
	if err := billing.Validate(entry.EntryDateTime, exitAt); err != nil {
		s.logger.Warn().Err(err).
			Int64("entry_id", entry.ID).
			Time("entry_at", entry.EntryDateTime).
			Time("exit_at", exitAt).
			Msg("billing interval rejected, charging zero")
	}
	return billing.Charge(parking.HourlyFee, entry.EntryDateTime, &exitAt, s.now)
}

func (s *EntryService) GetEntry(ctx context.Context, id int64) (*models.Entry, error) {
	return s.repo.GetEntry(ctx, id)
}

// ListEntries returns all entries, optionally for one parking.
func (s *EntryService) ListEntries(ctx context.Context, parkingCode string) ([]*models.Entry, error) {
	return s.repo.ListEntries(ctx, database.EntryFilter{ParkingCode: strings.TrimSpace(parkingCode)})
}

func (s *EntryService) ListActiveEntries(ctx context.Context) ([]*models.Entry, error) {
	return s.repo.ListEntries(ctx, database.EntryFilter{ActiveOnly: true})
}

func (s *EntryService) ListEntriesByParking(ctx context.Context, parkingCode string, activeOnly bool) ([]*models.Entry, error) {
	parkingCode = strings.TrimSpace(parkingCode)
	if parkingCode == "" {
		return nil, fmt.Errorf("%w: parkingCode is required", database.ErrInvalidInput)
	}
	return s.repo.ListEntries(ctx, database.EntryFilter{ParkingCode: parkingCode, ActiveOnly: activeOnly})
}

func (s *EntryService) publishEntryEvent(eventType string, entry *models.Entry, parking *models.Parking, changedBy string) {
	if s.eventBus == nil {
		return
	}

	payload := events.EntryEventPayload{
		EntryID:         entry.ID,
		ParkingCode:     entry.ParkingCode,
		PlateNumber:     entry.PlateNumber,
		EntryDateTime:   entry.EntryDateTime,
		ExitDateTime:    entry.ExitDateTime,
		AvailableSpaces: parking.AvailableSpaces,
		TotalSpaces:     parking.TotalSpaces,
		ChangedBy:       changedBy,
	}
	if entry.ChargedAmount != nil {
		payload.ChargedAmount = *entry.ChargedAmount
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("entry_id", entry.ID).Msg("publish event error")
	}
}
