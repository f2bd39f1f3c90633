package service

import (
	"context"
	"fmt"
	"strings"

	"parkwise/internal/auth"
	"parkwise/internal/database"
	"parkwise/internal/domain"
	"parkwise/internal/events"
	"parkwise/internal/models"

	"github.com/rs/zerolog"
)

type ParkingService struct {
	repo     domain.ParkingRepository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewParkingService(repo domain.ParkingRepository, eventBus domain.EventPublisher, logger *zerolog.Logger) *ParkingService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ParkingService{repo: repo, eventBus: eventBus, logger: logger}
}

func (s *ParkingService) ListParkings(ctx context.Context) ([]*models.Parking, error) {
	return s.repo.ListParkings(ctx)
}

func (s *ParkingService) GetParking(ctx context.Context, code string) (*models.Parking, error) {
	return s.repo.GetParking(ctx, strings.TrimSpace(code))
}

// CreateParking adds a lot with every space available. Admin only.
func (s *ParkingService) CreateParking(ctx context.Context, p auth.Principal, parking *models.Parking) error {
	if err := p.RequireAdmin(); err != nil {
		return err
	}

	parking.Code = strings.TrimSpace(parking.Code)
	parking.Name = strings.TrimSpace(parking.Name)
	parking.Location = strings.TrimSpace(parking.Location)
	if err := validateParking(parking.Code, parking.Name, parking.TotalSpaces, parking.HourlyFee); err != nil {
		return err
	}

	if err := s.repo.CreateParking(ctx, parking); err != nil {
		return err
	}

	s.logger.Info().Str("parking", parking.Code).Str("by", p.Email).Int64("total", parking.TotalSpaces).Msg("parking created")
	s.publishParkingEvent(parking, false)
	return nil
}

// UpdateParking applies the non-nil fields of upd. A total change shifts
// available spaces by the same delta. Admin only.
func (s *ParkingService) UpdateParking(ctx context.Context, p auth.Principal, code string, upd models.ParkingUpdate) (*models.Parking, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", database.ErrInvalidInput)
		}
		upd.Name = &name
	}
	if upd.TotalSpaces != nil && *upd.TotalSpaces < 0 {
		return nil, fmt.Errorf("%w: totalSpaces must not be negative", database.ErrInvalidInput)
	}
	if upd.HourlyFee != nil && *upd.HourlyFee < 0 {
		return nil, fmt.Errorf("%w: hourlyFee must not be negative", database.ErrInvalidInput)
	}

	parking, err := s.repo.UpdateParking(ctx, strings.TrimSpace(code), upd)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("parking", parking.Code).Str("by", p.Email).Msg("parking updated")
	s.publishParkingEvent(parking, false)
	return parking, nil
}

// DeleteParking removes a lot that has no vehicle inside. Admin only.
func (s *ParkingService) DeleteParking(ctx context.Context, p auth.Principal, code string) error {
	if err := p.RequireAdmin(); err != nil {
		return err
	}
	code = strings.TrimSpace(code)
	if err := s.repo.DeleteParking(ctx, code); err != nil {
		return err
	}

	s.logger.Info().Str("parking", code).Str("by", p.Email).Msg("parking deleted")
	s.publishParkingEvent(&models.Parking{Code: code}, true)
	return nil
}

// SeedParkings upserts lots from a seed file.
func (s *ParkingService) SeedParkings(ctx context.Context, parkings []models.Parking) error {
	for i := range parkings {
		parkings[i].Code = strings.TrimSpace(parkings[i].Code)
		if err := validateParking(parkings[i].Code, parkings[i].Name, parkings[i].TotalSpaces, parkings[i].HourlyFee); err != nil {
			return fmt.Errorf("seed parking #%d: %w", i+1, err)
		}
	}
	if err := s.repo.SyncParkings(ctx, parkings); err != nil {
		return err
	}

	s.logger.Info().Int("count", len(parkings)).Msg("parkings seeded")
	return nil
}

func validateParking(code, name string, total int64, fee float64) error {
	switch {
	case code == "":
		return fmt.Errorf("%w: code is required", database.ErrInvalidInput)
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: name is required", database.ErrInvalidInput)
	case total < 0:
		return fmt.Errorf("%w: totalSpaces must not be negative", database.ErrInvalidInput)
	case fee < 0:
		return fmt.Errorf("%w: hourlyFee must not be negative", database.ErrInvalidInput)
	}
	return nil
}

func (s *ParkingService) publishParkingEvent(parking *models.Parking, deleted bool) {
	if s.eventBus == nil {
		return
	}

	payload := events.ParkingEventPayload{
		ParkingCode:     parking.Code,
		AvailableSpaces: parking.AvailableSpaces,
		TotalSpaces:     parking.TotalSpaces,
		Deleted:         deleted,
	}
	if err := s.eventBus.PublishJSON(events.EventParkingChanged, payload); err != nil {
		s.logger.Error().Err(err).Str("parking", parking.Code).Msg("publish event error")
	}
}
