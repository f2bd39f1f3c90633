package service

import (
	"context"
	"time"

	"parkwise/internal/auth"
	"parkwise/internal/database"
	"parkwise/internal/models"

	"github.com/stretchr/testify/mock"
)

var (
	admin    = auth.Principal{UserID: 1, Email: "admin@example.com", Role: models.RoleAdmin}
	operator = auth.Principal{UserID: 2, Email: "op@example.com", Role: models.RoleUser}
)

type mockEntryRepo struct{ mock.Mock }

func (m *mockEntryRepo) CreateEntryWithLock(ctx context.Context, entry *models.Entry) (*models.Parking, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Parking), args.Error(1)
}

func (m *mockEntryRepo) CloseEntryWithLock(ctx context.Context, id int64, closedBy string, exitAt time.Time, charge database.ChargeFunc) (*database.CloseResult, error) {
	args := m.Called(ctx, id, closedBy, exitAt, charge)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.CloseResult), args.Error(1)
}

func (m *mockEntryRepo) GetEntry(ctx context.Context, id int64) (*models.Entry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Entry), args.Error(1)
}

func (m *mockEntryRepo) ListEntries(ctx context.Context, filter database.EntryFilter) ([]*models.Entry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Entry), args.Error(1)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) EnqueueTicket(ctx context.Context, ticket models.Ticket, recipient string) error {
	return m.Called(ctx, ticket, recipient).Error(0)
}

func (m *mockNotifier) EnqueueBill(ctx context.Context, bill models.Bill, recipient string) error {
	return m.Called(ctx, bill, recipient).Error(0)
}

type mockParkingRepo struct{ mock.Mock }

func (m *mockParkingRepo) CreateParking(ctx context.Context, p *models.Parking) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockParkingRepo) GetParking(ctx context.Context, code string) (*models.Parking, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Parking), args.Error(1)
}

func (m *mockParkingRepo) ListParkings(ctx context.Context) ([]*models.Parking, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Parking), args.Error(1)
}

func (m *mockParkingRepo) UpdateParking(ctx context.Context, code string, upd models.ParkingUpdate) (*models.Parking, error) {
	args := m.Called(ctx, code, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Parking), args.Error(1)
}

func (m *mockParkingRepo) DeleteParking(ctx context.Context, code string) error {
	return m.Called(ctx, code).Error(0)
}

func (m *mockParkingRepo) SyncParkings(ctx context.Context, parkings []models.Parking) error {
	return m.Called(ctx, parkings).Error(0)
}

type mockUserRepo struct{ mock.Mock }

func (m *mockUserRepo) CreateUser(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockUserRepo) ListUsers(ctx context.Context) ([]*models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

func (m *mockUserRepo) UpdateUser(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepo) DeleteUser(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockUserRepo) CountAdmins(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
