package domain

import (
	"context"
	"time"

	"parkwise/internal/database"
	"parkwise/internal/models"
	"parkwise/internal/notify"
)

type EntryRepository interface {
	CreateEntryWithLock(ctx context.Context, entry *models.Entry) (*models.Parking, error)
	CloseEntryWithLock(ctx context.Context, id int64, closedBy string, exitAt time.Time, charge database.ChargeFunc) (*database.CloseResult, error)
	GetEntry(ctx context.Context, id int64) (*models.Entry, error)
	ListEntries(ctx context.Context, filter database.EntryFilter) ([]*models.Entry, error)
}

type ReportRepository interface {
	GetEntriesExitedBetween(ctx context.Context, from, to time.Time) ([]*models.Entry, error)
	GetEntriesEnteredBetween(ctx context.Context, from, to time.Time) ([]*models.Entry, error)
	GetEntriesActiveBetween(ctx context.Context, from, to time.Time) ([]*models.Entry, error)
	CountOpenEntries(ctx context.Context) (map[string]int64, error)
	ListParkings(ctx context.Context) ([]*models.Parking, error)
}

type ParkingRepository interface {
	CreateParking(ctx context.Context, p *models.Parking) error
	GetParking(ctx context.Context, code string) (*models.Parking, error)
	ListParkings(ctx context.Context) ([]*models.Parking, error)
	UpdateParking(ctx context.Context, code string, upd models.ParkingUpdate) (*models.Parking, error)
	DeleteParking(ctx context.Context, code string) error
	SyncParkings(ctx context.Context, parkings []models.Parking) error
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id int64) error
	CountAdmins(ctx context.Context) (int, error)
}

type NotificationQueue interface {
	CreateNotificationTask(ctx context.Context, task *models.NotificationTask) error
	GetPendingNotificationTasks(ctx context.Context, limit int) ([]models.NotificationTask, error)
	UpdateNotificationTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
	ClaimNotificationTask(ctx context.Context, id int64) (bool, error)
	ResetProcessingNotificationTasks(ctx context.Context) (int64, error)
}

// DeadLetterRepository lists notifications that exhausted their retries.
type DeadLetterRepository interface {
	GetFailedNotificationTasks(ctx context.Context) ([]models.NotificationTask, error)
}

// RateLimitStore counts requests per key in fixed windows.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Notifier queues best-effort deliveries for a ticket or a bill.
type Notifier interface {
	EnqueueTicket(ctx context.Context, ticket models.Ticket, recipient string) error
	EnqueueBill(ctx context.Context, bill models.Bill, recipient string) error
}

type Mailer interface {
	Send(ctx context.Context, msg notify.Message) error
}

type ChatNotifier interface {
	Broadcast(ctx context.Context, text string) error
}

type LedgerWriter interface {
	AppendBill(ctx context.Context, bill models.Bill) error
}
