package models

import "time"

// NotificationTask is a queued best-effort delivery (ticket, bill or ledger row).
type NotificationTask struct {
	ID          int64      `json:"id"`
	TaskType    string     `json:"task_type"`
	EntryID     int64      `json:"entry_id"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	LastError   *string    `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	NextRetryAt *time.Time `json:"next_retry_at"`
}
