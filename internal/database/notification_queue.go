package database

import (
	"context"
	"fmt"
	"time"

	"parkwise/internal/models"
)

const notificationColumns = `id, task_type, entry_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

func (db *DB) CreateNotificationTask(ctx context.Context, task *models.NotificationTask) error {
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}

	query := `INSERT INTO notification_queue (task_type, entry_id, payload, status, retry_count, last_error, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		task.TaskType,
		task.EntryID,
		task.Payload,
		task.Status,
		task.RetryCount,
		task.LastError,
		now,
		task.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now
	return nil
}

// GetPendingNotificationTasks returns tasks due for delivery, oldest first.
func (db *DB) GetPendingNotificationTasks(ctx context.Context, limit int) ([]models.NotificationTask, error) {
	query := `SELECT ` + notificationColumns + ` FROM notification_queue
              WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY created_at ASC, id ASC LIMIT ?`
	return db.queryNotificationTasks(ctx, query, models.TaskStatusPending, models.TaskStatusRetry, time.Now().UTC(), limit)
}

func (db *DB) GetFailedNotificationTasks(ctx context.Context) ([]models.NotificationTask, error) {
	query := `SELECT ` + notificationColumns + ` FROM notification_queue WHERE status = ? ORDER BY created_at DESC, id DESC`
	return db.queryNotificationTasks(ctx, query, models.TaskStatusFailed)
}

func (db *DB) UpdateNotificationTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var lastError *string
	if errMsg != "" {
		lastError = &errMsg
	}
	if nextRetryAt != nil {
		t := nextRetryAt.UTC()
		nextRetryAt = &t
	}

	var query string
	var args []interface{}
	switch status {
	case models.TaskStatusRetry:
		query = `UPDATE notification_queue SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []interface{}{status, lastError, nextRetryAt, id}
	case models.TaskStatusCompleted, models.TaskStatusFailed:
		now := time.Now().UTC()
		query = `UPDATE notification_queue SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []interface{}{status, lastError, nextRetryAt, now, id}
	default:
		query = `UPDATE notification_queue SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []interface{}{status, lastError, nextRetryAt, id}
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update notification task status: %w", err)
	}
	return nil
}

// ClaimNotificationTask moves a pending or retry task to processing.
// It reports false when another consumer already holds the task.
func (db *DB) ClaimNotificationTask(ctx context.Context, id int64) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE notification_queue SET status = ? WHERE id = ? AND status IN (?, ?)`,
		models.TaskStatusProcessing, id, models.TaskStatusPending, models.TaskStatusRetry,
	)
	if err != nil {
		return false, fmt.Errorf("failed to claim notification task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to claim notification task: %w", err)
	}
	return n == 1, nil
}

// ResetProcessingNotificationTasks returns tasks orphaned by a crash to pending.
func (db *DB) ResetProcessingNotificationTasks(ctx context.Context) (int64, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE notification_queue SET status = ? WHERE status = ?`,
		models.TaskStatusPending, models.TaskStatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reset notification tasks: %w", err)
	}
	return res.RowsAffected()
}

func (db *DB) queryNotificationTasks(ctx context.Context, query string, args ...interface{}) ([]models.NotificationTask, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notification tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.NotificationTask
	for rows.Next() {
		var t models.NotificationTask
		err := rows.Scan(
			&t.ID, &t.TaskType, &t.EntryID, &t.Payload, &t.Status, &t.RetryCount, &t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
