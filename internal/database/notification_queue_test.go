package database

import (
	"context"
	"testing"
	"time"

	"parkwise/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationQueue(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.NotificationTask{
		TaskType: "bill",
		EntryID:  100,
		Payload:  `{"billId":"BILL-000100"}`,
	}
	require.NoError(t, db.CreateNotificationTask(ctx, task))
	assert.Equal(t, models.TaskStatusPending, task.Status)

	tasks, err := db.GetPendingNotificationTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, int64(100), tasks[0].EntryID)

	// Retry in the future hides the task until it is due.
	next := time.Now().Add(time.Hour)
	require.NoError(t, db.UpdateNotificationTaskStatus(ctx, task.ID, models.TaskStatusRetry, "smtp down", &next))
	tasks, err = db.GetPendingNotificationTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	past := time.Now().Add(-time.Second)
	require.NoError(t, db.UpdateNotificationTaskStatus(ctx, task.ID, models.TaskStatusRetry, "smtp down", &past))
	tasks, err = db.GetPendingNotificationTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 2, tasks[0].RetryCount)
	require.NotNil(t, tasks[0].LastError)
	assert.Equal(t, "smtp down", *tasks[0].LastError)

	require.NoError(t, db.UpdateNotificationTaskStatus(ctx, task.ID, models.TaskStatusCompleted, "", nil))
	tasks, err = db.GetPendingNotificationTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	errMsg := "gave up"
	require.NoError(t, db.CreateNotificationTask(ctx, &models.NotificationTask{
		TaskType: "ticket", EntryID: 101, Status: models.TaskStatusFailed, LastError: &errMsg,
	}))
	failed, err := db.GetFailedNotificationTasks(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, int64(101), failed[0].EntryID)
}

func TestClaimNotificationTask(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.NotificationTask{TaskType: models.TaskBillEmail, EntryID: 7}
	require.NoError(t, db.CreateNotificationTask(ctx, task))

	ok, err := db.ClaimNotificationTask(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.ClaimNotificationTask(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, ok, "second claim must lose")

	tasks, err := db.GetPendingNotificationTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	n, err := db.ResetProcessingNotificationTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	tasks, err = db.GetPendingNotificationTasks(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}
