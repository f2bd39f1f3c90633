package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"parkwise/internal/config"
	"parkwise/internal/domain"
	"parkwise/internal/metrics"
	"parkwise/internal/models"
	"parkwise/internal/notify"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	redisQueueKey = "parkwise:notifications:queue"
	deadLetterKey = "parkwise:notifications:deadletter"
)

// Deliverers are the optional outbound channels. A nil field disables its task type.
type Deliverers struct {
	Mailer domain.Mailer
	Chat   domain.ChatNotifier
	Ledger domain.LedgerWriter
}

// notificationPayload is persisted in NotificationTask.Payload as JSON.
type notificationPayload struct {
	Recipient string         `json:"recipient,omitempty"`
	Ticket    *models.Ticket `json:"ticket,omitempty"`
	Bill      *models.Bill   `json:"bill,omitempty"`
}

// NotificationWorker consumes notification_queue tasks and delivers them.
// Tasks are persisted first, then signalled through Redis or the in-memory channel;
// the database poll picks up whatever the fast paths miss.
type NotificationWorker struct {
	store        domain.NotificationQueue
	deliverers   Deliverers
	redis        *redis.Client
	retryPolicy  RetryPolicy
	queue        chan models.NotificationTask
	pollInterval time.Duration
	batchSize    int
	logger       zerolog.Logger
}

func NewNotificationWorker(store domain.NotificationQueue, deliverers Deliverers, redisClient *redis.Client, cfg config.WorkerConfig, logger *zerolog.Logger) *NotificationWorker {
	retry := RetryPolicyFromConfig(cfg)
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = time.Minute
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = models.DefaultWorkerQueueSize
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "notification_worker").Logger()
	}

	return &NotificationWorker{
		store:        store,
		deliverers:   deliverers,
		redis:        redisClient,
		retryPolicy:  retry,
		queue:        make(chan models.NotificationTask, queueSize),
		pollInterval: pollInterval,
		batchSize:    20,
		logger:       l,
	}
}

// EnqueueTicket schedules the entry ticket email. It is a no-op without a mailer or recipient.
func (w *NotificationWorker) EnqueueTicket(ctx context.Context, ticket models.Ticket, recipient string) error {
	if w.deliverers.Mailer == nil || recipient == "" {
		return nil
	}
	return w.enqueue(ctx, models.TaskTicketEmail, ticket.EntryID, notificationPayload{Recipient: recipient, Ticket: &ticket})
}

// EnqueueBill schedules every configured delivery of a bill: email, operator chats and ledger row.
func (w *NotificationWorker) EnqueueBill(ctx context.Context, bill models.Bill, recipient string) error {
	var errs []error
	if w.deliverers.Mailer != nil && recipient != "" {
		errs = append(errs, w.enqueue(ctx, models.TaskBillEmail, bill.EntryID, notificationPayload{Recipient: recipient, Bill: &bill}))
	}
	if w.deliverers.Chat != nil {
		errs = append(errs, w.enqueue(ctx, models.TaskBillChat, bill.EntryID, notificationPayload{Bill: &bill}))
	}
	if w.deliverers.Ledger != nil {
		errs = append(errs, w.enqueue(ctx, models.TaskLedgerRow, bill.EntryID, notificationPayload{Bill: &bill}))
	}
	return errors.Join(errs...)
}

func (w *NotificationWorker) enqueue(ctx context.Context, taskType string, entryID int64, payload notificationPayload) error {
	if taskType == "" {
		return errors.New("task type is required")
	}
	if entryID == 0 {
		return errors.New("entry id is required")
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.NotificationTask{
		TaskType: taskType,
		EntryID:  entryID,
		Payload:  string(payloadBytes),
		Status:   models.TaskStatusPending,
	}
	if err := w.store.CreateNotificationTask(ctx, &task); err != nil {
		return fmt.Errorf("persist notification task: %w", err)
	}
	metrics.IncNotification(taskType, "queued")

	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("redis push failed, falling back to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("memory queue full, task left to polling")
	}
	return nil
}

// Start runs the delivery loop until ctx is done.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("started")
	defer w.logger.Info().Msg("stopped")

	if n, err := w.store.ResetProcessingNotificationTasks(ctx); err != nil {
		w.logger.Error().Err(err).Msg("reset interrupted tasks")
	} else if n > 0 {
		w.logger.Info().Int64("count", n).Msg("requeued interrupted tasks")
	}

	for {
		if ctx.Err() != nil {
			return
		}
		if !w.runOnce(ctx) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.pollInterval):
			}
		}
	}
}

// runOnce processes one batch from the fastest available source and reports
// whether anything was found.
func (w *NotificationWorker) runOnce(ctx context.Context) bool {
	if t, ok := w.tryLocalQueue(); ok {
		w.processTask(ctx, &t)
		return true
	}

	if t, ok := w.tryRedis(ctx); ok {
		w.processTask(ctx, &t)
		return true
	}

	tasks, err := w.store.GetPendingNotificationTasks(ctx, w.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("fetch pending tasks")
		}
		return false
	}
	for i := range tasks {
		w.processTask(ctx, &tasks[i])
	}
	return len(tasks) > 0
}

func (w *NotificationWorker) tryLocalQueue() (models.NotificationTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.NotificationTask{}, false
	}
}

func (w *NotificationWorker) tryRedis(ctx context.Context) (models.NotificationTask, bool) {
	if w.redis == nil {
		return models.NotificationTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return models.NotificationTask{}, false
		}
		w.logger.Warn().Err(err).Msg("redis BRPOP failed")
		return models.NotificationTask{}, false
	}
	if len(res) != 2 {
		return models.NotificationTask{}, false
	}
	var task models.NotificationTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Warn().Err(err).Msg("decode redis task")
		return models.NotificationTask{}, false
	}
	return task, true
}

func (w *NotificationWorker) processTask(ctx context.Context, task *models.NotificationTask) {
	claimed, err := w.store.ClaimNotificationTask(ctx, task.ID)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("claim task")
		return
	}
	if !claimed {
		return
	}

	payload, err := decodePayload(task.Payload)
	if err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.deliver(ctx, task.TaskType, payload); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	if err := w.store.UpdateNotificationTaskStatus(ctx, task.ID, models.TaskStatusCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark completed")
	}
	metrics.IncNotification(task.TaskType, models.TaskStatusCompleted)
}

func (w *NotificationWorker) deliver(ctx context.Context, taskType string, payload notificationPayload) error {
	switch taskType {
	case models.TaskTicketEmail:
		if payload.Ticket == nil {
			return errors.New("ticket payload missing")
		}
		if w.deliverers.Mailer == nil {
			return errors.New("mailer not configured")
		}
		msg, err := notify.TicketMessage(payload.Recipient, *payload.Ticket)
		if err != nil {
			return err
		}
		return w.deliverers.Mailer.Send(ctx, msg)
	case models.TaskBillEmail:
		if payload.Bill == nil {
			return errors.New("bill payload missing")
		}
		if w.deliverers.Mailer == nil {
			return errors.New("mailer not configured")
		}
		msg, err := notify.BillMessage(payload.Recipient, *payload.Bill)
		if err != nil {
			return err
		}
		return w.deliverers.Mailer.Send(ctx, msg)
	case models.TaskBillChat:
		if payload.Bill == nil {
			return errors.New("bill payload missing")
		}
		if w.deliverers.Chat == nil {
			return errors.New("chat notifier not configured")
		}
		return w.deliverers.Chat.Broadcast(ctx, notify.BillText(*payload.Bill))
	case models.TaskLedgerRow:
		if payload.Bill == nil {
			return errors.New("bill payload missing")
		}
		if w.deliverers.Ledger == nil {
			return errors.New("ledger not configured")
		}
		return w.deliverers.Ledger.AppendBill(ctx, *payload.Bill)
	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}
}

func (w *NotificationWorker) retryOrFail(ctx context.Context, task *models.NotificationTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.failTask(ctx, task, cause)
		return
	}

	nextTime := time.Now().Add(w.retryPolicy.NextDelay(attempt))
	if err := w.store.UpdateNotificationTaskStatus(ctx, task.ID, models.TaskStatusRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark retry")
	}
	w.logger.Warn().Err(cause).Int64("task_id", task.ID).Int("attempt", attempt).Time("next_retry_at", nextTime).Msg("delivery failed, will retry")
	metrics.IncNotification(task.TaskType, models.TaskStatusRetry)
}

func (w *NotificationWorker) failTask(ctx context.Context, task *models.NotificationTask, cause error) {
	if err := w.store.UpdateNotificationTaskStatus(ctx, task.ID, models.TaskStatusFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark failed")
	}
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Str("type", task.TaskType).Msg("delivery abandoned")
	metrics.IncNotification(task.TaskType, models.TaskStatusFailed)
	w.pushDeadLetter(ctx, task)
}

func decodePayload(raw string) (notificationPayload, error) {
	var payload notificationPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return payload, err
	}
	return payload, nil
}

func (w *NotificationWorker) pushRedis(ctx context.Context, task models.NotificationTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, redisQueueKey, data).Err()
}

func (w *NotificationWorker) pushDeadLetter(ctx context.Context, task *models.NotificationTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("encode dead letter")
		return
	}
	if err := w.redis.LPush(ctx, deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("dead letter push")
	}
}
