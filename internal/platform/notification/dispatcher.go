package notification

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

const (
	TypeDeliver = "notification:deliver"
	QueueName   = "notifications"
)

// DeliverPayload is the body of a notification:deliver task.
type DeliverPayload struct {
	NotificationID string `json:"notification_id"`
	Recipient      string `json:"recipient"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
}

// NewDeliverTask builds the task that delivers n. The task id is the row id,
// so a row claimed twice is only queued once.
func NewDeliverTask(n *Notification) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(DeliverPayload{
		NotificationID: n.ID.String(),
		Recipient:      n.Recipient,
		Subject:        n.Subject,
		Body:           n.Body,
	})
	if err != nil {
		return nil, nil, err
	}
	maxRetry := n.MaxAttempts - 1
	if maxRetry < 0 {
		maxRetry = 0
	}
	opts := []asynq.Option{
		asynq.TaskID(n.ID.String()),
		asynq.MaxRetry(maxRetry),
		asynq.Queue(QueueName),
	}
	return asynq.NewTask(TypeDeliver, b), opts, nil
}

// TaskEnqueuer is the part of *asynq.Client the dispatcher uses.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher moves due outbox rows onto the delivery queue.
type Dispatcher struct {
	store  Store
	queue  TaskEnqueuer
	logger zerolog.Logger
	now    func() time.Time

	// PollInterval controls how often due rows are claimed.
	PollInterval time.Duration
	// BatchSize is the max number of rows claimed per tick.
	BatchSize int
	// CleanupInterval controls how often old rows are purged.
	CleanupInterval time.Duration
}

func NewDispatcher(store Store, queue TaskEnqueuer, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		store:           store,
		queue:           queue,
		logger:          logger,
		now:             time.Now,
		PollInterval:    5 * time.Second,
		BatchSize:       50,
		CleanupInterval: time.Hour,
	}
}

// Start runs the dispatch and cleanup loops. It blocks until ctx is
// cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	pollTicker := time.NewTicker(d.PollInterval)
	cleanupTicker := time.NewTicker(d.CleanupInterval)
	defer pollTicker.Stop()
	defer cleanupTicker.Stop()

	d.logger.Info().Dur("poll_interval", d.PollInterval).Int("batch_size", d.BatchSize).Msg("notification dispatcher started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("notification dispatcher stopped")
			return
		case <-pollTicker.C:
			if _, err := d.DispatchDue(ctx); err != nil {
				d.logger.Error().Err(err).Msg("failed to dispatch notifications")
			}
		case <-cleanupTicker.C:
			d.Cleanup(ctx)
		}
	}
}

// DispatchDue claims one batch of due rows and queues each for delivery.
// It returns the number of rows handed to the queue.
func (d *Dispatcher) DispatchDue(ctx context.Context) (int, error) {
	due, err := d.store.ClaimDue(ctx, d.BatchSize, d.now())
	if err != nil {
		return 0, err
	}
	queued := 0
	for _, n := range due {
		if d.dispatchOne(ctx, n) {
			queued++
		}
	}
	return queued, nil
}

func (d *Dispatcher) dispatchOne(ctx context.Context, n *Notification) bool {
	task, opts, err := NewDeliverTask(n)
	if err != nil {
		d.markFailed(ctx, n, "build task: "+err.Error())
		return false
	}
	_, err = d.queue.EnqueueContext(ctx, task, opts...)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		d.markFailed(ctx, n, "enqueue: "+err.Error())
		return false
	}
	return true
}

func (d *Dispatcher) markFailed(ctx context.Context, n *Notification, errMsg string) {
	n.AttemptCount++
	n.LastError = &errMsg

	if n.AttemptCount >= n.MaxAttempts {
		n.Status = StatusAbandoned
		if err := d.store.MarkFailed(ctx, n); err != nil {
			d.logger.Error().Err(err).Str("notification", n.ID.String()).Msg("failed to abandon notification")
			return
		}
		d.logger.Warn().Str("notification", n.ID.String()).Str("error", errMsg).Msg("notification abandoned")
		return
	}

	n.Status = StatusPending
	n.NextAttemptAt = d.now().Add(retryBackoff(n.AttemptCount))
	if err := d.store.MarkFailed(ctx, n); err != nil {
		d.logger.Error().Err(err).Str("notification", n.ID.String()).Msg("failed to update notification retry")
	}
}

// Cleanup deletes sent rows older than 30 days and abandoned rows older than
// 90 days.
func (d *Dispatcher) Cleanup(ctx context.Context) {
	now := d.now()
	sentCount, err := d.store.DeleteOlderThan(ctx, now.AddDate(0, 0, -30), []string{StatusSent})
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to cleanup sent notifications")
	} else if sentCount > 0 {
		d.logger.Info().Int64("count", sentCount).Msg("cleaned up old sent notifications")
	}

	abandonedCount, err := d.store.DeleteOlderThan(ctx, now.AddDate(0, 0, -90), []string{StatusAbandoned})
	if err != nil {
		d.logger.Error().Err(err).Msg("failed to cleanup abandoned notifications")
	} else if abandonedCount > 0 {
		d.logger.Info().Int64("count", abandonedCount).Msg("cleaned up old abandoned notifications")
	}
}

// retryBackoff returns the delay for a given attempt number (1-indexed).
// Schedule: 30s, 1m, 5m, 15m, 1h
func retryBackoff(attempt int) time.Duration {
	switch attempt {
	case 1:
		return 30 * time.Second
	case 2:
		return 1 * time.Minute
	case 3:
		return 5 * time.Minute
	case 4:
		return 15 * time.Minute
	default:
		return 1 * time.Hour
	}
}
