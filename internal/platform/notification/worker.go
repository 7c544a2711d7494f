package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Worker delivers notification:deliver tasks.
type Worker struct {
	store  Store
	sender EmailSender
	logger zerolog.Logger
	now    func() time.Time
}

func NewWorker(store Store, sender EmailSender, logger zerolog.Logger) *Worker {
	return &Worker{store: store, sender: sender, logger: logger, now: time.Now}
}

// Register mounts the worker's handlers on mux.
func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeDeliver, w.HandleDeliver)
}

// HandleDeliver sends one notification and marks its row sent. A returned
// error makes asynq retry the task; on the last retry the row is abandoned.
func (w *Worker) HandleDeliver(ctx context.Context, task *asynq.Task) error {
	var p DeliverPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		w.logger.Error().Err(err).Msg("invalid notification payload")
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}

	id, err := uuid.Parse(p.NotificationID)
	if err != nil {
		return fmt.Errorf("invalid notification id %q: %w", p.NotificationID, asynq.SkipRetry)
	}
	n, err := w.store.GetByID(ctx, id)
	if errors.Is(err, ErrNotificationNotFound) {
		w.logger.Warn().Str("notification", p.NotificationID).Msg("notification row gone, dropping task")
		return nil
	}
	if err != nil {
		return err
	}
	if n.Status == StatusSent {
		return nil
	}

	if err := w.sender.SendEmail(ctx, p.Recipient, p.Subject, p.Body); err != nil {
		w.logger.Error().Err(err).Str("notification", p.NotificationID).Msg("failed to send notification")
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		if retried >= maxRetry {
			msg := err.Error()
			n.AttemptCount = retried + 1
			n.LastError = &msg
			n.Status = StatusAbandoned
			if mErr := w.store.MarkFailed(ctx, n); mErr != nil {
				w.logger.Error().Err(mErr).Str("notification", p.NotificationID).Msg("failed to abandon notification")
			}
		}
		return err
	}
	if err := w.store.MarkSent(ctx, n.ID, w.now()); err != nil {
		return err
	}
	w.logger.Info().Str("notification", p.NotificationID).Str("template", n.TemplateID).Msg("notification delivered")
	return nil
}
