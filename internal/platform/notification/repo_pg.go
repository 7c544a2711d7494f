package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lawfirm/booking/internal/platform/db"
)

// Store is the outbox persistence the dispatcher and worker need.
type Store interface {
	Outbox
	GetByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	// ClaimDue moves up to limit due pending rows to dispatched and returns
	// them. Rows locked by a concurrent claimer are skipped.
	ClaimDue(ctx context.Context, limit int, now time.Time) ([]*Notification, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	// MarkFailed persists the status, attempt count, next attempt and last
	// error of n.
	MarkFailed(ctx context.Context, n *Notification) error
	DeleteOlderThan(ctx context.Context, before time.Time, statuses []string) (int64, error)
}

var ErrNotificationNotFound = errors.New("notification not found")

type storePG struct{ pool *pgxpool.Pool }

func NewStorePG(pool *pgxpool.Pool) Store { return &storePG{pool: pool} }

func (s *storePG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, s.pool) }

const notificationCols = `id, template_id, recipient, subject, body, payload, status,
	attempt_count, max_attempts, next_attempt_at, last_error, created_at, sent_at`

func (s *storePG) scan(row pgx.Row) (*Notification, error) {
	var n Notification
	err := row.Scan(&n.ID, &n.TemplateID, &n.Recipient, &n.Subject, &n.Body, &n.Payload, &n.Status,
		&n.AttemptCount, &n.MaxAttempts, &n.NextAttemptAt, &n.LastError, &n.CreatedAt, &n.SentAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *storePG) Enqueue(ctx context.Context, n *Notification) error {
	n.ID = uuid.New()
	if n.Status == "" {
		n.Status = StatusPending
	}
	if n.MaxAttempts == 0 {
		n.MaxAttempts = DefaultMaxAttempts
	}
	if n.NextAttemptAt.IsZero() {
		n.NextAttemptAt = time.Now()
	}
	return s.conn(ctx).QueryRow(ctx, `
		INSERT INTO notification_queue (id, template_id, recipient, subject, body, payload, status,
			attempt_count, max_attempts, next_attempt_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`,
		n.ID, n.TemplateID, n.Recipient, n.Subject, n.Body, n.Payload, n.Status,
		n.AttemptCount, n.MaxAttempts, n.NextAttemptAt,
	).Scan(&n.CreatedAt)
}

func (s *storePG) GetByID(ctx context.Context, id uuid.UUID) (*Notification, error) {
	n, err := s.scan(s.conn(ctx).QueryRow(ctx, `SELECT `+notificationCols+` FROM notification_queue WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotificationNotFound
	}
	return n, err
}

func (s *storePG) ClaimDue(ctx context.Context, limit int, now time.Time) ([]*Notification, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		UPDATE notification_queue SET status = 'dispatched'
		WHERE id IN (
			SELECT id FROM notification_queue
			WHERE status = 'pending' AND next_attempt_at <= $1
			ORDER BY next_attempt_at, id
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+notificationCols, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due notifications: %w", err)
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		n, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *storePG) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.conn(ctx).Exec(ctx, `
		UPDATE notification_queue SET status = 'sent', sent_at = $2, last_error = NULL
		WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *storePG) MarkFailed(ctx context.Context, n *Notification) error {
	_, err := s.conn(ctx).Exec(ctx, `
		UPDATE notification_queue
		SET status = $2, attempt_count = $3, next_attempt_at = $4, last_error = $5
		WHERE id = $1`,
		n.ID, n.Status, n.AttemptCount, n.NextAttemptAt, n.LastError)
	return err
}

func (s *storePG) DeleteOlderThan(ctx context.Context, before time.Time, statuses []string) (int64, error) {
	tag, err := s.conn(ctx).Exec(ctx, `
		DELETE FROM notification_queue WHERE status = ANY($1) AND created_at < $2`, statuses, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
