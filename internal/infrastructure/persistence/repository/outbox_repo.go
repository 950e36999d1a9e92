package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/order-resolution/internal/application/port"
	"github.com/garyjia/order-resolution/internal/domain/entity"
)

// OutboxRepository implements port.OutboxRepository on the notifications table
type OutboxRepository struct {
	base
}

// NewOutboxRepository creates a new outbox repository
func NewOutboxRepository(db *sql.DB, logger *zap.Logger) port.OutboxRepository {
	return &OutboxRepository{base{db: db, logger: logger}}
}

// Enqueue inserts a notification row. It joins the caller's transaction
// when one is carried in ctx.
func (r *OutboxRepository) Enqueue(ctx context.Context, n *entity.Notification) error {
	query := `
		INSERT INTO notifications (
			id, recipient, subject, template, data, status, attempts,
			last_error, aggregate_type, aggregate_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Status == "" {
		n.Status = entity.NotificationPending
	}
	if n.Data == "" {
		n.Data = "{}"
	}

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		n.ID,
		n.Recipient,
		n.Subject,
		n.Template,
		n.Data,
		n.Status,
		n.Attempts,
		n.LastError,
		n.AggregateType,
		n.AggregateID,
		n.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to enqueue notification",
			zap.String("id", n.ID),
			zap.String("template", n.Template),
			zap.Error(err))
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}

// FetchPending returns up to limit PENDING rows, oldest first
func (r *OutboxRepository) FetchPending(ctx context.Context, limit int) ([]*entity.Notification, error) {
	query := `
		SELECT id, recipient, subject, template, data, status, attempts,
			last_error, aggregate_type, aggregate_id, created_at, sent_at
		FROM notifications
		WHERE status = ?
		ORDER BY created_at, id
		LIMIT ?
	`

	limit, _ = clampPage(limit, 0)
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, entity.NotificationPending, limit)
	if err != nil {
		r.logger.Error("Failed to fetch pending notifications", zap.Error(err))
		return nil, fmt.Errorf("failed to fetch pending notifications: %w", err)
	}
	return collect(rows, func(s rowScanner) (*entity.Notification, error) {
		var (
			n      entity.Notification
			sentAt sql.NullTime
		)
		err := s.Scan(
			&n.ID,
			&n.Recipient,
			&n.Subject,
			&n.Template,
			&n.Data,
			&n.Status,
			&n.Attempts,
			&n.LastError,
			&n.AggregateType,
			&n.AggregateID,
			&n.CreatedAt,
			&sentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if sentAt.Valid {
			n.SentAt = &sentAt.Time
		}
		return &n, nil
	})
}

// MarkSent records a successful delivery
func (r *OutboxRepository) MarkSent(ctx context.Context, id string, attempts int, sentAt time.Time) error {
	query := `UPDATE notifications SET status = ?, attempts = ?, last_error = '', sent_at = ? WHERE id = ?`

	if _, err := r.getExecutor(ctx).ExecContext(ctx, query, entity.NotificationSent, attempts, sentAt, id); err != nil {
		r.logger.Error("Failed to mark notification sent", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return nil
}

// MarkFailed records that delivery gave up after attempts tries
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, attempts int, lastError string) error {
	query := `UPDATE notifications SET status = ?, attempts = ?, last_error = ? WHERE id = ?`

	if _, err := r.getExecutor(ctx).ExecContext(ctx, query, entity.NotificationFailed, attempts, lastError, id); err != nil {
		r.logger.Error("Failed to mark notification failed", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	return nil
}

var _ port.OutboxRepository = (*OutboxRepository)(nil)
