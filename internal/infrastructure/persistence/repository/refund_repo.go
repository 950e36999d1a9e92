package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/order-resolution/internal/application/port"
	"github.com/garyjia/order-resolution/internal/domain/entity"
	"github.com/garyjia/order-resolution/internal/domain/workflow"
)

// RefundRepository implements port.RefundRepository
type RefundRepository struct {
	base
}

// NewRefundRepository creates a new refund repository
func NewRefundRepository(db *sql.DB, logger *zap.Logger) port.RefundRepository {
	return &RefundRepository{base{db: db, logger: logger}}
}

// Create inserts a refund request
func (r *RefundRepository) Create(ctx context.Context, refund *entity.RefundRequest) error {
	query := `
		INSERT INTO refund_requests (
			order_id, order_item_ids, reason, description,
			amount_cents, status, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
	`

	items, err := json.Marshal(refund.OrderItemIDs)
	if err != nil {
		return fmt.Errorf("failed to encode order items: %w", err)
	}

	now := time.Now().UTC()
	if refund.CreatedAt.IsZero() {
		refund.CreatedAt = now
	}
	refund.UpdatedAt = now
	if refund.Status == "" {
		refund.Status = workflow.RefundPending
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		refund.OrderID,
		string(items),
		refund.Reason,
		refund.Description,
		refund.AmountCents,
		refund.Status,
		refund.CreatedAt,
		refund.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create refund", zap.Int64("order_id", refund.OrderID), zap.Error(err))
		return fmt.Errorf("failed to create refund: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	refund.ID = id
	refund.Version = 0
	return nil
}

// GetByID retrieves a refund request by ID
func (r *RefundRepository) GetByID(ctx context.Context, id int64) (*entity.RefundRequest, error) {
	query := `
		SELECT id, order_id, order_item_ids, reason, description,
			amount_cents, status, version, created_at, updated_at
		FROM refund_requests
		WHERE id = ?
	`

	var refund entity.RefundRequest
	var items string

	err := r.getExecutor(ctx).QueryRowContext(ctx, query, id).Scan(
		&refund.ID,
		&refund.OrderID,
		&items,
		&refund.Reason,
		&refund.Description,
		&refund.AmountCents,
		&refund.Status,
		&refund.Version,
		&refund.CreatedAt,
		&refund.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get refund by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get refund: %w", err)
	}

	if err := json.Unmarshal([]byte(items), &refund.OrderItemIDs); err != nil {
		return nil, fmt.Errorf("failed to decode order items of refund %d: %w", id, err)
	}
	return &refund, nil
}

// UpdateStatus sets the status if the stored version still equals expectedVersion
func (r *RefundRepository) UpdateStatus(ctx context.Context, id, expectedVersion int64, status workflow.RefundStatus, description *string) error {
	query := `
		UPDATE refund_requests
		SET status = ?,
			description = COALESCE(?, description),
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?
	`

	var desc sql.NullString
	if description != nil {
		desc = sql.NullString{String: *description, Valid: true}
	}

	err := versionedResult(r.getExecutor(ctx).ExecContext(ctx, query, status, desc, time.Now().UTC(), id, expectedVersion))
	if errors.Is(err, port.ErrStaleVersion) {
		return err
	}
	if err != nil {
		r.logger.Error("Failed to update refund status",
			zap.Int64("id", id),
			zap.String("status", string(status)),
			zap.Error(err))
		return fmt.Errorf("failed to update refund status: %w", err)
	}
	return nil
}

// RefundLedgerRepository implements port.RefundLedgerRepository
type RefundLedgerRepository struct {
	base
}

// NewRefundLedgerRepository creates a new refund ledger repository
func NewRefundLedgerRepository(db *sql.DB, logger *zap.Logger) port.RefundLedgerRepository {
	return &RefundLedgerRepository{base{db: db, logger: logger}}
}

// Append inserts a ledger row. A second row for the same refund violates
// the UNIQUE(refund_id) constraint.
func (r *RefundLedgerRepository) Append(ctx context.Context, entry *entity.RefundLedgerEntry) error {
	query := `
		INSERT INTO refund_ledger (
			refund_id, action, amount_cents, actor_id, actor_role, event_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		entry.RefundID,
		entry.Action,
		entry.AmountCents,
		entry.ActorID,
		entry.ActorRole,
		entry.EventID,
		entry.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to append refund ledger entry", zap.Int64("refund_id", entry.RefundID), zap.Error(err))
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = id
	return nil
}

const ledgerColumns = `id, refund_id, action, amount_cents, actor_id, actor_role, event_id, created_at`

func scanLedgerEntry(s rowScanner) (*entity.RefundLedgerEntry, error) {
	var e entity.RefundLedgerEntry
	if err := s.Scan(&e.ID, &e.RefundID, &e.Action, &e.AmountCents, &e.ActorID, &e.ActorRole, &e.EventID, &e.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
	}
	return &e, nil
}

// ListByRefundID returns the ledger rows of one refund
func (r *RefundLedgerRepository) ListByRefundID(ctx context.Context, refundID int64) ([]*entity.RefundLedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM refund_ledger WHERE refund_id = ? ORDER BY id`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, refundID)
	if err != nil {
		r.logger.Error("Failed to list ledger entries", zap.Int64("refund_id", refundID), zap.Error(err))
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return collect(rows, scanLedgerEntry)
}

// List returns ledger rows oldest first
func (r *RefundLedgerRepository) List(ctx context.Context, limit, offset int) ([]*entity.RefundLedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM refund_ledger ORDER BY id LIMIT ? OFFSET ?`

	limit, offset = clampPage(limit, offset)
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list ledger", zap.Error(err))
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	return collect(rows, scanLedgerEntry)
}

// OrderRepository implements port.OrderRepository
type OrderRepository struct {
	base
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *sql.DB, logger *zap.Logger) port.OrderRepository {
	return &OrderRepository{base{db: db, logger: logger}}
}

// GetByID retrieves an order's customer contact
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	query := `SELECT id, customer_name, customer_email FROM orders WHERE id = ?`

	var order entity.Order
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, id).Scan(&order.ID, &order.CustomerName, &order.CustomerEmail)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get order by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

var (
	_ port.RefundRepository       = (*RefundRepository)(nil)
	_ port.RefundLedgerRepository = (*RefundLedgerRepository)(nil)
	_ port.OrderRepository        = (*OrderRepository)(nil)
)
