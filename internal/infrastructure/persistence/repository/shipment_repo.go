package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/order-resolution/internal/application/port"
	"github.com/garyjia/order-resolution/internal/domain/entity"
	"github.com/garyjia/order-resolution/internal/domain/workflow"
)

// ShipmentRepository implements port.ShipmentRepository
type ShipmentRepository struct {
	base
}

// NewShipmentRepository creates a new shipment repository
func NewShipmentRepository(db *sql.DB, logger *zap.Logger) port.ShipmentRepository {
	return &ShipmentRepository{base{db: db, logger: logger}}
}

// GetByID retrieves a shipment with its order and seller contact
func (r *ShipmentRepository) GetByID(ctx context.Context, id int64) (*entity.Shipment, error) {
	query := `SELECT id, order_id, seller_name, seller_email FROM shipments WHERE id = ?`

	var s entity.Shipment
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, id).Scan(&s.ID, &s.OrderID, &s.SellerName, &s.SellerEmail)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get shipment by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get shipment: %w", err)
	}
	return &s, nil
}

// ShipmentIssueRepository implements port.ShipmentIssueRepository
type ShipmentIssueRepository struct {
	base
}

// NewShipmentIssueRepository creates a new shipment issue repository
func NewShipmentIssueRepository(db *sql.DB, logger *zap.Logger) port.ShipmentIssueRepository {
	return &ShipmentIssueRepository{base{db: db, logger: logger}}
}

// Create inserts an issue
func (r *ShipmentIssueRepository) Create(ctx context.Context, issue *entity.ShipmentIssue) error {
	query := `
		INSERT INTO shipment_issues (
			shipment_id, issue_type, description, assigned_to,
			resolution, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, 0, ?, ?)
	`

	now := time.Now().UTC()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	if issue.UpdatedAt.IsZero() {
		issue.UpdatedAt = now
	}
	if issue.Resolution == "" {
		issue.Resolution = workflow.IssueUnresolved
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		issue.ShipmentID,
		issue.IssueType,
		issue.Description,
		issue.AssignedTo,
		issue.Resolution,
		issue.CreatedAt,
		issue.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create shipment issue", zap.Int64("shipment_id", issue.ShipmentID), zap.Error(err))
		return fmt.Errorf("failed to create shipment issue: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	issue.ID = id
	issue.Version = 0
	return nil
}

// GetByID retrieves an issue by ID
func (r *ShipmentIssueRepository) GetByID(ctx context.Context, id int64) (*entity.ShipmentIssue, error) {
	query := `
		SELECT id, shipment_id, issue_type, description, assigned_to,
			resolution, version, created_at, updated_at
		FROM shipment_issues
		WHERE id = ?
	`

	var issue entity.ShipmentIssue
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, id).Scan(
		&issue.ID,
		&issue.ShipmentID,
		&issue.IssueType,
		&issue.Description,
		&issue.AssignedTo,
		&issue.Resolution,
		&issue.Version,
		&issue.CreatedAt,
		&issue.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get shipment issue by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get shipment issue: %w", err)
	}
	return &issue, nil
}

// Update writes the mutable fields when issue.Version still matches the stored row
func (r *ShipmentIssueRepository) Update(ctx context.Context, issue *entity.ShipmentIssue) error {
	query := `
		UPDATE shipment_issues
		SET issue_type = ?, description = ?, assigned_to = ?, resolution = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	err := versionedResult(r.getExecutor(ctx).ExecContext(ctx, query,
		issue.IssueType,
		issue.Description,
		issue.AssignedTo,
		issue.Resolution,
		issue.UpdatedAt,
		issue.ID,
		issue.Version,
	))
	if errors.Is(err, port.ErrStaleVersion) {
		return err
	}
	if err != nil {
		r.logger.Error("Failed to update shipment issue", zap.Int64("id", issue.ID), zap.Error(err))
		return fmt.Errorf("failed to update shipment issue: %w", err)
	}
	issue.Version++
	return nil
}

// SellerExpenseRepository implements port.SellerExpenseRepository
type SellerExpenseRepository struct {
	base
}

// NewSellerExpenseRepository creates a new seller expense repository
func NewSellerExpenseRepository(db *sql.DB, logger *zap.Logger) port.SellerExpenseRepository {
	return &SellerExpenseRepository{base{db: db, logger: logger}}
}

// Append inserts an expense row. Each issue may book at most one expense.
func (r *SellerExpenseRepository) Append(ctx context.Context, e *entity.SellerExpense) error {
	query := `
		INSERT INTO seller_expenses (order_id, issue_id, amount_cents, reason, actor_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query, e.OrderID, e.IssueID, e.AmountCents, e.Reason, e.ActorID, e.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to append seller expense",
			zap.Int64("order_id", e.OrderID),
			zap.Int64("issue_id", e.IssueID),
			zap.Error(err))
		return fmt.Errorf("failed to append seller expense: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	e.ID = id
	return nil
}

const expenseColumns = `id, order_id, issue_id, amount_cents, reason, actor_id, created_at`

func scanExpense(s rowScanner) (*entity.SellerExpense, error) {
	var e entity.SellerExpense
	if err := s.Scan(&e.ID, &e.OrderID, &e.IssueID, &e.AmountCents, &e.Reason, &e.ActorID, &e.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan seller expense: %w", err)
	}
	return &e, nil
}

// ListByOrderID returns the expenses booked against an order
func (r *SellerExpenseRepository) ListByOrderID(ctx context.Context, orderID int64) ([]*entity.SellerExpense, error) {
	query := `SELECT ` + expenseColumns + ` FROM seller_expenses WHERE order_id = ? ORDER BY id`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, orderID)
	if err != nil {
		r.logger.Error("Failed to list seller expenses", zap.Int64("order_id", orderID), zap.Error(err))
		return nil, fmt.Errorf("failed to list seller expenses: %w", err)
	}
	return collect(rows, scanExpense)
}

// List returns expense rows oldest first
func (r *SellerExpenseRepository) List(ctx context.Context, limit, offset int) ([]*entity.SellerExpense, error) {
	query := `SELECT ` + expenseColumns + ` FROM seller_expenses ORDER BY id LIMIT ? OFFSET ?`

	limit, offset = clampPage(limit, offset)
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list seller expenses", zap.Error(err))
		return nil, fmt.Errorf("failed to list seller expenses: %w", err)
	}
	return collect(rows, scanExpense)
}

// ShipmentItemRepository implements port.ShipmentItemRepository
type ShipmentItemRepository struct {
	base
}

// NewShipmentItemRepository creates a new shipment item repository
func NewShipmentItemRepository(db *sql.DB, logger *zap.Logger) port.ShipmentItemRepository {
	return &ShipmentItemRepository{base{db: db, logger: logger}}
}

const itemColumns = `id, shipment_id, product_id, quantity, status, version, updated_at`

func scanItem(s rowScanner) (*entity.ShipmentItem, error) {
	var it entity.ShipmentItem
	if err := s.Scan(&it.ID, &it.ShipmentID, &it.ProductID, &it.Quantity, &it.Status, &it.Version, &it.UpdatedAt); err != nil {
		return nil, err
	}
	return &it, nil
}

// GetByID retrieves a shipment item by ID
func (r *ShipmentItemRepository) GetByID(ctx context.Context, id int64) (*entity.ShipmentItem, error) {
	query := `SELECT ` + itemColumns + ` FROM shipment_items WHERE id = ?`

	item, err := scanItem(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get shipment item by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get shipment item: %w", err)
	}
	return item, nil
}

// ListByShipmentID returns the items of a shipment ordered by ID
func (r *ShipmentItemRepository) ListByShipmentID(ctx context.Context, shipmentID int64) ([]*entity.ShipmentItem, error) {
	query := `SELECT ` + itemColumns + ` FROM shipment_items WHERE shipment_id = ? ORDER BY id`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, shipmentID)
	if err != nil {
		r.logger.Error("Failed to list shipment items", zap.Int64("shipment_id", shipmentID), zap.Error(err))
		return nil, fmt.Errorf("failed to list shipment items: %w", err)
	}
	return collect(rows, scanItem)
}

// UpdateStatus sets the status if the stored version still equals expectedVersion
func (r *ShipmentItemRepository) UpdateStatus(ctx context.Context, id, expectedVersion int64, status workflow.ShipmentItemStatus) error {
	query := `
		UPDATE shipment_items
		SET status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	err := versionedResult(r.getExecutor(ctx).ExecContext(ctx, query, status, time.Now().UTC(), id, expectedVersion))
	if errors.Is(err, port.ErrStaleVersion) {
		return err
	}
	if err != nil {
		r.logger.Error("Failed to update shipment item status", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update shipment item status: %w", err)
	}
	return nil
}

// ShipmentEventRepository implements port.ShipmentEventRepository
type ShipmentEventRepository struct {
	base
}

// NewShipmentEventRepository creates a new shipment event repository
func NewShipmentEventRepository(db *sql.DB, logger *zap.Logger) port.ShipmentEventRepository {
	return &ShipmentEventRepository{base{db: db, logger: logger}}
}

const eventColumns = `id, shipment_id, location, note, status, version, updated_at`

func scanShipmentEvent(s rowScanner) (*entity.ShipmentEvent, error) {
	var ev entity.ShipmentEvent
	if err := s.Scan(&ev.ID, &ev.ShipmentID, &ev.Location, &ev.Note, &ev.Status, &ev.Version, &ev.UpdatedAt); err != nil {
		return nil, err
	}
	return &ev, nil
}

// GetByID retrieves a tracking event by ID
func (r *ShipmentEventRepository) GetByID(ctx context.Context, id int64) (*entity.ShipmentEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM shipment_events WHERE id = ?`

	ev, err := scanShipmentEvent(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get shipment event by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get shipment event: %w", err)
	}
	return ev, nil
}

// ListByShipmentID returns the tracking events of a shipment ordered by ID
func (r *ShipmentEventRepository) ListByShipmentID(ctx context.Context, shipmentID int64) ([]*entity.ShipmentEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM shipment_events WHERE shipment_id = ? ORDER BY id`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, shipmentID)
	if err != nil {
		r.logger.Error("Failed to list shipment events", zap.Int64("shipment_id", shipmentID), zap.Error(err))
		return nil, fmt.Errorf("failed to list shipment events: %w", err)
	}
	return collect(rows, scanShipmentEvent)
}

// UpdateStatus sets the status if the stored version still equals expectedVersion
func (r *ShipmentEventRepository) UpdateStatus(ctx context.Context, id, expectedVersion int64, status workflow.ShipmentEventStatus) error {
	query := `
		UPDATE shipment_events
		SET status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	err := versionedResult(r.getExecutor(ctx).ExecContext(ctx, query, status, time.Now().UTC(), id, expectedVersion))
	if errors.Is(err, port.ErrStaleVersion) {
		return err
	}
	if err != nil {
		r.logger.Error("Failed to update shipment event status", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update shipment event status: %w", err)
	}
	return nil
}

var (
	_ port.ShipmentRepository      = (*ShipmentRepository)(nil)
	_ port.ShipmentIssueRepository = (*ShipmentIssueRepository)(nil)
	_ port.SellerExpenseRepository = (*SellerExpenseRepository)(nil)
	_ port.ShipmentItemRepository  = (*ShipmentItemRepository)(nil)
	_ port.ShipmentEventRepository = (*ShipmentEventRepository)(nil)
)
