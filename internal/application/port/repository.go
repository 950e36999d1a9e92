package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/order-resolution/internal/domain/entity"
	"github.com/garyjia/order-resolution/internal/domain/workflow"
)

// ErrStaleVersion is returned by versioned writes when the row changed since it was read
var ErrStaleVersion = errors.New("stale version")

// Read methods return (nil, nil) when the row does not exist.

// RefundRepository defines persistence operations for RefundRequest
type RefundRepository interface {
	Create(ctx context.Context, refund *entity.RefundRequest) error
	GetByID(ctx context.Context, id int64) (*entity.RefundRequest, error)
	// UpdateStatus writes the new status only if the stored version equals expectedVersion
	UpdateStatus(ctx context.Context, id, expectedVersion int64, status workflow.RefundStatus, description *string) error
}

// RefundLedgerRepository is append-only and has no update or delete
type RefundLedgerRepository interface {
	Append(ctx context.Context, entry *entity.RefundLedgerEntry) error
	ListByRefundID(ctx context.Context, refundID int64) ([]*entity.RefundLedgerEntry, error)
	List(ctx context.Context, limit, offset int) ([]*entity.RefundLedgerEntry, error)
}

// OrderRepository resolves the customer contact of an order
type OrderRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
}

// ShipmentRepository resolves the order and seller of a shipment
type ShipmentRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Shipment, error)
}

// ShipmentIssueRepository defines persistence operations for ShipmentIssue
type ShipmentIssueRepository interface {
	Create(ctx context.Context, issue *entity.ShipmentIssue) error
	GetByID(ctx context.Context, id int64) (*entity.ShipmentIssue, error)
	// Update writes all mutable fields, checks issue.Version and increments it on success
	Update(ctx context.Context, issue *entity.ShipmentIssue) error
}

// SellerExpenseRepository is append-only
type SellerExpenseRepository interface {
	Append(ctx context.Context, expense *entity.SellerExpense) error
	ListByOrderID(ctx context.Context, orderID int64) ([]*entity.SellerExpense, error)
	List(ctx context.Context, limit, offset int) ([]*entity.SellerExpense, error)
}

// ShipmentItemRepository defines persistence operations for ShipmentItem
type ShipmentItemRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.ShipmentItem, error)
	ListByShipmentID(ctx context.Context, shipmentID int64) ([]*entity.ShipmentItem, error)
	UpdateStatus(ctx context.Context, id, expectedVersion int64, status workflow.ShipmentItemStatus) error
}

// ShipmentEventRepository defines persistence operations for ShipmentEvent
type ShipmentEventRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.ShipmentEvent, error)
	ListByShipmentID(ctx context.Context, shipmentID int64) ([]*entity.ShipmentEvent, error)
	UpdateStatus(ctx context.Context, id, expectedVersion int64, status workflow.ShipmentEventStatus) error
}

// IncidentRepository defines persistence operations for Incident
type IncidentRepository interface {
	Create(ctx context.Context, incident *entity.Incident) error
	GetByID(ctx context.Context, id int64) (*entity.Incident, error)
	List(ctx context.Context, limit, offset int) ([]*entity.Incident, error)
	// Update checks incident.Version and increments it on success
	Update(ctx context.Context, incident *entity.Incident) error
	SoftDelete(ctx context.Context, id, expectedVersion int64) error
	// ListUnpaid returns non-deleted incidents of the employee dated on or before until with paid_all unset
	ListUnpaid(ctx context.Context, employeeID int64, until time.Time) ([]*entity.Incident, error)
	MarkAddressed(ctx context.Context, id int64) (bool, error)
}

// ReimbursementRepository defines persistence operations for Reimbursement
type ReimbursementRepository interface {
	Create(ctx context.Context, r *entity.Reimbursement) error
	GetByID(ctx context.Context, id int64) (*entity.Reimbursement, error)
	ListByIncidentID(ctx context.Context, incidentID int64) ([]*entity.Reimbursement, error)
	// ListByEmployee returns non-deleted reimbursements attached to the employee's incidents dated on or before until
	ListByEmployee(ctx context.Context, employeeID int64, until time.Time) ([]*entity.Reimbursement, error)
	Update(ctx context.Context, r *entity.Reimbursement) error
	SoftDelete(ctx context.Context, id, expectedVersion int64) error
	MarkAddressed(ctx context.Context, id int64) (bool, error)
}

// PayrollRepository reads the time and pay records used for payment totals.
// Shifts and bonuses are matched on the half-open range [start, end); PTO on
// the inclusive date range [start, end].
type PayrollRepository interface {
	GetEmployee(ctx context.Context, id int64) (*entity.Employee, error)
	ListShifts(ctx context.Context, employeeID int64, start, end time.Time) ([]*entity.Shift, error)
	ListPTO(ctx context.Context, employeeID int64, start, end time.Time) ([]*entity.PTO, error)
	ListBonuses(ctx context.Context, employeeID int64, start, end time.Time) ([]*entity.Bonus, error)
}

// OutboxRepository stores notifications until the worker delivers them
type OutboxRepository interface {
	Enqueue(ctx context.Context, n *entity.Notification) error
	FetchPending(ctx context.Context, limit int) ([]*entity.Notification, error)
	MarkSent(ctx context.Context, id string, attempts int, sentAt time.Time) error
	MarkFailed(ctx context.Context, id string, attempts int, lastError string) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
