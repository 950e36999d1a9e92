package entity

import (
	"time"

	"github.com/garyjia/order-resolution/internal/domain/workflow"
)

// RefundRequest is a customer's request to refund part of an order
type RefundRequest struct {
	ID           int64                 `json:"id"`
	OrderID      int64                 `json:"order_id"`
	OrderItemIDs []int64               `json:"order_item_ids"`
	Reason       string                `json:"reason"`
	Description  string                `json:"description"`
	AmountCents  int64                 `json:"amount_cents"`
	Status       workflow.RefundStatus `json:"status"`
	Version      int64                 `json:"version"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// RefundLedgerEntry records one refund decision. Rows are never updated or deleted.
type RefundLedgerEntry struct {
	ID          int64     `json:"id"`
	RefundID    int64     `json:"refund_id"`
	Action      string    `json:"action"`
	AmountCents int64     `json:"amount_cents"`
	ActorID     string    `json:"actor_id"`
	ActorRole   string    `json:"actor_role"`
	EventID     string    `json:"event_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Order holds the customer contact used for refund notifications
type Order struct {
	ID            int64  `json:"id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
}
