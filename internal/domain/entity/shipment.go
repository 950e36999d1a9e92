package entity

import (
	"time"

	"github.com/garyjia/order-resolution/internal/domain/workflow"
)

// Shipment links an order to the seller that fulfils it
type Shipment struct {
	ID          int64  `json:"id"`
	OrderID     int64  `json:"order_id"`
	SellerName  string `json:"seller_name"`
	SellerEmail string `json:"seller_email"`
}

// ShipmentIssue is a reported problem with a shipment awaiting fault resolution
type ShipmentIssue struct {
	ID          int64                    `json:"id"`
	ShipmentID  int64                    `json:"shipment_id"`
	IssueType   string                   `json:"issue_type"`
	Description string                   `json:"description"`
	AssignedTo  string                   `json:"assigned_to"`
	Resolution  workflow.IssueResolution `json:"resolution"`
	Version     int64                    `json:"version"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

// SellerExpense is a signed adjustment against an order. Negative amounts
// are owed by the seller, positive amounts are credited to the seller.
type SellerExpense struct {
	ID          int64     `json:"id"`
	OrderID     int64     `json:"order_id"`
	IssueID     int64     `json:"issue_id"`
	AmountCents int64     `json:"amount_cents"`
	Reason      string    `json:"reason"`
	ActorID     string    `json:"actor_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// ShipmentItem is one line item inside a shipment
type ShipmentItem struct {
	ID         int64                       `json:"id"`
	ShipmentID int64                       `json:"shipment_id"`
	ProductID  int64                       `json:"product_id"`
	Quantity   int                         `json:"quantity"`
	Status     workflow.ShipmentItemStatus `json:"status"`
	Version    int64                       `json:"version"`
	UpdatedAt  time.Time                   `json:"updated_at"`
}

// ShipmentEvent is a carrier tracking event for a shipment
type ShipmentEvent struct {
	ID         int64                        `json:"id"`
	ShipmentID int64                        `json:"shipment_id"`
	Location   string                       `json:"location"`
	Note       string                       `json:"note"`
	Status     workflow.ShipmentEventStatus `json:"status"`
	Version    int64                        `json:"version"`
	UpdatedAt  time.Time                    `json:"updated_at"`
}
