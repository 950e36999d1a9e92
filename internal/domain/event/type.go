package event

// Type identifies the type of domain event
type Type string

const (
	TypeRefundApproved             Type = "REFUND_APPROVED"
	TypeRefundDenied               Type = "REFUND_DENIED"
	TypeShipmentStatusChanged      Type = "SHIPMENT_STATUS_CHANGED"
	TypeShipmentItemStatusChanged  Type = "SHIPMENT_ITEM_STATUS_CHANGED"
	TypeShipmentEventStatusChanged Type = "SHIPMENT_EVENT_STATUS_CHANGED"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsRefundDecision reports whether the event carries a refund decision
func (t Type) IsRefundDecision() bool {
	return t == TypeRefundApproved || t == TypeRefundDenied
}
