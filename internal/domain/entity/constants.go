package entity

// Notification status constants
const (
	NotificationPending = "PENDING"
	NotificationSent    = "SENT"
	NotificationFailed  = "FAILED"
)

// Refund ledger actions
const (
	LedgerActionApproved = "approved"
	LedgerActionRejected = "rejected"
)

// Notification templates
const (
	TemplateRefundReceived      = "refund_received"
	TemplateRefundApproved      = "refund_approved"
	TemplateRefundDenied        = "refund_denied"
	TemplateSellerFaultDebit    = "seller_fault_debit"
	TemplateShipmentFaultCredit = "shipment_fault_credit"
)

// Aggregate types recorded on outbox rows
const (
	AggregateRefund        = "refund"
	AggregateShipmentIssue = "shipment_issue"
)
