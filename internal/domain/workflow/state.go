package workflow

import (
	"fmt"
	"strings"
)

// RefundStatus is the lifecycle state of a refund request
type RefundStatus string

const (
	RefundPending  RefundStatus = "PENDING"
	RefundApproved RefundStatus = "APPROVED"
	RefundDenied   RefundStatus = "DENIED"
)

// IssueResolution is the fault bucket of a shipment issue
type IssueResolution string

const (
	IssueUnresolved    IssueResolution = "UNRESOLVED"
	IssueSellerFault   IssueResolution = "SELLER_FAULT"
	IssueShipmentFault IssueResolution = "SHIPMENT_FAULT"
)

// ShipmentItemStatus is the state of a single shipped line item
type ShipmentItemStatus string

const (
	ItemPending   ShipmentItemStatus = "PENDING"
	ItemShipped   ShipmentItemStatus = "SHIPPED"
	ItemDelivered ShipmentItemStatus = "DELIVERED"
	ItemReturned  ShipmentItemStatus = "RETURNED"
	ItemDamaged   ShipmentItemStatus = "DAMAGED"
)

// ShipmentEventStatus is the state of a carrier tracking event
type ShipmentEventStatus string

const (
	EventCreated   ShipmentEventStatus = "CREATED"
	EventInTransit ShipmentEventStatus = "IN_TRANSIT"
	EventDelivered ShipmentEventStatus = "DELIVERED"
	EventFailed    ShipmentEventStatus = "FAILED"
)

// RefundRules governs RefundRequest.Status
var RefundRules = buildRefundRules()

// ShipmentIssueRules governs ShipmentIssue.Resolution
var ShipmentIssueRules = buildShipmentIssueRules()

// ShipmentItemRules governs ShipmentItem.Status
var ShipmentItemRules = buildShipmentItemRules()

// ShipmentEventRules governs ShipmentEvent.Status
var ShipmentEventRules = buildShipmentEventRules()

func buildRefundRules() *Rules[RefundStatus] {
	b := NewRules("refund", RefundPending, RefundApproved, RefundDenied)
	b.Configure(RefundPending).Permit(RefundApproved, RefundDenied)
	b.Terminal(RefundApproved, RefundDenied)
	return b.Build()
}

func buildShipmentIssueRules() *Rules[IssueResolution] {
	b := NewRules("shipment_issue", IssueUnresolved, IssueSellerFault, IssueShipmentFault)
	b.Configure(IssueUnresolved).Permit(IssueSellerFault, IssueShipmentFault)
	b.Terminal(IssueSellerFault, IssueShipmentFault)
	return b.Build()
}

func buildShipmentItemRules() *Rules[ShipmentItemStatus] {
	b := NewRules("shipment_item", ItemPending, ItemShipped, ItemDelivered, ItemReturned, ItemDamaged)
	b.Configure(ItemPending).Permit(ItemShipped, ItemDamaged)
	b.Configure(ItemShipped).Permit(ItemDelivered, ItemReturned, ItemDamaged)
	b.Terminal(ItemDelivered, ItemReturned, ItemDamaged)
	return b.Build()
}

func buildShipmentEventRules() *Rules[ShipmentEventStatus] {
	b := NewRules("shipment_event", EventCreated, EventInTransit, EventDelivered, EventFailed)
	b.Configure(EventCreated).Permit(EventInTransit, EventFailed)
	b.Configure(EventInTransit).Permit(EventDelivered, EventFailed)
	b.Terminal(EventDelivered, EventFailed)
	return b.Build()
}

// ParseShipmentItemStatus accepts any letter case
func ParseShipmentItemStatus(s string) (ShipmentItemStatus, error) {
	st := ShipmentItemStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !ShipmentItemRules.IsValid(st) {
		return "", fmt.Errorf("%w: shipment item status %q", ErrInvalidState, s)
	}
	return st, nil
}

// ParseShipmentEventStatus accepts any letter case
func ParseShipmentEventStatus(s string) (ShipmentEventStatus, error) {
	st := ShipmentEventStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !ShipmentEventRules.IsValid(st) {
		return "", fmt.Errorf("%w: shipment event status %q", ErrInvalidState, s)
	}
	return st, nil
}
