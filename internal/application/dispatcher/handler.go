package dispatcher

import (
	"context"

	"github.com/garyjia/order-resolution/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Name        string
	EventType   event.Type
	Handler     Handler
	Description string
}

// RefundEventHandler applies a refund decision carried by an event
type RefundEventHandler interface {
	HandleRefundEvent(ctx context.Context, evt *event.Event) error
}

// RegisterRefundHandlers routes REFUND_APPROVED and REFUND_DENIED to h
func RegisterRefundHandlers(d Dispatcher, h RefundEventHandler) {
	for _, t := range []event.Type{event.TypeRefundApproved, event.TypeRefundDenied} {
		d.SubscribeNamed(t, "refund-decision", h.HandleRefundEvent)
	}
}
