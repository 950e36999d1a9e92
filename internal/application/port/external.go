package port

import (
	"context"
	"errors"

	"github.com/garyjia/order-resolution/internal/domain/event"
)

// NotificationSender delivers a rendered template to a recipient
type NotificationSender interface {
	Send(ctx context.Context, recipient, subject, template string, data map[string]interface{}) error
}

// EventPublisher forwards domain events to other services
type EventPublisher interface {
	Publish(ctx context.Context, evt *event.Event) error
}

// EventDeduplicator remembers event IDs that were already handled.
// MarkSeen returns true the first time an ID is seen. Release forgets an ID
// whose handling failed so a redelivery is processed again.
type EventDeduplicator interface {
	MarkSeen(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// ErrPermanentDelivery marks delivery failures that retrying cannot fix,
// such as an unknown template or a malformed address
var ErrPermanentDelivery = errors.New("permanent delivery failure")
