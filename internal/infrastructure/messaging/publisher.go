package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/garyjia/order-resolution/internal/application/dispatcher"
	"github.com/garyjia/order-resolution/internal/application/port"
	"github.com/garyjia/order-resolution/internal/domain/event"
)

// EventPublisher writes domain events as JSON keyed by entity ID
type EventPublisher struct {
	writer MessageWriter
	logger *zap.Logger
}

// NewEventPublisher creates a publisher on writer
func NewEventPublisher(writer MessageWriter, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{writer: writer, logger: logger}
}

// Publish writes one message for evt
func (p *EventPublisher) Publish(ctx context.Context, evt *event.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", evt.ID, err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(evt.EntityID, 10)),
		Value: data,
		Time:  evt.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
			{Key: "event_id", Value: []byte(evt.ID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish event",
			zap.String("event_id", evt.ID),
			zap.String("event_type", string(evt.Type)),
			zap.Error(err))
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Event published",
		zap.String("event_id", evt.ID),
		zap.String("event_type", string(evt.Type)),
		zap.Int64("entity_id", evt.EntityID))
	return nil
}

// Close closes the underlying writer
func (p *EventPublisher) Close() error {
	return p.writer.Close()
}

// ForwardShipmentEvents subscribes publisher to every shipment status event type
func ForwardShipmentEvents(d dispatcher.Dispatcher, publisher port.EventPublisher) {
	for _, t := range []event.Type{
		event.TypeShipmentStatusChanged,
		event.TypeShipmentItemStatusChanged,
		event.TypeShipmentEventStatusChanged,
	} {
		d.SubscribeNamed(t, "kafka-forwarder", publisher.Publish)
	}
}

var _ port.EventPublisher = (*EventPublisher)(nil)
