package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/order-resolution/internal/domain/entity"
)

// Payload keys shared by producers and handlers
const (
	PayloadDescription = "description"
	PayloadSource      = "source"
	PayloadFromStatus  = "from_status"
	PayloadToStatus    = "to_status"
	PayloadShipmentID  = "shipment_id"
)

// SourceDirect marks events emitted after a direct workflow call
const SourceDirect = "direct"

// Event is a transient domain event. It is never stored as its own row.
type Event struct {
	ID        string                 `json:"id"`
	Type      Type                   `json:"type"`
	EntityID  int64                  `json:"entity_id"`
	Actor     entity.Actor           `json:"actor"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewEvent creates a new domain event with generated ID and timestamp
func NewEvent(eventType Type, entityID int64, actor entity.Actor, payload map[string]interface{}) *Event {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		EntityID:  entityID,
		Actor:     actor,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// Description returns the optional description carried by refund events
func (e *Event) Description() *string {
	val, ok := e.Payload[PayloadDescription]
	if !ok {
		return nil
	}
	s, ok := val.(string)
	if !ok {
		return nil
	}
	return &s
}
