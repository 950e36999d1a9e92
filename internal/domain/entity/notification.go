package entity

import "time"

// Notification is an outbox row written in the same transaction as the
// business change that caused it
type Notification struct {
	ID            string     `json:"id"`
	Recipient     string     `json:"recipient"`
	Subject       string     `json:"subject"`
	Template      string     `json:"template"`
	Data          string     `json:"data"`
	Status        string     `json:"status"`
	Attempts      int        `json:"attempts"`
	LastError     string     `json:"last_error,omitempty"`
	AggregateType string     `json:"aggregate_type"`
	AggregateID   int64      `json:"aggregate_id"`
	CreatedAt     time.Time  `json:"created_at"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
}
