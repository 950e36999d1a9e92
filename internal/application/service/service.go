package service

import (
	"context"

	"github.com/garyjia/order-resolution/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Recorder receives workflow outcomes for metrics
type Recorder interface {
	TransitionApplied(machine, from, to string)
	TransitionRejected(machine, reason string)
	LedgerAppended(ledger, action string, amountCents int64)
	NotificationEnqueued(template string)
}

// EventBus publishes domain events after a transaction commits
type EventBus interface {
	DispatchAsync(ctx context.Context, evt *event.Event)
}

type options struct {
	recorder Recorder
	events   EventBus
}

// Option configures optional collaborators of a service
type Option func(*options)

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithEventBus sets the bus used for post-commit domain events
func WithEventBus(bus EventBus) Option {
	return func(o *options) {
		o.events = bus
	}
}

func buildOptions(opts []Option) options {
	o := options{
		recorder: nopRecorder{},
		events:   nopBus{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type nopRecorder struct{}

func (nopRecorder) TransitionApplied(string, string, string) {}
func (nopRecorder) TransitionRejected(string, string)        {}
func (nopRecorder) LedgerAppended(string, string, int64)     {}
func (nopRecorder) NotificationEnqueued(string)              {}

type nopBus struct{}

func (nopBus) DispatchAsync(context.Context, *event.Event) {}
