package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/garyjia/order-resolution/internal/application/dispatcher"
	"github.com/garyjia/order-resolution/internal/application/port"
	"github.com/garyjia/order-resolution/internal/application/service"
	"github.com/garyjia/order-resolution/internal/domain/event"
)

// RefundDecisionConsumer reads refund decision events from Kafka and feeds
// them to the dispatcher. Redelivered event IDs are skipped.
type RefundDecisionConsumer struct {
	reader     MessageReader
	dispatcher dispatcher.Dispatcher
	dedup      port.EventDeduplicator
	logger     *zap.Logger
	newBackOff func() backoff.BackOff

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewRefundDecisionConsumer creates a consumer. dedup may be nil.
func NewRefundDecisionConsumer(reader MessageReader, d dispatcher.Dispatcher, dedup port.EventDeduplicator, logger *zap.Logger) *RefundDecisionConsumer {
	return &RefundDecisionConsumer{
		reader:     reader,
		dispatcher: d,
		dedup:      dedup,
		logger:     logger,
		newBackOff: defaultBackOff,
	}
}

// defaultBackOff retries until the consumer is stopped
func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Name returns the worker name
func (c *RefundDecisionConsumer) Name() string {
	return "refund-decision-consumer"
}

// Start begins consuming in the background
func (c *RefundDecisionConsumer) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
	return nil
}

// Stop cancels consumption, waits for the loop and closes the reader
func (c *RefundDecisionConsumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return c.reader.Close()
}

func (c *RefundDecisionConsumer) run(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Error("Failed to fetch message", zap.Error(err))
			continue
		}

		// The partition does not advance past a decision that failed for a
		// transient reason. Stopping leaves it uncommitted for redelivery.
		op := func() error { return c.HandleMessage(ctx, msg) }
		notify := func(err error, wait time.Duration) {
			c.logger.Warn("Retrying refund decision",
				zap.Int64("offset", msg.Offset),
				zap.Duration("wait", wait),
				zap.Error(err))
		}
		if err := backoff.RetryNotify(op, backoff.WithContext(c.newBackOff(), ctx), notify); err != nil {
			c.logger.Warn("Refund decision left uncommitted",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			return
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("Failed to commit message",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		}
	}
}

// HandleMessage decodes and dispatches one message. A nil result means the
// message is done with and may be committed: it was applied, it was a
// duplicate, it could not be decoded, or the decision was rejected by the
// refund workflow. Any other failure is returned and the event id is
// released so a redelivery is processed again.
func (c *RefundDecisionConsumer) HandleMessage(ctx context.Context, msg kafka.Message) error {
	evt, err := decodeEvent(msg.Value)
	if err != nil {
		c.logger.Error("Dropping malformed refund decision",
			zap.Int64("offset", msg.Offset),
			zap.ByteString("value", msg.Value),
			zap.Error(err))
		return nil
	}

	claimed := false
	if c.dedup != nil {
		first, err := c.dedup.MarkSeen(ctx, evt.ID)
		switch {
		case err != nil:
			c.logger.Warn("Deduplication unavailable, processing event", zap.String("event_id", evt.ID), zap.Error(err))
		case !first:
			c.logger.Info("Skipping redelivered event", zap.String("event_id", evt.ID))
			return nil
		default:
			claimed = true
		}
	}

	err = c.dispatcher.Dispatch(ctx, evt)
	switch {
	case err == nil:
		c.logger.Info("Refund decision applied",
			zap.String("event_id", evt.ID),
			zap.String("event_type", string(evt.Type)),
			zap.Int64("refund_id", evt.EntityID))
		return nil
	case service.IsRejection(err):
		c.logger.Warn("Refund decision rejected",
			zap.String("event_id", evt.ID),
			zap.String("event_type", string(evt.Type)),
			zap.Int64("refund_id", evt.EntityID),
			zap.String("reason", service.ErrorReason(err)),
			zap.Error(err))
		return nil
	}

	c.logger.Error("Refund decision failed",
		zap.String("event_id", evt.ID),
		zap.String("event_type", string(evt.Type)),
		zap.Int64("refund_id", evt.EntityID),
		zap.Error(err))
	if claimed {
		if rerr := c.dedup.Release(context.WithoutCancel(ctx), evt.ID); rerr != nil {
			c.logger.Error("Failed to release event id", zap.String("event_id", evt.ID), zap.Error(rerr))
		}
	}
	return err
}

func decodeEvent(value []byte) (*event.Event, error) {
	var evt event.Event
	if err := json.Unmarshal(value, &evt); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if !evt.Type.IsRefundDecision() {
		return nil, fmt.Errorf("unexpected event type %q", evt.Type)
	}
	if evt.ID == "" {
		return nil, errors.New("event id is empty")
	}
	if evt.EntityID <= 0 {
		return nil, errors.New("refund id is missing")
	}
	if evt.Payload == nil {
		evt.Payload = make(map[string]interface{})
	}
	return &evt, nil
}
