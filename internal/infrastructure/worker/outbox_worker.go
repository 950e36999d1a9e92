package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/garyjia/order-resolution/internal/application/port"
	"github.com/garyjia/order-resolution/internal/domain/entity"
)

// OutboxConfig controls polling and retry of pending notifications
type OutboxConfig struct {
	PollInterval    time.Duration
	BatchSize       int
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (c OutboxConfig) withDefaults() OutboxConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = 500 * time.Millisecond
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 30 * time.Second
	}
	return c
}

// DeliveryObserver is told the outcome ("sent" or "failed") of every notification
type DeliveryObserver func(template, outcome string)

// OutboxWorker delivers pending outbox rows through a NotificationSender.
// Rows that exhaust their attempts are marked FAILED and copied to the
// fallback store.
type OutboxWorker struct {
	outbox   port.OutboxRepository
	sender   port.NotificationSender
	fallback port.FallbackStore
	cfg      OutboxConfig
	logger   *zap.Logger
	observe  DeliveryObserver

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewOutboxWorker creates a worker. observe may be nil.
func NewOutboxWorker(outbox port.OutboxRepository, sender port.NotificationSender, fallback port.FallbackStore, cfg OutboxConfig, logger *zap.Logger, observe DeliveryObserver) *OutboxWorker {
	if observe == nil {
		observe = func(string, string) {}
	}
	return &OutboxWorker{
		outbox:   outbox,
		sender:   sender,
		fallback: fallback,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		observe:  observe,
	}
}

// Name returns the worker name
func (w *OutboxWorker) Name() string {
	return "notification-outbox"
}

// Start polls the outbox until Stop is called
func (w *OutboxWorker) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.cfg.PollInterval)
		defer ticker.Stop()
		for {
			if _, err := w.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("Outbox batch failed", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return nil
}

// Stop cancels polling and waits for the in-flight batch
func (w *OutboxWorker) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	return nil
}

// ProcessBatch delivers up to BatchSize pending notifications and returns
// how many reached a final state
func (w *OutboxWorker) ProcessBatch(ctx context.Context) (int, error) {
	pending, err := w.outbox.FetchPending(ctx, w.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch pending notifications: %w", err)
	}

	done := 0
	for _, n := range pending {
		if ctx.Err() != nil {
			break
		}
		if w.deliver(ctx, n) {
			done++
		}
	}
	return done, nil
}

func (w *OutboxWorker) deliver(ctx context.Context, n *entity.Notification) bool {
	data := make(map[string]interface{})
	if n.Data != "" {
		if err := json.Unmarshal([]byte(n.Data), &data); err != nil {
			return w.fail(ctx, n, n.Attempts+1, fmt.Errorf("%w: invalid data: %v", port.ErrPermanentDelivery, err))
		}
	}

	attempts := n.Attempts
	op := func() error {
		attempts++
		err := w.sender.Send(ctx, n.Recipient, n.Subject, n.Template, data)
		if errors.Is(err, port.ErrPermanentDelivery) {
			return backoff.Permanent(err)
		}
		if err != nil {
			w.logger.Info("Notification attempt failed",
				zap.String("notification_id", n.ID),
				zap.Int("attempt", attempts),
				zap.Error(err))
		}
		return err
	}

	remaining := w.cfg.MaxAttempts - n.Attempts
	if remaining < 1 {
		remaining = 1
	}
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(w.newBackOff(), uint64(remaining-1)), ctx))
	if err == nil {
		if err := w.outbox.MarkSent(ctx, n.ID, attempts, time.Now().UTC()); err != nil {
			w.logger.Error("Failed to mark notification sent", zap.String("notification_id", n.ID), zap.Error(err))
			return false
		}
		w.observe(n.Template, "sent")
		return true
	}

	// Shutdown mid-retry leaves the row pending for the next run.
	if ctx.Err() != nil {
		return false
	}
	return w.fail(ctx, n, attempts, err)
}

func (w *OutboxWorker) fail(ctx context.Context, n *entity.Notification, attempts int, cause error) bool {
	w.logger.Error("Notification delivery failed",
		zap.String("notification_id", n.ID),
		zap.String("recipient", n.Recipient),
		zap.String("template", n.Template),
		zap.Int("attempts", attempts),
		zap.Error(cause))

	failed := *n
	failed.Attempts = attempts
	failed.Status = entity.NotificationFailed
	failed.LastError = cause.Error()
	rec := port.FallbackRecord{
		Notification: &failed,
		Error:        cause.Error(),
		FailedAt:     time.Now().UTC().Format(time.RFC3339),
	}
	if err := w.fallback.Append(ctx, rec); err != nil {
		w.logger.Error("Failed to write fallback record", zap.String("notification_id", n.ID), zap.Error(err))
	}

	if err := w.outbox.MarkFailed(ctx, n.ID, attempts, cause.Error()); err != nil {
		w.logger.Error("Failed to mark notification failed", zap.String("notification_id", n.ID), zap.Error(err))
		return false
	}
	w.observe(n.Template, "failed")
	return true
}

func (w *OutboxWorker) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.cfg.InitialInterval
	b.MaxInterval = w.cfg.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
