package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/order-resolution/internal/application/port"
	"github.com/garyjia/order-resolution/internal/domain/entity"
)

var templateSubjects = map[string]string{
	entity.TemplateRefundReceived:      "Update on Your Refund Request",
	entity.TemplateRefundApproved:      "Your Refund Request Was Approved",
	entity.TemplateRefundDenied:        "Your Refund Request Was Denied",
	entity.TemplateSellerFaultDebit:    "Product Return Required: Broken Product Before Shipment",
	entity.TemplateShipmentFaultCredit: "Shipment Issue Resolved: Compensation Credited",
}

// SubjectFor returns the email subject of a notification template
func SubjectFor(template string) (string, bool) {
	subject, ok := templateSubjects[template]
	return subject, ok
}

// NotificationRequest describes a notification to write to the outbox
type NotificationRequest struct {
	Recipient     string
	Template      string
	AggregateType string
	AggregateID   int64
	Data          map[string]interface{}
}

// NotificationService writes notifications to the outbox. Enqueue joins the
// transaction carried by ctx, so the row commits with the business change.
type NotificationService interface {
	Enqueue(ctx context.Context, req NotificationRequest) (*entity.Notification, error)
	Replay(ctx context.Context, records []port.FallbackRecord) (int, error)
}

type notificationServiceImpl struct {
	outboxRepo port.OutboxRepository
	txManager  port.TransactionManager
	logger     Logger
	opts       options
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	outboxRepo port.OutboxRepository,
	txManager port.TransactionManager,
	logger Logger,
	opts ...Option,
) NotificationService {
	return &notificationServiceImpl{
		outboxRepo: outboxRepo,
		txManager:  txManager,
		logger:     logger,
		opts:       buildOptions(opts),
	}
}

// Enqueue validates the request and inserts a PENDING outbox row
func (s *notificationServiceImpl) Enqueue(ctx context.Context, req NotificationRequest) (*entity.Notification, error) {
	if req.Recipient == "" {
		return nil, invalid("notification recipient is empty")
	}
	subject, ok := SubjectFor(req.Template)
	if !ok {
		return nil, invalid("unknown notification template %q", req.Template)
	}

	data, err := json.Marshal(req.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal notification data: %w", err)
	}

	n := &entity.Notification{
		ID:            uuid.NewString(),
		Recipient:     req.Recipient,
		Subject:       subject,
		Template:      req.Template,
		Data:          string(data),
		Status:        entity.NotificationPending,
		AggregateType: req.AggregateType,
		AggregateID:   req.AggregateID,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.outboxRepo.Enqueue(ctx, n); err != nil {
		return nil, fmt.Errorf("enqueue notification: %w", err)
	}

	s.opts.recorder.NotificationEnqueued(req.Template)
	s.logger.Info("Notification enqueued",
		"notification_id", n.ID,
		"template", n.Template,
		"aggregate_type", n.AggregateType,
		"aggregate_id", n.AggregateID,
	)
	return n, nil
}

// Replay re-enqueues notifications that previously exhausted their retries
func (s *notificationServiceImpl) Replay(ctx context.Context, records []port.FallbackRecord) (int, error) {
	replayed := 0
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, rec := range records {
			if rec.Notification == nil {
				continue
			}
			var data map[string]interface{}
			if rec.Notification.Data != "" {
				if err := json.Unmarshal([]byte(rec.Notification.Data), &data); err != nil {
					return fmt.Errorf("decode notification %s: %w", rec.Notification.ID, err)
				}
			}
			_, err := s.Enqueue(txCtx, NotificationRequest{
				Recipient:     rec.Notification.Recipient,
				Template:      rec.Notification.Template,
				AggregateType: rec.Notification.AggregateType,
				AggregateID:   rec.Notification.AggregateID,
				Data:          data,
			})
			if err != nil {
				return err
			}
			replayed++
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to replay notifications", "error", err)
		return 0, err
	}

	s.logger.Info("Notifications replayed", "count", replayed)
	return replayed, nil
}

// enqueueBestEffort writes a notification but never fails the caller's
// transaction; a failed insert is only logged.
func enqueueBestEffort(ctx context.Context, n NotificationService, logger Logger, req NotificationRequest) {
	if n == nil || req.Recipient == "" {
		return
	}
	if _, err := n.Enqueue(ctx, req); err != nil {
		logger.Error("Failed to enqueue notification",
			"error", err,
			"template", req.Template,
			"aggregate_type", req.AggregateType,
			"aggregate_id", req.AggregateID,
		)
	}
}

// formatCents renders an amount in cents as a decimal string
func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
