package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/order-resolution/internal/application/port"
	"github.com/garyjia/order-resolution/internal/domain/entity"
	"github.com/garyjia/order-resolution/internal/domain/event"
	"github.com/garyjia/order-resolution/internal/domain/workflow"
)

// RefundAction is the decision requested for a pending refund
type RefundAction string

const (
	ActionApprove RefundAction = "approve"
	ActionReject  RefundAction = "reject"
)

// ParseRefundAction accepts "approve" or "reject" in any case
func ParseRefundAction(s string) (RefundAction, error) {
	switch RefundAction(strings.ToLower(strings.TrimSpace(s))) {
	case ActionApprove:
		return ActionApprove, nil
	case ActionReject:
		return ActionReject, nil
	default:
		return "", fmt.Errorf("%w: %q is neither approve nor reject", ErrInvalidAction, s)
	}
}

// RefundActionFromFlags resolves a pair of approve/reject flags. Exactly one must be set.
func RefundActionFromFlags(approve, reject bool) (RefundAction, error) {
	switch {
	case approve && !reject:
		return ActionApprove, nil
	case reject && !approve:
		return ActionReject, nil
	default:
		return "", fmt.Errorf("%w: exactly one of approve or reject must be set", ErrInvalidAction)
	}
}

// ResolveRefundRequestAction picks the action from either the named form or the
// flag form. When both are given they must agree.
func ResolveRefundRequestAction(action string, approve, reject bool) (RefundAction, error) {
	if action == "" {
		return RefundActionFromFlags(approve, reject)
	}
	parsed, err := ParseRefundAction(action)
	if err != nil {
		return "", err
	}
	if !approve && !reject {
		return parsed, nil
	}
	flagged, err := RefundActionFromFlags(approve, reject)
	if err != nil {
		return "", err
	}
	if flagged != parsed {
		return "", fmt.Errorf("%w: action %q conflicts with the %s flag", ErrInvalidAction, parsed, flagged)
	}
	return parsed, nil
}

func (a RefundAction) target() workflow.RefundStatus {
	if a == ActionApprove {
		return workflow.RefundApproved
	}
	return workflow.RefundDenied
}

// OpenRefundInput carries a customer complaint
type OpenRefundInput struct {
	OrderID      int64
	OrderItemIDs []int64
	Reason       string
	Description  string
	AmountCents  int64
}

// RefundService drives refund requests through their lifecycle
type RefundService interface {
	OpenRefundRequest(ctx context.Context, actor entity.Actor, in OpenRefundInput) (*entity.RefundRequest, error)
	GetRefund(ctx context.Context, id int64) (*entity.RefundRequest, error)
	ResolveRefund(ctx context.Context, actor entity.Actor, refundID int64, action RefundAction, description *string) (*entity.RefundRequest, error)
	HandleRefundEvent(ctx context.Context, evt *event.Event) error
	Ledger(ctx context.Context, refundID int64) ([]*entity.RefundLedgerEntry, error)
}

type refundServiceImpl struct {
	refundRepo port.RefundRepository
	ledgerRepo port.RefundLedgerRepository
	orderRepo  port.OrderRepository
	notifier   NotificationService
	txManager  port.TransactionManager
	logger     Logger
	opts       options
}

// NewRefundService creates a new RefundService
func NewRefundService(
	refundRepo port.RefundRepository,
	ledgerRepo port.RefundLedgerRepository,
	orderRepo port.OrderRepository,
	notifier NotificationService,
	txManager port.TransactionManager,
	logger Logger,
	opts ...Option,
) RefundService {
	return &refundServiceImpl{
		refundRepo: refundRepo,
		ledgerRepo: ledgerRepo,
		orderRepo:  orderRepo,
		notifier:   notifier,
		txManager:  txManager,
		logger:     logger,
		opts:       buildOptions(opts),
	}
}

// OpenRefundRequest records a complaint as a PENDING refund and tells the customer it was received
func (s *refundServiceImpl) OpenRefundRequest(ctx context.Context, actor entity.Actor, in OpenRefundInput) (*entity.RefundRequest, error) {
	if !actor.Valid() {
		return nil, invalid("actor is required")
	}
	if len(in.OrderItemIDs) == 0 {
		return nil, invalid("at least one order item is required")
	}
	if in.AmountCents < 0 {
		return nil, invalid("refund amount must not be negative")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return nil, invalid("reason is required")
	}

	now := time.Now().UTC()
	refund := &entity.RefundRequest{
		OrderID:      in.OrderID,
		OrderItemIDs: in.OrderItemIDs,
		Reason:       in.Reason,
		Description:  in.Description,
		AmountCents:  in.AmountCents,
		Status:       workflow.RefundPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		order, err := s.orderRepo.GetByID(txCtx, in.OrderID)
		if err != nil {
			return fmt.Errorf("get order: %w", err)
		}
		if order == nil {
			return notFound("order", in.OrderID)
		}

		if err := s.refundRepo.Create(txCtx, refund); err != nil {
			return fmt.Errorf("create refund: %w", err)
		}

		enqueueBestEffort(txCtx, s.notifier, s.logger, NotificationRequest{
			Recipient:     order.CustomerEmail,
			Template:      entity.TemplateRefundReceived,
			AggregateType: entity.AggregateRefund,
			AggregateID:   refund.ID,
			Data:          refundNotificationData(order, refund),
		})
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to open refund request", "error", err, "order_id", in.OrderID, "actor", actor.ID)
		return nil, err
	}

	s.logger.Info("Refund request opened", "refund_id", refund.ID, "order_id", refund.OrderID, "actor", actor.ID)
	return refund, nil
}

// GetRefund retrieves a refund by ID
func (s *refundServiceImpl) GetRefund(ctx context.Context, id int64) (*entity.RefundRequest, error) {
	refund, err := s.refundRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get refund", "error", err, "refund_id", id)
		return nil, err
	}
	if refund == nil {
		return nil, notFound("refund", id)
	}
	return refund, nil
}

// ResolveRefund approves or rejects a pending refund
func (s *refundServiceImpl) ResolveRefund(ctx context.Context, actor entity.Actor, refundID int64, action RefundAction, description *string) (*entity.RefundRequest, error) {
	if action != ActionApprove && action != ActionReject {
		s.opts.recorder.TransitionRejected(workflow.RefundRules.Name(), ErrorReason(ErrInvalidAction))
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	return s.applyRefundDecision(ctx, actor, refundID, action.target(), description, "")
}

// HandleRefundEvent applies a REFUND_APPROVED or REFUND_DENIED event. Events
// emitted by this service after a direct call are ignored.
func (s *refundServiceImpl) HandleRefundEvent(ctx context.Context, evt *event.Event) error {
	if evt.GetPayloadString(event.PayloadSource) == event.SourceDirect {
		return nil
	}

	var target workflow.RefundStatus
	switch evt.Type {
	case event.TypeRefundApproved:
		target = workflow.RefundApproved
	case event.TypeRefundDenied:
		target = workflow.RefundDenied
	default:
		return fmt.Errorf("%w: event type %s", ErrInvalidAction, evt.Type)
	}

	actor := evt.Actor
	if !actor.Valid() {
		actor = entity.System
	}

	_, err := s.applyRefundDecision(ctx, actor, evt.EntityID, target, evt.Description(), evt.ID)
	return err
}

// applyRefundDecision is the single path that moves a refund out of PENDING.
// Status write, ledger row and outbox row share one transaction.
func (s *refundServiceImpl) applyRefundDecision(
	ctx context.Context,
	actor entity.Actor,
	refundID int64,
	target workflow.RefundStatus,
	description *string,
	eventID string,
) (*entity.RefundRequest, error) {
	machine := workflow.RefundRules.Name()
	if !actor.Valid() {
		s.opts.recorder.TransitionRejected(machine, ErrorReason(ErrValidation))
		return nil, invalid("actor is required")
	}

	var (
		updated *entity.RefundRequest
		from    workflow.RefundStatus
		entry   *entity.RefundLedgerEntry
	)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		refund, err := s.refundRepo.GetByID(txCtx, refundID)
		if err != nil {
			return fmt.Errorf("get refund: %w", err)
		}
		if refund == nil {
			return notFound("refund", refundID)
		}

		if err := workflow.RefundRules.Validate(refund.Status, target); err != nil {
			return err
		}

		if err := s.refundRepo.UpdateStatus(txCtx, refund.ID, refund.Version, target, description); err != nil {
			return conflict("refund", refund.ID, err)
		}
		from = refund.Status
		refund.Status = target
		refund.Version++
		refund.UpdatedAt = time.Now().UTC()
		if description != nil {
			refund.Description = *description
		}

		entry = &entity.RefundLedgerEntry{
			RefundID:    refund.ID,
			Action:      ledgerAction(target),
			AmountCents: refund.AmountCents,
			ActorID:     actor.ID,
			ActorRole:   actor.Role,
			EventID:     eventID,
			CreatedAt:   refund.UpdatedAt,
		}
		if err := s.ledgerRepo.Append(txCtx, entry); err != nil {
			return fmt.Errorf("append refund ledger: %w", err)
		}

		order, err := s.orderRepo.GetByID(txCtx, refund.OrderID)
		if err != nil {
			s.logger.Error("Failed to load order contact", "error", err, "order_id", refund.OrderID)
		} else if order != nil {
			enqueueBestEffort(txCtx, s.notifier, s.logger, NotificationRequest{
				Recipient:     order.CustomerEmail,
				Template:      refundTemplate(target),
				AggregateType: entity.AggregateRefund,
				AggregateID:   refund.ID,
				Data:          refundNotificationData(order, refund),
			})
		}

		updated = refund
		return nil
	})
	if err != nil {
		s.opts.recorder.TransitionRejected(machine, ErrorReason(err))
		s.logger.Error("Failed to resolve refund",
			"error", err,
			"refund_id", refundID,
			"target", target,
			"actor", actor.ID,
			"event_id", eventID,
		)
		return nil, err
	}

	s.opts.recorder.TransitionApplied(machine, string(from), string(target))
	s.opts.recorder.LedgerAppended("refund", entry.Action, entry.AmountCents)
	s.logger.Info("Refund resolved",
		"refund_id", updated.ID,
		"status", updated.Status,
		"amount_cents", updated.AmountCents,
		"actor", actor.ID,
		"event_id", eventID,
	)

	evt := event.NewEvent(refundEventType(target), updated.ID, actor, map[string]interface{}{
		event.PayloadSource:     event.SourceDirect,
		event.PayloadFromStatus: string(from),
		event.PayloadToStatus:   string(target),
	})
	s.opts.events.DispatchAsync(context.WithoutCancel(ctx), evt)

	return updated, nil
}

// Ledger returns the ledger rows of a refund
func (s *refundServiceImpl) Ledger(ctx context.Context, refundID int64) ([]*entity.RefundLedgerEntry, error) {
	entries, err := s.ledgerRepo.ListByRefundID(ctx, refundID)
	if err != nil {
		s.logger.Error("Failed to list refund ledger", "error", err, "refund_id", refundID)
		return nil, err
	}
	return entries, nil
}

func ledgerAction(status workflow.RefundStatus) string {
	if status == workflow.RefundApproved {
		return entity.LedgerActionApproved
	}
	return entity.LedgerActionRejected
}

func refundTemplate(status workflow.RefundStatus) string {
	if status == workflow.RefundApproved {
		return entity.TemplateRefundApproved
	}
	return entity.TemplateRefundDenied
}

func refundEventType(status workflow.RefundStatus) event.Type {
	if status == workflow.RefundApproved {
		return event.TypeRefundApproved
	}
	return event.TypeRefundDenied
}

func refundNotificationData(order *entity.Order, refund *entity.RefundRequest) map[string]interface{} {
	return map[string]interface{}{
		"customer_name": order.CustomerName,
		"order_id":      refund.OrderID,
		"refund_id":     refund.ID,
		"status":        string(refund.Status),
		"reason":        refund.Reason,
		"description":   refund.Description,
		"amount":        formatCents(refund.AmountCents),
	}
}
