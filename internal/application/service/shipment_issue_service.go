package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/garyjia/order-resolution/internal/application/port"
	"github.com/garyjia/order-resolution/internal/domain/entity"
	"github.com/garyjia/order-resolution/internal/domain/workflow"
)

var (
	sellerFaultTerms = map[string]struct{}{
		"broken_no_arrival_seller_fault": {},
		"seller_fault":                   {},
	}
	shipmentFaultTerms = map[string]struct{}{
		"broken_at_shipment":        {},
		"shipment_fault":            {},
		"no_arrival_shipment_fault": {},
		"shipment_lost":             {},
	}
)

// ClassifyIssueType maps a free-form issue type to its fault bucket.
// Unknown types stay UNRESOLVED.
func ClassifyIssueType(issueType string) workflow.IssueResolution {
	key := strings.ToLower(strings.TrimSpace(issueType))
	if _, ok := sellerFaultTerms[key]; ok {
		return workflow.IssueSellerFault
	}
	if _, ok := shipmentFaultTerms[key]; ok {
		return workflow.IssueShipmentFault
	}
	return workflow.IssueUnresolved
}

// ReportIssueInput opens a new shipment issue
type ReportIssueInput struct {
	ShipmentID  int64
	IssueType   string
	Description string
}

// IssueResolutionInput carries the field updates applied while resolving an issue
type IssueResolutionInput struct {
	IssueType      *string
	Description    *string
	AssignedTo     *string
	ItemValueCents int64
}

// ShipmentIssueService resolves shipment issues into seller or carrier fault
type ShipmentIssueService interface {
	ReportShipmentIssue(ctx context.Context, actor entity.Actor, in ReportIssueInput) (*entity.ShipmentIssue, error)
	GetShipmentIssue(ctx context.Context, id int64) (*entity.ShipmentIssue, error)
	ResolveShipmentIssue(ctx context.Context, actor entity.Actor, issueID int64, in IssueResolutionInput) (*entity.ShipmentIssue, error)
	ListSellerExpenses(ctx context.Context, orderID int64) ([]*entity.SellerExpense, error)
}

type shipmentIssueServiceImpl struct {
	issueRepo    port.ShipmentIssueRepository
	shipmentRepo port.ShipmentRepository
	expenseRepo  port.SellerExpenseRepository
	notifier     NotificationService
	txManager    port.TransactionManager
	logger       Logger
	opts         options
}

// NewShipmentIssueService creates a new ShipmentIssueService
func NewShipmentIssueService(
	issueRepo port.ShipmentIssueRepository,
	shipmentRepo port.ShipmentRepository,
	expenseRepo port.SellerExpenseRepository,
	notifier NotificationService,
	txManager port.TransactionManager,
	logger Logger,
	opts ...Option,
) ShipmentIssueService {
	return &shipmentIssueServiceImpl{
		issueRepo:    issueRepo,
		shipmentRepo: shipmentRepo,
		expenseRepo:  expenseRepo,
		notifier:     notifier,
		txManager:    txManager,
		logger:       logger,
		opts:         buildOptions(opts),
	}
}

// ReportShipmentIssue records a new UNRESOLVED issue against a shipment
func (s *shipmentIssueServiceImpl) ReportShipmentIssue(ctx context.Context, actor entity.Actor, in ReportIssueInput) (*entity.ShipmentIssue, error) {
	if !actor.Valid() {
		return nil, invalid("actor is required")
	}
	if strings.TrimSpace(in.IssueType) == "" {
		return nil, invalid("issue type is required")
	}

	now := time.Now().UTC()
	issue := &entity.ShipmentIssue{
		ShipmentID:  in.ShipmentID,
		IssueType:   in.IssueType,
		Description: in.Description,
		Resolution:  workflow.IssueUnresolved,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		shipment, err := s.shipmentRepo.GetByID(txCtx, in.ShipmentID)
		if err != nil {
			return fmt.Errorf("get shipment: %w", err)
		}
		if shipment == nil {
			return notFound("shipment", in.ShipmentID)
		}
		if err := s.issueRepo.Create(txCtx, issue); err != nil {
			return fmt.Errorf("create shipment issue: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to report shipment issue", "error", err, "shipment_id", in.ShipmentID)
		return nil, err
	}

	s.logger.Info("Shipment issue reported", "issue_id", issue.ID, "shipment_id", issue.ShipmentID, "actor", actor.ID)
	return issue, nil
}

// GetShipmentIssue retrieves an issue by ID
func (s *shipmentIssueServiceImpl) GetShipmentIssue(ctx context.Context, id int64) (*entity.ShipmentIssue, error) {
	issue, err := s.issueRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get shipment issue", "error", err, "issue_id", id)
		return nil, err
	}
	if issue == nil {
		return nil, notFound("shipment issue", id)
	}
	return issue, nil
}

// ResolveShipmentIssue applies the field updates, classifies the issue type and,
// for a fault classification, books a signed seller expense against the order.
func (s *shipmentIssueServiceImpl) ResolveShipmentIssue(ctx context.Context, actor entity.Actor, issueID int64, in IssueResolutionInput) (*entity.ShipmentIssue, error) {
	machine := workflow.ShipmentIssueRules.Name()
	if !actor.Valid() {
		s.opts.recorder.TransitionRejected(machine, ErrorReason(ErrValidation))
		return nil, invalid("actor is required")
	}
	// the magnitude of MinInt64 has no int64 representation
	if in.ItemValueCents == math.MinInt64 {
		s.opts.recorder.TransitionRejected(machine, ErrorReason(ErrValidation))
		return nil, invalid("item value %d is out of range", in.ItemValueCents)
	}

	var (
		updated *entity.ShipmentIssue
		expense *entity.SellerExpense
	)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		issue, err := s.issueRepo.GetByID(txCtx, issueID)
		if err != nil {
			return fmt.Errorf("get shipment issue: %w", err)
		}
		if issue == nil {
			return notFound("shipment issue", issueID)
		}
		if issue.Resolution != workflow.IssueUnresolved {
			return fmt.Errorf("%w: shipment issue %d is %s", ErrAlreadyProcessed, issue.ID, issue.Resolution)
		}

		if in.IssueType != nil {
			issue.IssueType = *in.IssueType
		}
		if in.Description != nil {
			issue.Description = *in.Description
		}
		if in.AssignedTo != nil {
			issue.AssignedTo = *in.AssignedTo
		}
		issue.UpdatedAt = time.Now().UTC()

		target := ClassifyIssueType(issue.IssueType)
		if target == workflow.IssueUnresolved {
			if err := s.issueRepo.Update(txCtx, issue); err != nil {
				return conflict("shipment issue", issue.ID, err)
			}
			updated = issue
			return nil
		}

		if err := workflow.ShipmentIssueRules.Validate(issue.Resolution, target); err != nil {
			return err
		}

		shipment, err := s.shipmentRepo.GetByID(txCtx, issue.ShipmentID)
		if err != nil {
			return fmt.Errorf("get shipment: %w", err)
		}
		if shipment == nil {
			return notFound("shipment", issue.ShipmentID)
		}

		issue.Resolution = target
		if err := s.issueRepo.Update(txCtx, issue); err != nil {
			return conflict("shipment issue", issue.ID, err)
		}

		amount := signedExpense(target, in.ItemValueCents)
		if amount != 0 {
			expense = &entity.SellerExpense{
				OrderID:     shipment.OrderID,
				IssueID:     issue.ID,
				AmountCents: amount,
				Reason:      strings.ToLower(strings.TrimSpace(issue.IssueType)),
				ActorID:     actor.ID,
				CreatedAt:   issue.UpdatedAt,
			}
			if err := s.expenseRepo.Append(txCtx, expense); err != nil {
				return fmt.Errorf("append seller expense: %w", err)
			}
		}

		enqueueBestEffort(txCtx, s.notifier, s.logger, NotificationRequest{
			Recipient:     shipment.SellerEmail,
			Template:      sellerTemplate(target),
			AggregateType: entity.AggregateShipmentIssue,
			AggregateID:   issue.ID,
			Data: map[string]interface{}{
				"seller_name": shipment.SellerName,
				"order_id":    shipment.OrderID,
				"shipment_id": shipment.ID,
				"issue_id":    issue.ID,
				"issue_type":  issue.IssueType,
				"description": issue.Description,
				"amount":      formatCents(amount),
			},
		})

		updated = issue
		return nil
	})
	if err != nil {
		s.opts.recorder.TransitionRejected(machine, ErrorReason(err))
		s.logger.Error("Failed to resolve shipment issue", "error", err, "issue_id", issueID, "actor", actor.ID)
		return nil, err
	}

	if updated.Resolution != workflow.IssueUnresolved {
		s.opts.recorder.TransitionApplied(machine, string(workflow.IssueUnresolved), string(updated.Resolution))
	}
	if expense != nil {
		s.opts.recorder.LedgerAppended("seller_expense", string(updated.Resolution), expense.AmountCents)
	}
	s.logger.Info("Shipment issue resolved",
		"issue_id", updated.ID,
		"resolution", updated.Resolution,
		"actor", actor.ID,
	)
	return updated, nil
}

// ListSellerExpenses returns the expense rows booked against an order
func (s *shipmentIssueServiceImpl) ListSellerExpenses(ctx context.Context, orderID int64) ([]*entity.SellerExpense, error) {
	expenses, err := s.expenseRepo.ListByOrderID(ctx, orderID)
	if err != nil {
		s.logger.Error("Failed to list seller expenses", "error", err, "order_id", orderID)
		return nil, err
	}
	return expenses, nil
}

// signedExpense is negative when the seller owes the platform and positive
// when the platform compensates the seller
func signedExpense(resolution workflow.IssueResolution, itemValueCents int64) int64 {
	v := itemValueCents
	if v < 0 {
		v = -v
	}
	switch resolution {
	case workflow.IssueSellerFault:
		return -v
	case workflow.IssueShipmentFault:
		return v
	default:
		return 0
	}
}

func sellerTemplate(resolution workflow.IssueResolution) string {
	if resolution == workflow.IssueSellerFault {
		return entity.TemplateSellerFaultDebit
	}
	return entity.TemplateShipmentFaultCredit
}
