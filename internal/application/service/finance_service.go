package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/order-resolution/internal/application/port"
	"github.com/garyjia/order-resolution/internal/domain/entity"
	"github.com/garyjia/order-resolution/internal/domain/workflow"
)

// CreateIncidentInput carries a new incident
type CreateIncidentInput struct {
	EmployeeID  int64
	Description string
	CostCents   int64
	Date        time.Time
	Status      string
}

// IncidentUpdate lists the incident fields to change; nil fields are left alone
type IncidentUpdate struct {
	Description *string
	CostCents   *int64
	Date        *time.Time
	Status      *string
	PaidAll     *bool
}

// CreateReimbursementInput carries a new reimbursement attempt
type CreateReimbursementInput struct {
	Description         string
	AmountApprovedCents *int64
	Response            *string
}

// ReimbursementUpdate lists the reimbursement fields to change; nil fields are left alone
type ReimbursementUpdate struct {
	Description         *string
	Response            *string
	AmountApprovedCents *int64
	Status              *string
	PaidAll             *bool
}

// FinanceService manages incidents, their reimbursements and payroll totals
type FinanceService interface {
	CreateIncident(ctx context.Context, actor entity.Actor, in CreateIncidentInput) (*entity.Incident, error)
	GetIncident(ctx context.Context, id int64) (*entity.Incident, error)
	ListIncidents(ctx context.Context, limit, offset int) ([]*entity.Incident, error)
	UpdateIncident(ctx context.Context, actor entity.Actor, id int64, upd IncidentUpdate) (*entity.Incident, error)
	DeleteIncident(ctx context.Context, actor entity.Actor, id int64, confirm bool) (bool, error)

	CreateReimbursement(ctx context.Context, actor entity.Actor, incidentID int64, in CreateReimbursementInput) (*entity.Reimbursement, error)
	GetReimbursement(ctx context.Context, id int64) (*entity.Reimbursement, error)
	ListReimbursements(ctx context.Context, incidentID int64) ([]*entity.Reimbursement, error)
	UpdateReimbursement(ctx context.Context, actor entity.Actor, id int64, upd ReimbursementUpdate) (*entity.Reimbursement, error)
	DeleteReimbursement(ctx context.Context, actor entity.Actor, id int64, confirm bool) (bool, error)

	CalculateTotalPayment(ctx context.Context, employeeID int64, start, end time.Time) (*PaymentSummary, error)
	MarkAddressed(ctx context.Context, actor entity.Actor, incidentIDs, reimbursementIDs []int64) (int, error)
}

type financeServiceImpl struct {
	incidentRepo      port.IncidentRepository
	reimbursementRepo port.ReimbursementRepository
	payrollRepo       port.PayrollRepository
	txManager         port.TransactionManager
	logger            Logger
	ptoHoursPerDay    float64
	opts              options
}

// NewFinanceService creates a new FinanceService. ptoHoursPerDay values of
// zero or less fall back to 8.
func NewFinanceService(
	incidentRepo port.IncidentRepository,
	reimbursementRepo port.ReimbursementRepository,
	payrollRepo port.PayrollRepository,
	txManager port.TransactionManager,
	logger Logger,
	ptoHoursPerDay float64,
	opts ...Option,
) FinanceService {
	if ptoHoursPerDay <= 0 {
		ptoHoursPerDay = 8
	}
	return &financeServiceImpl{
		incidentRepo:      incidentRepo,
		reimbursementRepo: reimbursementRepo,
		payrollRepo:       payrollRepo,
		txManager:         txManager,
		logger:            logger,
		ptoHoursPerDay:    ptoHoursPerDay,
		opts:              buildOptions(opts),
	}
}

func parseFinanceStatus(s string, fallback workflow.FinanceStatus) (workflow.FinanceStatus, error) {
	if strings.TrimSpace(s) == "" {
		return fallback, nil
	}
	st, err := workflow.ParseFinanceStatus(s)
	if err != nil {
		return "", fromWorkflow(err)
	}
	return st, nil
}

// CreateIncident records a new incident
func (s *financeServiceImpl) CreateIncident(ctx context.Context, actor entity.Actor, in CreateIncidentInput) (*entity.Incident, error) {
	if !actor.Valid() {
		return nil, invalid("actor is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, invalid("description is required")
	}
	if in.CostCents < 0 {
		return nil, invalid("cost must not be negative")
	}
	status, err := parseFinanceStatus(in.Status, workflow.FinanceOpen)
	if err != nil {
		return nil, err
	}
	date := in.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	now := time.Now().UTC()
	incident := &entity.Incident{
		EmployeeID:  in.EmployeeID,
		Description: in.Description,
		CostCents:   in.CostCents,
		Date:        date,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.incidentRepo.Create(ctx, incident); err != nil {
		s.logger.Error("Failed to create incident", "error", err, "employee_id", in.EmployeeID)
		return nil, fmt.Errorf("create incident: %w", err)
	}

	s.logger.Info("Incident created", "incident_id", incident.ID, "employee_id", incident.EmployeeID, "actor", actor.ID)
	return incident, nil
}

// GetIncident returns a non-deleted incident
func (s *financeServiceImpl) GetIncident(ctx context.Context, id int64) (*entity.Incident, error) {
	incident, err := s.incidentRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get incident", "error", err, "incident_id", id)
		return nil, err
	}
	if incident == nil || incident.Deleted {
		return nil, notFound("incident", id)
	}
	return incident, nil
}

// ListIncidents returns non-deleted incidents
func (s *financeServiceImpl) ListIncidents(ctx context.Context, limit, offset int) ([]*entity.Incident, error) {
	incidents, err := s.incidentRepo.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("Failed to list incidents", "error", err)
		return nil, err
	}
	return incidents, nil
}

// UpdateIncident changes an incident unless it is deleted or in a terminal status
func (s *financeServiceImpl) UpdateIncident(ctx context.Context, actor entity.Actor, id int64, upd IncidentUpdate) (*entity.Incident, error) {
	if !actor.Valid() {
		return nil, invalid("actor is required")
	}

	var (
		updated  *entity.Incident
		previous workflow.FinanceStatus
	)
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		incident, err := s.loadMutableIncident(txCtx, id)
		if err != nil {
			return err
		}
		previous = incident.Status

		if upd.Description != nil {
			if strings.TrimSpace(*upd.Description) == "" {
				return invalid("description must not be empty")
			}
			incident.Description = *upd.Description
		}
		if upd.CostCents != nil {
			if *upd.CostCents < 0 {
				return invalid("cost must not be negative")
			}
			incident.CostCents = *upd.CostCents
		}
		if upd.Date != nil {
			incident.Date = *upd.Date
		}
		if upd.PaidAll != nil {
			incident.PaidAll = *upd.PaidAll
		}
		if upd.Status != nil {
			next, err := nextFinanceStatus(incident.Status, *upd.Status)
			if err != nil {
				return err
			}
			incident.Status = next
		}
		incident.UpdatedAt = time.Now().UTC()

		if err := s.incidentRepo.Update(txCtx, incident); err != nil {
			return conflict("incident", id, err)
		}
		updated = incident
		return nil
	})
	if err != nil {
		s.opts.recorder.TransitionRejected(workflow.FinanceRules.Name(), ErrorReason(err))
		s.logger.Error("Failed to update incident", "error", err, "incident_id", id, "actor", actor.ID)
		return nil, err
	}

	if updated.Status != previous {
		s.opts.recorder.TransitionApplied(workflow.FinanceRules.Name(), string(previous), string(updated.Status))
	}
	s.logger.Info("Incident updated", "incident_id", id, "status", updated.Status, "actor", actor.ID)
	return updated, nil
}

// DeleteIncident soft-deletes an incident. Without confirm it changes nothing.
func (s *financeServiceImpl) DeleteIncident(ctx context.Context, actor entity.Actor, id int64, confirm bool) (bool, error) {
	if !confirm {
		return false, fmt.Errorf("%w: delete incident %d", ErrConfirmationRequired, id)
	}
	if !actor.Valid() {
		return false, invalid("actor is required")
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		incident, err := s.loadMutableIncident(txCtx, id)
		if err != nil {
			return err
		}
		if err := s.incidentRepo.SoftDelete(txCtx, id, incident.Version); err != nil {
			return conflict("incident", id, err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to delete incident", "error", err, "incident_id", id, "actor", actor.ID)
		return false, err
	}

	s.logger.Info("Incident deleted", "incident_id", id, "actor", actor.ID)
	return true, nil
}

func (s *financeServiceImpl) loadMutableIncident(ctx context.Context, id int64) (*entity.Incident, error) {
	incident, err := s.incidentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get incident: %w", err)
	}
	if incident == nil {
		return nil, notFound("incident", id)
	}
	if incident.Deleted {
		return nil, fmt.Errorf("%w: incident %d is deleted", ErrAlreadyProcessed, id)
	}
	if incident.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: incident %d is %s", ErrAlreadyProcessed, id, incident.Status)
	}
	return incident, nil
}

// CreateReimbursement opens a reimbursement against a live incident
func (s *financeServiceImpl) CreateReimbursement(ctx context.Context, actor entity.Actor, incidentID int64, in CreateReimbursementInput) (*entity.Reimbursement, error) {
	if !actor.Valid() {
		return nil, invalid("actor is required")
	}
	if in.AmountApprovedCents != nil && *in.AmountApprovedCents < 0 {
		return nil, invalid("approved amount must not be negative")
	}

	now := time.Now().UTC()
	r := &entity.Reimbursement{
		IncidentID:          incidentID,
		Description:         in.Description,
		AmountApprovedCents: in.AmountApprovedCents,
		Status:              workflow.FinancePending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if in.Response != nil {
		r.Response = *in.Response
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		incident, err := s.incidentRepo.GetByID(txCtx, incidentID)
		if err != nil {
			return fmt.Errorf("get incident: %w", err)
		}
		if incident == nil || incident.Deleted {
			return notFound("incident", incidentID)
		}
		if err := s.reimbursementRepo.Create(txCtx, r); err != nil {
			return fmt.Errorf("create reimbursement: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create reimbursement", "error", err, "incident_id", incidentID, "actor", actor.ID)
		return nil, err
	}

	s.logger.Info("Reimbursement created", "reimbursement_id", r.ID, "incident_id", incidentID, "actor", actor.ID)
	return r, nil
}

// GetReimbursement returns a non-deleted reimbursement
func (s *financeServiceImpl) GetReimbursement(ctx context.Context, id int64) (*entity.Reimbursement, error) {
	r, err := s.reimbursementRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get reimbursement", "error", err, "reimbursement_id", id)
		return nil, err
	}
	if r == nil || r.Deleted {
		return nil, notFound("reimbursement", id)
	}
	return r, nil
}

// ListReimbursements returns the non-deleted reimbursements of an incident
func (s *financeServiceImpl) ListReimbursements(ctx context.Context, incidentID int64) ([]*entity.Reimbursement, error) {
	list, err := s.reimbursementRepo.ListByIncidentID(ctx, incidentID)
	if err != nil {
		s.logger.Error("Failed to list reimbursements", "error", err, "incident_id", incidentID)
		return nil, err
	}
	return list, nil
}

// UpdateReimbursement changes a reimbursement unless it is deleted or in a terminal status
func (s *financeServiceImpl) UpdateReimbursement(ctx context.Context, actor entity.Actor, id int64, upd ReimbursementUpdate) (*entity.Reimbursement, error) {
	if !actor.Valid() {
		return nil, invalid("actor is required")
	}

	var (
		updated  *entity.Reimbursement
		previous workflow.FinanceStatus
	)
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		r, err := s.loadMutableReimbursement(txCtx, id)
		if err != nil {
			return err
		}
		previous = r.Status

		if upd.Description != nil {
			r.Description = *upd.Description
		}
		if upd.Response != nil {
			r.Response = *upd.Response
		}
		if upd.AmountApprovedCents != nil {
			if *upd.AmountApprovedCents < 0 {
				return invalid("approved amount must not be negative")
			}
			amount := *upd.AmountApprovedCents
			r.AmountApprovedCents = &amount
		}
		if upd.PaidAll != nil {
			r.PaidAll = *upd.PaidAll
		}
		if upd.Status != nil {
			next, err := nextFinanceStatus(r.Status, *upd.Status)
			if err != nil {
				return err
			}
			r.Status = next
		}
		r.UpdatedAt = time.Now().UTC()

		if err := s.reimbursementRepo.Update(txCtx, r); err != nil {
			return conflict("reimbursement", id, err)
		}
		updated = r
		return nil
	})
	if err != nil {
		s.opts.recorder.TransitionRejected(workflow.FinanceRules.Name(), ErrorReason(err))
		s.logger.Error("Failed to update reimbursement", "error", err, "reimbursement_id", id, "actor", actor.ID)
		return nil, err
	}

	if updated.Status != previous {
		s.opts.recorder.TransitionApplied(workflow.FinanceRules.Name(), string(previous), string(updated.Status))
	}
	s.logger.Info("Reimbursement updated", "reimbursement_id", id, "status", updated.Status, "actor", actor.ID)
	return updated, nil
}

// DeleteReimbursement soft-deletes a reimbursement. Without confirm it changes nothing.
func (s *financeServiceImpl) DeleteReimbursement(ctx context.Context, actor entity.Actor, id int64, confirm bool) (bool, error) {
	if !confirm {
		return false, fmt.Errorf("%w: delete reimbursement %d", ErrConfirmationRequired, id)
	}
	if !actor.Valid() {
		return false, invalid("actor is required")
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		r, err := s.loadMutableReimbursement(txCtx, id)
		if err != nil {
			return err
		}
		if err := s.reimbursementRepo.SoftDelete(txCtx, id, r.Version); err != nil {
			return conflict("reimbursement", id, err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to delete reimbursement", "error", err, "reimbursement_id", id, "actor", actor.ID)
		return false, err
	}

	s.logger.Info("Reimbursement deleted", "reimbursement_id", id, "actor", actor.ID)
	return true, nil
}

func (s *financeServiceImpl) loadMutableReimbursement(ctx context.Context, id int64) (*entity.Reimbursement, error) {
	r, err := s.reimbursementRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get reimbursement: %w", err)
	}
	if r == nil {
		return nil, notFound("reimbursement", id)
	}
	if r.Deleted {
		return nil, fmt.Errorf("%w: reimbursement %d is deleted", ErrAlreadyProcessed, id)
	}
	if r.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: reimbursement %d is %s", ErrAlreadyProcessed, id, r.Status)
	}
	return r, nil
}

func nextFinanceStatus(current workflow.FinanceStatus, requested string) (workflow.FinanceStatus, error) {
	next, err := parseFinanceStatus(requested, current)
	if err != nil {
		return "", err
	}
	if next == current {
		return current, nil
	}
	if err := workflow.FinanceRules.Validate(current, next); err != nil {
		return "", err
	}
	return next, nil
}

// MarkAddressed flags incidents and reimbursements as addressed. It is the
// explicit follow-up to CalculateTotalPayment, which never writes.
func (s *financeServiceImpl) MarkAddressed(ctx context.Context, actor entity.Actor, incidentIDs, reimbursementIDs []int64) (int, error) {
	if !actor.Valid() {
		return 0, invalid("actor is required")
	}

	changed := 0
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, id := range incidentIDs {
			ok, err := s.incidentRepo.MarkAddressed(txCtx, id)
			if err != nil {
				return fmt.Errorf("mark incident %d addressed: %w", id, err)
			}
			if ok {
				changed++
			}
		}
		for _, id := range reimbursementIDs {
			ok, err := s.reimbursementRepo.MarkAddressed(txCtx, id)
			if err != nil {
				return fmt.Errorf("mark reimbursement %d addressed: %w", id, err)
			}
			if ok {
				changed++
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to mark rows addressed", "error", err, "actor", actor.ID)
		return 0, err
	}

	s.logger.Info("Rows marked addressed", "changed", changed, "actor", actor.ID)
	return changed, nil
}
