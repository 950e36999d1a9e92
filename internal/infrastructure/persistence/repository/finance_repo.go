package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/order-resolution/internal/application/port"
	"github.com/garyjia/order-resolution/internal/domain/entity"
	"github.com/garyjia/order-resolution/internal/domain/workflow"
)

// IncidentRepository implements port.IncidentRepository
type IncidentRepository struct {
	base
}

// NewIncidentRepository creates a new incident repository
func NewIncidentRepository(db *sql.DB, logger *zap.Logger) port.IncidentRepository {
	return &IncidentRepository{base{db: db, logger: logger}}
}

const incidentColumns = `id, employee_id, description, cost_cents, date, status,
	status_addressed, paid_all, deleted, version, created_at, updated_at`

func scanIncident(s rowScanner) (*entity.Incident, error) {
	var i entity.Incident
	err := s.Scan(
		&i.ID,
		&i.EmployeeID,
		&i.Description,
		&i.CostCents,
		&i.Date,
		&i.Status,
		&i.StatusAddressed,
		&i.PaidAll,
		&i.Deleted,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

// Create inserts an incident
func (r *IncidentRepository) Create(ctx context.Context, incident *entity.Incident) error {
	query := `
		INSERT INTO incidents (
			employee_id, description, cost_cents, date, status,
			status_addressed, paid_all, deleted, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)
	`

	now := time.Now().UTC()
	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = now
	}
	incident.UpdatedAt = now
	if incident.Status == "" {
		incident.Status = workflow.FinanceOpen
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		incident.EmployeeID,
		incident.Description,
		incident.CostCents,
		incident.Date,
		incident.Status,
		incident.StatusAddressed,
		incident.PaidAll,
		incident.CreatedAt,
		incident.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create incident", zap.Int64("employee_id", incident.EmployeeID), zap.Error(err))
		return fmt.Errorf("failed to create incident: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	incident.ID = id
	incident.Version = 0
	return nil
}

// GetByID retrieves an incident by ID, including soft-deleted rows
func (r *IncidentRepository) GetByID(ctx context.Context, id int64) (*entity.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = ?`

	incident, err := scanIncident(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get incident by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}
	return incident, nil
}

// List returns non-deleted incidents, newest first
func (r *IncidentRepository) List(ctx context.Context, limit, offset int) ([]*entity.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE deleted = 0 ORDER BY date DESC, id DESC LIMIT ? OFFSET ?`

	limit, offset = clampPage(limit, offset)
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list incidents", zap.Error(err))
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	return collect(rows, scanIncident)
}

// Update writes the mutable fields when incident.Version still matches a live row
func (r *IncidentRepository) Update(ctx context.Context, incident *entity.Incident) error {
	query := `
		UPDATE incidents
		SET description = ?, cost_cents = ?, date = ?, status = ?,
			status_addressed = ?, paid_all = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ? AND deleted = 0
	`

	incident.UpdatedAt = time.Now().UTC()
	err := versionedResult(r.getExecutor(ctx).ExecContext(ctx, query,
		incident.Description,
		incident.CostCents,
		incident.Date,
		incident.Status,
		incident.StatusAddressed,
		incident.PaidAll,
		incident.UpdatedAt,
		incident.ID,
		incident.Version,
	))
	if errors.Is(err, port.ErrStaleVersion) {
		return err
	}
	if err != nil {
		r.logger.Error("Failed to update incident", zap.Int64("id", incident.ID), zap.Error(err))
		return fmt.Errorf("failed to update incident: %w", err)
	}
	incident.Version++
	return nil
}

// SoftDelete flags the incident as deleted
func (r *IncidentRepository) SoftDelete(ctx context.Context, id, expectedVersion int64) error {
	query := `
		UPDATE incidents
		SET deleted = 1, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ? AND deleted = 0
	`

	err := versionedResult(r.getExecutor(ctx).ExecContext(ctx, query, time.Now().UTC(), id, expectedVersion))
	if errors.Is(err, port.ErrStaleVersion) {
		return err
	}
	if err != nil {
		r.logger.Error("Failed to delete incident", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete incident: %w", err)
	}
	return nil
}

// ListUnpaid returns the employee's live incidents dated on or before until
// that are not fully paid
func (r *IncidentRepository) ListUnpaid(ctx context.Context, employeeID int64, until time.Time) ([]*entity.Incident, error) {
	query := `
		SELECT ` + incidentColumns + `
		FROM incidents
		WHERE employee_id = ? AND deleted = 0 AND paid_all = 0 AND date <= ?
		ORDER BY date, id
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, employeeID, until)
	if err != nil {
		r.logger.Error("Failed to list unpaid incidents", zap.Int64("employee_id", employeeID), zap.Error(err))
		return nil, fmt.Errorf("failed to list unpaid incidents: %w", err)
	}
	return collect(rows, scanIncident)
}

// MarkAddressed sets status_addressed on a live incident. It reports false
// when the row is missing, deleted or already addressed.
func (r *IncidentRepository) MarkAddressed(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE incidents
		SET status_addressed = 1, version = version + 1, updated_at = ?
		WHERE id = ? AND deleted = 0 AND status_addressed = 0
	`

	res, err := r.getExecutor(ctx).ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to mark incident addressed", zap.Int64("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to mark incident addressed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// ReimbursementRepository implements port.ReimbursementRepository
type ReimbursementRepository struct {
	base
}

// NewReimbursementRepository creates a new reimbursement repository
func NewReimbursementRepository(db *sql.DB, logger *zap.Logger) port.ReimbursementRepository {
	return &ReimbursementRepository{base{db: db, logger: logger}}
}

const reimbursementColumns = `r.id, r.incident_id, r.description, r.response, r.amount_approved_cents,
	r.status, r.status_addressed, r.paid_all, r.deleted, r.version, r.created_at, r.updated_at`

func scanReimbursement(s rowScanner) (*entity.Reimbursement, error) {
	var (
		rb     entity.Reimbursement
		amount sql.NullInt64
	)
	err := s.Scan(
		&rb.ID,
		&rb.IncidentID,
		&rb.Description,
		&rb.Response,
		&amount,
		&rb.Status,
		&rb.StatusAddressed,
		&rb.PaidAll,
		&rb.Deleted,
		&rb.Version,
		&rb.CreatedAt,
		&rb.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if amount.Valid {
		v := amount.Int64
		rb.AmountApprovedCents = &v
	}
	return &rb, nil
}

func nullableCents(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// Create inserts a reimbursement
func (r *ReimbursementRepository) Create(ctx context.Context, rb *entity.Reimbursement) error {
	query := `
		INSERT INTO reimbursements (
			incident_id, description, response, amount_approved_cents, status,
			status_addressed, paid_all, deleted, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)
	`

	now := time.Now().UTC()
	if rb.CreatedAt.IsZero() {
		rb.CreatedAt = now
	}
	rb.UpdatedAt = now
	if rb.Status == "" {
		rb.Status = workflow.FinancePending
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		rb.IncidentID,
		rb.Description,
		rb.Response,
		nullableCents(rb.AmountApprovedCents),
		rb.Status,
		rb.StatusAddressed,
		rb.PaidAll,
		rb.CreatedAt,
		rb.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create reimbursement", zap.Int64("incident_id", rb.IncidentID), zap.Error(err))
		return fmt.Errorf("failed to create reimbursement: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	rb.ID = id
	rb.Version = 0
	return nil
}

// GetByID retrieves a reimbursement by ID, including soft-deleted rows
func (r *ReimbursementRepository) GetByID(ctx context.Context, id int64) (*entity.Reimbursement, error) {
	query := `SELECT ` + reimbursementColumns + ` FROM reimbursements r WHERE r.id = ?`

	rb, err := scanReimbursement(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get reimbursement by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get reimbursement: %w", err)
	}
	return rb, nil
}

// ListByIncidentID returns the live reimbursements of an incident
func (r *ReimbursementRepository) ListByIncidentID(ctx context.Context, incidentID int64) ([]*entity.Reimbursement, error) {
	query := `SELECT ` + reimbursementColumns + ` FROM reimbursements r WHERE r.incident_id = ? AND r.deleted = 0 ORDER BY r.id`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, incidentID)
	if err != nil {
		r.logger.Error("Failed to list reimbursements", zap.Int64("incident_id", incidentID), zap.Error(err))
		return nil, fmt.Errorf("failed to list reimbursements: %w", err)
	}
	return collect(rows, scanReimbursement)
}

// ListByEmployee returns live reimbursements attached to the employee's live
// incidents dated on or before until
func (r *ReimbursementRepository) ListByEmployee(ctx context.Context, employeeID int64, until time.Time) ([]*entity.Reimbursement, error) {
	query := `
		SELECT ` + reimbursementColumns + `
		FROM reimbursements r
		JOIN incidents i ON i.id = r.incident_id
		WHERE i.employee_id = ? AND i.deleted = 0 AND i.date <= ? AND r.deleted = 0
		ORDER BY r.id
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, employeeID, until)
	if err != nil {
		r.logger.Error("Failed to list employee reimbursements", zap.Int64("employee_id", employeeID), zap.Error(err))
		return nil, fmt.Errorf("failed to list employee reimbursements: %w", err)
	}
	return collect(rows, scanReimbursement)
}

// Update writes the mutable fields when rb.Version still matches a live row
func (r *ReimbursementRepository) Update(ctx context.Context, rb *entity.Reimbursement) error {
	query := `
		UPDATE reimbursements
		SET description = ?, response = ?, amount_approved_cents = ?, status = ?,
			status_addressed = ?, paid_all = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ? AND deleted = 0
	`

	rb.UpdatedAt = time.Now().UTC()
	err := versionedResult(r.getExecutor(ctx).ExecContext(ctx, query,
		rb.Description,
		rb.Response,
		nullableCents(rb.AmountApprovedCents),
		rb.Status,
		rb.StatusAddressed,
		rb.PaidAll,
		rb.UpdatedAt,
		rb.ID,
		rb.Version,
	))
	if errors.Is(err, port.ErrStaleVersion) {
		return err
	}
	if err != nil {
		r.logger.Error("Failed to update reimbursement", zap.Int64("id", rb.ID), zap.Error(err))
		return fmt.Errorf("failed to update reimbursement: %w", err)
	}
	rb.Version++
	return nil
}

// SoftDelete flags the reimbursement as deleted
func (r *ReimbursementRepository) SoftDelete(ctx context.Context, id, expectedVersion int64) error {
	query := `
		UPDATE reimbursements
		SET deleted = 1, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ? AND deleted = 0
	`

	err := versionedResult(r.getExecutor(ctx).ExecContext(ctx, query, time.Now().UTC(), id, expectedVersion))
	if errors.Is(err, port.ErrStaleVersion) {
		return err
	}
	if err != nil {
		r.logger.Error("Failed to delete reimbursement", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete reimbursement: %w", err)
	}
	return nil
}

// MarkAddressed sets status_addressed on a live reimbursement
func (r *ReimbursementRepository) MarkAddressed(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE reimbursements
		SET status_addressed = 1, version = version + 1, updated_at = ?
		WHERE id = ? AND deleted = 0 AND status_addressed = 0
	`

	res, err := r.getExecutor(ctx).ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to mark reimbursement addressed", zap.Int64("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to mark reimbursement addressed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

var (
	_ port.IncidentRepository      = (*IncidentRepository)(nil)
	_ port.ReimbursementRepository = (*ReimbursementRepository)(nil)
)
