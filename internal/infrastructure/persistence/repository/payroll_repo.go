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
)

// PayrollRepository implements port.PayrollRepository
type PayrollRepository struct {
	base
}

// NewPayrollRepository creates a new payroll repository
func NewPayrollRepository(db *sql.DB, logger *zap.Logger) port.PayrollRepository {
	return &PayrollRepository{base{db: db, logger: logger}}
}

// GetEmployee retrieves an employee's pay rate
func (r *PayrollRepository) GetEmployee(ctx context.Context, id int64) (*entity.Employee, error) {
	query := `SELECT id, name, email, hourly_rate_cents FROM employees WHERE id = ?`

	var e entity.Employee
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, id).Scan(&e.ID, &e.Name, &e.Email, &e.HourlyRateCents)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get employee by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return &e, nil
}

// ListShifts returns live shifts starting inside [start, end)
func (r *PayrollRepository) ListShifts(ctx context.Context, employeeID int64, start, end time.Time) ([]*entity.Shift, error) {
	query := `
		SELECT id, employee_id, start_time, end_time, deleted
		FROM shifts
		WHERE employee_id = ? AND deleted = 0 AND start_time >= ? AND start_time < ?
		ORDER BY start_time
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, employeeID, start, end)
	if err != nil {
		r.logger.Error("Failed to list shifts", zap.Int64("employee_id", employeeID), zap.Error(err))
		return nil, fmt.Errorf("failed to list shifts: %w", err)
	}
	return collect(rows, func(s rowScanner) (*entity.Shift, error) {
		var sh entity.Shift
		if err := s.Scan(&sh.ID, &sh.EmployeeID, &sh.StartTime, &sh.EndTime, &sh.Deleted); err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		return &sh, nil
	})
}

// ListPTO returns PTO requests overlapping [start, end] in any status
func (r *PayrollRepository) ListPTO(ctx context.Context, employeeID int64, start, end time.Time) ([]*entity.PTO, error) {
	query := `
		SELECT id, employee_id, start_date, end_date, status
		FROM pto
		WHERE employee_id = ? AND start_date <= ? AND end_date >= ?
		ORDER BY start_date
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, employeeID, end, start)
	if err != nil {
		r.logger.Error("Failed to list PTO", zap.Int64("employee_id", employeeID), zap.Error(err))
		return nil, fmt.Errorf("failed to list pto: %w", err)
	}
	return collect(rows, func(s rowScanner) (*entity.PTO, error) {
		var p entity.PTO
		if err := s.Scan(&p.ID, &p.EmployeeID, &p.StartDate, &p.EndDate, &p.Status); err != nil {
			return nil, fmt.Errorf("failed to scan pto: %w", err)
		}
		return &p, nil
	})
}

// ListBonuses returns bonuses paid inside [start, end)
func (r *PayrollRepository) ListBonuses(ctx context.Context, employeeID int64, start, end time.Time) ([]*entity.Bonus, error) {
	query := `
		SELECT id, employee_id, amount_cents, paid_on
		FROM bonuses
		WHERE employee_id = ? AND paid_on >= ? AND paid_on < ?
		ORDER BY paid_on
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, employeeID, start, end)
	if err != nil {
		r.logger.Error("Failed to list bonuses", zap.Int64("employee_id", employeeID), zap.Error(err))
		return nil, fmt.Errorf("failed to list bonuses: %w", err)
	}
	return collect(rows, func(s rowScanner) (*entity.Bonus, error) {
		var b entity.Bonus
		if err := s.Scan(&b.ID, &b.EmployeeID, &b.AmountCents, &b.PaidOn); err != nil {
			return nil, fmt.Errorf("failed to scan bonus: %w", err)
		}
		return &b, nil
	})
}

var _ port.PayrollRepository = (*PayrollRepository)(nil)
