package service

import (
	"context"
	"fmt"
	"math"
	"time"
)

// PaymentSummary is the breakdown of an employee's payment for a period
type PaymentSummary struct {
	EmployeeID      int64     `json:"employee_id"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	HourlyRateCents int64     `json:"hourly_rate_cents"`
	HoursWorked     float64   `json:"hours_worked"`
	PTOHours        float64   `json:"pto_hours"`

	WagesCents                    int64 `json:"wages_cents"`
	PTOCents                      int64 `json:"pto_cents"`
	BonusCents                    int64 `json:"bonus_cents"`
	UnpaidIncidentCents           int64 `json:"unpaid_incident_cents"`
	OutstandingReimbursementCents int64 `json:"outstanding_reimbursement_cents"`
	AddressedReimbursementCents   int64 `json:"addressed_reimbursement_cents"`
	TotalCents                    int64 `json:"total_cents"`

	// Rows counted in this total that are not yet marked addressed
	UnaddressedIncidentIDs      []int64 `json:"unaddressed_incident_ids"`
	UnaddressedReimbursementIDs []int64 `json:"unaddressed_reimbursement_ids"`
}

// CalculateTotalPayment aggregates pay for the calendar days start through
// end, both whole days included. It only reads.
func (s *financeServiceImpl) CalculateTotalPayment(ctx context.Context, employeeID int64, start, end time.Time) (*PaymentSummary, error) {
	if end.Before(start) {
		return nil, invalid("period end %s is before start %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	from := dateOnly(start)
	until := dateOnly(end).AddDate(0, 0, 1)

	employee, err := s.payrollRepo.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("get employee: %w", err)
	}
	if employee == nil {
		return nil, notFound("employee", employeeID)
	}

	shifts, err := s.payrollRepo.ListShifts(ctx, employeeID, from, until)
	if err != nil {
		return nil, fmt.Errorf("list shifts: %w", err)
	}
	ptos, err := s.payrollRepo.ListPTO(ctx, employeeID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list pto: %w", err)
	}
	bonuses, err := s.payrollRepo.ListBonuses(ctx, employeeID, from, until)
	if err != nil {
		return nil, fmt.Errorf("list bonuses: %w", err)
	}
	incidents, err := s.incidentRepo.ListUnpaid(ctx, employeeID, end)
	if err != nil {
		return nil, fmt.Errorf("list unpaid incidents: %w", err)
	}
	reimbursements, err := s.reimbursementRepo.ListByEmployee(ctx, employeeID, end)
	if err != nil {
		return nil, fmt.Errorf("list reimbursements: %w", err)
	}

	sum := &PaymentSummary{
		EmployeeID:                  employeeID,
		Start:                       start,
		End:                         end,
		HourlyRateCents:             employee.HourlyRateCents,
		UnaddressedIncidentIDs:      []int64{},
		UnaddressedReimbursementIDs: []int64{},
	}

	for _, shift := range shifts {
		if shift.Deleted || !inPeriod(shift.StartTime, from, until) {
			continue
		}
		sum.HoursWorked += shift.Hours()
	}
	for _, pto := range ptos {
		if !pto.Counts() {
			continue
		}
		sum.PTOHours += float64(overlapDays(pto.StartDate, pto.EndDate, start, end)) * s.ptoHoursPerDay
	}
	for _, bonus := range bonuses {
		if !inPeriod(bonus.PaidOn, from, until) {
			continue
		}
		sum.BonusCents += bonus.AmountCents
	}

	for _, incident := range incidents {
		if incident.Deleted || incident.PaidAll || !incident.Date.Before(until) {
			continue
		}
		sum.UnpaidIncidentCents += incident.CostCents
		if !incident.StatusAddressed {
			sum.UnaddressedIncidentIDs = append(sum.UnaddressedIncidentIDs, incident.ID)
		}
	}
	for _, r := range reimbursements {
		if r.Deleted {
			continue
		}
		switch {
		case r.StatusAddressed:
			sum.AddressedReimbursementCents += r.ApprovedCents()
		case !r.PaidAll:
			sum.OutstandingReimbursementCents += r.ApprovedCents()
			sum.UnaddressedReimbursementIDs = append(sum.UnaddressedReimbursementIDs, r.ID)
		}
	}

	sum.WagesCents = centsFor(sum.HoursWorked, employee.HourlyRateCents)
	sum.PTOCents = centsFor(sum.PTOHours, employee.HourlyRateCents)
	sum.TotalCents = sum.WagesCents +
		sum.PTOCents +
		sum.BonusCents -
		sum.UnpaidIncidentCents -
		sum.OutstandingReimbursementCents +
		sum.AddressedReimbursementCents

	return sum, nil
}

func centsFor(hours float64, rateCents int64) int64 {
	return int64(math.Round(hours * float64(rateCents)))
}

// overlapDays counts the calendar days shared by [a1, a2] and [b1, b2], inclusive
func overlapDays(a1, a2, b1, b2 time.Time) int {
	from := laterOf(dateOnly(a1), dateOnly(b1))
	to := earlierOf(dateOnly(a2), dateOnly(b2))
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours()/24) + 1
}

// inPeriod reports whether t falls in the half-open range [from, until)
func inPeriod(t, from, until time.Time) bool {
	return !t.Before(from) && t.Before(until)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlierOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
