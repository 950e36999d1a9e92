package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/order-resolution/internal/application/port"
	"github.com/garyjia/order-resolution/internal/domain/entity"
	"github.com/garyjia/order-resolution/internal/domain/workflow"
)

type financeFixture struct {
	incidents      *fakeIncidentRepo
	reimbursements *fakeReimbursementRepo
	payroll        *fakePayrollRepo
	recorder       *recordingRecorder
	svc            FinanceService
}

func newFinanceFixture(incidents []*entity.Incident, reimbursements []*entity.Reimbursement) *financeFixture {
	f := &financeFixture{
		incidents: newFakeIncidentRepo(incidents...),
		payroll:   &fakePayrollRepo{employees: map[int64]*entity.Employee{}},
		recorder:  &recordingRecorder{},
	}
	f.reimbursements = newFakeReimbursementRepo(f.incidents, reimbursements...)
	f.svc = NewFinanceService(f.incidents, f.reimbursements, f.payroll, &mockTxManager{}, &mockLogger{}, 0, WithRecorder(f.recorder))
	return f
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFinanceService_TerminalIncidentIsImmutable(t *testing.T) {
	for _, status := range []workflow.FinanceStatus{"approved", "APPROVED", "Settled", "finance_approved"} {
		t.Run(string(status), func(t *testing.T) {
			f := newFinanceFixture([]*entity.Incident{
				{ID: 3, EmployeeID: 1, Description: "broken laptop", CostCents: 10000, Status: status},
			}, nil)

			_, err := f.svc.UpdateIncident(context.Background(), testActor, 3, IncidentUpdate{CostCents: int64Ptr(20000)})
			assert.ErrorIs(t, err, ErrAlreadyProcessed)
			assert.Equal(t, int64(10000), f.incidents.get(3).CostCents)
			assert.Zero(t, f.incidents.writes)

			deleted, err := f.svc.DeleteIncident(context.Background(), testActor, 3, true)
			assert.ErrorIs(t, err, ErrAlreadyProcessed)
			assert.False(t, deleted)
			assert.False(t, f.incidents.get(3).Deleted)
		})
	}
}

func TestFinanceService_UpdateIncident(t *testing.T) {
	f := newFinanceFixture([]*entity.Incident{
		{ID: 3, EmployeeID: 1, Description: "broken laptop", CostCents: 10000, Status: workflow.FinanceOpen},
	}, nil)

	incident, err := f.svc.UpdateIncident(context.Background(), testActor, 3, IncidentUpdate{
		CostCents: int64Ptr(20000),
		Status:    strPtr("Awaiting_Finance_Review"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(20000), incident.CostCents)
	assert.Equal(t, workflow.FinanceAwaitingFinanceReview, incident.Status)
	assert.Equal(t, []string{"finance:open->awaiting_finance_review"}, f.recorder.applied)

	incident, err = f.svc.UpdateIncident(context.Background(), testActor, 3, IncidentUpdate{Status: strPtr("approved")})
	require.NoError(t, err)
	assert.Equal(t, workflow.FinanceApproved, incident.Status)

	_, err = f.svc.UpdateIncident(context.Background(), testActor, 3, IncidentUpdate{Status: strPtr("open")})
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestFinanceService_UpdateIncidentStaleWriteRecordsNoTransition(t *testing.T) {
	f := newFinanceFixture([]*entity.Incident{
		{ID: 3, EmployeeID: 1, Description: "broken laptop", CostCents: 10000, Status: workflow.FinanceOpen},
	}, nil)
	f.incidents.updateErr = port.ErrStaleVersion

	_, err := f.svc.UpdateIncident(context.Background(), testActor, 3, IncidentUpdate{Status: strPtr("awaiting_finance_review")})
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.Empty(t, f.recorder.applied)
	assert.Len(t, f.recorder.rejected, 1)
	assert.Equal(t, workflow.FinanceOpen, f.incidents.get(3).Status)
}

func TestFinanceService_UpdateIncidentRejections(t *testing.T) {
	tests := []struct {
		name    string
		id      int64
		actor   entity.Actor
		upd     IncidentUpdate
		wantErr error
	}{
		{"missing", 99, testActor, IncidentUpdate{}, ErrNotFound},
		{"deleted", 4, testActor, IncidentUpdate{CostCents: int64Ptr(1)}, ErrAlreadyProcessed},
		{"unknown status", 3, testActor, IncidentUpdate{Status: strPtr("archived")}, ErrValidation},
		{"negative cost", 3, testActor, IncidentUpdate{CostCents: int64Ptr(-5)}, ErrValidation},
		{"no actor", 3, entity.Actor{}, IncidentUpdate{}, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFinanceFixture([]*entity.Incident{
				{ID: 3, EmployeeID: 1, Description: "a", CostCents: 100, Status: workflow.FinanceOpen},
				{ID: 4, EmployeeID: 1, Description: "b", CostCents: 100, Status: workflow.FinanceOpen, Deleted: true},
			}, nil)

			_, err := f.svc.UpdateIncident(context.Background(), tt.actor, tt.id, tt.upd)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, f.incidents.writes)
		})
	}
}

func TestFinanceService_DeleteReimbursementRequiresConfirm(t *testing.T) {
	incidents := []*entity.Incident{{ID: 1, EmployeeID: 1, Description: "a", Status: workflow.FinanceOpen}}
	f := newFinanceFixture(incidents, []*entity.Reimbursement{
		{ID: 4, IncidentID: 1, Status: workflow.FinancePending},
	})

	deleted, err := f.svc.DeleteReimbursement(context.Background(), testActor, 4, false)
	assert.ErrorIs(t, err, ErrConfirmationRequired)
	assert.False(t, deleted)
	assert.False(t, f.reimbursements.get(4).Deleted)

	deleted, err = f.svc.DeleteReimbursement(context.Background(), testActor, 4, true)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.True(t, f.reimbursements.get(4).Deleted)

	_, err = f.svc.GetReimbursement(context.Background(), 4)
	assert.ErrorIs(t, err, ErrNotFound)

	deleted, err = f.svc.DeleteReimbursement(context.Background(), testActor, 4, true)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	assert.False(t, deleted)
}

func TestFinanceService_IncidentLifecycle(t *testing.T) {
	f := newFinanceFixture(nil, nil)

	incident, err := f.svc.CreateIncident(context.Background(), testActor, CreateIncidentInput{
		EmployeeID:  7,
		Description: "damaged forklift",
		CostCents:   4500,
		Date:        day(2026, 3, 2),
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.FinanceOpen, incident.Status)

	r, err := f.svc.CreateReimbursement(context.Background(), testActor, incident.ID, CreateReimbursementInput{
		Description:         "insurance claim",
		AmountApprovedCents: int64Ptr(3000),
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.FinancePending, r.Status)

	r, err = f.svc.UpdateReimbursement(context.Background(), testActor, r.ID, ReimbursementUpdate{
		Response: strPtr("claim accepted"),
		Status:   strPtr("SETTLED"),
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.FinanceSettled, r.Status)

	_, err = f.svc.UpdateReimbursement(context.Background(), testActor, r.ID, ReimbursementUpdate{Response: strPtr("reopened")})
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	list, err := f.svc.ListReimbursements(context.Background(), incident.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "claim accepted", list[0].Response)

	deleted, err := f.svc.DeleteIncident(context.Background(), testActor, incident.ID, false)
	assert.ErrorIs(t, err, ErrConfirmationRequired)
	assert.False(t, deleted)

	deleted, err = f.svc.DeleteIncident(context.Background(), testActor, incident.ID, true)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = f.svc.GetIncident(context.Background(), incident.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.CreateReimbursement(context.Background(), testActor, incident.ID, CreateReimbursementInput{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFinanceService_CreateIncidentValidation(t *testing.T) {
	f := newFinanceFixture(nil, nil)

	_, err := f.svc.CreateIncident(context.Background(), testActor, CreateIncidentInput{EmployeeID: 1})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.CreateIncident(context.Background(), testActor, CreateIncidentInput{EmployeeID: 1, Description: "x", Status: "bogus"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.CreateIncident(context.Background(), testActor, CreateIncidentInput{EmployeeID: 1, Description: "x", CostCents: -1})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestFinanceService_CalculateTotalPayment(t *testing.T) {
	start, end := day(2026, 3, 1), day(2026, 3, 15)

	f := newFinanceFixture([]*entity.Incident{
		{ID: 1, EmployeeID: 7, Description: "dent", CostCents: 5000, Date: day(2026, 3, 4), Status: workflow.FinanceOpen},
		{ID: 2, EmployeeID: 7, Description: "paid", CostCents: 9000, Date: day(2026, 3, 4), Status: workflow.FinanceOpen, PaidAll: true},
		{ID: 3, EmployeeID: 7, Description: "later", CostCents: 9000, Date: day(2026, 4, 1), Status: workflow.FinanceOpen},
		{ID: 4, EmployeeID: 8, Description: "other", CostCents: 9000, Date: day(2026, 3, 4), Status: workflow.FinanceOpen},
	}, []*entity.Reimbursement{
		{ID: 10, IncidentID: 1, AmountApprovedCents: int64Ptr(2000), Status: workflow.FinancePending},
		{ID: 11, IncidentID: 2, AmountApprovedCents: int64Ptr(1500), Status: workflow.FinancePending, StatusAddressed: true},
		{ID: 12, IncidentID: 2, AmountApprovedCents: int64Ptr(700), Status: workflow.FinancePending, PaidAll: true},
	})
	f.payroll.employees[7] = &entity.Employee{ID: 7, HourlyRateCents: 2000}
	f.payroll.shifts = []*entity.Shift{
		{StartTime: day(2026, 3, 2).Add(9 * time.Hour), EndTime: day(2026, 3, 2).Add(17 * time.Hour)},
		{StartTime: day(2026, 3, 3).Add(9 * time.Hour), EndTime: day(2026, 3, 3).Add(13 * time.Hour)},
		{StartTime: day(2026, 2, 28).Add(9 * time.Hour), EndTime: day(2026, 2, 28).Add(17 * time.Hour)},
		{StartTime: day(2026, 3, 5).Add(9 * time.Hour), EndTime: day(2026, 3, 5).Add(17 * time.Hour), Deleted: true},
	}
	f.payroll.ptos = []*entity.PTO{
		{StartDate: day(2026, 2, 27), EndDate: day(2026, 3, 2), Status: entity.PTOApproved},
		{StartDate: day(2026, 3, 10), EndDate: day(2026, 3, 10), Status: entity.PTORequested},
	}
	f.payroll.bonuses = []*entity.Bonus{
		{AmountCents: 10000, PaidOn: day(2026, 3, 10)},
		{AmountCents: 50000, PaidOn: day(2026, 4, 10)},
	}

	sum, err := f.svc.CalculateTotalPayment(context.Background(), 7, start, end)
	require.NoError(t, err)

	assert.Equal(t, 12.0, sum.HoursWorked)
	assert.Equal(t, 16.0, sum.PTOHours)
	assert.Equal(t, int64(24000), sum.WagesCents)
	assert.Equal(t, int64(32000), sum.PTOCents)
	assert.Equal(t, int64(10000), sum.BonusCents)
	assert.Equal(t, int64(5000), sum.UnpaidIncidentCents)
	assert.Equal(t, int64(2000), sum.OutstandingReimbursementCents)
	assert.Equal(t, int64(1500), sum.AddressedReimbursementCents)
	assert.Equal(t, int64(24000+32000+10000-5000-2000+1500), sum.TotalCents)
	assert.Equal(t, []int64{1}, sum.UnaddressedIncidentIDs)
	assert.Equal(t, []int64{10}, sum.UnaddressedReimbursementIDs)

	assert.False(t, f.incidents.get(1).StatusAddressed)
	assert.Zero(t, f.incidents.writes)
	assert.Zero(t, f.reimbursements.writes)
}

func TestFinanceService_CalculateTotalPayment_EndDayIsPaid(t *testing.T) {
	start, end := day(2026, 3, 1), day(2026, 3, 15)
	last := day(2026, 3, 15)

	f := newFinanceFixture(nil, nil)
	f.payroll.employees[7] = &entity.Employee{ID: 7, HourlyRateCents: 1000}
	f.payroll.shifts = []*entity.Shift{
		{StartTime: last.Add(9 * time.Hour), EndTime: last.Add(17 * time.Hour)},
		{StartTime: day(2026, 3, 16), EndTime: day(2026, 3, 16).Add(2 * time.Hour)},
	}
	f.payroll.ptos = []*entity.PTO{
		{StartDate: last, EndDate: last, Status: entity.PTOApproved},
	}
	f.payroll.bonuses = []*entity.Bonus{
		{AmountCents: 2500, PaidOn: last.Add(12 * time.Hour)},
		{AmountCents: 9900, PaidOn: day(2026, 3, 16)},
	}

	sum, err := f.svc.CalculateTotalPayment(context.Background(), 7, start, end)
	require.NoError(t, err)

	assert.Equal(t, 8.0, sum.HoursWorked)
	assert.Equal(t, 8.0, sum.PTOHours)
	assert.Equal(t, int64(2500), sum.BonusCents)
	assert.Equal(t, day(2026, 3, 1), f.payroll.lastStart)
	assert.Equal(t, day(2026, 3, 16), f.payroll.lastEnd)
}

func TestFinanceService_CalculateTotalPaymentErrors(t *testing.T) {
	f := newFinanceFixture(nil, nil)

	_, err := f.svc.CalculateTotalPayment(context.Background(), 7, day(2026, 3, 1), day(2026, 3, 15))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.CalculateTotalPayment(context.Background(), 7, day(2026, 3, 15), day(2026, 3, 1))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestFinanceService_MarkAddressed(t *testing.T) {
	f := newFinanceFixture([]*entity.Incident{
		{ID: 1, EmployeeID: 7, Description: "a", Status: workflow.FinanceOpen},
		{ID: 2, EmployeeID: 7, Description: "b", Status: workflow.FinanceOpen, StatusAddressed: true},
	}, []*entity.Reimbursement{
		{ID: 10, IncidentID: 1, Status: workflow.FinancePending},
	})

	changed, err := f.svc.MarkAddressed(context.Background(), testActor, []int64{1, 2, 99}, []int64{10})
	require.NoError(t, err)
	assert.Equal(t, 2, changed)
	assert.True(t, f.incidents.get(1).StatusAddressed)
	assert.True(t, f.reimbursements.get(10).StatusAddressed)

	changed, err = f.svc.MarkAddressed(context.Background(), testActor, []int64{1}, []int64{10})
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestOverlapDays(t *testing.T) {
	tests := []struct {
		name           string
		a1, a2, b1, b2 time.Time
		want           int
	}{
		{"inside", day(2026, 3, 3), day(2026, 3, 4), day(2026, 3, 1), day(2026, 3, 31), 2},
		{"clipped start", day(2026, 2, 27), day(2026, 3, 2), day(2026, 3, 1), day(2026, 3, 31), 2},
		{"single day", day(2026, 3, 31), day(2026, 3, 31), day(2026, 3, 1), day(2026, 3, 31), 1},
		{"disjoint", day(2026, 4, 1), day(2026, 4, 3), day(2026, 3, 1), day(2026, 3, 31), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, overlapDays(tt.a1, tt.a2, tt.b1, tt.b2))
		})
	}
}
