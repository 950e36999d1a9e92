package entity

import (
	"time"

	"github.com/garyjia/order-resolution/internal/domain/workflow"
)

// Incident is an employee-caused cost awaiting finance processing
type Incident struct {
	ID              int64                  `json:"id"`
	EmployeeID      int64                  `json:"employee_id"`
	Description     string                 `json:"description"`
	CostCents       int64                  `json:"cost_cents"`
	Date            time.Time              `json:"date"`
	Status          workflow.FinanceStatus `json:"status"`
	StatusAddressed bool                   `json:"status_addressed"`
	PaidAll         bool                   `json:"paid_all"`
	Deleted         bool                   `json:"deleted"`
	Version         int64                  `json:"version"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// Mutable reports whether the incident may still be updated or deleted
func (i *Incident) Mutable() bool {
	return !i.Deleted && !i.Status.IsTerminal()
}

// Reimbursement is one attempt to settle an incident
type Reimbursement struct {
	ID                  int64                  `json:"id"`
	IncidentID          int64                  `json:"incident_id"`
	Description         string                 `json:"description"`
	Response            string                 `json:"response"`
	AmountApprovedCents *int64                 `json:"amount_approved_cents,omitempty"`
	Status              workflow.FinanceStatus `json:"status"`
	StatusAddressed     bool                   `json:"status_addressed"`
	PaidAll             bool                   `json:"paid_all"`
	Deleted             bool                   `json:"deleted"`
	Version             int64                  `json:"version"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
}

// Mutable reports whether the reimbursement may still be updated or deleted
func (r *Reimbursement) Mutable() bool {
	return !r.Deleted && !r.Status.IsTerminal()
}

// ApprovedCents returns the approved amount, or zero when none was set
func (r *Reimbursement) ApprovedCents() int64 {
	if r.AmountApprovedCents == nil {
		return 0
	}
	return *r.AmountApprovedCents
}
