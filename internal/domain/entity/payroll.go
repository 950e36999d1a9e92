package entity

import "time"

// PTO status values
const (
	PTORequested = "requested"
	PTOApproved  = "approved"
	PTORejected  = "rejected"
	PTOTaken     = "taken"
)

// Employee holds the pay rate used for payroll totals
type Employee struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	HourlyRateCents int64  `json:"hourly_rate_cents"`
}

// Shift is a worked time span
type Shift struct {
	ID         int64     `json:"id"`
	EmployeeID int64     `json:"employee_id"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Deleted    bool      `json:"deleted"`
}

// Hours returns the shift length, or zero for malformed shifts
func (s *Shift) Hours() float64 {
	if !s.EndTime.After(s.StartTime) {
		return 0
	}
	return s.EndTime.Sub(s.StartTime).Hours()
}

// PTO is a paid time off request covering whole days
type PTO struct {
	ID         int64     `json:"id"`
	EmployeeID int64     `json:"employee_id"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	Status     string    `json:"status"`
}

// Counts reports whether the PTO is paid
func (p *PTO) Counts() bool {
	return p.Status == PTOApproved || p.Status == PTOTaken
}

// Bonus is a one-off payment to an employee
type Bonus struct {
	ID          int64     `json:"id"`
	EmployeeID  int64     `json:"employee_id"`
	AmountCents int64     `json:"amount_cents"`
	PaidOn      time.Time `json:"paid_on"`
}
