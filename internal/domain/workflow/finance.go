package workflow

import (
	"fmt"
	"strings"
)

// FinanceStatus is the shared status of incidents and reimbursements.
// Values are stored lowercase; parsing is case-insensitive.
type FinanceStatus string

const (
	FinanceOpen                  FinanceStatus = "open"
	FinancePending               FinanceStatus = "pending"
	FinanceAwaitingFinanceReview FinanceStatus = "awaiting_finance_review"
	FinanceAddressed             FinanceStatus = "addressed"
	FinanceClosed                FinanceStatus = "closed"
	FinanceRejected              FinanceStatus = "rejected"
	FinancePaid                  FinanceStatus = "paid"
	FinanceApproved              FinanceStatus = "approved"
	FinanceSettled               FinanceStatus = "settled"
	FinanceFinanceApproved       FinanceStatus = "finance_approved"
)

var financeStatuses = []FinanceStatus{
	FinanceOpen,
	FinancePending,
	FinanceAwaitingFinanceReview,
	FinanceAddressed,
	FinanceClosed,
	FinanceRejected,
	FinancePaid,
	FinanceApproved,
	FinanceSettled,
	FinanceFinanceApproved,
}

// FinanceRules governs incident and reimbursement status changes. Every
// non-terminal status may move to any other status.
var FinanceRules = buildFinanceRules()

func buildFinanceRules() *Rules[FinanceStatus] {
	b := NewRules("finance", financeStatuses...)
	b.Terminal(FinanceApproved, FinanceSettled, FinanceFinanceApproved)
	for _, from := range financeStatuses {
		if _, terminal := b.terminal[from]; terminal {
			continue
		}
		cfg := b.Configure(from)
		for _, to := range financeStatuses {
			if to != from {
				cfg.Permit(to)
			}
		}
	}
	return b.Build()
}

// ParseFinanceStatus normalizes s and rejects unknown values
func ParseFinanceStatus(s string) (FinanceStatus, error) {
	st := FinanceStatus(strings.ToLower(strings.TrimSpace(s)))
	if !FinanceRules.IsValid(st) {
		return "", fmt.Errorf("%w: finance status %q", ErrInvalidState, s)
	}
	return st, nil
}

// IsTerminal returns true for approved, settled and finance_approved in any case
func (s FinanceStatus) IsTerminal() bool {
	return FinanceRules.IsTerminal(FinanceStatus(strings.ToLower(string(s))))
}

func (s FinanceStatus) String() string {
	return string(s)
}
