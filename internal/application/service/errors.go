package service

import (
	"errors"
	"fmt"

	"github.com/garyjia/order-resolution/internal/application/port"
	"github.com/garyjia/order-resolution/internal/domain/workflow"
)

// Business errors returned by the workflow services. Callers match them with errors.Is.
var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidAction        = errors.New("invalid action")
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrValidation           = errors.New("validation failed")

	ErrInvalidTransition = workflow.ErrInvalidTransition
	ErrAlreadyProcessed  = workflow.ErrAlreadyProcessed
)

// BatchError identifies the row that aborted a batch edit
type BatchError struct {
	Index int
	ID    int64
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch row %d (id %d): %v", e.Index, e.ID, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

func notFound(kind string, id int64) error {
	return fmt.Errorf("%w: %s %d", ErrNotFound, kind, id)
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// conflict maps a lost optimistic-version race to ErrAlreadyProcessed
func conflict(kind string, id int64, err error) error {
	if errors.Is(err, port.ErrStaleVersion) {
		return fmt.Errorf("%w: %s %d was changed concurrently", ErrAlreadyProcessed, kind, id)
	}
	return fmt.Errorf("update %s: %w", kind, err)
}

// fromWorkflow turns a state parsing error into a validation error
func fromWorkflow(err error) error {
	if errors.Is(err, workflow.ErrInvalidState) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return err
}

// IsRejection reports whether err is a business outcome that retrying
// cannot change, as opposed to an infrastructure failure
func IsRejection(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAlreadyProcessed),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrInvalidAction),
		errors.Is(err, ErrConfirmationRequired),
		errors.Is(err, ErrValidation):
		return true
	default:
		return false
	}
}

// ErrorReason returns a short label for metrics and logs
func ErrorReason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyProcessed):
		return "already_processed"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrInvalidAction):
		return "invalid_action"
	case errors.Is(err, ErrConfirmationRequired):
		return "confirmation_required"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "error"
	}
}
