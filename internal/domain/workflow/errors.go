package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when the requested state is not an allowed next state
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrAlreadyProcessed is returned when the current state is terminal
	ErrAlreadyProcessed = errors.New("already processed")

	// ErrInvalidState is returned when a state is not part of the machine
	ErrInvalidState = errors.New("invalid state")
)
