package workflow

import "fmt"

// Rules is an immutable guarded transition table. A move is accepted only if
// the current state is not terminal and the target is an allowed next state.
type Rules[S ~string] struct {
	name     string
	states   map[S]struct{}
	allowed  map[S]map[S]struct{}
	terminal map[S]struct{}
}

// Name returns the machine name used in error messages and metrics
func (r *Rules[S]) Name() string {
	return r.name
}

// Validate checks a requested move from one state to another
func (r *Rules[S]) Validate(from, to S) error {
	if !r.IsValid(from) {
		return fmt.Errorf("%w: %s state %q", ErrInvalidState, r.name, from)
	}
	if r.IsTerminal(from) {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyProcessed, r.name, from)
	}
	if _, ok := r.allowed[from][to]; !ok {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, r.name, from, to)
	}
	return nil
}

// CanTransition reports whether Validate would succeed
func (r *Rules[S]) CanTransition(from, to S) bool {
	return r.Validate(from, to) == nil
}

// IsTerminal returns true if no transition is permitted out of s
func (r *Rules[S]) IsTerminal(s S) bool {
	_, ok := r.terminal[s]
	return ok
}

// IsValid returns true if s is a state of this machine
func (r *Rules[S]) IsValid(s S) bool {
	_, ok := r.states[s]
	return ok
}

// Permitted returns the allowed next states of from, sorted
func (r *Rules[S]) Permitted(from S) []S {
	if r.IsTerminal(from) {
		return nil
	}
	return sortedStates(r.allowed[from])
}
