package workflow

import (
	"fmt"
	"sort"
)

// RulesBuilder builds a Rules table for one entity
type RulesBuilder[S ~string] struct {
	name     string
	states   map[S]struct{}
	allowed  map[S]map[S]struct{}
	terminal map[S]struct{}
}

// StateConfig configures the exits of a single state
type StateConfig[S ~string] struct {
	builder *RulesBuilder[S]
	from    S
}

// NewRules creates a builder for the named machine. Every state the machine
// knows must be passed in states.
func NewRules[S ~string](name string, states ...S) *RulesBuilder[S] {
	b := &RulesBuilder[S]{
		name:     name,
		states:   make(map[S]struct{}, len(states)),
		allowed:  make(map[S]map[S]struct{}),
		terminal: make(map[S]struct{}),
	}
	for _, s := range states {
		b.states[s] = struct{}{}
	}
	return b
}

// Configure returns the configuration for the given source state
func (b *RulesBuilder[S]) Configure(from S) *StateConfig[S] {
	b.mustKnow(from)
	if _, ok := b.allowed[from]; !ok {
		b.allowed[from] = make(map[S]struct{})
	}
	return &StateConfig[S]{builder: b, from: from}
}

// Permit allows moving from the configured state to each of the targets
func (c *StateConfig[S]) Permit(to ...S) *StateConfig[S] {
	for _, s := range to {
		c.builder.mustKnow(s)
		c.builder.allowed[c.from][s] = struct{}{}
	}
	return c
}

// Terminal marks states from which no transition is permitted
func (b *RulesBuilder[S]) Terminal(states ...S) *RulesBuilder[S] {
	for _, s := range states {
		b.mustKnow(s)
		b.terminal[s] = struct{}{}
	}
	return b
}

// Build freezes the configuration. It panics when a terminal state was given exits.
func (b *RulesBuilder[S]) Build() *Rules[S] {
	r := &Rules[S]{
		name:     b.name,
		states:   make(map[S]struct{}, len(b.states)),
		allowed:  make(map[S]map[S]struct{}, len(b.allowed)),
		terminal: make(map[S]struct{}, len(b.terminal)),
	}
	for s := range b.states {
		r.states[s] = struct{}{}
	}
	for s := range b.terminal {
		if len(b.allowed[s]) > 0 {
			panic(fmt.Sprintf("%s: terminal state %s has permitted exits", b.name, s))
		}
		r.terminal[s] = struct{}{}
	}
	for from, exits := range b.allowed {
		cp := make(map[S]struct{}, len(exits))
		for to := range exits {
			cp[to] = struct{}{}
		}
		r.allowed[from] = cp
	}
	return r
}

func (b *RulesBuilder[S]) mustKnow(s S) {
	if _, ok := b.states[s]; !ok {
		panic(fmt.Sprintf("%s: unknown state: %s", b.name, s))
	}
}

func sortedStates[S ~string](set map[S]struct{}) []S {
	out := make([]S, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
