package statemachine

import (
	"fmt"
)

// Option configures a transition table during construction.
type Option func(*Table) error

// TransitionOption configures a single transition.
type TransitionOption func(*[]Guard)

// New builds a transition table from the given options.
func New(opts ...Option) (*Table, error) {
	t := newTable()
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustNew builds a transition table and panics if any option fails to apply.
// Tables are declared at package init, so a broken one is a programming error.
func MustNew(opts ...Option) *Table {
	t, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("statemachine: %v", err))
	}
	return t
}

// WithTransition adds a single transition to the table.
func WithTransition(from, to State, event Event, opts ...TransitionOption) Option {
	return func(tbl *Table) error {
		return tbl.addTransition(from, to, event, guards(opts))
	}
}

// WithFanIn adds the same event transition from each of the source states to one target.
func WithFanIn(sources []State, to State, event Event, opts ...TransitionOption) Option {
	return func(tbl *Table) error {
		g := guards(opts)
		for _, from := range sources {
			if err := tbl.addTransition(from, to, event, g); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithGuard adds a guard to a transition. Nil guards are ignored.
func WithGuard(guard Guard) TransitionOption {
	return func(g *[]Guard) {
		if guard != nil {
			*g = append(*g, guard)
		}
	}
}

func guards(opts []TransitionOption) []Guard {
	var g []Guard
	for _, opt := range opts {
		opt(&g)
	}
	return g
}
