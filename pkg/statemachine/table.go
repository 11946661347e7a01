package statemachine

import (
	"context"
	"fmt"
	"sort"
)

// Table is an immutable transition table.
// Lookups use a nested map structure: [fromState][event][]Transition.
// A Table is safe for concurrent use once constructed.
type Table struct {
	transitions map[string]map[string][]Transition
}

var _ Machine = (*Table)(nil)

func newTable() *Table {
	return &Table{
		transitions: make(map[string]map[string][]Transition),
	}
}

func (t *Table) addTransition(from, to State, event Event, guards []Guard) error {
	if from == nil || to == nil || event == nil {
		return ErrInvalidTransition
	}

	fromStateName := from.Name()
	if _, ok := t.transitions[fromStateName]; !ok {
		t.transitions[fromStateName] = make(map[string][]Transition)
	}

	// Multiple transitions allowed for same from/event to support guard-based branching
	t.transitions[fromStateName][event.Name()] = append(t.transitions[fromStateName][event.Name()], Transition{
		From:   from,
		To:     to,
		Event:  event,
		Guards: guards,
	})
	return nil
}

// Fire resolves the transition for event from the given state and returns
// the target state. The caller persists the result.
func (t *Table) Fire(ctx context.Context, from State, event Event, data any) (State, error) {
	if from == nil || event == nil {
		return nil, ErrInvalidTransition
	}

	candidates := t.transitions[from.Name()][event.Name()]
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s from %s", ErrUndefined, event.Name(), from.Name())
	}

	transition := firstAllowed(ctx, candidates, from, event, data)
	if transition == nil {
		return nil, fmt.Errorf("%w: %s from %s", ErrRejected, event.Name(), from.Name())
	}
	return transition.To, nil
}

// CanFire reports whether Fire would find a transition whose guards pass.
func (t *Table) CanFire(ctx context.Context, from State, event Event, data any) bool {
	if from == nil || event == nil {
		return false
	}
	candidates, ok := t.transitions[from.Name()][event.Name()]
	if !ok {
		return false
	}
	return firstAllowed(ctx, candidates, from, event, data) != nil
}

// Events lists the events defined for a state, sorted by name.
// Guards are not evaluated.
func (t *Table) Events(from State) []Event {
	if from == nil {
		return nil
	}
	byEvent := t.transitions[from.Name()]
	events := make([]Event, 0, len(byEvent))
	for _, candidates := range byEvent {
		if len(candidates) > 0 {
			events = append(events, candidates[0].Event)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Name() < events[j].Name() })
	return events
}

// First transition with passing guards wins (enables priority ordering).
func firstAllowed(ctx context.Context, candidates []Transition, from State, event Event, data any) *Transition {
	for i, t := range candidates {
		allGuardsPassed := true
		for _, guard := range t.Guards {
			if guard != nil && !guard(ctx, from, event, data) {
				allGuardsPassed = false
				break
			}
		}
		if allGuardsPassed {
			return &candidates[i]
		}
	}
	return nil
}
