package statemachine

import (
	"context"
)

// State is a named node of a table.
type State interface {
	Name() string
}

// Event is a named trigger of a transition.
type Event interface {
	Name() string
}

// Guard vetoes a transition at runtime. data is whatever the caller passed to
// Fire, usually the record being moved.
type Guard func(ctx context.Context, from State, event Event, data any) bool

// Transition is one edge of a table.
type Transition struct {
	From   State
	To     State
	Event  Event
	Guards []Guard
}

// Machine resolves transitions for entities whose current state lives elsewhere
// (a database row, a JSON document). It holds no per-entity state, so a single
// instance is shared by every record of the same kind.
type Machine interface {
	Fire(ctx context.Context, from State, event Event, data any) (State, error)
	CanFire(ctx context.Context, from State, event Event, data any) bool
	Events(from State) []Event
}

// StringEvent is an Event backed by a string constant.
type StringEvent string

func (e StringEvent) Name() string {
	return string(e)
}
