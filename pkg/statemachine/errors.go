package statemachine

import "errors"

var (
	// ErrInvalidTransition is returned while building a table when a
	// transition lacks its source, target or event.
	ErrInvalidTransition = errors.New("transition needs a source, a target and an event")

	// ErrUndefined is returned by Fire when the table has no transition for
	// the event out of the given state.
	ErrUndefined = errors.New("no transition defined")

	// ErrRejected is returned by Fire when transitions exist but every one
	// of them was vetoed by a guard.
	ErrRejected = errors.New("transition rejected by guard")
)
