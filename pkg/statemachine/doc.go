// Package statemachine provides transition tables for entities whose current
// state is persisted outside the machine.
//
// States and events are anything with a Name. A Table maps (from, event)
// pairs to target states and is built once with functional options:
//
//	var lifecycle = statemachine.MustNew(
//	    statemachine.WithTransition(StatusPending, StatusActive, EventPay),
//	    statemachine.WithFanIn([]statemachine.State{StatusPending, StatusActive},
//	        StatusCancelled, EventCancel),
//	)
//
//	next, err := lifecycle.Fire(ctx, rec.Status, EventPay, rec)
//
// Fire never mutates anything. It resolves the transition, evaluates guards
// and returns the target state; persisting it is the caller's job.
//
// When several transitions share a (from, event) pair the first one whose
// guards all pass wins. Fire wraps ErrUndefined when no transition exists and
// ErrRejected when guards vetoed every candidate.
//
// Tables are immutable after New returns and safe for concurrent use.
package statemachine
