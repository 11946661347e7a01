package subscription

import (
	"context"

	"github.com/dmitrymomot/subledger/pkg/statemachine"
)

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusPending       Status = "pending"
	StatusActive        Status = "active"
	StatusPaymentFailed Status = "payment_failed"
	StatusCancelled     Status = "cancelled"
	StatusExpired       Status = "expired"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusActive, StatusPaymentFailed, StatusCancelled, StatusExpired}

func (s Status) Name() string { return string(s) }

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusExpired
}

// Event triggers a status transition.
type Event string

const (
	EventActivate      Event = "activate"
	EventPaymentFailed Event = "payment_failed"
	EventCancel        Event = "cancel"
	EventRenew         Event = "renew"
	EventExpire        Event = "expire"
)

func (e Event) Name() string { return string(e) }

// newMachine builds the lifecycle table. Nothing re-enters pending and the
// terminal states have no outgoing transitions. periodEnded guards expiry.
func newMachine(periodEnded statemachine.Guard) *statemachine.Table {
	return statemachine.MustNew(
		statemachine.WithFanIn(
			[]statemachine.State{StatusPending, StatusPaymentFailed},
			StatusActive, EventActivate,
		),
		statemachine.WithFanIn(
			[]statemachine.State{StatusPending, StatusActive},
			StatusPaymentFailed, EventPaymentFailed,
		),
		statemachine.WithFanIn(
			[]statemachine.State{StatusPending, StatusActive, StatusPaymentFailed},
			StatusCancelled, EventCancel,
		),
		statemachine.WithFanIn(
			[]statemachine.State{StatusPending, StatusActive, StatusPaymentFailed},
			StatusActive, EventRenew,
		),
		statemachine.WithTransition(
			StatusActive, StatusExpired, EventExpire,
			statemachine.WithGuard(periodEnded),
		),
	)
}

// structural is the table without runtime guards, used for Permits.
var structural = newMachine(func(context.Context, statemachine.State, statemachine.Event, any) bool { return true })

// Permits reports whether event is a legal transition out of status,
// ignoring runtime conditions such as the period end.
func Permits(status Status, event Event) bool {
	return structural.CanFire(context.Background(), status, event, nil)
}

// AllowedEvents lists the events that may leave status, sorted by name.
func AllowedEvents(status Status) []Event {
	var out []Event
	for _, e := range structural.Events(status) {
		out = append(out, Event(e.Name()))
	}
	return out
}
