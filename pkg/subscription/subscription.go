package subscription

import (
	"time"

	"github.com/dmitrymomot/subledger/pkg/catalog"
	"github.com/dmitrymomot/subledger/pkg/money"
	"github.com/dmitrymomot/subledger/pkg/recordstore"
)

// Subscription is a user's time-bounded entitlement to a plan. Price and
// interval are copied from the plan at creation.
type Subscription struct {
	ID               string           `json:"id"`
	UserID           string           `json:"user_id"`
	PlanID           string           `json:"plan_id"`
	Status           Status           `json:"status"`
	StartDate        time.Time        `json:"start_date"`
	CurrentPeriodEnd time.Time        `json:"current_period_end"`
	Price            money.Money      `json:"price"`
	Interval         catalog.Interval `json:"billing_interval"`
	AutoRenew        bool             `json:"auto_renew"`
	PaymentMethod    string           `json:"payment_method,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	CancelledAt      *time.Time       `json:"cancelled_at,omitempty"`
}

// Schema is the record store layout of the subscriptions collection.
var Schema = recordstore.MustSchema[Subscription]("subscriptions",
	"start_date", "current_period_end", "created_at", "updated_at", "cancelled_at")

// NextPeriodEnd is the period end after n more intervals, kept on the start
// date's day of month.
func (s Subscription) NextPeriodEnd(n int) time.Time {
	return s.Interval.AdvanceAnchored(s.StartDate, s.CurrentPeriodEnd, n)
}

// ActiveAt reports entitlement at t: status active and the period not over.
func (s Subscription) ActiveAt(t time.Time) bool {
	return s.Status == StatusActive && s.CurrentPeriodEnd.After(t)
}

// EntitledAt reports whether the holder keeps access at t. Cancelling stops
// renewal but access runs until the paid period ends.
func (s Subscription) EntitledAt(t time.Time) bool {
	switch s.Status {
	case StatusActive, StatusCancelled:
		return s.CurrentPeriodEnd.After(t)
	}
	return false
}

// CreateInput describes a new subscription. AutoRenew defaults to true.
type CreateInput struct {
	UserID        string `json:"user_id"`
	PlanID        string `json:"plan_id"`
	PaymentMethod string `json:"payment_method,omitempty"`
	AutoRenew     *bool  `json:"auto_renew,omitempty"`
}
