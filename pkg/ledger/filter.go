package ledger

import (
	"time"

	"github.com/dmitrymomot/subledger/pkg/validator"
)

// Filter narrows ledger queries. Zero fields are ignored. CreatedAt must fall
// in [From, To).
type Filter struct {
	Type           Type      `json:"type,omitempty"`
	Status         Status    `json:"status,omitempty"`
	UserID         string    `json:"user_id,omitempty"`
	PlanID         string    `json:"plan_id,omitempty"`
	SubscriptionID string    `json:"subscription_id,omitempty"`
	From           time.Time `json:"from,omitzero"`
	To             time.Time `json:"to,omitzero"`
}

// Validate rejects a window whose From is not before To.
func (f Filter) Validate() error {
	return validator.Apply(
		validator.When(!f.From.IsZero() && !f.To.IsZero(), validator.TimeBefore("from", f.From, f.To)),
	)
}

// Match reports whether t satisfies every set field.
func (f Filter) Match(t Transaction) bool {
	switch {
	case f.Type != "" && t.Type != f.Type:
		return false
	case f.Status != "" && t.Status != f.Status:
		return false
	case f.UserID != "" && t.UserID != f.UserID:
		return false
	case f.PlanID != "" && t.PlanID != f.PlanID:
		return false
	case f.SubscriptionID != "" && t.SubscriptionID != f.SubscriptionID:
		return false
	case !f.From.IsZero() && t.CreatedAt.Before(f.From):
		return false
	case !f.To.IsZero() && !t.CreatedAt.Before(f.To):
		return false
	}
	return true
}
