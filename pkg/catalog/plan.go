package catalog

import (
	"slices"
	"time"

	"github.com/dmitrymomot/subledger/pkg/money"
	"github.com/dmitrymomot/subledger/pkg/recordstore"
)

// Plan is a priced product tier.
type Plan struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Price       money.Money `json:"price"`
	Interval    Interval    `json:"billing_interval"`
	Features    []string    `json:"features,omitempty"`
	Active      bool        `json:"active"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Schema is the record store layout of the plans collection.
var Schema = recordstore.MustSchema[Plan]("plans", "created_at", "updated_at")

// HasFeature reports whether the plan lists feature.
func (p Plan) HasFeature(feature string) bool {
	return slices.Contains(p.Features, feature)
}

// CreateInput describes a new plan. An empty currency falls back to the
// catalog default.
type CreateInput struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Amount      int64    `json:"price" yaml:"price"`
	Currency    string   `json:"currency" yaml:"currency"`
	Interval    Interval `json:"billing_interval" yaml:"interval"`
	Features    []string `json:"features" yaml:"features"`
}

// UpdateInput holds optional changes; nil fields are left as they are.
// Price and interval cannot change while the plan is referenced.
type UpdateInput struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Amount      *int64    `json:"price,omitempty"`
	Currency    *string   `json:"currency,omitempty"`
	Interval    *Interval `json:"billing_interval,omitempty"`
	Features    *[]string `json:"features,omitempty"`
}
