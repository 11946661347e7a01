package ledger

import (
	"time"

	"github.com/dmitrymomot/subledger/pkg/money"
	"github.com/dmitrymomot/subledger/pkg/recordstore"
)

// Type distinguishes money in from money out.
type Type string

const (
	TypePayment Type = "payment"
	TypeRefund  Type = "refund"
)

// Status of a transaction. Completed and failed are final.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

func (s Status) Name() string { return string(s) }

// Final reports whether the status can no longer change.
func (s Status) Final() bool {
	return s == StatusCompleted || s == StatusFailed
}

// MetaFailureReason is the metadata key Fail stores its reason under.
const MetaFailureReason = "failure_reason"

// Transaction is one payment or refund attempt and its outcome. Once final
// only Metadata can grow.
type Transaction struct {
	ID             string            `json:"id"`
	SubscriptionID string            `json:"subscription_id"`
	UserID         string            `json:"user_id"`
	PlanID         string            `json:"plan_id"`
	Type           Type              `json:"type"`
	Status         Status            `json:"status"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	PaymentMethod  string            `json:"payment_method,omitempty"`
	ExternalRef    string            `json:"external_ref,omitempty"`
	Description    string            `json:"description,omitempty"`
	RelatedID      string            `json:"related_id,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
}

// Schema is the record store layout of the transactions collection.
var Schema = recordstore.MustSchema[Transaction]("transactions", "created_at", "completed_at")

// Money returns the amount with its currency.
func (t Transaction) Money() money.Money {
	return money.Money{Amount: t.Amount, Currency: t.Currency}
}

// RecordInput describes a payment attempt. An empty currency falls back to
// the ledger default.
type RecordInput struct {
	SubscriptionID string `json:"subscription_id"`
	UserID         string `json:"user_id"`
	PlanID         string `json:"plan_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency,omitempty"`
	PaymentMethod  string `json:"payment_method,omitempty"`
	Description    string `json:"description,omitempty"`
}

// FinalizeInput settles a pending transaction. ExternalRef, when set, ties it
// to a provider event and must be unique across the ledger.
type FinalizeInput struct {
	Status      Status
	ExternalRef string
	Reason      string
}
