package billing

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrymomot/subledger/pkg/ledger"
	"github.com/dmitrymomot/subledger/pkg/recordstore"
)

// IntentState tracks a settlement through the journal.
type IntentState string

const (
	IntentOpen      IntentState = "open"
	IntentApplied   IntentState = "applied"
	IntentAbandoned IntentState = "abandoned"
)

// Settlement kinds.
const (
	KindWebhook  = "webhook"
	KindCheckout = "checkout"
	KindRetry    = "retry"
	KindRenewal  = "renewal"
)

// Intent is the write-ahead record of one settlement: finalize a transaction
// and move its subscription accordingly. It is written before either change
// and marked applied after both, so a crash in between leaves an open intent
// that Recover can finish.
type Intent struct {
	ID             string        `json:"id"`
	Kind           string        `json:"kind"`
	SubscriptionID string        `json:"subscription_id"`
	TransactionID  string        `json:"transaction_id"`
	Outcome        ledger.Status `json:"outcome"`
	EventID        string        `json:"event_id,omitempty"`
	Reason         string        `json:"reason,omitempty"`
	RenewIntervals int           `json:"renew_intervals"`
	// TargetPeriodEnd is the period end a renewal must reach; it makes
	// re-applying a renewal idempotent.
	TargetPeriodEnd *time.Time  `json:"target_period_end,omitempty"`
	State           IntentState `json:"state"`
	Note            string      `json:"note,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	AppliedAt       *time.Time  `json:"applied_at,omitempty"`
}

// IntentSchema is the record store layout of the intents collection.
var IntentSchema = recordstore.MustSchema[Intent]("intents", "target_period_end", "created_at", "applied_at")

// Journal persists settlement intents.
type Journal struct {
	store recordstore.Repository[Intent]
	now   func() time.Time
}

// NewJournal creates a Journal. Panics if store is nil.
func NewJournal(store recordstore.Repository[Intent], now func() time.Time) *Journal {
	if store == nil {
		panic("billing: journal store is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Journal{store: store, now: now}
}

// Open writes a new open intent.
func (j *Journal) Open(ctx context.Context, in Intent) (Intent, error) {
	in.ID = ""
	in.State = IntentOpen
	in.CreatedAt = j.now().UTC()
	in.AppliedAt = nil
	return j.store.Create(ctx, in)
}

// Get returns the intent or ErrIntentNotFound.
func (j *Journal) Get(ctx context.Context, id string) (Intent, error) {
	in, err := j.store.FindByID(ctx, id)
	if errors.Is(err, recordstore.ErrNotFound) {
		return Intent{}, ErrIntentNotFound
	}
	return in, err
}

// MarkApplied closes the intent as done.
func (j *Journal) MarkApplied(ctx context.Context, id string) (Intent, error) {
	return j.close(ctx, id, IntentApplied, "")
}

// Abandon closes the intent without applying it, keeping the reason.
func (j *Journal) Abandon(ctx context.Context, id, note string) (Intent, error) {
	return j.close(ctx, id, IntentAbandoned, note)
}

// Pending returns open intents in the order they were written.
func (j *Journal) Pending(ctx context.Context) ([]Intent, error) {
	return j.store.FindBy(ctx, recordstore.Criteria{"state": IntentOpen})
}

// OpenForTransaction returns open intents that settle the transaction.
func (j *Journal) OpenForTransaction(ctx context.Context, transactionID string) ([]Intent, error) {
	return j.store.FindBy(ctx, recordstore.Criteria{"state": IntentOpen, "transaction_id": transactionID})
}

// All returns every intent in the order written.
func (j *Journal) All(ctx context.Context) ([]Intent, error) {
	return j.store.FindAll(ctx)
}

func (j *Journal) close(ctx context.Context, id string, state IntentState, note string) (Intent, error) {
	patch := recordstore.Patch{"state": state}
	if state == IntentApplied {
		patch["applied_at"] = j.now().UTC()
	}
	if note != "" {
		patch["note"] = note
	}
	in, err := j.store.Update(ctx, id, patch)
	if errors.Is(err, recordstore.ErrNotFound) {
		return Intent{}, ErrIntentNotFound
	}
	return in, err
}
