package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subledger/pkg/ledger"
	"github.com/dmitrymomot/subledger/pkg/recordstore"
	"github.com/dmitrymomot/subledger/pkg/validator"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newService(t *testing.T, opts ...ledger.Option) (*ledger.Service, *clock) {
	t.Helper()
	store, err := recordstore.Open(context.Background(), recordstore.NewMemoryBackend(), ledger.Schema)
	require.NoError(t, err)
	c := &clock{now: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)}
	return ledger.NewService(store, append([]ledger.Option{ledger.WithClock(c.Now)}, opts...)...), c
}

func payment(sub string) ledger.RecordInput {
	return ledger.RecordInput{SubscriptionID: sub, UserID: "u1", PlanID: "p1", Amount: 100, PaymentMethod: "card"}
}

func TestService_Record(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, c := newService(t)

	tx, err := svc.Record(ctx, payment("s1"))
	require.NoError(t, err)
	assert.Equal(t, ledger.TypePayment, tx.Type)
	assert.Equal(t, ledger.StatusPending, tx.Status)
	assert.Equal(t, "UAH", tx.Currency)
	assert.Equal(t, int64(100), tx.Money().Amount)
	assert.Equal(t, c.Now(), tx.CreatedAt)
	assert.Nil(t, tx.CompletedAt)

	_, err = svc.Record(ctx, ledger.RecordInput{Amount: -5, Currency: "usd1"})
	require.ErrorIs(t, err, validator.ErrValidationFailed)
	errs := validator.ExtractValidationErrors(err)
	for _, f := range []string{"subscription_id", "user_id", "plan_id", "amount", "currency"} {
		assert.True(t, errs.Has(f), f)
	}
}

func TestService_RecordSupportedCurrencies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t, ledger.WithCurrencies("uah", "usd"))

	in := payment("s1")
	in.Currency = "GBP"
	_, err := svc.Record(ctx, in)
	require.ErrorIs(t, err, validator.ErrValidationFailed)
	assert.True(t, validator.ExtractValidationErrors(err).Has("currency"))

	in.Currency = "usd"
	tx, err := svc.Record(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "USD", tx.Currency)
}

func TestService_Finalize(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("complete once", func(t *testing.T) {
		t.Parallel()
		svc, c := newService(t)
		tx, err := svc.Record(ctx, payment("s1"))
		require.NoError(t, err)

		c.Advance(time.Minute)
		done, err := svc.Complete(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusCompleted, done.Status)
		require.NotNil(t, done.CompletedAt)
		assert.Equal(t, c.Now(), *done.CompletedAt)

		_, err = svc.Complete(ctx, tx.ID)
		assert.ErrorIs(t, err, ledger.ErrAlreadyFinalized)
		_, err = svc.Fail(ctx, tx.ID, "late")
		assert.ErrorIs(t, err, ledger.ErrAlreadyFinalized)

		got, err := svc.Get(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, done, got, "a rejected finalize leaves the record untouched")
	})

	t.Run("fail keeps reason", func(t *testing.T) {
		t.Parallel()
		svc, _ := newService(t)
		tx, err := svc.Record(ctx, payment("s1"))
		require.NoError(t, err)

		failed, err := svc.Fail(ctx, tx.ID, "card declined")
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusFailed, failed.Status)
		assert.NotNil(t, failed.CompletedAt)
		assert.Equal(t, "card declined", failed.Metadata[ledger.MetaFailureReason])
	})

	t.Run("external ref is unique", func(t *testing.T) {
		t.Parallel()
		svc, _ := newService(t)
		a, err := svc.Record(ctx, payment("s1"))
		require.NoError(t, err)
		b, err := svc.Record(ctx, payment("s1"))
		require.NoError(t, err)

		_, err = svc.Finalize(ctx, a.ID, ledger.FinalizeInput{Status: ledger.StatusCompleted, ExternalRef: "evt_1"})
		require.NoError(t, err)
		_, err = svc.Finalize(ctx, b.ID, ledger.FinalizeInput{Status: ledger.StatusCompleted, ExternalRef: "evt_1"})
		assert.ErrorIs(t, err, ledger.ErrExternalRefTaken)

		found, err := svc.FindByExternalRef(ctx, "evt_1")
		require.NoError(t, err)
		assert.Equal(t, a.ID, found.ID)
		_, err = svc.FindByExternalRef(ctx, "")
		assert.ErrorIs(t, err, ledger.ErrTransactionNotFound)
	})

	t.Run("invalid outcome and missing id", func(t *testing.T) {
		t.Parallel()
		svc, _ := newService(t)
		_, err := svc.Finalize(ctx, "x", ledger.FinalizeInput{Status: ledger.StatusPending})
		assert.ErrorIs(t, err, ledger.ErrInvalidOutcome)
		_, err = svc.Complete(ctx, "missing")
		assert.ErrorIs(t, err, ledger.ErrTransactionNotFound)
	})
}

func TestService_Refund(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t)

	pending, err := svc.Record(ctx, payment("s1"))
	require.NoError(t, err)
	_, err = svc.Refund(ctx, pending.ID, "")
	assert.ErrorIs(t, err, ledger.ErrNotRefundable)

	paid, err := svc.Complete(ctx, pending.ID)
	require.NoError(t, err)

	refund, err := svc.Refund(ctx, paid.ID, "")
	require.NoError(t, err)
	assert.Equal(t, ledger.TypeRefund, refund.Type)
	assert.Equal(t, ledger.StatusCompleted, refund.Status)
	assert.Equal(t, paid.Amount, refund.Amount)
	assert.Equal(t, paid.ID, refund.RelatedID)
	assert.NotNil(t, refund.CompletedAt)
	assert.Contains(t, refund.Description, paid.ID)

	_, err = svc.Refund(ctx, paid.ID, "again")
	assert.ErrorIs(t, err, ledger.ErrAlreadyRefunded)
	_, err = svc.Refund(ctx, refund.ID, "")
	assert.ErrorIs(t, err, ledger.ErrNotRefundable)
}

func TestService_Annotate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t)

	tx, err := svc.Record(ctx, payment("s1"))
	require.NoError(t, err)
	tx, err = svc.Complete(ctx, tx.ID)
	require.NoError(t, err)

	annotated, err := svc.Annotate(ctx, tx.ID, "invoice", "INV-1")
	require.NoError(t, err)
	assert.Equal(t, "INV-1", annotated.Metadata["invoice"])
	assert.Equal(t, ledger.StatusCompleted, annotated.Status)

	_, err = svc.Annotate(ctx, tx.ID, "invoice", "INV-2")
	assert.ErrorIs(t, err, ledger.ErrMetadataKeyExists)

	_, err = svc.Annotate(ctx, tx.ID, " ", "x")
	assert.ErrorIs(t, err, validator.ErrValidationFailed)
}

func TestService_Queries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, c := newService(t)

	first, err := svc.Record(ctx, payment("s1"))
	require.NoError(t, err)
	c.Advance(time.Hour)
	second, err := svc.Record(ctx, payment("s1"))
	require.NoError(t, err)
	c.Advance(time.Hour)
	other, err := svc.Record(ctx, ledger.RecordInput{SubscriptionID: "s2", UserID: "u2", PlanID: "p2", Amount: 50})
	require.NoError(t, err)
	_, err = svc.Complete(ctx, other.ID)
	require.NoError(t, err)

	latest, err := svc.LatestPending(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	_, err = svc.LatestPending(ctx, "s2")
	assert.ErrorIs(t, err, ledger.ErrTransactionNotFound)

	byUser, err := svc.ByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	bySub, err := svc.BySubscription(ctx, "s2")
	require.NoError(t, err)
	assert.Len(t, bySub, 1)

	all, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	tests := []struct {
		name   string
		filter ledger.Filter
		want   []string
	}{
		{"no filter", ledger.Filter{}, []string{first.ID, second.ID, other.ID}},
		{"status", ledger.Filter{Status: ledger.StatusCompleted}, []string{other.ID}},
		{"plan", ledger.Filter{PlanID: "p1"}, []string{first.ID, second.ID}},
		{"type", ledger.Filter{Type: ledger.TypeRefund}, nil},
		{"from inclusive", ledger.Filter{From: second.CreatedAt}, []string{second.ID, other.ID}},
		{"to exclusive", ledger.Filter{To: second.CreatedAt}, []string{first.ID}},
		{"range", ledger.Filter{From: first.CreatedAt, To: other.CreatedAt, UserID: "u1"}, []string{first.ID, second.ID}},
		{"subscription", ledger.Filter{SubscriptionID: "s2"}, []string{other.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Query(ctx, tt.filter)
			require.NoError(t, err)
			var ids []string
			for _, tx := range got {
				ids = append(ids, tx.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	_, err = svc.Query(ctx, ledger.Filter{From: other.CreatedAt, To: first.CreatedAt})
	assert.ErrorIs(t, err, validator.ErrValidationFailed)
}
