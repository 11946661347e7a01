package billing_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subledger/pkg/billing"
	"github.com/dmitrymomot/subledger/pkg/catalog"
	"github.com/dmitrymomot/subledger/pkg/ledger"
	"github.com/dmitrymomot/subledger/pkg/money"
	"github.com/dmitrymomot/subledger/pkg/payment"
	"github.com/dmitrymomot/subledger/pkg/recordstore"
	"github.com/dmitrymomot/subledger/pkg/subscription"
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

type plansStub map[string]catalog.Plan

func (p plansStub) Get(_ context.Context, id string) (catalog.Plan, error) {
	plan, ok := p[id]
	if !ok {
		return catalog.Plan{}, catalog.ErrPlanNotFound
	}
	return plan, nil
}

var plans = plansStub{
	"basic": {ID: "basic", Name: "Basic", Price: money.Money{Amount: 9900, Currency: "UAH"}, Interval: catalog.Monthly, Active: true},
}

type metricsSpy struct {
	mu       sync.Mutex
	events   map[billing.EventType][]string
	payments []bool
	applied  int
}

func (m *metricsSpy) EventHandled(eventType billing.EventType, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.events == nil {
		m.events = map[billing.EventType][]string{}
	}
	m.events[eventType] = append(m.events[eventType], outcome)
}

func (m *metricsSpy) PaymentSettled(_ string, success bool, _ money.Money) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments = append(m.payments, success)
}

func (m *metricsSpy) IntentsRecovered(applied, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applied += applied
}

type fixture struct {
	svc     *billing.Service
	subs    *subscription.Service
	ledger  *ledger.Service
	journal *billing.Journal
	metrics *metricsSpy
}

func newFixture(t *testing.T, opts ...billing.Option) fixture {
	t.Helper()
	ctx := context.Background()
	c := &clock{now: time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC)}

	subStore, err := recordstore.Open(ctx, recordstore.NewMemoryBackend(), subscription.Schema)
	require.NoError(t, err)
	txStore, err := recordstore.Open(ctx, recordstore.NewMemoryBackend(), ledger.Schema)
	require.NoError(t, err)
	intentStore, err := recordstore.Open(ctx, recordstore.NewMemoryBackend(), billing.IntentSchema)
	require.NoError(t, err)

	f := fixture{
		subs:    subscription.NewService(subStore, plans, subscription.WithClock(c.Now)),
		ledger:  ledger.NewService(txStore, ledger.WithClock(c.Now)),
		journal: billing.NewJournal(intentStore, c.Now),
		metrics: &metricsSpy{},
	}
	opts = append([]billing.Option{billing.WithClock(c.Now), billing.WithMetrics(f.metrics)}, opts...)
	f.svc = billing.NewService(f.subs, f.ledger, f.journal, opts...)
	return f
}

func (f fixture) subscribe(t *testing.T) subscription.Subscription {
	t.Helper()
	sub, err := f.subs.Create(context.Background(), subscription.CreateInput{UserID: "u1", PlanID: "basic", PaymentMethod: "card"})
	require.NoError(t, err)
	return sub
}

func (f fixture) transactions(t *testing.T) []ledger.Transaction {
	t.Helper()
	all, err := f.ledger.All(context.Background())
	require.NoError(t, err)
	return all
}

func event(typ billing.EventType, subID, id string) billing.Event {
	return billing.Event{
		ID:             id,
		Type:           typ,
		SubscriptionID: subID,
		UserID:         "u1",
		Timestamp:      time.Date(2025, 1, 31, 10, 5, 0, 0, time.UTC),
	}
}

func TestNewService_PanicsOnNilDependencies(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	assert.Panics(t, func() { billing.NewService(nil, f.ledger, f.journal) })
	assert.Panics(t, func() { billing.NewService(f.subs, nil, f.journal) })
	assert.Panics(t, func() { billing.NewService(f.subs, f.ledger, nil) })
}

func TestService_Handle_PaymentProcessed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	sub := f.subscribe(t)

	res := f.svc.Handle(ctx, event(billing.EventPaymentProcessed, sub.ID, "evt-1"))
	require.True(t, res.Success, res.Message)
	assert.Equal(t, billing.OutcomeApplied, res.Outcome)
	require.NotNil(t, res.Subscription)
	assert.Equal(t, subscription.StatusActive, res.Subscription.Status)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, ledger.StatusCompleted, res.Transaction.Status)
	assert.Equal(t, "evt-1", res.Transaction.ExternalRef)
	assert.Equal(t, int64(9900), res.Transaction.Amount)

	t.Run("replay changes nothing", func(t *testing.T) {
		res := f.svc.Handle(ctx, event(billing.EventPaymentProcessed, sub.ID, "evt-1"))
		require.True(t, res.Success)
		assert.Equal(t, billing.OutcomeDuplicate, res.Outcome)
		assert.Len(t, f.transactions(t), 1)
	})

	t.Run("active without pending payment is a noop", func(t *testing.T) {
		res := f.svc.Handle(ctx, event(billing.EventPaymentProcessed, sub.ID, ""))
		require.True(t, res.Success)
		assert.Equal(t, billing.OutcomeNoop, res.Outcome)
		assert.Len(t, f.transactions(t), 1)
	})

	intents, err := f.journal.All(ctx)
	require.NoError(t, err)
	require.Len(t, intents, 1)
	assert.Equal(t, billing.IntentApplied, intents[0].State)
	assert.NotNil(t, intents[0].AppliedAt)

	assert.Equal(t,
		[]string{billing.OutcomeApplied, billing.OutcomeDuplicate, billing.OutcomeNoop},
		f.metrics.events[billing.EventPaymentProcessed],
	)
}

func TestService_Handle_PaymentProcessedSettlesPendingTransaction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	sub := f.subscribe(t)

	pending, err := f.ledger.Record(ctx, ledger.RecordInput{
		SubscriptionID: sub.ID, UserID: sub.UserID, PlanID: sub.PlanID, Amount: sub.Price.Amount,
	})
	require.NoError(t, err)

	res := f.svc.Handle(ctx, event(billing.EventPaymentProcessed, sub.ID, ""))
	require.True(t, res.Success, res.Message)
	assert.Equal(t, pending.ID, res.Transaction.ID)
	assert.Equal(t, ledger.StatusCompleted, res.Transaction.Status)
	assert.Len(t, f.transactions(t), 1)
}

func TestService_Handle_PaymentFailed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	sub := f.subscribe(t)

	require.True(t, f.svc.Handle(ctx, event(billing.EventPaymentProcessed, sub.ID, "evt-1")).Success)

	ev := event(billing.EventPaymentFailed, sub.ID, "evt-2")
	ev.Metadata = map[string]any{"reason": "insufficient funds"}
	res := f.svc.Handle(ctx, ev)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, billing.OutcomeApplied, res.Outcome)
	assert.Equal(t, subscription.StatusPaymentFailed, res.Subscription.Status)
	assert.Equal(t, ledger.StatusFailed, res.Transaction.Status)
	assert.Equal(t, "insufficient funds", res.Transaction.Metadata[ledger.MetaFailureReason])

	res = f.svc.Handle(ctx, event(billing.EventPaymentFailed, sub.ID, ""))
	require.True(t, res.Success)
	assert.Equal(t, billing.OutcomeNoop, res.Outcome)
	assert.Len(t, f.transactions(t), 2)

	// A later successful payment reactivates the subscription.
	res = f.svc.Handle(ctx, event(billing.EventPaymentProcessed, sub.ID, "evt-3"))
	require.True(t, res.Success, res.Message)
	assert.Equal(t, subscription.StatusActive, res.Subscription.Status)
}

func TestService_Handle_Cancelled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	sub := f.subscribe(t)

	res := f.svc.Handle(ctx, event(billing.EventSubscriptionCancelled, sub.ID, ""))
	require.True(t, res.Success, res.Message)
	assert.Equal(t, billing.OutcomeApplied, res.Outcome)
	assert.Equal(t, subscription.StatusCancelled, res.Subscription.Status)
	assert.NotNil(t, res.Subscription.CancelledAt)

	res = f.svc.Handle(ctx, event(billing.EventSubscriptionCancelled, sub.ID, ""))
	require.True(t, res.Success)
	assert.Equal(t, billing.OutcomeNoop, res.Outcome)

	res = f.svc.Handle(ctx, event(billing.EventPaymentProcessed, sub.ID, "evt-late"))
	assert.False(t, res.Success)
	assert.Equal(t, billing.OutcomeRejected, res.Outcome)
	require.ErrorIs(t, res.Err, billing.ErrNotPayable)
	assert.Empty(t, f.transactions(t))
}

func TestService_Handle_Rejections(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	sub := f.subscribe(t)

	wrongUser := event(billing.EventPaymentProcessed, sub.ID, "")
	wrongUser.UserID = "intruder"

	noTimestamp := event(billing.EventPaymentProcessed, sub.ID, "")
	noTimestamp.Timestamp = time.Time{}

	tests := []struct {
		name string
		ev   billing.Event
		err  error
	}{
		{name: "unknown type", ev: event("refund_issued", sub.ID, ""), err: billing.ErrInvalidEvent},
		{name: "missing subscription id", ev: event(billing.EventPaymentProcessed, "", ""), err: billing.ErrInvalidEvent},
		{name: "missing timestamp", ev: noTimestamp, err: billing.ErrInvalidEvent},
		{name: "unknown subscription", ev: event(billing.EventPaymentProcessed, "missing", ""), err: billing.ErrSubscriptionNotFound},
		{name: "foreign user", ev: wrongUser, err: billing.ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.svc.Handle(ctx, tt.ev)
			assert.False(t, res.Success)
			assert.Equal(t, billing.OutcomeRejected, res.Outcome)
			require.ErrorIs(t, res.Err, tt.err)
		})
	}

	got, err := f.subs.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusPending, got.Status)
	assert.Empty(t, f.transactions(t))
}

func TestService_Checkout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	in := subscription.CreateInput{UserID: "u1", PlanID: "basic", PaymentMethod: "card"}

	t.Run("paid", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, billing.WithAttempter(payment.Fixed(true)))

		res, err := f.svc.Checkout(ctx, in)
		require.NoError(t, err)
		assert.True(t, res.Paid)
		assert.Equal(t, subscription.StatusActive, res.Subscription.Status)
		assert.Equal(t, ledger.StatusCompleted, res.Transaction.Status)
		assert.Equal(t, []bool{true}, f.metrics.payments)
	})

	t.Run("declined then retried", func(t *testing.T) {
		t.Parallel()
		declined := true
		var mu sync.Mutex
		attempter := payment.Func(func(context.Context, string, money.Money) (bool, error) {
			mu.Lock()
			defer mu.Unlock()
			ok := !declined
			declined = false
			return ok, nil
		})
		f := newFixture(t, billing.WithAttempter(attempter))

		res, err := f.svc.Checkout(ctx, in)
		require.NoError(t, err)
		assert.False(t, res.Paid)
		assert.Equal(t, subscription.StatusPaymentFailed, res.Subscription.Status)
		assert.Equal(t, ledger.StatusFailed, res.Transaction.Status)

		retry, err := f.svc.RetryPayment(ctx, res.Subscription.ID)
		require.NoError(t, err)
		assert.True(t, retry.Paid)
		assert.Equal(t, subscription.StatusActive, retry.Subscription.Status)
		assert.NotEqual(t, res.Transaction.ID, retry.Transaction.ID)
		assert.Len(t, f.transactions(t), 2)

		_, err = f.svc.RetryPayment(ctx, res.Subscription.ID)
		require.ErrorIs(t, err, billing.ErrNotPayable)
	})

	t.Run("unknown plan", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, billing.WithAttempter(payment.Fixed(true)))
		_, err := f.svc.Checkout(ctx, subscription.CreateInput{UserID: "u1", PlanID: "gold"})
		require.ErrorIs(t, err, subscription.ErrPlanNotFound)
		assert.Empty(t, f.transactions(t))
	})

	t.Run("no attempter", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.svc.Checkout(ctx, in)
		require.ErrorIs(t, err, billing.ErrNoAttempter)
	})

	t.Run("attempter error leaves payment pending", func(t *testing.T) {
		t.Parallel()
		gatewayDown := errors.New("gateway unavailable")
		f := newFixture(t, billing.WithAttempter(payment.Func(func(context.Context, string, money.Money) (bool, error) {
			return false, gatewayDown
		})))

		res, err := f.svc.Checkout(ctx, in)
		require.ErrorIs(t, err, billing.ErrPaymentAttempt)
		require.ErrorIs(t, err, gatewayDown)
		assert.Equal(t, ledger.StatusPending, res.Transaction.Status)
		assert.Equal(t, subscription.StatusPending, res.Subscription.Status)
	})
}

func TestService_ChargeRenewal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("paid renewal extends the period", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, billing.WithAttempter(payment.Fixed(true)))
		first, err := f.svc.Checkout(ctx, subscription.CreateInput{UserID: "u1", PlanID: "basic"})
		require.NoError(t, err)

		res, err := f.svc.ChargeRenewal(ctx, first.Subscription.ID)
		require.NoError(t, err)
		assert.True(t, res.Paid)
		assert.Equal(t, subscription.StatusActive, res.Subscription.Status)
		assert.Equal(t,
			first.Subscription.NextPeriodEnd(1),
			res.Subscription.CurrentPeriodEnd,
		)
		assert.Len(t, f.transactions(t), 2)
	})

	t.Run("declined renewal marks payment failed", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, billing.WithAttempter(payment.Fixed(false)))
		sub := f.subscribe(t)
		_, err := f.subs.Activate(ctx, sub.ID)
		require.NoError(t, err)

		res, err := f.svc.ChargeRenewal(ctx, sub.ID)
		require.NoError(t, err)
		assert.False(t, res.Paid)
		assert.Equal(t, subscription.StatusPaymentFailed, res.Subscription.Status)
		assert.Equal(t, sub.CurrentPeriodEnd, res.Subscription.CurrentPeriodEnd)
	})

	t.Run("cancelled subscription is not payable", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, billing.WithAttempter(payment.Fixed(true)))
		sub := f.subscribe(t)
		_, err := f.subs.Cancel(ctx, sub.ID)
		require.NoError(t, err)

		_, err = f.svc.ChargeRenewal(ctx, sub.ID)
		require.ErrorIs(t, err, billing.ErrNotPayable)
		assert.Empty(t, f.transactions(t))
	})

	t.Run("unknown subscription", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, billing.WithAttempter(payment.Fixed(true)))
		_, err := f.svc.ChargeRenewal(ctx, "missing")
		require.ErrorIs(t, err, billing.ErrSubscriptionNotFound)
	})
}

func TestService_Recover(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	sub := f.subscribe(t)

	// Crash after the ledger write: the transaction is completed but the
	// subscription never moved.
	tx, err := f.ledger.Record(ctx, ledger.RecordInput{
		SubscriptionID: sub.ID, UserID: sub.UserID, PlanID: sub.PlanID, Amount: sub.Price.Amount,
	})
	require.NoError(t, err)
	halfDone, err := f.journal.Open(ctx, billing.Intent{
		Kind:           billing.KindCheckout,
		SubscriptionID: sub.ID,
		TransactionID:  tx.ID,
		Outcome:        ledger.StatusCompleted,
	})
	require.NoError(t, err)
	_, err = f.ledger.Complete(ctx, tx.ID)
	require.NoError(t, err)

	orphan, err := f.journal.Open(ctx, billing.Intent{
		Kind:           billing.KindWebhook,
		SubscriptionID: sub.ID,
		TransactionID:  "gone",
		Outcome:        ledger.StatusCompleted,
	})
	require.NoError(t, err)

	report, err := f.svc.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, billing.RecoveryReport{Applied: 1, Abandoned: 1}, report)
	assert.Equal(t, 1, f.metrics.applied)

	got, err := f.subs.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, got.Status)

	closed, err := f.journal.Get(ctx, halfDone.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.IntentApplied, closed.State)

	dropped, err := f.journal.Get(ctx, orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.IntentAbandoned, dropped.State)
	assert.NotEmpty(t, dropped.Note)

	pending, err := f.journal.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	report, err = f.svc.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, billing.RecoveryReport{}, report)
}

func TestService_Recover_RenewalIsNotRepeated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	sub := f.subscribe(t)

	tx, err := f.ledger.Record(ctx, ledger.RecordInput{
		SubscriptionID: sub.ID, UserID: sub.UserID, PlanID: sub.PlanID, Amount: sub.Price.Amount,
	})
	require.NoError(t, err)
	target := sub.NextPeriodEnd(1)
	_, err = f.journal.Open(ctx, billing.Intent{
		Kind:            billing.KindRenewal,
		SubscriptionID:  sub.ID,
		TransactionID:   tx.ID,
		Outcome:         ledger.StatusCompleted,
		RenewIntervals:  1,
		TargetPeriodEnd: &target,
	})
	require.NoError(t, err)

	// Both writes landed; only closing the intent was lost.
	_, err = f.ledger.Complete(ctx, tx.ID)
	require.NoError(t, err)
	_, err = f.subs.Renew(ctx, sub.ID, 1)
	require.NoError(t, err)

	report, err := f.svc.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Applied)

	got, err := f.subs.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, target, got.CurrentPeriodEnd)
}

func TestService_Handle_ReplayFinishesOpenIntent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	sub := f.subscribe(t)

	tx, err := f.ledger.Record(ctx, ledger.RecordInput{
		SubscriptionID: sub.ID, UserID: sub.UserID, PlanID: sub.PlanID, Amount: sub.Price.Amount,
	})
	require.NoError(t, err)
	_, err = f.journal.Open(ctx, billing.Intent{
		Kind:           billing.KindWebhook,
		SubscriptionID: sub.ID,
		TransactionID:  tx.ID,
		Outcome:        ledger.StatusCompleted,
		EventID:        "evt-9",
	})
	require.NoError(t, err)
	_, err = f.ledger.Finalize(ctx, tx.ID, ledger.FinalizeInput{Status: ledger.StatusCompleted, ExternalRef: "evt-9"})
	require.NoError(t, err)

	res := f.svc.Handle(ctx, event(billing.EventPaymentProcessed, sub.ID, "evt-9"))
	require.True(t, res.Success, res.Message)
	assert.Equal(t, billing.OutcomeDuplicate, res.Outcome)
	assert.Equal(t, subscription.StatusActive, res.Subscription.Status)

	pending, err := f.journal.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Len(t, f.transactions(t), 1)
}
