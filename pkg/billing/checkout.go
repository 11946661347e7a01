package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrymomot/subledger/pkg/ledger"
	"github.com/dmitrymomot/subledger/pkg/logger"
	"github.com/dmitrymomot/subledger/pkg/subscription"
)

// ChargeResult is the state after a payment attempt.
type ChargeResult struct {
	Subscription subscription.Subscription `json:"subscription"`
	Transaction  ledger.Transaction        `json:"transaction"`
	Paid         bool                      `json:"paid"`
}

// Checkout creates a pending subscription, records its first payment and
// settles it with the attempter's outcome.
func (s *Service) Checkout(ctx context.Context, in subscription.CreateInput) (ChargeResult, error) {
	if s.attempter == nil {
		return ChargeResult{}, ErrNoAttempter
	}
	sub, err := s.subs.Create(ctx, in)
	if err != nil {
		return ChargeResult{}, err
	}
	tx, err := s.ledger.Record(ctx, recordInput(sub, "subscription checkout"))
	if err != nil {
		return ChargeResult{Subscription: sub}, err
	}
	return s.charge(ctx, KindCheckout, sub, tx, 0)
}

// RetryPayment charges a pending or payment_failed subscription again,
// reusing its latest pending transaction when there is one.
func (s *Service) RetryPayment(ctx context.Context, subscriptionID string) (ChargeResult, error) {
	if s.attempter == nil {
		return ChargeResult{}, ErrNoAttempter
	}
	sub, err := s.getSubscription(ctx, subscriptionID)
	if err != nil {
		return ChargeResult{}, err
	}
	if sub.Status != subscription.StatusPending && sub.Status != subscription.StatusPaymentFailed {
		return ChargeResult{}, errors.Join(ErrNotPayable, fmt.Errorf("subscription is %s", sub.Status))
	}

	tx, err := s.ledger.LatestPending(ctx, sub.ID)
	if errors.Is(err, ledger.ErrTransactionNotFound) {
		tx, err = s.ledger.Record(ctx, recordInput(sub, "payment retry"))
	}
	if err != nil {
		return ChargeResult{Subscription: sub}, err
	}
	return s.charge(ctx, KindRetry, sub, tx, 0)
}

// ChargeRenewal bills one more interval. On success the period is extended
// from its current end; on decline the subscription moves to payment_failed.
// Nothing calls it on a schedule.
func (s *Service) ChargeRenewal(ctx context.Context, subscriptionID string) (ChargeResult, error) {
	if s.attempter == nil {
		return ChargeResult{}, ErrNoAttempter
	}
	sub, err := s.getSubscription(ctx, subscriptionID)
	if err != nil {
		return ChargeResult{}, err
	}
	if !s.subs.CanFire(ctx, sub, subscription.EventRenew) {
		return ChargeResult{}, errors.Join(ErrNotPayable, fmt.Errorf("subscription is %s", sub.Status))
	}

	tx, err := s.ledger.Record(ctx, recordInput(sub, "subscription renewal"))
	if err != nil {
		return ChargeResult{Subscription: sub}, err
	}
	return s.charge(ctx, KindRenewal, sub, tx, 1)
}

// charge runs the payment attempt outside the lock, then settles. An
// attempter error leaves the transaction pending for a later retry.
func (s *Service) charge(ctx context.Context, kind string, sub subscription.Subscription, tx ledger.Transaction, renew int) (ChargeResult, error) {
	ctx = logger.WithAttrs(ctx, logger.SubscriptionID(sub.ID), logger.TransactionID(tx.ID))

	ok, err := s.attempter.AttemptPayment(ctx, sub.ID, tx.Money())
	if err != nil {
		s.logger.ErrorContext(ctx, "payment attempt failed", logger.Error(err))
		return ChargeResult{Subscription: sub, Transaction: tx}, errors.Join(ErrPaymentAttempt, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.subs.Get(ctx, sub.ID)
	if err != nil {
		return ChargeResult{Subscription: sub, Transaction: tx}, err
	}

	st := settlement{kind: kind, sub: current, tx: tx, outcome: ledger.StatusCompleted, renew: renew}
	if !ok {
		st.outcome = ledger.StatusFailed
		st.renew = 0
		st.reason = "payment declined"
	}

	updated, settled, err := s.settle(ctx, st)
	if err != nil {
		return ChargeResult{Subscription: current, Transaction: tx}, err
	}

	s.logger.InfoContext(ctx, "payment settled", "kind", kind, "paid", ok)
	return ChargeResult{Subscription: updated, Transaction: settled, Paid: ok}, nil
}

func (s *Service) getSubscription(ctx context.Context, id string) (subscription.Subscription, error) {
	sub, err := s.subs.Get(ctx, id)
	if errors.Is(err, subscription.ErrSubscriptionNotFound) {
		return subscription.Subscription{}, errors.Join(ErrSubscriptionNotFound, err)
	}
	return sub, err
}
