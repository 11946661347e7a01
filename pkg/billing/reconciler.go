package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrymomot/subledger/pkg/ledger"
	"github.com/dmitrymomot/subledger/pkg/logger"
	"github.com/dmitrymomot/subledger/pkg/subscription"
)

// Result reports what Handle did. Err carries the cause of a failure for
// callers that map it to a status code.
type Result struct {
	Success      bool                       `json:"success"`
	Message      string                     `json:"message"`
	Outcome      string                     `json:"outcome"`
	Subscription *subscription.Subscription `json:"subscription,omitempty"`
	Transaction  *ledger.Transaction        `json:"transaction,omitempty"`
	Err          error                      `json:"-"`
}

// Handle applies a provider event. The event shape is checked before any
// read or write. Replays are safe: an event id already on a transaction,
// a payment_processed for an active subscription with nothing pending, or a
// payment_failed for a subscription already in payment_failed change nothing.
func (s *Service) Handle(ctx context.Context, ev Event) Result {
	ctx = logger.WithAttrs(ctx, logger.EventType(string(ev.Type)), logger.SubscriptionID(ev.SubscriptionID))
	if ev.ID != "" {
		ctx = logger.WithAttrs(ctx, logger.EventID(ev.ID))
	}

	res := s.handle(ctx, ev)
	s.metrics.EventHandled(ev.Type, res.Outcome)

	switch res.Outcome {
	case OutcomeError:
		s.logger.ErrorContext(ctx, "webhook event failed", logger.Error(res.Err))
	case OutcomeRejected:
		s.logger.WarnContext(ctx, "webhook event rejected", logger.Error(res.Err))
	default:
		s.logger.InfoContext(ctx, "webhook event handled", "outcome", res.Outcome)
	}
	return res
}

func (s *Service) handle(ctx context.Context, ev Event) Result {
	if err := ev.Validate(); err != nil {
		return rejected("invalid event", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sub, err := s.subs.Get(ctx, ev.SubscriptionID)
	if err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			return rejected("subscription not found", ErrSubscriptionNotFound)
		}
		return failed(err)
	}
	if sub.UserID != ev.UserID {
		return rejected("subscription does not belong to user", ErrUnauthorized)
	}

	switch ev.Type {
	case EventPaymentProcessed:
		return s.handlePayment(ctx, ev, sub, ledger.StatusCompleted)
	case EventPaymentFailed:
		return s.handlePayment(ctx, ev, sub, ledger.StatusFailed)
	default:
		return s.handleCancel(ctx, sub)
	}
}

func (s *Service) handlePayment(ctx context.Context, ev Event, sub subscription.Subscription, outcome ledger.Status) Result {
	if ev.ID != "" {
		tx, err := s.ledger.FindByExternalRef(ctx, ev.ID)
		if err == nil {
			return s.replayed(ctx, sub, tx)
		}
		if !errors.Is(err, ledger.ErrTransactionNotFound) {
			return failed(err)
		}
	}

	event, target := subscription.EventActivate, subscription.StatusActive
	if outcome == ledger.StatusFailed {
		event, target = subscription.EventPaymentFailed, subscription.StatusPaymentFailed
	}

	tx, err := s.ledger.LatestPending(ctx, sub.ID)
	hasPending := err == nil
	if err != nil && !errors.Is(err, ledger.ErrTransactionNotFound) {
		return failed(err)
	}

	if sub.Status == target && !hasPending {
		return Result{
			Success:      true,
			Message:      fmt.Sprintf("subscription already %s", target),
			Outcome:      OutcomeNoop,
			Subscription: &sub,
		}
	}
	if sub.Status != target && !s.subs.CanFire(ctx, sub, event) {
		return rejected(fmt.Sprintf("subscription is %s", sub.Status),
			errors.Join(ErrNotPayable, subscription.ErrInvalidState))
	}

	if !hasPending {
		tx, err = s.ledger.Record(ctx, recordInput(sub, "webhook "+string(ev.Type)))
		if err != nil {
			return failed(err)
		}
	}

	reason, _ := ev.Metadata["reason"].(string)
	updated, settled, err := s.settle(ctx, settlement{
		kind:    KindWebhook,
		sub:     sub,
		tx:      tx,
		outcome: outcome,
		eventID: ev.ID,
		reason:  reason,
	})
	if err != nil {
		if errors.Is(err, ErrIntentConflict) {
			return rejected("event conflicts with recorded state", err)
		}
		return failed(err)
	}

	msg := "payment completed, subscription active"
	if outcome == ledger.StatusFailed {
		msg = "payment failed, subscription marked payment_failed"
	}
	return Result{
		Success:      true,
		Message:      msg,
		Outcome:      OutcomeApplied,
		Subscription: &updated,
		Transaction:  &settled,
	}
}

// replayed answers a repeated event. If the first delivery stopped halfway,
// its open intent is finished here.
func (s *Service) replayed(ctx context.Context, sub subscription.Subscription, tx ledger.Transaction) Result {
	open, err := s.journal.OpenForTransaction(ctx, tx.ID)
	if err != nil {
		return failed(err)
	}
	for _, in := range open {
		updated, settled, err := s.apply(ctx, in)
		if err != nil && !errors.Is(err, ErrIntentConflict) {
			return failed(err)
		}
		if err == nil {
			sub, tx = updated, settled
		}
	}
	return Result{
		Success:      true,
		Message:      "event already processed",
		Outcome:      OutcomeDuplicate,
		Subscription: &sub,
		Transaction:  &tx,
	}
}

func (s *Service) handleCancel(ctx context.Context, sub subscription.Subscription) Result {
	if sub.Status == subscription.StatusCancelled {
		return Result{Success: true, Message: "subscription already cancelled", Outcome: OutcomeNoop, Subscription: &sub}
	}
	updated, err := s.subs.Cancel(ctx, sub.ID)
	if err != nil {
		if errors.Is(err, subscription.ErrInvalidState) {
			return rejected(fmt.Sprintf("subscription is %s", sub.Status), err)
		}
		return failed(err)
	}
	return Result{Success: true, Message: "subscription cancelled", Outcome: OutcomeApplied, Subscription: &updated}
}

func recordInput(sub subscription.Subscription, description string) ledger.RecordInput {
	return ledger.RecordInput{
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		PlanID:         sub.PlanID,
		Amount:         sub.Price.Amount,
		Currency:       sub.Price.Currency,
		PaymentMethod:  sub.PaymentMethod,
		Description:    description,
	}
}

func rejected(msg string, err error) Result {
	return Result{Success: false, Message: msg, Outcome: OutcomeRejected, Err: err}
}

func failed(err error) Result {
	return Result{Success: false, Message: "internal error", Outcome: OutcomeError, Err: err}
}
