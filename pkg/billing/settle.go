package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrymomot/subledger/pkg/ledger"
	"github.com/dmitrymomot/subledger/pkg/logger"
	"github.com/dmitrymomot/subledger/pkg/subscription"
)

type settlement struct {
	kind    string
	sub     subscription.Subscription
	tx      ledger.Transaction
	outcome ledger.Status
	renew   int
	eventID string
	reason  string
}

// settle journals the settlement, then applies it. Callers hold s.mu.
func (s *Service) settle(ctx context.Context, st settlement) (subscription.Subscription, ledger.Transaction, error) {
	in := Intent{
		Kind:           st.kind,
		SubscriptionID: st.sub.ID,
		TransactionID:  st.tx.ID,
		Outcome:        st.outcome,
		EventID:        st.eventID,
		Reason:         st.reason,
	}
	if st.outcome == ledger.StatusCompleted && st.renew > 0 {
		target := st.sub.NextPeriodEnd(st.renew)
		in.RenewIntervals = st.renew
		in.TargetPeriodEnd = &target
	}

	intent, err := s.journal.Open(ctx, in)
	if err != nil {
		return subscription.Subscription{}, ledger.Transaction{}, err
	}

	sub, tx, err := s.apply(ctx, intent)
	if err != nil {
		return subscription.Subscription{}, ledger.Transaction{}, err
	}
	s.metrics.PaymentSettled(st.kind, tx.Status == ledger.StatusCompleted, tx.Money())
	return sub, tx, nil
}

// apply finalizes the transaction and moves the subscription as the intent
// says, skipping whatever is already done, then closes the intent. An intent
// that can no longer apply is abandoned and ErrIntentConflict returned; any
// other error leaves it open for Recover.
func (s *Service) apply(ctx context.Context, in Intent) (subscription.Subscription, ledger.Transaction, error) {
	ctx = logger.WithAttrs(ctx, logger.IntentID(in.ID), logger.TransactionID(in.TransactionID))

	tx, err := s.ledger.Get(ctx, in.TransactionID)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			return s.abandon(ctx, in, err)
		}
		return subscription.Subscription{}, ledger.Transaction{}, err
	}

	switch {
	case tx.Status == ledger.StatusPending:
		tx, err = s.ledger.Finalize(ctx, tx.ID, ledger.FinalizeInput{
			Status:      in.Outcome,
			ExternalRef: in.EventID,
			Reason:      in.Reason,
		})
		if err != nil {
			if errors.Is(err, ledger.ErrExternalRefTaken) || errors.Is(err, ledger.ErrAlreadyFinalized) {
				return s.abandon(ctx, in, err)
			}
			return subscription.Subscription{}, ledger.Transaction{}, err
		}
	case tx.Status != in.Outcome:
		return s.abandon(ctx, in, fmt.Errorf("transaction already %s", tx.Status))
	}

	sub, err := s.transition(ctx, in)
	if err != nil {
		if errors.Is(err, subscription.ErrInvalidState) || errors.Is(err, subscription.ErrSubscriptionNotFound) {
			return s.abandon(ctx, in, err)
		}
		return subscription.Subscription{}, ledger.Transaction{}, err
	}

	if _, err := s.journal.MarkApplied(ctx, in.ID); err != nil {
		// Both writes are in; Recover closes the intent without repeating them.
		s.logger.ErrorContext(ctx, "failed to close settlement intent", logger.Error(err))
		return sub, tx, err
	}
	return sub, tx, nil
}

func (s *Service) transition(ctx context.Context, in Intent) (subscription.Subscription, error) {
	if in.Outcome == ledger.StatusFailed {
		return s.subs.MarkPaymentFailed(ctx, in.SubscriptionID)
	}
	if in.RenewIntervals == 0 {
		return s.subs.Activate(ctx, in.SubscriptionID)
	}

	sub, err := s.subs.Get(ctx, in.SubscriptionID)
	if err != nil {
		return subscription.Subscription{}, err
	}
	if in.TargetPeriodEnd != nil && !sub.CurrentPeriodEnd.Before(*in.TargetPeriodEnd) {
		// Renewal already landed before the intent was closed.
		return sub, nil
	}
	return s.subs.Renew(ctx, in.SubscriptionID, in.RenewIntervals)
}

func (s *Service) abandon(ctx context.Context, in Intent, cause error) (subscription.Subscription, ledger.Transaction, error) {
	if _, err := s.journal.Abandon(ctx, in.ID, cause.Error()); err != nil {
		return subscription.Subscription{}, ledger.Transaction{}, errors.Join(err, cause)
	}
	s.logger.WarnContext(ctx, "settlement intent abandoned", logger.Error(cause))
	return subscription.Subscription{}, ledger.Transaction{}, errors.Join(ErrIntentConflict, cause)
}
