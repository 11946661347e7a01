// Package billing keeps subscriptions and the payment ledger consistent.
//
// Every settlement (a webhook event, a checkout charge, a retry or a renewal)
// finalizes a transaction and moves a subscription. The two writes go to
// different collections, so each settlement is first written to a Journal as
// an open Intent and closed once both writes are in. Service.Recover finishes
// intents left open by a crash; replayed webhook events finish them too.
//
// Basic usage:
//
//	journal := billing.NewJournal(intents, time.Now)
//	svc := billing.NewService(subs, ledgerSvc, journal,
//		billing.WithAttempter(payment.Fixed(true)),
//		billing.WithLogger(log),
//	)
//	if _, err := svc.Recover(ctx); err != nil {
//		return err
//	}
//	res := svc.Handle(ctx, event)
//
// Handle never returns an error; the Result carries the outcome and, on
// failure, the cause in Result.Err.
package billing
