// Package ledger records payment and refund transactions.
//
// A payment is recorded pending and finalized exactly once, to completed or
// failed; CompletedAt is set precisely when the status is final. Finalizing
// again returns ErrAlreadyFinalized. After that only metadata can be added,
// and never overwritten.
//
// Refunds are separate completed transactions linked to the payment through
// RelatedID. The ledger does not touch subscriptions; keeping payments and
// subscription state in step is the billing reconciler's job.
package ledger
