// Package subscription is the lifecycle engine for customer subscriptions.
//
// Status moves only through the transition table:
//
//	pending        -> active | payment_failed | cancelled
//	active         -> payment_failed | cancelled | expired
//	payment_failed -> active | cancelled
//
// cancelled and expired are terminal and nothing re-enters pending. Renew is
// allowed from every non-terminal state and always lands in active.
//
// Activate, MarkPaymentFailed and Cancel are idempotent: repeating them on a
// subscription already in the target state returns it unchanged without a
// write. Activate never moves the period end; Renew extends it from its
// current value, so a renewal never shortens a paid period.
//
// Entitlement is derived, not stored: IsActive is true only while the status
// is active and the period end is in the future. ExpireDue records ended
// periods on demand; there are no timers.
//
// Price and billing interval are copied from the catalog plan at creation.
package subscription
