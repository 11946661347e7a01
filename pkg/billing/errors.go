package billing

import "errors"

var (
	ErrInvalidEvent         = errors.New("invalid webhook event")
	ErrUnauthorized         = errors.New("subscription does not belong to user")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrNotPayable           = errors.New("subscription cannot take a payment in its current state")
	ErrPaymentAttempt       = errors.New("payment attempt failed to complete")
	ErrNoAttempter          = errors.New("no payment attempter configured")
	ErrIntentConflict       = errors.New("intent conflicts with recorded state")
	ErrIntentNotFound       = errors.New("intent not found")
)
