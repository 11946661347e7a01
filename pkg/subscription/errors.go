package subscription

import "errors"

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrInvalidState         = errors.New("operation not allowed in current subscription state")
	ErrPlanNotFound         = errors.New("plan not found or inactive")
	ErrUserNotFound         = errors.New("user not found or inactive")
	ErrInvalidIntervalCount = errors.New("interval count must be at least 1")
)
