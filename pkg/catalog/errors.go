package catalog

import "errors"

var (
	ErrPlanNotFound    = errors.New("plan not found")
	ErrPlanNameTaken   = errors.New("plan name is already used")
	ErrPlanInUse       = errors.New("plan is referenced by subscriptions")
	ErrInvalidInterval = errors.New("invalid billing interval")
	ErrInvalidSeed     = errors.New("invalid plan seed file")
)
