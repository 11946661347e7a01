package webhook

import "errors"

var (
	ErrMissingSecret    = errors.New("webhook secret is required")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
	ErrMissingSignature = errors.New("missing webhook signature headers")
	ErrInvalidSignature = errors.New("webhook signature mismatch")
	ErrSignatureExpired = errors.New("webhook signature timestamp outside allowed window")
	ErrPayloadTooLarge  = errors.New("webhook payload too large")
)
