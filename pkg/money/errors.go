package money

import "errors"

var (
	ErrInvalidCurrency  = errors.New("invalid currency code")
	ErrNegativeAmount   = errors.New("amount cannot be negative")
	ErrCurrencyMismatch = errors.New("currency mismatch")
	ErrUnknownRate      = errors.New("no display rate for currency")
	ErrInvalidRates     = errors.New("invalid display rates")
)
