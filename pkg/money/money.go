package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Money represents a monetary amount in the smallest currency unit.
// For example, $10.99 USD is Amount: 1099, Currency: "USD".
type Money struct {
	Amount   int64  `json:"amount"`   // Amount in smallest currency unit (cents for USD)
	Currency string `json:"currency"` // ISO 4217 currency code
}

// New validates the currency code and returns a Money value with the code upper-cased.
func New(amount int64, code string) (Money, error) {
	m := Money{Amount: amount, Currency: strings.ToUpper(strings.TrimSpace(code))}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// MustNew is like New but panics on an invalid currency.
func MustNew(amount int64, code string) Money {
	m, err := New(amount, code)
	if err != nil {
		panic(err)
	}
	return m
}

// Validate checks the currency code and rejects negative amounts.
func (m Money) Validate() error {
	if _, err := ParseCurrency(m.Currency); err != nil {
		return err
	}
	if m.Amount < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

// Add sums two amounts of the same currency.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, errors.Join(ErrCurrencyMismatch, fmt.Errorf("%s vs %s", m.Currency, other.Currency))
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Major returns the amount in major units (dollars for USD).
func (m Money) Major() float64 {
	return float64(m.Amount) / math.Pow10(Scale(m.Currency))
}

// Format renders the amount for the given locale, e.g. "USD 1,234.50".
func (m Money) Format(tag language.Tag) string {
	p := message.NewPrinter(tag)
	return p.Sprintf("%s %v", m.Currency, number.Decimal(m.Major(), number.Scale(Scale(m.Currency))))
}

func (m Money) String() string {
	return m.Format(language.English)
}

// ParseCurrency validates an ISO 4217 code.
func ParseCurrency(code string) (currency.Unit, error) {
	if len(code) != 3 {
		return currency.Unit{}, errors.Join(ErrInvalidCurrency, fmt.Errorf("code %q", code))
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return currency.Unit{}, errors.Join(ErrInvalidCurrency, err)
	}
	return unit, nil
}

// Scale returns the number of minor-unit digits for a currency.
// Unknown codes default to 2.
func Scale(code string) int {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return scale
}
