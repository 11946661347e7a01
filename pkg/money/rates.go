package money

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// DefaultBase is the currency display rates are quoted in.
const DefaultBase = "UAH"

// Rates holds fixed display rates: how many base units one unit of a currency is worth.
// They are used for presentation only and never for settlement.
type Rates struct {
	base  string
	rates map[string]float64
}

// DefaultRates returns the built-in display rates: 1 USD = 40 UAH, 1 EUR = 45 UAH.
func DefaultRates() Rates {
	return Rates{
		base: DefaultBase,
		rates: map[string]float64{
			DefaultBase: 1,
			"USD":       40,
			"EUR":       45,
		},
	}
}

// NewRates builds a rate table for base. The base currency always has rate 1.
func NewRates(base string, perUnit map[string]float64) (Rates, error) {
	base = strings.ToUpper(base)
	if _, err := ParseCurrency(base); err != nil {
		return Rates{}, err
	}
	r := Rates{base: base, rates: map[string]float64{base: 1}}
	for code, rate := range perUnit {
		code = strings.ToUpper(code)
		if _, err := ParseCurrency(code); err != nil {
			return Rates{}, err
		}
		if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
			return Rates{}, errors.Join(ErrInvalidRates, fmt.Errorf("rate for %s must be positive", code))
		}
		if code != base {
			r.rates[code] = rate
		}
	}
	return r, nil
}

// ParseRates parses "USD:40,EUR:45" into a rate table quoted in base.
func ParseRates(base, spec string) (Rates, error) {
	perUnit := map[string]float64{}
	for pair := range strings.SplitSeq(spec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		code, value, ok := strings.Cut(pair, ":")
		if !ok {
			return Rates{}, errors.Join(ErrInvalidRates, fmt.Errorf("pair %q", pair))
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return Rates{}, errors.Join(ErrInvalidRates, err)
		}
		perUnit[strings.TrimSpace(code)] = rate
	}
	return NewRates(base, perUnit)
}

// Base returns the quoting currency.
func (r Rates) Base() string {
	return r.base
}

// Currencies lists the currencies with a known rate, sorted.
func (r Rates) Currencies() []string {
	codes := make([]string, 0, len(r.rates))
	for code := range r.rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Convert converts m to the target currency, rounding to the nearest minor unit.
func (r Rates) Convert(m Money, to string) (Money, error) {
	to = strings.ToUpper(to)
	if m.Currency == to {
		return m, nil
	}
	fromRate, ok := r.rates[m.Currency]
	if !ok {
		return Money{}, errors.Join(ErrUnknownRate, fmt.Errorf("currency %s", m.Currency))
	}
	toRate, ok := r.rates[to]
	if !ok {
		return Money{}, errors.Join(ErrUnknownRate, fmt.Errorf("currency %s", to))
	}

	baseValue := m.Major() * fromRate
	minor := baseValue / toRate * math.Pow10(Scale(to))
	return Money{Amount: int64(math.Round(minor)), Currency: to}, nil
}

// ConvertAll converts m into every known currency, keyed by code.
func (r Rates) ConvertAll(m Money) map[string]Money {
	out := make(map[string]Money, len(r.rates))
	for code := range r.rates {
		if converted, err := r.Convert(m, code); err == nil {
			out[code] = converted
		}
	}
	return out
}
