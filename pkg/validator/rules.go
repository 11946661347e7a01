package validator

import (
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/currency"
)

// RequiredString validates that a string is not empty after trimming whitespace.
func RequiredString(field, value string) Rule {
	return Rule{
		Check: func() bool {
			return strings.TrimSpace(value) != ""
		},
		Error: ValidationError{Field: field, Message: "field is required", Code: "required"},
	}
}

// MaxLenString limits a string to max runes.
func MaxLenString(field, value string, max int) Rule {
	return Rule{
		Check: func() bool {
			return utf8.RuneCountInString(value) <= max
		},
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters long", max), Code: "max_length"},
	}
}

// ValidEmail accepts a bare address with a dotted domain.
func ValidEmail(field, value string) Rule {
	return Rule{
		Check: func() bool {
			addr, err := mail.ParseAddress(value)
			if err != nil || addr.Address != strings.TrimSpace(value) {
				return false
			}
			local, domain, ok := strings.Cut(addr.Address, "@")
			if !ok || local == "" {
				return false
			}
			if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
				return false
			}
			for part := range strings.SplitSeq(domain, ".") {
				if part == "" {
					return false
				}
			}
			return true
		},
		Error: ValidationError{Field: field, Message: "must be a valid email address", Code: "email"},
	}
}

// OneOf validates that value is one of the allowed options.
func OneOf[T comparable](field string, value T, options []T) Rule {
	return Rule{
		Check: func() bool {
			return slices.Contains(options, value)
		},
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be one of %v", options), Code: "one_of"},
	}
}

// NonNegative validates value >= 0.
func NonNegative[T Numeric](field string, value T) Rule {
	return Rule{
		Check: func() bool {
			return value >= 0
		},
		Error: ValidationError{Field: field, Message: "cannot be negative", Code: "non_negative"},
	}
}

// ValidCurrencyCode validates an upper-case ISO 4217 code.
func ValidCurrencyCode(field, value string) Rule {
	return Rule{
		Check: func() bool {
			if len(value) != 3 || strings.ToUpper(value) != value {
				return false
			}
			_, err := currency.ParseISO(value)
			return err == nil
		},
		Error: ValidationError{Field: field, Message: "must be a valid ISO 4217 currency code", Code: "currency"},
	}
}

// RequiredTime rejects the zero time.
func RequiredTime(field string, value time.Time) Rule {
	return Rule{
		Check: func() bool {
			return !value.IsZero()
		},
		Error: ValidationError{Field: field, Message: "field is required", Code: "required"},
	}
}

// TimeBefore validates value < limit.
func TimeBefore(field string, value, limit time.Time) Rule {
	return Rule{
		Check: func() bool {
			return value.Before(limit)
		},
		Error: ValidationError{Field: field, Message: fmt.Sprintf("must be before %s", limit.UTC().Format(time.RFC3339)), Code: "before"},
	}
}

// UniqueStrings rejects duplicate entries.
func UniqueStrings(field string, values []string) Rule {
	return Rule{
		Check: func() bool {
			seen := make(map[string]struct{}, len(values))
			for _, v := range values {
				if _, ok := seen[v]; ok {
					return false
				}
				seen[v] = struct{}{}
			}
			return true
		},
		Error: ValidationError{Field: field, Message: "must not contain duplicates", Code: "unique"},
	}
}
