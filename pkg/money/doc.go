// Package money represents amounts in minor currency units and converts them
// for display with a fixed rate table.
//
// Amounts are integers (cents for USD) and currency codes are validated as
// ISO 4217 through golang.org/x/text/currency. Conversion is presentation only:
// settlement never goes through Rates.
//
//	price := money.MustNew(1999, "USD")
//	uah, _ := money.DefaultRates().Convert(price, "UAH") // 79960 UAH minor units
package money
