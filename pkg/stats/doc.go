// Package stats derives revenue reports from the ledger.
//
// All amounts are minor units of the rate table's base currency. Payments in
// other currencies are converted at the fixed display rates; a currency
// without a rate fails the report with money.ErrUnknownRate.
//
// Revenue counts completed payments only. Refunds are reported separately and
// subtracted in NetRevenue. Monthly buckets use the completion time in UTC.
// The aggregator only reads.
package stats
