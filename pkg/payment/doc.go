// Package payment defines how a charge is attempted.
//
// The billing flow depends only on Attempter. Random stands in for a gateway
// in demos; Fixed and Func give tests a deterministic outcome.
package payment
