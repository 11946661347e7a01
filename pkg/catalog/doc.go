// Package catalog holds the subscription plans customers can buy.
//
// A Plan carries a price in minor units and a billing interval (monthly or
// yearly). Plans are never hard-deleted while subscriptions refer to them:
// Deactivate hides a plan from new checkouts, and a ReferenceChecker wired
// from the subscription engine blocks Delete and price or interval changes
// with ErrPlanInUse. Subscriptions snapshot the price at creation, so catalog
// edits never rewrite history.
//
// Interval.Advance is the period arithmetic used across the module; month
// ends are clamped (Jan 31 + 1 month = Feb 28).
//
// Plans can be seeded at startup from YAML with LoadSeedFile and Seed.
package catalog
