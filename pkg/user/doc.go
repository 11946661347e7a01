// Package user is the directory of customers that subscriptions belong to.
//
// Users are stored in the "users" record store collection. Email addresses
// are unique and compared case-insensitively. Deactivated users are kept
// for audit; Verify reports them with ErrUserInactive so new subscriptions
// can be refused.
package user
