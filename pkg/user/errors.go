package user

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email is already registered")
	ErrUserInactive = errors.New("user is deactivated")
	ErrUserInUse    = errors.New("user has subscriptions")
)
