package user

import "errors"

// Repository-level errors
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("a user with that username already exists")
)

// Service-level errors
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountLocked      = errors.New("too many failed login attempts, please try again later")
	ErrPasswordMismatch   = errors.New("the two password fields didn't match")
	ErrWrongPassword      = errors.New("your old password was entered incorrectly")
	ErrUnauthorized       = errors.New("unauthorized access")
)
