package portalauth

import "errors"

// Error texts are user facing; the HTTP layer uppercases them.
var (
	ErrUsernameExists  = errors.New("username already exists")
	ErrEmailExists     = errors.New("email already exists")
	ErrUserNotFound    = errors.New("no user found by username")
	ErrEmailNotFound   = errors.New("no user found by email")
	ErrBadCredentials  = errors.New("username / password incorrect. please try again")
	ErrAccountLocked   = errors.New("your account has been locked. please contact administration")
	ErrAccountDisabled = errors.New("your account has been disabled. if this is an error, please contact administration")
	ErrInvalidInput    = errors.New("invalid input")
)
