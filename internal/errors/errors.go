package errors

import (
	"errors"
	"fmt"
)

// Error catalogue for the dashboard core
var (
	// Authentication errors, surfaced to the caller of SignIn / SignUp
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSignUpRejected     = errors.New("sign up rejected")
	ErrUserExists         = errors.New("user already exists")
	ErrUnsupported        = errors.New("unsupported operation")

	// Profile resolution errors, logged and degraded to "no profile"
	ErrProfileNotFound      = errors.New("profile not found")
	ErrProfileLookupTimeout = errors.New("profile lookup timed out")
	ErrInvalidRole          = errors.New("invalid role")

	// Session errors
	ErrInvalidToken = errors.New("invalid token")
	ErrNoSession    = errors.New("no active session")

	// Channel errors, logged and reflected in the connection state
	ErrChannelClosed    = errors.New("channel closed")
	ErrChannelSubscribe = errors.New("channel subscribe failed")
	ErrBroadcast        = errors.New("broadcast failed")
	ErrInvalidEvent     = errors.New("invalid event payload")

	// Storage errors, surfaced as a failure of the specific operation
	ErrStorage        = errors.New("storage failure")
	ErrObjectNotFound = errors.New("object not found")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join is errors.Join, re-exported so callers need a single errors import
func Join(errs ...error) error {
	return errors.Join(errs...)
}
