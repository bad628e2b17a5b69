package errors

import (
	"errors"
	"fmt"
)

// Common error types for the auth server
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")

	// Token errors
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrMissingToken        = errors.New("refresh token required")
	ErrStaleRefreshToken   = errors.New("stale refresh token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// Input errors
	ErrMissingFields = errors.New("email and password are required")

	// General errors
	ErrInternal = errors.New("internal error")
)

// BadRequestError carries a client-safe reason for rejecting malformed input.
type BadRequestError struct {
	Reason string
}

func (e *BadRequestError) Error() string {
	return e.Reason
}

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
