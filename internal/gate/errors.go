package gate

import (
	"errors"
	"fmt"
)

var (
	// ErrTokenExchangeFailed is returned when the one-time login token could not be exchanged.
	ErrTokenExchangeFailed = errors.New("login token exchange failed")
	// ErrStatusCheckFailed records that the cloud password status could not be confirmed.
	ErrStatusCheckFailed = errors.New("cloud password status check failed")
	// ErrValidationFailed is the parent of every local password validation error.
	ErrValidationFailed = errors.New("validation failed")
	// ErrSetupFailed is returned when the platform rejected the cloud password setup.
	ErrSetupFailed = errors.New("cloud password setup failed")
	// ErrVerifyFailed is returned when the platform rejected the cloud password.
	ErrVerifyFailed = errors.New("cloud password verification failed")
	// ErrTooManyAttempts is returned while verification is locked after repeated failures.
	ErrTooManyAttempts = errors.New("too many failed attempts")
	// ErrInvalidTransition is returned when an action is not allowed in the current state.
	ErrInvalidTransition = errors.New("action not allowed in the current state")
	// ErrSuperseded is returned when the session changed while a request was in flight.
	ErrSuperseded = errors.New("session changed while the request was in flight")
)

var (
	ErrPasswordRequired = fmt.Errorf("%w: password is required", ErrValidationFailed)
	ErrPasswordTooShort = fmt.Errorf("%w: password is too short", ErrValidationFailed)
	ErrPasswordMismatch = fmt.Errorf("%w: passwords do not match", ErrValidationFailed)
)
