// Package services defines the business logic for the handle registry and the
// claim workflow. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import (
	"errors"
	"fmt"
)

// Registry errors.
var (
	// ErrClaimNotFound indicates that no claim exists for the requested
	// (domain, username) pair.
	ErrClaimNotFound = errors.New("claim not found")

	// ErrUsernameTaken is returned when the username is already bound to a
	// different DID under the same domain.
	ErrUsernameTaken = errors.New("username taken")
)

// Claim workflow errors.
var (
	// ErrAccountNotFound is returned when the existing handle could not be
	// resolved to a profile on the external network.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidUsername covers both syntax failures and denylist hits; callers
	// cannot tell the two apart.
	ErrInvalidUsername = errors.New("invalid username")

	// ErrReservedUsername is returned for usernames the operator has reserved.
	ErrReservedUsername = errors.New("reserved username")

	// ErrUnexpected wraps any failure that is not one of the categories above.
	// The failure has been reported to the notification channel.
	ErrUnexpected = errors.New("unexpected error")

	// ErrNotificationFailed is ErrUnexpected where the report itself could not
	// be delivered.
	ErrNotificationFailed = errors.New("unexpected error; notification failed")
)

// StorageError reports a persistence failure in the named registry operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error in %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
