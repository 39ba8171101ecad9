// Package domainerrors carries coded errors across layer boundaries.
//
// Stores return infrastructure sentinels (see pkg/platform/sentinel); services
// translate them into coded errors so callers can branch on the failure class
// without knowing which store or driver produced it.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a failure for callers and operator-facing channels.
type Code string

const (
	CodeInvalidInput       Code = "invalid_input"
	CodeNotFound           Code = "not_found"
	CodeInternal           Code = "internal_error"
	CodeTimeout            Code = "timeout"
	CodeUnauthorized       Code = "unauthorized"
	CodeInvariantViolation Code = "invariant_violation"

	// CodeConfiguration marks static configuration faults: unregistered entity
	// types, cyclic dependency graphs, malformed policy records. Never retried.
	CodeConfiguration Code = "configuration_error"

	// CodeTransientSync marks a sync apply that failed because a referenced row
	// has not landed in the target yet. Retried with backoff.
	CodeTransientSync Code = "transient_sync_failure"

	// CodePermanentFailure marks a message whose retry budget is exhausted.
	CodePermanentFailure Code = "permanent_failure"

	// CodePolicyViolation marks a row that may not cross into a target region.
	// It is a correct outcome, not something to retry.
	CodePolicyViolation Code = "policy_violation"

	// CodeConcurrencyConflict marks an optimistic concurrency conflict that
	// cannot be reconciled, e.g. an update racing a concurrent delete.
	CodeConcurrencyConflict Code = "concurrency_conflict"

	// CodeConflictExhausted marks a write that kept losing optimistic
	// concurrency races until the local retry budget ran out.
	CodeConflictExhausted Code = "conflict_exhausted"

	// CodeUniqueViolation marks a duplicate-key write. Never retried.
	CodeUniqueViolation Code = "unique_violation"
)

// Error is a coded error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error without a cause.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the outermost code in the chain, or CodeInternal when err
// carries no code.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// Is is an alias of HasCode kept for call sites that read better with it.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}
