package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// ValidationError rejects malformed input before any store mutation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError is returned when a referenced entity is absent.
type NotFoundError struct {
	Entity string
	Id     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Id)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrorRecordNotFound }

// ConflictError surfaces a uniqueness violation. For webhook ingestion the
// duplicate-event case is swallowed before this ever reaches a caller; for
// invoice numbering it drives the bounded retry loop.
type ConflictError struct {
	Constraint string
	Err        error
}

func (e *ConflictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("conflict on %s: %v", e.Constraint, e.Err)
	}
	return "conflict on " + e.Constraint
}

func (e *ConflictError) Unwrap() error { return e.Err }

// InvalidSignatureError means the webhook payload failed authenticity
// verification. Never retried, never mutates the ledger.
type InvalidSignatureError struct {
	Err error
}

func (e *InvalidSignatureError) Error() string {
	return fmt.Sprintf("invalid webhook signature: %v", e.Err)
}

func (e *InvalidSignatureError) Unwrap() error { return e.Err }

// UpstreamError wraps a payment-provider or email-provider failure.
// The ledger is left unmutated when one of these is returned.
type UpstreamError struct {
	Provider string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// NumberingExhaustedError means the invoice-numbering retry budget ran out.
// Fatal for the request only; the next request starts a fresh loop.
type NumberingExhaustedError struct {
	Attempts int
}

func (e *NumberingExhaustedError) Error() string {
	return fmt.Sprintf("invoice numbering exhausted after %d attempts", e.Attempts)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf) || errors.Is(err, ErrorRecordNotFound)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
