// Package apperrors holds the sentinel errors shared across the pipeline.
// Callers test for them with errors.Is; packages wrap them with context.
package apperrors

import "errors"

var (
	// ErrInvalidInput marks malformed arguments. Always fatal to the call.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoKeyFound means no key met the uniqueness or coverage threshold.
	// Recoverable: the caller may retry with a lower threshold.
	ErrNoKeyFound = errors.New("no key found")

	// ErrComparisonUnsupported marks a field pair that cannot be compared.
	// It is recorded per pair and never aborts a reconciliation.
	ErrComparisonUnsupported = errors.New("comparison unsupported")
)
