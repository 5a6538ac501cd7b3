package domain

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultTolerance is the absolute tolerance used to decide whether a
// constraint residual counts as satisfied.
const DefaultTolerance = 1e-6

// ErrValidation is the sentinel wrapped by every ValidationError.
var ErrValidation = errors.New("validation error")

// ValidationError reports a malformed feature, constraint or domain, or a
// value that violates a feature's type or bounds. Key names the offending
// feature or constraint so callers can act on it without parsing messages.
type ValidationError struct {
	// Key is the feature key (or constraint description) at fault.
	Key string

	// Reason is a short human readable description.
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}

	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Key, e.Reason)
}

// Unwrap allows errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func validationErrorf(key, format string, args ...any) *ValidationError {
	return &ValidationError{Key: key, Reason: fmt.Sprintf(format, args...)}
}

// Violation describes one failed feasibility check.
type Violation struct {
	// Index is the position of the offending point in the batch.
	Index int

	// Key is the feature key, or the constraint description.
	Key string

	// Residual is the constraint residual (0 for bound violations).
	Residual float64
}

func (v Violation) String() string {
	return fmt.Sprintf("point %d: %s (residual %g)", v.Index, v.Key, v.Residual)
}

func joinViolations(vs []Violation) string {
	parts := make([]string, 0, len(vs))
	for _, v := range vs {
		parts = append(parts, v.String())
	}

	return strings.Join(parts, "; ")
}
