package strategy

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrNotReady      = errors.New("strategy not ready")
)

// ConfigurationError reports an unknown or invalid option, or a domain the
// strategy cannot represent.
type ConfigurationError struct {
	// Strategy is the registry name of the strategy.
	Strategy string

	// Option names the offending option or domain element, if any.
	Option string

	// Reason is a short human readable description.
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Option == "" {
		return fmt.Sprintf("%s: %s: %s", ErrConfiguration, e.Strategy, e.Reason)
	}

	return fmt.Sprintf("%s: %s: %s: %s", ErrConfiguration, e.Strategy, e.Option, e.Reason)
}

// Unwrap allows errors.Is(err, ErrConfiguration).
func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// NotReadyError reports an operation called in a state that does not allow
// it, typically Ask on a model-backed strategy without usable data.
type NotReadyError struct {
	Strategy string
	State    State
	Reason   string
}

// Error implements the error interface.
func (e *NotReadyError) Error() string {
	return fmt.Sprintf("%s: %s (state %s): %s", ErrNotReady, e.Strategy, e.State, e.Reason)
}

// Unwrap allows errors.Is(err, ErrNotReady).
func (e *NotReadyError) Unwrap() error {
	return ErrNotReady
}

// OpError wraps every failure of Tell and Ask with the strategy identity and
// the operation attempted.
type OpError struct {
	Strategy string
	Op       string
	Err      error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Strategy, e.Op, e.Err)
}

// Unwrap returns the cause.
func (e *OpError) Unwrap() error {
	return e.Err
}
