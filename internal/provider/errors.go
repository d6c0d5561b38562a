package provider

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// FailureClass partitions provider failures for the failover state machine.
// Provider adapters map vendor-specific errors into these classes before the
// failover client ever sees them.
type FailureClass string

const (
	FailureTransient FailureClass = "transient"
	FailurePermanent FailureClass = "permanent"
)

// Error is a classified provider failure.
type Error struct {
	Provider string
	Class    FailureClass
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %s failure: %v", e.Provider, e.Class, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient wraps err as a retryable provider failure.
func Transient(provider string, err error) error {
	return &Error{Provider: provider, Class: FailureTransient, Err: err}
}

// Permanent wraps err as a non-retryable provider failure.
func Permanent(provider string, err error) error {
	return &Error{Provider: provider, Class: FailurePermanent, Err: err}
}

// IsTransient reports whether err carries the transient failure class.
func IsTransient(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Class == FailureTransient
}

// ClassOf names the failure class of a provider error for metric labels.
func ClassOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return string(pe.Class)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "timeout"
	}
	return "unknown"
}

// ExhaustedError is returned when both backends failed for one request.
type ExhaustedError struct {
	PrimaryErr   error
	SecondaryErr error
	Elapsed      time.Duration
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all providers exhausted: primary: %v; secondary: %v", e.PrimaryErr, e.SecondaryErr)
}

// IsExhausted reports whether err marks a fully exhausted failover chain.
func IsExhausted(err error) bool {
	var ee *ExhaustedError
	return errors.As(err, &ee)
}
