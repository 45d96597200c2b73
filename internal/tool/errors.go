// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tool

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/pdiddy/niche-engine/internal/httputil"
)

// Kind classifies a failed invocation.
type Kind string

const (
	// KindExhausted means every attempt failed with a transient error.
	KindExhausted Kind = "exhausted"
	// KindRateLimited means the call could not get rate budget in time.
	KindRateLimited Kind = "rate_limited"
	// KindPermanent means the failure is not worth retrying.
	KindPermanent Kind = "permanent"
)

// Error is the error returned by Invoke. Err holds the last underlying
// failure.
type Error struct {
	Tool     string
	Kind     Kind
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("tool %s: %s after %d attempt(s): %v", e.Tool, e.Kind, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Transient marks err as retryable. Backends use it for failures the
// default classification would treat as permanent.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// Permanent marks err as not retryable, overriding every other signal.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsTransient reports whether a tool failure should be retried. Explicit
// markers win; then timeouts, retryable HTTP statuses and network errors
// are transient. Anything unrecognized is permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var pe *permanentError
	if errors.As(err, &pe) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *httputil.StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}
	var ne net.Error
	return errors.As(err, &ne)
}
