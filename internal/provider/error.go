package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Error wraps provider failures with status metadata so retry policy can be
// decided without provider-specific knowledge.
type Error struct {
	Status    int
	Temporary bool
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return "provider error"
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("provider error (status=%d)", e.Status)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Transient builds a retryable error.
func Transient(status int, err error) *Error {
	return &Error{Status: status, Temporary: true, Err: err}
}

// Permanent builds a non-retryable error (rejected prompt, quota, bad model).
func Permanent(status int, err error) *Error {
	return &Error{Status: status, Temporary: false, Err: err}
}

// IsTransient reports whether an error is safe to retry: network timeouts,
// 429 and 5xx responses. Everything else is treated as permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var provErr *Error
	if errors.As(err, &provErr) {
		if provErr.Temporary {
			return true
		}
		if provErr.Status == 429 || (provErr.Status >= 500 && provErr.Status <= 599) {
			return true
		}
	}
	return false
}
