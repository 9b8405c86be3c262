package generation

import "fmt"

// FailureKind classifies every failure that crosses the orchestrator
// boundary. Nothing provider-specific leaks to callers.
type FailureKind string

const (
	KindInvalidRequest      FailureKind = "invalid_request"
	KindInsufficientCredits FailureKind = "insufficient_credits"
	KindProviderTransient   FailureKind = "provider_transient"
	KindProviderPermanent   FailureKind = "provider_permanent"
	KindStorageFailure      FailureKind = "storage_failure"
	KindTimedOut            FailureKind = "timed_out"
)

// Error is the orchestrator's failure type. Kind drives the caller's
// response; Reason is safe to show to users.
type Error struct {
	Kind   FailureKind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

func invalidRequest(reason string) *Error {
	return &Error{Kind: KindInvalidRequest, Reason: reason}
}
