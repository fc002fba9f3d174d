package searchfn

import (
	"errors"
	"fmt"
)

// ErrScopeDisposed is returned when an operation requires a live scope.
var ErrScopeDisposed = errors.New("scope is disposed")

// FetchError wraps a failed search call with the coordinator and request
// that issued it. Failures never escape the coordinator; they surface as
// IsError on the store and as a FetchError on the request handle.
type FetchError struct {
	Coordinator string
	RequestID   string
	Cause       error
}

func (e *FetchError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("fetch error in coordinator %q (request %s): %v", e.Coordinator, e.RequestID, e.Cause)
	}
	return fmt.Sprintf("fetch error in coordinator %q: %v", e.Coordinator, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// SafeTypeAssertion performs safe type assertion with proper error
func SafeTypeAssertion[T any](value any) (T, error) {
	if value == nil {
		var zero T
		return zero, nil
	}

	typed, ok := value.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("type assertion error: expected %T, got %T (value: %v)", zero, value, value)
	}

	return typed, nil
}
