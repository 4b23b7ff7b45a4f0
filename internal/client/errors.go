package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrCoordinatorClosed is returned to callers waiting on a refresh when the
	// coordinator shuts down, and to any call made after Close.
	ErrCoordinatorClosed = errors.New("refresh coordinator closed")

	// ErrRefreshFailed wraps the cause of a failed rotation. Every waiter of the
	// rotation receives the same error value.
	ErrRefreshFailed = errors.New("session refresh failed")

	// ErrNotSignedIn is returned when an operation needs stored tokens and there are none.
	ErrNotSignedIn = errors.New("not signed in")
)

// StatusError is a non-2xx response from the auth API.
type StatusError struct {
	StatusCode int
	Message    string
	// Reason is the machine-readable code sent with token failures.
	Reason  string
	TraceID string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("auth api: %d %s (%s)", e.StatusCode, e.Message, e.Reason)
	}
	return fmt.Sprintf("auth api: %d %s", e.StatusCode, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the API. It is the default
// test the Coordinator uses to decide that a call needs a refreshed token.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized
}
