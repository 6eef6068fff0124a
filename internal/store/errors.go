package store

import (
	"errors"
	"fmt"
)

// ErrInvalidQuery reports malformed result set usage, such as a negative
// index or slice bound. It is returned synchronously and never retried.
var ErrInvalidQuery = errors.New("invalid query usage")

// StoreError is a logical error reported by the document store itself: the
// response decoded fine but carried a top-level "error" field. It is never
// retried against another node.
type StoreError struct {
	// StatusCode is the HTTP status the store answered with.
	StatusCode int
	// Reason is the store-reported error message.
	Reason string
}

func (e *StoreError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("store error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("store error (status %d): %s", e.StatusCode, e.Reason)
}

// NoNodesError reports that every attempted cluster node failed at the
// transport level. It wraps the last underlying failure.
type NoNodesError struct {
	// Attempts is the number of nodes that were tried.
	Attempts int
	// Err is the last transport failure observed.
	Err error
}

func (e *NoNodesError) Error() string {
	return fmt.Sprintf("no store nodes available after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the last transport failure.
func (e *NoNodesError) Unwrap() error {
	return e.Err
}
