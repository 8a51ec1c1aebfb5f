package herdcache

import (
	"errors"
	"fmt"
)

var (
	// ErrNoClient is returned by New when Options.Client is nil.
	ErrNoClient = errors.New("herdcache: configuration error: client is required")

	// ErrInvalidValue is returned by Set for payloads that are not objects or arrays.
	// Nothing is written to the backend.
	ErrInvalidValue = errors.New("herdcache: value should be an object or an array")

	// ErrClosed is returned by Get and Set after Close.
	ErrClosed = errors.New("herdcache: controller is closed")
)

// SetError reports a failed write of a computed value. Waiters on the key are
// not woken and fall back to absence when their race time elapses.
type SetError struct {
	Key string
	Err error
}

func (e *SetError) Error() string {
	return fmt.Sprintf("herdcache: set %q: %v", e.Key, e.Err)
}

func (e *SetError) Unwrap() error { return e.Err }
