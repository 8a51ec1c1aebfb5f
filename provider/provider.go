// Package provider defines the shared key/value store used by herdcache.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// same []byte that was previously passed to Set for a key. herdcache stores two
// kinds of frames in the same slot (the semaphore marker and value frames) and
// tells them apart by their bytes, so any re-encoding breaks the protocol.
//
// Several processes may point at the same backend. Coordination between them
// happens only through the values visible in that backend.
package provider

import (
	"context"
	"sync"
	"time"
)

// Client is a minimal byte store with TTLs and a connection lifecycle.
// Must be safe for concurrent use.
type Client interface {
	// Connect opens the connection. Emits EventConnect and EventReady on success.
	Connect(ctx context.Context) error

	// Quit closes the connection gracefully. Emits EventEnd.
	Quit(ctx context.Context) error

	// Disconnect closes the connection without waiting for in-flight work. Emits EventEnd.
	Disconnect() error

	// Exists reports whether key holds any value (marker or payload).
	Exists(ctx context.Context, key string) (bool, error)

	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. ttl <= 0 means no expiry.
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) (ok bool, err error)

	// Del removes a key and reports whether it existed.
	Del(ctx context.Context, key string) (bool, error)

	// OnEvent registers a lifecycle listener.
	OnEvent(l Listener)
}

// Claimer is implemented by stores that can write a value only when the key is absent.
// herdcache uses it for the semaphore claim when available.
type Claimer interface {
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}

type EventKind uint8

const (
	EventConnect EventKind = iota + 1
	EventReady
	EventError
	EventEnd
)

func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventReady:
		return "ready"
	case EventError:
		return "error"
	case EventEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Event is a connection lifecycle notification. Err is set only for EventError.
type Event struct {
	Kind EventKind
	Err  error
}

// Listener receives lifecycle events. Must be cheap and non-blocking.
type Listener func(Event)

// Notifier fans events out to registered listeners.
// The zero value is ready to use; embed it in Client implementations.
type Notifier struct {
	mu        sync.RWMutex
	listeners []Listener
}

func (n *Notifier) OnEvent(l Listener) {
	if l == nil {
		return
	}
	n.mu.Lock()
	n.listeners = append(n.listeners, l)
	n.mu.Unlock()
}

func (n *Notifier) Emit(e Event) {
	n.mu.RLock()
	ls := n.listeners
	n.mu.RUnlock()
	for _, l := range ls {
		l(e)
	}
}

// EmitError is a shorthand for Emit(Event{Kind: EventError, Err: err}).
func (n *Notifier) EmitError(err error) {
	n.Emit(Event{Kind: EventError, Err: err})
}
