package herdcache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/herdcache/codec"
	"github.com/unkn0wn-root/herdcache/internal/util"
	pr "github.com/unkn0wn-root/herdcache/provider"
)

// Controller guards a shared cache against stampedes.
// V is the caller's value type. Serialization is handled by a pluggable Codec[V].
//
// The contract for callers is: Get; on absence compute the value and Set it.
// Only the first caller for a key (across every process sharing the backend)
// sees absence while a computation is pending; the others wait for the value
// for at most RaceTime.
type Controller[V any] interface {
	// Get returns the cached value. ok=false means the caller should compute and Set.
	// err is only ErrClosed or a context error; backend failures degrade to absence.
	Get(ctx context.Context, key string) (v V, ok bool, err error)

	// Set stores value and wakes local waiters. ttl <= 0 uses Options.TTL.
	// Returns ErrInvalidValue for values that are not objects or arrays.
	Set(ctx context.Context, key string, value V, ttl time.Duration) error

	// Key joins the non-empty parts into a composite key.
	Key(parts ...string) string

	// Close stops the sweep, releases all waiters and quits the client
	// (unless KeepClientOpen). Idempotent.
	Close(ctx context.Context) error

	// Introspection
	Len() int
	Statuses() map[string]Status
}

// Options configure a Controller. Only Client is required.
type Options[V any] struct {
	// Required
	Client pr.Client

	Codec           c.Codec[V]    // nil => codec.JSON[V]
	Logger          Logger        // nil => NopLogger
	Hooks           Hooks         // nil => NopHooks
	TTL             time.Duration // 0 => 300s; default value TTL and buffer lifetime
	RaceTime        time.Duration // 0 => 30s; longest a caller waits for someone else's value
	SemaphoreChecks int           // 0 => 10; polls per RaceTime while another process holds the key
	SweepInterval   time.Duration // 0 => TTL/5
	Namespace       string        // optional prefix for storage keys, e.g. "user"
	KeepClientOpen  bool          // default false => Close quits the client
}

// New validates opts, connects the client and starts the buffer sweep.
func New[V any](ctx context.Context, opts Options[V]) (Controller[V], error) {
	ctrl, err := newController[V](opts)
	if err != nil {
		return nil, err
	}
	if err := ctrl.start(ctx); err != nil {
		return nil, err
	}
	return ctrl, nil
}

// Key joins the non-empty parts with ":", e.g. Key("user", "42") == "user:42".
func Key(parts ...string) string {
	return util.JoinKey(parts...)
}
