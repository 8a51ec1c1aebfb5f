package herdcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The controller calls them on hot paths.
type Hooks interface {
	// Another process holds the semaphore for key; a poll was started.
	SemaphoreFound(key string)

	// The poll for key gave up after checks iterations without seeing real data.
	SemaphoreAbandoned(key string, checks int)

	// A waiter on key reached its race time and resolved to absence.
	WaitTimedOut(key string)

	// The value under key could not be used.
	// reason ∈ {"frame", "decode", "shape"}
	CorruptValue(key, reason string)

	// A backend operation failed; reads are treated as a miss, a failed claim
	// still makes the caller the producer.
	// op ∈ {"exists", "get", "claim"}
	BackendError(op, key string, err error)

	// The backend emitted a lifecycle error.
	ClientError(err error)

	// A sweep removed n expired buffers.
	Swept(n int)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) SemaphoreFound(string)              {}
func (NopHooks) SemaphoreAbandoned(string, int)     {}
func (NopHooks) WaitTimedOut(string)                {}
func (NopHooks) CorruptValue(string, string)        {}
func (NopHooks) BackendError(string, string, error) {}
func (NopHooks) ClientError(error)                  {}
func (NopHooks) Swept(int)                          {}
