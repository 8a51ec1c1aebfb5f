package herdcache

import (
	"context"
	"sync"
	"time"

	c "github.com/unkn0wn-root/herdcache/codec"
	"github.com/unkn0wn-root/herdcache/internal/wire"
	pr "github.com/unkn0wn-root/herdcache/provider"
)

// buffer coordinates every caller interested in one key: local callers through
// the done channel, other processes through the semaphore marker stored in the
// backend under the same key.
type buffer[V any] struct {
	key        string // as given by the caller
	storageKey string // namespaced

	client   pr.Client
	codec    c.Codec[V]
	log      Logger
	hooks    Hooks
	ttl      time.Duration
	raceTime time.Duration
	checks   int

	mu                sync.Mutex
	status            Status
	expireAt          time.Time
	done              chan struct{} // closed on every completion, then replaced
	foundSemaphore    bool
	semaphoreChecking bool
	pollsStarted      int
	closed            bool

	closing   chan struct{}
	closeOnce sync.Once
}

type bufferConfig[V any] struct {
	key, storageKey string
	client          pr.Client
	codec           c.Codec[V]
	log             Logger
	hooks           Hooks
	ttl, raceTime   time.Duration
	checks          int
}

func newBuffer[V any](cfg bufferConfig[V]) *buffer[V] {
	return &buffer[V]{
		key:        cfg.key,
		storageKey: cfg.storageKey,
		client:     cfg.client,
		codec:      cfg.codec,
		log:        cfg.log,
		hooks:      cfg.hooks,
		ttl:        cfg.ttl,
		raceTime:   cfg.raceTime,
		checks:     cfg.checks,
		status:     StatusInit,
		expireAt:   time.Now().Add(cfg.ttl),
		done:       make(chan struct{}),
		closing:    make(chan struct{}),
	}
}

func (b *buffer[V]) Key() string             { return b.key }
func (b *buffer[V]) TTL() time.Duration      { return b.ttl }
func (b *buffer[V]) RaceTime() time.Duration { return b.raceTime }

func (b *buffer[V]) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *buffer[V]) ExpireAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.expireAt
}

func (b *buffer[V]) expired(now time.Time) bool {
	return b.ExpireAt().Before(now)
}

func (b *buffer[V]) setStatus(s Status) {
	b.mu.Lock()
	b.status = s
	b.mu.Unlock()
}

// get returns the cached value, or ok=false when the caller should compute the
// value and set it. Absence is not an error.
func (b *buffer[V]) get(ctx context.Context) (V, bool, error) {
	var zero V

	exists, err := b.client.Exists(ctx, b.storageKey)
	if err != nil {
		b.backendError("exists", err)
	} else if exists {
		b.setStatus(StatusFinished)
	}

	// The first local caller to see Init becomes the producer.
	b.mu.Lock()
	first := b.status == StatusInit && !b.closed
	if first {
		b.status = StatusRunning
	}
	b.mu.Unlock()

	if first {
		if b.claim(ctx) {
			return zero, false, nil
		}
		// Another process claimed (or filled) the key between Exists and the claim.
		b.setStatus(StatusFinished)
		v, ok, err := b.resolve(ctx)
		if ok {
			b.complete(b.ttl) // local callers queued behind us are waiting on done
		}
		return v, ok, err
	}
	return b.resolve(ctx)
}

// claim writes the semaphore marker. It reports false only when an atomic claim
// was rejected because the key already holds something.
func (b *buffer[V]) claim(ctx context.Context) bool {
	m := wire.Marker()
	if cl, ok := b.client.(pr.Claimer); ok {
		won, err := cl.SetNX(ctx, b.storageKey, m, b.ttl)
		if err != nil {
			b.backendError("claim", err)
			return true
		}
		return won
	}
	if _, err := b.client.Set(ctx, b.storageKey, m, b.ttl); err != nil {
		b.backendError("claim", err)
	}
	return true
}

func (b *buffer[V]) resolve(ctx context.Context) (V, bool, error) {
	var zero V
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return zero, false, nil
		}
		switch b.status {
		case StatusInit:
			b.status = StatusRunning
			b.mu.Unlock()
			return zero, false, nil
		case StatusRunning:
			// capture done under the lock: a completion after this point closes it
			done := b.done
			b.mu.Unlock()
			return b.wait(ctx, done)
		}
		b.mu.Unlock()

		raw, found, err := b.client.Get(ctx, b.storageKey)
		if err != nil {
			b.backendError("get", err)
			found = false
		}

		if found && wire.IsMarker(raw) {
			b.mu.Lock()
			b.status = StatusRunning
			b.foundSemaphore = true
			start := !b.semaphoreChecking
			if start {
				b.semaphoreChecking = true
				b.pollsStarted++
			}
			b.mu.Unlock()

			b.log.Debug("semaphore found", Fields{"key": b.key})
			b.hooks.SemaphoreFound(b.key)
			if start {
				go b.checkSemaphore()
			}
			continue
		}

		// The value may have expired between Exists and Get, or be unusable.
		v, ok := b.decode(raw, found)
		if !ok {
			b.setStatus(StatusRunning)
			return zero, false, nil
		}
		b.log.Debug("cache hit", Fields{"key": b.key})
		return v, true, nil
	}
}

func (b *buffer[V]) wait(ctx context.Context, done <-chan struct{}) (V, bool, error) {
	var zero V
	timer := time.NewTimer(b.raceTime)
	defer timer.Stop()

	select {
	case <-done:
		raw, found, err := b.client.Get(ctx, b.storageKey)
		if err != nil {
			b.backendError("get", err)
			return zero, false, nil
		}
		v, ok := b.decode(raw, found)
		return v, ok, nil
	case <-timer.C:
		b.log.Debug("race time elapsed", Fields{"key": b.key, "raceTime": b.raceTime})
		b.hooks.WaitTimedOut(b.key)
		return zero, false, nil
	case <-b.closing:
		return zero, false, nil
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

func (b *buffer[V]) decode(raw []byte, found bool) (V, bool) {
	var zero V
	if !found || wire.IsMarker(raw) {
		return zero, false
	}
	payload, err := wire.DecodeValue(raw)
	if err != nil {
		b.corrupt("frame", err)
		return zero, false
	}
	v, err := b.codec.Decode(payload)
	if err != nil {
		b.corrupt("decode", err)
		return zero, false
	}
	if !structured(v) {
		b.corrupt("shape", nil)
		return zero, false
	}
	return v, true
}

// set writes value and wakes every local waiter once the write returned.
func (b *buffer[V]) set(ctx context.Context, value V, ttl time.Duration) error {
	if !structured(value) {
		return ErrInvalidValue
	}
	if ttl <= 0 {
		ttl = b.ttl
	}
	payload, err := b.codec.Encode(value)
	if err != nil {
		return &SetError{Key: b.key, Err: err}
	}
	ok, err := b.client.Set(ctx, b.storageKey, wire.EncodeValue(payload), ttl)
	if err != nil {
		return &SetError{Key: b.key, Err: err}
	}
	if !ok {
		b.log.Debug("set rejected by provider (pressure)", Fields{"key": b.key})
	}
	b.complete(ttl)
	return nil
}

func (b *buffer[V]) complete(ttl time.Duration) {
	b.mu.Lock()
	b.completeLocked(ttl)
	b.mu.Unlock()
}

func (b *buffer[V]) completeLocked(ttl time.Duration) {
	b.status = StatusFinished
	b.expireAt = time.Now().Add(ttl)
	close(b.done)
	b.done = make(chan struct{})
}

// checkSemaphore polls the backend until the marker is replaced by another
// process, the record is closed, or checks+1 reads saw the marker.
// Local notification alone cannot observe a set done by another process.
func (b *buffer[V]) checkSemaphore() {
	interval := b.raceTime / time.Duration(b.checks)
	t := time.NewTimer(interval)
	defer t.Stop()

	for counter := 1; ; counter++ {
		select {
		case <-b.closing:
			b.stopChecking()
			return
		case <-t.C:
		}

		b.log.Debug("checking semaphore", Fields{"key": b.key, "check": counter})
		ctx, cancel := context.WithTimeout(context.Background(), b.raceTime)
		raw, found, err := b.client.Get(ctx, b.storageKey)
		cancel()

		if err != nil {
			b.backendError("get", err)
		} else if !found || !wire.IsMarker(raw) {
			b.log.Debug("semaphore replaced with real data", Fields{"key": b.key})
			b.mu.Lock()
			b.semaphoreChecking = false
			b.foundSemaphore = false
			b.completeLocked(b.ttl)
			b.mu.Unlock()
			return
		}

		b.mu.Lock()
		cancelled := !b.semaphoreChecking
		b.mu.Unlock()
		if cancelled || counter > b.checks {
			b.log.Debug("semaphore is taking too long, aborting", Fields{"key": b.key, "checks": counter})
			b.stopChecking()
			b.hooks.SemaphoreAbandoned(b.key, counter)
			return
		}
		t.Reset(interval)
	}
}

func (b *buffer[V]) stopChecking() {
	b.mu.Lock()
	b.semaphoreChecking = false
	b.foundSemaphore = false
	b.mu.Unlock()
}

// close releases every waiter with absence and stops the poll. Idempotent.
func (b *buffer[V]) close() {
	b.closeOnce.Do(func() {
		b.log.Debug("closing buffer", Fields{"key": b.key})
		b.mu.Lock()
		b.closed = true
		b.semaphoreChecking = false
		b.mu.Unlock()
		close(b.closing)
	})
}

func (b *buffer[V]) backendError(op string, err error) {
	b.log.Debug("backend "+op+" failed, treating as miss", Fields{"key": b.key, "err": err})
	b.hooks.BackendError(op, b.key, err)
}

func (b *buffer[V]) corrupt(reason string, err error) {
	f := Fields{"key": b.key, "reason": reason}
	if err != nil {
		f["err"] = err
	}
	b.log.Debug("unusable cached value", f)
	b.hooks.CorruptValue(b.key, reason)
}
