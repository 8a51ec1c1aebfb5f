// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/herdcache"
//	"github.com/unkn0wn-root/herdcache/hooks/async"
//	"github.com/unkn0wn-root/herdcache/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    SemaphoreEvery: 10, // sample logs: ~every 10th semaphore sighting
//	    CorruptEvery:   1,  // log every unusable value
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	ctrl, _ := herdcache.New[User](ctx, herdcache.Options[User]{
//	    Namespace: "app:prod:user",
//	    Client:    client,
//	    Hooks:     hooks, // or `raw` if you don’t want async
//	})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/herdcache"
)

// Hooks runs the inner hooks on worker goroutines. Events are dropped when the
// queue is full.
type Hooks struct {
	inner herdcache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ herdcache.Hooks = (*Hooks)(nil)

func New(inner herdcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains the queue. Events sent after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	defer func() { _ = recover() }() // send on closed queue
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) SemaphoreFound(k string)  { h.try(func() { h.inner.SemaphoreFound(k) }) }
func (h *Hooks) WaitTimedOut(k string)    { h.try(func() { h.inner.WaitTimedOut(k) }) }
func (h *Hooks) ClientError(err error)    { h.try(func() { h.inner.ClientError(err) }) }
func (h *Hooks) Swept(n int)              { h.try(func() { h.inner.Swept(n) }) }
func (h *Hooks) CorruptValue(k, r string) { h.try(func() { h.inner.CorruptValue(k, r) }) }
func (h *Hooks) SemaphoreAbandoned(k string, checks int) {
	h.try(func() { h.inner.SemaphoreAbandoned(k, checks) })
}
func (h *Hooks) BackendError(op, k string, err error) {
	h.try(func() { h.inner.BackendError(op, k, err) })
}
