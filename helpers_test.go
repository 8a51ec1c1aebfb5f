package herdcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	pr "github.com/unkn0wn-root/herdcache/provider"
	"github.com/unkn0wn-root/herdcache/provider/memory"
)

type logEntry struct {
	level string
	msg   string
	f     Fields
}

type recLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recLogger) add(level, msg string, f Fields) {
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{level, msg, f})
	l.mu.Unlock()
}

func (l *recLogger) Trace(m string, f Fields) { l.add("trace", m, f) }
func (l *recLogger) Debug(m string, f Fields) { l.add("debug", m, f) }
func (l *recLogger) Info(m string, f Fields)  { l.add("info", m, f) }
func (l *recLogger) Warn(m string, f Fields)  { l.add("warn", m, f) }
func (l *recLogger) Error(m string, f Fields) { l.add("error", m, f) }

func (l *recLogger) count(msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.msg == msg {
			n++
		}
	}
	return n
}

type recHooks struct {
	NopHooks
	mu        sync.Mutex
	found     int
	abandoned []int
	timedOut  int
	corrupt   []string
	backend   []string
	clientErr []error
	swept     int
}

func (h *recHooks) SemaphoreFound(string) {
	h.mu.Lock()
	h.found++
	h.mu.Unlock()
}

func (h *recHooks) SemaphoreAbandoned(_ string, checks int) {
	h.mu.Lock()
	h.abandoned = append(h.abandoned, checks)
	h.mu.Unlock()
}

func (h *recHooks) WaitTimedOut(string) {
	h.mu.Lock()
	h.timedOut++
	h.mu.Unlock()
}

func (h *recHooks) CorruptValue(_, reason string) {
	h.mu.Lock()
	h.corrupt = append(h.corrupt, reason)
	h.mu.Unlock()
}

func (h *recHooks) BackendError(op, _ string, _ error) {
	h.mu.Lock()
	h.backend = append(h.backend, op)
	h.mu.Unlock()
}

func (h *recHooks) ClientError(err error) {
	h.mu.Lock()
	h.clientErr = append(h.clientErr, err)
	h.mu.Unlock()
}

func (h *recHooks) Swept(n int) {
	h.mu.Lock()
	h.swept += n
	h.mu.Unlock()
}

type hookCounts struct {
	found     int
	abandoned []int
	timedOut  int
	corrupt   []string
	backend   []string
	clientErr []error
	swept     int
}

func (h *recHooks) snapshot() hookCounts {
	h.mu.Lock()
	defer h.mu.Unlock()
	return hookCounts{
		found:     h.found,
		abandoned: append([]int(nil), h.abandoned...),
		timedOut:  h.timedOut,
		corrupt:   append([]string(nil), h.corrupt...),
		backend:   append([]string(nil), h.backend...),
		clientErr: append([]error(nil), h.clientErr...),
		swept:     h.swept,
	}
}

// wrapClient forwards to an inner client. Embedding the interface hides SetNX,
// so writes through it always take the plain Set path.
type wrapClient struct {
	pr.Client

	sets      atomic.Int32
	existsErr error
	onExists  func(key string)
	getErr    error
	setErr    error
}

func (w *wrapClient) Exists(ctx context.Context, key string) (bool, error) {
	if w.existsErr != nil {
		return false, w.existsErr
	}
	ok, err := w.Client.Exists(ctx, key)
	if w.onExists != nil {
		w.onExists(key)
	}
	return ok, err
}

func (w *wrapClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if w.getErr != nil {
		return nil, false, w.getErr
	}
	return w.Client.Get(ctx, key)
}

func (w *wrapClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	w.sets.Add(1)
	if w.setErr != nil {
		return false, w.setErr
	}
	return w.Client.Set(ctx, key, value, ttl)
}

// claimClient is a wrapClient that keeps the atomic claim of the inner client.
type claimClient struct {
	*wrapClient
	inner pr.Claimer
}

func (c claimClient) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return c.inner.SetNX(ctx, key, value, ttl)
}

var errBackend = errors.New("backend down")

func newMemory(t *testing.T) *memory.Client {
	t.Helper()
	m := memory.New()
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

type result[V any] struct {
	v   V
	ok  bool
	err error
}

func mustNew[V any](t *testing.T, opts Options[V]) Controller[V] {
	t.Helper()
	ctrl, err := New[V](context.Background(), opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = ctrl.Close(context.Background()) })
	return ctrl
}

func waitFor(t *testing.T, d time.Duration, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
