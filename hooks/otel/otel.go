// Package otelhooks records herdcache events as OpenTelemetry counters.
// Keys are never used as attributes.
package otelhooks

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/unkn0wn-root/herdcache"
)

const scope = "github.com/unkn0wn-root/herdcache"

type Hooks struct {
	semaphoreFound     metric.Int64Counter
	semaphoreAbandoned metric.Int64Counter
	waitTimedOut       metric.Int64Counter
	corrupt            metric.Int64Counter
	backendErrors      metric.Int64Counter
	clientErrors       metric.Int64Counter
	swept              metric.Int64Counter
}

var _ herdcache.Hooks = (*Hooks)(nil)

// New registers the counters on m. A nil m uses the global meter provider.
func New(m metric.Meter) (*Hooks, error) {
	if m == nil {
		m = otel.Meter(scope)
	}

	var errs []error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := m.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}

	h := &Hooks{
		semaphoreFound:     counter("herdcache.semaphore.found", "Reads that found another process's semaphore."),
		semaphoreAbandoned: counter("herdcache.semaphore.abandoned", "Polls that gave up before the semaphore was replaced."),
		waitTimedOut:       counter("herdcache.wait.timeouts", "Waiters that reached their race time."),
		corrupt:            counter("herdcache.value.corrupt", "Cached values that could not be used."),
		backendErrors:      counter("herdcache.backend.errors", "Backend reads that failed and were treated as misses."),
		clientErrors:       counter("herdcache.client.errors", "Lifecycle errors emitted by the client."),
		swept:              counter("herdcache.buffers.swept", "Expired buffers removed by the sweep."),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Hooks) SemaphoreFound(string) {
	h.semaphoreFound.Add(context.Background(), 1)
}

func (h *Hooks) SemaphoreAbandoned(string, int) {
	h.semaphoreAbandoned.Add(context.Background(), 1)
}

func (h *Hooks) WaitTimedOut(string) {
	h.waitTimedOut.Add(context.Background(), 1)
}

func (h *Hooks) CorruptValue(_, reason string) {
	h.corrupt.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (h *Hooks) BackendError(op, _ string, _ error) {
	h.backendErrors.Add(context.Background(), 1, metric.WithAttributes(attribute.String("op", op)))
}

func (h *Hooks) ClientError(error) {
	h.clientErrors.Add(context.Background(), 1)
}

func (h *Hooks) Swept(n int) {
	h.swept.Add(context.Background(), int64(n))
}
