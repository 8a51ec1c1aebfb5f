package herdcache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	c "github.com/unkn0wn-root/herdcache/codec"
	"github.com/unkn0wn-root/herdcache/internal/util"
	pr "github.com/unkn0wn-root/herdcache/provider"
)

type controller[V any] struct {
	ns     string
	client pr.Client
	codec  c.Codec[V]
	log    Logger
	hooks  Hooks

	ttl            time.Duration
	raceTime       time.Duration
	checks         int
	sweepInterval  time.Duration
	keepClientOpen bool

	mu      sync.Mutex
	buffers map[string]*buffer[V]
	closed  bool

	// set once our own Quit returned; later client events belong to someone else
	detached atomic.Bool

	// background sweep
	ticker    *time.Ticker
	stopCh    chan struct{}
	closeWg   sync.WaitGroup
	closeOnce sync.Once
}

func newController[V any](opts Options[V]) (*controller[V], error) {
	if opts.Client == nil {
		return nil, ErrNoClient
	}
	if opts.TTL < 0 || opts.RaceTime < 0 || opts.SweepInterval < 0 {
		return nil, fmt.Errorf("herdcache: configuration error: durations must not be negative")
	}
	if opts.SemaphoreChecks < 0 {
		return nil, fmt.Errorf("herdcache: configuration error: semaphore checks must not be negative")
	}

	ctrl := &controller[V]{
		ns:             opts.Namespace,
		client:         opts.Client,
		buffers:        make(map[string]*buffer[V]),
		keepClientOpen: opts.KeepClientOpen,
	}

	ctrl.codec = coalesce[c.Codec[V]](opts.Codec, c.JSON[V]{})
	ctrl.log = coalesce[Logger](opts.Logger, NopLogger{})
	ctrl.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	ctrl.ttl = coalesce[time.Duration](opts.TTL, defaultTTL)
	ctrl.raceTime = coalesce[time.Duration](opts.RaceTime, defaultRaceTime)
	ctrl.checks = coalesce[int](opts.SemaphoreChecks, defaultSemaphoreChecks)
	ctrl.sweepInterval = coalesce[time.Duration](opts.SweepInterval, ctrl.ttl/sweepsPerTTL)
	if ctrl.sweepInterval <= 0 {
		return nil, fmt.Errorf("herdcache: configuration error: ttl %v too short to derive a sweep interval", ctrl.ttl)
	}

	ctrl.client.OnEvent(ctrl.onClientEvent)
	return ctrl, nil
}

func (ctrl *controller[V]) start(ctx context.Context) error {
	if err := ctrl.client.Connect(ctx); err != nil {
		ctrl.detached.Store(true)
		return fmt.Errorf("herdcache: connect: %w", err)
	}

	ctrl.ticker = time.NewTicker(ctrl.sweepInterval)
	ctrl.stopCh = make(chan struct{})
	ctrl.closeWg.Add(1)
	go ctrl.sweepLoop()

	ctrl.log.Debug("cache is setup", Fields{
		"ttl":      ctrl.ttl,
		"raceTime": ctrl.raceTime,
		"sweep":    ctrl.sweepInterval,
	})
	return nil
}

func (ctrl *controller[V]) onClientEvent(e pr.Event) {
	if ctrl.detached.Load() {
		return
	}
	switch e.Kind {
	case pr.EventConnect:
		ctrl.log.Debug("cache is connected", nil)
	case pr.EventReady:
		ctrl.log.Debug("cache is ready", nil)
	case pr.EventError:
		ctrl.log.Error("cache error", Fields{"err": e.Err})
		ctrl.hooks.ClientError(e.Err)
	case pr.EventEnd:
		ctrl.log.Debug("cache connection is closed", nil)
	}
}

func (ctrl *controller[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	b, err := ctrl.buffer(key)
	if err != nil {
		return zero, false, err
	}
	return b.get(ctx)
}

func (ctrl *controller[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	b, err := ctrl.buffer(key)
	if err != nil {
		return err
	}
	return b.set(ctx, value, ttl)
}

func (ctrl *controller[V]) Key(parts ...string) string {
	return util.JoinKey(parts...)
}

// buffer returns the record for key, creating it on first use.
func (ctrl *controller[V]) buffer(key string) (*buffer[V], error) {
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if ctrl.closed {
		return nil, ErrClosed
	}
	if b, ok := ctrl.buffers[key]; ok {
		return b, nil
	}
	b := newBuffer(bufferConfig[V]{
		key:        key,
		storageKey: ctrl.storageKey(key),
		client:     ctrl.client,
		codec:      ctrl.codec,
		log:        ctrl.log,
		hooks:      ctrl.hooks,
		ttl:        ctrl.ttl,
		raceTime:   ctrl.raceTime,
		checks:     ctrl.checks,
	})
	ctrl.buffers[key] = b
	return b, nil
}

func (ctrl *controller[V]) storageKey(key string) string {
	if ctrl.ns == "" {
		return key
	}
	// isolate by namespace
	return ctrl.ns + util.KeySeparator + key
}

func (ctrl *controller[V]) Len() int {
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	return len(ctrl.buffers)
}

func (ctrl *controller[V]) Statuses() map[string]Status {
	ctrl.mu.Lock()
	bs := make(map[string]*buffer[V], len(ctrl.buffers))
	for k, b := range ctrl.buffers {
		bs[k] = b
	}
	ctrl.mu.Unlock()

	out := make(map[string]Status, len(bs))
	for k, b := range bs {
		out[k] = b.Status()
	}
	return out
}

func (ctrl *controller[V]) Close(ctx context.Context) error {
	var err error
	ctrl.closeOnce.Do(func() {
		ctrl.log.Debug("stopping controller", nil)
		if ctrl.stopCh != nil {
			close(ctrl.stopCh)
			ctrl.closeWg.Wait()
			ctrl.ticker.Stop()
		}

		ctrl.mu.Lock()
		bs := ctrl.buffers
		ctrl.buffers = make(map[string]*buffer[V])
		ctrl.closed = true
		ctrl.mu.Unlock()

		for _, b := range bs {
			b.close()
		}

		if !ctrl.keepClientOpen {
			err = ctrl.client.Quit(ctx)
		}
		ctrl.detached.Store(true)
	})
	return err
}

func (ctrl *controller[V]) sweepLoop() {
	defer ctrl.closeWg.Done()
	for {
		select {
		case <-ctrl.ticker.C:
			ctrl.sweep(time.Now())
		case <-ctrl.stopCh:
			return
		}
	}
}

// sweep closes and forgets every buffer whose lifetime ended before now.
func (ctrl *controller[V]) sweep(now time.Time) int {
	ctrl.log.Trace("cleanup buffers", nil)

	var expired []*buffer[V]
	ctrl.mu.Lock()
	for k, b := range ctrl.buffers {
		if b.expired(now) {
			delete(ctrl.buffers, k)
			expired = append(expired, b)
		}
	}
	ctrl.mu.Unlock()

	if len(expired) == 0 {
		return 0
	}
	for _, b := range expired {
		b.close()
	}
	ctrl.log.Trace("buffer cleanup removed expired entries", Fields{"removed": len(expired)})
	ctrl.hooks.Swept(len(expired))
	return len(expired)
}
