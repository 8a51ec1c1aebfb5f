package ristretto

import (
	"context"
	"errors"
	"sync"
	"time"

	rc "github.com/dgraph-io/ristretto"

	pr "github.com/unkn0wn-root/herdcache/provider"
)

// Provider is a cost-bounded, single-process backend. Ristretto may drop writes
// under pressure; Set reports that as ok=false and herdcache waiters then fall
// back to absence.
type Provider struct {
	pr.Notifier

	c         *rc.Cache
	costOf    func(key string, value []byte) int64
	claimMu   sync.Mutex
	closeOnce sync.Once
}

var (
	_ pr.Client  = (*Provider)(nil)
	_ pr.Claimer = (*Provider)(nil)
)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
	// Cost computes the admission cost of a value. nil => len(value).
	Cost func(key string, value []byte) int64
}

func New(cfg Config) (*Provider, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	costOf := cfg.Cost
	if costOf == nil {
		costOf = func(_ string, v []byte) int64 { return int64(len(v)) }
	}
	return &Provider{c: c, costOf: costOf}, nil
}

func (p *Provider) Connect(context.Context) error {
	p.Emit(pr.Event{Kind: pr.EventConnect})
	p.Emit(pr.Event{Kind: pr.EventReady})
	return nil
}

func (p *Provider) Exists(_ context.Context, key string) (bool, error) {
	_, ok := p.c.Get(key)
	return ok, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

// Set waits for the write buffer to drain so that a Get issued right after Set
// observes the value. herdcache relies on that ordering when waking waiters.
func (p *Provider) Set(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	p.claimMu.Lock()
	defer p.claimMu.Unlock()
	return p.set(key, value, ttl), nil
}

func (p *Provider) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	p.claimMu.Lock()
	defer p.claimMu.Unlock()
	if _, ok := p.c.Get(key); ok {
		return false, nil
	}
	return p.set(key, value, ttl), nil
}

func (p *Provider) set(key string, value []byte, ttl time.Duration) bool {
	if ttl < 0 {
		ttl = 0
	}
	b := append([]byte(nil), value...)
	ok := p.c.SetWithTTL(key, b, p.costOf(key, b), ttl)
	p.c.Wait()
	return ok
}

func (p *Provider) Del(_ context.Context, key string) (bool, error) {
	_, existed := p.c.Get(key)
	p.c.Del(key)
	return existed, nil
}

func (p *Provider) Quit(context.Context) error {
	p.closeOnce.Do(func() {
		p.c.Wait()
		p.c.Close()
		p.Emit(pr.Event{Kind: pr.EventEnd})
	})
	return nil
}

func (p *Provider) Disconnect() error { return p.Quit(context.Background()) }

// Helper to expose metrics if desired by the application (not part of provider.Client).
func (p *Provider) Metrics() *rc.Metrics { return p.c.Metrics }
