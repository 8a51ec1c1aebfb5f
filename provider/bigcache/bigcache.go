package bigcache

import (
	"context"
	"errors"
	"sync"
	"time"

	bc "github.com/allegro/bigcache/v3"

	pr "github.com/unkn0wn-root/herdcache/provider"
)

// Provider is a single-process backend with one global expiry window.
// BigCache has no per-entry TTL, so LifeWindow should be at least the controller TTL.
type Provider struct {
	pr.Notifier

	cfg     bc.Config
	mu      sync.RWMutex
	c       *bc.BigCache
	claimMu sync.Mutex
}

var (
	_ pr.Client  = (*Provider)(nil)
	_ pr.Claimer = (*Provider)(nil)
)

var ErrNotConnected = errors.New("bigcache provider: not connected")

type Config struct {
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

// New validates the configuration; the cache itself is allocated on Connect.
func New(cfg Config) (*Provider, error) {
	if cfg.LifeWindow <= 0 {
		return nil, errors.New("bigcache: LifeWindow is required")
	}
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	conf.Verbose = false
	return &Provider{cfg: conf}, nil
}

func (p *Provider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.c != nil {
		return nil
	}
	p.Emit(pr.Event{Kind: pr.EventConnect})
	c, err := bc.New(ctx, p.cfg)
	if err != nil {
		p.EmitError(err)
		return err
	}
	p.c = c
	p.Emit(pr.Event{Kind: pr.EventReady})
	return nil
}

func (p *Provider) cache() (*bc.BigCache, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.c == nil {
		return nil, ErrNotConnected
	}
	return p.c, nil
}

func (p *Provider) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := p.Get(ctx, key)
	return ok, err
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	c, err := p.cache()
	if err != nil {
		return nil, false, err
	}
	b, err := c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Set ignores ttl: BigCache evicts on its global LifeWindow.
func (p *Provider) Set(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	c, err := p.cache()
	if err != nil {
		return false, err
	}
	p.claimMu.Lock()
	defer p.claimMu.Unlock()
	return true, c.Set(key, value)
}

func (p *Provider) SetNX(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	c, err := p.cache()
	if err != nil {
		return false, err
	}
	p.claimMu.Lock()
	defer p.claimMu.Unlock()
	if _, err := c.Get(key); err == nil {
		return false, nil
	}
	return true, c.Set(key, value)
}

func (p *Provider) Del(_ context.Context, key string) (bool, error) {
	c, err := p.cache()
	if err != nil {
		return false, err
	}
	p.claimMu.Lock()
	defer p.claimMu.Unlock()
	err = c.Delete(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (p *Provider) Quit(context.Context) error {
	p.mu.Lock()
	c := p.c
	p.c = nil
	p.mu.Unlock()
	if c == nil {
		return nil
	}
	defer p.Emit(pr.Event{Kind: pr.EventEnd})
	return c.Close()
}

func (p *Provider) Disconnect() error { return p.Quit(context.Background()) }
