// Package memory is an in-process provider.Client backed by jellydator/ttlcache.
// It is the reference backend for tests and single-process deployments; every
// controller that shares one *Client sees the same keyspace, which makes it a
// faithful stand-in for a networked store shared by several processes.
package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"

	pr "github.com/unkn0wn-root/herdcache/provider"
)

var ErrNotConnected = errors.New("memory provider: not connected")

type Client struct {
	pr.Notifier

	c         *ttlcache.Cache[string, []byte]
	claimMu   sync.Mutex // serializes SetNX against other writers
	connected atomic.Bool // the expiry loop runs exactly while connected
}

var (
	_ pr.Client  = (*Client)(nil)
	_ pr.Claimer = (*Client)(nil)
)

// New returns a disconnected client. Connect starts the expiry loop and Quit
// stops it; stored entries survive a reconnect.
func New() *Client {
	c := ttlcache.New[string, []byte](
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	return &Client{c: c}
}

func (p *Client) Connect(context.Context) error {
	if !p.connected.Swap(true) {
		go p.c.Start()
	}
	p.Emit(pr.Event{Kind: pr.EventConnect})
	p.Emit(pr.Event{Kind: pr.EventReady})
	return nil
}

func (p *Client) Quit(context.Context) error {
	if p.connected.Swap(false) {
		p.c.Stop()
		p.Emit(pr.Event{Kind: pr.EventEnd})
	}
	return nil
}

func (p *Client) Disconnect() error {
	return p.Quit(context.Background())
}

// Close disconnects and drops the stored data.
func (p *Client) Close() {
	_ = p.Disconnect()
	p.c.DeleteAll()
}

func (p *Client) Exists(_ context.Context, key string) (bool, error) {
	if !p.connected.Load() {
		return false, ErrNotConnected
	}
	return p.c.Get(key) != nil, nil
}

func (p *Client) Get(_ context.Context, key string) ([]byte, bool, error) {
	if !p.connected.Load() {
		return nil, false, ErrNotConnected
	}
	it := p.c.Get(key)
	if it == nil {
		return nil, false, nil
	}
	return it.Value(), true, nil
}

func (p *Client) Set(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if !p.connected.Load() {
		return false, ErrNotConnected
	}
	p.claimMu.Lock()
	p.c.Set(key, clone(value), ttlOf(ttl))
	p.claimMu.Unlock()
	return true, nil
}

func (p *Client) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if !p.connected.Load() {
		return false, ErrNotConnected
	}
	p.claimMu.Lock()
	defer p.claimMu.Unlock()
	if p.c.Get(key) != nil {
		return false, nil
	}
	p.c.Set(key, clone(value), ttlOf(ttl))
	return true, nil
}

func (p *Client) Del(_ context.Context, key string) (bool, error) {
	if !p.connected.Load() {
		return false, ErrNotConnected
	}
	p.claimMu.Lock()
	defer p.claimMu.Unlock()
	existed := p.c.Get(key) != nil
	p.c.Delete(key)
	return existed, nil
}

// Len is the number of live entries, expired ones excluded.
func (p *Client) Len() int {
	n := 0
	for _, it := range p.c.Items() {
		if !it.IsExpired() {
			n++
		}
	}
	return n
}

func ttlOf(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttlcache.NoTTL
	}
	return ttl
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
