package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/herdcache/provider"
)

var ErrNilClient = errors.New("redis provider: nil client")

// Redis is the multi-process backend: every controller pointed at the same
// Redis deployment coordinates through it.
type Redis struct {
	pr.Notifier

	rdb         goredis.UniversalClient
	closeClient bool
}

var (
	_ pr.Client  = (*Redis)(nil)
	_ pr.Claimer = (*Redis)(nil)
)

type Config struct {
	Client      goredis.UniversalClient
	CloseClient bool // set true only if this provider exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	p := &Redis{rdb: cfg.Client, closeClient: cfg.CloseClient}
	cfg.Client.AddHook(eventHook{n: &p.Notifier})
	return p, nil
}

// Connect verifies the server is reachable. go-redis dials lazily, so a PING is
// the earliest point where a broken address shows up.
func (p *Redis) Connect(ctx context.Context) error {
	if err := p.rdb.Ping(ctx).Err(); err != nil {
		return err
	}
	p.Emit(pr.Event{Kind: pr.EventReady})
	return nil
}

func (p *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := p.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

func (p *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = 0 // treat non-positive TTLs as "no expiry" per provider contract
	}
	if err := p.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Redis) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = 0
	}
	return p.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (p *Redis) Del(ctx context.Context, key string) (bool, error) {
	n, err := p.rdb.Del(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Quit releases the underlying redis client only when this provider owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Quit(context.Context) error {
	defer p.Emit(pr.Event{Kind: pr.EventEnd})
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

// Disconnect closes the client even when it is not owned by the provider.
func (p *Redis) Disconnect() error {
	defer p.Emit(pr.Event{Kind: pr.EventEnd})
	if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
		return err
	}
	return nil
}
