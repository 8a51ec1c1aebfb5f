package herdcache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	pr "github.com/unkn0wn-root/herdcache/provider"
	"github.com/unkn0wn-root/herdcache/provider/bigcache"
	"github.com/unkn0wn-root/herdcache/provider/bolt"
	"github.com/unkn0wn-root/herdcache/provider/ristretto"
)

func TestControllerOverLocalBackends(t *testing.T) {
	cases := []struct {
		name string
		make func(t *testing.T) pr.Client
	}{
		{"memory", func(t *testing.T) pr.Client { return newMemory(t) }},
		{"ristretto", func(t *testing.T) pr.Client {
			p, err := ristretto.New(ristretto.Config{NumCounters: 1000, MaxCost: 1 << 20, BufferItems: 64})
			if err != nil {
				t.Fatalf("ristretto.New: %v", err)
			}
			return p
		}},
		{"bigcache", func(t *testing.T) pr.Client {
			p, err := bigcache.New(bigcache.Config{LifeWindow: time.Minute})
			if err != nil {
				t.Fatalf("bigcache.New: %v", err)
			}
			return p
		}},
		{"bolt", func(t *testing.T) pr.Client {
			s, err := bolt.New(bolt.Options{Path: filepath.Join(t.TempDir(), "herd.db")})
			if err != nil {
				t.Fatalf("bolt.New: %v", err)
			}
			return s
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := mustNew(t, Options[doc]{Client: tc.make(t), RaceTime: 2 * time.Second})
			ctx := context.Background()

			const n = 4
			results := make(chan result[doc], n)
			for i := 0; i < n; i++ {
				go func() {
					v, ok, err := ctrl.Get(ctx, "k")
					results <- result[doc]{v, ok, err}
				}()
			}
			if r := <-results; r.ok || r.err != nil {
				t.Fatalf("first result = (%v, %v), want absence", r.ok, r.err)
			}
			if err := ctrl.Set(ctx, "k", doc{"found": true}, 0); err != nil {
				t.Fatalf("Set: %v", err)
			}
			for i := 1; i < n; i++ {
				if r := <-results; !r.ok || r.v["found"] != true {
					t.Fatalf("waiter got (%v, %v, %v)", r.v, r.ok, r.err)
				}
			}
		})
	}
}
