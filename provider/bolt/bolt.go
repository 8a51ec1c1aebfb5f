// Package bolt is a persistent single-host provider.Client backed by bbolt.
// Entries survive restarts; expiry is checked lazily on read.
package bolt

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	pr "github.com/unkn0wn-root/herdcache/provider"
)

var ErrNotConnected = errors.New("bolt provider: not connected")

type Options struct {
	// Path is the database file. Required.
	Path string
	// Bucket is the name of the Bolt bucket to use. Default "herdcache".
	Bucket string
	// OpenTimeout bounds the wait for the file lock. Default 1s.
	OpenTimeout time.Duration
}

type Store struct {
	pr.Notifier

	opts   Options
	bucket []byte

	mu sync.RWMutex
	db *bolt.DB
}

var (
	_ pr.Client  = (*Store)(nil)
	_ pr.Claimer = (*Store)(nil)
)

func New(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, errors.New("bolt provider: path is required")
	}
	if opts.Bucket == "" {
		opts.Bucket = "herdcache"
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = time.Second
	}
	return &Store{opts: opts, bucket: []byte(opts.Bucket)}, nil
}

func (s *Store) Connect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}
	db, err := bolt.Open(s.opts.Path, 0o600, &bolt.Options{Timeout: s.opts.OpenTimeout})
	if err != nil {
		s.EmitError(err)
		return err
	}
	s.Emit(pr.Event{Kind: pr.EventConnect})
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(s.bucket)
		return err
	}); err != nil {
		_ = db.Close()
		s.EmitError(err)
		return err
	}
	s.db = db
	s.Emit(pr.Event{Kind: pr.EventReady})
	return nil
}

func (s *Store) Quit(context.Context) error {
	s.mu.Lock()
	db := s.db
	s.db = nil
	s.mu.Unlock()
	if db == nil {
		return nil
	}
	defer s.Emit(pr.Event{Kind: pr.EventEnd})
	return db.Close()
}

func (s *Store) Disconnect() error { return s.Quit(context.Background()) }

func (s *Store) handle() (*bolt.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrNotConnected
	}
	return s.db, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	db, err := s.handle()
	if err != nil {
		return nil, false, err
	}
	var (
		out   []byte
		found bool
	)
	err = db.View(func(tx *bolt.Tx) error {
		v, ok := live(tx.Bucket(s.bucket).Get([]byte(key)), time.Now())
		if ok {
			out = append([]byte{}, v...)
			found = true
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, found, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	db, err := s.handle()
	if err != nil {
		return false, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), encode(value, ttl))
	})
	return err == nil, err
}

// SetNX runs inside a single write transaction; bbolt serializes writers.
func (s *Store) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	db, err := s.handle()
	if err != nil {
		return false, err
	}
	claimed := false
	err = db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if _, ok := live(b.Get([]byte(key)), time.Now()); ok {
			return nil
		}
		claimed = true
		return b.Put([]byte(key), encode(value, ttl))
	})
	if err != nil {
		return false, err
	}
	return claimed, nil
}

func (s *Store) Del(_ context.Context, key string) (bool, error) {
	db, err := s.handle()
	if err != nil {
		return false, err
	}
	existed := false
	err = db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		_, existed = live(b.Get([]byte(key)), time.Now())
		return b.Delete([]byte(key))
	})
	return existed, err
}

// Purge deletes expired entries and returns how many were removed.
func (s *Store) Purge() (int, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}
	now := time.Now()
	removed := 0
	err = db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		var dead [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			if _, ok := live(v, now); !ok {
				dead = append(dead, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range dead {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(dead)
		return nil
	})
	return removed, err
}

// Layout: 8 bytes big endian expiresAt (unix nanos, 0 = never) || raw value
func encode(value []byte, ttl time.Duration) []byte {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl).UnixNano()
	}
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(expiresAt))
	copy(buf[8:], value)
	return buf
}

func live(raw []byte, now time.Time) ([]byte, bool) {
	if len(raw) < 8 {
		return nil, false
	}
	expiresAt := int64(binary.BigEndian.Uint64(raw[:8]))
	if expiresAt > 0 && now.UnixNano() > expiresAt {
		return nil, false
	}
	return raw[8:], true
}
