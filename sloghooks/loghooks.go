package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/herdcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SemaphoreEvery uint64
	CorruptEvery   uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	semaphoreCtr atomic.Uint64
	corruptCtr   atomic.Uint64
}

var _ herdcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) SemaphoreFound(key string) {
	if h.l == nil || !sample(h.opts.SemaphoreEvery, &h.semaphoreCtr) {
		return
	}
	h.l.Debug("herdcache.semaphore_found",
		"key", h.redact(key))
}

func (h *Hooks) SemaphoreAbandoned(key string, checks int) {
	if h.l == nil {
		return
	}
	h.l.Warn("herdcache.semaphore_abandoned",
		"key", h.redact(key),
		"checks", checks)
}

func (h *Hooks) WaitTimedOut(key string) {
	if h.l == nil {
		return
	}
	h.l.Info("herdcache.wait_timed_out",
		"key", h.redact(key))
}

func (h *Hooks) CorruptValue(key, reason string) {
	if h.l == nil || !sample(h.opts.CorruptEvery, &h.corruptCtr) {
		return
	}
	h.l.Warn("herdcache.corrupt_value",
		"key", h.redact(key),
		"reason", reason)
}

func (h *Hooks) BackendError(op, key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("herdcache.backend_error",
		"op", op,
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) ClientError(err error) {
	if h.l == nil {
		return
	}
	h.l.Error("herdcache.client_error",
		"err", err)
}

func (h *Hooks) Swept(n int) {
	if h.l == nil {
		return
	}
	h.l.Debug("herdcache.swept",
		"removed", n)
}
