// Package herdcache guards a shared cache against stampedes ("thundering herds"):
// when many callers miss the same key at once, exactly one of them computes the
// value while the rest wait for it, instead of all of them hitting the origin.
//
// Components:
//   - provider.Client: byte store with TTLs and a connection lifecycle
//     (in-memory, Redis, Ristretto, BigCache, bbolt).
//   - Codec[V]: (de)serializes V <-> []byte. Values must be objects or arrays.
//   - Controller[V]: keeps one coordination buffer per key and sweeps expired ones.
//
// Coordination:
//
//	in-process     waiters block on the buffer and are woken by Set
//	cross-process  the first caller writes a semaphore marker under the key;
//	               other processes see the marker and poll until it is replaced
//
// Waiting is bounded by RaceTime; a waiter that times out gets absence and is
// expected to compute the value itself.
//
// Usage:
//
//	v, ok, err := ctrl.Get(ctx, k)
//	if err == nil && !ok {
//		v = load(k)
//		_ = ctrl.Set(ctx, k, v, 0)
//	}
package herdcache
