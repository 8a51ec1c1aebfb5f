package herdcache

import "time"

const (
	defaultTTL             = 300 * time.Second
	defaultRaceTime        = 30 * time.Second
	defaultSemaphoreChecks = 10

	// sweeps per TTL window
	sweepsPerTTL = 5
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
