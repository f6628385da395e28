// Package ratelimit keys a small set of per-host token buckets so pipelines
// sharing one API host inside a tenant's fan-out don't need to coordinate a
// limiter of their own.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Registry hands out a shared *rate.Limiter per host string.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	perSec   float64
	burst    int
}

// NewRegistry builds a registry whose limiters allow perSec requests per
// second with the given burst allowance.
func NewRegistry(perSec float64, burst int) *Registry {
	return &Registry{
		limiters: make(map[string]*rate.Limiter),
		perSec:   perSec,
		burst:    burst,
	}
}

// Limiter returns the shared limiter for host, creating it on first use.
func (r *Registry) Limiter(host string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(r.perSec), r.burst)
		r.limiters[host] = l
	}
	return l
}
