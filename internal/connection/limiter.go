package connection

import (
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// GlobalLimiter caps total concurrent handles per process. Lock-free
// counting via compare-and-swap.
type GlobalLimiter struct {
	current atomic.Int64
	max     int64
}

func NewGlobalLimiter(max int64) *GlobalLimiter {
	return &GlobalLimiter{max: max}
}

// Acquire claims a slot, returning false at capacity.
func (l *GlobalLimiter) Acquire() bool {
	for {
		current := l.current.Load()
		if current >= l.max {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

// Release frees a slot.
func (l *GlobalLimiter) Release() {
	l.current.Add(-1)
}

// Current returns the number of claimed slots.
func (l *GlobalLimiter) Current() int64 {
	return l.current.Load()
}

// Max returns the configured cap.
func (l *GlobalLimiter) Max() int64 {
	return l.max
}

// TenantRateLimiter throttles new connections per tenant using a token
// bucket per tenant ID.
type TenantRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func NewTenantRateLimiter(connectionsPerSecond float64, burst int) *TenantRateLimiter {
	return &TenantRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(connectionsPerSecond),
		burst:    burst,
	}
}

// Allow reports whether a new connection for the tenant may proceed now.
func (l *TenantRateLimiter) Allow(tenantID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[tenantID]
	if !ok {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[tenantID] = limiter
	}
	return limiter.Allow()
}

// Forget drops the bucket for a tenant, bounding the map for tenants that
// have gone away.
func (l *TenantRateLimiter) Forget(tenantID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, tenantID)
}
