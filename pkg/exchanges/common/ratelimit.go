package common

import (
	"log"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Throttle caps outbound request rate to a venue.
type Throttle struct {
	limiter *rate.Limiter
	denied  atomic.Uint64
}

// NewThrottle creates a throttle allowing perSecond requests with the given
// burst. perSecond <= 0 disables throttling.
func NewThrottle(perSecond float64, burst int) *Throttle {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &Throttle{limiter: rate.NewLimiter(limit, burst)}
}

// Allow reports whether a request may be sent now.
func (t *Throttle) Allow() bool {
	if t.limiter.Allow() {
		return true
	}
	n := t.denied.Add(1)
	if n == 1 || n%100 == 0 {
		log.Printf("rate limit: %d request(s) denied (limit=%.2f/s burst=%d)", n, float64(t.limiter.Limit()), t.limiter.Burst())
	}
	return false
}

// Denied returns how many requests were refused.
func (t *Throttle) Denied() uint64 {
	return t.denied.Load()
}
