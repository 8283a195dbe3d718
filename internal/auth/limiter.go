package auth

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter is a per-key token bucket, keyed by client address.
type Limiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	every    rate.Limit
	burst    int
	clock    clock.Clock
}

// NewLimiter allows perMinute attempts per key, all of which may be spent
// at once. perMinute <= 0 disables limiting.
func NewLimiter(perMinute int, clk clock.Clock) *Limiter {
	if clk == nil {
		clk = clock.New()
	}
	l := &Limiter{visitors: map[string]*visitor{}, clock: clk}
	if perMinute <= 0 {
		l.every = rate.Inf
		return l
	}
	l.every = rate.Every(time.Minute / time.Duration(perMinute))
	l.burst = perMinute
	return l
}

func (l *Limiter) Allow(key string) bool {
	if l.every == rate.Inf {
		return true
	}
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.every, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Sweep forgets keys unseen for at least idle and returns how many were
// dropped.
func (l *Limiter) Sweep(idle time.Duration) int {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, v := range l.visitors {
		if now.Sub(v.lastSeen) >= idle {
			delete(l.visitors, k)
			n++
		}
	}
	return n
}
