package signal

import (
	"sync"

	"github.com/dkeye/callrelay/internal/core"
	"golang.org/x/time/rate"
)

// EventLimiter throttles inbound events per connection with a token bucket.
type EventLimiter struct {
	mu       sync.Mutex
	limiters map[core.ConnID]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func NewEventLimiter(perSecond float64, burst int) *EventLimiter {
	return &EventLimiter{
		limiters: make(map[core.ConnID]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

func (l *EventLimiter) Allow(id core.ConnID) bool {
	l.mu.Lock()
	lim, ok := l.limiters[id]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[id] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// Forget drops the bucket of a closed connection.
func (l *EventLimiter) Forget(id core.ConnID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, id)
}

func (l *EventLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
