package bot

import (
	"sync"

	"golang.org/x/time/rate"
)

// floodLimiter keeps one token bucket per user to stop rapid-fire
// messages from monopolizing the generation backend.
type floodLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newFloodLimiter(perSecond float64, burst int) *floodLimiter {
	return &floodLimiter{
		limiters: make(map[int64]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

// Allow reports whether the user may send a message right now.
func (f *floodLimiter) Allow(userID int64) bool {
	f.mu.Lock()
	limiter, ok := f.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(f.limit, f.burst)
		f.limiters[userID] = limiter
	}
	f.mu.Unlock()
	return limiter.Allow()
}
