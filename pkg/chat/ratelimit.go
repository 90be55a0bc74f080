package chat

import (
	"sync"
	"time"
)

// RateLimiter bounds how often a single identity may trigger the
// completion provider. Sliding window: old timestamps are purged lazily
// on each check, a limited attempt is never recorded.
//
// Per-identity windows live for the process lifetime; idle identities
// are not evicted, matching how little state each window holds.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string][]time.Time
}

type RateResult struct {
	Allowed    bool
	RetryAfter time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string][]time.Time),
	}
}

// SetClock replaces the limiter's time source. Test hook.
func (rl *RateLimiter) SetClock(now func() time.Time) {
	rl.now = now
}

func (rl *RateLimiter) Check(identity string) RateResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	kept := rl.windows[identity][:0]
	for _, ts := range rl.windows[identity] {
		if now.Sub(ts) < rl.window {
			kept = append(kept, ts)
		}
	}
	rl.windows[identity] = kept

	if len(kept) >= rl.limit {
		oldest := kept[0]
		retry := rl.window - now.Sub(oldest)
		if retry < time.Second {
			retry = time.Second
		}
		return RateResult{Allowed: false, RetryAfter: retry.Truncate(time.Second)}
	}

	rl.windows[identity] = append(kept, now)
	return RateResult{Allowed: true}
}
