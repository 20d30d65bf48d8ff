package oracle

import (
	"sync"
	"time"
)

// slidingWindowTracker guards per-minute request and token budgets with a
// single rolling window, refilled lazily on access — the same "accumulate
// since lastSeen, reset when the window elapses" discipline as the teacher's
// per-IP token bucket (internal/api/ratelimit.go's ipBucket), generalized
// from one counter (requests) to two (requests, tokens) and from a
// replenishing bucket to a hard per-window ceiling, since oracle budgets are
// quota-shaped rather than leaky-bucket-shaped.
type slidingWindowTracker struct {
	mu sync.Mutex

	rpm int
	tpm int

	windowStart      time.Time
	requestsInWindow int
	tokensInWindow   int

	consecutiveRateLimits int
}

func newSlidingWindowTracker(rpm, tpm int) *slidingWindowTracker {
	return &slidingWindowTracker{
		rpm:         rpm,
		tpm:         tpm,
		windowStart: time.Now(),
	}
}

func (t *slidingWindowTracker) rollIfExpired(now time.Time) {
	if now.Sub(t.windowStart) >= time.Minute {
		t.windowStart = now
		t.requestsInWindow = 0
		t.tokensInWindow = 0
	}
}

// admit reports whether a call estimated to cost estimatedTokens may proceed
// right now. On denial it also reports how long until the current window
// rolls over, so the caller can decide whether to wait or fail fast.
func (t *slidingWindowTracker) admit(estimatedTokens int) (ok bool, retryAfter time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.rollIfExpired(now)

	if t.requestsInWindow >= t.rpm || t.tokensInWindow+estimatedTokens > t.tpm {
		return false, time.Minute - now.Sub(t.windowStart)
	}

	t.requestsInWindow++
	t.tokensInWindow += estimatedTokens
	return true, 0
}

// recordUsage reconciles the actual token usage of a completed call against
// the estimate already committed by admit.
func (t *slidingWindowTracker) recordUsage(estimated, actual int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tokensInWindow += actual - estimated
	if t.tokensInWindow < 0 {
		t.tokensInWindow = 0
	}
}

func (t *slidingWindowTracker) noteRateLimited() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutiveRateLimits++
}

func (t *slidingWindowTracker) noteSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consecutiveRateLimits = 0
}

// snapshot is a point-in-time read of the tracker's counters.
type snapshot struct {
	RequestsThisMinute    int
	TokensThisMinute      int
	ConsecutiveRateLimits int
	MinutesUntilReset     float64
}

func (t *slidingWindowTracker) snapshot() snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	remaining := time.Minute - now.Sub(t.windowStart)
	if remaining < 0 {
		remaining = 0
	}

	return snapshot{
		RequestsThisMinute:    t.requestsInWindow,
		TokensThisMinute:      t.tokensInWindow,
		ConsecutiveRateLimits: t.consecutiveRateLimits,
		MinutesUntilReset:     remaining.Minutes(),
	}
}

// budgetPressure returns the max of the request/token budget fractions used
// this window, in [0, 1+].
func (t *slidingWindowTracker) budgetPressure() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	reqFrac := float64(t.requestsInWindow) / float64(t.rpm)
	tokFrac := float64(t.tokensInWindow) / float64(t.tpm)
	if reqFrac > tokFrac {
		return reqFrac
	}
	return tokFrac
}
