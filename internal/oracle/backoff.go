package oracle

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

const (
	baseBackoff = 500 * time.Millisecond
	maxBackoff  = 30 * time.Second
)

// cryptoRandFloat64 returns a cryptographically random float64 in [0, 1).
// Lifted from the teacher's routes.go helper of the same name, used there
// for synthetic-transaction value jitter and here for backoff jitter.
func cryptoRandFloat64() float64 {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return 0.5
	}
	n := binary.BigEndian.Uint64(b) >> 11
	return float64(n) / float64(1<<53)
}

// backoffDuration doubles per consecutive rate limit, capped, with +/-25%
// jitter so a fleet of agents hitting the same window don't retry in lockstep.
func backoffDuration(consecutiveRateLimits int) time.Duration {
	d := baseBackoff
	for i := 0; i < consecutiveRateLimits && d < maxBackoff; i++ {
		d *= 2
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	jitter := 0.75 + cryptoRandFloat64()*0.5 // in [0.75, 1.25)
	return time.Duration(float64(d) * jitter)
}
