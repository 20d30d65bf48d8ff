package orchestrator

import (
	"sync"
	"time"
)

// disconnectTimers tracks one cancellable timer per (gameId, playerId),
// keyed exactly as spec.md §4.5 describes, using time.AfterFunc the same
// way the teacher's mempool poller schedules deferred work.
type disconnectTimers struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newDisconnectTimers() *disconnectTimers {
	return &disconnectTimers{timers: make(map[string]*time.Timer)}
}

func timerKey(gameID, playerID string) string {
	return gameID + "\x00" + playerID
}

// Start schedules fn to run after d unless Cancel is called first for the
// same (gameID, playerID). Starting again for the same key replaces any
// pending timer.
func (t *disconnectTimers) Start(gameID, playerID string, d time.Duration, fn func()) {
	key := timerKey(gameID, playerID)

	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.timers[key]; ok {
		existing.Stop()
	}
	t.timers[key] = time.AfterFunc(d, func() {
		t.mu.Lock()
		delete(t.timers, key)
		t.mu.Unlock()
		fn()
	})
}

// Cancel stops a pending timer for (gameID, playerID), if one exists — used
// on reconnect.
func (t *disconnectTimers) Cancel(gameID, playerID string) {
	key := timerKey(gameID, playerID)

	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.timers[key]; ok {
		existing.Stop()
		delete(t.timers, key)
	}
}

// CancelAllForGame stops every pending timer for gameID, e.g. on shutdown.
func (t *disconnectTimers) CancelAllForGame(gameID string) {
	prefix := gameID + "\x00"
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, timer := range t.timers {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			timer.Stop()
			delete(t.timers, key)
		}
	}
}
