package orchestrator

import (
	"context"
	"sync"

	"github.com/culverbrock/agentbattle-engine/internal/matrix"
	"github.com/culverbrock/agentbattle-engine/pkg/models"
)

// runningGame is the live-machine cache entry for one gameId: the mutable
// Game State plus its negotiation matrix and broadcast hub, guarded by its
// own mutex so concurrent callers for the same game serialize, and callers
// for different games never block each other.
type runningGame struct {
	mu     sync.Mutex
	state  *models.GameState
	matrix *matrix.Matrix
	hub    *Hub
	ctx    context.Context
	cancel context.CancelFunc
}

// registry is the at-most-one-active-orchestrator-task-per-gameId cache,
// directly modeled on the teacher's InvestigationManager
// (internal/heuristics/investigation.go): a sync.RWMutex-guarded
// map[id]*T with Create/Get/List/Delete.
type registry struct {
	mu    sync.RWMutex
	games map[string]*runningGame
}

func newRegistry() *registry {
	return &registry{games: make(map[string]*runningGame)}
}

func (r *registry) get(gameID string) *runningGame {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.games[gameID]
}

func (r *registry) put(gameID string, g *runningGame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games[gameID] = g
}

func (r *registry) delete(gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.games, gameID)
}

func (r *registry) list() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.games))
	for id := range r.games {
		ids = append(ids, id)
	}
	return ids
}
