package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/culverbrock/agentbattle-engine/pkg/models"
)

// MemoryStore is an in-process Store for tests and local development. It
// round-trips through JSON on save so Load returns an independent copy,
// catching accidental state aliasing the same way a real backing store
// would.
type MemoryStore struct {
	mu             sync.RWMutex
	games          map[string][]byte
	rosterSnapshot []byte
}

// NewMemoryStore builds an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{games: make(map[string][]byte)}
}

func (s *MemoryStore) Save(ctx context.Context, state *models.GameState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("memory store: marshal game %s: %w", state.GameID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[state.GameID] = blob
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, gameID string) (*models.GameState, error) {
	s.mu.RLock()
	blob, ok := s.games[gameID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var state models.GameState
	if err := json.Unmarshal(blob, &state); err != nil {
		return nil, fmt.Errorf("memory store: unmarshal game %s: %w", gameID, err)
	}
	return &state, nil
}

func (s *MemoryStore) SaveRoster(ctx context.Context, snapshot *models.TournamentSnapshot) error {
	blob, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("memory store: marshal roster snapshot: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rosterSnapshot = blob
	return nil
}

func (s *MemoryStore) LoadRoster(ctx context.Context) (*models.TournamentSnapshot, error) {
	s.mu.RLock()
	blob := s.rosterSnapshot
	s.mu.RUnlock()
	if blob == nil {
		return nil, nil
	}
	var snapshot models.TournamentSnapshot
	if err := json.Unmarshal(blob, &snapshot); err != nil {
		return nil, fmt.Errorf("memory store: unmarshal roster snapshot: %w", err)
	}
	return &snapshot, nil
}
