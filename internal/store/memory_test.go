package store

import (
	"context"
	"reflect"
	"testing"

	"github.com/culverbrock/agentbattle-engine/pkg/models"
)

// Testable Property 8: load(save(s)); load returns a record equal to s
// modulo serialization.
func TestMemoryStore_LoadIsIdempotentAfterSave(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	original := models.NewGameState("game-1", 10)
	original.Players = append(original.Players, models.Player{PlayerID: "a", Name: "Alice"})

	if err := s.Save(ctx, original); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	first, err := s.Load(ctx, "game-1")
	if err != nil {
		t.Fatalf("first load failed: %v", err)
	}
	second, err := s.Load(ctx, "game-1")
	if err != nil {
		t.Fatalf("second load failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected repeated loads to be equal: %+v vs %+v", first, second)
	}
	if first.GameID != original.GameID || len(first.Players) != len(original.Players) {
		t.Fatalf("expected loaded state to match saved state, got %+v", first)
	}
}

func TestMemoryStore_LoadMissingReturnsNil(t *testing.T) {
	s := NewMemoryStore()
	state, err := s.Load(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state != nil {
		t.Fatalf("expected nil for missing game, got %+v", state)
	}
}

func TestMemoryStore_LoadRosterMissingReturnsNil(t *testing.T) {
	s := NewMemoryStore()
	snap, err := s.LoadRoster(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap != nil {
		t.Fatalf("expected nil for unsaved roster, got %+v", snap)
	}
}

func TestMemoryStore_RosterSnapshotRoundTrips(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	original := &models.TournamentSnapshot{
		Roster: []*models.Strategy{
			{ID: "s1", Name: "Fair Splitter", CoinBalance: 500},
			{ID: "s2", Name: "Greedy Maximizer", CoinBalance: 300},
		},
		TournamentsCompleted: 3,
	}
	if err := s.SaveRoster(ctx, original); err != nil {
		t.Fatalf("save roster failed: %v", err)
	}

	loaded, err := s.LoadRoster(ctx)
	if err != nil {
		t.Fatalf("load roster failed: %v", err)
	}
	if loaded.TournamentsCompleted != 3 || len(loaded.Roster) != 2 {
		t.Fatalf("expected roster snapshot to round-trip, got %+v", loaded)
	}
}
