package tournament

import (
	"context"
	"testing"
	"time"

	"github.com/culverbrock/agentbattle-engine/internal/oracle"
	"github.com/culverbrock/agentbattle-engine/internal/store"
	"github.com/culverbrock/agentbattle-engine/pkg/models"
)

type fixedSynthesisBackend struct{ text string; err error }

func (b *fixedSynthesisBackend) Complete(ctx context.Context, req oracle.Request) (string, int, error) {
	if b.err != nil {
		return "", 0, b.err
	}
	return b.text, 10, nil
}

func newStrategy(name string, balance int) *models.Strategy {
	return &models.Strategy{ID: name, Name: name, StrategyText: "x", CoinBalance: balance}
}

// Scenario F: six strategies finish a tournament, one is bankrupt, one is
// synthesized with median-of-pre-evolution-roster balance, and total
// coinage is conserved exactly.
func TestEvolve_ScenarioF_BankruptcyConservesCoinage(t *testing.T) {
	roster := &Roster{Strategies: []*models.Strategy{
		newStrategy("s1", 900),
		newStrategy("s2", 700),
		newStrategy("s3", 600),
		newStrategy("s4", 500),
		newStrategy("s5", 300),
		newStrategy("s6", 40), // bankrupt, below threshold 100
	}}
	preTotal := roster.TotalCoinage()

	backend := &fixedSynthesisBackend{text: `{"name": "New Blood", "strategy": "Start generous, tighten after round 2."}`}
	orc := oracle.New(backend, 600, 900_000, time.Second)

	result, err := Evolve(context.Background(), roster, orc, 100)
	if err != nil {
		t.Fatalf("evolve: %v", err)
	}
	if result.Branch != "bankruptcy" {
		t.Fatalf("expected bankruptcy branch, got %s", result.Branch)
	}
	if len(result.Eliminated) != 1 || result.Eliminated[0] != "s6" {
		t.Fatalf("expected s6 eliminated, got %+v", result.Eliminated)
	}
	if len(result.Synthesized) != 1 {
		t.Fatalf("expected exactly one synthesized strategy, got %d", len(result.Synthesized))
	}

	postTotal := roster.TotalCoinage()
	if postTotal != preTotal {
		t.Fatalf("expected coin conservation: pre=%d post=%d", preTotal, postTotal)
	}
	if len(roster.Strategies) != 6 {
		t.Fatalf("expected roster to stay at 6 strategies, got %d", len(roster.Strategies))
	}
}

// When no strategy is bankrupt, evolution forces out the bottom two by
// balance instead.
func TestEvolve_ForcedEvolutionRemovesBottomTwo(t *testing.T) {
	roster := &Roster{Strategies: []*models.Strategy{
		newStrategy("s1", 900),
		newStrategy("s2", 700),
		newStrategy("s3", 600),
		newStrategy("s4", 500),
		newStrategy("s5", 300),
		newStrategy("s6", 200),
	}}
	preTotal := roster.TotalCoinage()

	backend := &fixedSynthesisBackend{text: `{"name": "Challenger", "strategy": "Undercut the median offer."}`}
	orc := oracle.New(backend, 600, 900_000, time.Second)

	result, err := Evolve(context.Background(), roster, orc, 100)
	if err != nil {
		t.Fatalf("evolve: %v", err)
	}
	if result.Branch != "forced_evolution" {
		t.Fatalf("expected forced_evolution branch, got %s", result.Branch)
	}
	if len(result.Eliminated) != 2 {
		t.Fatalf("expected 2 eliminated, got %+v", result.Eliminated)
	}
	for _, id := range result.Eliminated {
		if id != "s5" && id != "s6" {
			t.Fatalf("expected the two lowest-balance strategies eliminated, got %q", id)
		}
	}
	if roster.TotalCoinage() != preTotal {
		t.Fatalf("expected coin conservation across forced evolution")
	}
}

// When the oracle fails, synthesis falls back to the canonical pool rather
// than aborting the evolution step.
func TestEvolve_SynthesisFailureFallsBackToCanonicalPool(t *testing.T) {
	roster := &Roster{Strategies: []*models.Strategy{
		newStrategy("s1", 900),
		newStrategy("s2", 700),
		newStrategy("s3", 600),
		newStrategy("s4", 500),
		newStrategy("s5", 300),
		newStrategy("s6", 50),
	}}

	backend := &fixedSynthesisBackend{err: context.DeadlineExceeded}
	orc := oracle.New(backend, 600, 900_000, time.Millisecond)

	result, err := Evolve(context.Background(), roster, orc, 100)
	if err != nil {
		t.Fatalf("evolve: %v", err)
	}
	if len(result.Synthesized) != 1 {
		t.Fatalf("expected one synthesized fallback strategy")
	}
	if result.Synthesized[0].Archetype != "fallback" {
		t.Fatalf("expected fallback archetype, got %q", result.Synthesized[0].Archetype)
	}
}

func TestMedianBalance_EvenAndOddRosters(t *testing.T) {
	odd := []*models.Strategy{newStrategy("a", 100), newStrategy("b", 300), newStrategy("c", 200)}
	if got := medianBalance(odd); got != 200 {
		t.Fatalf("expected median 200 for odd roster, got %d", got)
	}

	even := []*models.Strategy{newStrategy("a", 100), newStrategy("b", 200), newStrategy("c", 300), newStrategy("d", 400)}
	if got := medianBalance(even); got != 250 {
		t.Fatalf("expected median 250 for even roster, got %d", got)
	}
}

// A roster snapshot persisted via Controller.persistSnapshot resumes
// exactly, including the tournaments-completed counter, via LoadOrSeedRoster.
func TestLoadOrSeedRoster_ResumesFromPersistedSnapshot(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	roster := &Roster{Strategies: []*models.Strategy{
		newStrategy("s1", 620),
		newStrategy("s2", 480),
	}}
	c := &Controller{Roster: roster, Store: st, TournamentsCompleted: 4}
	c.persistSnapshot(ctx)

	seed := &Roster{Strategies: []*models.Strategy{newStrategy("seed", 500)}}
	resumed, completed := LoadOrSeedRoster(ctx, st, seed)

	if completed != 4 {
		t.Fatalf("expected resumed tournaments completed=4, got %d", completed)
	}
	if len(resumed.Strategies) != 2 || resumed.Strategies[0].ID != "s1" {
		t.Fatalf("expected resumed roster to match persisted snapshot, got %+v", resumed.Strategies)
	}
}

// With no persisted snapshot, LoadOrSeedRoster falls back to the seed
// roster and a zero completed count.
func TestLoadOrSeedRoster_FallsBackToSeedWhenNoSnapshot(t *testing.T) {
	st := store.NewMemoryStore()
	seed := &Roster{Strategies: []*models.Strategy{newStrategy("seed", 500)}}

	resumed, completed := LoadOrSeedRoster(context.Background(), st, seed)

	if completed != 0 {
		t.Fatalf("expected completed=0 with no snapshot, got %d", completed)
	}
	if resumed != seed {
		t.Fatalf("expected the seed roster to be returned unchanged")
	}
}

func TestApplyGameResult_UpdatesEconomics(t *testing.T) {
	s := newStrategy("s1", 500)
	ApplyGameResult(s, 180, 100, true)

	if s.CoinBalance != 580 {
		t.Fatalf("expected balance 580, got %d", s.CoinBalance)
	}
	if s.GamesPlayed != 1 || s.TotalInvested != 100 || s.TotalReturned != 180 {
		t.Fatalf("unexpected economics: %+v", s)
	}
	if len(s.WinHistory) != 1 || !s.WinHistory[0] {
		t.Fatalf("expected win recorded, got %+v", s.WinHistory)
	}
}
