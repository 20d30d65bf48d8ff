package orchestrator

import (
	"testing"

	"github.com/culverbrock/agentbattle-engine/pkg/models"
)

func votesSumming(voterAllocations map[string]models.Vote) map[string]models.Vote {
	return voterAllocations
}

// Scenario A — Straight win (3 players, no outright winner, lowest-vote
// elimination). Totals: A=130, B=100, C=70 out of 300; C is eliminated.
func TestDecideEndgame_ScenarioA_NoOutrightWinnerEliminatesLowest(t *testing.T) {
	state := models.NewGameState("game-a", 10)
	state.Players = []models.Player{{PlayerID: "A"}, {PlayerID: "B"}, {PlayerID: "C"}}
	state.Eliminated = map[string]bool{}

	proposals := []models.Proposal{
		{ProposerID: "A", Allocation: map[string]int{"A": 60, "B": 20, "C": 20}},
		{ProposerID: "B", Allocation: map[string]int{"A": 20, "B": 60, "C": 20}},
		{ProposerID: "C", Allocation: map[string]int{"A": 34, "B": 33, "C": 33}},
	}
	votes := votesSumming(map[string]models.Vote{
		"A": {"A": 100},
		"B": {"B": 100},
		"C": {"C": 70, "A": 30},
	})

	res := decideEndgame(state, proposals, votes, 0.61)
	if res.Winner != nil {
		t.Fatalf("expected no outright winner, got %+v", res.Winner)
	}
	if res.EliminatedID != "C" {
		t.Fatalf("expected C to be eliminated (lowest at 70), got %q", res.EliminatedID)
	}
}

// Scenario B — Supermajority: P1 gets 250/400 = 62.5%, crossing the 0.61
// threshold outright.
func TestDecideEndgame_ScenarioB_SupermajorityWinsOutright(t *testing.T) {
	state := models.NewGameState("game-b", 10)
	state.Players = []models.Player{{PlayerID: "P1"}, {PlayerID: "P2"}, {PlayerID: "P3"}, {PlayerID: "P4"}}
	state.Eliminated = map[string]bool{}

	proposals := []models.Proposal{
		{ProposerID: "P1", Allocation: map[string]int{"P1": 40, "P2": 20, "P3": 20, "P4": 20}},
		{ProposerID: "P2", Allocation: map[string]int{"P1": 10, "P2": 60, "P3": 15, "P4": 15}},
	}
	votes := map[string]models.Vote{
		"P1": {"P1": 100},
		"P2": {"P1": 100},
		"P3": {"P1": 50, "P2": 50},
		"P4": {"P2": 100, "P1": 0},
	}
	// Totals: P1 = 100+100+50+0 = 250, P2 = 50+100 = 150, total = 400.

	res := decideEndgame(state, proposals, votes, 0.61)
	if res.Winner == nil || res.Winner.ProposerID != "P1" {
		t.Fatalf("expected P1 to win outright, got %+v", res.Winner)
	}
}

// Scenario C — Two-player tiebreak by greed: self-shares 40 and 50 differ
// by more than 5pp, so the less greedy (40) proposer wins regardless of
// vote totals.
func TestDecideEndgame_ScenarioC_TiebreakByGreedBeyondThreshold(t *testing.T) {
	state := models.NewGameState("game-c", 5)
	state.Players = []models.Player{{PlayerID: "X"}, {PlayerID: "Y"}}
	state.Eliminated = map[string]bool{}

	proposals := []models.Proposal{
		{ProposerID: "X", Allocation: map[string]int{"X": 40, "Y": 60}},
		{ProposerID: "Y", Allocation: map[string]int{"X": 50, "Y": 50}},
	}
	votes := map[string]models.Vote{
		"X": {"X": 100},
		"Y": {"Y": 100},
	}
	// Totals tie at 100 each; below threshold either way.

	res := decideEndgame(state, proposals, votes, 0.61)
	if res.Winner == nil || res.Winner.ProposerID != "X" {
		t.Fatalf("expected X (self-share 40) to win the tiebreak, got %+v", res.Winner)
	}
}

// When the tiebreak self-share gap is <= 5pp, the choice must still be
// deterministic for a fixed (gameId, round) seed.
func TestDecideEndgame_ScenarioC_CloseTiebreakIsSeedDeterministic(t *testing.T) {
	state := models.NewGameState("game-c2", 5)
	state.Round = 1
	state.Players = []models.Player{{PlayerID: "X"}, {PlayerID: "Y"}}
	state.Eliminated = map[string]bool{}

	proposals := []models.Proposal{
		{ProposerID: "X", Allocation: map[string]int{"X": 40, "Y": 60}},
		{ProposerID: "Y", Allocation: map[string]int{"X": 57, "Y": 43}},
	}
	votes := map[string]models.Vote{
		"X": {"X": 100},
		"Y": {"Y": 100},
	}

	first := decideEndgame(state, proposals, votes, 0.61)
	second := decideEndgame(state, proposals, votes, 0.61)
	if first.Winner == nil || second.Winner == nil || first.Winner.ProposerID != second.Winner.ProposerID {
		t.Fatalf("expected repeated calls with the same seed to agree, got %+v vs %+v", first.Winner, second.Winner)
	}
}

func TestComputePayouts_AllocatesPoolByPercentage(t *testing.T) {
	state := models.NewGameState("game-d", 5)
	state.Players = []models.Player{{PlayerID: "A"}, {PlayerID: "B"}, {PlayerID: "C"}}

	winner := models.Proposal{ProposerID: "A", Allocation: map[string]int{"A": 60, "B": 40}}
	payouts := computePayouts(state, winner, 100)

	if payouts["A"] != 180 || payouts["B"] != 120 || payouts["C"] != 0 {
		t.Fatalf("expected A=180 B=120 C=0, got %+v", payouts)
	}
}
