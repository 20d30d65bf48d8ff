package fsm

import (
	"testing"

	"github.com/culverbrock/agentbattle-engine/pkg/models"
)

func newLobby(gameID string) *models.GameState {
	return models.NewGameState(gameID, 10)
}

func mustTransition(t *testing.T, state *models.GameState, event Event) {
	t.Helper()
	if err := Transition(state, event); err != nil {
		t.Fatalf("transition %T failed: %v", event, err)
	}
}

// Phase monotonicity (Testable Property 5): a full round trip through the
// DAG lobby -> strategy -> negotiation -> proposal -> voting -> elimination
// -> strategy (next round) must only ever move along edges in the table.
func TestPhaseMonotonicity_FullRoundTrip(t *testing.T) {
	s := newLobby("game-1")

	mustTransition(t, s, PlayerJoin{PlayerID: "a", Name: "Alice"})
	mustTransition(t, s, PlayerJoin{PlayerID: "b", Name: "Bob"})
	mustTransition(t, s, PlayerJoin{PlayerID: "c", Name: "Carol"})
	mustTransition(t, s, PlayerReady{PlayerID: "a", Strategy: "s-a"})
	mustTransition(t, s, PlayerReady{PlayerID: "b", Strategy: "s-b"})
	mustTransition(t, s, PlayerReady{PlayerID: "c", Strategy: "s-c"})

	mustTransition(t, s, StartGame{})
	if s.Phase != models.PhaseStrategy {
		t.Fatalf("expected strategy phase, got %s", s.Phase)
	}

	mustTransition(t, s, AllStrategiesSubmitted{})
	if s.Phase != models.PhaseNegotiation {
		t.Fatalf("expected negotiation phase, got %s", s.Phase)
	}
	if len(s.SpeakingOrder) != 3 {
		t.Fatalf("expected speaking order of 3, got %d", len(s.SpeakingOrder))
	}

	// Drive through 3 sub-rounds of speaking (matrixSubRounds default 3).
	for round := 0; round < 3; round++ {
		for i := 0; i < len(s.SpeakingOrder); i++ {
			mustTransition(t, s, Speak{PlayerID: s.SpeakingOrder[s.CurrentSpeakerIdx%len(s.SpeakingOrder)], MaxSubRounds: 3})
		}
	}
	if s.Phase != models.PhaseProposal {
		t.Fatalf("expected proposal phase after 3 sub-rounds, got %s", s.Phase)
	}

	mustTransition(t, s, SubmitProposal{Proposal: models.Proposal{ProposerID: "a", Allocation: map[string]int{"a": 60, "b": 20, "c": 20}}})
	mustTransition(t, s, AllProposalsSubmitted{})
	if s.Phase != models.PhaseVoting {
		t.Fatalf("expected voting phase, got %s", s.Phase)
	}

	mustTransition(t, s, SubmitVote{VoterID: "a", Vote: models.Vote{"a": 100}})
	mustTransition(t, s, AllVotesSubmitted{Resolution: VoteResolution{EliminatedID: "c"}})
	if s.Phase != models.PhaseElimination {
		t.Fatalf("expected elimination phase, got %s", s.Phase)
	}

	mustTransition(t, s, Eliminate{IDs: []string{"c"}})
	if !s.Eliminated["c"] {
		t.Fatalf("expected c to be eliminated")
	}

	mustTransition(t, s, Continue{})
	if s.Phase != models.PhaseStrategy {
		t.Fatalf("expected strategy phase for round 2, got %s", s.Phase)
	}
	if s.Round != 2 {
		t.Fatalf("expected round 2, got %d", s.Round)
	}
}

func TestTransition_RejectsOffDAGEdge(t *testing.T) {
	s := newLobby("game-2")
	// SUBMIT_PROPOSAL is only valid in the proposal phase; lobby must refuse.
	err := Transition(s, SubmitProposal{Proposal: models.Proposal{ProposerID: "a"}})
	if err == nil {
		t.Fatalf("expected SUBMIT_PROPOSAL in lobby to be refused")
	}
}

func TestStartGame_GuardRequiresAllReady(t *testing.T) {
	s := newLobby("game-3")
	mustTransition(t, s, PlayerJoin{PlayerID: "a", Name: "Alice"})
	mustTransition(t, s, PlayerJoin{PlayerID: "b", Name: "Bob"})
	mustTransition(t, s, PlayerReady{PlayerID: "a", Strategy: "s-a"})

	if err := Transition(s, StartGame{}); err == nil {
		t.Fatalf("expected START_GAME to fail while b is not ready")
	}
}

func TestNewRoundRNG_IsDeterministic(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}

	r1 := NewRoundRNG("game-x", 3)
	shuffled1 := ShuffledNonEliminated(r1, ids)

	r2 := NewRoundRNG("game-x", 3)
	shuffled2 := ShuffledNonEliminated(r2, ids)

	for i := range shuffled1 {
		if shuffled1[i] != shuffled2[i] {
			t.Fatalf("expected identical shuffles for the same (gameId, round) seed, got %v vs %v", shuffled1, shuffled2)
		}
	}
}

func TestContinue_EndsGameAtMaxRounds(t *testing.T) {
	s := newLobby("game-4")
	s.MaxRounds = 1
	s.Round = 1
	s.Phase = models.PhaseElimination

	mustTransition(t, s, Continue{})
	if s.Phase != models.PhaseEndgame || !s.Ended {
		t.Fatalf("expected endgame at max rounds, got phase=%s ended=%v", s.Phase, s.Ended)
	}
}
