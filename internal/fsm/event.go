// Package fsm implements C3, the Phase State Machine: a pure transition
// function over the game's phase and the events the orchestrator (C5) and
// agent driver (C4) feed into it. The machine holds no I/O and no ambient
// randomness — the one place the original system needed randomness
// (speaking-order shuffles and tie-breaks) is seeded deterministically from
// (gameId, round) so a transition sequence is replayable (REDESIGN FLAGS
// item 6).
package fsm

import "github.com/culverbrock/agentbattle-engine/pkg/models"

// Event is implemented by every concrete event type the machine accepts.
// A tagged-union-by-interface, matched with a type switch in transition(),
// is the idiomatic Go substitute for a dynamically-typed event payload.
type Event interface {
	eventTag()
}

type PlayerJoin struct {
	PlayerID string
	Name     string
}

type PlayerLeave struct {
	PlayerID string
}

type PlayerReady struct {
	PlayerID string
	Strategy string
}

type StartGame struct{}

type SubmitStrategy struct {
	PlayerID string
	Strategy string
}

type AllStrategiesSubmitted struct{}

type Speak struct {
	PlayerID     string
	MaxSubRounds int // matrixSubRounds; caps how many passes through speakingOrder occur before promotion
}

type SubmitProposal struct {
	Proposal models.Proposal
}

type AllProposalsSubmitted struct{}

type SubmitVote struct {
	VoterID string
	Vote    models.Vote
}

type AllVotesSubmitted struct {
	// Resolution is pre-computed by the orchestrator's endgame-decision
	// logic (spec.md §4.5) since deciding a winner needs vote totals and
	// the matrix, which the pure machine does not own.
	Resolution VoteResolution
}

type VoteResolution struct {
	Winner       *models.Proposal // non-nil when a proposal crossed the win threshold or the tiebreak resolved one
	EliminatedID string           // non-empty when no winner and someone is marked for elimination
}

type Eliminate struct {
	IDs []string
}

type Continue struct{}

func (PlayerJoin) eventTag()              {}
func (PlayerLeave) eventTag()             {}
func (PlayerReady) eventTag()             {}
func (StartGame) eventTag()               {}
func (SubmitStrategy) eventTag()          {}
func (AllStrategiesSubmitted) eventTag()  {}
func (Speak) eventTag()                   {}
func (SubmitProposal) eventTag()          {}
func (AllProposalsSubmitted) eventTag()   {}
func (SubmitVote) eventTag()              {}
func (AllVotesSubmitted) eventTag()       {}
func (Eliminate) eventTag()               {}
func (Continue) eventTag()                {}
