package fsm

import (
	"errors"
	"fmt"

	"github.com/culverbrock/agentbattle-engine/pkg/models"
)

var (
	ErrWrongPhase    = errors.New("event not valid in current phase")
	ErrGuardFailed   = errors.New("transition guard failed")
	ErrRosterFull    = errors.New("roster at capacity")
	ErrUnknownEvent  = errors.New("unrecognized event type")
)

const maxPlayers = 10

// Transition applies event to state in place and advances state.Phase.
// It is pure in the sense the spec requires: no I/O, and the only
// randomness it touches is the deterministic per-(gameId, round) RNG built
// by NewRoundRNG, so replaying the same event sequence against the same
// starting state always reaches the same result.
func Transition(state *models.GameState, event Event) error {
	switch e := event.(type) {
	case PlayerJoin:
		return onPlayerJoin(state, e)
	case PlayerLeave:
		return onPlayerLeave(state, e)
	case PlayerReady:
		return onPlayerReady(state, e)
	case StartGame:
		return onStartGame(state, e)
	case SubmitStrategy:
		return onSubmitStrategy(state, e)
	case AllStrategiesSubmitted:
		return onAllStrategiesSubmitted(state, e)
	case Speak:
		return onSpeak(state, e)
	case SubmitProposal:
		return onSubmitProposal(state, e)
	case AllProposalsSubmitted:
		return onAllProposalsSubmitted(state, e)
	case SubmitVote:
		return onSubmitVote(state, e)
	case AllVotesSubmitted:
		return onAllVotesSubmitted(state, e)
	case Eliminate:
		return onEliminate(state, e)
	case Continue:
		return onContinue(state, e)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEvent, event)
	}
}

func onPlayerJoin(state *models.GameState, e PlayerJoin) error {
	if state.Phase != models.PhaseLobby {
		return fmt.Errorf("PLAYER_JOIN: %w", ErrWrongPhase)
	}
	if state.PlayerIndex(e.PlayerID) >= 0 {
		return nil // already present, idempotent
	}
	if len(state.Players) >= maxPlayers {
		return fmt.Errorf("PLAYER_JOIN: %w", ErrRosterFull)
	}
	state.Players = append(state.Players, models.Player{
		PlayerID: e.PlayerID,
		Name:     e.Name,
		Status:   models.PlayerConnected,
	})
	return nil
}

func onPlayerLeave(state *models.GameState, e PlayerLeave) error {
	idx := state.PlayerIndex(e.PlayerID)
	if idx < 0 {
		return nil
	}
	state.Players[idx].Status = models.PlayerDisconnected
	return nil
}

func onPlayerReady(state *models.GameState, e PlayerReady) error {
	if state.Phase != models.PhaseLobby {
		return fmt.Errorf("PLAYER_READY: %w", ErrWrongPhase)
	}
	idx := state.PlayerIndex(e.PlayerID)
	if idx < 0 {
		return fmt.Errorf("PLAYER_READY: unknown player %s", e.PlayerID)
	}
	state.Players[idx].Ready = true
	state.Players[idx].Agent.Strategy = e.Strategy
	state.StrategyMessages[e.PlayerID] = e.Strategy
	return nil
}

func onStartGame(state *models.GameState, _ StartGame) error {
	if state.Phase != models.PhaseLobby {
		return fmt.Errorf("START_GAME: %w", ErrWrongPhase)
	}
	if len(state.Players) < 2 {
		return fmt.Errorf("START_GAME: %w: need >=2 players", ErrGuardFailed)
	}
	for _, p := range state.Players {
		if !p.Ready {
			return fmt.Errorf("START_GAME: %w: not all players ready", ErrGuardFailed)
		}
	}
	state.Phase = models.PhaseStrategy
	state.Round = 1
	state.Proposals = []models.Proposal{}
	state.Votes = map[string]models.Vote{}
	state.Eliminated = map[string]bool{}
	state.WinnerProposal = nil
	return nil
}

func onSubmitStrategy(state *models.GameState, e SubmitStrategy) error {
	if state.Phase != models.PhaseStrategy {
		return fmt.Errorf("SUBMIT_STRATEGY: %w", ErrWrongPhase)
	}
	state.StrategyMessages[e.PlayerID] = e.Strategy
	if idx := state.PlayerIndex(e.PlayerID); idx >= 0 {
		state.Players[idx].Agent.Strategy = e.Strategy
	}
	return nil
}

func onAllStrategiesSubmitted(state *models.GameState, _ AllStrategiesSubmitted) error {
	if state.Phase != models.PhaseStrategy {
		return fmt.Errorf("ALL_STRATEGIES_SUBMITTED: %w", ErrWrongPhase)
	}
	rng := NewRoundRNG(state.GameID, state.Round)
	state.SpeakingOrder = ShuffledNonEliminated(rng, state.NonEliminatedIDs())
	state.CurrentSpeakerIdx = 0
	state.NegotiationRound = 1
	state.Phase = models.PhaseNegotiation
	return nil
}

func onSpeak(state *models.GameState, e Speak) error {
	if state.Phase != models.PhaseNegotiation {
		return fmt.Errorf("SPEAK: %w", ErrWrongPhase)
	}
	if len(state.SpeakingOrder) == 0 {
		state.Phase = models.PhaseProposal
		return nil
	}
	state.CurrentSpeakerIdx++
	if state.CurrentSpeakerIdx < len(state.SpeakingOrder) {
		return nil
	}

	maxSubRounds := e.MaxSubRounds
	if maxSubRounds <= 0 {
		maxSubRounds = 3
	}
	state.CurrentSpeakerIdx = 0
	if state.NegotiationRound < maxSubRounds {
		state.NegotiationRound++
		return nil
	}
	state.Phase = models.PhaseProposal
	return nil
}

func onSubmitProposal(state *models.GameState, e SubmitProposal) error {
	if state.Phase != models.PhaseProposal {
		return fmt.Errorf("SUBMIT_PROPOSAL: %w", ErrWrongPhase)
	}
	for i, p := range state.Proposals {
		if p.ProposerID == e.Proposal.ProposerID {
			state.Proposals[i] = e.Proposal
			return nil
		}
	}
	state.Proposals = append(state.Proposals, e.Proposal)
	return nil
}

func onAllProposalsSubmitted(state *models.GameState, _ AllProposalsSubmitted) error {
	if state.Phase != models.PhaseProposal {
		return fmt.Errorf("ALL_PROPOSALS_SUBMITTED: %w", ErrWrongPhase)
	}
	state.Phase = models.PhaseVoting
	return nil
}

func onSubmitVote(state *models.GameState, e SubmitVote) error {
	if state.Phase != models.PhaseVoting {
		return fmt.Errorf("SUBMIT_VOTE: %w", ErrWrongPhase)
	}
	state.Votes[e.VoterID] = e.Vote
	return nil
}

func onAllVotesSubmitted(state *models.GameState, e AllVotesSubmitted) error {
	if state.Phase != models.PhaseVoting {
		return fmt.Errorf("ALL_VOTES_SUBMITTED: %w", ErrWrongPhase)
	}
	if e.Resolution.Winner != nil {
		state.WinnerProposal = e.Resolution.Winner
		state.Ended = true
		state.Phase = models.PhaseEndgame
		return nil
	}
	if e.Resolution.EliminatedID == "" {
		return fmt.Errorf("ALL_VOTES_SUBMITTED: %w: no winner and no elimination candidate", ErrGuardFailed)
	}
	state.Phase = models.PhaseElimination
	return nil
}

func onEliminate(state *models.GameState, e Eliminate) error {
	if state.Phase != models.PhaseElimination {
		return fmt.Errorf("ELIMINATE: %w", ErrWrongPhase)
	}
	for _, id := range e.IDs {
		state.Eliminated[id] = true
		if idx := state.PlayerIndex(id); idx >= 0 {
			state.Players[idx].Status = models.PlayerEliminated
		}
	}
	return nil
}

func onContinue(state *models.GameState, _ Continue) error {
	if state.Phase != models.PhaseElimination {
		return fmt.Errorf("CONTINUE: %w", ErrWrongPhase)
	}
	if state.Round >= state.MaxRounds {
		state.Ended = true
		state.Phase = models.PhaseEndgame
		return nil
	}
	state.Round++
	state.Proposals = []models.Proposal{}
	state.Votes = map[string]models.Vote{}
	state.SpeakingOrder = nil
	state.CurrentSpeakerIdx = 0
	state.NegotiationRound = 0
	state.Phase = models.PhaseStrategy
	return nil
}
