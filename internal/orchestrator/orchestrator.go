// Package orchestrator implements C5, the Game Orchestrator: owns the
// lifecycle of a single game and its broadcast channel, drives phases via
// the Agent Driver (C4), folds results into the Phase State Machine (C3),
// and persists state after every phase boundary.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/culverbrock/agentbattle-engine/internal/driver"
	"github.com/culverbrock/agentbattle-engine/internal/fsm"
	"github.com/culverbrock/agentbattle-engine/internal/matrix"
	"github.com/culverbrock/agentbattle-engine/internal/store"
	"github.com/culverbrock/agentbattle-engine/internal/wallet"
	"github.com/culverbrock/agentbattle-engine/pkg/models"
)

// Config carries the orchestrator-level knobs from spec.md §6 not already
// owned by the Driver.
type Config struct {
	MaxPlayers           int
	EntryFee             int
	WinThresholdFraction float64
	MaxRounds            int
	MatrixSubRounds      int
	DisconnectTimeout    time.Duration
}

// Orchestrator owns every live game's runtime state.
type Orchestrator struct {
	cfg      Config
	store    store.Store
	driver   *driver.Driver
	verifier wallet.Verifier

	registry *registry
	timers   *disconnectTimers
}

// New builds an Orchestrator. verifier may be wallet.DevVerifier{} in tests.
func New(cfg Config, st store.Store, drv *driver.Driver, verifier wallet.Verifier) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		store:    st,
		driver:   drv,
		verifier: verifier,
		registry: newRegistry(),
		timers:   newDisconnectTimers(),
	}
}

// Create initializes a fresh Game State in phase=lobby and persists it.
func (o *Orchestrator) Create(ctx context.Context, gameID string) error {
	state := models.NewGameState(gameID, o.cfg.MaxRounds)
	if err := o.store.Save(ctx, state); err != nil {
		return fmt.Errorf("create game %s: %w", gameID, err)
	}
	rg := newRunningGame(state, matrix.New())
	o.registry.put(gameID, rg)
	return nil
}

// loadOrCreate returns the live runtime entry for gameID, reloading it from
// the store if it is not already resident. Reconstruction of C3 (the phase
// state machine) is a pure function of the persisted record: there is no
// separate machine object, the GameState itself carries Phase/Round/etc.
// If the persisted matrix is absent, per spec's explicit reload policy it
// is reinitialized and negotiation resumes at sub-round 1.
func (o *Orchestrator) loadOrCreate(ctx context.Context, gameID string) (*runningGame, error) {
	if rg := o.registry.get(gameID); rg != nil {
		return rg, nil
	}

	state, err := o.store.Load(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("load game %s: %w", gameID, err)
	}
	if state == nil {
		return nil, fmt.Errorf("game %s not found", gameID)
	}

	var m *matrix.Matrix
	if state.Matrix != nil {
		m = matrix.RestoreFrom(state.Matrix)
	} else {
		m = matrix.New()
		m.Initialize(state.AllPlayerIDs())
		state.NegotiationRound = 1
	}

	rg := newRunningGame(state, m)
	o.registry.put(gameID, rg)
	return rg, nil
}

// newRunningGame builds a live-machine cache entry with its own cancelable
// context, independent of any single request's context, so Shutdown can
// actually cancel in-flight driver work for this gameId (spec.md §5:
// "shutdown cancels all in-flight oracle calls") rather than leaning on a
// caller's context that ends when that one HTTP request does.
func newRunningGame(state *models.GameState, m *matrix.Matrix) *runningGame {
	ctx, cancel := context.WithCancel(context.Background())
	return &runningGame{state: state, matrix: m, hub: NewHub(), ctx: ctx, cancel: cancel}
}

// Join appends a player (<=maxPlayers), refreshes the matrix placeholder,
// persists, and broadcasts.
func (o *Orchestrator) Join(ctx context.Context, gameID, playerID, name string) error {
	rg, err := o.loadOrCreate(ctx, gameID)
	if err != nil {
		return err
	}
	rg.mu.Lock()
	defer rg.mu.Unlock()

	if err := fsm.Transition(rg.state, fsm.PlayerJoin{PlayerID: playerID, Name: name}); err != nil {
		return err
	}
	rg.state.Players[len(rg.state.Players)-1].JoinedAt = time.Now()
	rg.matrix.Initialize(rg.state.AllPlayerIDs())
	rg.state.UpdatedAt = time.Now()

	if err := o.persist(ctx, rg); err != nil {
		return err
	}
	rg.hub.Publish(Event{Kind: EventStateUpdate, Data: rg.state})
	return nil
}

// Ready verifies the caller's wallet signature, feeds PLAYER_READY into
// C3, persists, and broadcasts. If every player is now ready it fires
// START_GAME and drives the game to completion.
func (o *Orchestrator) Ready(ctx context.Context, gameID, playerID, strategyText string, walletType wallet.Type, walletAddress, message, signature string) error {
	if !o.verifier.Verify(walletType, playerID, message, signature) {
		return fmt.Errorf("ready: invalid wallet signature for player %s", playerID)
	}

	rg, err := o.loadOrCreate(ctx, gameID)
	if err != nil {
		return err
	}
	rg.mu.Lock()

	if err := fsm.Transition(rg.state, fsm.PlayerReady{PlayerID: playerID, Strategy: strategyText}); err != nil {
		rg.mu.Unlock()
		return err
	}
	if idx := rg.state.PlayerIndex(playerID); idx >= 0 {
		rg.state.Players[idx].WalletType = string(walletType)
		rg.state.Players[idx].WalletAddress = walletAddress
	}
	rg.state.UpdatedAt = time.Now()

	allReady := len(rg.state.Players) >= 2
	for _, p := range rg.state.Players {
		if !p.Ready {
			allReady = false
			break
		}
	}

	if err := o.persist(ctx, rg); err != nil {
		rg.mu.Unlock()
		return err
	}
	rg.hub.Publish(Event{Kind: EventStateUpdate, Data: rg.state})

	if !allReady {
		rg.mu.Unlock()
		return nil
	}

	if err := fsm.Transition(rg.state, fsm.StartGame{}); err != nil {
		rg.mu.Unlock()
		return err
	}
	rg.matrix.Initialize(rg.state.AllPlayerIDs())
	if err := o.persist(ctx, rg); err != nil {
		rg.mu.Unlock()
		return err
	}
	rg.hub.Publish(Event{Kind: EventStateUpdate, Data: rg.state})
	rg.mu.Unlock()

	return o.RunUntilBlocked(ctx, gameID)
}

// Advance runs the current phase to its conclusion via the Agent Driver,
// folds the result into C3, persists, and broadcasts. It processes exactly
// one phase (strategy, negotiation's next sub-round, proposal, voting, or
// elimination); lobby and endgame are no-ops.
func (o *Orchestrator) Advance(ctx context.Context, gameID string) error {
	rg, err := o.loadOrCreate(ctx, gameID)
	if err != nil {
		return err
	}
	rg.mu.Lock()
	defer rg.mu.Unlock()

	switch rg.state.Phase {
	case models.PhaseLobby, models.PhaseEndgame:
		return nil
	case models.PhaseStrategy:
		err = o.advanceStrategy(rg.ctx, rg)
	case models.PhaseNegotiation:
		err = o.advanceNegotiation(rg.ctx, rg)
	case models.PhaseProposal:
		err = o.advanceProposal(rg.ctx, rg)
	case models.PhaseVoting:
		err = o.advanceVoting(rg.ctx, rg)
	case models.PhaseElimination:
		err = o.advanceElimination(rg.ctx, rg)
	default:
		return fmt.Errorf("advance: unknown phase %s", rg.state.Phase)
	}
	if err != nil {
		return err
	}

	rg.state.UpdatedAt = time.Now()
	if err := o.persist(ctx, rg); err != nil {
		return err
	}
	rg.hub.Publish(Event{Kind: EventStateUpdate, Data: rg.state})
	return nil
}

// RunUntilBlocked repeatedly advances a game until it reaches endgame or a
// persistence/transition error occurs. It is the synchronous substitute
// for a long-running per-gameId pipeline task.
func (o *Orchestrator) RunUntilBlocked(ctx context.Context, gameID string) error {
	const maxSteps = 500 // backstop against a misconfigured machine looping forever
	for i := 0; i < maxSteps; i++ {
		rg := o.registry.get(gameID)
		if rg == nil {
			return fmt.Errorf("run: game %s not resident", gameID)
		}
		rg.mu.Lock()
		done := rg.state.Phase == models.PhaseEndgame
		rg.mu.Unlock()
		if done {
			return nil
		}
		if err := o.Advance(ctx, gameID); err != nil {
			return err
		}
	}
	log.Printf("[orchestrator] game %s did not reach endgame within %d steps", gameID, maxSteps)
	return nil
}

func (o *Orchestrator) advanceStrategy(ctx context.Context, rg *runningGame) error {
	for _, p := range rg.state.NonEliminatedIDs() {
		if _, ok := rg.state.StrategyMessages[p]; !ok {
			idx := rg.state.PlayerIndex(p)
			rg.state.StrategyMessages[p] = rg.state.Players[idx].Agent.Strategy
		}
	}
	return fsm.Transition(rg.state, fsm.AllStrategiesSubmitted{})
}

func (o *Orchestrator) advanceNegotiation(ctx context.Context, rg *runningGame) error {
	o.driver.RunNegotiationSubRound(ctx, rg.matrix, rg.state)
	rg.state.Matrix = rg.matrix.GetMatrix()
	rg.state.Commitments = append(rg.state.Commitments, extractRowCommitments(rg.state)...)

	speakers := len(rg.state.SpeakingOrder)
	if speakers == 0 {
		speakers = 1
	}
	for i := 0; i < speakers; i++ {
		if err := fsm.Transition(rg.state, fsm.Speak{MaxSubRounds: o.cfg.MatrixSubRounds}); err != nil {
			return err
		}
		if rg.state.Phase != models.PhaseNegotiation {
			break
		}
	}
	return nil
}

func (o *Orchestrator) advanceProposal(ctx context.Context, rg *runningGame) error {
	proposals := o.driver.RunProposalPhase(ctx, rg.matrix, rg.state)
	for _, p := range proposals {
		if err := fsm.Transition(rg.state, fsm.SubmitProposal{Proposal: p}); err != nil {
			return err
		}
	}
	return fsm.Transition(rg.state, fsm.AllProposalsSubmitted{})
}

func (o *Orchestrator) advanceVoting(ctx context.Context, rg *runningGame) error {
	proposerIDs := make([]string, len(rg.state.Proposals))
	for i, p := range rg.state.Proposals {
		proposerIDs[i] = p.ProposerID
	}

	votes := o.driver.RunVotingPhase(ctx, rg.matrix, rg.state, proposerIDs)
	for voterID, v := range votes {
		if err := fsm.Transition(rg.state, fsm.SubmitVote{VoterID: voterID, Vote: v}); err != nil {
			return err
		}
	}

	// Advisory only (REDESIGN FLAGS item 7): resolving commitments never
	// gates the endgame decision below, it only annotates them for
	// observability.
	driver.ResolveCommitments(rg.state.Commitments, votes, rg.state.Proposals)

	resolution := decideEndgame(rg.state, rg.state.Proposals, rg.state.Votes, o.cfg.WinThresholdFraction)
	if resolution.Winner != nil {
		rg.state.Payouts = computePayouts(rg.state, *resolution.Winner, o.cfg.EntryFee)
	}
	if err := fsm.Transition(rg.state, fsm.AllVotesSubmitted{Resolution: resolution}); err != nil {
		return err
	}
	if resolution.EliminatedID != "" {
		return fsm.Transition(rg.state, fsm.Eliminate{IDs: []string{resolution.EliminatedID}})
	}
	return nil
}

func (o *Orchestrator) advanceElimination(ctx context.Context, rg *runningGame) error {
	return fsm.Transition(rg.state, fsm.Continue{})
}

// extractRowCommitments runs the advisory-only commitment extractor
// (driver.ExtractCommitments) against every matrix row's freshly authored
// explanation, since the matrix path produces no addressed free-text
// utterance, only an unaddressed per-row explanation. Every other roster
// player is tried as a candidate addressee; the regex only fires on text
// that actually matches a vote-offer or seeking-allocation pattern, so an
// ordinary explanation yields nothing.
func extractRowCommitments(state *models.GameState) []models.Commitment {
	if state.Matrix == nil {
		return nil
	}
	allIDs := state.AllPlayerIDs()
	var out []models.Commitment
	for _, row := range state.Matrix.Rows {
		if row.Explanation == "" {
			continue
		}
		for _, other := range allIDs {
			if other == row.Owner {
				continue
			}
			out = append(out, driver.ExtractCommitments(row.Owner, other, row.Explanation, state.Round)...)
		}
	}
	return out
}

func (o *Orchestrator) persist(ctx context.Context, rg *runningGame) error {
	return o.store.Save(ctx, rg.state)
}

// HandleDisconnect starts the disconnect timer (cfg.DisconnectTimeout) for
// (gameID, playerID). On expiry without a reconnect the player is marked
// disconnected and a player_disconnected event is broadcast; they are not removed
// from the matrix and do not skip their turn (the driver auto-submits
// fallbacks for them).
func (o *Orchestrator) HandleDisconnect(gameID, playerID string) {
	o.timers.Start(gameID, playerID, o.cfg.DisconnectTimeout, func() {
		rg := o.registry.get(gameID)
		if rg == nil {
			return
		}
		rg.mu.Lock()
		if idx := rg.state.PlayerIndex(playerID); idx >= 0 {
			rg.state.Players[idx].Status = models.PlayerDisconnected
		}
		hub := rg.hub
		rg.mu.Unlock()
		hub.Publish(Event{Kind: EventPlayerDisconnected, Data: playerID})
	})
}

// HandleReconnect cancels a pending disconnect timer for (gameID, playerID)
// and marks the player connected again.
func (o *Orchestrator) HandleReconnect(gameID, playerID string) {
	o.timers.Cancel(gameID, playerID)
	rg := o.registry.get(gameID)
	if rg == nil {
		return
	}
	rg.mu.Lock()
	if idx := rg.state.PlayerIndex(playerID); idx >= 0 {
		rg.state.Players[idx].Status = models.PlayerConnected
	}
	hub := rg.hub
	rg.mu.Unlock()
	hub.Publish(Event{Kind: EventPresence, Data: playerID})
}

// Shutdown cancels in-flight work for gameID, closes its broadcast hub
// (Testable Property 9: no further events after cancellation), and removes
// it from the live-machine cache.
func (o *Orchestrator) Shutdown(gameID string) {
	o.timers.CancelAllForGame(gameID)
	rg := o.registry.get(gameID)
	if rg == nil {
		return
	}
	rg.mu.Lock()
	if rg.cancel != nil {
		rg.cancel()
	}
	hub := rg.hub
	rg.mu.Unlock()
	hub.Close()
	o.registry.delete(gameID)
}

// Hub returns the broadcast hub for gameID, for the API layer's websocket
// subscribe handler. Returns nil if the game is not resident.
func (o *Orchestrator) Hub(gameID string) *Hub {
	rg := o.registry.get(gameID)
	if rg == nil {
		return nil
	}
	return rg.hub
}

// State returns a read path onto the live Game State (not a deep copy);
// callers must not mutate the returned value.
func (o *Orchestrator) State(gameID string) *models.GameState {
	rg := o.registry.get(gameID)
	if rg == nil {
		return nil
	}
	rg.mu.Lock()
	defer rg.mu.Unlock()
	return rg.state
}

// ActiveGameIDs returns the gameIds currently resident in the live-machine
// cache, for health/diagnostic reporting.
func (o *Orchestrator) ActiveGameIDs() []string {
	return o.registry.list()
}
