// Package driver implements C4, the Agent Driver: per-phase loops that fan
// out bounded-concurrency oracle calls to every eligible agent, validate
// the results, and fall back to canonical defaults on failure so a phase
// always completes.
package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	jsonrepair "github.com/RealAlexandreAI/json-repair"

	"github.com/culverbrock/agentbattle-engine/internal/matrix"
	"github.com/culverbrock/agentbattle-engine/internal/oracle"
	"github.com/culverbrock/agentbattle-engine/pkg/models"
)

// Driver drives one phase at a time for one game. It holds no per-game
// state itself — that lives in the matrix and the game state passed into
// each call — so one Driver can be shared across every live game.
type Driver struct {
	Oracle            *oracle.Oracle
	MaxConcurrency    int
	SelfShareFloorPct float64
}

// New builds a Driver bounded to maxConcurrency simultaneous oracle calls
// per phase batch.
func New(orc *oracle.Oracle, maxConcurrency int, selfShareFloorPct float64) *Driver {
	if maxConcurrency <= 0 {
		maxConcurrency = 8
	}
	return &Driver{Oracle: orc, MaxConcurrency: maxConcurrency, SelfShareFloorPct: selfShareFloorPct}
}

// forEachBounded runs fn(i) for i in [0, n) with up to d.MaxConcurrency
// goroutines in flight at once, waiting for all to finish — the same
// buffered-channel-as-semaphore plus sync.WaitGroup shape the teacher uses
// to throttle its block/poller loops.
func (d *Driver) forEachBounded(n int, fn func(i int)) {
	sem := make(chan struct{}, d.MaxConcurrency)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(i)
		}(i)
	}
	wg.Wait()
}

// RunNegotiationSubRound drives one matrix sub-round: every connected roster
// player (including eliminated ones, who may still trade votes) gets one
// PerformUpdate call, and every disconnected player gets DefaultMatrixRow
// written through WriteOwnRow, run concurrently and bounded. It returns the
// number of successful updates.
func (d *Driver) RunNegotiationSubRound(ctx context.Context, m *matrix.Matrix, state *models.GameState) int {
	n := len(state.Players)
	var successCount int
	var mu sync.Mutex

	degraded := d.Oracle.ShouldDegrade()

	d.forEachBounded(n, func(i int) {
		p := state.Players[i]
		isEliminated := state.Eliminated[p.PlayerID]

		if p.Status == models.PlayerDisconnected {
			cells := DefaultMatrixRow(n, i, d.SelfShareFloorPct)
			if m.WriteOwnRow(p.PlayerID, i, cells, defaultMatrixRowExplanation, isEliminated, d.SelfShareFloorPct, state.Round) {
				mu.Lock()
				successCount++
				mu.Unlock()
			}
			return
		}

		view := matrix.ActivityView{Round: state.NegotiationRound}
		ok := m.PerformUpdate(ctx, d.Oracle, i, p.Agent.Strategy, state.Round, isEliminated, view, d.SelfShareFloorPct, degraded)
		if ok {
			mu.Lock()
			successCount++
			mu.Unlock()
			return
		}
		if isEliminated {
			return
		}
		mu.Lock()
		state.NegotiationFails[p.PlayerID]++
		mu.Unlock()
	})

	return successCount
}

type proposalPayload struct {
	Allocation map[string]int `json:"allocation"`
}

// RunProposalPhase derives one proposal per non-eliminated player, from its
// final matrix row when available, else via a free-form oracle call.
// Failures (malformed output, bad sums, self-share below floor) fall back
// to an equal split and are recorded under ProposalFailures.
func (d *Driver) RunProposalPhase(ctx context.Context, m *matrix.Matrix, state *models.GameState) []models.Proposal {
	eligible := state.NonEliminatedIDs()
	allIDs := state.AllPlayerIDs()
	proposals := make([]models.Proposal, len(eligible))
	degraded := d.Oracle.ShouldDegrade()

	d.forEachBounded(len(eligible), func(i int) {
		playerID := eligible[i]
		idx := state.PlayerIndex(playerID)

		if m != nil && m.N() == len(state.Players) {
			p := m.ProposalFromRow(idx)
			if err := validateProposal(p, allIDs, d.SelfShareFloorPct, playerID); err == nil {
				proposals[i] = p
				return
			}
		}

		p, err := d.askFreeFormProposal(ctx, state, playerID, allIDs, degraded)
		if err == nil {
			if verr := validateProposal(p, allIDs, d.SelfShareFloorPct, playerID); verr == nil {
				proposals[i] = p
				return
			}
		}

		state.ProposalFailures[playerID]++
		proposals[i] = EqualSplitProposal(playerID, allIDs)
	})

	return proposals
}

func (d *Driver) askFreeFormProposal(ctx context.Context, state *models.GameState, playerID string, allIDs []string, degraded bool) (models.Proposal, error) {
	idx := state.PlayerIndex(playerID)
	strategyText := state.Players[idx].Agent.Strategy

	prompt := freeFormProposalPrompt(playerID, strategyText, allIDs, d.SelfShareFloorPct)
	if degraded {
		prompt = shortProposalPrompt(playerID, allIDs)
	}

	text, err := d.Oracle.Ask(ctx, playerID, prompt, oracle.Options{System: proposalSystemPrompt})
	if err != nil {
		return models.Proposal{}, err
	}

	var payload proposalPayload
	if err := parseTolerantJSON(text, &payload); err != nil {
		return models.Proposal{}, err
	}
	return models.Proposal{ProposerID: playerID, Allocation: payload.Allocation}, nil
}

func validateProposal(p models.Proposal, allIDs []string, selfShareFloorPct float64, proposerID string) error {
	if len(p.Allocation) != len(allIDs) {
		return fmt.Errorf("proposal covers %d players, want %d", len(p.Allocation), len(allIDs))
	}
	total := 0
	for _, id := range allIDs {
		v, ok := p.Allocation[id]
		if !ok {
			return fmt.Errorf("proposal missing allocation for %s", id)
		}
		total += v
	}
	if total < 99 || total > 101 {
		return fmt.Errorf("proposal sums to %d, want 100+/-1", total)
	}
	if float64(p.Allocation[proposerID]) < selfShareFloorPct {
		return fmt.Errorf("proposer self-share %d below floor %.0f", p.Allocation[proposerID], selfShareFloorPct)
	}
	return nil
}

type votePayload struct {
	Vote map[string]int `json:"vote"`
}

// RunVotingPhase derives one vote per roster player (including eliminated,
// who vote but cannot propose). Failures fall back to an equal split over
// the proposers and are recorded under VoteFailures.
func (d *Driver) RunVotingPhase(ctx context.Context, m *matrix.Matrix, state *models.GameState, proposerIDs []string) map[string]models.Vote {
	voters := state.AllPlayerIDs()
	votes := make(map[string]models.Vote, len(voters))
	var mu sync.Mutex
	degraded := d.Oracle.ShouldDegrade()

	d.forEachBounded(len(voters), func(i int) {
		playerID := voters[i]
		idx := state.PlayerIndex(playerID)

		if m != nil && m.N() == len(state.Players) {
			v := m.VoteFromRow(idx, proposerIDs)
			if err := validateVote(v, proposerIDs); err == nil {
				mu.Lock()
				votes[playerID] = v
				mu.Unlock()
				return
			}
		}

		v, err := d.askFreeFormVote(ctx, state, playerID, proposerIDs, degraded)
		if err == nil {
			if verr := validateVote(v, proposerIDs); verr == nil {
				mu.Lock()
				votes[playerID] = v
				mu.Unlock()
				return
			}
		}

		mu.Lock()
		state.VoteFailures[playerID]++
		votes[playerID] = EqualSplitVote(proposerIDs)
		mu.Unlock()
	})

	return votes
}

func (d *Driver) askFreeFormVote(ctx context.Context, state *models.GameState, playerID string, proposerIDs []string, degraded bool) (models.Vote, error) {
	idx := state.PlayerIndex(playerID)
	strategyText := state.Players[idx].Agent.Strategy

	prompt := freeFormVotePrompt(playerID, strategyText, proposerIDs)
	if degraded {
		prompt = shortVotePrompt(playerID, proposerIDs)
	}

	text, err := d.Oracle.Ask(ctx, playerID, prompt, oracle.Options{System: voteSystemPrompt})
	if err != nil {
		return nil, err
	}

	var payload votePayload
	if err := parseTolerantJSON(text, &payload); err != nil {
		return nil, err
	}
	return models.Vote(payload.Vote), nil
}

func validateVote(v models.Vote, proposerIDs []string) error {
	allowed := make(map[string]bool, len(proposerIDs))
	for _, id := range proposerIDs {
		allowed[id] = true
	}
	total := 0
	for id, count := range v {
		if !allowed[id] {
			return fmt.Errorf("vote targets unknown proposer %s", id)
		}
		total += count
	}
	if total < 99 || total > 101 {
		return fmt.Errorf("vote sums to %d, want 100+/-1", total)
	}
	return nil
}

func parseTolerantJSON(text string, dest interface{}) error {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	candidate := text
	if start != -1 && end != -1 && end >= start {
		candidate = text[start : end+1]
	}

	if err := json.Unmarshal([]byte(candidate), dest); err == nil {
		return nil
	}
	repaired, err := jsonrepair.RepairJSON(candidate)
	if err != nil {
		return fmt.Errorf("unrepairable JSON: %w", err)
	}
	return json.Unmarshal([]byte(repaired), dest)
}
