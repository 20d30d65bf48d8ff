package orchestrator

import (
	"github.com/culverbrock/agentbattle-engine/internal/fsm"
	"github.com/culverbrock/agentbattle-engine/pkg/models"
)

// decideEndgame implements spec.md §4.5's endgame-resolution logic: compute
// per-proposal vote totals across all voters (eliminated ones included),
// check the win threshold, fall back to the two-player tiebreak, or mark
// the lowest-vote non-eliminated proposer for elimination.
func decideEndgame(state *models.GameState, proposals []models.Proposal, votes map[string]models.Vote, winThresholdFraction float64) fsm.VoteResolution {
	totals := make(map[string]int, len(proposals))
	grandTotal := 0
	for _, v := range votes {
		for proposerID, count := range v {
			totals[proposerID] += count
			grandTotal += count
		}
	}

	if grandTotal > 0 {
		for _, p := range proposals {
			share := float64(totals[p.ProposerID]) / float64(grandTotal)
			if share >= winThresholdFraction {
				winner := p
				return fsm.VoteResolution{Winner: &winner}
			}
		}
	}

	nonEliminated := nonEliminatedProposals(state, proposals)
	if len(nonEliminated) == 2 {
		winner := twoPlayerTiebreak(state, nonEliminated[0], nonEliminated[1])
		return fsm.VoteResolution{Winner: &winner}
	}

	lowestID := lowestVoteProposer(state, nonEliminated, totals)
	return fsm.VoteResolution{EliminatedID: lowestID}
}

func nonEliminatedProposals(state *models.GameState, proposals []models.Proposal) []models.Proposal {
	out := make([]models.Proposal, 0, len(proposals))
	for _, p := range proposals {
		if !state.Eliminated[p.ProposerID] {
			out = append(out, p)
		}
	}
	return out
}

// twoPlayerTiebreak compares the two candidates' self-shares; the less
// greedy (lower self-share) wins if the difference exceeds 5 percentage
// points, otherwise the choice is uniform random, seeded from
// (gameId, round).
func twoPlayerTiebreak(state *models.GameState, a, b models.Proposal) models.Proposal {
	selfA := a.Allocation[a.ProposerID]
	selfB := b.Allocation[b.ProposerID]

	diff := selfA - selfB
	if diff < 0 {
		diff = -diff
	}
	if diff > 5 {
		if selfA < selfB {
			return a
		}
		return b
	}

	rng := fsm.NewRoundRNG(state.GameID, state.Round)
	if rng.IntN(2) == 0 {
		return a
	}
	return b
}

// lowestVoteProposer picks the non-eliminated proposer with the fewest
// total votes, breaking ties by uniform random choice seeded from
// (gameId, round).
func lowestVoteProposer(state *models.GameState, candidates []models.Proposal, totals map[string]int) string {
	if len(candidates) == 0 {
		return ""
	}

	lowest := totals[candidates[0].ProposerID]
	var tied []string
	for _, p := range candidates {
		t := totals[p.ProposerID]
		if t < lowest {
			lowest = t
			tied = []string{p.ProposerID}
		} else if t == lowest {
			tied = append(tied, p.ProposerID)
		}
	}

	if len(tied) == 1 {
		return tied[0]
	}
	rng := fsm.NewRoundRNG(state.GameID, state.Round)
	return tied[rng.IntN(len(tied))]
}

// computePayouts distributes the prize pool (|players| x entryFee) across
// the winning proposal's allocation. Players without a column in the
// winner's allocation receive 0.
func computePayouts(state *models.GameState, winner models.Proposal, entryFee int) map[string]int {
	pool := len(state.Players) * entryFee
	payouts := make(map[string]int, len(state.Players))
	for _, p := range state.Players {
		pct, ok := winner.Allocation[p.PlayerID]
		if !ok {
			payouts[p.PlayerID] = 0
			continue
		}
		payouts[p.PlayerID] = pct * pool / 100
	}
	return payouts
}
