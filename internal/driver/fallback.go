package driver

import "github.com/culverbrock/agentbattle-engine/pkg/models"

// EqualSplitProposal builds the canonical fallback proposal used when an
// agent's matrix row is unavailable or its free-form proposal call fails
// validation: every player (including eliminated, who remain allocation
// targets) gets an equal integer share, with the remainder from rounding
// handed to the proposer itself.
func EqualSplitProposal(proposerID string, allPlayerIDs []string) models.Proposal {
	alloc := equalSplit(allPlayerIDs)
	if _, ok := alloc[proposerID]; ok && allPlayerIDs[0] != proposerID {
		remainder := 100 % len(allPlayerIDs)
		alloc[allPlayerIDs[0]] -= remainder
		alloc[proposerID] += remainder
	}
	return models.Proposal{ProposerID: proposerID, Allocation: alloc}
}

// EqualSplitVote builds the canonical fallback vote: an equal integer share
// across the current proposers, remainder to the first proposer.
func EqualSplitVote(proposerIDs []string) models.Vote {
	alloc := equalSplit(proposerIDs)
	vote := make(models.Vote, len(alloc))
	for k, v := range alloc {
		vote[k] = v
	}
	return vote
}

func equalSplit(ids []string) map[string]int {
	n := len(ids)
	alloc := make(map[string]int, n)
	if n == 0 {
		return alloc
	}
	share := 100 / n
	remainder := 100 - share*n
	for i, id := range ids {
		v := share
		if i == 0 {
			v += remainder
		}
		alloc[id] = v
	}
	return alloc
}

// DefaultMatrixRow builds the fallback row spec.md §7/Scenario E describes:
// zeros everywhere except a uniform proposal with the self-share pinned at
// the floor and a uniform vote allocation, used when a disconnected player's turn comes and they cannot be
// reached.
func DefaultMatrixRow(n, ownerIdx int, selfShareFloorPct float64) []float64 {
	cells := make([]float64, 4*n)
	if n == 0 {
		return cells
	}
	remaining := 100.0 - selfShareFloorPct
	other := 0.0
	if n > 1 {
		other = remaining / float64(n-1)
	}
	for i := 0; i < n; i++ {
		if i == ownerIdx {
			cells[i] = selfShareFloorPct
		} else {
			cells[i] = other
		}
	}
	// Fix rounding drift so the proposal segment sums to 100, leaving the
	// self-share exactly at the floor.
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += cells[i]
	}
	driftIdx := ownerIdx
	if n > 1 {
		driftIdx = (ownerIdx + 1) % n
	}
	cells[driftIdx] += 100.0 - sum

	voteShare := 100.0 / float64(n)
	for i := 0; i < n; i++ {
		cells[n+i] = voteShare
	}
	return cells
}

const defaultMatrixRowExplanation = "Auto-submitted default row: player is disconnected, holding a uniform vote allocation and a floor self-share until they reconnect."
