package matrix

import "github.com/culverbrock/agentbattle-engine/pkg/models"

// ProposalFromRow rounds row i's proposal segment to integers and adjusts
// the largest cell so the sum is exactly 100, per spec.md §4.2.
func (m *Matrix) ProposalFromRow(i int) models.Proposal {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r := m.rows[i]
	proposal := r.cells[0:m.n]
	rounded := roundToSum100(proposal)

	alloc := make(map[string]int, m.n)
	for col, v := range rounded {
		alloc[m.rows[col].owner] = v
	}
	return models.Proposal{ProposerID: r.owner, Allocation: alloc}
}

// VoteFromRow maps row i's vote-allocation segment onto the supplied list
// of current proposers (by column index -> proposer id), rounds, and fixes
// the sum to 100. If the voter's row has no column for some proposer slot
// (proposal list shorter than N), that slot is zero-weighted before
// normalizing, per spec.md §4.2.
func (m *Matrix) VoteFromRow(i int, proposers []string) models.Vote {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r := m.rows[i]
	voteAlloc := r.cells[m.n : 2*m.n]

	weights := make([]float64, len(proposers))
	for idx := range proposers {
		if idx < len(voteAlloc) {
			weights[idx] = voteAlloc[idx]
		}
	}

	rounded := roundToSum100(weights)

	vote := make(models.Vote, len(proposers))
	for idx, proposerID := range proposers {
		vote[proposerID] = rounded[idx]
	}
	return vote
}

// roundToSum100 rounds each value to the nearest integer (halves round up)
// and then adds the whole rounding difference to the single largest cell
// (the first one on ties) so the total is exactly 100. If the input is all-zero (degenerate), the first cell
// absorbs the full 100 to keep the invariant satisfiable.
func roundToSum100(vals []float64) []int {
	n := len(vals)
	rounded := make([]int, n)
	total := 0
	for i, v := range vals {
		rounded[i] = int(v + 0.5)
		total += rounded[i]
	}

	diff := 100 - total
	if diff == 0 || n == 0 {
		return rounded
	}

	largest := 0
	for i := 1; i < n; i++ {
		if rounded[i] > rounded[largest] {
			largest = i
		}
	}
	rounded[largest] += diff
	if rounded[largest] < 0 {
		rounded[largest] = 0
	}
	return rounded
}
