package matrix

import "fmt"

const (
	sumTolerance       = 1.0
	minExplanationLen  = 50
	cellMin, cellMax   = 0.0, 100.0
)

// validateRow checks a candidate 4N-cell row against spec.md §4.2/§8's
// invariants. selfShareFloor is only enforced for non-eliminated owners —
// eliminated rows may still populate vote allocation/offers/requests to
// influence other players' decisions.
func validateRow(n int, cells []float64, explanation string, isEliminated bool, selfShareFloorPct float64, ownerIdx int) error {
	if len(cells) != 4*n {
		return fmt.Errorf("matrixRow has %d cells, want %d", len(cells), 4*n)
	}
	if len(explanation) < minExplanationLen {
		return fmt.Errorf("explanation too short (%d chars, want >= %d)", len(explanation), minExplanationLen)
	}

	proposal := cells[0:n]
	voteAlloc := cells[n : 2*n]
	offers := cells[2*n : 3*n]
	requests := cells[3*n : 4*n]

	for _, seg := range [][]float64{proposal, voteAlloc, offers, requests} {
		for _, v := range seg {
			if v < cellMin || v > cellMax {
				return fmt.Errorf("cell %.2f out of range [%.0f, %.0f]", v, cellMin, cellMax)
			}
		}
	}

	if sum := sumOf(proposal); sum < 100-sumTolerance || sum > 100+sumTolerance {
		return fmt.Errorf("proposal section sums to %.2f, want 100+/-%.0f", sum, sumTolerance)
	}
	if sum := sumOf(voteAlloc); sum < 100-sumTolerance || sum > 100+sumTolerance {
		return fmt.Errorf("vote allocation section sums to %.2f, want 100+/-%.0f", sum, sumTolerance)
	}

	if !isEliminated && ownerIdx >= 0 && ownerIdx < n {
		if proposal[ownerIdx] < selfShareFloorPct {
			return fmt.Errorf("self-share %.2f below floor %.2f", proposal[ownerIdx], selfShareFloorPct)
		}
	}

	return nil
}

func sumOf(vals []float64) float64 {
	var total float64
	for _, v := range vals {
		total += v
	}
	return total
}
