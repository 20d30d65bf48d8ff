package matrix

import (
	"context"
	"testing"

	"github.com/culverbrock/agentbattle-engine/internal/oracle"
)

type stubBackend struct{ response string }

func (s *stubBackend) Complete(ctx context.Context, req oracle.Request) (string, int, error) {
	return s.response, 20, nil
}

func newTestOracle(response string) *oracle.Oracle {
	return oracle.New(&stubBackend{response: response}, 60, 90_000, 0)
}

func TestInitialize_ZeroFillsAndRecordsOwners(t *testing.T) {
	m := New()
	m.Initialize([]string{"a", "b", "c"})

	if m.N() != 3 {
		t.Fatalf("expected N()=3, got %d", m.N())
	}
	snap := m.GetMatrix()
	if len(snap.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(snap.Rows))
	}
	for i, id := range []string{"a", "b", "c"} {
		if snap.Rows[i].Owner != id {
			t.Errorf("row %d owner = %q, want %q", i, snap.Rows[i].Owner, id)
		}
		if sumOf(snap.Rows[i].Proposal) != 0 {
			t.Errorf("row %d not zero-filled", i)
		}
	}
}

// Scenario D: an agent returns a row summing to 97 in the proposal section.
// The update must be refused, modificationCount must not increment, and an
// INVALID_MATRIX violation must be appended.
func TestPerformUpdate_RejectsBadProposalSum(t *testing.T) {
	m := New()
	m.Initialize([]string{"p1", "p2", "p3"})

	explanation := "I am shifting allocation toward myself because p2 threatened to withhold votes this round."
	badRow := `{"explanation": "` + explanation + `", "matrixRow": [50, 30, 17, 33, 33, 34, 0,0,0, 0,0,0]}`
	orc := newTestOracle(badRow)

	ok := m.PerformUpdate(context.Background(), orc, 0, "aggressive", 1, false, ActivityView{Round: 1}, 17.0, false)
	if ok {
		t.Fatalf("expected PerformUpdate to reject a row summing to 97")
	}

	snap := m.GetMatrix()
	if snap.Rows[0].ModificationCount != 0 {
		t.Errorf("expected modificationCount to stay 0, got %d", snap.Rows[0].ModificationCount)
	}

	violations := m.Violations()
	if len(violations) != 1 || violations[0].Kind != ViolationInvalidMatrix {
		t.Fatalf("expected one INVALID_MATRIX violation, got %+v", violations)
	}
}

func TestPerformUpdate_AcceptsValidRow(t *testing.T) {
	m := New()
	m.Initialize([]string{"p1", "p2", "p3"})

	explanation := "I am proposing an even split to build trust early and will revisit once I see other offers."
	goodRow := `{"explanation": "` + explanation + `", "matrixRow": [34, 33, 33, 33, 33, 34, 10,10,0, 0,10,10]}`
	orc := newTestOracle(goodRow)

	ok := m.PerformUpdate(context.Background(), orc, 1, "cooperative", 1, false, ActivityView{Round: 1}, 17.0, false)
	if !ok {
		t.Fatalf("expected a valid row update to succeed")
	}

	snap := m.GetMatrix()
	if snap.Rows[1].ModificationCount != 1 {
		t.Errorf("expected modificationCount=1, got %d", snap.Rows[1].ModificationCount)
	}
	// Only row 1 changed.
	if sumOf(snap.Rows[0].Proposal) != 0 {
		t.Errorf("row 0 was mutated by an update to row 1")
	}
}

func TestPerformUpdate_RejectsSelfShareBelowFloor(t *testing.T) {
	m := New()
	m.Initialize([]string{"p1", "p2"})

	explanation := "I am giving up my own share to buy loyalty votes from everyone else in the game this round."
	row := `{"explanation": "` + explanation + `", "matrixRow": [5, 95, 50, 50, 0,0, 0,0]}`
	orc := newTestOracle(row)

	ok := m.PerformUpdate(context.Background(), orc, 0, "generous", 1, false, ActivityView{Round: 1}, 17.0, false)
	if ok {
		t.Fatalf("expected rejection when self-share is below the floor")
	}
}

func TestPerformUpdate_EliminatedRowSkipsSelfShareFloor(t *testing.T) {
	m := New()
	m.Initialize([]string{"p1", "p2"})

	explanation := "I am eliminated but still trading votes to influence who wins the remaining prize pool."
	row := `{"explanation": "` + explanation + `", "matrixRow": [0, 100, 50, 50, 0,0, 0,0]}`
	orc := newTestOracle(row)

	ok := m.PerformUpdate(context.Background(), orc, 0, "spoiler", 1, true, ActivityView{Round: 1}, 17.0, false)
	if !ok {
		t.Fatalf("expected eliminated row update to succeed despite zero self-share")
	}
}

func TestWriteOwnRow_RefusesNonOwner(t *testing.T) {
	m := New()
	m.Initialize([]string{"p1", "p2"})

	ok := m.WriteOwnRow("p2", 0, []float64{50, 50, 50, 50, 0, 0, 0, 0}, "this is a sufficiently long explanation of a default fallback row", false, 17.0, 1)
	if ok {
		t.Fatalf("expected write to row 0 by non-owner p2 to be refused")
	}
	violations := m.Violations()
	if len(violations) != 1 || violations[0].Kind != ViolationOwnershipDenied {
		t.Fatalf("expected OWNERSHIP_DENIED violation, got %+v", violations)
	}
}

func TestProposalFromRow_RoundsAndFixesSum(t *testing.T) {
	m := New()
	m.Initialize([]string{"p1", "p2", "p3"})
	m.WriteOwnRow("p1", 0, []float64{33.3, 33.3, 33.4, 34, 33, 33, 0, 0, 0, 0, 0, 0}, "a sufficiently long explanation for this fallback even split row", false, 17.0, 1)

	proposal := m.ProposalFromRow(0)
	total := 0
	for _, v := range proposal.Allocation {
		total += v
	}
	if total != 100 {
		t.Errorf("expected allocation to sum to 100, got %d", total)
	}
}

func TestVoteFromRow_ZeroWeightsMissingProposerSlots(t *testing.T) {
	m := New()
	m.Initialize([]string{"p1", "p2", "p3"})
	m.WriteOwnRow("p1", 0, []float64{34, 33, 33, 40, 30, 30, 0, 0, 0, 0, 0, 0}, "explanation long enough to pass validation for this vote allocation test", false, 17.0, 1)

	// Only one proposer survived to the proposal phase, though the row has 3 columns.
	vote := m.VoteFromRow(0, []string{"p2"})
	total := 0
	for _, v := range vote {
		total += v
	}
	if total != 100 {
		t.Errorf("expected vote to sum to 100, got %d", total)
	}
}
