// Package matrix implements C2, the Matrix Substrate: the N×4N negotiation
// matrix for a single game, with single-writer-per-row enforcement, an
// append-only violation log, and the extraction helpers the orchestrator
// uses to derive proposals and votes from it.
package matrix

import (
	"sync"
	"time"

	"github.com/culverbrock/agentbattle-engine/pkg/models"
)

// ViolationKind tags why a row update was refused.
type ViolationKind string

const (
	ViolationParseFailure    ViolationKind = "PARSE_FAILURE"
	ViolationInvalidMatrix   ViolationKind = "INVALID_MATRIX"
	ViolationOwnershipDenied ViolationKind = "OWNERSHIP_DENIED"
)

// Violation is one append-only log entry recorded on a refused row update.
type Violation struct {
	Kind      ViolationKind
	Details   string
	Round     int
	Timestamp time.Time
}

// row is the substrate's internal representation of one player's matrix row.
// The four segments sit contiguously in Cells, each of length n: proposal,
// vote allocation, vote offers, vote requests — matching spec.md's M[i, 0..N),
// [N..2N), [2N..3N), [3N..4N) layout.
type row struct {
	owner             string
	ownerIdx          int
	cells             []float64
	explanation       string
	lastModified      time.Time
	modificationCount int
	explanationLog    []explanationEntry
}

type explanationEntry struct {
	round       int
	explanation string
	snapshot    []float64
}

// Matrix is the single negotiation substrate for one game. Zero value is
// not usable; construct with New.
type Matrix struct {
	mu         sync.RWMutex
	n          int
	rows       []row
	violations []Violation
}

// New constructs an empty, uninitialized Matrix.
func New() *Matrix {
	return &Matrix{}
}

// Initialize sizes the matrix to N=len(playerIDs), zero-fills every row, and
// records each row's owner id by position. Calling Initialize again (e.g. on
// reload with a missing persisted matrix, per spec's explicit reload policy)
// discards prior rows and violations.
func (m *Matrix) Initialize(playerIDs []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(playerIDs)
	m.n = n
	m.rows = make([]row, n)
	m.violations = nil
	for i, id := range playerIDs {
		m.rows[i] = row{
			owner:    id,
			ownerIdx: i,
			cells:    make([]float64, 4*n),
		}
	}
}

// N reports the matrix dimension (number of rows / players).
func (m *Matrix) N() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.n
}

// Violations returns a copy of the append-only violation log.
func (m *Matrix) Violations() []Violation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Violation, len(m.violations))
	copy(out, m.violations)
	return out
}

func (m *Matrix) logViolation(kind ViolationKind, details string, round int) {
	m.violations = append(m.violations, Violation{
		Kind:      kind,
		Details:   details,
		Round:     round,
		Timestamp: time.Now(),
	})
}

// GetMatrix returns a stable, independent snapshot for persistence/broadcast.
func (m *Matrix) GetMatrix() *models.MatrixView {
	m.mu.RLock()
	defer m.mu.RUnlock()

	order := make([]string, m.n)
	views := make([]models.MatrixRowView, m.n)
	for i, r := range m.rows {
		order[i] = r.owner
		views[i] = models.MatrixRowView{
			Owner:             r.owner,
			Proposal:          append([]float64(nil), r.cells[0:m.n]...),
			VoteAllocation:    append([]float64(nil), r.cells[m.n:2*m.n]...),
			VoteOffers:        append([]float64(nil), r.cells[2*m.n:3*m.n]...),
			VoteRequests:      append([]float64(nil), r.cells[3*m.n:4*m.n]...),
			Explanation:       r.explanation,
			LastModified:      r.lastModified,
			ModificationCount: r.modificationCount,
		}
	}
	return &models.MatrixView{PlayerOrder: order, Rows: views}
}

// RestoreFrom rehydrates a Matrix from a persisted snapshot, e.g. on game
// reload. It does not replay the explanation log (not persisted in full).
func RestoreFrom(v *models.MatrixView) *Matrix {
	m := New()
	if v == nil {
		return m
	}
	n := len(v.PlayerOrder)
	m.n = n
	m.rows = make([]row, n)
	for i, id := range v.PlayerOrder {
		cells := make([]float64, 4*n)
		if i < len(v.Rows) {
			rv := v.Rows[i]
			copy(cells[0:n], rv.Proposal)
			copy(cells[n:2*n], rv.VoteAllocation)
			copy(cells[2*n:3*n], rv.VoteOffers)
			copy(cells[3*n:4*n], rv.VoteRequests)
			m.rows[i] = row{
				owner:             id,
				ownerIdx:          i,
				cells:             cells,
				explanation:       rv.Explanation,
				lastModified:      rv.LastModified,
				modificationCount: rv.ModificationCount,
			}
			continue
		}
		m.rows[i] = row{owner: id, ownerIdx: i, cells: cells}
	}
	return m
}

// DisplayResults produces a textual summary for observability. Not persisted.
func (m *Matrix) DisplayResults() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := "negotiation matrix (" + itoa(m.n) + " players):\n"
	for _, r := range m.rows {
		out += "  " + r.owner + ": proposal=" + floatsToString(r.cells[0:m.n]) +
			" votes=" + floatsToString(r.cells[m.n:2*m.n]) +
			" mods=" + itoa(r.modificationCount) + "\n"
	}
	return out
}
