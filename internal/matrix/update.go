package matrix

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"

	"github.com/culverbrock/agentbattle-engine/internal/oracle"
)

// ActivityView is the context handed to performUpdate for prompt
// construction: what has happened since this player's last turn.
type ActivityView struct {
	Round          int
	RecentMessages []string
}

type rowUpdatePayload struct {
	Explanation string    `json:"explanation"`
	MatrixRow   []float64 `json:"matrixRow"`
}

// PerformUpdate asks the oracle for a JSON row update on behalf of
// ownerIndex, validates it, and on success replaces that row only
// (single-writer invariant enforced by construction: this and WriteOwnRow
// are the only mutators, and each writes only row ownerIndex).
func (m *Matrix) PerformUpdate(ctx context.Context, orc *oracle.Oracle, ownerIndex int, strategyText string, roundNumber int, isEliminated bool, view ActivityView, selfShareFloorPct float64, shortPrompt bool) bool {
	m.mu.RLock()
	if ownerIndex < 0 || ownerIndex >= m.n {
		m.mu.RUnlock()
		return false
	}
	owner := m.rows[ownerIndex].owner
	n := m.n
	snapshot := m.snapshotCellsLocked()
	m.mu.RUnlock()

	prompt := fullRowPrompt(n, owner, strategyText, snapshot, view)
	if shortPrompt {
		prompt = shortRowPrompt(n, owner, strategyText, view)
	}

	text, err := orc.Ask(ctx, owner, prompt, oracle.Options{
		System:          rowUpdateSystemPrompt,
		ConversationKey: "",
		Temperature:     0.7,
	})
	if err != nil {
		m.mu.Lock()
		m.logViolation(ViolationParseFailure, "oracle call failed: "+err.Error(), roundNumber)
		m.mu.Unlock()
		return false
	}

	payload, err := parseRowPayload(text)
	if err != nil {
		m.mu.Lock()
		m.logViolation(ViolationParseFailure, err.Error(), roundNumber)
		m.mu.Unlock()
		return false
	}

	if err := validateRow(n, payload.MatrixRow, payload.Explanation, isEliminated, selfShareFloorPct, ownerIndex); err != nil {
		m.mu.Lock()
		m.logViolation(ViolationInvalidMatrix, err.Error(), roundNumber)
		m.mu.Unlock()
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	r := &m.rows[ownerIndex]
	r.cells = payload.MatrixRow
	r.explanation = payload.Explanation
	r.lastModified = nowFunc()
	r.modificationCount++
	r.explanationLog = append(r.explanationLog, explanationEntry{
		round:       roundNumber,
		explanation: payload.Explanation,
		snapshot:    append([]float64(nil), payload.MatrixRow...),
	})
	return true
}

// WriteOwnRow attempts a direct, non-oracle row write (e.g. a driver fallback
// default). It is still subject to the single-writer and validation checks,
// and refuses (logging an ownership violation) if callerID does not own
// ownerIndex.
func (m *Matrix) WriteOwnRow(callerID string, ownerIndex int, cells []float64, explanation string, isEliminated bool, selfShareFloorPct float64, round int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ownerIndex < 0 || ownerIndex >= m.n || m.rows[ownerIndex].owner != callerID {
		m.logViolation(ViolationOwnershipDenied, fmt.Sprintf("caller %s does not own row %d", callerID, ownerIndex), round)
		return false
	}

	if err := validateRow(m.n, cells, explanation, isEliminated, selfShareFloorPct, ownerIndex); err != nil {
		m.logViolation(ViolationInvalidMatrix, err.Error(), round)
		return false
	}

	r := &m.rows[ownerIndex]
	r.cells = append([]float64(nil), cells...)
	r.explanation = explanation
	r.lastModified = nowFunc()
	r.modificationCount++
	return true
}

func (m *Matrix) snapshotCellsLocked() [][]float64 {
	out := make([][]float64, m.n)
	for i, r := range m.rows {
		out[i] = append([]float64(nil), r.cells...)
	}
	return out
}

// parseRowPayload tolerantly parses an LLM-authored JSON object, repairing
// near-valid JSON (trailing commas, unquoted keys) before unmarshaling —
// the same parse-then-repair discipline the pack's agentic-valuation
// pipeline applies to its own LLM JSON extraction.
func parseRowPayload(text string) (rowUpdatePayload, error) {
	candidate := extractJSONObject(text)

	var payload rowUpdatePayload
	if err := json.Unmarshal([]byte(candidate), &payload); err == nil {
		return payload, nil
	}

	repaired, err := jsonrepair.RepairJSON(candidate)
	if err != nil {
		return rowUpdatePayload{}, fmt.Errorf("matrix row JSON unrepairable: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &payload); err != nil {
		return rowUpdatePayload{}, fmt.Errorf("matrix row JSON malformed after repair: %w", err)
	}
	return payload, nil
}

// extractJSONObject trims an LLM response down to its outermost {...} span,
// since models routinely wrap JSON in prose or markdown fences.
func extractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}
