package matrix

import (
	"fmt"
	"strconv"
	"strings"
)

const rowUpdateSystemPrompt = "You are one player in a multiplayer negotiation game. Respond only with a single JSON object of the form " +
	`{"explanation": string, "matrixRow": [numbers]}` +
	". matrixRow has exactly 4*N numbers: a token-percentage proposal (N cells, sums to 100, your own share must meet the floor), " +
	"a vote-allocation percentage (N cells, sums to 100), vote offers you make to each other player (N cells, 0-100), " +
	"and vote requests you make of each other player (N cells, 0-100). Token percentages and vote trading are independent currencies."

// fullRowPrompt describes the current full matrix state for deep reasoning.
// Used when the oracle is not under degradation pressure.
func fullRowPrompt(n int, owner, strategyText string, snapshot [][]float64, view ActivityView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are player %s with %d total players in this game. Round %d.\n", owner, n, view.Round)
	fmt.Fprintf(&sb, "Your strategy: %s\n", strategyText)
	sb.WriteString("Current matrix (each row is a player's last submitted row):\n")
	for i, row := range snapshot {
		fmt.Fprintf(&sb, "  row %d: %s\n", i, formatSnapshotRow(n, row))
	}
	if len(view.RecentMessages) > 0 {
		sb.WriteString("Recent negotiation activity:\n")
		for _, msg := range view.RecentMessages {
			sb.WriteString("  - ")
			sb.WriteString(msg)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("Submit your updated row as the JSON object described in the system prompt.")
	return sb.String()
}

// shortRowPrompt omits the full matrix context, for use under C1 degradation.
func shortRowPrompt(n int, owner, strategyText string, view ActivityView) string {
	return fmt.Sprintf(
		"Player %s, %d players, round %d. Strategy: %s. Submit your matrixRow JSON now (%d cells); be brief.",
		owner, n, view.Round, strategyText, 4*n,
	)
}

func formatSnapshotRow(n int, cells []float64) string {
	if len(cells) != 4*n {
		return "(uninitialized)"
	}
	parts := make([]string, 0, 4)
	parts = append(parts, "proposal="+joinFloats(cells[0:n]))
	parts = append(parts, "votes="+joinFloats(cells[n:2*n]))
	parts = append(parts, "offers="+joinFloats(cells[2*n:3*n]))
	parts = append(parts, "requests="+joinFloats(cells[3*n:4*n]))
	return strings.Join(parts, " ")
}

func joinFloats(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'f', 0, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
