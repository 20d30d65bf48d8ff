// Package tournament implements C6, the Tournament Controller: drives a
// fixed-size roster of strategies through a sequence of games, tracks
// per-strategy coin balances, and evolves the weakest strategies between
// tournaments while conserving total coinage.
package tournament

import (
	"sort"

	"github.com/culverbrock/agentbattle-engine/pkg/models"
)

// Roster is the fixed-size set of strategies playing one tournament.
type Roster struct {
	Strategies []*models.Strategy
}

// sortedByBalance returns strategies ordered ascending by coin balance.
func (r *Roster) sortedByBalance() []*models.Strategy {
	out := append([]*models.Strategy(nil), r.Strategies...)
	sort.Slice(out, func(i, j int) bool { return out[i].CoinBalance < out[j].CoinBalance })
	return out
}

// TotalCoinage sums every strategy's current balance.
func (r *Roster) TotalCoinage() int {
	total := 0
	for _, s := range r.Strategies {
		total += s.CoinBalance
	}
	return total
}

// medianBalance returns the median coin balance of the roster as it stood
// before any evolution step in the current round — the starting balance
// new strategies receive, per spec.md §4.6.
func medianBalance(pre []*models.Strategy) int {
	if len(pre) == 0 {
		return 0
	}
	sorted := append([]*models.Strategy(nil), pre...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CoinBalance < sorted[j].CoinBalance })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid].CoinBalance
	}
	return (sorted[mid-1].CoinBalance + sorted[mid].CoinBalance) / 2
}

// ApplyGameResult folds one game's profit into a strategy's economics.
func ApplyGameResult(s *models.Strategy, payout, entryFee int, won bool) {
	s.CoinBalance += payout - entryFee
	s.GamesPlayed++
	s.TotalInvested += entryFee
	s.TotalReturned += payout
	s.WinHistory = append(s.WinHistory, won)
}
