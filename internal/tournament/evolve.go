package tournament

import (
	"context"
	"encoding/json"
	"fmt"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/google/uuid"

	"github.com/culverbrock/agentbattle-engine/internal/oracle"
	"github.com/culverbrock/agentbattle-engine/pkg/models"
)

const bankruptcyThresholdDefault = 100

// fallbackStrategies is the small rotating pool substituted when synthesis
// via the oracle fails, per spec.md §4.6.
var fallbackStrategies = []struct{ name, strategy string }{
	{"Steady Hand", "Propose even splits early, then reward whoever reciprocates fairly."},
	{"Vote Broker", "Trade votes aggressively for allocation promises, punish reneging."},
	{"Quiet Accumulator", "Take the smallest share that clears the self-share floor and let others fight."},
	{"Threat Merchant", "Signal willingness to block outright wins unless given a cut."},
}

// EvolveResult reports what one evolution step did.
type EvolveResult struct {
	Branch      string // "bankruptcy" or "forced_evolution"
	Eliminated  []string
	Synthesized []*models.Strategy
	Delta       int // equalization adjustment distributed across survivors
}

// Evolve runs one evolution step between tournaments: identify
// eliminations, synthesize replacements, and conserve total coinage.
func Evolve(ctx context.Context, roster *Roster, orc *oracle.Oracle, bankruptcyThreshold int) (EvolveResult, error) {
	if bankruptcyThreshold <= 0 {
		bankruptcyThreshold = bankruptcyThresholdDefault
	}

	preTotal := roster.TotalCoinage()
	preEvolutionRoster := append([]*models.Strategy(nil), roster.Strategies...)

	bankrupt := bankruptStrategies(roster, bankruptcyThreshold)
	branch := "bankruptcy"
	var eliminated []*models.Strategy
	if len(bankrupt) > 0 {
		eliminated = bankrupt
	} else {
		branch = "forced_evolution"
		eliminated = bottomTwo(roster)
	}

	survivors := survivorsExcluding(roster, eliminated)
	top2 := topSurvivorsByProfit(survivors, 2)

	median := medianBalance(preEvolutionRoster)

	synthesized := make([]*models.Strategy, 0, len(eliminated))
	for range eliminated {
		s, err := synthesize(ctx, orc, top2)
		if err != nil {
			s = fallbackStrategy(len(synthesized))
		}
		s.CoinBalance = median
		synthesized = append(synthesized, s)
	}

	newRoster := append(append([]*models.Strategy(nil), survivors...), synthesized...)

	eliminatedCoinage := 0
	for _, e := range eliminated {
		eliminatedCoinage += e.CoinBalance
	}
	newStrategyCoinage := median * len(synthesized)
	delta := eliminatedCoinage - newStrategyCoinage

	distributeEqualization(survivors, delta)

	roster.Strategies = newRoster
	postTotal := roster.TotalCoinage()
	if postTotal != preTotal {
		return EvolveResult{}, fmt.Errorf("coin conservation violated: pre=%d post=%d", preTotal, postTotal)
	}

	names := make([]string, len(eliminated))
	for i, e := range eliminated {
		names[i] = e.ID
	}

	return EvolveResult{Branch: branch, Eliminated: names, Synthesized: synthesized, Delta: delta}, nil
}

func bankruptStrategies(r *Roster, threshold int) []*models.Strategy {
	var out []*models.Strategy
	for _, s := range r.Strategies {
		if s.IsBankrupt(threshold) {
			out = append(out, s)
		}
	}
	return out
}

func bottomTwo(r *Roster) []*models.Strategy {
	sorted := r.sortedByBalance()
	n := 2
	if len(sorted) < n {
		n = len(sorted)
	}
	return sorted[:n]
}

func survivorsExcluding(r *Roster, eliminated []*models.Strategy) []*models.Strategy {
	elim := make(map[string]bool, len(eliminated))
	for _, e := range eliminated {
		elim[e.ID] = true
	}
	var out []*models.Strategy
	for _, s := range r.Strategies {
		if !elim[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

// topSurvivorsByProfit returns up to n survivors ranked by
// (totalReturned - totalInvested), highest first.
func topSurvivorsByProfit(survivors []*models.Strategy, n int) []*models.Strategy {
	sorted := append([]*models.Strategy(nil), survivors...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0; j-- {
			pi := sorted[j].TotalReturned - sorted[j].TotalInvested
			pj := sorted[j-1].TotalReturned - sorted[j-1].TotalInvested
			if pi > pj {
				sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
			} else {
				break
			}
		}
	}
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

type synthesisPayload struct {
	Name     string `json:"name"`
	Strategy string `json:"strategy"`
}

// synthesize asks the oracle to generate one new strategy inspired by the
// top survivors, weighted by profit-above-baseline share (50/50 fallback
// when that weighting can't be computed).
func synthesize(ctx context.Context, orc *oracle.Oracle, inspirations []*models.Strategy) (*models.Strategy, error) {
	prompt := synthesisPrompt(inspirations)
	text, err := orc.Ask(ctx, "tournament-synthesis", prompt, oracle.Options{System: synthesisSystemPrompt, Temperature: 0.9})
	if err != nil {
		return nil, err
	}

	var payload synthesisPayload
	if err := parseSynthesisPayload(text, &payload); err != nil {
		return nil, err
	}
	if payload.Name == "" || payload.Strategy == "" {
		return nil, fmt.Errorf("synthesis payload missing name or strategy")
	}

	return &models.Strategy{
		ID:           uuid.NewString(),
		Name:         payload.Name,
		StrategyText: payload.Strategy,
		Archetype:    "synthesized",
	}, nil
}

func synthesisPrompt(inspirations []*models.Strategy) string {
	weights := profitWeights(inspirations)
	prompt := "Generate a new competitive negotiation strategy, inspired by these survivors:\n"
	for i, s := range inspirations {
		prompt += fmt.Sprintf("- %s (weight %.2f): %s\n", s.Name, weights[i], s.StrategyText)
	}
	return prompt
}

// profitWeights weights each inspiration by its profit-above-baseline
// share; falls back to an even 50/50 split when profits are non-positive.
func profitWeights(inspirations []*models.Strategy) []float64 {
	n := len(inspirations)
	weights := make([]float64, n)
	if n == 0 {
		return weights
	}

	total := 0.0
	for _, s := range inspirations {
		profit := float64(s.TotalReturned - s.TotalInvested)
		if profit > 0 {
			total += profit
		}
	}
	if total <= 0 {
		even := 1.0 / float64(n)
		for i := range weights {
			weights[i] = even
		}
		return weights
	}

	for i, s := range inspirations {
		profit := float64(s.TotalReturned - s.TotalInvested)
		if profit < 0 {
			profit = 0
		}
		weights[i] = profit / total
	}
	return weights
}

func fallbackStrategy(rotationIndex int) *models.Strategy {
	pick := fallbackStrategies[rotationIndex%len(fallbackStrategies)]
	return &models.Strategy{
		ID:           uuid.NewString(),
		Name:         pick.name,
		StrategyText: pick.strategy,
		Archetype:    "fallback",
	}
}

const synthesisSystemPrompt = "Respond only with JSON " + `{"name": string, "strategy": string}` +
	" describing a new negotiation strategy for a multiplayer prize-splitting game."

func parseSynthesisPayload(text string, dest *synthesisPayload) error {
	start, end := -1, -1
	for i, c := range text {
		if c == '{' && start == -1 {
			start = i
		}
		if c == '}' {
			end = i
		}
	}
	candidate := text
	if start != -1 && end != -1 && end >= start {
		candidate = text[start : end+1]
	}

	if err := json.Unmarshal([]byte(candidate), dest); err == nil {
		return nil
	}
	repaired, err := jsonrepair.RepairJSON(candidate)
	if err != nil {
		return fmt.Errorf("unrepairable synthesis JSON: %w", err)
	}
	return json.Unmarshal([]byte(repaired), dest)
}

// distributeEqualization spreads delta evenly across survivors, with any
// remainder given to the top survivor by balance, so total coinage is
// conserved exactly.
func distributeEqualization(survivors []*models.Strategy, delta int) {
	if len(survivors) == 0 || delta == 0 {
		return
	}
	share := delta / len(survivors)
	remainder := delta - share*len(survivors)

	topIdx := 0
	for i, s := range survivors {
		if s.CoinBalance > survivors[topIdx].CoinBalance {
			topIdx = i
		}
	}

	for i, s := range survivors {
		s.CoinBalance += share
		if i == topIdx {
			s.CoinBalance += remainder
		}
	}
}
