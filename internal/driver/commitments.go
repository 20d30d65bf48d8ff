package driver

import (
	"regexp"
	"strconv"

	"github.com/culverbrock/agentbattle-engine/pkg/models"
)

// voteOfferPattern matches the one clearly structured pattern negotiation
// free text tends to contain: "I offer/give/promise you N votes". Anything
// else is left unparsed — this extractor is advisory-only and never gates
// a phase transition (REDESIGN FLAGS item 7).
var voteOfferPattern = regexp.MustCompile(`(?i)\b(?:i\s+)?(?:offer|give|promise)\s+(?:you\s+)?(\d{1,3})\s+votes?\b`)

// seekingAllocationPattern matches "I need/want/require N%".
var seekingAllocationPattern = regexp.MustCompile(`(?i)\b(?:i\s+)?(?:need|want|require)\s+(\d{1,3})\s*%`)

// ExtractCommitments best-effort parses fromPlayer's free-text negotiation
// message for vote offers and sought allocations directed at targetPlayer.
// Returned commitments are hints for observability/UI only; no state
// transition depends on them.
func ExtractCommitments(fromPlayer, targetPlayer, text string, round int) []models.Commitment {
	var out []models.Commitment

	if m := voteOfferPattern.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 0 && n <= 100 {
			out = append(out, models.Commitment{
				Kind:         models.CommitmentVoteOffer,
				FromPlayer:   fromPlayer,
				TargetPlayer: targetPlayer,
				OfferedVotes: &n,
				Round:        round,
			})
		}
	}

	if m := seekingAllocationPattern.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 0 && n <= 100 {
			out = append(out, models.Commitment{
				Kind:               models.CommitmentSeekingAllocation,
				FromPlayer:         fromPlayer,
				TargetPlayer:       targetPlayer,
				RequiredAllocation: &n,
				Round:              round,
			})
		}
	}

	return out
}

// ResolveCommitments fills in Fulfilled for each commitment after voting
// completes, by checking whether the eventual vote/allocation met what was
// promised. Purely observational — runs after the phase that decided votes.
func ResolveCommitments(commitments []models.Commitment, votes map[string]models.Vote, proposals []models.Proposal) {
	for i := range commitments {
		c := &commitments[i]
		fulfilled := false
		switch c.Kind {
		case models.CommitmentVoteOffer:
			if v, ok := votes[c.FromPlayer]; ok && c.OfferedVotes != nil {
				fulfilled = v[c.TargetPlayer] >= *c.OfferedVotes
			}
		case models.CommitmentSeekingAllocation:
			for _, p := range proposals {
				if p.ProposerID == c.TargetPlayer && c.RequiredAllocation != nil {
					if p.Allocation[c.FromPlayer] >= *c.RequiredAllocation {
						fulfilled = true
					}
				}
			}
		}
		c.Fulfilled = &fulfilled
	}
}
