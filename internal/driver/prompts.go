package driver

import "fmt"

const proposalSystemPrompt = "You are one player in a multiplayer negotiation game. Respond only with a JSON object " +
	`{"allocation": {"<playerId>": <integer percent>, ...}}` + " covering every player id given, summing to 100, " +
	"with your own share at least the self-share floor."

const voteSystemPrompt = "You are one player in a multiplayer negotiation game, deciding how to vote. Respond only with a JSON object " +
	`{"vote": {"<proposerId>": <integer count>, ...}}` + " covering every proposer id given, summing to 100."

func freeFormProposalPrompt(playerID, strategyText string, allPlayerIDs []string, selfShareFloorPct float64) string {
	return fmt.Sprintf(
		"You are %s. Strategy: %s. Players in this game: %v. Propose an allocation of the 100%% prize pool; your own share must be >= %.0f%%.",
		playerID, strategyText, allPlayerIDs, selfShareFloorPct,
	)
}

func freeFormVotePrompt(playerID, strategyText string, proposerIDs []string) string {
	return fmt.Sprintf(
		"You are %s. Strategy: %s. These proposals were submitted by: %v. Distribute your 100 votes across them.",
		playerID, strategyText, proposerIDs,
	)
}

func shortProposalPrompt(playerID string, allPlayerIDs []string) string {
	return fmt.Sprintf("Player %s, propose an allocation JSON now over %v. Be brief.", playerID, allPlayerIDs)
}

func shortVotePrompt(playerID string, proposerIDs []string) string {
	return fmt.Sprintf("Player %s, vote JSON now over %v. Be brief.", playerID, proposerIDs)
}
