package tournament

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/culverbrock/agentbattle-engine/internal/oracle"
	"github.com/culverbrock/agentbattle-engine/internal/orchestrator"
	"github.com/culverbrock/agentbattle-engine/internal/store"
	"github.com/culverbrock/agentbattle-engine/internal/wallet"
	"github.com/culverbrock/agentbattle-engine/pkg/models"
)

// Controller runs repeated tournaments over a fixed roster, persisting
// incremental progress so a crash mid-run loses at most one game.
type Controller struct {
	Roster               *Roster
	Orchestrator         *orchestrator.Orchestrator
	Oracle               *oracle.Oracle
	Store                store.Store
	EntryFee             int
	GamesPerRun          int
	BankruptcyThreshold  int
	TournamentsCompleted int
}

// LoadOrSeedRoster resumes the tournament roster from st's last persisted
// snapshot, grounded on the teacher's fund_tracer.go persist-after-every-
// step resumability: a restart should continue from the last completed
// tournament rather than reseed and lose every strategy's coin history. It
// falls back to seed (and a completed count of 0) when no snapshot exists
// or the store can't be reached.
func LoadOrSeedRoster(ctx context.Context, st store.Store, seed *Roster) (*Roster, int) {
	snapshot, err := st.LoadRoster(ctx)
	if err != nil {
		log.Printf("[tournament] failed to load roster snapshot, starting fresh: %v", err)
		return seed, 0
	}
	if snapshot == nil || len(snapshot.Roster) == 0 {
		return seed, 0
	}
	log.Printf("[tournament] resumed roster from snapshot, %d tournaments already completed", snapshot.TournamentsCompleted)
	return &Roster{Strategies: snapshot.Roster}, snapshot.TournamentsCompleted
}

// GameSummary records one completed game's economic outcome for a report.
type GameSummary struct {
	GameID  string
	Winner  string
	Payouts map[string]int
}

// TournamentResult summarizes one full RunTournament call.
type TournamentResult struct {
	Games  []GameSummary
	Evolve EvolveResult
}

// RunTournament plays GamesPerRun games (default 5) against the current
// roster, mapping strategies to players 1:1, then runs one evolution step.
// Progress is persisted after every game for resumability.
func (c *Controller) RunTournament(ctx context.Context) (TournamentResult, error) {
	games := c.GamesPerRun
	if games <= 0 {
		games = 5
	}

	result := TournamentResult{}
	for g := 0; g < games; g++ {
		summary, err := c.playOneGame(ctx)
		if err != nil {
			return result, fmt.Errorf("tournament game %d: %w", g, err)
		}
		result.Games = append(result.Games, summary)
		log.Printf("[tournament] game %s complete, winner=%s", summary.GameID, summary.Winner)
		c.persistSnapshot(ctx)
	}

	evolved, err := Evolve(ctx, c.Roster, c.Oracle, c.BankruptcyThreshold)
	if err != nil {
		return result, fmt.Errorf("evolve: %w", err)
	}
	result.Evolve = evolved
	c.TournamentsCompleted++
	c.persistSnapshot(ctx)
	return result, nil
}

// persistSnapshot upserts the controller's current roster state via Store,
// so a process restart can resume mid-tournament instead of reseeding. A
// persist failure is logged, not fatal: the in-memory roster stays
// authoritative for the rest of this run, same as a game's non-fatal
// oracle failure never aborting the phase.
func (c *Controller) persistSnapshot(ctx context.Context) {
	if c.Store == nil {
		return
	}
	snapshot := &models.TournamentSnapshot{
		Roster:               c.Roster.Strategies,
		TournamentsCompleted: c.TournamentsCompleted,
	}
	if err := c.Store.SaveRoster(ctx, snapshot); err != nil {
		log.Printf("[tournament] failed to persist roster snapshot: %v", err)
	}
}

// playOneGame maps every strategy in the roster onto a player id, drives a
// full game through the orchestrator, and folds the outcome (entry fee and
// payout together) back into each strategy's economics.
func (c *Controller) playOneGame(ctx context.Context) (GameSummary, error) {
	gameID := uuid.NewString()
	if err := c.Orchestrator.Create(ctx, gameID); err != nil {
		return GameSummary{}, err
	}

	playerIDs := make(map[string]string, len(c.Roster.Strategies)) // strategy id -> player id
	for _, s := range c.Roster.Strategies {
		playerID := uuid.NewString()
		playerIDs[s.ID] = playerID
		if err := c.Orchestrator.Join(ctx, gameID, playerID, s.Name); err != nil {
			return GameSummary{}, fmt.Errorf("join %s: %w", s.Name, err)
		}
	}

	for _, s := range c.Roster.Strategies {
		playerID := playerIDs[s.ID]
		if err := c.Orchestrator.Ready(ctx, gameID, playerID, s.StrategyText, wallet.TypeEthereum, playerID, "tournament", "dev-signature"); err != nil {
			return GameSummary{}, fmt.Errorf("ready %s: %w", s.Name, err)
		}
	}

	state := c.Orchestrator.State(gameID)
	if state == nil {
		return GameSummary{}, fmt.Errorf("game %s not resident after play", gameID)
	}

	winnerPlayerID := ""
	if state.WinnerProposal != nil {
		winnerPlayerID = state.WinnerProposal.ProposerID
	}

	for _, s := range c.Roster.Strategies {
		playerID := playerIDs[s.ID]
		payout := state.Payouts[playerID]
		won := playerID == winnerPlayerID
		ApplyGameResult(s, payout, c.EntryFee, won)
	}

	c.Orchestrator.Shutdown(gameID)

	return GameSummary{GameID: gameID, Winner: winnerPlayerID, Payouts: state.Payouts}, nil
}
