package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/culverbrock/agentbattle-engine/internal/api"
	"github.com/culverbrock/agentbattle-engine/internal/config"
	"github.com/culverbrock/agentbattle-engine/internal/driver"
	"github.com/culverbrock/agentbattle-engine/internal/oracle"
	"github.com/culverbrock/agentbattle-engine/internal/orchestrator"
	"github.com/culverbrock/agentbattle-engine/internal/store"
	"github.com/culverbrock/agentbattle-engine/internal/tournament"
	"github.com/culverbrock/agentbattle-engine/internal/wallet"
	"github.com/culverbrock/agentbattle-engine/pkg/models"
)

func main() {
	log.Println("Starting Agent Battle Engine...")
	log.Println("Initializing Negotiation Matrix Substrate and Phase State Machine...")

	// ─── Environment ──────────────────────────────────────────────────
	// Credentials come from the environment; local development loads a
	// .env file from the working directory if present.
	// ────────────────────────────────────────────────────────────────────
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, reading configuration from the environment directly")
	}

	cfg := config.Load()

	var st store.Store
	if cfg.DatabaseURL != "" {
		pgStore, err := store.Connect(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: Failed to connect to PostgreSQL, falling back to in-memory storage. Error: %v", err)
			st = store.NewMemoryStore()
		} else {
			defer pgStore.Close()
			if err := pgStore.InitSchema(context.Background()); err != nil {
				log.Printf("Warning: DB schema init failed: %v", err)
			}
			st = pgStore
		}
	} else {
		log.Println("DATABASE_URL not set — running with in-memory storage only")
		st = store.NewMemoryStore()
	}

	llmEndpoint := getEnvOrDefault("LLM_ENDPOINT", "http://localhost:11434/complete")
	backend := oracle.NewHTTPBackend(llmEndpoint, os.Getenv("LLM_API_KEY"))
	orc := oracle.New(backend, cfg.OracleRPM, cfg.OracleTPM, time.Duration(cfg.OracleDeadlineMs)*time.Millisecond)

	drv := driver.New(orc, cfg.OracleMaxConcurrency, cfg.SelfShareFloorPct)

	orchCfg := orchestrator.Config{
		MaxPlayers:           cfg.MaxPlayers,
		EntryFee:             cfg.EntryFee,
		WinThresholdFraction: cfg.WinThresholdFraction,
		MaxRounds:            cfg.MaxRounds,
		MatrixSubRounds:      cfg.MatrixSubRounds,
		DisconnectTimeout:    time.Duration(cfg.DisconnectTimeoutMs) * time.Millisecond,
	}
	orch := orchestrator.New(orchCfg, st, drv, wallet.DevVerifier{})

	go runTournamentLoop(orc, orch, st, cfg)

	r := api.SetupRouter(orch)

	port := cfg.Port
	log.Printf("Engine running on :%s\n", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// runTournamentLoop drives C6 continuously in the background: build a
// starting roster of canonical strategies, then run tournaments back to
// back, evolving the roster between each, persisting progress so a
// restart resumes from the last completed tournament.
func runTournamentLoop(orc *oracle.Oracle, orch *orchestrator.Orchestrator, st store.Store, cfg config.Config) {
	seed := seedRoster(cfg.RosterSize, cfg.StartingBalance)
	roster, completed := tournament.LoadOrSeedRoster(context.Background(), st, seed)
	controller := &tournament.Controller{
		Roster:               roster,
		Orchestrator:         orch,
		Oracle:               orc,
		Store:                st,
		EntryFee:             cfg.EntryFee,
		GamesPerRun:          cfg.TournamentGamesPerTournament,
		BankruptcyThreshold:  cfg.BankruptcyThreshold,
		TournamentsCompleted: completed,
	}

	for {
		result, err := controller.RunTournament(context.Background())
		if err != nil {
			log.Printf("[tournament] run failed: %v", err)
			time.Sleep(30 * time.Second)
			continue
		}
		log.Printf("[tournament] completed %d games, evolve branch=%s eliminated=%v",
			len(result.Games), result.Evolve.Branch, result.Evolve.Eliminated)
	}
}

var canonicalArchetypes = []struct{ name, strategy, archetype string }{
	{"Fair Splitter", "Propose even splits and vote for whoever reciprocates.", "diplomatic"},
	{"Greedy Maximizer", "Always propose the largest self-share that clears the floor.", "aggressive"},
	{"Vote Trader", "Trade votes for allocation promises and punish reneging.", "opportunistic"},
	{"Coalition Builder", "Court the two weakest players early to lock in a majority.", "strategic"},
	{"Silent Observer", "Wait, mirror the emerging consensus, and vote with the majority.", "reactive"},
	{"Threat Merchant", "Signal willingness to block outright wins unless given a cut.", "aggressive"},
}

func seedRoster(size, startingBalance int) *tournament.Roster {
	if size <= 0 {
		size = len(canonicalArchetypes)
	}
	strategies := make([]*models.Strategy, 0, size)
	for i := 0; i < size; i++ {
		pick := canonicalArchetypes[i%len(canonicalArchetypes)]
		strategies = append(strategies, &models.Strategy{
			ID:           pick.name,
			Name:         pick.name,
			StrategyText: pick.strategy,
			Archetype:    pick.archetype,
			CoinBalance:  startingBalance,
		})
	}
	return &tournament.Roster{Strategies: strategies}
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
