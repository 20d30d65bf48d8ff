package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/culverbrock/agentbattle-engine/pkg/models"
)

// rosterSnapshotID is the singleton row key for the tournament roster
// snapshot: one process runs one continuous roster, so there is exactly
// one live snapshot to upsert.
const rosterSnapshotID = "default"

// PostgresStore persists Game State as JSONB rows, upserted by gameId.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect opens the connection pool and pings it.
func Connect(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping failed: %w", err)
	}
	log.Println("[store] connected to PostgreSQL")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema loads and executes schema.sql.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	schemaBytes, err := os.ReadFile("internal/store/schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}
	if _, err := s.pool.Exec(ctx, string(schemaBytes)); err != nil {
		return fmt.Errorf("failed to execute schema migrations: %w", err)
	}
	log.Println("[store] schema initialized")
	return nil
}

// Save upserts the full Game State as a JSONB blob, durable on return.
func (s *PostgresStore) Save(ctx context.Context, state *models.GameState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal game %s: %w", state.GameID, err)
	}

	const upsertSQL = `
		INSERT INTO games (game_id, phase, round, state, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (game_id) DO UPDATE
		SET phase = EXCLUDED.phase, round = EXCLUDED.round, state = EXCLUDED.state, updated_at = now();
	`
	if _, err := s.pool.Exec(ctx, upsertSQL, state.GameID, string(state.Phase), state.Round, blob); err != nil {
		return fmt.Errorf("upsert game %s: %w", state.GameID, err)
	}
	return nil
}

// Load returns the latest Game State for gameID, or nil if none exists.
func (s *PostgresStore) Load(ctx context.Context, gameID string) (*models.GameState, error) {
	const querySQL = `SELECT state FROM games WHERE game_id = $1`

	var blob []byte
	err := s.pool.QueryRow(ctx, querySQL, gameID).Scan(&blob)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load game %s: %w", gameID, err)
	}

	var state models.GameState
	if err := json.Unmarshal(blob, &state); err != nil {
		return nil, fmt.Errorf("unmarshal game %s: %w", gameID, err)
	}
	return &state, nil
}

// SaveRoster upserts the tournament controller's roster snapshot as a
// JSONB blob under a fixed key (Save, by contrast, upserts by game id).
func (s *PostgresStore) SaveRoster(ctx context.Context, snapshot *models.TournamentSnapshot) error {
	blob, err := json.Marshal(snapshot.Roster)
	if err != nil {
		return fmt.Errorf("marshal roster snapshot: %w", err)
	}

	const upsertSQL = `
		INSERT INTO tournament_roster (id, snapshot, tournaments_completed, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE
		SET snapshot = EXCLUDED.snapshot, tournaments_completed = EXCLUDED.tournaments_completed, updated_at = now();
	`
	if _, err := s.pool.Exec(ctx, upsertSQL, rosterSnapshotID, blob, snapshot.TournamentsCompleted); err != nil {
		return fmt.Errorf("upsert roster snapshot: %w", err)
	}
	return nil
}

// LoadRoster returns the latest roster snapshot, or nil if none has ever
// been saved.
func (s *PostgresStore) LoadRoster(ctx context.Context) (*models.TournamentSnapshot, error) {
	const querySQL = `SELECT snapshot, tournaments_completed, updated_at FROM tournament_roster WHERE id = $1`

	var blob []byte
	var completed int
	var updatedAt time.Time
	err := s.pool.QueryRow(ctx, querySQL, rosterSnapshotID).Scan(&blob, &completed, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load roster snapshot: %w", err)
	}

	var strategies []*models.Strategy
	if err := json.Unmarshal(blob, &strategies); err != nil {
		return nil, fmt.Errorf("unmarshal roster snapshot: %w", err)
	}
	return &models.TournamentSnapshot{Roster: strategies, TournamentsCompleted: completed, UpdatedAt: updatedAt}, nil
}
