// Package store persists Game State records. It mirrors spec.md §6's
// "object store keyed by gameId" contract: save is an upsert durable on
// return, load returns the latest record or nil.
package store

import (
	"context"

	"github.com/culverbrock/agentbattle-engine/pkg/models"
)

// Store is the persistence contract the orchestrator and tournament
// controller consume.
type Store interface {
	Save(ctx context.Context, state *models.GameState) error
	Load(ctx context.Context, gameID string) (*models.GameState, error)

	// SaveRoster upserts the tournament controller's current roster
	// snapshot; durable on return, mirroring Save's upsert contract.
	SaveRoster(ctx context.Context, snapshot *models.TournamentSnapshot) error
	// LoadRoster returns the latest roster snapshot, or nil if none exists.
	LoadRoster(ctx context.Context) (*models.TournamentSnapshot, error)
}
