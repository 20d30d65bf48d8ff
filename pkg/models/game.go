// Package models holds the data shapes shared by the negotiation engine's
// persistence, broadcast, and API layers.
package models

import "time"

// PlayerStatus is the connectivity/elimination state of a player.
type PlayerStatus string

const (
	PlayerConnected    PlayerStatus = "connected"
	PlayerDisconnected PlayerStatus = "disconnected"
	PlayerEliminated   PlayerStatus = "eliminated"
)

// Phase names one stage of game progress.
type Phase string

const (
	PhaseLobby       Phase = "lobby"
	PhaseStrategy    Phase = "strategy"
	PhaseNegotiation Phase = "negotiation"
	PhaseProposal    Phase = "proposal"
	PhaseVoting      Phase = "voting"
	PhaseElimination Phase = "elimination"
	PhaseEndgame     Phase = "endgame"
)

// Agent is the role bound to a player whose actions come from an LLM call.
type Agent struct {
	Strategy string `json:"strategy"`
	Profile  string `json:"profile,omitempty"` // oracle profile / model hint, opaque to the engine
}

// Player is one participant in a game.
type Player struct {
	PlayerID      string       `json:"playerId"`
	Name          string       `json:"name"`
	Status        PlayerStatus `json:"status"`
	Ready         bool         `json:"ready"`
	Agent         Agent        `json:"agent"`
	WalletAddress string       `json:"walletAddress,omitempty"`
	WalletType    string       `json:"walletType,omitempty"` // "eth" | "sol"
	JoinedAt      time.Time    `json:"joinedAt"`
}

// Proposal is one player's allocation of the prize pool.
type Proposal struct {
	ProposerID string         `json:"proposerId"`
	Allocation map[string]int `json:"allocation"` // playerId -> integer percentage, sums to 100
}

// Vote is one voter's distribution of their 100 votes across proposers.
type Vote map[string]int // proposerId -> integer count, sums to 100

// CommitmentKind tags the type of a parsed negotiation commitment.
type CommitmentKind string

const (
	CommitmentVoteOffer          CommitmentKind = "vote_offer"
	CommitmentSeekingAllocation  CommitmentKind = "seeking_allocation"
	CommitmentAlliance           CommitmentKind = "alliance"
	CommitmentThreat             CommitmentKind = "threat"
	CommitmentConditionalTrade   CommitmentKind = "conditional_trade"
)

// Commitment is a best-effort, advisory-only extraction from free-text
// negotiation. It MUST NOT gate any state transition (see REDESIGN FLAGS).
type Commitment struct {
	Kind               CommitmentKind `json:"kind"`
	FromPlayer         string         `json:"fromPlayer"`
	TargetPlayer       string         `json:"targetPlayer"`
	OfferedVotes       *int           `json:"offeredVotes,omitempty"`
	RequiredAllocation *int           `json:"requiredAllocation,omitempty"`
	Fulfilled          *bool          `json:"fulfilled,omitempty"` // nil until resolved after voting
	Round              int            `json:"round"`
}

// MatrixRowView is the JSON-serializable snapshot of one matrix row,
// suitable for persistence and broadcast.
type MatrixRowView struct {
	Owner             string    `json:"owner"`
	Proposal          []float64 `json:"proposal"`      // length N
	VoteAllocation    []float64 `json:"voteAllocation"` // length N
	VoteOffers        []float64 `json:"voteOffers"`     // length N
	VoteRequests      []float64 `json:"voteRequests"`   // length N
	Explanation       string    `json:"explanation"`
	LastModified      time.Time `json:"lastModified"`
	ModificationCount int       `json:"modificationCount"`
}

// MatrixView is the persisted/broadcast snapshot of the full negotiation matrix.
type MatrixView struct {
	PlayerOrder []string        `json:"playerOrder"` // column/row index -> playerId
	Rows        []MatrixRowView `json:"rows"`
}

// GameState is the single unit of persistence and broadcast for one game.
type GameState struct {
	GameID            string              `json:"gameId"`
	Phase             Phase               `json:"phase"`
	Round             int                 `json:"round"`
	MaxRounds         int                 `json:"maxRounds"`
	Players           []Player            `json:"players"`
	Eliminated        map[string]bool     `json:"eliminated"`
	Proposals         []Proposal          `json:"proposals"`
	Votes             map[string]Vote     `json:"votes"` // voterId -> Vote
	SpeakingOrder     []string            `json:"speakingOrder"`
	CurrentSpeakerIdx int                 `json:"currentSpeakerIdx"`
	NegotiationRound  int                 `json:"negotiationRound"` // matrix sub-round, 1-based
	StrategyMessages  map[string]string   `json:"strategyMessages"`
	WinnerProposal    *Proposal           `json:"winnerProposal,omitempty"`
	Payouts           map[string]int      `json:"payouts,omitempty"` // playerId -> coins, set once winnerProposal is decided
	Ended             bool                `json:"ended"`
	Matrix            *MatrixView         `json:"matrix,omitempty"`
	ProposalFailures  map[string]int      `json:"proposalFailures,omitempty"`
	VoteFailures      map[string]int      `json:"voteFailures,omitempty"`
	NegotiationFails  map[string]int      `json:"negotiationFailures,omitempty"`
	Commitments       []Commitment        `json:"commitments,omitempty"` // advisory-only, never gates a transition
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"updatedAt"`
}

// NewGameState creates a fresh lobby-phase game.
func NewGameState(gameID string, maxRounds int) *GameState {
	now := time.Now()
	return &GameState{
		GameID:           gameID,
		Phase:            PhaseLobby,
		Round:            0,
		MaxRounds:        maxRounds,
		Players:          []Player{},
		Eliminated:       map[string]bool{},
		Proposals:        []Proposal{},
		Votes:            map[string]Vote{},
		SpeakingOrder:    []string{},
		StrategyMessages: map[string]string{},
		ProposalFailures: map[string]int{},
		VoteFailures:     map[string]int{},
		NegotiationFails: map[string]int{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// PlayerIndex returns the position of playerId in Players, or -1.
func (g *GameState) PlayerIndex(playerID string) int {
	for i, p := range g.Players {
		if p.PlayerID == playerID {
			return i
		}
	}
	return -1
}

// NonEliminatedIDs returns player ids not in the Eliminated set, in roster order.
func (g *GameState) NonEliminatedIDs() []string {
	ids := make([]string, 0, len(g.Players))
	for _, p := range g.Players {
		if !g.Eliminated[p.PlayerID] {
			ids = append(ids, p.PlayerID)
		}
	}
	return ids
}

// AllPlayerIDs returns every roster id in order, eliminated or not.
func (g *GameState) AllPlayerIDs() []string {
	ids := make([]string, len(g.Players))
	for i, p := range g.Players {
		ids[i] = p.PlayerID
	}
	return ids
}

// Strategy is a tournament-scope unit of evolutionary selection.
type Strategy struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	StrategyText    string    `json:"strategy"`
	Archetype       string    `json:"archetype"`
	CoinBalance     int       `json:"coinBalance"`
	GamesPlayed     int       `json:"gamesPlayed"`
	TotalInvested   int       `json:"totalInvested"`
	TotalReturned   int       `json:"totalReturned"`
	WinHistory      []bool    `json:"winHistory"`
	EliminationCount int      `json:"eliminationCount"`
}

// IsBankrupt reports whether a strategy's balance is below the given threshold.
func (s *Strategy) IsBankrupt(threshold int) bool {
	return s.CoinBalance < threshold
}

// TournamentSnapshot is the persisted unit of tournament-controller
// progress: the full roster plus how many tournaments have completed
// against it, so a restart resumes from the last completed tournament
// instead of reseeding a fresh roster and losing every strategy's history.
type TournamentSnapshot struct {
	Roster               []*Strategy `json:"roster"`
	TournamentsCompleted int         `json:"tournamentsCompleted"`
	UpdatedAt            time.Time   `json:"updatedAt"`
}
