package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/culverbrock/agentbattle-engine/internal/driver"
	"github.com/culverbrock/agentbattle-engine/internal/oracle"
	"github.com/culverbrock/agentbattle-engine/internal/store"
	"github.com/culverbrock/agentbattle-engine/internal/wallet"
)

type fixedRowBackend struct{ row string }

func (b *fixedRowBackend) Complete(ctx context.Context, req oracle.Request) (string, int, error) {
	return b.row, 20, nil
}

// End-to-end: two players join, ready up, and the orchestrator drives the
// whole pipeline (strategy -> negotiation -> proposal -> voting) to
// endgame via the two-player tiebreak, since two surviving proposers never
// reduce to a single winner by vote share alone in this setup.
func TestOrchestrator_TwoPlayerGameResolvesViaTiebreak(t *testing.T) {
	explanation := "I am holding a cooperative stance early while I see how the other player opens their own offer."
	row := `{"explanation": "` + explanation + `", "matrixRow": [60, 40, 50, 50, 0, 0, 0, 0]}`

	st := store.NewMemoryStore()
	orc := oracle.New(&fixedRowBackend{row: row}, 600, 900_000, time.Second)
	drv := driver.New(orc, 4, 17.0)
	o := New(Config{
		MaxPlayers:           10,
		EntryFee:             100,
		WinThresholdFraction: 0.61,
		MaxRounds:            10,
		MatrixSubRounds:      1,
		DisconnectTimeout:    time.Minute,
	}, st, drv, wallet.DevVerifier{})

	ctx := context.Background()
	if err := o.Create(ctx, "g1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := o.Join(ctx, "g1", "p1", "Alice"); err != nil {
		t.Fatalf("join p1: %v", err)
	}
	if err := o.Join(ctx, "g1", "p2", "Bob"); err != nil {
		t.Fatalf("join p2: %v", err)
	}

	if err := o.Ready(ctx, "g1", "p1", "cooperative", wallet.TypeEthereum, "0xabc", "msg", "sig"); err != nil {
		t.Fatalf("ready p1: %v", err)
	}
	if err := o.Ready(ctx, "g1", "p2", "assertive", wallet.TypeEthereum, "0xdef", "msg", "sig"); err != nil {
		t.Fatalf("ready p2: %v", err)
	}

	state := o.State("g1")
	if state == nil {
		t.Fatalf("expected game g1 to be resident after Ready triggered the pipeline")
	}
	if state.Phase != "endgame" || !state.Ended {
		t.Fatalf("expected the game to reach endgame, got phase=%s ended=%v", state.Phase, state.Ended)
	}
	if state.WinnerProposal == nil || state.WinnerProposal.ProposerID != "p2" {
		t.Fatalf("expected p2 (lower self-share, 40 vs 60) to win the tiebreak, got %+v", state.WinnerProposal)
	}
	if state.Payouts["p1"] != 120 || state.Payouts["p2"] != 80 {
		t.Fatalf("expected payouts p1=120 p2=80, got %+v", state.Payouts)
	}
}

// Testable Property 9: after Shutdown, no further broadcast events are
// delivered for that game.
func TestOrchestrator_ShutdownStopsFurtherBroadcasts(t *testing.T) {
	st := store.NewMemoryStore()
	orc := oracle.New(&fixedRowBackend{row: "{}"}, 60, 90_000, time.Second)
	drv := driver.New(orc, 4, 17.0)
	o := New(Config{MaxPlayers: 10, DisconnectTimeout: time.Minute}, st, drv, wallet.DevVerifier{})

	ctx := context.Background()
	_ = o.Create(ctx, "g2")
	_ = o.Join(ctx, "g2", "p1", "Alice")

	hub := o.Hub("g2")
	if hub == nil {
		t.Fatalf("expected a hub for g2")
	}

	o.Shutdown("g2")
	hub.Publish(Event{Kind: EventMessage, Data: "should not be delivered"})

	if hub.subscriberCount() != 0 {
		t.Fatalf("expected hub to have no subscribers after shutdown")
	}
	if o.State("g2") != nil {
		t.Fatalf("expected game to be removed from the live registry after shutdown")
	}
}

func TestOrchestrator_DisconnectTimerMarksDisconnectedAfterExpiry(t *testing.T) {
	st := store.NewMemoryStore()
	orc := oracle.New(&fixedRowBackend{row: "{}"}, 60, 90_000, time.Second)
	drv := driver.New(orc, 4, 17.0)
	o := New(Config{MaxPlayers: 10, DisconnectTimeout: 20 * time.Millisecond}, st, drv, wallet.DevVerifier{})

	ctx := context.Background()
	_ = o.Create(ctx, "g3")
	_ = o.Join(ctx, "g3", "p1", "Alice")

	o.HandleDisconnect("g3", "p1")
	time.Sleep(60 * time.Millisecond)

	state := o.State("g3")
	if state.Players[0].Status != "disconnected" {
		t.Fatalf("expected p1 marked disconnected after timer expiry, got %s", state.Players[0].Status)
	}
}

func TestOrchestrator_ReconnectCancelsDisconnectTimer(t *testing.T) {
	st := store.NewMemoryStore()
	orc := oracle.New(&fixedRowBackend{row: "{}"}, 60, 90_000, time.Second)
	drv := driver.New(orc, 4, 17.0)
	o := New(Config{MaxPlayers: 10, DisconnectTimeout: 20 * time.Millisecond}, st, drv, wallet.DevVerifier{})

	ctx := context.Background()
	_ = o.Create(ctx, "g4")
	_ = o.Join(ctx, "g4", "p1", "Alice")

	o.HandleDisconnect("g4", "p1")
	o.HandleReconnect("g4", "p1")
	time.Sleep(60 * time.Millisecond)

	state := o.State("g4")
	if state.Players[0].Status != "connected" {
		t.Fatalf("expected p1 to remain connected after reconnect cancelled the timer, got %s", state.Players[0].Status)
	}
}
