package turndriver

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Wundero/shiritori/internal/dictionary"
	"github.com/Wundero/shiritori/internal/eventbus"
	"github.com/Wundero/shiritori/internal/rules"
	"github.com/Wundero/shiritori/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T) (*rules.Engine, *store.Store, *eventbus.Bus) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "driver.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	d := dictionary.New()
	d.Load(context.Background(), "en", strings.NewReader("apple\nelephant\n"))

	engine := rules.New(st, d)
	bus := eventbus.New()
	return engine, st, bus
}

func TestDriverForcesTimeoutAndAdvancesTurn(t *testing.T) {
	engine, st, bus := newHarness(t)
	ctx := context.Background()

	game, err := engine.CreateGame(ctx)
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	engine.Join(ctx, game.ID, "Alice", "s-alice")
	engine.Join(ctx, game.ID, "Bob", "s-bob")

	if err := engine.Start(ctx, game.ID, "s-alice"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// turn_time cannot go below 30s, so shorten the running turn's clock
	// directly to make the first tick force the timeout.
	if err := st.Mutate(ctx, func(ctx context.Context, tx *store.Tx) error {
		g, err := store.GetGame(ctx, tx, game.ID)
		if err != nil {
			return err
		}
		g.TurnTimeLeft = 1
		return store.UpdateGame(ctx, tx, g)
	}); err != nil {
		t.Fatalf("shorten turn clock: %v", err)
	}

	sub := bus.Subscribe(game.ID)
	defer sub.Close()

	driverCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Run(driverCtx, game.ID, engine, st, bus, testLogger()) }()

	sawTick := false
	sawUpdate := false
	deadline := time.After(4 * time.Second)
loop:
	for {
		select {
		case ev := <-sub.Events():
			switch ev.Kind {
			case eventbus.KindTurnTick:
				sawTick = true
			case eventbus.KindGameUpdated:
				sawUpdate = true
				break loop
			}
		case <-deadline:
			break loop
		}
	}
	cancel()
	<-done

	if !sawTick {
		t.Error("expected at least one turn_tick event")
	}
	if !sawUpdate {
		t.Error("expected a game_updated event after the forced timeout")
	}

	g, err := st.GetGame(ctx, game.ID)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if g.CurrentTurn < 1 {
		t.Errorf("expected current_turn to have advanced, got %d", g.CurrentTurn)
	}
}

func TestRunExitsImmediatelyWhenTaskAlreadyClaimed(t *testing.T) {
	engine, st, bus := newHarness(t)
	ctx := context.Background()

	game, _ := engine.CreateGame(ctx)
	engine.Join(ctx, game.ID, "Alice", "s-alice")
	engine.Join(ctx, game.ID, "Bob", "s-bob")
	engine.Start(ctx, game.ID, "s-alice")

	ok, err := st.ClaimTask(ctx, game.ID, "someone-else")
	if err != nil || !ok {
		t.Fatalf("pre-claim failed: ok=%v err=%v", ok, err)
	}

	err = Run(ctx, game.ID, engine, st, bus, testLogger())
	if err != nil {
		t.Fatalf("expected Run to return nil when it loses the claim race, got %v", err)
	}
}

func intp(i int) *int { return &i }
