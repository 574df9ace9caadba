// Package turndriver runs the per-game authoritative turn timer: one
// goroutine per PLAYING game, ticking once a second, forcing a timeout
// when a turn's clock runs out, and exiting when the game finishes.
package turndriver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Wundero/shiritori/internal/eventbus"
	"github.com/Wundero/shiritori/internal/rules"
	"github.com/Wundero/shiritori/internal/store"
)

// tickInterval is the driver's authoritative clock: clients may render
// their own local countdown, but only a server-side decrement here
// governs when force_timeout fires.
const tickInterval = time.Second

// crashRetryDelay is how long the supervisor waits before reclaiming a
// game whose driver exited on a Fatal error, giving transient storage
// trouble a moment to clear.
const crashRetryDelay = 2 * time.Second

// Driver owns the tick loop for a single game.
type Driver struct {
	gameID string
	taskID string
	engine *rules.Engine
	store  *store.Store
	bus    *eventbus.Bus
	log    *slog.Logger
}

// Run claims gameID's task ownership and, if successful, ticks until the
// game finishes or a fatal storage error occurs. It returns nil if another
// driver already owns the game (not an error — exactly one driver must
// run per game, and losing the claim race is the expected way the loser
// finds out). Run blocks until the game is no longer this driver's to run
// or ctx is canceled.
func Run(ctx context.Context, gameID string, engine *rules.Engine, st *store.Store, bus *eventbus.Bus, log *slog.Logger) error {
	taskID := uuid.NewString()
	ok, err := st.ClaimTask(ctx, gameID, taskID)
	if err != nil {
		return err
	}
	if !ok {
		log.Debug("turn driver: game already owned, exiting", "game_id", gameID)
		return nil
	}

	d := &Driver{gameID: gameID, taskID: taskID, engine: engine, store: st, bus: bus, log: log}
	return d.loop(ctx)
}

func (d *Driver) loop(ctx context.Context) error {
	defer func() {
		if err := d.store.ReleaseTask(context.Background(), d.gameID, d.taskID); err != nil {
			d.log.Error("turn driver: release task failed", "game_id", d.gameID, "error", err)
		}
	}()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			done, err := d.tick(ctx)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

// tick decrements the game's turn clock by one second, publishing a
// turn_tick event, and forces a timeout if the clock has reached zero. It
// reports whether the game is finished (the caller should stop ticking).
func (d *Driver) tick(ctx context.Context) (bool, error) {
	game, err := d.store.GetGame(ctx, d.gameID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return true, nil
		}
		return false, err
	}
	if game.Status != store.StatusPlaying {
		return true, nil
	}

	left, err := d.store.DecrementTurnTimeLeft(ctx, d.gameID)
	if err != nil {
		return false, err
	}

	d.bus.Publish(eventbus.Event{
		Kind:   eventbus.KindTurnTick,
		GameID: d.gameID,
		Payload: struct {
			TurnTimeLeft int `json:"turnTimeLeft"`
		}{left},
	})

	if left > 0 {
		return false, nil
	}

	g, gw, err := d.engine.ForceTimeout(ctx, d.gameID, d.taskID)
	if err != nil {
		if rules.IsKind(err, rules.Invalid) {
			// The game moved out from under us between GetGame and
			// ForceTimeout (e.g. everyone left) — treat as finished.
			return true, nil
		}
		return false, err
	}

	d.bus.Publish(eventbus.Event{Kind: eventbus.KindGameUpdated, GameID: d.gameID, Payload: gameUpdatedPayload(g, gw)})

	if g.Status == store.StatusFinished {
		d.bus.Publish(eventbus.Event{Kind: eventbus.KindGameFinished, GameID: d.gameID, Payload: g.WinnerID})
		d.bus.Retire(d.gameID)
		return true, nil
	}
	return false, nil
}

func gameUpdatedPayload(g store.Game, gw store.GameWord) any {
	return struct {
		Game     store.Game     `json:"game"`
		LastWord store.GameWord `json:"lastWord"`
	}{g, gw}
}
