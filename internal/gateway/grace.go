package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Wundero/shiritori/internal/eventbus"
	"github.com/Wundero/shiritori/internal/rules"
	"github.com/Wundero/shiritori/internal/store"
)

// DefaultGraceWindow is the delay before a disconnected player is
// actually removed from its game.
const DefaultGraceWindow = 60 * time.Second

// DebugGraceWindow is the shortened window used when running in debug
// mode, so manual testing doesn't require waiting a full minute.
const DebugGraceWindow = 5 * time.Second

// graceKeeper schedules and cancels the delayed removal of disconnected
// players. A subsequent reconnect with the same session within the
// window sets is_connected back to true and the pending job becomes a
// no-op (guarded by comparing is_connected at fire time, not merely by
// canceling the timer, to close the race between a reconnect arriving
// just as the timer fires).
type graceKeeper struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	window time.Duration
	store  *store.Store
	engine *rules.Engine
	bus    *eventbus.Bus
	log    *slog.Logger
}

func newGraceKeeper(st *store.Store, engine *rules.Engine, bus *eventbus.Bus, window time.Duration, log *slog.Logger) *graceKeeper {
	return &graceKeeper{
		timers: make(map[string]*time.Timer),
		window: window,
		store:  st,
		engine: engine,
		bus:    bus,
		log:    log,
	}
}

// scheduleDisconnect marks playerID disconnected and, after the grace
// window, removes it from gameID iff it is still disconnected.
func (g *graceKeeper) scheduleDisconnect(gameID, playerID string) {
	ctx := context.Background()
	if err := g.store.SetPlayerConnected(ctx, playerID, false); err != nil {
		g.log.Error("gateway: mark disconnected failed", "player_id", playerID, "error", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if existing, ok := g.timers[playerID]; ok {
		existing.Stop()
	}
	g.timers[playerID] = time.AfterFunc(g.window, func() {
		g.expire(gameID, playerID)
	})
}

// cancelReconnect marks playerID connected again and cancels any pending
// removal job for it.
func (g *graceKeeper) cancelReconnect(playerID string) error {
	ctx := context.Background()
	if err := g.store.SetPlayerConnected(ctx, playerID, true); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if existing, ok := g.timers[playerID]; ok {
		existing.Stop()
		delete(g.timers, playerID)
	}
	return nil
}

func (g *graceKeeper) expire(gameID, playerID string) {
	g.mu.Lock()
	delete(g.timers, playerID)
	g.mu.Unlock()

	ctx := context.Background()
	player, err := g.store.GetPlayer(ctx, playerID)
	if err != nil {
		return
	}
	if player.IsConnected {
		// Reconnected between the timer firing and this goroutine
		// acquiring the player's current state — the guard the open
		// question calls for.
		return
	}
	if player.SessionKey == nil {
		return
	}

	// Route through the rules engine's Leave rather than a bare row
	// delete, so host reassignment and under-quorum game-finish still
	// apply when a truly-gone player is reaped.
	if err := g.engine.Leave(ctx, gameID, *player.SessionKey); err != nil {
		g.log.Error("gateway: grace expiry removal failed", "player_id", playerID, "error", err)
		return
	}

	g.bus.Publish(eventbus.Event{
		Kind:   eventbus.KindPlayerLeft,
		GameID: gameID,
		Payload: struct {
			PlayerID string `json:"playerId"`
		}{playerID},
	})
}

// stopAll cancels every pending job, for clean shutdown.
func (g *graceKeeper) stopAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, timer := range g.timers {
		timer.Stop()
		delete(g.timers, id)
	}
}
