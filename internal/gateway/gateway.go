// Package gateway adapts a bidirectional Transport to the core: it
// resolves the connecting player, subscribes to the game's event topic,
// relays published events outward as JSON, and manages the
// disconnect-with-grace lifecycle. Inbound transport messages carry no
// commands (those arrive over the Command API) — the gateway only reads
// them to detect connection health and closure.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Wundero/shiritori/internal/eventbus"
	"github.com/Wundero/shiritori/internal/rules"
	"github.com/Wundero/shiritori/internal/store"
)

// outboundMessage is the envelope every event is marshaled into before
// being sent over the transport, matching the external-interface
// requirement of camelCase-tagged, kind-discriminated JSON.
type outboundMessage struct {
	Kind    eventbus.Kind `json:"kind"`
	Payload any           `json:"payload"`
}

// Gateway is the Session Gateway: one instance serves every connection
// for a process.
type Gateway struct {
	store  *store.Store
	engine *rules.Engine
	bus    *eventbus.Bus
	grace  *graceKeeper
	log    *slog.Logger

	mu   sync.Mutex
	live map[string]Transport
}

// New returns a Gateway. graceWindow is DefaultGraceWindow in production
// deployments and DebugGraceWindow under the debug flag.
func New(st *store.Store, engine *rules.Engine, bus *eventbus.Bus, graceWindow time.Duration, log *slog.Logger) *Gateway {
	return &Gateway{
		store:  st,
		engine: engine,
		bus:    bus,
		grace:  newGraceKeeper(st, engine, bus, graceWindow, log),
		log:    log,
		live:   make(map[string]Transport),
	}
}

// Drop forcibly closes sessionKey's live connection, if any, the same way
// the teacher's readLoop disconnects a connection that tripped its rate
// limiter (srv/ws.go's "rate limit exceeded, disconnecting" path): closing
// the transport makes drainInbound observe an error and unwind through the
// normal disconnect-grace path, rather than requiring a separate forced-
// removal code path.
func (g *Gateway) Drop(sessionKey string) {
	g.mu.Lock()
	transport, ok := g.live[sessionKey]
	g.mu.Unlock()
	if ok {
		transport.Close()
	}
}

// Shutdown cancels every pending disconnect-grace job.
func (g *Gateway) Shutdown() { g.grace.stopAll() }

// Handle serves one connection end to end: resolve the player, mark it
// connected, relay bus events until the transport closes, then schedule
// the disconnect grace job. It blocks until the transport's Recv reports
// an error (peer close, or a local Close such as Drop); canceling ctx
// stops the relay but does not interrupt a Recv already in progress.
func (g *Gateway) Handle(ctx context.Context, transport Transport, gameID, sessionKey string) error {
	defer transport.Close()

	player, err := g.resolvePlayer(ctx, gameID, sessionKey)
	if err != nil {
		return err
	}

	if err := g.grace.cancelReconnect(player.ID); err != nil {
		g.log.Error("gateway: mark connected failed", "player_id", player.ID, "error", err)
	}

	g.mu.Lock()
	g.live[sessionKey] = transport
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		delete(g.live, sessionKey)
		g.mu.Unlock()
	}()

	sub := g.bus.Subscribe(gameID)
	defer sub.Close()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go g.relayLoop(connCtx, transport, sub)

	g.drainInbound(connCtx, transport)
	cancel()

	g.grace.scheduleDisconnect(gameID, player.ID)
	return nil
}

// resolvePlayer looks up the player this connection belongs to. Every
// connection is expected to have joined via the Command API first (the
// bidirectional channel carries no join command of its own), so an
// unresolved (game_id, session_key) pair is always rejected as
// Unauthorized regardless of the game's status.
func (g *Gateway) resolvePlayer(ctx context.Context, gameID, sessionKey string) (store.Player, error) {
	player, err := g.store.GetPlayerBySession(ctx, gameID, sessionKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Player{}, &rules.Error{Kind: rules.Unauthorized, Message: "unknown session for this game"}
		}
		return store.Player{}, err
	}
	return player, nil
}

// relayLoop forwards bus events to the transport as JSON until ctx is
// canceled or a send fails.
func (g *Gateway) relayLoop(ctx context.Context, transport Transport, sub *eventbus.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(outboundMessage{Kind: ev.Kind, Payload: ev.Payload})
			if err != nil {
				g.log.Error("gateway: marshal event failed", "error", err)
				continue
			}
			if err := transport.Send(data); err != nil {
				return
			}
		}
	}
}

// drainInbound reads (and discards) inbound transport messages purely to
// detect when the peer closes the connection.
func (g *Gateway) drainInbound(ctx context.Context, transport Transport) {
	for {
		if ctx.Err() != nil {
			return
		}
		if _, err := transport.Recv(); err != nil {
			return
		}
	}
}
