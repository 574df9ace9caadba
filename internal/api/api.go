// Package api is the Command API: thin HTTP entry points that
// authenticate by session cookie, delegate to the Rules Engine, and
// publish game_updated over the Event Bus on success.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Wundero/shiritori/internal/eventbus"
	"github.com/Wundero/shiritori/internal/gateway"
	"github.com/Wundero/shiritori/internal/ratelimit"
	"github.com/Wundero/shiritori/internal/rules"
	"github.com/Wundero/shiritori/internal/store"
	"github.com/Wundero/shiritori/internal/turndriver"
)

// sessionCookieName is the opaque, server-issued token the API persists
// in the Player row and clients echo back on every subsequent call.
const sessionCookieName = "shiritori_session"

// API holds the shared dependencies every handler needs.
type API struct {
	engine     *rules.Engine
	store      *store.Store
	bus        *eventbus.Bus
	gateway    *gateway.Gateway
	supervisor *turndriver.Supervisor
	log        *slog.Logger

	limitersMu sync.Mutex
	limiters   map[string]*ratelimit.Limiter
}

// New returns an API wired to its collaborators.
func New(engine *rules.Engine, st *store.Store, bus *eventbus.Bus, gw *gateway.Gateway, sup *turndriver.Supervisor, log *slog.Logger) *API {
	return &API{
		engine:     engine,
		store:      st,
		bus:        bus,
		gateway:    gw,
		supervisor: sup,
		log:        log,
		limiters:   make(map[string]*ratelimit.Limiter),
	}
}

// allow checks sessionKey's rate limit for verb, creating its Limiter on
// first use (one per session, matching the teacher's one-per-connection
// rateLimiter in srv/ws.go). If the session has exceeded
// violationDisconnectThreshold, its live bidirectional connection is
// dropped the same way the teacher's readLoop disconnects an abusive
// connection.
func (a *API) allow(sessionKey, verb string) bool {
	if sessionKey == "" {
		return true
	}

	a.limitersMu.Lock()
	l, ok := a.limiters[sessionKey]
	if !ok {
		l = ratelimit.New()
		a.limiters[sessionKey] = l
	}
	a.limitersMu.Unlock()

	allowed, shouldDisconnect := l.Allow(verb)
	if shouldDisconnect {
		a.log.Warn("rate limit exceeded, disconnecting", "session", hashSession(sessionKey), "verb", verb)
		a.gateway.Drop(sessionKey)
	}
	return allowed
}

func (a *API) writeRateLimited(w http.ResponseWriter, r *http.Request, verb string) {
	a.log.Debug("command rejected", "path", r.URL.Path, "status", http.StatusTooManyRequests, "verb", verb)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(errorBody{Detail: "rate limit exceeded, slow down"})
}

// Mux builds the HTTP handler tree for the Command API and the
// bidirectional channel's upgrade endpoint.
func (a *API) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /games", a.handleCreateGame)
	mux.HandleFunc("GET /games/{id}", a.handleGetGame)
	mux.HandleFunc("POST /games/{id}/join", a.handleJoin)
	mux.HandleFunc("POST /games/{id}/start", a.handleStart)
	mux.HandleFunc("POST /games/{id}/restart", a.handleRestart)
	mux.HandleFunc("POST /games/{id}/turn", a.handleTurn)
	mux.HandleFunc("POST /games/{id}/leave", a.handleLeave)
	mux.HandleFunc("GET /games/{id}/ws", a.handleWebsocket)
	return mux
}

type errorBody struct {
	Detail string `json:"detail"`
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	detail := "internal error"

	var rerr *rules.Error
	if errors.As(err, &rerr) {
		detail = rerr.Message
		switch rerr.Kind {
		case rules.Invalid:
			status = http.StatusBadRequest
		case rules.Conflict:
			status = http.StatusConflict
		case rules.Unauthorized:
			status = http.StatusUnauthorized
		case rules.NotFound:
			status = http.StatusNotFound
		case rules.Retriable:
			status = http.StatusServiceUnavailable
		case rules.Fatal:
			status = http.StatusInternalServerError
		}
	}
	if errors.Is(err, store.ErrNotFound) {
		status = http.StatusNotFound
		detail = "not found"
	}

	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		a.log.Error("command failed", "path", r.URL.Path, "session", hashSession(sessionFromRequest(r)), "error", err)
	} else {
		a.log.Debug("command rejected", "path", r.URL.Path, "status", status, "detail", detail)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// sessionFromRequest returns the caller's session key, or "" if the
// request carries no session cookie; ensureSession is the variant that
// issues a fresh cookie. The session key only becomes meaningful once it's
// attached to a Player by join.
func sessionFromRequest(r *http.Request) string {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return ""
	}
	return c.Value
}

func ensureSession(w http.ResponseWriter, r *http.Request) string {
	key := sessionFromRequest(r)
	if key != "" {
		return key
	}
	key = uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    key,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(30 * 24 * time.Hour),
	})
	return key
}

func (a *API) publishGameUpdated(gameID string) {
	game, err := a.store.GetGame(context.Background(), gameID)
	if err != nil {
		a.log.Error("publish game_updated: get game failed", "game_id", gameID, "error", err)
		return
	}
	players, err := a.store.ListPlayers(context.Background(), gameID)
	if err != nil {
		a.log.Error("publish game_updated: list players failed", "game_id", gameID, "error", err)
		return
	}
	board, err := a.store.Leaderboard(context.Background(), gameID)
	if err != nil {
		a.log.Error("publish game_updated: leaderboard failed", "game_id", gameID, "error", err)
		return
	}

	a.bus.Publish(eventbus.Event{
		Kind:   eventbus.KindGameUpdated,
		GameID: gameID,
		Payload: struct {
			Game        store.Game              `json:"game"`
			Players     []store.Player           `json:"players"`
			Leaderboard []store.LeaderboardEntry `json:"leaderboard"`
		}{game, players, board},
	})

	if game.Status == store.StatusFinished {
		a.bus.Publish(eventbus.Event{
			Kind:    eventbus.KindGameFinished,
			GameID:  gameID,
			Payload: struct {
				WinnerID *string `json:"winnerId"`
			}{game.WinnerID},
		})
		a.bus.Retire(gameID)
		a.supervisor.Stop(gameID)
	}
}
