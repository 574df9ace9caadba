package api

import (
	"encoding/json"
	"net/http"

	"github.com/Wundero/shiritori/internal/eventbus"
	"github.com/Wundero/shiritori/internal/gateway"
	"github.com/Wundero/shiritori/internal/rules"
)

func (a *API) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	game, err := a.engine.CreateGame(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, game)
}

func (a *API) handleGetGame(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	game, err := a.store.GetGame(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, game)
}

type joinRequest struct {
	Name string `json:"name"`
}

func (a *API) handleJoin(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, r, &rules.Error{Kind: rules.Invalid, Message: "malformed request body"})
		return
	}

	sessionKey := ensureSession(w, r)
	if !a.allow(sessionKey, "join") {
		a.writeRateLimited(w, r, "join")
		return
	}

	player, err := a.engine.Join(r.Context(), gameID, req.Name, sessionKey)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	a.bus.Publish(eventbus.Event{
		Kind:   eventbus.KindPlayerJoined,
		GameID: gameID,
		Payload: struct {
			PlayerID string `json:"playerId"`
			Name     string `json:"name"`
		}{player.ID, player.Name},
	})
	a.publishGameUpdated(gameID)
	writeJSON(w, http.StatusCreated, struct {
		ID string `json:"id"`
	}{player.ID})
}

type startRequest struct {
	Settings *settingsOverrideRequest `json:"settings"`
}

type settingsOverrideRequest struct {
	Locale     *string `json:"locale"`
	WordLength *int    `json:"wordLength"`
	TurnTime   *int    `json:"turnTime"`
	MaxTurns   *int    `json:"maxTurns"`
}

func (o *settingsOverrideRequest) toRules() rules.SettingsOverride {
	if o == nil {
		return rules.SettingsOverride{}
	}
	return rules.SettingsOverride{
		Locale:     o.Locale,
		WordLength: o.WordLength,
		TurnTime:   o.TurnTime,
		MaxTurns:   o.MaxTurns,
	}
}

func (a *API) handleStart(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	sessionKey := sessionFromRequest(r)

	var req startRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.writeError(w, r, &rules.Error{Kind: rules.Invalid, Message: "malformed request body"})
			return
		}
	}
	if req.Settings != nil {
		if !a.allow(sessionKey, "prepare_start") {
			a.writeRateLimited(w, r, "prepare_start")
			return
		}
		if err := a.engine.PrepareStart(r.Context(), gameID, sessionKey, req.Settings.toRules()); err != nil {
			a.writeError(w, r, err)
			return
		}
	}

	if !a.allow(sessionKey, "start") {
		a.writeRateLimited(w, r, "start")
		return
	}
	if err := a.engine.Start(r.Context(), gameID, sessionKey); err != nil {
		a.writeError(w, r, err)
		return
	}

	a.supervisor.Spawn(r.Context(), gameID)
	a.publishGameUpdated(gameID)
	writeJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleRestart(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	sessionKey := sessionFromRequest(r)

	if !a.allow(sessionKey, "restart") {
		a.writeRateLimited(w, r, "restart")
		return
	}

	if err := a.engine.Restart(r.Context(), gameID, sessionKey); err != nil {
		a.writeError(w, r, err)
		return
	}

	a.publishGameUpdated(gameID)
	writeJSON(w, http.StatusNoContent, nil)
}

type turnRequest struct {
	Word     string  `json:"word"`
	Duration float64 `json:"duration"`
}

func (a *API) handleTurn(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	sessionKey := sessionFromRequest(r)

	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, r, &rules.Error{Kind: rules.Invalid, Message: "malformed request body"})
		return
	}

	if !a.allow(sessionKey, "submit_turn") {
		a.writeRateLimited(w, r, "submit_turn")
		return
	}

	if _, _, err := a.engine.SubmitTurn(r.Context(), gameID, sessionKey, &req.Word, req.Duration); err != nil {
		a.writeError(w, r, err)
		return
	}

	a.publishGameUpdated(gameID)
	writeJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleLeave(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	sessionKey := sessionFromRequest(r)

	if !a.allow(sessionKey, "leave") {
		a.writeRateLimited(w, r, "leave")
		return
	}

	if err := a.engine.Leave(r.Context(), gameID, sessionKey); err != nil {
		a.writeError(w, r, err)
		return
	}

	a.publishGameUpdated(gameID)
	writeJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	sessionKey := sessionFromRequest(r)
	if sessionKey == "" {
		http.Error(w, `{"detail":"missing session"}`, http.StatusUnauthorized)
		return
	}

	transport, err := gateway.Upgrade(w, r)
	if err != nil {
		a.log.Error("websocket upgrade failed", "error", err)
		return
	}

	if err := a.gateway.Handle(r.Context(), transport, gameID, sessionKey); err != nil {
		a.log.Debug("gateway session ended", "game_id", gameID, "error", err)
	}
}
