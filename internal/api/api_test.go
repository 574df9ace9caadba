package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Wundero/shiritori/internal/dictionary"
	"github.com/Wundero/shiritori/internal/eventbus"
	"github.com/Wundero/shiritori/internal/gateway"
	"github.com/Wundero/shiritori/internal/rules"
	"github.com/Wundero/shiritori/internal/store"
	"github.com/Wundero/shiritori/internal/turndriver"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestAPI(t *testing.T) (*API, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "api.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	d := dictionary.New()
	d.Load(context.Background(), "en", strings.NewReader("apple\nelephant\ntiger\nrat\n"))
	engine := rules.New(st, d)
	bus := eventbus.New()
	gw := gateway.New(st, engine, bus, gateway.DebugGraceWindow, testLogger())
	sup := turndriver.NewSupervisor(engine, st, bus, testLogger())
	t.Cleanup(sup.Shutdown)
	t.Cleanup(gw.Shutdown)

	return New(engine, st, bus, gw, sup, testLogger()), st
}

func doRequest(t *testing.T, mux http.Handler, method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	return nil
}

func TestCreateGameReturns201(t *testing.T) {
	api, _ := newTestAPI(t)
	mux := api.Mux()

	rec := doRequest(t, mux, http.MethodPost, "/games", nil, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var game store.Game
	if err := json.Unmarshal(rec.Body.Bytes(), &game); err != nil {
		t.Fatalf("decode game: %v", err)
	}
	if game.Status != store.StatusWaiting {
		t.Errorf("expected WAITING, got %s", game.Status)
	}
}

func TestJoinIssuesSessionCookieAndAddsPlayer(t *testing.T) {
	api, _ := newTestAPI(t)
	mux := api.Mux()

	createRec := doRequest(t, mux, http.MethodPost, "/games", nil, nil)
	var game store.Game
	json.Unmarshal(createRec.Body.Bytes(), &game)

	joinRec := doRequest(t, mux, http.MethodPost, "/games/"+game.ID+"/join", joinRequest{Name: "Alice"}, nil)
	if joinRec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", joinRec.Code, joinRec.Body.String())
	}
	cookie := sessionCookie(joinRec)
	if cookie == nil {
		t.Fatal("expected a session cookie to be set")
	}

	getRec := doRequest(t, mux, http.MethodGet, "/games/"+game.ID, nil, nil)
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", getRec.Code)
	}
}

func TestJoinDuplicateNameReturns409(t *testing.T) {
	api, _ := newTestAPI(t)
	mux := api.Mux()

	createRec := doRequest(t, mux, http.MethodPost, "/games", nil, nil)
	var game store.Game
	json.Unmarshal(createRec.Body.Bytes(), &game)

	doRequest(t, mux, http.MethodPost, "/games/"+game.ID+"/join", joinRequest{Name: "Alice"}, nil)
	dupeRec := doRequest(t, mux, http.MethodPost, "/games/"+game.ID+"/join", joinRequest{Name: "Alice"}, nil)

	if dupeRec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", dupeRec.Code, dupeRec.Body.String())
	}
	var body errorBody
	json.Unmarshal(dupeRec.Body.Bytes(), &body)
	if body.Detail == "" {
		t.Error("expected a non-empty detail message")
	}
}

func TestStartRequiresTwoPlayersReturns400(t *testing.T) {
	api, _ := newTestAPI(t)
	mux := api.Mux()

	createRec := doRequest(t, mux, http.MethodPost, "/games", nil, nil)
	var game store.Game
	json.Unmarshal(createRec.Body.Bytes(), &game)

	joinRec := doRequest(t, mux, http.MethodPost, "/games/"+game.ID+"/join", joinRequest{Name: "Alice"}, nil)
	cookie := sessionCookie(joinRec)

	startRec := doRequest(t, mux, http.MethodPost, "/games/"+game.ID+"/start", nil, []*http.Cookie{cookie})
	if startRec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", startRec.Code, startRec.Body.String())
	}
}

func TestFullGameLifecycleOverHTTP(t *testing.T) {
	api, st := newTestAPI(t)
	mux := api.Mux()

	createRec := doRequest(t, mux, http.MethodPost, "/games", nil, nil)
	var game store.Game
	json.Unmarshal(createRec.Body.Bytes(), &game)

	aliceRec := doRequest(t, mux, http.MethodPost, "/games/"+game.ID+"/join", joinRequest{Name: "Alice"}, nil)
	aliceCookie := sessionCookie(aliceRec)
	bobRec := doRequest(t, mux, http.MethodPost, "/games/"+game.ID+"/join", joinRequest{Name: "Bob"}, nil)
	bobCookie := sessionCookie(bobRec)

	// Replace the random seed letter so the first word below chains.
	err := st.Mutate(context.Background(), func(ctx context.Context, tx *store.Tx) error {
		g, err := store.GetGame(ctx, tx, game.ID)
		if err != nil {
			return err
		}
		seed := "a"
		g.LastWord = &seed
		return store.UpdateGame(ctx, tx, g)
	})
	if err != nil {
		t.Fatalf("seed last_word: %v", err)
	}

	startRec := doRequest(t, mux, http.MethodPost, "/games/"+game.ID+"/start", nil, []*http.Cookie{aliceCookie})
	if startRec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", startRec.Code, startRec.Body.String())
	}

	g, err := st.GetGame(context.Background(), game.ID)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if g.Status != store.StatusPlaying {
		t.Fatalf("expected PLAYING, got %s", g.Status)
	}

	var turnCookie *http.Cookie
	if g.CurrentPlayerID != nil {
		players, _ := st.ListPlayers(context.Background(), game.ID)
		for _, p := range players {
			if p.ID == *g.CurrentPlayerID && p.Name == "Alice" {
				turnCookie = aliceCookie
			} else if p.ID == *g.CurrentPlayerID && p.Name == "Bob" {
				turnCookie = bobCookie
			}
		}
	}
	if turnCookie == nil {
		t.Fatal("could not determine current player's cookie")
	}

	turnRec := doRequest(t, mux, http.MethodPost, "/games/"+game.ID+"/turn", turnRequest{Word: "apple", Duration: 2}, []*http.Cookie{turnCookie})
	if turnRec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", turnRec.Code, turnRec.Body.String())
	}

	leaveRec := doRequest(t, mux, http.MethodPost, "/games/"+game.ID+"/leave", nil, []*http.Cookie{aliceCookie})
	if leaveRec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", leaveRec.Code, leaveRec.Body.String())
	}
}

func TestGetUnknownGameReturns404(t *testing.T) {
	api, _ := newTestAPI(t)
	mux := api.Mux()

	rec := doRequest(t, mux, http.MethodGet, "/games/NOPE1", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestTurnByNonCurrentPlayerReturns401(t *testing.T) {
	api, _ := newTestAPI(t)
	mux := api.Mux()

	createRec := doRequest(t, mux, http.MethodPost, "/games", nil, nil)
	var game store.Game
	json.Unmarshal(createRec.Body.Bytes(), &game)

	aliceRec := doRequest(t, mux, http.MethodPost, "/games/"+game.ID+"/join", joinRequest{Name: "Alice"}, nil)
	aliceCookie := sessionCookie(aliceRec)
	doRequest(t, mux, http.MethodPost, "/games/"+game.ID+"/join", joinRequest{Name: "Bob"}, nil)

	doRequest(t, mux, http.MethodPost, "/games/"+game.ID+"/start", nil, []*http.Cookie{aliceCookie})

	// A stale session that never joined should never be accepted as a
	// turn-taker regardless of whose turn it actually is.
	rec := doRequest(t, mux, http.MethodPost, "/games/"+game.ID+"/turn", turnRequest{Word: "apple", Duration: 1}, []*http.Cookie{
		{Name: sessionCookieName, Value: "unknown-session"},
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestWebsocketRouteRejectsMissingSession(t *testing.T) {
	api, _ := newTestAPI(t)
	mux := api.Mux()

	createRec := doRequest(t, mux, http.MethodPost, "/games", nil, nil)
	var game store.Game
	json.Unmarshal(createRec.Body.Bytes(), &game)

	rec := doRequest(t, mux, http.MethodGet, "/games/"+game.ID+"/ws", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHashSessionIsStableAndShort(t *testing.T) {
	a := hashSession("abc")
	b := hashSession("abc")
	if a != b {
		t.Error("expected hashSession to be deterministic")
	}
	if a == "abc" {
		t.Error("expected hashSession to not return the raw session key")
	}
	if len(a) != 16 {
		t.Errorf("expected a 16-hex-char fingerprint, got %d chars", len(a))
	}
	if hashSession("") != "" {
		t.Error("expected empty session key to hash to empty string")
	}
}
