package rules

import (
	"context"
	"math/rand/v2"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Wundero/shiritori/internal/dictionary"
	"github.com/Wundero/shiritori/internal/ids"
	"github.com/Wundero/shiritori/internal/scorer"
	"github.com/Wundero/shiritori/internal/store"
)

// settings validation ranges, per the data model.
const (
	minWordLength = 3
	maxWordLength = 5
	minTurnTime   = 30
	maxTurnTime   = 120
	minMaxTurns   = 5
	maxMaxTurns   = 20
)

// Engine is the rules authority. It holds no per-game state of its own —
// every operation reads and writes through store inside a single
// transaction, so an Engine is safe to share across every game a process
// is hosting.
type Engine struct {
	store *store.Store
	dict  *dictionary.Dictionary
}

// New returns an Engine backed by s for persistence and d for word
// validation.
func New(s *store.Store, d *dictionary.Dictionary) *Engine {
	return &Engine{store: s, dict: d}
}

// SettingsOverride carries optional, validated overrides for prepare_start.
// A nil field leaves the corresponding setting unchanged.
type SettingsOverride struct {
	Locale     *string
	WordLength *int
	TurnTime   *int
	MaxTurns   *int
}

func eligible(players []store.Player) []store.Player {
	out := make([]store.Player, 0, len(players))
	for _, p := range players {
		if p.Type.IsEligibleCurrent() {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func nonSpectatorCount(players []store.Player) int {
	n := 0
	for _, p := range players {
		if p.Type != store.PlayerSpectator {
			n++
		}
	}
	return n
}

// CreateGame creates a new Game in WAITING with default settings and
// returns it.
func (e *Engine) CreateGame(ctx context.Context) (store.Game, error) {
	gameID := ids.NewGameID()
	settingsID := ids.NewEntityID()
	seed := string(seedLetter())

	game := store.Game{
		ID:           gameID,
		Status:       store.StatusWaiting,
		CurrentTurn:  0,
		LastWord:     &seed,
		TurnTimeLeft: 0,
		SettingsID:   settingsID,
		Version:      0,
	}

	err := e.mutate(ctx, "create_game", func(ctx context.Context, tx *store.Tx) error {
		settings := store.DefaultGameSettings(settingsID)
		if err := store.CreateGameSettings(ctx, tx, settings); err != nil {
			return err
		}
		return store.CreateGame(ctx, tx, game)
	})
	if err != nil {
		return store.Game{}, err
	}
	return game, nil
}

// Join adds a new Player to game_id. The first non-spectator player to
// join becomes HOST; every subsequent one is HUMAN.
func (e *Engine) Join(ctx context.Context, gameID, name, sessionKey string) (store.Player, error) {
	var player store.Player

	err := e.mutate(ctx, "join", func(ctx context.Context, tx *store.Tx) error {
		game, err := store.GetGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if game.Status != store.StatusWaiting {
			return invalidf("game %s is not accepting joins", gameID)
		}

		players, err := store.ListPlayers(ctx, tx, gameID)
		if err != nil {
			return err
		}

		playerType := store.PlayerHuman
		if nonSpectatorCount(players) == 0 {
			playerType = store.PlayerHost
		}

		player = store.Player{
			ID:          ids.NewEntityID(),
			GameID:      &gameID,
			Name:        name,
			Type:        playerType,
			SessionKey:  &sessionKey,
			IsConnected: false,
		}
		return store.CreatePlayer(ctx, tx, player)
	})
	if err != nil {
		return store.Player{}, err
	}
	return player, nil
}

// Leave removes the player identified by (game_id, session_key) from the
// game, reassigning HOST and recomputing current_player as needed.
func (e *Engine) Leave(ctx context.Context, gameID, sessionKey string) error {
	return e.mutate(ctx, "leave", func(ctx context.Context, tx *store.Tx) error {
		game, err := store.GetGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		departing, err := store.GetPlayerBySession(ctx, tx, gameID, sessionKey)
		if err != nil {
			return err
		}

		if err := store.RemovePlayerFromGame(ctx, tx, departing.ID); err != nil {
			return err
		}

		remaining, err := store.ListPlayers(ctx, tx, gameID)
		if err != nil {
			return err
		}
		elig := eligible(remaining)

		if departing.Type == store.PlayerHost {
			if len(elig) == 0 {
				return e.finishGame(ctx, tx, &game, nil)
			}
			if err := store.SetPlayerType(ctx, tx, elig[0].ID, store.PlayerHost); err != nil {
				return err
			}
		}

		if game.Status == store.StatusPlaying && nonSpectatorCount(remaining) < 2 {
			var winner *string
			if len(elig) == 1 {
				winner = &elig[0].ID
			}
			return e.finishGame(ctx, tx, &game, winner)
		}

		if game.CurrentPlayerID != nil && *game.CurrentPlayerID == departing.ID {
			if len(elig) > 0 {
				next := elig[game.CurrentTurn%len(elig)].ID
				game.CurrentPlayerID = &next
			} else {
				game.CurrentPlayerID = nil
			}
			return store.UpdateGame(ctx, tx, game)
		}

		return nil
	})
}

// finishGame transitions game to FINISHED with the given winner (nil if
// none), and persists it.
func (e *Engine) finishGame(ctx context.Context, tx *store.Tx, game *store.Game, winnerID *string) error {
	game.Status = store.StatusFinished
	game.WinnerID = winnerID
	game.CurrentPlayerID = nil
	return store.UpdateGame(ctx, tx, *game)
}

// PrepareStart applies validated settings overrides ahead of Start. It
// never mutates the game's status.
func (e *Engine) PrepareStart(ctx context.Context, gameID, sessionKey string, overrides SettingsOverride) error {
	return e.mutate(ctx, "prepare_start", func(ctx context.Context, tx *store.Tx) error {
		game, err := store.GetGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if game.Status != store.StatusWaiting {
			return invalidf("game %s has already started", gameID)
		}

		players, err := store.ListPlayers(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if err := requireHostSession(players, sessionKey); err != nil {
			return err
		}
		if nonSpectatorCount(players) < 2 {
			return invalidf("at least 2 players are required to prepare a game")
		}

		settings, err := store.GetGameSettings(ctx, tx, game.SettingsID)
		if err != nil {
			return err
		}
		if err := applyOverrides(&settings, overrides); err != nil {
			return err
		}
		return store.UpdateGameSettings(ctx, tx, settings)
	})
}

func applyOverrides(settings *store.GameSettings, o SettingsOverride) error {
	if o.Locale != nil {
		settings.Locale = *o.Locale
	}
	if o.WordLength != nil {
		if *o.WordLength < minWordLength || *o.WordLength > maxWordLength {
			return invalidf("word_length must be in [%d,%d]", minWordLength, maxWordLength)
		}
		settings.WordLength = *o.WordLength
	}
	if o.TurnTime != nil {
		if *o.TurnTime < minTurnTime || *o.TurnTime > maxTurnTime {
			return invalidf("turn_time must be in [%d,%d]", minTurnTime, maxTurnTime)
		}
		settings.TurnTime = *o.TurnTime
	}
	if o.MaxTurns != nil {
		if *o.MaxTurns < minMaxTurns || *o.MaxTurns > maxMaxTurns {
			return invalidf("max_turns must be in [%d,%d]", minMaxTurns, maxMaxTurns)
		}
		settings.MaxTurns = *o.MaxTurns
	}
	return nil
}

func requireHostSession(players []store.Player, sessionKey string) error {
	for _, p := range players {
		if p.Type == store.PlayerHost {
			if p.SessionKey == nil || *p.SessionKey != sessionKey {
				return unauthorizedf("caller is not the host")
			}
			return nil
		}
	}
	return unauthorizedf("game has no host")
}

// Start transitions a WAITING game to PLAYING. If sessionKey is non-empty
// the caller must be HOST.
func (e *Engine) Start(ctx context.Context, gameID, sessionKey string) error {
	return e.mutate(ctx, "start", func(ctx context.Context, tx *store.Tx) error {
		game, err := store.GetGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if game.Status != store.StatusWaiting {
			return invalidf("game %s has already started", gameID)
		}

		players, err := store.ListPlayers(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if nonSpectatorCount(players) < 2 {
			return invalidf("at least 2 players are required to start")
		}
		if sessionKey != "" {
			if err := requireHostSession(players, sessionKey); err != nil {
				return err
			}
		}

		settings, err := store.GetGameSettings(ctx, tx, game.SettingsID)
		if err != nil {
			return err
		}

		var host store.Player
		for _, p := range players {
			if p.Type == store.PlayerHost {
				host = p
				break
			}
		}
		if host.ID == "" {
			return invalidf("game %s has no host", gameID)
		}

		game.Status = store.StatusPlaying
		game.CurrentTurn = 0
		game.CurrentPlayerID = &host.ID
		game.TurnTimeLeft = settings.TurnTime
		return store.UpdateGame(ctx, tx, game)
	})
}

// Restart resets a game back to WAITING, clearing turn progress and move
// history's effect on state (the GameWord rows themselves are retained for
// history/audit, per the no-delete retention policy), so the same lobby
// can play again. Callers must be HOST, and a game still PLAYING cannot be
// restarted.
func (e *Engine) Restart(ctx context.Context, gameID, sessionKey string) error {
	return e.mutate(ctx, "restart", func(ctx context.Context, tx *store.Tx) error {
		game, err := store.GetGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if game.Status == store.StatusPlaying {
			return invalidf("game %s is in progress", gameID)
		}
		players, err := store.ListPlayers(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if err := requireHostSession(players, sessionKey); err != nil {
			return err
		}

		seed := string(seedLetter())
		game.Status = store.StatusWaiting
		game.CurrentTurn = 0
		game.CurrentPlayerID = nil
		game.WinnerID = nil
		game.LastWord = &seed
		game.TurnTimeLeft = 0
		return store.UpdateGame(ctx, tx, game)
	})
}

// SubmitTurn validates and records a word submission from the current
// player, advancing the turn or finishing the game. word == nil is only
// valid when called via ForceTimeout.
func (e *Engine) SubmitTurn(ctx context.Context, gameID, sessionKey string, word *string, duration float64) (store.Game, store.GameWord, error) {
	var game store.Game
	var gw store.GameWord

	err := e.mutate(ctx, "submit_turn", func(ctx context.Context, tx *store.Tx) error {
		g, err := store.GetGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if g.Status != store.StatusPlaying {
			return invalidf("game %s is not in progress", gameID)
		}
		if g.CurrentPlayerID == nil {
			return invalidf("game %s has no current player", gameID)
		}

		current, err := store.GetPlayer(ctx, tx, *g.CurrentPlayerID)
		if err != nil {
			return err
		}
		if current.SessionKey == nil || *current.SessionKey != sessionKey {
			return unauthorizedf("caller is not the current player")
		}
		if g.TurnTimeLeft <= 0 {
			return invalidf("time has expired for this turn")
		}

		settings, err := store.GetGameSettings(ctx, tx, g.SettingsID)
		if err != nil {
			return err
		}

		g2, gw2, err := e.applyTurn(ctx, tx, g, settings, current, word, duration)
		if err != nil {
			return err
		}
		game, gw = g2, gw2
		return nil
	})
	if err != nil {
		return store.Game{}, store.GameWord{}, err
	}
	return game, gw, nil
}

// ForceTimeout charges the current player a timeout, bypassing the
// turn_time_left > 0 check. Only the Turn Driver holding task_id may call
// this.
func (e *Engine) ForceTimeout(ctx context.Context, gameID, taskID string) (store.Game, store.GameWord, error) {
	var game store.Game
	var gw store.GameWord

	err := e.mutate(ctx, "force_timeout", func(ctx context.Context, tx *store.Tx) error {
		g, err := store.GetGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if g.TaskID == nil || *g.TaskID != taskID {
			return unauthorizedf("caller does not hold task ownership of game %s", gameID)
		}
		if g.Status != store.StatusPlaying {
			return invalidf("game %s is not in progress", gameID)
		}
		if g.CurrentPlayerID == nil {
			return invalidf("game %s has no current player", gameID)
		}

		current, err := store.GetPlayer(ctx, tx, *g.CurrentPlayerID)
		if err != nil {
			return err
		}
		settings, err := store.GetGameSettings(ctx, tx, g.SettingsID)
		if err != nil {
			return err
		}

		g2, gw2, err := e.applyTurn(ctx, tx, g, settings, current, nil, float64(settings.TurnTime))
		if err != nil {
			return err
		}
		game, gw = g2, gw2
		return nil
	})
	if err != nil {
		return store.Game{}, store.GameWord{}, err
	}
	return game, gw, nil
}

// applyTurn is the shared core of SubmitTurn and ForceTimeout: validate
// word (if any), score it, record the GameWord, and advance the game.
func (e *Engine) applyTurn(ctx context.Context, tx *store.Tx, game store.Game, settings store.GameSettings,
	current store.Player, word *string, duration float64) (store.Game, store.GameWord, error) {

	var score float64
	var normalized *string

	if word != nil {
		lower := strings.ToLower(strings.TrimSpace(*word))
		if err := e.validateWord(ctx, tx, game, settings, lower); err != nil {
			return store.Game{}, store.GameWord{}, err
		}
		score = scorer.Score(lower, duration)
		normalized = &lower
	} else {
		score = scorer.TimeoutScore(duration)
	}

	gw := store.GameWord{
		ID:       ids.NewEntityID(),
		GameID:   game.ID,
		PlayerID: &current.ID,
		Word:     normalized,
		Score:    score,
		Duration: duration,
	}
	if err := store.CreateGameWord(ctx, tx, gw); err != nil {
		return store.Game{}, store.GameWord{}, err
	}

	if normalized != nil {
		game.LastWord = normalized
		if err := store.RecordWord(ctx, tx, *normalized, settings.Locale); err != nil {
			return store.Game{}, store.GameWord{}, err
		}
	}

	nextTurn := game.CurrentTurn + 1
	if nextTurn > settings.MaxTurns {
		winner, err := topOfLeaderboard(ctx, tx, game.ID)
		if err != nil {
			return store.Game{}, store.GameWord{}, err
		}
		game.Status = store.StatusFinished
		game.WinnerID = winner
		game.CurrentPlayerID = nil
		game.TurnTimeLeft = 0
	} else {
		players, err := store.ListPlayers(ctx, tx, game.ID)
		if err != nil {
			return store.Game{}, store.GameWord{}, err
		}
		elig := eligible(players)
		if len(elig) == 0 {
			game.Status = store.StatusFinished
			game.CurrentPlayerID = nil
		} else {
			next := elig[nextTurn%len(elig)].ID
			game.CurrentPlayerID = &next
		}
		game.CurrentTurn = nextTurn
		game.TurnTimeLeft = settings.TurnTime
	}

	if err := store.UpdateGame(ctx, tx, game); err != nil {
		return store.Game{}, store.GameWord{}, err
	}
	return game, gw, nil
}

func topOfLeaderboard(ctx context.Context, tx *store.Tx, gameID string) (*string, error) {
	board, err := store.Leaderboard(ctx, tx, gameID)
	if err != nil {
		return nil, err
	}
	if len(board) == 0 {
		return nil, nil
	}
	id := board[0].Player.ID
	return &id, nil
}

// validateWord enforces invariant 5: chains from the previous word's last
// letter, no repeats, minimum length, and dictionary membership.
func (e *Engine) validateWord(ctx context.Context, tx *store.Tx, game store.Game, settings store.GameSettings, word string) error {
	if word == "" {
		return invalidf("word must not be empty")
	}
	if utf8.RuneCountInString(word) < settings.WordLength {
		return invalidf("word %q is shorter than the required length %d", word, settings.WordLength)
	}
	if game.LastWord != nil && *game.LastWord != "" {
		want := lastRune(*game.LastWord)
		got := firstRune(word)
		if want != got {
			return invalidf("word %q must start with %q", word, string(want))
		}
	}
	used, err := store.WordUsedInGame(ctx, tx, game.ID, word)
	if err != nil {
		return err
	}
	if used {
		return invalidf("word %q has already been played in this game", word)
	}
	if !e.dict.Contains(word, settings.Locale) {
		return invalidf("word %q is not in the %s dictionary", word, settings.Locale)
	}
	return nil
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}

// GetWinner returns the winning player of a FINISHED game.
func (e *Engine) GetWinner(ctx context.Context, gameID string) (store.Player, error) {
	game, err := e.store.GetGame(ctx, gameID)
	if err != nil {
		return store.Player{}, classifyStoreErr(err, "get_winner")
	}
	if game.Status != store.StatusFinished {
		return store.Player{}, invalidf("game %s has not finished", gameID)
	}
	if game.WinnerID == nil {
		return store.Player{}, notFoundf("game %s has no winner", gameID)
	}
	p, err := e.store.GetPlayer(ctx, *game.WinnerID)
	if err != nil {
		return store.Player{}, classifyStoreErr(err, "get_winner")
	}
	return p, nil
}

// seedLetter picks the random single-letter seed a new game's last_word
// starts with, per the data model (WAITING games carry a seed letter
// rather than a real preceding word).
func seedLetter() rune {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	return rune(letters[rand.IntN(len(letters))])
}
