package store

import (
	"context"
	"fmt"
)

// --- game_settings ------------------------------------------------------

// CreateGameSettings inserts settings. Callers typically pass the result of
// DefaultGameSettings, overridden with any client-supplied values.
func CreateGameSettings(ctx context.Context, q querier, s GameSettings) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO game_settings (id, locale, word_length, turn_time, max_turns)
		VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.Locale, s.WordLength, s.TurnTime, s.MaxTurns)
	return classify(err)
}

// GetGameSettings fetches settings by id.
func GetGameSettings(ctx context.Context, q querier, id string) (GameSettings, error) {
	var s GameSettings
	err := q.QueryRowContext(ctx, `
		SELECT id, locale, word_length, turn_time, max_turns
		FROM game_settings WHERE id = ?`, id).
		Scan(&s.ID, &s.Locale, &s.WordLength, &s.TurnTime, &s.MaxTurns)
	if err != nil {
		return GameSettings{}, errNoRows(err)
	}
	return s, nil
}

// UpdateGameSettings writes a (possibly partially overridden) settings
// row back, used by prepare_start before a game has started.
func UpdateGameSettings(ctx context.Context, q querier, s GameSettings) error {
	_, err := q.ExecContext(ctx, `
		UPDATE game_settings SET locale = ?, word_length = ?, turn_time = ?, max_turns = ?
		WHERE id = ?`,
		s.Locale, s.WordLength, s.TurnTime, s.MaxTurns, s.ID)
	return classify(err)
}

// --- game ----------------------------------------------------------------

// CreateGame inserts a new game in WAITING status with version 0.
func CreateGame(ctx context.Context, q querier, g Game) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO game (id, status, current_turn, current_player_id, winner_id,
			last_word, turn_time_left, settings_id, task_id, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Status, g.CurrentTurn, g.CurrentPlayerID, g.WinnerID,
		g.LastWord, g.TurnTimeLeft, g.SettingsID, g.TaskID, g.Version)
	return classify(err)
}

// GetGame fetches a game by id.
func GetGame(ctx context.Context, q querier, id string) (Game, error) {
	var g Game
	err := q.QueryRowContext(ctx, `
		SELECT id, status, current_turn, current_player_id, winner_id, last_word,
			turn_time_left, settings_id, task_id, version, created_at, updated_at
		FROM game WHERE id = ?`, id).
		Scan(&g.ID, &g.Status, &g.CurrentTurn, &g.CurrentPlayerID, &g.WinnerID,
			&g.LastWord, &g.TurnTimeLeft, &g.SettingsID, &g.TaskID, &g.Version,
			&g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return Game{}, errNoRows(err)
	}
	return g, nil
}

// UpdateGame writes every mutable field of g and bumps version by one,
// conditioned on the row's current version still matching g.Version
// (optimistic concurrency, invariant 7). ErrRetriable is returned when zero
// rows match: someone else committed a conflicting update first, and the
// caller should re-read and retry rather than treat this as a fatal error.
func UpdateGame(ctx context.Context, q querier, g Game) error {
	res, err := q.ExecContext(ctx, `
		UPDATE game SET
			status = ?, current_turn = ?, current_player_id = ?, winner_id = ?,
			last_word = ?, turn_time_left = ?, task_id = ?, version = version + 1,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ? AND version = ?`,
		g.Status, g.CurrentTurn, g.CurrentPlayerID, g.WinnerID,
		g.LastWord, g.TurnTimeLeft, g.TaskID, g.ID, g.Version)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrRetriable
	}
	return nil
}

// ClaimTask attempts to set the game's task_id to taskID, but only if no
// other task currently owns it (task_id IS NULL). This is the Turn
// Driver's single-owner CAS: at most one driver goroutine may hold a
// game's task_id at a time, independent of and coarser-grained than the
// per-write version check in UpdateGame. Reports whether the claim
// succeeded.
func ClaimTask(ctx context.Context, q querier, gameID, taskID string) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE game SET task_id = ? WHERE id = ? AND task_id IS NULL`,
		taskID, gameID)
	if err != nil {
		return false, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// ReleaseTask clears task_id, but only if it still matches taskID — a
// driver that lost its claim (e.g. after a crash-restart reclaimed it)
// must not clear someone else's ownership.
func ReleaseTask(ctx context.Context, q querier, gameID, taskID string) error {
	_, err := q.ExecContext(ctx, `
		UPDATE game SET task_id = NULL WHERE id = ? AND task_id = ?`,
		gameID, taskID)
	return classify(err)
}

// ForceClearTask unconditionally nulls a game's task_id, regardless of
// its current value. This is unsafe for normal release (which must only
// clear a task_id it still owns, see ReleaseTask) and exists solely for
// startup recovery: after a process restart no live goroutine can be
// holding whatever task_id a game's row was left with, so the claim must
// be force-reset before a fresh driver can claim it.
func ForceClearTask(ctx context.Context, q querier, gameID string) error {
	_, err := q.ExecContext(ctx, `UPDATE game SET task_id = NULL WHERE id = ?`, gameID)
	return classify(err)
}

// DecrementTurnTimeLeft lowers turn_time_left by one second, clamped at
// zero, for the given game, without touching version — the Turn Driver's
// tick is a coarse countdown the UI polls/subscribes to, not an
// optimistically-guarded state transition.
func DecrementTurnTimeLeft(ctx context.Context, q querier, gameID string) (int, error) {
	_, err := q.ExecContext(ctx, `
		UPDATE game SET turn_time_left = MAX(turn_time_left - 1, 0) WHERE id = ?`,
		gameID)
	if err != nil {
		return 0, classify(err)
	}
	var left int
	err = q.QueryRowContext(ctx, `SELECT turn_time_left FROM game WHERE id = ?`, gameID).Scan(&left)
	if err != nil {
		return 0, errNoRows(err)
	}
	return left, nil
}

// ListActiveGameIDs returns the ids of every game not yet FINISHED, for
// the Turn Driver supervisor to pick up on startup.
func ListActiveGameIDs(ctx context.Context, q querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id FROM game WHERE status != ?`, StatusFinished)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan game id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// --- player ----------------------------------------------------------------

// CreatePlayer inserts a new player.
func CreatePlayer(ctx context.Context, q querier, p Player) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO player (id, game_id, name, type, session_key, is_connected)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.GameID, p.Name, p.Type, p.SessionKey, p.IsConnected)
	return classify(err)
}

// GetPlayer fetches a player by id.
func GetPlayer(ctx context.Context, q querier, id string) (Player, error) {
	var p Player
	err := q.QueryRowContext(ctx, `
		SELECT id, game_id, name, type, session_key, is_connected, created_at
		FROM player WHERE id = ?`, id).
		Scan(&p.ID, &p.GameID, &p.Name, &p.Type, &p.SessionKey, &p.IsConnected, &p.CreatedAt)
	if err != nil {
		return Player{}, errNoRows(err)
	}
	return p, nil
}

// GetPlayerBySession fetches the player in gameID owning sessionKey, used
// to resume a session across reconnects without re-joining.
func GetPlayerBySession(ctx context.Context, q querier, gameID, sessionKey string) (Player, error) {
	var p Player
	err := q.QueryRowContext(ctx, `
		SELECT id, game_id, name, type, session_key, is_connected, created_at
		FROM player WHERE game_id = ? AND session_key = ?`, gameID, sessionKey).
		Scan(&p.ID, &p.GameID, &p.Name, &p.Type, &p.SessionKey, &p.IsConnected, &p.CreatedAt)
	if err != nil {
		return Player{}, errNoRows(err)
	}
	return p, nil
}

// ListPlayers returns every player of a game, host first then by join
// order, which is also turn order for HUMAN/BOT players.
func ListPlayers(ctx context.Context, q querier, gameID string) ([]Player, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, game_id, name, type, session_key, is_connected, created_at
		FROM player WHERE game_id = ?
		ORDER BY (type = 'HOST') DESC, created_at ASC`, gameID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var players []Player
	for rows.Next() {
		var p Player
		if err := rows.Scan(&p.ID, &p.GameID, &p.Name, &p.Type, &p.SessionKey,
			&p.IsConnected, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// SetPlayerType updates a player's type (e.g. promoting HUMAN to WINNER,
// or HOST migration on host departure).
func SetPlayerType(ctx context.Context, q querier, playerID string, t PlayerType) error {
	_, err := q.ExecContext(ctx, `UPDATE player SET type = ? WHERE id = ?`, t, playerID)
	return classify(err)
}

// SetPlayerConnected records a player's live-connection state, used by the
// Session Gateway's disconnect-with-grace handling.
func SetPlayerConnected(ctx context.Context, q querier, playerID string, connected bool) error {
	_, err := q.ExecContext(ctx, `UPDATE player SET is_connected = ? WHERE id = ?`, connected, playerID)
	return classify(err)
}

// RemovePlayerFromGame detaches a player from its game (game_id = NULL)
// rather than deleting the row outright, preserving GameWord history whose
// player_id would otherwise dangle.
func RemovePlayerFromGame(ctx context.Context, q querier, playerID string) error {
	_, err := q.ExecContext(ctx, `UPDATE player SET game_id = NULL WHERE id = ?`, playerID)
	return classify(err)
}

// --- game_word ---------------------------------------------------------

// CreateGameWord inserts a move record: an accepted word, or (word == nil)
// a timeout charge.
func CreateGameWord(ctx context.Context, q querier, w GameWord) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO game_word (id, game_id, player_id, word, score, duration)
		VALUES (?, ?, ?, ?, ?, ?)`,
		w.ID, w.GameID, w.PlayerID, w.Word, w.Score, w.Duration)
	return classify(err)
}

// ListGameWords returns every move of a game in play order.
func ListGameWords(ctx context.Context, q querier, gameID string) ([]GameWord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, game_id, player_id, word, score, duration, created_at
		FROM game_word WHERE game_id = ? ORDER BY created_at ASC`, gameID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var words []GameWord
	for rows.Next() {
		var w GameWord
		if err := rows.Scan(&w.ID, &w.GameID, &w.PlayerID, &w.Word, &w.Score,
			&w.Duration, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan game_word: %w", err)
		}
		words = append(words, w)
	}
	return words, rows.Err()
}

// Leaderboard returns each player of gameID with their summed score across
// all GameWords, highest total first.
func Leaderboard(ctx context.Context, q querier, gameID string) ([]LeaderboardEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT p.id, p.game_id, p.name, p.type, p.session_key, p.is_connected, p.created_at,
			COALESCE(SUM(gw.score), 0) AS total
		FROM player p
		LEFT JOIN game_word gw ON gw.player_id = p.id AND gw.game_id = ?
		WHERE p.game_id = ?
		GROUP BY p.id
		ORDER BY total DESC, p.created_at ASC`, gameID, gameID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Player.ID, &e.Player.GameID, &e.Player.Name, &e.Player.Type,
			&e.Player.SessionKey, &e.Player.IsConnected, &e.Player.CreatedAt, &e.TotalScore); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- word (global dictionary-usage ledger) ------------------------------

// WordUsedInGame reports whether word has already been played in gameID
// (invariant: no repeats within a game), case-insensitively.
func WordUsedInGame(ctx context.Context, q querier, gameID, word string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM game_word
		WHERE game_id = ? AND word IS NOT NULL AND LOWER(word) = LOWER(?)`,
		gameID, word).Scan(&n)
	if err != nil {
		return false, classify(err)
	}
	return n > 0, nil
}

// RecordWord inserts word into the global per-locale word ledger if it is
// not already present, returning sql.ErrNoRows-free success either way —
// duplicates are expected and not an error (INSERT OR IGNORE).
func RecordWord(ctx context.Context, q querier, word, locale string) error {
	_, err := q.ExecContext(ctx, `
		INSERT OR IGNORE INTO word (word, locale) VALUES (?, ?)`, word, locale)
	return classify(err)
}

// CountWords returns how many distinct words are recorded for locale.
func CountWords(ctx context.Context, q querier, locale string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(1) FROM word WHERE locale = ?`, locale).Scan(&n)
	if err != nil {
		return 0, classify(err)
	}
	return n, nil
}
