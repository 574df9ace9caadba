package store

import "context"

// The methods in this file expose the package-level query helpers as
// Store methods for callers that operate outside a Mutate transaction —
// chiefly the Turn Driver, whose task claim/release and tick decrement run
// as autocommit statements rather than as part of a larger
// read-modify-write that needs BEGIN IMMEDIATE's isolation.

// ClaimTask claims gameID's task ownership for taskID.
func (s *Store) ClaimTask(ctx context.Context, gameID, taskID string) (bool, error) {
	return ClaimTask(ctx, s.db, gameID, taskID)
}

// ReleaseTask releases gameID's task ownership, if still held by taskID.
func (s *Store) ReleaseTask(ctx context.Context, gameID, taskID string) error {
	return ReleaseTask(ctx, s.db, gameID, taskID)
}

// DecrementTurnTimeLeft ticks down gameID's turn timer by one second.
func (s *Store) DecrementTurnTimeLeft(ctx context.Context, gameID string) (int, error) {
	return DecrementTurnTimeLeft(ctx, s.db, gameID)
}

// ForceClearTask unconditionally clears gameID's task_id. See the
// package-level ForceClearTask doc for why this is startup-recovery-only.
func (s *Store) ForceClearTask(ctx context.Context, gameID string) error {
	return ForceClearTask(ctx, s.db, gameID)
}

// ListActiveGameIDs returns every non-FINISHED game id.
func (s *Store) ListActiveGameIDs(ctx context.Context) ([]string, error) {
	return ListActiveGameIDs(ctx, s.db)
}

// GetGame fetches a game by id outside any transaction.
func (s *Store) GetGame(ctx context.Context, id string) (Game, error) {
	return GetGame(ctx, s.db, id)
}

// GetGameSettings fetches settings by id outside any transaction.
func (s *Store) GetGameSettings(ctx context.Context, id string) (GameSettings, error) {
	return GetGameSettings(ctx, s.db, id)
}

// UpdateGameSettings writes settings outside any transaction.
func (s *Store) UpdateGameSettings(ctx context.Context, settings GameSettings) error {
	return UpdateGameSettings(ctx, s.db, settings)
}

// ListPlayers lists a game's players outside any transaction.
func (s *Store) ListPlayers(ctx context.Context, gameID string) ([]Player, error) {
	return ListPlayers(ctx, s.db, gameID)
}

// Leaderboard computes a game's leaderboard outside any transaction.
func (s *Store) Leaderboard(ctx context.Context, gameID string) ([]LeaderboardEntry, error) {
	return Leaderboard(ctx, s.db, gameID)
}

// ListGameWords lists a game's move history outside any transaction.
func (s *Store) ListGameWords(ctx context.Context, gameID string) ([]GameWord, error) {
	return ListGameWords(ctx, s.db, gameID)
}

// GetPlayer fetches a player by id outside any transaction.
func (s *Store) GetPlayer(ctx context.Context, id string) (Player, error) {
	return GetPlayer(ctx, s.db, id)
}

// GetPlayerBySession resolves a session key to a player outside any
// transaction.
func (s *Store) GetPlayerBySession(ctx context.Context, gameID, sessionKey string) (Player, error) {
	return GetPlayerBySession(ctx, s.db, gameID, sessionKey)
}

// SetPlayerConnected records connection state outside any transaction —
// safe as a standalone write since it never participates in an
// optimistic-concurrency check.
func (s *Store) SetPlayerConnected(ctx context.Context, playerID string, connected bool) error {
	return SetPlayerConnected(ctx, s.db, playerID, connected)
}

// CountWords reports the size of a locale's global word ledger.
func (s *Store) CountWords(ctx context.Context, locale string) (int, error) {
	return CountWords(ctx, s.db, locale)
}

// RecordWord records word in the global per-locale ledger outside any
// transaction, independent of any single game. The dictionary loader does
// not call it; accepted words reach the ledger through the package-level
// RecordWord inside the Rules Engine's turn transaction.
func (s *Store) RecordWord(ctx context.Context, word, locale string) error {
	return RecordWord(ctx, s.db, word, locale)
}
