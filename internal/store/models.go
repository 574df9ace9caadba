package store

import "time"

// GameStatus is the lifecycle state of a Game.
type GameStatus string

const (
	StatusWaiting  GameStatus = "WAITING"
	StatusPlaying  GameStatus = "PLAYING"
	StatusFinished GameStatus = "FINISHED"
)

// PlayerType is the role a Player holds within a Game.
type PlayerType string

const (
	PlayerHost      PlayerType = "HOST"
	PlayerHuman     PlayerType = "HUMAN"
	PlayerBot       PlayerType = "BOT"
	PlayerSpectator PlayerType = "SPECTATOR"
	PlayerWinner    PlayerType = "WINNER"
)

// Game is the central entity of a shiritori session.
type Game struct {
	ID              string
	Status          GameStatus
	CurrentTurn     int
	CurrentPlayerID *string
	WinnerID        *string
	LastWord        *string
	TurnTimeLeft    int
	SettingsID      string
	TaskID          *string
	Version         int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// GameSettings holds the per-game tunables.
type GameSettings struct {
	ID         string
	Locale     string
	WordLength int
	TurnTime   int
	MaxTurns   int
}

// DefaultGameSettings returns the settings defaults named in the
// specification (word_length=3, turn_time=60, max_turns=10, locale=en).
// This is the single source of truth other call sites (game creation,
// tests) should use rather than duplicating the literal defaults.
func DefaultGameSettings(id string) GameSettings {
	return GameSettings{
		ID:         id,
		Locale:     "en",
		WordLength: 3,
		TurnTime:   60,
		MaxTurns:   10,
	}
}

// Player is a participant (or former participant) of a Game.
type Player struct {
	ID          string
	GameID      *string
	Name        string
	Type        PlayerType
	SessionKey  *string
	IsConnected bool
	CreatedAt   time.Time
}

// IsEligibleCurrent reports whether a player of this type can ever be
// current_player (invariant 1: HOST, HUMAN, or BOT, never SPECTATOR).
func (t PlayerType) IsEligibleCurrent() bool {
	return t == PlayerHost || t == PlayerHuman || t == PlayerBot
}

// GameWord is a single move record: an accepted word, or (Word == nil) a
// timeout charge.
type GameWord struct {
	ID        string
	GameID    string
	PlayerID  *string
	Word      *string
	Score     float64
	Duration  float64
	CreatedAt time.Time
}

// LeaderboardEntry is one row of a game's leaderboard: a player and their
// summed score across all their GameWords.
type LeaderboardEntry struct {
	Player     Player
	TotalScore float64
}
