// Package ids generates short, URL-safe opaque identifiers for games,
// players, and words.
package ids

import "math/rand/v2"

const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// GameIDLength is the length of a game id (human-shareable, spoken over a
// call, typed into a join box).
const GameIDLength = 5

// EntityIDLength is the length of a player or word id.
const EntityIDLength = 21

// New returns a random opaque id of the given length.
func New(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = alphabet[rand.IntN(len(alphabet))]
	}
	return string(b)
}

// NewGameID returns a new 5-character game id.
func NewGameID() string {
	return New(GameIDLength)
}

// NewEntityID returns a new 21-character player/word id.
func NewEntityID() string {
	return New(EntityIDLength)
}
