// Package scorer computes the point value of a submitted word (or a
// timeout) for the shiritori rules engine. It is a pure function package:
// no I/O, no locks, no shared state.
package scorer

import "strings"

// rarity assigns a bonus per letter, roughly inverse to English letter
// frequency — uncommon letters (j, q, x, z) are worth more than common
// vowels. Letters not present default to 1.
var rarity = map[rune]float64{
	'a': 1, 'e': 1, 'i': 1, 'o': 1, 'u': 1,
	'n': 1, 't': 1, 's': 1, 'r': 1, 'l': 1,
	'd': 1.5, 'c': 1.5, 'm': 1.5, 'g': 1.5, 'h': 1.5, 'p': 1.5,
	'b': 2, 'f': 2, 'y': 2, 'w': 2, 'k': 2, 'v': 2,
	'j': 4, 'x': 4, 'q': 4, 'z': 4,
}

// durationPenaltyRate is the score deducted per second a turn takes.
const durationPenaltyRate = 0.2

// timeoutPenaltyRate is the score deducted per second of a timed-out turn
// (spec invariant: a null-word GameWord has score = -0.25 * duration).
const timeoutPenaltyRate = 0.25

// Score computes the point value of an accepted, non-empty word given how
// long (in seconds) the player took to submit it.
//
// Score = f(word) - g(duration), where f rewards length and letter rarity
// and g penalizes slow answers. The exact formula is a committed design
// choice (see DESIGN.md) resolving an open question in the source
// specification, not a reverse-engineered match of an unrecoverable
// original.
func Score(word string, duration float64) float64 {
	return wordValue(word) - duration*durationPenaltyRate
}

// TimeoutScore computes the (always non-positive) score charged for a
// timed-out turn.
func TimeoutScore(duration float64) float64 {
	return -timeoutPenaltyRate * duration
}

func wordValue(word string) float64 {
	word = strings.ToLower(word)
	value := 2 * float64(len([]rune(word)))
	for _, r := range word {
		if w, ok := rarity[r]; ok {
			value += w
		} else {
			value += 1
		}
	}
	return value
}
