package api

import (
	"crypto/sha256"
	"encoding/hex"
)

// hashSession returns a short, irreversible fingerprint of a session key
// for logging, per the requirement that the Command API logs session
// keys hashed rather than in the clear.
func hashSession(sessionKey string) string {
	if sessionKey == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(sessionKey))
	return hex.EncodeToString(sum[:8])
}
