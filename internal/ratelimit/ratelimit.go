// Package ratelimit throttles how often a single connection may invoke
// each command, using a token bucket per command verb plus one global
// bucket shared across all of them.
package ratelimit

import (
	"sync"
	"time"
)

// Config defines the rate and burst of one token bucket.
type Config struct {
	// Rate is the number of tokens added per second.
	Rate float64
	// Burst is the bucket's capacity (and starting token count).
	Burst int
}

// defaultLimits covers this spec's command verbs (§4.8, §6): turn
// submission is the tightest since it is the hot path of live play; join
// and the lobby-management actions are moderate; leave is generous since
// a disconnecting client shouldn't be throttled on its way out.
var defaultLimits = map[string]Config{
	"submit_turn":   {Rate: 1, Burst: 3},
	"join":          {Rate: 0.5, Burst: 3},
	"prepare_start": {Rate: 0.5, Burst: 2},
	"start":         {Rate: 0.5, Burst: 2},
	"restart":       {Rate: 0.5, Burst: 2},
	"leave":         {Rate: 2, Burst: 5},
}

// globalLimit applies to every command on a connection regardless of verb.
var globalLimit = Config{Rate: 10, Burst: 20}

// unknownVerbLimit is applied to any command verb with no entry in
// defaultLimits, strict by default since an unrecognized verb likely
// means a client bug or probing.
var unknownVerbLimit = Config{Rate: 1, Burst: 2}

// violationDisconnectThreshold is how many net rate-limit violations a
// connection accrues (each allowed command forgives one) before the
// gateway should drop it outright rather than merely rejecting the command.
const violationDisconnectThreshold = 50

// tokenBucket is a classic token bucket: tokens refill continuously at
// Rate per second, capped at Burst, and allow() consumes one if available.
type tokenBucket struct {
	tokens    float64
	max       float64
	rate      float64
	lastCheck time.Time
}

func newTokenBucket(cfg Config) *tokenBucket {
	return &tokenBucket{
		tokens:    float64(cfg.Burst),
		max:       float64(cfg.Burst),
		rate:      cfg.Rate,
		lastCheck: time.Now(),
	}
}

func (tb *tokenBucket) allow() bool {
	now := time.Now()
	elapsed := now.Sub(tb.lastCheck).Seconds()
	tb.lastCheck = now

	tb.tokens += elapsed * tb.rate
	if tb.tokens > tb.max {
		tb.tokens = tb.max
	}
	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// Limiter tracks rate-limit state for a single connection (one per
// Session Gateway subscriber).
type Limiter struct {
	mu         sync.Mutex
	global     *tokenBucket
	buckets    map[string]*tokenBucket
	violations int
}

// New returns a Limiter with a fresh global bucket and no per-verb
// buckets yet (those are created lazily on first use).
func New() *Limiter {
	return &Limiter{
		global:  newTokenBucket(globalLimit),
		buckets: make(map[string]*tokenBucket),
	}
}

// Allow reports whether verb may proceed now, and whether the connection
// has accumulated enough net violations that the gateway should
// disconnect it rather than keep rejecting individual commands.
func (l *Limiter) Allow(verb string) (allowed, shouldDisconnect bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.global.allow() {
		l.violations++
		return false, l.violations >= violationDisconnectThreshold
	}

	cfg, ok := defaultLimits[verb]
	if !ok {
		cfg = unknownVerbLimit
	}

	bucket, ok := l.buckets[verb]
	if !ok {
		bucket = newTokenBucket(cfg)
		l.buckets[verb] = bucket
	}

	if !bucket.allow() {
		l.violations++
		return false, l.violations >= violationDisconnectThreshold
	}

	if l.violations > 0 {
		l.violations--
	}
	return true, false
}
