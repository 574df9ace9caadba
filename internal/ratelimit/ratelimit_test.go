package ratelimit

import (
	"fmt"
	"testing"
	"time"
)

func TestTokenBucketBasicAllow(t *testing.T) {
	tb := newTokenBucket(Config{Rate: 10, Burst: 3})
	for i := 0; i < 3; i++ {
		if !tb.allow() {
			t.Fatalf("expected allow on request %d", i)
		}
	}
	if tb.allow() {
		t.Fatal("expected deny after burst exhausted")
	}
}

func TestTokenBucketRefill(t *testing.T) {
	tb := newTokenBucket(Config{Rate: 10, Burst: 3})
	for i := 0; i < 3; i++ {
		tb.allow()
	}
	time.Sleep(150 * time.Millisecond)
	if !tb.allow() {
		t.Fatal("expected allow after refill")
	}
}

func TestLimiterAllowsNormalUsage(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		allowed, disconnect := l.Allow("leave")
		if !allowed {
			t.Fatalf("expected allow on request %d", i)
		}
		if disconnect {
			t.Fatal("unexpected disconnect")
		}
	}
}

func TestLimiterPerVerbLimit(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		allowed, _ := l.Allow("submit_turn")
		if !allowed {
			t.Fatalf("expected allow on submit_turn %d", i)
		}
	}
	allowed, _ := l.Allow("submit_turn")
	if allowed {
		t.Fatal("expected deny on submit_turn after burst")
	}
}

func TestLimiterGlobalLimit(t *testing.T) {
	l := New()
	denied := false
	// A distinct verb per call gets a fresh per-verb bucket each time, so
	// only the shared global bucket can deny.
	for i := 0; i < 30; i++ {
		allowed, _ := l.Allow(fmt.Sprintf("verb_%d", i))
		if !allowed {
			denied = true
			break
		}
	}
	if !denied {
		t.Fatal("expected global rate limit to kick in")
	}
}

func TestLimiterDisconnectOnExcessiveViolations(t *testing.T) {
	l := New()
	for i := 0; i < 3; i++ {
		l.Allow("submit_turn")
	}
	disconnected := false
	for i := 0; i < 100; i++ {
		_, shouldDisconnect := l.Allow("submit_turn")
		if shouldDisconnect {
			disconnected = true
			break
		}
	}
	if !disconnected {
		t.Fatal("expected disconnect after excessive violations")
	}
}

func TestLimiterUnknownVerb(t *testing.T) {
	l := New()
	allowed1, _ := l.Allow("unknown_verb")
	allowed2, _ := l.Allow("unknown_verb")
	allowed3, _ := l.Allow("unknown_verb")
	if !allowed1 || !allowed2 {
		t.Fatal("expected first 2 unknown-verb messages to be allowed")
	}
	if allowed3 {
		t.Fatal("expected 3rd unknown-verb message to be denied")
	}
}
