package ids

import "testing"

func TestNewGameIDLength(t *testing.T) {
	id := NewGameID()
	if len(id) != GameIDLength {
		t.Errorf("expected length %d, got %d (%q)", GameIDLength, len(id), id)
	}
}

func TestNewEntityIDLength(t *testing.T) {
	id := NewEntityID()
	if len(id) != EntityIDLength {
		t.Errorf("expected length %d, got %d (%q)", EntityIDLength, len(id), id)
	}
}

func TestNewIsRandomish(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewEntityID()
		if seen[id] {
			t.Fatalf("unexpected duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestNewAlphabet(t *testing.T) {
	id := New(1000)
	for _, r := range id {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			t.Errorf("unexpected rune %q in generated id", r)
		}
	}
}
