package dictionary

import (
	"context"
	"strings"
	"testing"
)

func TestLoadAndContains(t *testing.T) {
	d := New()
	n, err := d.Load(context.Background(), "en", strings.NewReader("apple\nElephant\n\ntiger\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 words loaded, got %d", n)
	}
	if !d.Contains("apple", "en") {
		t.Error("expected apple to be in dictionary")
	}
	if !d.Contains("ELEPHANT", "en") {
		t.Error("expected case-insensitive match for ELEPHANT")
	}
	if d.Contains("zzz", "en") {
		t.Error("did not expect zzz to be in dictionary")
	}
}

func TestContainsUnknownLocale(t *testing.T) {
	d := New()
	if d.Contains("apple", "fr") {
		t.Error("expected no match for unloaded locale")
	}
}

func TestLoadReplacesPreviousSet(t *testing.T) {
	d := New()
	d.Load(context.Background(), "en", strings.NewReader("apple\n"))
	d.Load(context.Background(), "en", strings.NewReader("tiger\n"))
	if d.Contains("apple", "en") {
		t.Error("expected apple to be gone after reload")
	}
	if !d.Contains("tiger", "en") {
		t.Error("expected tiger to be present after reload")
	}
}

func TestDefaultWordListLoads(t *testing.T) {
	r, err := DefaultWordList("en")
	if err != nil {
		t.Fatalf("DefaultWordList: %v", err)
	}
	defer r.Close()

	d := New()
	n, err := d.Load(context.Background(), "en", r)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if n == 0 {
		t.Error("expected a non-empty bundled word list")
	}
	if !d.Contains("apple", "en") {
		t.Error("expected bundled list to contain apple")
	}
}
