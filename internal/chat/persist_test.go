package chat

import (
	"os"
	"path/filepath"
	"testing"
)

// TestFlushReloadRoundTrip is spec.md §8's durability property: state
// flushed to disk and reloaded into a fresh Store reproduces the same
// observable data (spec.md §4.1).
func TestFlushReloadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s := NewStore(path)
	mustRegister(t, s, "a", "alice")
	mustRegister(t, s, "b", "bob")
	if _, _, err := s.SendMessage("m1", "a", "b", "hi", "", ""); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := s.BlockUser("a", "b", true); err != nil {
		t.Fatalf("block: %v", err)
	}

	reloaded := NewStore(path)
	u, ok := reloaded.GetUser("a")
	if !ok || u.Username != "alice" {
		t.Fatalf("expected user a reloaded, got %+v ok=%v", u, ok)
	}
	msgs := reloaded.DirectMessagesFor("a")["a:b"]
	if len(msgs) != 1 || msgs[0].Text != "hi" {
		t.Fatalf("expected message reloaded, got %+v", msgs)
	}
	blocked, _ := reloaded.BlockedSets("a")
	if !containsString(blocked, "b") {
		t.Fatalf("expected block reloaded, got %+v", blocked)
	}
}

func TestNewStoreStartsEmptyOnMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	s := NewStore(path)
	if s.UserCount() != 0 {
		t.Fatalf("expected empty store, got %d users", s.UserCount())
	}
}

func TestNewStoreStartsEmptyOnCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := NewStore(path)
	if s.UserCount() != 0 {
		t.Fatalf("expected empty store on corrupt file, got %d users", s.UserCount())
	}
}

func TestFlushDoesNotLeaveTempFilesBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	s := NewStore(path)
	mustRegister(t, s, "a", "alice")

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("expected no leftover temp file, found %s", e.Name())
		}
	}
}
