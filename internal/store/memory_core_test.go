package store

import (
	"path/filepath"
	"testing"

	"nova/internal/perception"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	s, err := NewMemoryStore(":memory:")
	if err != nil {
		t.Fatalf("NewMemoryStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewMemoryStore_CreatesSchema(t *testing.T) {
	s := newTestStore(t)

	stats, err := s.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}

	for _, table := range []string{"conversations", "entities", "consciousness_state", "bridge_events"} {
		count, ok := stats[table]
		if !ok {
			t.Errorf("expected table %s in stats", table)
		}
		if count != 0 {
			t.Errorf("expected empty table %s, got %d rows", table, count)
		}
	}
}

func TestMemoryStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nova_memory.db")

	s, err := NewMemoryStore(path)
	if err != nil {
		t.Fatalf("NewMemoryStore failed: %v", err)
	}

	ctx := perception.Analyze("What is consciousness?")
	if _, err := s.RecordConversation("What is consciousness?", "a reply", ctx, ""); err != nil {
		t.Fatalf("RecordConversation failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewMemoryStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	summary, err := reopened.GetMemorySummary()
	if err != nil {
		t.Fatalf("GetMemorySummary failed: %v", err)
	}
	if summary.TotalConversations != 1 {
		t.Errorf("expected 1 conversation after reopen, got %d", summary.TotalConversations)
	}
	if summary.StorageBytes == 0 {
		t.Error("expected nonzero storage size for file-backed store")
	}
}

func TestMemoryStore_DatabasePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mind.db")
	s, err := NewMemoryStore(path)
	if err != nil {
		t.Fatalf("NewMemoryStore failed: %v", err)
	}
	defer s.Close()

	if got := s.DatabasePath(); got != path {
		t.Errorf("DatabasePath = %s, want %s", got, path)
	}
}
