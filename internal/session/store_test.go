package session

import (
	"testing"
	"time"
)

func TestStoreCreateAndGet(t *testing.T) {
	s := NewStore(30*time.Minute, 10, 1000)
	defer s.Close()

	sess := s.Create()
	if sess.ID == "" {
		t.Fatal("expected non-empty session id")
	}

	got, ok := s.Get(sess.ID)
	if !ok {
		t.Fatal("expected session to be found")
	}
	if got.ID != sess.ID {
		t.Fatalf("got id %q, want %q", got.ID, sess.ID)
	}
}

func TestStoreGetExpired(t *testing.T) {
	s := NewStore(minCleanupInterval, 10, 1000)
	defer s.Close()

	sess := s.Create()
	time.Sleep(5 * time.Millisecond)

	if _, ok := s.Get(sess.ID); ok {
		t.Fatal("expected expired session to be absent")
	}
	if s.Count() != 0 {
		t.Fatalf("expected expired session to be pruned, count=%d", s.Count())
	}
}

func TestStoreAppendTurnTrimsWindow(t *testing.T) {
	s := NewStore(30*time.Minute, 2, 1000)
	defer s.Close()

	sess := s.Create()
	for i := 0; i < 5; i++ {
		if _, err := s.AppendTurn(sess.ID, ConversationTurn{UserQuery: "q", QueryType: QueryStandalone}); err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
	}

	got, _ := s.Get(sess.ID)
	if len(got.Turns) != 2 {
		t.Fatalf("got %d turns, want 2 (history window)", len(got.Turns))
	}
}

func TestStoreAppendTurnUnknownSession(t *testing.T) {
	s := NewStore(30*time.Minute, 10, 1000)
	defer s.Close()

	if _, err := s.AppendTurn("does-not-exist", ConversationTurn{}); err == nil {
		t.Fatal("expected error appending to unknown session")
	}
}

func TestStoreMaxSessionsEvictsOldest(t *testing.T) {
	s := NewStore(30*time.Minute, 10, 2)
	defer s.Close()

	first := s.Create()
	time.Sleep(time.Millisecond)
	s.Create()
	time.Sleep(time.Millisecond)
	s.Create() // should evict `first`, the oldest by last activity

	if s.Count() > 2 {
		t.Fatalf("expected cap of 2 sessions, got %d", s.Count())
	}
	if _, ok := s.Get(first.ID); ok {
		t.Fatal("expected oldest session to be evicted")
	}
}

func TestStoreGetOrCreate(t *testing.T) {
	s := NewStore(30*time.Minute, 10, 1000)
	defer s.Close()

	sess := s.GetOrCreate("")
	if sess.ID == "" {
		t.Fatal("expected a new session id")
	}

	again := s.GetOrCreate(sess.ID)
	if again.ID != sess.ID {
		t.Fatalf("expected GetOrCreate to return existing session, got new id %q", again.ID)
	}

	other := s.GetOrCreate("unknown-id")
	if other.ID == "unknown-id" {
		t.Fatal("expected GetOrCreate to mint a fresh id rather than reuse an unknown one")
	}
}

func TestStoreExportImport(t *testing.T) {
	s := NewStore(30*time.Minute, 10, 1000)
	defer s.Close()

	sess := s.Create()
	if _, err := s.AppendTurn(sess.ID, ConversationTurn{UserQuery: "AAPL outlook", QueryType: QueryStandalone}); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}

	data, err := s.Export(sess.ID)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	s2 := NewStore(30*time.Minute, 10, 1000)
	defer s2.Close()
	imported, err := s2.Import(data)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if imported.ID != sess.ID || len(imported.Turns) != 1 {
		t.Fatalf("imported session mismatch: %+v", imported)
	}
}

func TestStoreStats(t *testing.T) {
	s := NewStore(30*time.Minute, 10, 1000)
	defer s.Close()

	s.Create()
	s.Create()

	stats := s.Stats()
	if stats.ActiveSessions != 2 {
		t.Fatalf("got %d active sessions, want 2", stats.ActiveSessions)
	}
	if stats.MaxSessions != 1000 {
		t.Fatalf("got max sessions %d, want 1000", stats.MaxSessions)
	}
}

func TestSessionLastCompleteTurn(t *testing.T) {
	sess := &Session{Turns: []ConversationTurn{
		{QueryType: QueryStandalone, ContextUsed: false, UserQuery: "first"},
		{QueryType: QueryContextual, ContextUsed: true, UserQuery: "second"},
		{QueryType: QueryStandalone, ContextUsed: false, UserQuery: "third"},
	}}

	turn, ok := sess.LastCompleteTurn()
	if !ok || turn.UserQuery != "third" {
		t.Fatalf("got %+v, ok=%v; want 'third'", turn, ok)
	}
}
