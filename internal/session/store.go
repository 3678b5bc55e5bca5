// Package session implements the Session Manager (C6): an in-memory
// session registry with TTL eviction and a global session cap, adapted
// from the teacher's internal/session.Store (same sync.RWMutex guard,
// same ttl/2 cleanup-ticker goroutine idiom) and generalized from the
// teacher's coding-agent Turn to the conversation-analysis
// ConversationTurn shape named in SPEC_FULL.md §3. Export/Import/Stats
// are supplemented from original_source/.../conversation/
// session_manager.py (export_session/import_session/get_stats), which
// the distilled spec dropped.
package session

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const minCleanupInterval = time.Millisecond

// QueryType classifies a conversation turn per §3.
type QueryType string

const (
	QueryStandalone  QueryType = "STANDALONE"
	QueryContextual  QueryType = "CONTEXTUAL"
	QueryComparative QueryType = "COMPARATIVE"
	QueryParameter   QueryType = "PARAMETER"
)

// ConversationTurn is one recorded exchange, appended only by C7 after a
// request reaches a proceed state and immutable thereafter.
type ConversationTurn struct {
	TurnID              string    `json:"turn_id"`
	Timestamp           time.Time `json:"timestamp"`
	UserQuery           string    `json:"user_query"`
	QueryType           QueryType `json:"query_type"`
	ExpandedQuery       string    `json:"expanded_query,omitempty"`
	AnalysisSummary     string    `json:"analysis_summary,omitempty"`
	ContextUsed         bool      `json:"context_used"`
	ExpansionConfidence float64   `json:"expansion_confidence"`
}

// Session holds all state for one conversation session.
type Session struct {
	ID             string              `json:"session_id"`
	CreatedAt      time.Time           `json:"created_at"`
	LastActivity   time.Time           `json:"last_activity"`
	Turns          []ConversationTurn  `json:"turns"`
	HistoryWindow  int                 `json:"history_window_size"`
}

// IsExpired reports whether the session has been inactive longer than ttl.
func (s *Session) IsExpired(ttl time.Duration) bool {
	return time.Since(s.LastActivity) > ttl
}

// LastTurn returns the most recently appended turn, if any.
func (s *Session) LastTurn() (ConversationTurn, bool) {
	if len(s.Turns) == 0 {
		return ConversationTurn{}, false
	}
	return s.Turns[len(s.Turns)-1], true
}

// LastCompleteTurn returns the most recent turn that did not use context
// (i.e. a STANDALONE query resolved without expansion), matching the
// Python original's get_last_complete_turn.
func (s *Session) LastCompleteTurn() (ConversationTurn, bool) {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].QueryType == QueryStandalone && !s.Turns[i].ContextUsed {
			return s.Turns[i], true
		}
	}
	return ConversationTurn{}, false
}

// Stats summarizes the Store's overall state (§2.3 supplemented feature).
type Stats struct {
	ActiveSessions        int     `json:"active_sessions"`
	SessionTimeoutMinutes float64 `json:"session_timeout_minutes"`
	AvgSessionAgeMinutes  float64 `json:"avg_session_age_minutes"`
	MaxSessions           int     `json:"max_sessions"`
}

// Store is a thread-safe in-memory session registry with TTL eviction
// and a global cap, matching the teacher's internal/session.Store
// locking discipline.
type Store struct {
	mu            sync.RWMutex
	sessions      map[string]*Session
	ttl           time.Duration
	historyWindow int
	maxSessions   int
	done          chan struct{}
}

// NewStore creates a Store. ttl is the inactivity timeout (default 30
// min per §3); historyWindow bounds turns retained per session (default
// 10); maxSessions is the global cap (default 1000) enforced on Create.
func NewStore(ttl time.Duration, historyWindow, maxSessions int) *Store {
	if ttl < minCleanupInterval {
		ttl = minCleanupInterval
	}
	s := &Store{
		sessions:      make(map[string]*Session),
		ttl:           ttl,
		historyWindow: historyWindow,
		maxSessions:   maxSessions,
		done:          make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// Create allocates a new session with a fresh UUID4 id, pruning expired
// sessions first and, if still over the cap, evicting the oldest session
// by last activity — matching session_manager.py's
// _cleanup_expired_sessions-then-evict-oldest ordering.
func (s *Store) Create() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneExpiredLocked()
	if len(s.sessions) >= s.maxSessions {
		s.evictOldestLocked()
	}
	now := time.Now()
	sess := &Session{
		ID:            uuid.NewString(),
		CreatedAt:     now,
		LastActivity:  now,
		HistoryWindow: s.historyWindow,
	}
	s.sessions[sess.ID] = sess
	return cloneSession(sess)
}

// Get returns the session, or false if missing or expired (expired
// entries are deleted on access, per §4.6).
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if sess.IsExpired(s.ttl) {
		delete(s.sessions, id)
		return nil, false
	}
	return cloneSession(sess), true
}

// GetOrCreate returns the session for id if present and unexpired,
// otherwise creates a new one. A blank id always creates.
func (s *Store) GetOrCreate(id string) *Session {
	if id != "" {
		if sess, ok := s.Get(id); ok {
			return sess
		}
	}
	return s.Create()
}

// Delete explicitly removes a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// AppendTurn appends turn to session id, trimming to the history window
// (oldest first), and bumps LastActivity. Returns an error if the
// session does not exist; it is not auto-created.
func (s *Store) AppendTurn(id string, turn ConversationTurn) (ConversationTurn, error) {
	if turn.TurnID == "" {
		turn.TurnID = uuid.NewString()[:8]
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ConversationTurn{}, fmt.Errorf("session: AppendTurn: session %q not found", id)
	}
	window := sess.HistoryWindow
	if window <= 0 {
		window = s.historyWindow
	}
	sess.Turns = append(sess.Turns, turn)
	if len(sess.Turns) > window {
		sess.Turns = sess.Turns[len(sess.Turns)-window:]
	}
	sess.LastActivity = time.Now()
	return turn, nil
}

// Count returns the number of active (unpruned) sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Stats reports the aggregate view exposed by the Python original's
// get_stats, for debugging/monitoring.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var totalAgeMinutes float64
	now := time.Now()
	for _, sess := range s.sessions {
		totalAgeMinutes += now.Sub(sess.CreatedAt).Minutes()
	}
	avg := 0.0
	if len(s.sessions) > 0 {
		avg = totalAgeMinutes / float64(len(s.sessions))
	}
	return Stats{
		ActiveSessions:        len(s.sessions),
		SessionTimeoutMinutes: s.ttl.Minutes(),
		AvgSessionAgeMinutes:  avg,
		MaxSessions:           s.maxSessions,
	}
}

// Export serializes a session for debugging/migration, matching the
// Python original's export_session.
func (s *Store) Export(id string) ([]byte, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session: Export: session %q not found", id)
	}
	return json.Marshal(sess)
}

// Import restores a session from Export's output, matching the Python
// original's import_session. Overwrites any existing session with the
// same id.
func (s *Store) Import(data []byte) (*Session, error) {
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("session: Import: %w", err)
	}
	if sess.ID == "" {
		return nil, fmt.Errorf("session: Import: missing session_id")
	}
	s.mu.Lock()
	s.sessions[sess.ID] = &sess
	s.mu.Unlock()
	return cloneSession(&sess), nil
}

// Close stops the background cleanup goroutine. Safe to call multiple times.
func (s *Store) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.pruneExpiredLocked()
			s.mu.Unlock()
		}
	}
}

// pruneExpiredLocked removes expired sessions. Caller holds s.mu.
func (s *Store) pruneExpiredLocked() {
	cutoff := time.Now().Add(-s.ttl)
	for id, sess := range s.sessions {
		if sess.LastActivity.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}

// evictOldestLocked removes the single oldest-by-LastActivity session.
// Caller holds s.mu.
func (s *Store) evictOldestLocked() {
	if len(s.sessions) == 0 {
		return
	}
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.sessions[ids[i]].LastActivity.Before(s.sessions[ids[j]].LastActivity)
	})
	delete(s.sessions, ids[0])
}

func cloneSession(sess *Session) *Session {
	out := *sess
	out.Turns = make([]ConversationTurn, len(sess.Turns))
	copy(out.Turns, sess.Turns)
	return &out
}
