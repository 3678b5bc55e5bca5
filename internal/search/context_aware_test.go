package search

import (
	"context"
	"testing"
	"time"

	"github.com/mosiclaw/dialogue-orchestrator/internal/analysislib"
	"github.com/mosiclaw/dialogue-orchestrator/internal/dialogue"
	"github.com/mosiclaw/dialogue-orchestrator/internal/llmsvc"
	"github.com/mosiclaw/dialogue-orchestrator/internal/provider"
	"github.com/mosiclaw/dialogue-orchestrator/internal/session"
)

func newSearch(fp *fakeProvider, lib analysislib.Library, store *session.Store) *ContextAwareSearch {
	svc := llmsvc.New("fake", "fake-model", fp)
	classifier := dialogue.NewClassifier(svc)
	expander := dialogue.NewExpander(svc)
	return New(lib, store, classifier, expander)
}

func TestSearchWithContextStandaloneProceedsAndRecordsTurn(t *testing.T) {
	store := session.NewStore(30*time.Minute, 10, 100)
	defer store.Close()
	fp := &fakeProvider{script: []scriptedCall{
		{resp: provider.Response{Content: "A"}},
	}}
	lib := &fakeLibrary{candidates: []analysislib.Candidate{{FunctionName: "backtest_sma", Similarity: 0.9}}}
	c := newSearch(fp, lib, store)

	result, err := c.SearchWithContext(context.Background(), "Backtest a 20-day SMA strategy on AAPL", "", false, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeProceed {
		t.Fatalf("got outcome %q, want %q", result.Outcome, OutcomeProceed)
	}
	if !result.FoundSimilar {
		t.Fatal("expected FoundSimilar=true given a non-empty candidate list")
	}

	sess, ok := store.Get(result.SessionID)
	if !ok {
		t.Fatal("expected session to exist")
	}
	if len(sess.Turns) != 1 {
		t.Fatalf("got %d turns, want 1", len(sess.Turns))
	}
}

func TestSearchWithContextEmptyHistoryContextualNeedsClarification(t *testing.T) {
	store := session.NewStore(30*time.Minute, 10, 100)
	defer store.Close()
	// First-turn classification alphabet is A=COMPLETE/B=INCOMPLETE; "B"
	// routes into the contextual path even on a brand-new session.
	fp := &fakeProvider{script: []scriptedCall{
		{resp: provider.Response{Content: "B"}},
	}}
	lib := &fakeLibrary{}
	c := newSearch(fp, lib, store)

	result, err := c.SearchWithContext(context.Background(), "what about that one", "", false, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeNeedsClarification {
		t.Fatalf("got outcome %q, want %q", result.Outcome, OutcomeNeedsClarification)
	}

	sess, ok := store.Get(result.SessionID)
	if !ok {
		t.Fatal("expected session to exist")
	}
	if len(sess.Turns) != 0 {
		t.Fatalf("expected no turn recorded for an empty-history contextual query, got %d", len(sess.Turns))
	}
}

func TestSearchWithContextExpandFailureMapsToNeedsClarificationNotError(t *testing.T) {
	store := session.NewStore(30*time.Minute, 10, 100)
	defer store.Close()
	sess := store.Create()
	if _, err := store.AppendTurn(sess.ID, session.ConversationTurn{
		UserQuery:       "What if I buy AAPL when it drops 2%?",
		QueryType:       session.QueryStandalone,
		AnalysisSummary: "AAPL tends to recover",
	}); err != nil {
		t.Fatalf("seeding turn: %v", err)
	}

	fp := &fakeProvider{script: []scriptedCall{
		{resp: provider.Response{Content: "B"}},                          // classify -> CONTEXTUAL
		{err: errorForTest("provider unavailable")},                      // expand LLM call fails
	}}
	lib := &fakeLibrary{}
	c := newSearch(fp, lib, store)

	// "please continue" matches none of the pattern-substitution rules,
	// so the pattern fallback also fails and Expand returns an error.
	result, err := c.SearchWithContext(context.Background(), "please continue", sess.ID, false, 0)
	if err != nil {
		t.Fatalf("expected a NEEDS_CLARIFICATION result, not a bare error: %v", err)
	}
	if result.Outcome != OutcomeNeedsClarification {
		t.Fatalf("got outcome %q, want %q", result.Outcome, OutcomeNeedsClarification)
	}

	got, _ := store.Get(sess.ID)
	if len(got.Turns) != 1 {
		t.Fatalf("expected no new turn recorded on expand failure, got %d turns", len(got.Turns))
	}
}

func TestSearchWithContextHighConfidenceExpansionProceeds(t *testing.T) {
	store := session.NewStore(30*time.Minute, 10, 100)
	defer store.Close()
	sess := store.Create()
	if _, err := store.AppendTurn(sess.ID, session.ConversationTurn{
		UserQuery:       "What if I buy AAPL when it drops 2%?",
		QueryType:       session.QueryStandalone,
		AnalysisSummary: "AAPL tends to recover quickly",
	}); err != nil {
		t.Fatalf("seeding turn: %v", err)
	}

	fp := &fakeProvider{script: []scriptedCall{
		{resp: provider.Response{Content: "B"}},
		{resp: provider.Response{Content: "What if I buy QQQ when AAPL drops 2%?"}},
	}}
	lib := &fakeLibrary{candidates: []analysislib.Candidate{{FunctionName: "backtest_drop", Similarity: 0.8}}}
	c := newSearch(fp, lib, store)

	result, err := c.SearchWithContext(context.Background(), "what about QQQ instead", sess.ID, false, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeProceed {
		t.Fatalf("got outcome %q (confidence=%v), want %q", result.Outcome, result.ExpansionConfidence, OutcomeProceed)
	}
	if result.ExpandedQuery == "" {
		t.Fatal("expected a non-empty expanded query")
	}
}

func TestSearchWithContextMediumConfidenceNeedsConfirmation(t *testing.T) {
	store := session.NewStore(30*time.Minute, 10, 100)
	defer store.Close()
	sess := store.Create()
	if _, err := store.AppendTurn(sess.ID, session.ConversationTurn{
		UserQuery: "AAPL",
	}); err != nil {
		t.Fatalf("seeding turn: %v", err)
	}

	fp := &fakeProvider{script: []scriptedCall{
		{resp: provider.Response{Content: "B"}},
		{resp: provider.Response{Content: "anything similar somewhere"}},
	}}
	lib := &fakeLibrary{}
	c := newSearch(fp, lib, store)

	result, err := c.SearchWithContext(context.Background(), "anything similar somewhere", sess.ID, false, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != OutcomeNeedsConfirmation {
		t.Fatalf("got outcome %q (confidence=%v), want %q", result.Outcome, result.ExpansionConfidence, OutcomeNeedsConfirmation)
	}
}

func TestHandleClarificationResponse(t *testing.T) {
	c := newSearch(&fakeProvider{}, &fakeLibrary{}, session.NewStore(30*time.Minute, 10, 100))

	cases := map[string]ClarificationIntent{
		"yes":     IntentConfirm,
		"Yep":     IntentConfirm,
		"no":      IntentReject,
		"nope":    IntentReject,
		"clarify": IntentNewContextQuery,
		"":        IntentNewContextQuery,
	}
	for input, want := range cases {
		if got := c.HandleClarificationResponse(input, "orig", "expanded"); got != want {
			t.Errorf("HandleClarificationResponse(%q) = %q, want %q", input, got, want)
		}
	}
}

type errorForTest string

func (e errorForTest) Error() string { return string(e) }
