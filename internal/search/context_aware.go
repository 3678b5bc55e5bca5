// Package search implements Context-Aware Search (C7): the per-question
// entry point that resolves a session, classifies the query, and either
// searches directly or expands a contextual query before searching —
// directly grounded on original_source/backend/scriptEdition/apiServer/
// dialogue/search/context_aware.py's ContextAwareSearch.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/mosiclaw/dialogue-orchestrator/internal/analysislib"
	"github.com/mosiclaw/dialogue-orchestrator/internal/dialogue"
	"github.com/mosiclaw/dialogue-orchestrator/internal/session"
)

const (
	confidenceThresholdAuto    = 0.8
	confidenceThresholdConfirm = 0.5
	defaultSimilarityThreshold = 0.3
	defaultTopK                = 5
)

// Outcome classifies what Search returned.
type Outcome string

const (
	OutcomeProceed            Outcome = "proceed"
	OutcomeNeedsConfirmation  Outcome = "needs_confirmation"
	OutcomeNeedsClarification Outcome = "needs_clarification"
)

// ClarificationIntent is handle_clarification_response's re-classification
// of the user's reply to a NEEDS_CONFIRMATION/NEEDS_CLARIFICATION envelope.
type ClarificationIntent string

const (
	IntentConfirm          ClarificationIntent = "confirm"
	IntentReject           ClarificationIntent = "reject"
	IntentNewContextQuery  ClarificationIntent = "new_contextual_query"
)

// Result is search_with_context's output envelope.
type Result struct {
	Outcome             Outcome
	SessionID           string
	TurnID              string
	QueryType           session.QueryType
	OriginalQuery       string
	ExpandedQuery       string
	ExpansionConfidence float64
	Candidates          []analysislib.Candidate
	FoundSimilar        bool
	AnalysisSummary     string
	ContextUsed         bool
	Message             string
	Options             []string
}

// ContextAwareSearch implements C7.
type ContextAwareSearch struct {
	library    analysislib.Library
	sessions   *session.Store
	classifier *dialogue.Classifier
	expander   *dialogue.Expander

	// EnableCompletenessGate turns on the supplemented pre-classification
	// completeness short-circuit (§2.3); off by default to match the
	// distilled spec's baseline behavior exactly.
	EnableCompletenessGate bool
}

func New(library analysislib.Library, sessions *session.Store, classifier *dialogue.Classifier, expander *dialogue.Expander) *ContextAwareSearch {
	return &ContextAwareSearch{library: library, sessions: sessions, classifier: classifier, expander: expander}
}

// SearchWithContext is the main entry point. sessionID may be empty (a
// new session is created); autoExpand and similarityThreshold mirror the
// Python original's optional parameters (similarityThreshold <= 0 means
// "use the default").
func (c *ContextAwareSearch) SearchWithContext(ctx context.Context, query, sessionID string, autoExpand bool, similarityThreshold float64) (Result, error) {
	if similarityThreshold <= 0 {
		similarityThreshold = defaultSimilarityThreshold
	}

	sess := c.sessions.GetOrCreate(sessionID)

	if c.EnableCompletenessGate {
		if cr := dialogue.ValidateCompleteness(query); !cr.Complete {
			return Result{
				Outcome:       OutcomeNeedsClarification,
				SessionID:     sess.ID,
				OriginalQuery: query,
				Message:       fmt.Sprintf("I need more detail to answer that: %s", cr.Reason),
			}, nil
		}
	}

	lastQuery := ""
	if last, ok := sess.LastTurn(); ok {
		lastQuery = last.UserQuery
	}

	classification, err := c.classifier.Classify(ctx, query, lastQuery)
	if err != nil {
		return needsClarificationResult(sess.ID, query, fmt.Sprintf("I couldn't classify that question: %v", err)), nil
	}

	if classification.QueryType == session.QueryStandalone {
		return c.handleCompleteQuery(ctx, query, sess, similarityThreshold)
	}
	return c.handleContextualQuery(ctx, query, sess, classification.QueryType, autoExpand, similarityThreshold)
}

func (c *ContextAwareSearch) handleCompleteQuery(ctx context.Context, query string, sess *session.Session, similarityThreshold float64) (Result, error) {
	candidates, err := c.library.SearchSimilar(ctx, query, defaultTopK, similarityThreshold)
	if err != nil {
		return Result{}, fmt.Errorf("search: similarity search: %w", err)
	}

	summary := summarize(candidates)
	turn, err := c.sessions.AppendTurn(sess.ID, session.ConversationTurn{
		UserQuery:       query,
		QueryType:       session.QueryStandalone,
		AnalysisSummary: summary,
		ContextUsed:     false,
	})
	if err != nil {
		return Result{}, fmt.Errorf("search: append turn: %w", err)
	}

	return Result{
		Outcome:         OutcomeProceed,
		SessionID:       sess.ID,
		TurnID:          turn.TurnID,
		QueryType:       session.QueryStandalone,
		OriginalQuery:   query,
		Candidates:      candidates,
		FoundSimilar:    len(candidates) > 0,
		AnalysisSummary: summary,
		ContextUsed:     false,
	}, nil
}

func (c *ContextAwareSearch) handleContextualQuery(ctx context.Context, query string, sess *session.Session, queryType session.QueryType, autoExpand bool, similarityThreshold float64) (Result, error) {
	if len(sess.Turns) == 0 {
		return needsClarificationResult(sess.ID, query, "That refers to something earlier, but this is the first question in the conversation — could you ask a complete question first?"), nil
	}

	expansion, err := c.expander.Expand(ctx, query, sess.Turns)
	if err != nil {
		return needsClarificationResult(sess.ID, query, fmt.Sprintf("I couldn't figure out what you meant by '%s' — could you ask a complete question?", query)), nil
	}

	needsConfirmation := !autoExpand &&
		expansion.Confidence < confidenceThresholdAuto &&
		expansion.Confidence >= confidenceThresholdConfirm

	if needsConfirmation {
		return Result{
			Outcome:             OutcomeNeedsConfirmation,
			SessionID:           sess.ID,
			OriginalQuery:       query,
			ExpandedQuery:       expansion.ExpandedQuery,
			ExpansionConfidence: expansion.Confidence,
			Message:             fmt.Sprintf("I interpreted your query as: '%s'. Is this correct?", expansion.ExpandedQuery),
			Options:             []string{"yes", "no", "clarify"},
		}, nil
	}

	if expansion.Confidence < confidenceThresholdConfirm {
		return Result{
			Outcome:             OutcomeNeedsClarification,
			SessionID:           sess.ID,
			OriginalQuery:       query,
			ExpandedQuery:       expansion.ExpandedQuery,
			ExpansionConfidence: expansion.Confidence,
			Message:             fmt.Sprintf("I'm not sure how to interpret '%s'. Did you mean something like: '%s'?", query, expansion.ExpandedQuery),
		}, nil
	}

	candidates, err := c.library.SearchSimilar(ctx, expansion.ExpandedQuery, defaultTopK, similarityThreshold)
	if err != nil {
		return Result{}, fmt.Errorf("search: similarity search: %w", err)
	}

	summary := summarize(candidates)
	turn, err := c.sessions.AppendTurn(sess.ID, session.ConversationTurn{
		UserQuery:           query,
		QueryType:           queryType,
		ExpandedQuery:       expansion.ExpandedQuery,
		AnalysisSummary:     summary,
		ContextUsed:         true,
		ExpansionConfidence: expansion.Confidence,
	})
	if err != nil {
		return Result{}, fmt.Errorf("search: append turn: %w", err)
	}

	return Result{
		Outcome:             OutcomeProceed,
		SessionID:           sess.ID,
		TurnID:              turn.TurnID,
		QueryType:           queryType,
		OriginalQuery:       query,
		ExpandedQuery:       expansion.ExpandedQuery,
		ExpansionConfidence: expansion.Confidence,
		Candidates:          candidates,
		FoundSimilar:        len(candidates) > 0,
		AnalysisSummary:     summary,
		ContextUsed:         true,
	}, nil
}

// HandleClarificationResponse re-classifies the user's reply to a
// NEEDS_CONFIRMATION/NEEDS_CLARIFICATION envelope as confirm, reject or
// a new query. It only returns that intent; it does not itself re-run
// the search or record a turn.
func (c *ContextAwareSearch) HandleClarificationResponse(userResponse, original, expanded string) ClarificationIntent {
	switch normalizeYesNo(userResponse) {
	case "yes":
		return IntentConfirm
	case "no":
		return IntentReject
	default:
		return IntentNewContextQuery
	}
}

func normalizeYesNo(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "yeah", "yep", "correct", "confirm":
		return "yes"
	case "n", "no", "nope", "incorrect", "wrong":
		return "no"
	default:
		return ""
	}
}

// needsClarificationResult builds the NEEDS_CLARIFICATION envelope used
// whenever classification or expansion cannot proceed — no turn is
// recorded for any of these paths, matching B1's "no turn recorded"
// requirement.
func needsClarificationResult(sessionID, query, message string) Result {
	return Result{
		Outcome:       OutcomeNeedsClarification,
		SessionID:     sessionID,
		OriginalQuery: query,
		Message:       message,
	}
}

func summarize(candidates []analysislib.Candidate) string {
	if len(candidates) == 0 {
		return ""
	}
	name := candidates[0].FunctionName
	if name == "" {
		return "Financial analysis"
	}
	return name
}

// GetSessionContext exposes conversation context for debugging, matching
// the Python original's get_session_context.
func (c *ContextAwareSearch) GetSessionContext(sessionID string) (*session.Session, bool) {
	return c.sessions.Get(sessionID)
}
