// Package reuse implements the Reuse Evaluator (C8): given a user query
// and a ranked list of analysis candidates, ask the LLM whether an
// existing analysis function already answers the question, parsed with
// the Verdict Parser (C10). The evaluator never executes scripts — it
// only encodes that a reuse is appropriate and which candidate to pick.
package reuse

import (
	"context"
	"fmt"
	"strings"

	"github.com/mosiclaw/dialogue-orchestrator/internal/analysislib"
	"github.com/mosiclaw/dialogue-orchestrator/internal/llmsvc"
	"github.com/mosiclaw/dialogue-orchestrator/internal/provider"
	"github.com/mosiclaw/dialogue-orchestrator/internal/verdict"
)

// MinSimilarityThreshold is the lowest similarity at which a candidate
// is even offered to the LLM for a reuse judgment (spec §4.8).
const MinSimilarityThreshold = 0.6

const reuseSystemPrompt = `You are a financial analysis assistant deciding whether an existing analysis function already answers a user's question, rather than writing a new one.

Given the user's question and a ranked list of candidate analysis functions (with a similarity score and description each), decide whether one of them should be reused.

Respond with exactly one fenced JSON block containing a single key "reuse_decision" with this shape:
{
  "reuse_decision": {
    "should_reuse": true or false,
    "existing_function_name": "<name, required if should_reuse>",
    "confidence": <0..1, required if should_reuse>,
    "reason": "<short explanation>"
  }
}

If no candidate is a good match, return should_reuse: false.`

// Evaluator implements C8.
type Evaluator struct {
	svc *llmsvc.Service
}

func NewEvaluator(svc *llmsvc.Service) *Evaluator {
	return &Evaluator{svc: svc}
}

// Evaluate returns a ReuseDecision, or nil if the LLM formed no
// structured judgment (a verdict-parse miss is not an error: it means
// "no judgment", and the caller proceeds to the conversation engine).
func (e *Evaluator) Evaluate(ctx context.Context, query string, candidates []analysislib.Candidate) (*verdict.ReuseDecision, error) {
	eligible := make([]analysislib.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Similarity >= MinSimilarityThreshold {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	userMessage := buildUserMessage(query, eligible)

	e.svc.SetSystemPrompt(reuseSystemPrompt)
	resp, err := e.svc.MakeRequest(ctx, provider.Request{
		Messages: []provider.Message{{Role: provider.RoleUser, Content: userMessage}},
	})
	if err != nil {
		return nil, fmt.Errorf("reuse: evaluate: %w", err)
	}

	v, ok := verdict.Parse(resp.Content)
	if !ok || v.Kind != verdict.KindReuseDecision {
		return nil, nil
	}
	return v.ReuseDecision, nil
}

func buildUserMessage(query string, candidates []analysislib.Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User question: %q\n\nCandidate analysis functions:\n", query)
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s (similarity=%.2f)\n   question: %q\n   description: %s\n", i+1, c.FunctionName, c.Similarity, c.Question, c.Description)
	}
	return b.String()
}
