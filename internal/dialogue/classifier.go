// Package dialogue implements the Dialogue Context Service (C5):
// LLM-mediated query classification and contextual expansion, plus the
// completeness pre-gate supplemented from original_source/.../dialogue/
// context/validator.py. Ported term-for-term (system prompts,
// temperature, max_tokens, heuristic arithmetic) from
// original_source/backend/scriptEdition/apiServer/dialogue/context/
// {classifier,expander,service}.py.
package dialogue

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/mosiclaw/dialogue-orchestrator/internal/llmsvc"
	"github.com/mosiclaw/dialogue-orchestrator/internal/orcherr"
	"github.com/mosiclaw/dialogue-orchestrator/internal/provider"
	"github.com/mosiclaw/dialogue-orchestrator/internal/session"
)

const classifyTemperature = 0.1

const classificationSystemPromptWithHistory = `You are a financial query classifier. Your job is to classify user inputs based on their relationship to previous context.

ASSUMPTIONS:
- Assume market data and APIs are available for analysis
- Assume basic financial knowledge (assets, strategies, indicators)
- Focus on whether the query is self-contained or references previous context

Classification options:
A) COMPLETE - standalone question with all context (e.g., "What happens if I buy AAPL when it drops 2%?")
B) CONTEXTUAL - refers to previous context (e.g., "what about QQQ to SPY", "same strategy with different assets")
C) COMPARATIVE - comparing to previous (e.g., "how does that compare to...", "what's the difference")
D) PARAMETER - changing numbers/parameters (e.g., "what if 3% instead", "try 5% threshold")

Return only: A, B, C, or D`

const classificationSystemPromptFirstTurn = `You are a financial query classifier for first-time queries in a conversation.

ASSUMPTIONS:
- Assume market data and trading APIs are available
- Assume access to historical price data, technical indicators, and fundamental data
- Assume ability to perform backtesting and strategy analysis
- Focus on whether the standalone query contains sufficient information

A query is COMPLETE if it specifies:
- What assets/securities to analyze
- What strategy or analysis to perform
- Any necessary parameters or conditions

Examples of COMPLETE queries:
- "What if I buy QQQ into VOO every month when rolling monthly return goes below -2%?"
- "Show me correlation between AAPL and SPY over the last year"
- "Backtest a strategy buying TSLA on 5% drops"

Examples of INCOMPLETE queries:
- "What about the correlation?" (no assets specified)
- "Can you analyze this?" (no strategy specified)
- "What if 3% instead?" (no context about what strategy)

This is the first query in the conversation. Classify as:
A) COMPLETE - has enough context to answer
B) INCOMPLETE - needs more information

Return only: A or B`

// ClassificationResult is Classify's output.
type ClassificationResult struct {
	QueryType  session.QueryType
	Confidence float64
	Method     string // "llm" | "pattern_matching"
}

// Classifier implements C5's classify operation.
type Classifier struct {
	svc *llmsvc.Service
}

func NewClassifier(svc *llmsvc.Service) *Classifier {
	return &Classifier{svc: svc}
}

// Classify determines the query type of currentQuery relative to
// lastQuery (empty when this is the first turn in the session). Any
// out-of-alphabet LLM response is a hard failure — the spec forbids
// silently defaulting — and the caller falls back to pattern matching,
// capped at confidence 0.8.
func (c *Classifier) Classify(ctx context.Context, currentQuery, lastQuery string) (ClassificationResult, error) {
	result, err := c.classifyWithLLM(ctx, currentQuery, lastQuery)
	if err == nil {
		return result, nil
	}
	return classifyWithPatterns(currentQuery), nil
}

func (c *Classifier) classifyWithLLM(ctx context.Context, currentQuery, lastQuery string) (ClassificationResult, error) {
	var systemPrompt, userMessage string
	reducedAlphabet := lastQuery == ""

	if reducedAlphabet {
		systemPrompt = classificationSystemPromptFirstTurn
		userMessage = fmt.Sprintf("User input: %q\n\nClassify this query:", currentQuery)
	} else {
		systemPrompt = classificationSystemPromptWithHistory
		userMessage = fmt.Sprintf("Previous question: %q\nCurrent input: %q\n\nClassify the current input:", lastQuery, currentQuery)
	}

	maxTokens := 200
	if reducedAlphabet {
		maxTokens = 10
	}

	// c.svc owns a dedicated small-model adapter instance used only for
	// classification/expansion calls, so replacing its system prompt
	// per-call (rather than concatenating it into the user message) is
	// safe and lets provider-level caching annotate the system block
	// independently, per _make_cached_llm_call's separate-message shape.
	c.svc.SetSystemPrompt(systemPrompt)
	resp, err := c.svc.MakeRequest(ctx, provider.Request{
		Messages: []provider.Message{
			{Role: provider.RoleUser, Content: userMessage},
		},
		MaxTokens:   maxTokens,
		Temperature: classifyTemperature,
	})
	if err != nil {
		return ClassificationResult{}, orcherr.New(orcherr.ClassifyFailed, "could not classify the question", err)
	}

	response := strings.ToUpper(strings.TrimSpace(resp.Content))

	var queryType session.QueryType
	if reducedAlphabet {
		switch response {
		case "A":
			queryType = session.QueryStandalone
		case "B":
			// INCOMPLETE on the first turn has no dedicated QueryType in the
			// data model; treat it as CONTEXTUAL so C7 routes it to the
			// no-history short-circuit, which correctly rejects it (there is
			// no prior turn to expand against).
			queryType = session.QueryContextual
		default:
			return ClassificationResult{}, orcherr.New(orcherr.ClassifyFailed, "could not classify the question", fmt.Errorf("dialogue: unmapped first-turn classification response %q", response))
		}
	} else {
		switch response {
		case "A":
			queryType = session.QueryStandalone
		case "B":
			queryType = session.QueryContextual
		case "C":
			queryType = session.QueryComparative
		case "D":
			queryType = session.QueryParameter
		default:
			return ClassificationResult{}, orcherr.New(orcherr.ClassifyFailed, "could not classify the question", fmt.Errorf("dialogue: unmapped classification response %q", response))
		}
	}

	return ClassificationResult{QueryType: queryType, Confidence: 0.9, Method: "llm"}, nil
}

var fallbackPatterns = map[session.QueryType][]string{
	session.QueryContextual: {
		"what about", "how about", "try with", "same with",
		"different assets", "switch to", "instead of",
	},
	session.QueryComparative: {
		"compare", "vs", "versus", "difference", "better than",
		"how does that", "which is better",
	},
	session.QueryParameter: {
		"what if", "try", "instead", "%", "percent", "threshold",
		"change", "different", "higher", "lower",
	},
}

var patternOrder = []session.QueryType{session.QueryContextual, session.QueryComparative, session.QueryParameter}

var patternConfidence = map[session.QueryType]float64{
	session.QueryContextual:  0.8,
	session.QueryComparative: 0.7,
	session.QueryParameter:   0.6,
}

func classifyWithPatterns(query string) ClassificationResult {
	lower := strings.ToLower(query)
	for _, qt := range patternOrder {
		for _, pattern := range fallbackPatterns[qt] {
			if strings.Contains(lower, pattern) {
				return ClassificationResult{QueryType: qt, Confidence: patternConfidence[qt], Method: "pattern_matching"}
			}
		}
	}
	return ClassificationResult{QueryType: session.QueryStandalone, Confidence: 0.9, Method: "pattern_matching"}
}

var assetTickerPattern = regexp.MustCompile(`\b[A-Z]{2,5}\b`)

// assetsIn extracts candidate asset tickers, deduplicated in first-seen order.
func assetsIn(query string) []string {
	matches := assetTickerPattern.FindAllString(query, -1)
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}
