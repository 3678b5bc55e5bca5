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

const expandTemperature = 0.1
const expandMaxTokens = 200
const maxContextTurns = 3

const expansionSystemPrompt = `You are a financial query expander. Your job is to expand incomplete contextual queries into complete, standalone questions using conversation history.

ASSUMPTIONS:
- Assume market data and trading APIs are available
- Assume all mentioned assets are tradeable
- Use conversation context to understand what the user is referring to

TASK: Transform the contextual query into a complete, standalone question that includes:
- Specific assets/securities to analyze
- Clear strategy or analysis to perform
- Any necessary parameters or conditions
- Context from previous conversation

EXAMPLES:
- Context: "What if I buy AAPL when it drops 2%?"
- Contextual Query: "what about QQQ instead"
- Expanded: "What if I buy QQQ when it drops 2%?"

- Context: "Show correlation between SPY and VIX over last year"
- Contextual Query: "what about monthly timeframe"
- Expanded: "Show correlation between SPY and VIX over last year using monthly data"

Return only the complete expanded question, nothing else.`

// ExpansionResult is Expand's output.
type ExpansionResult struct {
	ExpandedQuery string
	Confidence    float64
	ContextText   string
}

// Expander implements C5's expand operation.
type Expander struct {
	svc *llmsvc.Service
}

func NewExpander(svc *llmsvc.Service) *Expander {
	return &Expander{svc: svc}
}

// Expand turns a contextual query into a standalone one using up to the
// last 3 turns of conversation history, and scores the result with the
// heuristic confidence model. On an LLM failure it falls back to
// pattern-based substitution against the most recent turn before
// giving up, mirroring expander.py's expand_query: _expand_with_llm,
// then _expand_with_patterns only if the LLM call itself failed.
func (e *Expander) Expand(ctx context.Context, contextualQuery string, turns []session.ConversationTurn) (ExpansionResult, error) {
	if len(turns) == 0 {
		return ExpansionResult{}, orcherr.New(orcherr.NoConversationHistory, "there is no prior question to refer to", fmt.Errorf("dialogue: Expand called with no conversation history"))
	}

	contextText := buildConversationContext(turns)

	expanded, llmErr := e.expandWithLLM(ctx, contextualQuery, contextText)
	if llmErr != nil {
		patternExpanded, ok := expandWithPatterns(contextualQuery, turns)
		if !ok {
			return ExpansionResult{}, orcherr.New(orcherr.ExpandFailed, "could not expand the question using prior context", llmErr)
		}
		expanded = patternExpanded
	}

	confidence := scoreExpansion(contextualQuery, expanded, contextText)
	return ExpansionResult{ExpandedQuery: expanded, Confidence: confidence, ContextText: contextText}, nil
}

func (e *Expander) expandWithLLM(ctx context.Context, contextualQuery, contextText string) (string, error) {
	userMessage := fmt.Sprintf("CONVERSATION CONTEXT:\n%s\n\nCONTEXTUAL QUERY: %q\n\nExpand this into a complete question:", contextText, contextualQuery)

	e.svc.SetSystemPrompt(expansionSystemPrompt)
	resp, err := e.svc.MakeRequest(ctx, provider.Request{
		Messages:    []provider.Message{{Role: provider.RoleUser, Content: userMessage}},
		MaxTokens:   expandMaxTokens,
		Temperature: expandTemperature,
	})
	if err != nil {
		return "", err
	}

	expanded := strings.TrimSpace(resp.Content)
	if idx := strings.Index(expanded, "?"); idx >= 0 {
		expanded = expanded[:idx+1]
	}
	return expanded, nil
}

var insteadOfPattern = regexp.MustCompile(`(?i)instead of (\w+)`)
var percentPattern = regexp.MustCompile(`\d+(?:\.\d+)?%`)
var timeWords = []string{"daily", "weekly", "monthly", "quarterly", "yearly"}

// expandWithPatterns ports _apply_substitution_patterns term-for-term:
// asset substitution for "what about X" / "instead of X" / "X to Y",
// and percentage/time-period substitution for "... instead". Returns
// (contextualQuery, false) when no pattern matches, matching the
// Python fallback's "no suitable pattern expansion found" outcome.
func expandWithPatterns(contextualQuery string, turns []session.ConversationTurn) (string, bool) {
	lastQuery := turns[len(turns)-1].UserQuery
	if lastQuery == "" {
		return contextualQuery, false
	}

	lower := strings.ToLower(contextualQuery)
	assets := assetsIn(contextualQuery)

	if strings.Contains(lower, "what about") && len(assets) > 0 {
		if m := assetTickerPattern.FindString(lastQuery); m != "" {
			return strings.Replace(lastQuery, m, assets[0], 1), true
		}
	}

	if strings.Contains(lower, "instead") && len(assets) > 0 {
		if m := insteadOfPattern.FindStringSubmatch(contextualQuery); m != nil {
			oldAsset := strings.ToUpper(m[1])
			if replaced := strings.ReplaceAll(lastQuery, oldAsset, assets[0]); replaced != lastQuery {
				return replaced, true
			}
		}
	}

	if strings.Contains(contextualQuery, " to ") && len(assets) >= 2 {
		lastAssets := assetTickerPattern.FindAllString(lastQuery, -1)
		if len(lastAssets) >= 2 {
			expanded := strings.Replace(lastQuery, lastAssets[0], assets[0], 1)
			expanded = strings.Replace(expanded, lastAssets[1], assets[1], 1)
			return expanded, true
		}
	}

	if strings.Contains(lower, "instead") {
		if m := percentPattern.FindStringSubmatch(contextualQuery); m != nil {
			return percentPattern.ReplaceAllString(lastQuery, m[0]), true
		}
		for _, word := range timeWords {
			if !strings.Contains(lower, word) {
				continue
			}
			lowerLast := strings.ToLower(lastQuery)
			for _, old := range timeWords {
				if strings.Contains(lowerLast, old) {
					return strings.Replace(lowerLast, old, word, 1), true
				}
			}
		}
	}

	return contextualQuery, false
}

// buildConversationContext renders up to the last 3 turns as
// "User: ... / Analysis: ..." blocks separated by "---".
func buildConversationContext(turns []session.ConversationTurn) string {
	recent := turns
	if len(recent) > maxContextTurns {
		recent = recent[len(recent)-maxContextTurns:]
	}

	var lines []string
	for i, t := range recent {
		if t.UserQuery != "" {
			lines = append(lines, "User: "+t.UserQuery)
		}
		if t.AnalysisSummary != "" {
			lines = append(lines, "Analysis: "+t.AnalysisSummary)
		}
		if i < len(recent)-1 {
			lines = append(lines, "---")
		}
	}
	return strings.Join(lines, "\n")
}

// scoreExpansion ports _heuristic_confidence_score term-for-term: a base
// score of 0.5, adjusted for expansion-quality, asset clarity, and
// context utilization, clamped to [0,1].
func scoreExpansion(original, expanded, contextText string) float64 {
	score := 0.5

	if strings.HasSuffix(expanded, "?") {
		score += 0.1
	}
	if float64(len(strings.Fields(expanded))) > float64(len(strings.Fields(original)))*1.5 {
		score += 0.2
	}
	if expanded != original {
		score += 0.1
	}

	originalAssets := assetsIn(original)
	expandedAssets := assetsIn(expanded)
	if len(expandedAssets) >= len(originalAssets) {
		score += 0.15
	}
	if len(expandedAssets) >= 2 {
		score += 0.15
	}

	if len(contextText) > 20 {
		score += 0.1
	}
	if wordSetsIntersect(contextText, expanded) {
		score += 0.2
	}

	if score > 1.0 {
		score = 1.0
	}
	if score < 0.0 {
		score = 0.0
	}
	return score
}

func wordSetsIntersect(a, b string) bool {
	if a == "" {
		return false
	}
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(a)) {
		set[w] = true
	}
	for _, w := range strings.Fields(strings.ToLower(b)) {
		if set[w] {
			return true
		}
	}
	return false
}
