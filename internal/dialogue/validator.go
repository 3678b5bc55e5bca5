package dialogue

import "strings"

// CompletenessResult is ValidateCompleteness's output.
type CompletenessResult struct {
	Complete bool
	Missing  []string
	Reason   string
}

var assetKeywords = []string{
	"aapl", "msft", "tsla", "googl", "meta", "nvda", "amzn", "spy", "qqq", "voo", "vti",
	"stock", "stocks", "etf", "etfs", "bond", "bonds", "crypto", "bitcoin", "ethereum",
	"portfolio", "portfolios", "asset", "assets", "securities", "investment", "investments",
	"sp500", "nasdaq", "dow", "$", "usd",
}

var analysisKeywords = []string{
	"correlation", "correlated", "correlation coefficient",
	"volatility", "vol", "standard deviation", "variance",
	"return", "returns", "performance", "gain", "loss",
	"strategy", "backtest", "trade", "buy", "sell",
	"rebalance", "rebalancing", "allocation",
	"price", "prices", "pricing",
	"momentum", "trend", "trending",
	"dividend", "dividends", "yield",
}

// ValidateCompleteness is the completeness pre-gate supplemented from
// original_source/.../dialogue/context/validator.py's
// CompletenessValidator. It is an early exit only: a query missing an
// asset token, an analysis-type token, or both is reported incomplete
// and can short-circuit straight to a
// NEEDS_CLARIFICATION envelope in C7 before spending an LLM call on
// classification; it changes no invariant in §8.
func ValidateCompleteness(query string) CompletenessResult {
	lower := strings.ToLower(strings.TrimSpace(query))
	if lower == "" {
		return CompletenessResult{Complete: false, Missing: []string{"query is empty"}, Reason: "Empty query"}
	}

	hasAssets := containsAny(lower, assetKeywords)
	hasAnalysis := containsAny(lower, analysisKeywords)

	var missing []string
	if !hasAssets {
		missing = append(missing, "assets/securities (e.g., AAPL, SPY, portfolio)")
	}
	if !hasAnalysis {
		missing = append(missing, "analysis type (e.g., correlation, returns, volatility)")
	}

	if len(missing) == 0 {
		return CompletenessResult{Complete: true, Reason: "Query is complete"}
	}
	return CompletenessResult{Complete: false, Missing: missing, Reason: "Missing: " + strings.Join(missing, ", ")}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
