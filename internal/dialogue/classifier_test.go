package dialogue

import (
	"testing"

	"github.com/mosiclaw/dialogue-orchestrator/internal/session"
)

func TestClassifyWithPatternsContextual(t *testing.T) {
	got := classifyWithPatterns("what about QQQ instead")
	if got.Method != "pattern_matching" {
		t.Fatalf("got method %q, want pattern_matching", got.Method)
	}
	if got.Confidence > 0.8 {
		t.Fatalf("got confidence %v, want capped at 0.8", got.Confidence)
	}
}

func TestClassifyWithPatternsPercentMatchesParameter(t *testing.T) {
	got := classifyWithPatterns("Backtest a strategy buying TSLA on 5% drops")
	// "%", "drop" style wording isn't in the contextual/comparative sets but
	// "%" is in the parameter set, so this should match parameter.
	if got.QueryType != session.QueryParameter {
		t.Fatalf("got query type %q, want %q", got.QueryType, session.QueryParameter)
	}
}

func TestAssetsInDeduplicatesInOrder(t *testing.T) {
	got := assetsIn("compare AAPL to AAPL and then MSFT")
	want := []string{"AAPL", "MSFT"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestValidateCompletenessMissingBoth(t *testing.T) {
	result := ValidateCompleteness("can you analyze this?")
	if result.Complete {
		t.Fatal("expected incomplete result")
	}
	if len(result.Missing) != 2 {
		t.Fatalf("got %d missing items, want 2: %v", len(result.Missing), result.Missing)
	}
}

func TestValidateCompletenessComplete(t *testing.T) {
	result := ValidateCompleteness("Show me correlation between AAPL and SPY")
	if !result.Complete {
		t.Fatalf("expected complete result, got missing=%v", result.Missing)
	}
}

func TestScoreExpansionRewardsContextUtilization(t *testing.T) {
	context := "User: What if I buy AAPL when it drops 2%?"
	expanded := "What if I buy QQQ when it drops 2%?"
	score := scoreExpansion("what about QQQ instead", expanded, context)
	if score <= 0.5 {
		t.Fatalf("expected score above base 0.5, got %v", score)
	}
	if score > 1.0 {
		t.Fatalf("expected score clamped to 1.0, got %v", score)
	}
}
