package verdict

import "testing"

func TestParseReuseDecisionFenced(t *testing.T) {
	text := "Here is my decision:\n```json\n{\"reuse_decision\": {\"should_reuse\": true, \"existing_function_name\": \"backtest_sma\", \"confidence\": 0.9, \"reason\": \"same strategy\"}}\n```\nDone."

	v, ok := Parse(text)
	if !ok {
		t.Fatal("expected a verdict to be parsed")
	}
	if v.Kind != KindReuseDecision {
		t.Fatalf("got kind %q, want %q", v.Kind, KindReuseDecision)
	}
	if !v.ReuseDecision.ShouldReuse {
		t.Fatal("expected should_reuse=true")
	}
	if v.ReuseDecision.ExistingFunctionName != "backtest_sma" {
		t.Fatalf("got function name %q", v.ReuseDecision.ExistingFunctionName)
	}
}

func TestParseReuseDecisionRejectsMissingFunctionName(t *testing.T) {
	text := `{"reuse_decision": {"should_reuse": true, "confidence": 0.9}}`

	if _, ok := Parse(text); ok {
		t.Fatal("expected should_reuse=true with no existing_function_name to be rejected")
	}
}

func TestParseReuseDecisionRejectsZeroConfidence(t *testing.T) {
	text := `{"reuse_decision": {"should_reuse": true, "existing_function_name": "foo", "confidence": 0}}`

	if _, ok := Parse(text); ok {
		t.Fatal("expected should_reuse=true with zero confidence to be rejected")
	}
}

func TestParseReuseDecisionFalseNeedsNoFields(t *testing.T) {
	text := `{"reuse_decision": {"should_reuse": false, "reason": "no match found"}}`

	v, ok := Parse(text)
	if !ok {
		t.Fatal("expected should_reuse=false to parse without function_name/confidence")
	}
	if v.ReuseDecision.ShouldReuse {
		t.Fatal("expected should_reuse=false")
	}
}

func TestParseScriptGenerationSuccess(t *testing.T) {
	text := "```\n{\"script_generation\": {\"status\": \"success\", \"script_name\": \"sma_cross.py\", \"analysis_description\": \"SMA crossover backtest\", \"mcp_calls\": []}}\n```"

	v, ok := Parse(text)
	if !ok {
		t.Fatal("expected a verdict to be parsed")
	}
	if v.Kind != KindScriptGeneration {
		t.Fatalf("got kind %q, want %q", v.Kind, KindScriptGeneration)
	}
	if v.ScriptGeneration.ScriptName != "sma_cross.py" {
		t.Fatalf("got script name %q", v.ScriptGeneration.ScriptName)
	}
	if v.ScriptGeneration.MCPCalls == nil {
		t.Fatal("expected a non-nil (possibly empty) mcp_calls slice")
	}
}

func TestParseScriptGenerationSuccessRequiresScriptName(t *testing.T) {
	text := `{"script_generation": {"status": "success", "analysis_description": "x", "mcp_calls": []}}`

	if _, ok := Parse(text); ok {
		t.Fatal("expected status=success with no script_name to be rejected")
	}
}

func TestParseScriptGenerationSuccessRequiresMCPCalls(t *testing.T) {
	text := `{"script_generation": {"status": "success", "script_name": "x.py", "analysis_description": "x"}}`

	if _, ok := Parse(text); ok {
		t.Fatal("expected status=success with nil mcp_calls to be rejected")
	}
}

func TestParseScriptGenerationFailedNeedsNoFurtherFields(t *testing.T) {
	text := `{"script_generation": {"status": "failed", "final_error": "could not locate a fetch_prices tool", "analysis_description": ""}}`

	v, ok := Parse(text)
	if !ok {
		t.Fatal("expected status=failed to parse with no script_name/mcp_calls")
	}
	if v.ScriptGeneration.FinalError == "" {
		t.Fatal("expected final_error to be preserved")
	}
}

func TestParseScriptGenerationRejectsUnknownStatus(t *testing.T) {
	text := `{"script_generation": {"status": "pending", "analysis_description": "x"}}`

	if _, ok := Parse(text); ok {
		t.Fatal("expected an unrecognized status to be rejected")
	}
}

func TestParseProseOnlyReturnsFalse(t *testing.T) {
	text := "I'm still thinking about which tool to call next, let me check the docs first."

	if _, ok := Parse(text); ok {
		t.Fatal("expected prose with no fenced or bare JSON verdict to be rejected")
	}
}

func TestParseMalformedJSONIgnoredNotErrored(t *testing.T) {
	text := "```json\n{\"reuse_decision\": {\"should_reuse\": true,\n```"

	if _, ok := Parse(text); ok {
		t.Fatal("expected malformed JSON to be treated as absence of a verdict, not parsed")
	}
}

func TestParsePrefersFirstRecognizedFencedBlock(t *testing.T) {
	text := "```json\n{\"note\": \"not a verdict\"}\n```\nThen:\n```json\n{\"script_generation\": {\"status\": \"failed\", \"analysis_description\": \"\"}}\n```"

	v, ok := Parse(text)
	if !ok {
		t.Fatal("expected the second fenced block to be recognized as a verdict")
	}
	if v.Kind != KindScriptGeneration {
		t.Fatalf("got kind %q, want %q", v.Kind, KindScriptGeneration)
	}
}

func TestParseBareJSONWithNoFence(t *testing.T) {
	text := `{"script_generation": {"status": "failed", "analysis_description": "no tool found"}}`

	v, ok := Parse(text)
	if !ok {
		t.Fatal("expected bare (unfenced) JSON to parse")
	}
	if v.ScriptGeneration.Status != "failed" {
		t.Fatalf("got status %q", v.ScriptGeneration.Status)
	}
}
