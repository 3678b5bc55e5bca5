package conversation

import (
	"context"
	"testing"

	"github.com/mosiclaw/dialogue-orchestrator/internal/llmsvc"
	"github.com/mosiclaw/dialogue-orchestrator/internal/mcpintegration"
	"github.com/mosiclaw/dialogue-orchestrator/internal/orcherr"
	"github.com/mosiclaw/dialogue-orchestrator/internal/provider"
)

func newTestEngine(fp *fakeProvider, maxIterations, maxToolCalls int) *Engine {
	svc := llmsvc.New("fake", "test-model", fp)
	mcp := mcpintegration.New("unused.json", 4, nil)
	return New(svc, mcp, "test-model", map[string]bool{"get_function_docstring": true}, maxIterations, maxToolCalls)
}

func TestEngineRunReuseVerdictTerminates(t *testing.T) {
	fp := &fakeProvider{script: []scriptedCall{
		{resp: provider.Response{Content: "```json\n{\"reuse_decision\":{\"should_reuse\":true,\"existing_function_name\":\"analyze_revenue\",\"confidence\":0.9,\"reason\":\"matches\"}}\n```"}},
	}}
	e := newTestEngine(fp, 20, 64)

	v, failure := e.Run(context.Background(), Request{Prompt: "What was revenue last quarter?"})
	if failure != nil {
		t.Fatalf("unexpected failure: %v", failure)
	}
	if v == nil || v.ReuseDecision == nil || !v.ReuseDecision.ShouldReuse {
		t.Fatalf("expected a should_reuse verdict, got %+v", v)
	}
}

func TestEngineRunScriptGenerationSuccess(t *testing.T) {
	fp := &fakeProvider{script: []scriptedCall{
		{resp: provider.Response{Content: "```json\n{\"script_generation\":{\"status\":\"success\",\"script_name\":\"rev_analysis.py\",\"mcp_calls\":[]}}\n```"}},
	}}
	e := newTestEngine(fp, 20, 64)

	v, failure := e.Run(context.Background(), Request{Prompt: "analyze revenue"})
	if failure != nil {
		t.Fatalf("unexpected failure: %v", failure)
	}
	if v == nil || v.ScriptGeneration == nil || v.ScriptGeneration.Status != "success" {
		t.Fatalf("expected a successful script_generation verdict, got %+v", v)
	}
}

func TestEngineRunScriptGenerationFailure(t *testing.T) {
	fp := &fakeProvider{script: []scriptedCall{
		{resp: provider.Response{Content: "```json\n{\"script_generation\":{\"status\":\"failed\",\"final_error\":\"ticker not found\"}}\n```"}},
	}}
	e := newTestEngine(fp, 20, 64)

	_, failure := e.Run(context.Background(), Request{Prompt: "analyze XYZ"})
	if failure == nil {
		t.Fatal("expected a failure")
	}
	if failure.Code != orcherr.ScriptGenerationFailed {
		t.Errorf("code = %q, want %q", failure.Code, orcherr.ScriptGenerationFailed)
	}
}

func TestEngineRunNoStructuredResponse(t *testing.T) {
	fp := &fakeProvider{script: []scriptedCall{
		{resp: provider.Response{Content: "Sure, here's a friendly answer with no verdict block."}},
	}}
	e := newTestEngine(fp, 20, 64)

	_, failure := e.Run(context.Background(), Request{Prompt: "hello"})
	if failure == nil {
		t.Fatal("expected a failure")
	}
	if failure.Code != orcherr.NoStructuredResponse {
		t.Errorf("code = %q, want %q", failure.Code, orcherr.NoStructuredResponse)
	}
}

func TestEngineRunUnknownToolAbortsWithForbiddenTools(t *testing.T) {
	// Every round returns a tool call with an unknown tool name, so
	// ToolBatchNode.Prep rejects it before any network I/O would occur —
	// this instead exercises the ForbiddenTools short-circuit, the
	// cheapest way to end a loop deterministically without a live MCP
	// server. A dedicated iteration-budget test lives in dispatch_node_test.go.
	fp := &fakeProvider{script: []scriptedCall{
		{resp: provider.Response{ToolCalls: []provider.ToolCall{{ID: "1", Name: "nonexistent__tool"}}}},
	}}
	e := newTestEngine(fp, 20, 64)

	_, failure := e.Run(context.Background(), Request{Prompt: "do something"})
	if failure == nil {
		t.Fatal("expected a failure")
	}
	if failure.Code != orcherr.ForbiddenTools {
		t.Errorf("code = %q, want %q", failure.Code, orcherr.ForbiddenTools)
	}
}

func TestEngineRunBuildsInitialMessagesWithContextBlocks(t *testing.T) {
	fp := &fakeProvider{script: []scriptedCall{
		{resp: provider.Response{Content: "```json\n{\"reuse_decision\":{\"should_reuse\":true,\"existing_function_name\":\"f\",\"confidence\":0.8,\"reason\":\"ok\"}}\n```"}},
	}}
	e := newTestEngine(fp, 20, 64)

	_, failure := e.Run(context.Background(), Request{
		Prompt:        "What about Q2?",
		ContextBlocks: []string{"Prior turn: asked about AAPL revenue."},
	})
	if failure != nil {
		t.Fatalf("unexpected failure: %v", failure)
	}
}
