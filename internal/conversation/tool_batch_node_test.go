package conversation

import (
	"testing"

	"github.com/mosiclaw/dialogue-orchestrator/internal/core"
	"github.com/mosiclaw/dialogue-orchestrator/internal/llmsvc"
	"github.com/mosiclaw/dialogue-orchestrator/internal/mcpintegration"
	"github.com/mosiclaw/dialogue-orchestrator/internal/orcherr"
	"github.com/mosiclaw/dialogue-orchestrator/internal/provider"
)

func TestToolBatchNodePrepRejectsUnknownTool(t *testing.T) {
	svc := llmsvc.New("fake", "m", &fakeProvider{})
	mcp := mcpintegration.New("unused.json", 4, nil) // no Discover call: empty catalog
	node := NewToolBatchNode(svc, mcp)

	state := &State{PendingToolCalls: []provider.ToolCall{{ID: "1", Name: "srv__nonexistent"}}}
	prep := node.Prep(state)

	if prep != nil {
		t.Fatalf("expected nil prep for an unknown tool, got %v", prep)
	}
	if state.FailureCode != orcherr.ForbiddenTools {
		t.Errorf("FailureCode = %q, want %q", state.FailureCode, orcherr.ForbiddenTools)
	}
}

func TestToolBatchNodePrepRejectsDenylisted(t *testing.T) {
	svc := llmsvc.New("fake", "m", &fakeProvider{})
	mcp := mcpintegration.New("unused.json", 4, map[string]bool{"srv__danger": true})
	node := NewToolBatchNode(svc, mcp)

	state := &State{PendingToolCalls: []provider.ToolCall{{ID: "1", Name: "srv__danger"}}}
	prep := node.Prep(state)

	if prep != nil {
		t.Fatalf("expected nil prep for a denylisted tool, got %v", prep)
	}
	if state.FailureCode != orcherr.ForbiddenTools {
		t.Errorf("FailureCode = %q, want %q", state.FailureCode, orcherr.ForbiddenTools)
	}
}

func TestToolBatchNodePrepEmptyPendingCalls(t *testing.T) {
	svc := llmsvc.New("fake", "m", &fakeProvider{})
	mcp := mcpintegration.New("unused.json", 4, nil)
	node := NewToolBatchNode(svc, mcp)

	state := &State{}
	if prep := node.Prep(state); prep != nil {
		t.Fatalf("expected nil prep for an empty pending batch, got %v", prep)
	}
}

func TestToolBatchNodePostAppendsMessagesAndLoopsBack(t *testing.T) {
	fp := &fakeProvider{}
	svc := llmsvc.New("fake", "m", fp)
	mcp := mcpintegration.New("unused.json", 4, nil)
	node := NewToolBatchNode(svc, mcp)

	calls := []provider.ToolCall{{ID: "1", Name: "srv__tool"}}
	results := []provider.ToolResult{{ToolCallID: "1", Success: true, Content: "42"}}

	state := &State{PendingToolCalls: calls}
	action := node.Post(state, []toolBatch{{calls: calls}}, results)

	if action != core.ActionDefault {
		t.Fatalf("action = %v, want ActionDefault", action)
	}
	if len(state.Messages) != 2 {
		t.Fatalf("Messages = %d entries, want 2 (assistant call + tool result)", len(state.Messages))
	}
	if len(state.AllToolCalls) != 1 || len(state.AllToolResults) != 1 {
		t.Fatalf("accumulators not extended: calls=%d results=%d", len(state.AllToolCalls), len(state.AllToolResults))
	}
	if state.PendingToolCalls != nil {
		t.Errorf("PendingToolCalls should be cleared after consumption, got %v", state.PendingToolCalls)
	}
}
