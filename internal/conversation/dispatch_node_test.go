package conversation

import (
	"context"
	"testing"

	"github.com/mosiclaw/dialogue-orchestrator/internal/core"
	"github.com/mosiclaw/dialogue-orchestrator/internal/llmsvc"
	"github.com/mosiclaw/dialogue-orchestrator/internal/orcherr"
	"github.com/mosiclaw/dialogue-orchestrator/internal/provider"
)

func TestDispatchNodePrepIterationBudget(t *testing.T) {
	svc := llmsvc.New("fake", "m", &fakeProvider{})
	d := NewDispatchNode(svc, 2, 64)

	state := &State{IterationCount: 2}
	prep := d.Prep(state)
	if prep != nil {
		t.Fatalf("expected nil prep once the iteration budget is exhausted, got %v", prep)
	}
	if state.FailureCode != orcherr.IterationBudget {
		t.Errorf("FailureCode = %q, want %q", state.FailureCode, orcherr.IterationBudget)
	}
}

func TestDispatchNodePostToolCallBudgetExceeded(t *testing.T) {
	svc := llmsvc.New("fake", "m", &fakeProvider{})
	d := NewDispatchNode(svc, 20, 5)

	state := &State{ToolCallCount: 4}
	outcome := dispatchOutcome{response: provider.Response{ToolCalls: []provider.ToolCall{
		{ID: "a", Name: "srv__tool"}, {ID: "b", Name: "srv__tool"},
	}}}

	action := d.Post(state, []provider.Request{{}}, outcome)
	if action != core.ActionFailure {
		t.Fatalf("action = %v, want ActionFailure", action)
	}
	if state.FailureCode != orcherr.IterationBudget {
		t.Errorf("FailureCode = %q, want %q", state.FailureCode, orcherr.IterationBudget)
	}
}

func TestDispatchNodePostRoutesToolCalls(t *testing.T) {
	svc := llmsvc.New("fake", "m", &fakeProvider{})
	d := NewDispatchNode(svc, 20, 64)

	state := &State{}
	calls := []provider.ToolCall{{ID: "a", Name: "srv__tool"}}
	action := d.Post(state, []provider.Request{{}}, dispatchOutcome{response: provider.Response{ToolCalls: calls}})

	if action != core.ActionTool {
		t.Fatalf("action = %v, want ActionTool", action)
	}
	if len(state.PendingToolCalls) != 1 {
		t.Fatalf("PendingToolCalls = %v, want 1 entry", state.PendingToolCalls)
	}
}

func TestDispatchNodePostProviderError(t *testing.T) {
	svc := llmsvc.New("fake", "m", &fakeProvider{})
	d := NewDispatchNode(svc, 20, 64)

	state := &State{}
	action := d.Post(state, []provider.Request{{}}, dispatchOutcome{err: context.DeadlineExceeded})

	if action != core.ActionFailure {
		t.Fatalf("action = %v, want ActionFailure", action)
	}
	if state.FailureCode != orcherr.ProviderHTTPError {
		t.Errorf("FailureCode = %q, want %q", state.FailureCode, orcherr.ProviderHTTPError)
	}
}
