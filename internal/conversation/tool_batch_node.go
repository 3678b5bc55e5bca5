package conversation

import (
	"context"

	"github.com/mosiclaw/dialogue-orchestrator/internal/core"
	"github.com/mosiclaw/dialogue-orchestrator/internal/llmsvc"
	"github.com/mosiclaw/dialogue-orchestrator/internal/mcpintegration"
	"github.com/mosiclaw/dialogue-orchestrator/internal/orcherr"
	"github.com/mosiclaw/dialogue-orchestrator/internal/provider"
)

// toolBatch is the single PrepResult item ToolBatchNode threads through
// Exec: the whole set of pending tool calls from one dispatch round. The
// generic core.Node framework retries/loops over PrepResult items
// sequentially, so concurrency within a batch has to live inside Exec —
// delegated to mcpintegration.Integration.Execute's own bounded fan-out —
// rather than in the node framework's per-item loop.
type toolBatch struct {
	calls []provider.ToolCall
}

// ToolBatchNode executes one round of tool calls against the MCP
// integration layer and folds the results back into the message list —
// the analog of the teacher's ToolNode.
type ToolBatchNode struct {
	svc *llmsvc.Service
	mcp *mcpintegration.Integration
}

func NewToolBatchNode(svc *llmsvc.Service, mcp *mcpintegration.Integration) *ToolBatchNode {
	return &ToolBatchNode{svc: svc, mcp: mcp}
}

func (t *ToolBatchNode) Prep(state *State) []toolBatch {
	calls := state.PendingToolCalls
	if len(calls) == 0 {
		return nil
	}

	allValid, reports := t.mcp.Validate(calls)
	if !allValid {
		var forbidden []string
		for _, r := range reports {
			if !r.Valid {
				forbidden = append(forbidden, r.ToolCall.Name)
			}
		}
		state.FailureCode = orcherr.ForbiddenTools
		state.FailureErr = errForbiddenTools(forbidden)
		return nil
	}

	return []toolBatch{{calls: calls}}
}

func (t *ToolBatchNode) Exec(ctx context.Context, batch toolBatch) ([]provider.ToolResult, error) {
	return t.mcp.Execute(ctx, batch.calls), nil
}

func (t *ToolBatchNode) ExecFallback(err error) []provider.ToolResult {
	return nil
}

func (t *ToolBatchNode) Post(state *State, prepRes []toolBatch, execResults ...[]provider.ToolResult) core.Action {
	if len(prepRes) == 0 {
		// Prep already set FailureCode/FailureErr (forbidden/unknown tool).
		return core.ActionFailure
	}

	calls := prepRes[0].calls
	results := execResults[0]

	assistantMsg := t.svc.FormatToolCalls(calls)
	resultMsgs := t.svc.FormatToolResults(calls, results, state.EnableCaching, state.CacheableToolNames)

	state.Messages = append(state.Messages, assistantMsg)
	state.Messages = append(state.Messages, resultMsgs...)
	state.AllToolCalls = append(state.AllToolCalls, calls...)
	state.AllToolResults = append(state.AllToolResults, results...)
	state.PendingToolCalls = nil

	return core.ActionDefault
}
