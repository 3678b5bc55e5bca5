// Package conversation implements the Conversation Engine (C4): the
// bounded INIT → AWAIT_MODEL → EXECUTE_TOOLS → … → TERMINAL_VERDICT |
// FAILED state machine, built on the teacher's generic internal/core
// BaseNode/Node/Workflow/Flow machinery — a DispatchNode (analog of the
// teacher's DecideNode) and a ToolBatchNode (analog of ToolNode) wired
// exactly like internal/agent/flow.go's BuildAgentFlow: DispatchNode ──
// ActionTool → ToolBatchNode ── ActionDefault → DispatchNode, with
// ActionAnswer/ActionFailure as the two terminal actions.
package conversation

import (
	"github.com/mosiclaw/dialogue-orchestrator/internal/orcherr"
	"github.com/mosiclaw/dialogue-orchestrator/internal/provider"
	"github.com/mosiclaw/dialogue-orchestrator/internal/verdict"
)

// State is the per-request transient state the Flow threads through
// DispatchNode/ToolBatchNode. It is allocated fresh per request — two
// concurrent requests on the same session never share a State (§4.4
// item 5) — and discarded once a verdict or failure is reached.
type State struct {
	Messages           []provider.Message
	Model              string
	EnableCaching      bool
	CacheableToolNames map[string]bool

	// PendingToolCalls holds the most recent dispatch's tool calls,
	// consumed by ToolBatchNode on the next transition.
	PendingToolCalls []provider.ToolCall

	AllToolCalls   []provider.ToolCall
	AllToolResults []provider.ToolResult

	IterationCount int
	ToolCallCount  int

	Verdict     *verdict.Verdict
	FailureCode orcherr.Code
	FailureErr  error
}
