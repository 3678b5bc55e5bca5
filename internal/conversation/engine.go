// Package conversation implements the Conversation Engine (C4) described
// above in state.go; this file assembles DispatchNode and ToolBatchNode
// into a core.Flow exactly like the teacher's internal/agent.BuildAgentFlow
// and exposes the single entry point the rest of the orchestrator calls.
package conversation

import (
	"context"
	"fmt"

	"github.com/mosiclaw/dialogue-orchestrator/internal/core"
	"github.com/mosiclaw/dialogue-orchestrator/internal/llmsvc"
	"github.com/mosiclaw/dialogue-orchestrator/internal/mcpintegration"
	"github.com/mosiclaw/dialogue-orchestrator/internal/orcherr"
	"github.com/mosiclaw/dialogue-orchestrator/internal/provider"
	"github.com/mosiclaw/dialogue-orchestrator/internal/verdict"
)

// Request is what a caller hands the engine for one dispatch loop: the
// formatted analysis prompt plus whatever prior-context blocks C7 already
// assembled, kept separate so Engine owns exactly how they're joined into
// the initial message list (INIT, spec §4.4 item 1).
type Request struct {
	Prompt         string
	ContextBlocks  []string
	Model          string
	EnableCaching  bool
}

// Failure is the non-nil second return of Run when the state machine
// terminates in FAILED rather than TERMINAL_VERDICT.
type Failure struct {
	Code orcherr.Code
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Code, f.Err)
}

// Engine runs one bounded INIT → AWAIT_MODEL → EXECUTE_TOOLS → … →
// TERMINAL_VERDICT | FAILED pass per call to Run. An Engine is safe for
// concurrent use: Run allocates a fresh State per call (spec §4.4 item 5).
type Engine struct {
	flow core.Workflow[State]

	model              string
	cacheableToolNames map[string]bool
}

// New wires DispatchNode and ToolBatchNode into a Flow, mirroring
// internal/agent/flow.go's BuildAgentFlow: DispatchNode ── ActionTool →
// ToolBatchNode ── ActionDefault → DispatchNode, with ActionAnswer and
// ActionFailure left as terminals (no successor registered for either).
func New(svc *llmsvc.Service, mcp *mcpintegration.Integration, defaultModel string, cacheableToolNames map[string]bool, maxIterations, maxToolCalls int) *Engine {
	dispatchNode := core.NewNode[State, provider.Request, dispatchOutcome](
		NewDispatchNode(svc, maxIterations, maxToolCalls), 0,
	)
	toolNode := core.NewNode[State, toolBatch, []provider.ToolResult](
		NewToolBatchNode(svc, mcp), 0,
	)

	dispatchNode.AddSuccessor(toolNode, core.ActionTool)
	toolNode.AddSuccessor(dispatchNode) // ActionDefault → DispatchNode

	flow := core.NewFlow[State](dispatchNode)

	return &Engine{flow: flow, model: defaultModel, cacheableToolNames: cacheableToolNames}
}

// Run builds the initial message list (a single user message carrying the
// formatted prompt, followed by any prior context blocks from C7) and
// drives the Flow to a terminal verdict or failure.
func (e *Engine) Run(ctx context.Context, req Request) (*verdict.Verdict, *Failure) {
	model := req.Model
	if model == "" {
		model = e.model
	}

	messages := make([]provider.Message, 0, 1+len(req.ContextBlocks))
	messages = append(messages, provider.Message{Role: provider.RoleUser, Content: req.Prompt})
	for _, block := range req.ContextBlocks {
		messages = append(messages, provider.Message{Role: provider.RoleUser, Content: block})
	}

	state := &State{
		Messages:           messages,
		Model:              model,
		EnableCaching:      req.EnableCaching,
		CacheableToolNames: e.cacheableToolNames,
	}

	action := e.flow.Run(ctx, state)

	switch action {
	case core.ActionAnswer:
		if state.Verdict == nil {
			return nil, &Failure{Code: orcherr.NoStructuredResponse, Err: errNoStructuredResponse()}
		}
		return state.Verdict, nil
	default:
		code := state.FailureCode
		err := state.FailureErr
		if err == nil {
			code = orcherr.IterationBudget
			err = fmt.Errorf("conversation: flow terminated without a verdict (action=%s)", action)
		}
		return nil, &Failure{Code: code, Err: err}
	}
}
