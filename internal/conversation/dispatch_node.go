package conversation

import (
	"context"

	"github.com/mosiclaw/dialogue-orchestrator/internal/core"
	"github.com/mosiclaw/dialogue-orchestrator/internal/llmsvc"
	"github.com/mosiclaw/dialogue-orchestrator/internal/orcherr"
	"github.com/mosiclaw/dialogue-orchestrator/internal/provider"
	"github.com/mosiclaw/dialogue-orchestrator/internal/verdict"
)

// dispatchOutcome carries Exec's result (or, via ExecFallback, its
// terminal error) into Post — core.BaseNode.Post never receives an error
// directly, so a failed dispatch must be encoded in the ExecResults type
// itself, mirroring how the teacher's DecideNode surfaces provider errors.
type dispatchOutcome struct {
	response provider.Response
	err      error
}

// DispatchNode calls the LLM Service with the current message list and
// routes on whether the response carries tool calls or a terminal
// verdict — the analog of the teacher's DecideNode.
type DispatchNode struct {
	svc             *llmsvc.Service
	maxIterations   int
	maxToolCalls    int
}

// NewDispatchNode constructs a DispatchNode. maxIterations bounds total
// dispatch round-trips (default 20); maxToolCalls bounds the cumulative
// number of tool calls across the whole request (default 64).
func NewDispatchNode(svc *llmsvc.Service, maxIterations, maxToolCalls int) *DispatchNode {
	return &DispatchNode{svc: svc, maxIterations: maxIterations, maxToolCalls: maxToolCalls}
}

func (d *DispatchNode) Prep(state *State) []provider.Request {
	state.IterationCount++
	if state.IterationCount > d.maxIterations {
		state.FailureCode = orcherr.IterationBudget
		state.FailureErr = errIterationBudget(d.maxIterations)
		return nil
	}
	return []provider.Request{{
		Messages:           append([]provider.Message(nil), state.Messages...),
		Model:              state.Model,
		EnableCaching:      state.EnableCaching,
		CacheableToolNames: state.CacheableToolNames,
	}}
}

func (d *DispatchNode) Exec(ctx context.Context, req provider.Request) (dispatchOutcome, error) {
	resp, err := d.svc.MakeRequest(ctx, req)
	if err != nil {
		return dispatchOutcome{}, err
	}
	return dispatchOutcome{response: resp}, nil
}

func (d *DispatchNode) ExecFallback(err error) dispatchOutcome {
	return dispatchOutcome{err: err}
}

func (d *DispatchNode) Post(state *State, prepRes []provider.Request, execResults ...dispatchOutcome) core.Action {
	if len(prepRes) == 0 {
		// Prep declined to dispatch (iteration budget exhausted); FailureCode
		// is already set.
		return core.ActionFailure
	}

	outcome := execResults[0]
	if outcome.err != nil {
		state.FailureCode = orcherr.ProviderHTTPError
		state.FailureErr = outcome.err
		return core.ActionFailure
	}

	resp := outcome.response
	if len(resp.ToolCalls) > 0 {
		state.ToolCallCount += len(resp.ToolCalls)
		if state.ToolCallCount > d.maxToolCalls {
			state.FailureCode = orcherr.IterationBudget
			state.FailureErr = errToolCallBudget(d.maxToolCalls)
			return core.ActionFailure
		}
		state.PendingToolCalls = resp.ToolCalls
		return core.ActionTool
	}

	// No tool calls: the conversation terminates here one way or another.
	v, ok := verdict.Parse(resp.Content)
	if !ok {
		state.FailureCode = orcherr.NoStructuredResponse
		state.FailureErr = errNoStructuredResponse()
		return core.ActionFailure
	}

	switch v.Kind {
	case verdict.KindReuseDecision:
		if v.ReuseDecision.ShouldReuse {
			state.Verdict = v
			return core.ActionAnswer
		}
		state.FailureCode = orcherr.NoStructuredResponse
		state.FailureErr = errNoStructuredResponse()
		return core.ActionFailure
	case verdict.KindScriptGeneration:
		if v.ScriptGeneration.Status == "success" {
			state.Verdict = v
			return core.ActionAnswer
		}
		state.FailureCode = orcherr.ScriptGenerationFailed
		state.FailureErr = errScriptGenerationFailed(v.ScriptGeneration.FinalError)
		return core.ActionFailure
	default:
		state.FailureCode = orcherr.NoStructuredResponse
		state.FailureErr = errNoStructuredResponse()
		return core.ActionFailure
	}
}
