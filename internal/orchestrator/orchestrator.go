// Package orchestrator composes Context-Aware Search (C7), the Reuse
// Evaluator (C8), and the Conversation Engine (C4) into the single
// per-question entry point the external interface (§6) calls, mirroring
// original_source/.../api/routes.py's analyze_question: search first,
// return early on a needs-user-input envelope, evaluate reuse before
// ever invoking the conversation loop, and fall through to C4 only when
// no existing analysis qualifies.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/mosiclaw/dialogue-orchestrator/internal/config"
	"github.com/mosiclaw/dialogue-orchestrator/internal/conversation"
	"github.com/mosiclaw/dialogue-orchestrator/internal/events"
	"github.com/mosiclaw/dialogue-orchestrator/internal/orcherr"
	"github.com/mosiclaw/dialogue-orchestrator/internal/reuse"
	"github.com/mosiclaw/dialogue-orchestrator/internal/search"
	"github.com/mosiclaw/dialogue-orchestrator/internal/util"
)

// Request is the inbound analysis entry point (spec §6).
type Request struct {
	Question      string
	SessionID     string
	Model         string
	AutoExpand    bool
	EnableCaching bool
	UserID        string
}

// ResponseType distinguishes the three terminal analysis_result shapes.
type ResponseType string

const (
	ResponseReuseDecision          ResponseType = "reuse_decision"
	ResponseScriptGeneration       ResponseType = "script_generation"
	ResponseScriptGenerationFailed ResponseType = "script_generation_failed"
)

// AnalysisResult is the envelope's analysis_result branch.
type AnalysisResult struct {
	ResponseType ResponseType
	Data         any
}

// ContextResult is the envelope's context_result branch, returned
// whenever NeedsUserInput is set.
type ContextResult struct {
	SessionID  string
	Message    string
	Options    []string
	Original   string
	Expanded   string
	Confidence float64
}

// ErrorPayload is the envelope's user-facing error branch. Internal
// detail is logged by the caller, never serialized from this type.
type ErrorPayload struct {
	Code    orcherr.Code
	Message string
}

// Response is analyze_question's output envelope (spec §6): Success is
// always set; exactly one of AnalysisResult, (NeedsUserInput +
// ContextResult), or Error is populated.
type Response struct {
	Success        bool
	SessionID      string
	AnalysisResult *AnalysisResult
	NeedsUserInput bool
	ContextResult  *ContextResult
	Error          *ErrorPayload
}

// Orchestrator wires C7/C8/C4 together per request. It holds no mutable
// state of its own beyond what its collaborators already own.
type Orchestrator struct {
	search            *search.ContextAwareSearch
	reuseEvaluator    *reuse.Evaluator
	engine            *conversation.Engine
	events            *events.Bus
	systemPromptFile  string
	templateFile      string
	similarityThreshold float64
}

func New(s *search.ContextAwareSearch, r *reuse.Evaluator, engine *conversation.Engine, bus *events.Bus, systemPromptFile, templateFile string, similarityThreshold float64) *Orchestrator {
	return &Orchestrator{
		search:              s,
		reuseEvaluator:      r,
		engine:              engine,
		events:              bus,
		systemPromptFile:    systemPromptFile,
		templateFile:        templateFile,
		similarityThreshold: similarityThreshold,
	}
}

// Analyze runs one full pass: context-aware search, early-return on
// needs-user-input, reuse evaluation, and — only if no reuse applies —
// the conversation engine's tool-calling loop to produce a fresh
// script_generation verdict.
func (o *Orchestrator) Analyze(ctx context.Context, req Request) *Response {
	o.emit(req.SessionID, events.LevelInfo, fmt.Sprintf("Processing question: %s", util.TruncateRunes(req.Question, 80)), 1, 5)

	result, err := o.search.SearchWithContext(ctx, req.Question, req.SessionID, req.AutoExpand, o.similarityThreshold)
	if err != nil {
		o.emit(req.SessionID, events.LevelError, fmt.Sprintf("context search failed: %v", err), 2, 5)
		return &Response{Error: &ErrorPayload{
			Code:    orcherr.NoConversationHistory,
			Message: "I couldn't understand your question. Please try rephrasing it.",
		}}
	}

	switch result.Outcome {
	case search.OutcomeNeedsConfirmation, search.OutcomeNeedsClarification:
		o.emit(result.SessionID, events.LevelInfo, "Waiting for user confirmation", 2, 5)
		return &Response{
			Success:        true,
			SessionID:      result.SessionID,
			NeedsUserInput: true,
			ContextResult: &ContextResult{
				SessionID:  result.SessionID,
				Message:    result.Message,
				Options:    result.Options,
				Original:   result.OriginalQuery,
				Expanded:   result.ExpandedQuery,
				Confidence: result.ExpansionConfidence,
			},
		}
	}

	finalQuery := req.Question
	if result.ExpandedQuery != "" {
		finalQuery = result.ExpandedQuery
	}

	if len(result.Candidates) > 0 {
		o.emit(result.SessionID, events.LevelInfo, fmt.Sprintf("Evaluating reuse potential for %d candidate(s)", len(result.Candidates)), 3, 5)
		decision, err := o.reuseEvaluator.Evaluate(ctx, finalQuery, result.Candidates)
		if err != nil {
			o.emit(result.SessionID, events.LevelWarning, fmt.Sprintf("reuse evaluation failed: %v", err), 3, 5)
		} else if decision != nil && decision.ShouldReuse {
			o.emit(result.SessionID, events.LevelSuccess, fmt.Sprintf("Reusing existing analysis: %s", decision.ScriptName), 3, 5)
			return &Response{
				Success:   true,
				SessionID: result.SessionID,
				AnalysisResult: &AnalysisResult{
					ResponseType: ResponseReuseDecision,
					Data:         decision,
				},
			}
		}
	}

	o.emit(result.SessionID, events.LevelInfo, "No reusable analysis found, generating a new one", 4, 5)

	prompt := config.LoadAnalysisMessage(o.templateFile, finalQuery)
	verdict, failure := o.engine.Run(ctx, conversation.Request{
		Prompt:        prompt,
		ContextBlocks: contextBlocks(result),
		Model:         req.Model,
		EnableCaching: req.EnableCaching,
	})
	if failure != nil {
		if failure.Code == orcherr.ScriptGenerationFailed {
			o.emit(result.SessionID, events.LevelError, fmt.Sprintf("script generation failed: %v", failure.Err), 5, 5)
			return &Response{
				Success:   true,
				SessionID: result.SessionID,
				AnalysisResult: &AnalysisResult{
					ResponseType: ResponseScriptGenerationFailed,
					Data:         failure.Err.Error(),
				},
			}
		}
		o.emit(result.SessionID, events.LevelError, fmt.Sprintf("analysis failed: %v", failure.Err), 5, 5)
		return &Response{Error: &ErrorPayload{Code: failure.Code, Message: "I ran into a problem completing that analysis."}}
	}

	o.emit(result.SessionID, events.LevelSuccess, "Analysis complete", 5, 5)

	respType := ResponseScriptGeneration
	var data any = verdict.ScriptGeneration
	if verdict.ReuseDecision != nil {
		respType = ResponseReuseDecision
		data = verdict.ReuseDecision
	}
	return &Response{
		Success:   true,
		SessionID: result.SessionID,
		AnalysisResult: &AnalysisResult{
			ResponseType: respType,
			Data:         data,
		},
	}
}

func (o *Orchestrator) emit(sessionID string, level events.Level, message string, step, totalSteps int) {
	if o.events == nil {
		return
	}
	o.events.Emit(events.Event{SessionID: sessionID, Level: level, Message: message, Step: step, TotalSteps: totalSteps})
}

func contextBlocks(result search.Result) []string {
	if !result.ContextUsed {
		return nil
	}
	return []string{fmt.Sprintf("Prior context: %s", result.AnalysisSummary)}
}
