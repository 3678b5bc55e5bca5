// Package llmsvc implements the LLM Service (C2): a thin, provider-agnostic
// façade that owns one chosen provider.Provider and a default model name.
// Grounded on original_source/ollama-server/scriptEdition/apiServer/
// llm_service.py's UniversalLLMToolCallService (provider selection via
// LLM_PROVIDER, default_model resolution, a single forwarded request).
package llmsvc

import (
	"context"
	"time"

	"github.com/mosiclaw/dialogue-orchestrator/internal/provider"
)

// dispatchDeadline is the global per-dispatch deadline (spec §4.2/§5).
const dispatchDeadline = 120 * time.Second

// Service is the provider-agnostic façade the Conversation Engine and
// Reuse Evaluator depend on.
type Service struct {
	adapter      provider.Provider
	providerType string
	defaultModel string
}

// New constructs a Service around an already-configured provider.Provider.
func New(providerType, defaultModel string, adapter provider.Provider) *Service {
	return &Service{adapter: adapter, providerType: providerType, defaultModel: defaultModel}
}

// ProviderType reports which dialect backs this service ("openai" | "anthropic").
func (s *Service) ProviderType() string { return s.providerType }

// DefaultModel reports the model used when a request does not specify one.
func (s *Service) DefaultModel() string { return s.defaultModel }

// SetSystemPrompt forwards to the underlying adapter, replacing any
// previously set prompt.
func (s *Service) SetSystemPrompt(text string) { s.adapter.SetSystemPrompt(text) }

// SetTools forwards to the underlying adapter.
func (s *Service) SetTools(defs []provider.ToolDefinition) { s.adapter.SetTools(defs) }

// FormatToolCalls forwards to the underlying adapter, exposed so the
// Conversation Engine need not hold a reference to the adapter directly.
func (s *Service) FormatToolCalls(calls []provider.ToolCall) provider.Message {
	return s.adapter.FormatToolCalls(calls)
}

// FormatToolResults forwards to the underlying adapter.
func (s *Service) FormatToolResults(calls []provider.ToolCall, results []provider.ToolResult, enableCaching bool, cacheableNames map[string]bool) []provider.Message {
	return s.adapter.FormatToolResults(calls, results, enableCaching, cacheableNames)
}

// MakeRequest forwards req verbatim to the adapter, applying the global
// 120s deadline on top of whatever timeout the caller's ctx already carries.
func (s *Service) MakeRequest(ctx context.Context, req provider.Request) (provider.Response, error) {
	if req.Model == "" {
		req.Model = s.defaultModel
	}
	ctx, cancel := context.WithTimeout(ctx, dispatchDeadline)
	defer cancel()
	return s.adapter.MakeRequest(ctx, req)
}
