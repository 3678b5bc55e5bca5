// Package openaidialect implements the provider.Provider interface for the
// OpenAI-style dialect: role=tool messages, one per tool result, and
// function-calling tool definitions. Adapted from the teacher's
// internal/llm/openai.Client (github.com/sashabaranov/go-openai), widened
// to speak provider.Provider's dialect-neutral shapes instead of the
// agent-specific llm.Message/llm.ToolDefinition types.
package openaidialect

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mosiclaw/dialogue-orchestrator/internal/orcherr"
	"github.com/mosiclaw/dialogue-orchestrator/internal/provider"
	openailib "github.com/sashabaranov/go-openai"
)

// Adapter implements provider.Provider over an OpenAI-compatible endpoint.
type Adapter struct {
	client *openailib.Client
	config *Config

	mu           sync.RWMutex
	systemPrompt string
	tools        []openailib.Tool
}

// New builds an Adapter from a validated Config.
func New(cfg *Config) (*Adapter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("openaidialect: config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("openaidialect: invalid config: %w", err)
	}

	clientConfig := openailib.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	timeout := time.Duration(cfg.HTTPTimeout) * time.Second
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	return &Adapter{
		client: openailib.NewClientWithConfig(clientConfig),
		config: cfg,
	}, nil
}

// NewFromEnv builds an Adapter using LLM_* environment variables.
func NewFromEnv() (*Adapter, error) {
	cfg, err := NewConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("openaidialect: failed to load config from env: %w", err)
	}
	return New(cfg)
}

func (a *Adapter) SetSystemPrompt(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.systemPrompt = text
}

func (a *Adapter) SetTools(defs []provider.ToolDefinition) {
	tools := make([]openailib.Tool, len(defs))
	for i, d := range defs {
		tools[i] = openailib.Tool{
			Type: openailib.ToolTypeFunction,
			Function: &openailib.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  json.RawMessage(d.Parameters),
			},
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tools = tools
}

// FormatToolCalls renders a single assistant message carrying all tool
// calls from this round, matching OpenAI's assistant message shape.
func (a *Adapter) FormatToolCalls(calls []provider.ToolCall) provider.Message {
	return provider.Message{
		Role:      provider.RoleAssistant,
		ToolCalls: calls,
	}
}

// FormatToolResults returns one role=tool message per call — the shape the
// OpenAI-compatible protocol requires (each tool result correlates to its
// call via tool_call_id, never batched into one message).
func (a *Adapter) FormatToolResults(calls []provider.ToolCall, results []provider.ToolResult, enableCaching bool, cacheableNames map[string]bool) []provider.Message {
	msgs := make([]provider.Message, 0, len(calls))
	for i, call := range calls {
		var result provider.ToolResult
		if i < len(results) {
			result = results[i]
		}
		content := result.Content
		if !result.Success {
			content = result.Error
		}
		// OpenAI-compatible dialect has no per-message cache-control knob;
		// enableCaching/cacheableNames are accepted for interface symmetry
		// with the Anthropic dialect and are a documented no-op here.
		msgs = append(msgs, provider.Message{
			Role:       provider.RoleTool,
			Content:    content,
			Name:       baseToolName(call.Name),
			ToolCallID: call.ID,
		})
	}
	return msgs
}

// baseToolName strips the MCP server qualifier ("<server>__<tool>") to
// recover the bare function name used by CACHEABLE_TOOL_NAMES matching.
func baseToolName(qualified string) string {
	if idx := strings.LastIndex(qualified, "__"); idx >= 0 {
		return qualified[idx+2:]
	}
	return qualified
}

// MakeRequest dispatches messages, prepending the system prompt as a
// role=system message, with the teacher's linear-backoff retry loop.
func (a *Adapter) MakeRequest(ctx context.Context, req provider.Request) (provider.Response, error) {
	a.mu.RLock()
	systemPrompt := a.systemPrompt
	tools := a.tools
	a.mu.RUnlock()

	openaiMsgs := make([]openailib.ChatCompletionMessage, 0, len(req.Messages)+1)
	if systemPrompt != "" {
		openaiMsgs = append(openaiMsgs, openailib.ChatCompletionMessage{
			Role:    openailib.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	for _, m := range req.Messages {
		cm := openailib.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
			Name:    m.Name,
		}
		if m.Role == provider.RoleTool {
			cm.ToolCallID = m.ToolCallID
		}
		if m.Role == provider.RoleAssistant && len(m.ToolCalls) > 0 {
			tcs := make([]openailib.ToolCall, len(m.ToolCalls))
			for j, tc := range m.ToolCalls {
				tcs[j] = openailib.ToolCall{
					ID:   tc.ID,
					Type: openailib.ToolTypeFunction,
					Function: openailib.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				}
			}
			cm.ToolCalls = tcs
		}
		openaiMsgs = append(openaiMsgs, cm)
	}

	model := req.Model
	if model == "" {
		model = a.config.Model
	}
	creq := openailib.ChatCompletionRequest{
		Model:    model,
		Messages: openaiMsgs,
		Tools:    tools,
	}
	if req.Temperature != 0 {
		creq.Temperature = req.Temperature
	} else if a.config.Temperature != nil {
		creq.Temperature = *a.config.Temperature
	}
	if req.MaxTokens > 0 {
		creq.MaxTokens = req.MaxTokens
	} else if a.config.MaxTokens > 0 {
		creq.MaxTokens = a.config.MaxTokens
	}

	var resp openailib.ChatCompletionResponse
	err := provider.WithLinearRetry(ctx, a.config.MaxRetries, func(attempt int, err error) {
		log.Printf("[Provider:openai] retry %d/%d, error: %v", attempt, a.config.MaxRetries, err)
	}, func() error {
		var callErr error
		resp, callErr = a.client.CreateChatCompletion(ctx, creq)
		return callErr
	})
	if err != nil {
		return provider.Response{}, orcherr.New(orcherr.ProviderHTTPError, "the analysis assistant is temporarily unavailable", fmt.Errorf("openaidialect: request failed after %d retries: %w", a.config.MaxRetries, err))
	}
	if len(resp.Choices) == 0 {
		return provider.Response{}, orcherr.New(orcherr.ProviderMalformedResponse, "the analysis assistant returned an unexpected response", fmt.Errorf("openaidialect: no choices returned"))
	}

	choice := resp.Choices[0].Message
	out := provider.Response{
		Success: true,
		Content: choice.Content,
	}
	if len(choice.ToolCalls) > 0 {
		out.ToolCalls = make([]provider.ToolCall, len(choice.ToolCalls))
		for i, tc := range choice.ToolCalls {
			out.ToolCalls[i] = provider.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			}
		}
	}
	out.Usage = provider.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	return out, nil
}

func (a *Adapter) Name() string {
	return fmt.Sprintf("openai-compatible (%s)", a.config.Model)
}
