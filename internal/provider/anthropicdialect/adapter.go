// Package anthropicdialect implements provider.Provider for the native
// single-system-block dialect: one top-level system prompt, tool use and
// tool result content blocks instead of role=tool messages, and
// ephemeral cache-control annotations. This is the second dialect the
// distilled spec requires (§4.1) that the teacher (Jint8888-Pocket-Omega)
// does not itself provide — grounded on haasonsaas-nexus/go.mod, the only
// repo in the retrieved pack that wires anthropic-sdk-go alongside
// go-openai, and on the Anthropic-branch behaviour described in
// original_source/ollama-server/scriptEdition/apiServer/llm_service.py
// (UniversalLLMToolCallService, LLM_PROVIDER=anthropic).
package anthropicdialect

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/mosiclaw/dialogue-orchestrator/internal/orcherr"
	"github.com/mosiclaw/dialogue-orchestrator/internal/provider"
)

const cacheTTLEphemeral = "1h"

// Adapter implements provider.Provider over the Anthropic Messages API.
type Adapter struct {
	client anthropic.Client
	config *Config

	mu           sync.RWMutex
	systemPrompt string
	tools        []anthropic.ToolUnionParam
}

func New(cfg *Config) (*Adapter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("anthropicdialect: config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("anthropicdialect: invalid config: %w", err)
	}
	return &Adapter{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		config: cfg,
	}, nil
}

func NewFromEnv() (*Adapter, error) {
	cfg, err := NewConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("anthropicdialect: failed to load config from env: %w", err)
	}
	return New(cfg)
}

func (a *Adapter) SetSystemPrompt(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.systemPrompt = text
}

func (a *Adapter) SetTools(defs []provider.ToolDefinition) {
	tools := make([]anthropic.ToolUnionParam, len(defs))
	for i, d := range defs {
		var schema anthropic.ToolInputSchemaParam
		if len(d.Parameters) > 0 {
			_ = json.Unmarshal(d.Parameters, &schema)
		}
		tool := anthropic.ToolParam{
			Name:        d.Name,
			Description: anthropic.String(d.Description),
			InputSchema: schema,
		}
		// Mark the last tool descriptor cacheable per §4.1's annotation rule.
		if i == len(defs)-1 {
			tool.CacheControl = anthropic.NewCacheControlEphemeralParam(cacheTTLEphemeral)
		}
		tools[i] = anthropic.ToolUnionParam{OfTool: &tool}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tools = tools
}

// FormatToolCalls renders a single assistant message whose content is a
// sequence of tool_use blocks — the native dialect never uses role=tool.
func (a *Adapter) FormatToolCalls(calls []provider.ToolCall) provider.Message {
	return provider.Message{
		Role:      provider.RoleAssistant,
		ToolCalls: calls,
	}
}

// FormatToolResults batches all of this round's results into a single
// user-turn message, matching the Anthropic wire shape where multiple
// tool_result blocks ride in one user message.
func (a *Adapter) FormatToolResults(calls []provider.ToolCall, results []provider.ToolResult, enableCaching bool, cacheableNames map[string]bool) []provider.Message {
	// The native dialect's wire encoding happens in MakeRequest (where the
	// concrete anthropic.ContentBlockParamUnion values are built); here we
	// only need to preserve which result belongs to which call and which
	// ones are cache-annotated, which MakeRequest re-derives from the
	// call's ID + Name, so a single neutral Message carrying one ToolCall
	// per result, with the result text JSON-encoded in Arguments, is
	// sufficient.
	msg := provider.Message{Role: provider.RoleUser}
	for i, call := range calls {
		var result provider.ToolResult
		if i < len(results) {
			result = results[i]
		}
		content := result.Content
		if !result.Success {
			content = result.Error
		}
		quoted, _ := json.Marshal(content)
		msg.ToolCalls = append(msg.ToolCalls, provider.ToolCall{
			ID:        call.ID,
			Name:      call.Name,
			Arguments: json.RawMessage(quoted),
			IsError:   !result.Success,
		})
	}
	_ = enableCaching
	_ = cacheableNames
	return []provider.Message{msg}
}

// MakeRequest dispatches one Messages.New call, translating the
// dialect-neutral message list into system + tool_use/tool_result content
// blocks, with the shared linear-backoff retry helper.
func (a *Adapter) MakeRequest(ctx context.Context, req provider.Request) (provider.Response, error) {
	a.mu.RLock()
	systemPrompt := a.systemPrompt
	tools := a.tools
	a.mu.RUnlock()

	system := []anthropic.TextBlockParam{}
	if systemPrompt != "" {
		block := anthropic.TextBlockParam{Text: systemPrompt}
		block.CacheControl = anthropic.NewCacheControlEphemeralParam(cacheTTLEphemeral)
		system = append(system, block)
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch {
		case m.Role == provider.RoleAssistant && len(m.ToolCalls) > 0:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.ToolCalls)+1)
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, tc.Arguments, tc.Name))
			}
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		case m.Role == provider.RoleUser && len(m.ToolCalls) > 0:
			// This is a batched tool-result turn produced by
			// FormatToolResults: each "ToolCall" here carries the result
			// content JSON-quoted in Arguments.
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				var content string
				_ = json.Unmarshal(tc.Arguments, &content)
				isCacheable := req.CacheableToolNames != nil && req.CacheableToolNames[baseToolName(tc.Name)]
				block := anthropic.NewToolResultBlock(tc.ID, content, tc.IsError)
				if req.EnableCaching && isCacheable {
					block.OfToolResult.CacheControl = anthropic.NewCacheControlEphemeralParam(cacheTTLEphemeral)
				}
				blocks = append(blocks, block)
			}
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		default:
			if m.Role == provider.RoleAssistant {
				messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
			} else {
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
			}
		}
	}

	model := anthropic.Model(req.Model)
	if req.Model == "" {
		model = anthropic.Model(a.config.Model)
	}
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = int64(a.config.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  messages,
		Tools:     tools,
	}
	if req.Temperature != 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	}

	var resp *anthropic.Message
	err := provider.WithLinearRetry(ctx, a.config.MaxRetries, func(attempt int, err error) {
		log.Printf("[Provider:anthropic] retry %d/%d, error: %v", attempt, a.config.MaxRetries, err)
	}, func() error {
		r, callErr := a.client.Messages.New(ctx, params)
		resp = r
		return callErr
	})
	if err != nil {
		return provider.Response{}, orcherr.New(orcherr.ProviderHTTPError, "the analysis assistant is temporarily unavailable", fmt.Errorf("anthropicdialect: request failed after %d retries: %w", a.config.MaxRetries, err))
	}
	if resp == nil || len(resp.Content) == 0 {
		return provider.Response{}, orcherr.New(orcherr.ProviderMalformedResponse, "the analysis assistant returned an unexpected response", fmt.Errorf("anthropicdialect: empty content"))
	}

	out := provider.Response{Success: true}
	var textParts []string
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			textParts = append(textParts, b.Text)
		case anthropic.ToolUseBlock:
			out.ToolCalls = append(out.ToolCalls, provider.ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: json.RawMessage(b.Input),
			})
		}
	}
	out.Content = joinNonEmpty(textParts)
	out.Usage = provider.Usage{
		PromptTokens:     int(resp.Usage.InputTokens),
		CompletionTokens: int(resp.Usage.OutputTokens),
		TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
	}
	return out, nil
}

func (a *Adapter) Name() string {
	return fmt.Sprintf("anthropic (%s)", a.config.Model)
}

func baseToolName(qualified string) string {
	if idx := strings.LastIndex(qualified, "__"); idx >= 0 {
		return qualified[idx+2:]
	}
	return qualified
}

func joinNonEmpty(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\n"
		}
		out += p
	}
	return out
}
