// Package provider abstracts the two LLM dialects the orchestrator speaks:
// a single-system-block dialect with native tool blocks (Anthropic-style),
// and an OpenAI-style dialect with role=tool messages. The conversation
// engine depends only on the Provider interface defined here.
package provider

import (
	"context"
	"encoding/json"
)

// Role constants shared by both dialects. Concrete adapters translate
// these onto their own wire vocabulary.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is the dialect-neutral chat message shape the conversation
// engine builds and appends to. Assistant messages may carry ToolCalls
// in addition to, or instead of, Content.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`         // tool name, set on role=tool messages
	ToolCallID string     `json:"tool_call_id,omitempty"` // correlates a tool-result message with its call
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`   // set on assistant messages carrying tool calls
}

// ToolDefinition is the wire-neutral shape of a ToolDescriptor (see
// internal/mcpintegration) as handed to a provider adapter.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall is the LLM's request to invoke a tool, normalized across
// dialects. Arguments is left as raw JSON; callers decode it against the
// tool's declared schema. When FormatToolResults re-encodes a
// ToolResult as a ToolCall to carry it through Message.ToolCalls,
// IsError mirrors the original result's failure so a dialect that has a
// native error signal (e.g. Anthropic's tool_result.is_error) can set it.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	IsError   bool            `json:"-"`
}

// ToolResult is the payload returned after executing a ToolCall, one per
// call in emission order. Content is always a string by the time it
// reaches a provider adapter — structured results are JSON-encoded and
// CallToolResult wrappers are unwrapped by the MCP integration layer
// before this type is constructed.
type ToolResult struct {
	ToolCallID string
	Success    bool
	Content    string
	Error      string
	Traceback  string
}

// Request is one dispatch to a provider.
type Request struct {
	Messages      []Message
	Model         string
	MaxTokens     int
	Temperature   float32
	EnableCaching bool
	// CacheableToolNames marks tool-result items whose base function name
	// (the part after the last "__") should receive a cache-control
	// annotation when EnableCaching is set.
	CacheableToolNames map[string]bool
}

// Usage reports token accounting, when the underlying API returns it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is the normalized shape every dialect must produce.
type Response struct {
	Success   bool
	Content   string
	ToolCalls []ToolCall
	Usage     Usage
}

// Provider is the interface the Conversation Engine and LLM Service
// depend on. Exactly two concrete implementations exist: the OpenAI-style
// dialect (internal/provider/openaidialect) and the native single-system-
// block dialect (internal/provider/anthropicdialect).
type Provider interface {
	// SetSystemPrompt populates the system prompt once per provider
	// lifetime. Subsequent calls replace it atomically.
	SetSystemPrompt(text string)

	// SetTools populates the tool catalog. Subsequent calls replace the
	// catalog atomically; descriptors are converted to the dialect's
	// native tool-definition shape immediately.
	SetTools(defs []ToolDefinition)

	// FormatToolCalls renders an assistant message carrying the given
	// tool calls in the provider's native wire shape.
	FormatToolCalls(calls []ToolCall) Message

	// FormatToolResults renders the tool-result message(s) pairing with
	// calls by position. Dialects that carry one tool result per wire
	// message (OpenAI-style) return one Message per call; dialects that
	// batch all results from one round into a single user turn
	// (Anthropic-style) return a single Message. Either way the engine
	// only ever appends the returned slice to its message list — it never
	// branches on how many messages came back.
	FormatToolResults(calls []ToolCall, results []ToolResult, enableCaching bool, cacheableNames map[string]bool) []Message

	// MakeRequest dispatches messages (which must already include the
	// system prompt's position for dialects that interleave it, or may
	// omit it for dialects that carry it out-of-band) and returns a
	// normalized Response.
	MakeRequest(ctx context.Context, req Request) (Response, error)

	// Name identifies the adapter/model for logging.
	Name() string
}
