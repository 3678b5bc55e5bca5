package conversation

import (
	"context"
	"errors"

	"github.com/mosiclaw/dialogue-orchestrator/internal/provider"
)

// scriptedCall is one entry in a fakeProvider's script: either a response
// or an error, never both.
type scriptedCall struct {
	resp provider.Response
	err  error
}

// fakeProvider is a scripted provider.Provider: each call to MakeRequest
// pops the next queued response (or error), letting tests drive the
// Engine/DispatchNode through a specific sequence of dispatch rounds
// without any network I/O.
type fakeProvider struct {
	script []scriptedCall
	calls  int

	systemPrompt string
	tools        []provider.ToolDefinition
}

func (f *fakeProvider) SetSystemPrompt(text string)          { f.systemPrompt = text }
func (f *fakeProvider) SetTools(defs []provider.ToolDefinition) { f.tools = defs }
func (f *fakeProvider) Name() string                         { return "fake" }

func (f *fakeProvider) FormatToolCalls(calls []provider.ToolCall) provider.Message {
	return provider.Message{Role: provider.RoleAssistant, ToolCalls: calls}
}

func (f *fakeProvider) FormatToolResults(calls []provider.ToolCall, results []provider.ToolResult, enableCaching bool, cacheableNames map[string]bool) []provider.Message {
	msgs := make([]provider.Message, len(results))
	for i, r := range results {
		msgs[i] = provider.Message{Role: provider.RoleTool, Content: r.Content, ToolCallID: r.ToolCallID}
	}
	return msgs
}

func (f *fakeProvider) MakeRequest(ctx context.Context, req provider.Request) (provider.Response, error) {
	if f.calls >= len(f.script) {
		return provider.Response{}, errors.New("fakeProvider: exhausted scripted responses")
	}
	entry := f.script[f.calls]
	f.calls++
	if entry.err != nil {
		return provider.Response{}, entry.err
	}
	return entry.resp, nil
}
