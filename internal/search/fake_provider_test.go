package search

import (
	"context"
	"errors"

	"github.com/mosiclaw/dialogue-orchestrator/internal/analysislib"
	"github.com/mosiclaw/dialogue-orchestrator/internal/provider"
)

// scriptedCall is one entry in a fakeProvider's script: either a response
// or an error, never both. Classifier and Expander each issue at most one
// MakeRequest per call, consumed from this script in call order.
type scriptedCall struct {
	resp provider.Response
	err  error
}

type fakeProvider struct {
	script []scriptedCall
	calls  int
}

func (f *fakeProvider) SetSystemPrompt(text string)             {}
func (f *fakeProvider) SetTools(defs []provider.ToolDefinition)  {}
func (f *fakeProvider) Name() string                             { return "fake" }
func (f *fakeProvider) FormatToolCalls(calls []provider.ToolCall) provider.Message {
	return provider.Message{}
}
func (f *fakeProvider) FormatToolResults(calls []provider.ToolCall, results []provider.ToolResult, enableCaching bool, cacheableNames map[string]bool) []provider.Message {
	return nil
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

// fakeLibrary is a scripted analysislib.Library.
type fakeLibrary struct {
	candidates []analysislib.Candidate
	err        error
}

func (f *fakeLibrary) SearchSimilar(ctx context.Context, query string, topK int, threshold float64) ([]analysislib.Candidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}
