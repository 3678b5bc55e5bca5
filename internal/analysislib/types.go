// Package analysislib declares the narrow external-collaborator surface
// this orchestrator consumes from the analysis library: similarity
// search over previously generated analysis functions. Per spec
// Non-goals there is no persistence or indexing here — only the
// consumed interface, modeled on the teacher's tool-interface pattern
// (internal/tool.Tool): a small Go interface the orchestrator depends
// on without owning an implementation.
package analysislib

import "context"

// Candidate is an AnalysisCandidate (§3): a previously generated
// analysis function the reuse path may select instead of re-deriving
// one, supplied by the external analysis library and never mutated by
// the core.
type Candidate struct {
	FunctionName string
	Filename     string
	Similarity   float64 // [0,1]
	Question     string
	Description  string
	Parameters   map[string]any
	ScriptPath   string
}

// Library is the consumed external collaborator interface.
type Library interface {
	// SearchSimilar returns up to topK candidates with similarity at or
	// above threshold, ranked descending by similarity.
	SearchSimilar(ctx context.Context, query string, topK int, threshold float64) ([]Candidate, error)
}

// NullLibrary is a zero-candidate Library, used when the process is
// bootstrapped without a concrete analysis-library backend configured.
// Every query behaves as if nothing has ever been analyzed before —
// C4 always falls through to fresh script generation — the same
// nil-is-a-valid-default posture the teacher's own optional
// *prompt.PromptLoader collaborator uses.
type NullLibrary struct{}

func (NullLibrary) SearchSimilar(ctx context.Context, query string, topK int, threshold float64) ([]Candidate, error) {
	return nil, nil
}
