// Package verdict implements the Verdict Parser (C10): a lexical scanner
// over assistant text that recognizes a TerminalVerdict, never prose.
// Structurally analogous to the teacher's internal/agent/decide.go
// ExtractYAML + yaml.Unmarshal two-stage extract-then-decode pattern,
// adapted for fenced JSON blocks instead of YAML.
package verdict

import (
	"encoding/json"
	"regexp"
)

// fencedBlock matches ```json ... ``` or bare ``` ... ``` fenced blocks.
var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")

// Kind distinguishes the two TerminalVerdict shapes named in the data model.
type Kind string

const (
	KindReuseDecision    Kind = "reuse_decision"
	KindScriptGeneration Kind = "script_generation"
)

// ReuseDecision is the verdict shape emitted by the Reuse Evaluator (C8) or
// surfaced directly by the model when it judges an existing analysis
// function already answers the question.
type ReuseDecision struct {
	ShouldReuse           bool           `json:"should_reuse"`
	ExistingFunctionName  string         `json:"existing_function_name,omitempty"`
	Confidence            float64        `json:"confidence"`
	Reason                string         `json:"reason,omitempty"`
	ScriptName            string         `json:"script_name,omitempty"`
	Parameters            map[string]any `json:"parameters,omitempty"`
	Execution             map[string]any `json:"execution,omitempty"`
}

// ScriptGeneration is the verdict shape emitted when the conversation
// concludes with a newly generated analysis script.
type ScriptGeneration struct {
	Status              string         `json:"status"` // "success" | "failed"
	ScriptName          string         `json:"script_name,omitempty"`
	AnalysisDescription string         `json:"analysis_description"`
	MCPCalls            []any          `json:"mcp_calls,omitempty"`
	Execution           map[string]any `json:"execution,omitempty"`
	FinalError          string         `json:"final_error,omitempty"`
}

// Verdict is exactly one of ReuseDecision or ScriptGeneration (§3).
type Verdict struct {
	Kind             Kind
	ReuseDecision    *ReuseDecision
	ScriptGeneration *ScriptGeneration
}

// Parse scans text for fenced JSON blocks (falling back to the whole body
// as JSON) and returns the first block whose root object contains either
// "reuse_decision" or "script_generation". Malformed or unrecognized JSON
// is ignored, never an error — absence of a verdict is communicated by
// the boolean return, not an error value.
func Parse(text string) (*Verdict, bool) {
	candidates := fencedBlock.FindAllStringSubmatch(text, -1)
	bodies := make([]string, 0, len(candidates)+1)
	for _, m := range candidates {
		bodies = append(bodies, m[1])
	}
	bodies = append(bodies, text)

	for _, body := range bodies {
		if v, ok := parseOne(body); ok {
			return v, true
		}
	}
	return nil, false
}

func parseOne(body string) (*Verdict, bool) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &root); err != nil {
		return nil, false
	}

	if raw, ok := root["reuse_decision"]; ok {
		var rd ReuseDecision
		if err := json.Unmarshal(raw, &rd); err != nil {
			return nil, false
		}
		if rd.ShouldReuse && (rd.ExistingFunctionName == "" || rd.Confidence == 0) {
			return nil, false
		}
		return &Verdict{Kind: KindReuseDecision, ReuseDecision: &rd}, true
	}

	if raw, ok := root["script_generation"]; ok {
		var sg ScriptGeneration
		if err := json.Unmarshal(raw, &sg); err != nil {
			return nil, false
		}
		switch sg.Status {
		case "success":
			if sg.ScriptName == "" || sg.MCPCalls == nil {
				return nil, false
			}
		case "failed":
			// no further required fields
		default:
			return nil, false
		}
		return &Verdict{Kind: KindScriptGeneration, ScriptGeneration: &sg}, true
	}

	return nil, false
}
