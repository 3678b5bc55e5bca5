// Package orcherr defines the stable error-code taxonomy used across the
// orchestrator so that callers can branch with errors.Is/As instead of
// string matching, while keeping the teacher's fmt.Errorf("...: %w", err)
// wrapping idiom for everything else.
package orcherr

import "fmt"

// Code is a stable, user-facing-safe error identifier.
type Code string

const (
	ProviderUnauthorized      Code = "PROVIDER_UNAUTHORIZED"
	ProviderHTTPError         Code = "PROVIDER_HTTP_ERROR"
	ProviderTimeout           Code = "PROVIDER_TIMEOUT"
	ProviderMalformedResponse Code = "PROVIDER_MALFORMED_RESPONSE"

	ToolUnknown          Code = "TOOL_UNKNOWN"
	ToolForbidden        Code = "TOOL_FORBIDDEN"
	ToolArgInvalid       Code = "TOOL_ARG_INVALID"
	ToolExecutionFailed  Code = "TOOL_EXECUTION_FAILED"

	ClassifyFailed Code = "CLASSIFY_FAILED"
	ExpandFailed   Code = "EXPAND_FAILED"

	IterationBudget        Code = "ITERATION_BUDGET"
	NoStructuredResponse   Code = "NO_STRUCTURED_RESPONSE"
	ScriptGenerationFailed Code = "SCRIPT_GENERATION_FAILED"
	ForbiddenTools         Code = "FORBIDDEN_TOOLS"

	SessionExpired         Code = "SESSION_EXPIRED"
	NoConversationHistory  Code = "NO_CONVERSATION_HISTORY"
)

// Error pairs a stable Code and a short, non-technical UserMessage with an
// internal error that is safe to log (with stack/request context by the
// caller) but must never be returned verbatim to a client.
type Error struct {
	Code        Code
	UserMessage string
	Internal    error
}

func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Internal)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Internal }

// New constructs an *Error wrapping internal with a stable code and
// user-facing message.
func New(code Code, userMessage string, internal error) *Error {
	return &Error{Code: code, UserMessage: userMessage, Internal: internal}
}

// Is allows errors.Is(err, orcherr.Code) style matching via a sentinel
// comparison on Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinel builds a code-only *Error for use with errors.Is(err, orcherr.Sentinel(X)).
func Sentinel(code Code) *Error {
	return &Error{Code: code}
}
