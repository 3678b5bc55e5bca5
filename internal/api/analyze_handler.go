package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mosiclaw/dialogue-orchestrator/internal/orchestrator"
)

// analyzeRequestBody is the wire shape of the inbound analysis entry
// point (spec §6): question, optional session_id/model/auto_expand/
// enable_caching/user_id.
type analyzeRequestBody struct {
	Question      string `json:"question"`
	SessionID     string `json:"session_id,omitempty"`
	Model         string `json:"model,omitempty"`
	AutoExpand    bool   `json:"auto_expand,omitempty"`
	EnableCaching bool   `json:"enable_caching,omitempty"`
	UserID        string `json:"user_id,omitempty"`
}

// analyzeResponseBody is the wire shape of the response envelope:
// success + timestamp, and exactly one of analysis_result,
// needs_user_input+context_result, or error.
type analyzeResponseBody struct {
	Success        bool            `json:"success"`
	Timestamp      string          `json:"timestamp"`
	SessionID      string          `json:"session_id,omitempty"`
	AnalysisResult *analysisResult `json:"analysis_result,omitempty"`
	NeedsUserInput bool            `json:"needs_user_input,omitempty"`
	ContextResult  *contextResult  `json:"context_result,omitempty"`
	Error          *errorPayload   `json:"error,omitempty"`
}

type analysisResult struct {
	ResponseType string `json:"response_type"`
	Data         any    `json:"data"`
}

type contextResult struct {
	Message    string   `json:"message"`
	Options    []string `json:"options,omitempty"`
	Original   string   `json:"original,omitempty"`
	Expanded   string   `json:"expanded,omitempty"`
	Confidence float64  `json:"confidence,omitempty"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AnalyzeHandler serves POST /api/analyze.
type AnalyzeHandler struct {
	orch *orchestrator.Orchestrator
}

func NewAnalyzeHandler(orch *orchestrator.Orchestrator) *AnalyzeHandler {
	return &AnalyzeHandler{orch: orch}
}

func (h *AnalyzeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var body analyzeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, analyzeResponseBody{
			Success: false,
			Error:   &errorPayload{Code: "INVALID_REQUEST", Message: "the request body could not be parsed"},
		})
		return
	}
	if body.Question == "" {
		writeJSON(w, http.StatusBadRequest, analyzeResponseBody{
			Success: false,
			Error:   &errorPayload{Code: "INVALID_REQUEST", Message: "question is required"},
		})
		return
	}

	result := h.orch.Analyze(r.Context(), orchestrator.Request{
		Question:      body.Question,
		SessionID:     body.SessionID,
		Model:         body.Model,
		AutoExpand:    body.AutoExpand,
		EnableCaching: body.EnableCaching,
		UserID:        body.UserID,
	})

	writeJSON(w, http.StatusOK, toResponseBody(result))
}

func toResponseBody(result *orchestrator.Response) analyzeResponseBody {
	body := analyzeResponseBody{
		Success:   result.Success,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		SessionID: result.SessionID,
	}
	if result.AnalysisResult != nil {
		body.AnalysisResult = &analysisResult{
			ResponseType: string(result.AnalysisResult.ResponseType),
			Data:         result.AnalysisResult.Data,
		}
	}
	if result.NeedsUserInput {
		body.NeedsUserInput = true
		if result.ContextResult != nil {
			body.ContextResult = &contextResult{
				Message:    result.ContextResult.Message,
				Options:    result.ContextResult.Options,
				Original:   result.ContextResult.Original,
				Expanded:   result.ContextResult.Expanded,
				Confidence: result.ContextResult.Confidence,
			}
		}
	}
	if result.Error != nil {
		body.Error = &errorPayload{Code: string(result.Error.Code), Message: result.Error.Message}
	}
	return body
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
