package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthInfo holds runtime status for the health endpoint, populated by
// the process bootstrap.
type HealthInfo struct {
	LLMProvider    string
	DefaultModel   string
	MCPServerCount int
	SessionCount   func() int
}

// HealthHandler serves GET /api/health.
type HealthHandler struct {
	info      HealthInfo
	startTime time.Time
}

func NewHealthHandler(info HealthInfo) *HealthHandler {
	return &HealthHandler{info: info, startTime: time.Now()}
}

type healthResponse struct {
	Status     string `json:"status"`
	UptimeSecs int64  `json:"uptime_seconds"`
	Provider   string `json:"llm_provider"`
	Model      string `json:"default_model"`
	MCPServers int    `json:"mcp_servers"`
	Sessions   int    `json:"active_sessions"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	sessions := 0
	if h.info.SessionCount != nil {
		sessions = h.info.SessionCount()
	}

	resp := healthResponse{
		Status:     "ok",
		UptimeSecs: int64(time.Since(h.startTime).Seconds()),
		Provider:   h.info.LLMProvider,
		Model:      h.info.DefaultModel,
		MCPServers: h.info.MCPServerCount,
		Sessions:   sessions,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
