package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

// Config collects every option recognized by the orchestrator (spec §6).
// It is loaded once at process bootstrap via LoadEnv + FromEnv.
type Config struct {
	LLMProvider string // "openai" | "anthropic"
	DefaultModel string
	ContextModel string

	SystemPromptFile           string
	AnalysisMessageTemplateFile string

	SessionTTLMinutes     int
	SessionHistoryWindow  int
	SessionMax            int

	SimilarityTopK        int
	SimilarityThreshold   float64
	ReuseThreshold        float64

	IterationBudget           int
	ToolCallBudgetPerRequest  int
	MCPFanout                 int

	ConfidenceAuto    float64
	ConfidenceConfirm float64

	EnableCaching      bool
	CacheableToolNames map[string]bool

	MCPConfigPath string
	ToolDenylist  map[string]bool
}

// FromEnv resolves a Config from environment variables, logging a warning
// and falling back to the documented default for any value that fails to
// parse, matching the teacher's loadMaxSteps idiom (internal/agent/state.go).
func FromEnv() *Config {
	c := &Config{
		LLMProvider:                 getEnvDefault("LLM_PROVIDER", "openai"),
		DefaultModel:                getEnvDefault("DEFAULT_MODEL", "gpt-4o-mini"),
		ContextModel:                getEnvDefault("CONTEXT_MODEL", "gpt-4o-mini"),
		SystemPromptFile:            os.Getenv("SYSTEM_PROMPT_FILE"),
		AnalysisMessageTemplateFile: os.Getenv("ANALYSIS_MESSAGE_TEMPLATE_FILE"),

		SessionTTLMinutes:    getEnvInt("SESSION_TTL_MINUTES", 30, 1, 24*60),
		SessionHistoryWindow: getEnvInt("SESSION_HISTORY_WINDOW", 10, 1, 1000),
		SessionMax:           getEnvInt("SESSION_MAX", 1000, 1, 1_000_000),

		SimilarityTopK:      getEnvInt("SIMILARITY_TOP_K", 5, 1, 100),
		SimilarityThreshold: getEnvFloat("SIMILARITY_THRESHOLD", 0.3, 0, 1),
		ReuseThreshold:      getEnvFloat("REUSE_THRESHOLD", 0.6, 0, 1),

		IterationBudget:          getEnvInt("ITERATION_BUDGET", 20, 1, 1000),
		ToolCallBudgetPerRequest: getEnvInt("TOOL_CALL_BUDGET_PER_REQUEST", 64, 1, 10_000),
		MCPFanout:                getEnvInt("MCP_FANOUT", 8, 1, 256),

		ConfidenceAuto:    getEnvFloat("CONFIDENCE_AUTO", 0.8, 0, 1),
		ConfidenceConfirm: getEnvFloat("CONFIDENCE_CONFIRM", 0.5, 0, 1),

		EnableCaching: getEnvBool("ENABLE_CACHING", false),

		MCPConfigPath: getEnvDefault("MCP_CONFIG_PATH", "mcp.json"),
	}

	c.CacheableToolNames = parseSet(getEnvDefault("CACHEABLE_TOOL_NAMES", "get_function_docstring"))
	c.ToolDenylist = parseSet(os.Getenv("TOOL_DENYLIST"))

	return c
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def, min, max int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		log.Printf("[Config] WARNING: invalid %s=%q (must be %d-%d), using default %d", key, v, min, max, def)
		return def
	}
	return n
}

func getEnvFloat(key string, def, min, max float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < min || f > max {
		log.Printf("[Config] WARNING: invalid %s=%q (must be %.1f-%.1f), using default %.2f", key, v, min, max, def)
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[Config] WARNING: invalid %s=%q, using default %v", key, v, def)
		return def
	}
	return b
}

func parseSet(csv string) map[string]bool {
	set := map[string]bool{}
	for _, item := range strings.Split(csv, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			set[item] = true
		}
	}
	return set
}

// Validate checks the invariants FromEnv's clamping cannot express by
// itself (cross-field consistency).
func (c *Config) Validate() error {
	if c.ConfidenceConfirm > c.ConfidenceAuto {
		return fmt.Errorf("config: CONFIDENCE_CONFIRM (%.2f) must be <= CONFIDENCE_AUTO (%.2f)", c.ConfidenceConfirm, c.ConfidenceAuto)
	}
	if c.LLMProvider != "openai" && c.LLMProvider != "anthropic" {
		return fmt.Errorf("config: unsupported LLM_PROVIDER %q (use 'openai' or 'anthropic')", c.LLMProvider)
	}
	return nil
}
