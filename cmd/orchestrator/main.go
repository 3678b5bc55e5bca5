package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mosiclaw/dialogue-orchestrator/internal/analysislib"
	"github.com/mosiclaw/dialogue-orchestrator/internal/api"
	"github.com/mosiclaw/dialogue-orchestrator/internal/config"
	"github.com/mosiclaw/dialogue-orchestrator/internal/conversation"
	"github.com/mosiclaw/dialogue-orchestrator/internal/dialogue"
	"github.com/mosiclaw/dialogue-orchestrator/internal/events"
	"github.com/mosiclaw/dialogue-orchestrator/internal/llmsvc"
	"github.com/mosiclaw/dialogue-orchestrator/internal/mcpintegration"
	"github.com/mosiclaw/dialogue-orchestrator/internal/orchestrator"
	"github.com/mosiclaw/dialogue-orchestrator/internal/provider"
	"github.com/mosiclaw/dialogue-orchestrator/internal/provider/anthropicdialect"
	"github.com/mosiclaw/dialogue-orchestrator/internal/provider/openaidialect"
	"github.com/mosiclaw/dialogue-orchestrator/internal/search"
	"github.com/mosiclaw/dialogue-orchestrator/internal/session"
	"github.com/mosiclaw/dialogue-orchestrator/internal/reuse"
)

func main() {
	config.LoadEnv()

	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║   Dialogue Orchestrator v0.1          ║")
	fmt.Println("║   Context-aware financial analysis    ║")
	fmt.Println("╚══════════════════════════════════════╝")

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	mainAdapter, contextAdapter, err := buildAdapters(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize LLM provider: %v", err)
	}
	fmt.Printf("🤖 LLM: %s (default=%s, context=%s)\n", cfg.LLMProvider, cfg.DefaultModel, cfg.ContextModel)

	systemPrompt := config.LoadSystemPrompt(cfg.SystemPromptFile)
	mainAdapter.SetSystemPrompt(systemPrompt)

	mainSvc := llmsvc.New(cfg.LLMProvider, cfg.DefaultModel, mainAdapter)
	contextSvc := llmsvc.New(cfg.LLMProvider, cfg.ContextModel, contextAdapter)

	mcp := mcpintegration.New(cfg.MCPConfigPath, cfg.MCPFanout, cfg.ToolDenylist)
	if err := mcp.Discover(context.Background()); err != nil {
		log.Printf("⚠️  MCP discovery failed: %v (continuing with no tools)", err)
	}
	mainSvc.SetTools(mcp.Descriptors())
	fmt.Printf("🔌 MCP: %d tool(s) discovered\n", len(mcp.Descriptors()))
	defer mcp.Close()

	sessionTTL := time.Duration(cfg.SessionTTLMinutes) * time.Minute
	sessionStore := session.NewStore(sessionTTL, cfg.SessionHistoryWindow, cfg.SessionMax)
	defer sessionStore.Close()
	fmt.Printf("💬 Session: TTL=%v window=%d max=%d\n", sessionTTL, cfg.SessionHistoryWindow, cfg.SessionMax)

	classifier := dialogue.NewClassifier(contextSvc)
	expander := dialogue.NewExpander(contextSvc)

	// No concrete analysis-library backend is wired by default; the
	// persisted analysis corpus is an external collaborator this
	// orchestrator only ever consumes through analysislib.Library.
	library := analysislib.NullLibrary{}

	contextSearch := search.New(library, sessionStore, classifier, expander)

	reuseEvaluator := reuse.NewEvaluator(contextSvc)

	engine := conversation.New(mainSvc, mcp, cfg.DefaultModel, cfg.CacheableToolNames, cfg.IterationBudget, cfg.ToolCallBudgetPerRequest)

	bus := events.NewBus()

	orch := orchestrator.New(contextSearch, reuseEvaluator, engine, bus, cfg.SystemPromptFile, cfg.AnalysisMessageTemplateFile, cfg.SimilarityThreshold)

	mcpServers, _ := mcpintegration.LoadConfig(cfg.MCPConfigPath)

	server := api.NewServer(orch, bus, api.HealthInfo{
		LLMProvider:    cfg.LLMProvider,
		DefaultModel:   cfg.DefaultModel,
		MCPServerCount: len(mcpServers),
		SessionCount:   sessionStore.Count,
	})

	if err := server.Start(); err != nil {
		log.Fatalf("❌ Server error: %v", err)
	}
}

// buildAdapters constructs the main and dedicated-context provider
// adapters for the configured dialect. They are two separate instances
// (not one shared adapter) because each owns exactly one system-prompt
// field and C5's classify/expand calls need a different prompt per call
// than the Conversation Engine's tool-calling system prompt.
func buildAdapters(cfg *config.Config) (provider.Provider, provider.Provider, error) {
	switch cfg.LLMProvider {
	case "openai":
		main, err := openaidialect.NewFromEnv()
		if err != nil {
			return nil, nil, err
		}
		ctxAdapter, err := openaidialect.NewFromEnv()
		if err != nil {
			return nil, nil, err
		}
		return main, ctxAdapter, nil
	case "anthropic":
		main, err := anthropicdialect.NewFromEnv()
		if err != nil {
			return nil, nil, err
		}
		ctxAdapter, err := anthropicdialect.NewFromEnv()
		if err != nil {
			return nil, nil, err
		}
		return main, ctxAdapter, nil
	default:
		return nil, nil, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.LLMProvider)
	}
}
