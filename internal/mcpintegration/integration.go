package mcpintegration

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mosiclaw/dialogue-orchestrator/internal/orcherr"
	"github.com/mosiclaw/dialogue-orchestrator/internal/provider"
)

// mcpCallTimeout bounds a single tool call at 60s, matching the teacher's
// mcpToolTimeout in internal/mcp/adapter.go. It is a fixed constant; no
// configuration option changes it.
const mcpCallTimeout = 60 * time.Second

// ToolDescriptor is the data-model type from SPEC_FULL.md §3, shared by
// discovery, validation, and provider-facing tool definitions.
type ToolDescriptor struct {
	QualifiedName   string // "<server>__<tool>"
	Description     string
	ParameterSchema json.RawMessage
}

// ToDefinition converts to the provider-neutral shape consumed by C1.
func (d ToolDescriptor) ToDefinition() provider.ToolDefinition {
	return provider.ToolDefinition{Name: d.QualifiedName, Description: d.Description, Parameters: d.ParameterSchema}
}

// CallReport is the per-call outcome of Validate.
type CallReport struct {
	ToolCall provider.ToolCall
	Valid    bool
	Reason   string
}

// Integration owns a set of MCP client connections, discovers and
// validates tool descriptors, and executes tool-call batches with a
// bounded fan-out. Grounded on the teacher's internal/mcp.Manager, with
// the reload/security-scan subsystem dropped (out of this orchestrator's
// scope — see DESIGN.md) and a fingerprinted descriptor cache and
// denylist/fan-out added per spec §4.3.
type Integration struct {
	configPath string
	fanout     int
	denylist   map[string]bool

	mu          sync.RWMutex
	clients     map[string]*Client
	descriptors map[string]ToolDescriptor // qualified name -> descriptor
	fingerprint string
}

// New constructs an Integration. fanout bounds concurrent tool execution
// within one batch (default 8 per spec §6 MCP_FANOUT); denylist blocks
// qualified tool names outright.
func New(configPath string, fanout int, denylist map[string]bool) *Integration {
	if fanout <= 0 {
		fanout = 8
	}
	if denylist == nil {
		denylist = map[string]bool{}
	}
	return &Integration{
		configPath:  configPath,
		fanout:      fanout,
		denylist:    denylist,
		clients:     make(map[string]*Client),
		descriptors: make(map[string]ToolDescriptor),
	}
}

// qualify applies the spec's exact "<server>__<tool>" convention (the
// teacher prefixes with an extra "mcp_" literal; this spec's external
// interface, §6, mandates the bare double-underscore form — see
// DESIGN.md's Open Question resolution).
func qualify(server, tool string) string {
	return server + "__" + tool
}

// Discover connects to every configured MCP server, lists its tools, and
// rebuilds the descriptor cache plus its content-hash fingerprint.
// Network I/O happens outside any lock; only the final snapshot swap is
// guarded, matching the teacher's ConnectAll/RegisterTools lock discipline.
func (in *Integration) Discover(ctx context.Context) error {
	configs, err := LoadConfig(in.configPath)
	if err != nil {
		return fmt.Errorf("mcpintegration: discover: %w", err)
	}

	newClients := make(map[string]*Client, len(configs))
	newDescriptors := make(map[string]ToolDescriptor)

	for name, cfg := range configs {
		cli := NewClient(cfg)
		if err := cli.Connect(ctx); err != nil {
			log.Printf("[MCPIntegration] connect failed: %s: %v", name, err)
			continue
		}
		tools, err := cli.ListTools(ctx)
		if err != nil {
			log.Printf("[MCPIntegration] list tools failed: %s: %v", name, err)
			_ = cli.Close()
			continue
		}
		newClients[name] = cli
		for _, t := range tools {
			qn := qualify(name, t.Name)
			newDescriptors[qn] = ToolDescriptor{
				QualifiedName:   qn,
				Description:     t.Description,
				ParameterSchema: t.InputSchema,
			}
		}
		log.Printf("[MCPIntegration] discovered %d tool(s) from %q", len(tools), name)
	}

	in.mu.Lock()
	oldClients := in.clients
	in.clients = newClients
	in.descriptors = newDescriptors
	in.fingerprint = fingerprintOf(newDescriptors)
	in.mu.Unlock()

	for name, cli := range oldClients {
		if newClients[name] != cli {
			_ = cli.Close()
		}
	}
	return nil
}

// Fingerprint returns the current descriptor-cache fingerprint, which
// changes whenever Discover finds a different descriptor set. Nothing in
// this module polls it: Discover runs once at startup, and the
// conversation engine does not re-run it.
func (in *Integration) Fingerprint() string {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.fingerprint
}

func fingerprintOf(descs map[string]ToolDescriptor) string {
	names := make([]string, 0, len(descs))
	for n := range descs {
		names = append(names, n)
	}
	sort.Strings(names)
	h := sha256.New()
	for _, n := range names {
		d := descs[n]
		h.Write([]byte(n))
		h.Write([]byte(d.Description))
		h.Write(d.ParameterSchema)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Descriptors returns a snapshot of the current tool catalog as
// provider.ToolDefinition values, ready to hand to a Provider's SetTools.
func (in *Integration) Descriptors() []provider.ToolDefinition {
	in.mu.RLock()
	defer in.mu.RUnlock()
	defs := make([]provider.ToolDefinition, 0, len(in.descriptors))
	names := make([]string, 0, len(in.descriptors))
	for n := range in.descriptors {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		defs = append(defs, in.descriptors[n].ToDefinition())
	}
	return defs
}

// Validate checks every call's qualified name against the current catalog
// and the denylist (spec §4.3/P3). Denylisted or unknown calls are never
// executed.
func (in *Integration) Validate(calls []provider.ToolCall) (allValid bool, reports []CallReport) {
	in.mu.RLock()
	defer in.mu.RUnlock()

	allValid = true
	reports = make([]CallReport, len(calls))
	for i, c := range calls {
		r := CallReport{ToolCall: c, Valid: true}
		if in.denylist[c.Name] {
			r.Valid = false
			r.Reason = string(orcherr.ToolForbidden)
		} else if _, ok := in.descriptors[c.Name]; !ok {
			r.Valid = false
			r.Reason = string(orcherr.ToolUnknown)
		}
		if !r.Valid {
			allValid = false
		}
		reports[i] = r
	}
	return allValid, reports
}

// Execute runs a (pre-validated) batch of tool calls concurrently, bounded
// by the configured fan-out, and returns results in the same positional
// order as calls (spec §4.3/§5: paired by emission index, not completion
// order). One call's failure never cancels siblings.
func (in *Integration) Execute(ctx context.Context, calls []provider.ToolCall) []provider.ToolResult {
	results := make([]provider.ToolResult, len(calls))
	sem := make(chan struct{}, in.fanout)
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		go func(i int, call provider.ToolCall) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = in.executeOne(ctx, call)
		}(i, call)
	}
	wg.Wait()
	return results
}

func (in *Integration) executeOne(ctx context.Context, call provider.ToolCall) provider.ToolResult {
	server, toolName, ok := splitQualified(call.Name)
	if !ok {
		return provider.ToolResult{ToolCallID: call.ID, Success: false, Error: fmt.Sprintf("%s: malformed qualified name %q", orcherr.ToolUnknown, call.Name)}
	}

	in.mu.RLock()
	cli := in.clients[server]
	in.mu.RUnlock()
	if cli == nil {
		return provider.ToolResult{ToolCallID: call.ID, Success: false, Error: fmt.Sprintf("%s: server %q not connected", orcherr.ToolUnknown, server)}
	}

	var args map[string]any
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return provider.ToolResult{ToolCallID: call.ID, Success: false, Error: fmt.Sprintf("%s: %v", orcherr.ToolArgInvalid, err)}
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, mcpCallTimeout)
	defer cancel()

	text, err := cli.CallTool(callCtx, toolName, args)
	if err != nil {
		reason := err.Error()
		if callCtx.Err() != nil {
			reason = fmt.Sprintf("timeout after %s: %v", mcpCallTimeout, err)
		}
		return provider.ToolResult{ToolCallID: call.ID, Success: false, Error: fmt.Sprintf("%s: %s", orcherr.ToolExecutionFailed, reason)}
	}
	return provider.ToolResult{ToolCallID: call.ID, Success: true, Content: text}
}

func splitQualified(qualified string) (server, tool string, ok bool) {
	idx := strings.Index(qualified, "__")
	if idx < 0 {
		return "", "", false
	}
	return qualified[:idx], qualified[idx+2:], true
}

// Close terminates every active server connection.
func (in *Integration) Close() {
	in.mu.Lock()
	clients := in.clients
	in.clients = map[string]*Client{}
	in.mu.Unlock()
	for name, cli := range clients {
		if err := cli.Close(); err != nil {
			log.Printf("[MCPIntegration] close error for %q: %v", name, err)
		}
	}
}
