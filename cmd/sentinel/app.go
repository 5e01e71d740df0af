package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/arclight-ai/sentinel/internal/approval"
	"github.com/arclight-ai/sentinel/internal/audit"
	"github.com/arclight-ai/sentinel/internal/autonomy"
	"github.com/arclight-ai/sentinel/internal/chatmodel"
	"github.com/arclight-ai/sentinel/internal/classifier"
	"github.com/arclight-ai/sentinel/internal/config"
	"github.com/arclight-ai/sentinel/internal/etp"
	"github.com/arclight-ai/sentinel/internal/eventbus"
	"github.com/arclight-ai/sentinel/internal/executor"
	"github.com/arclight-ai/sentinel/internal/planner"
	"github.com/arclight-ai/sentinel/internal/sandbox"
	"github.com/arclight-ai/sentinel/internal/storage"
	"github.com/arclight-ai/sentinel/internal/tool"
	"github.com/arclight-ai/sentinel/internal/tools/browser"
	"github.com/arclight-ai/sentinel/internal/tools/exec"
	"github.com/arclight-ai/sentinel/internal/tools/files"
	"github.com/arclight-ai/sentinel/internal/tools/knowledge"
	"github.com/arclight-ai/sentinel/internal/tools/repo"
	sandboxtool "github.com/arclight-ai/sentinel/internal/tools/sandbox"
	"github.com/arclight-ai/sentinel/internal/tools/websearch"
	"github.com/arclight-ai/sentinel/pkg/models"
)

// app bundles every collaborator the executor loop needs, wired from a
// loaded config.Config. One app is built per `run` or `serve` invocation.
type app struct {
	cfg       *config.Config
	store     *storage.SQLiteStore
	registry  *tool.Registry
	bus       *eventbus.Bus
	auto      *autonomy.Service
	approvals *approval.Manager
	classif   *classifier.Classifier
	exec      *executor.Executor
	etpMgr    *etp.Manager
	auditLog  *audit.Logger
	logger    *slog.Logger
	closed    atomic.Bool
}

// buildApp loads cfg from configPath, opens storage, and wires every
// collaborator. Callers must call Close when done.
func buildApp(configPath string, logger *slog.Logger) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return buildAppFromConfig(cfg, logger)
}

func buildAppFromConfig(cfg *config.Config, logger *slog.Logger) (*app, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	registry := tool.NewRegistry()
	bus := eventbus.New(0, logger)
	autoSvc := autonomy.New(store.Autonomy(), logger)
	approvalMgr := approval.New(store.ApprovalCache(), bus, logger)
	cls := classifier.New(registry, autonomyLookup{autoSvc})

	registerBuiltinTools(registry, cfg, logger)

	launcher := sandbox.NewLauncher("")
	etpMgr := etp.NewManager(registry, launcher, logger)

	model, err := buildChatModel(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	plan := planner.New(model)

	exr := executor.New(registry, plan, model, cls, autoSvc, approvalMgr, store.Audit(), bus, logger)

	auditLog, err := newAuditLogger(cfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build audit logger: %w", err)
	}

	application := &app{
		cfg: cfg, store: store, registry: registry, bus: bus,
		auto: autoSvc, approvals: approvalMgr, classif: cls,
		exec: exr, etpMgr: etpMgr, auditLog: auditLog, logger: logger,
	}
	go application.runAuditBridgeUntilClosed()

	return application, nil
}

// runAuditBridgeUntilClosed keeps the structured-event audit log attached
// across the app's lifetime. Each eventbus.Subscription auto-closes after
// delivering a terminal event, so a long-running `serve` process
// (potentially driving many sequential runs) resubscribes after each one.
func (a *app) runAuditBridgeUntilClosed() {
	for {
		if a.closed.Load() {
			return
		}
		sub := a.bus.Subscribe()
		runAuditBridge(a.auditLog, sub)
	}
}

// autonomyLookup adapts *autonomy.Service to classifier.AutonomyLookup by
// adding the per-project rule accessors the classifier reads directly.
type autonomyLookup struct{ *autonomy.Service }

func (a autonomyLookup) Allowlist(projectPath string) []string { return a.Service.Allowlist(projectPath) }
func (a autonomyLookup) Blocklist(projectPath string) []string { return a.Service.Blocklist(projectPath) }

// Close releases the store and audit log. The audit bridge goroutine is
// left to exit with the process; both callers (run, serve) shut down
// shortly after calling Close.
func (a *app) Close() error {
	a.closed.Store(true)
	_ = a.auditLog.Close()
	return a.store.Close()
}

// connectExternalServers connects every enabled server configured in
// cfg.ETP.Servers. Failures are logged, not fatal — spec.md §4.5's
// reconnect loop takes over from there.
func (a *app) connectExternalServers(ctx context.Context) {
	for _, sc := range a.cfg.ETP.Servers {
		cfg := toModelServerConfig(sc)
		cfg.ApplyTrustDefaults()
		if !cfg.Enabled {
			continue
		}
		if err := a.etpMgr.Connect(ctx, cfg); err != nil {
			a.logger.Warn("failed to connect external tool server", "server", cfg.Name, "error", err)
		}
	}
}

func registerBuiltinTools(registry *tool.Registry, cfg *config.Config, logger *slog.Logger) {
	fcfg := files.Config{Workspace: ".", MaxReadBytes: 0}
	registry.RegisterBuiltin(files.NewReadTool(fcfg))
	registry.RegisterBuiltin(files.NewWriteTool(fcfg))
	registry.RegisterBuiltin(files.NewEditTool(fcfg))
	registry.RegisterBuiltin(files.NewDeleteTool(fcfg))
	registry.RegisterBuiltin(files.NewListTool(fcfg))
	registry.RegisterBuiltin(files.NewApplyPatchTool(fcfg))

	// execute_command is a generic shell runner; it is a distinct contract
	// from the language-dispatched execute_code tool registered below and
	// stays available for ad hoc shell invocations the planner issues.
	execMgr := exec.NewManager(".")
	registry.RegisterBuiltin(exec.NewExecTool("execute_command", execMgr))
	registry.RegisterBuiltin(exec.NewProcessTool(execMgr))

	codeExec, err := sandboxtool.NewExecutor(
		sandboxtool.WithDefaultTimeout(cfg.Tools.CodeExecTimeout),
	)
	if err != nil {
		logger.Warn("execute_code tool unavailable, skipping registration", "error", err)
	} else {
		registry.RegisterBuiltin(codeExec)
	}

	browserPool, err := browser.NewPool(browser.PoolConfig{
		Timeout:  cfg.Tools.BrowserNavTimeout,
		Headless: true,
	})
	if err != nil {
		logger.Warn("browser runtime unavailable, skipping browser tool registration", "error", err)
	} else {
		registry.RegisterBuiltin(browser.NewBrowserTool(browserPool))
	}

	registry.RegisterBuiltin(repo.NewRepoTool(repo.Config{
		Token:   cfg.Tools.Repo.Token,
		BaseURL: cfg.Tools.Repo.BaseURL,
	}))

	registry.RegisterBuiltin(knowledge.NewQueryTool(knowledge.Config{
		DefaultTopK:     cfg.Tools.Knowledge.DefaultTopK,
		DefaultMinScore: cfg.Tools.Knowledge.DefaultMinScore,
	}, nil))

	wscfg := &websearch.Config{
		DefaultBackend:     websearch.BackendDuckDuckGo,
		DefaultResultCount: 10,
		CacheTTL:           int(cfg.Tools.WebSearch.CacheTTL.Seconds()),
	}
	registry.RegisterBuiltin(websearch.NewWebSearchTool(wscfg))
	registry.RegisterBuiltin(websearch.NewWebFetchTool(&websearch.FetchConfig{}))
}

func buildChatModel(cfg *config.Config) (chatmodel.ChatModel, error) {
	provider, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]
	if !ok {
		return nil, fmt.Errorf("llm provider %q not configured", cfg.LLM.DefaultProvider)
	}
	switch provider.Kind {
	case "anthropic":
		return chatmodel.NewAnthropicProvider(chatmodel.AnthropicConfig{
			APIKey:       provider.APIKey,
			BaseURL:      provider.BaseURL,
			DefaultModel: provider.DefaultModel,
		})
	case "openai", "":
		return chatmodel.NewOpenAIProvider(provider.APIKey), nil
	default:
		return nil, fmt.Errorf("unknown llm provider kind %q", provider.Kind)
	}
}

// toModelServerConfig converts the YAML-loaded server config into the
// models.ExternalServerConfig the etp manager and storage layer share.
func toModelServerConfig(sc config.ExternalServerConfig) models.ExternalServerConfig {
	out := models.ExternalServerConfig{
		ID:             sc.ID,
		Name:           sc.Name,
		Command:        sc.Command,
		Args:           sc.Args,
		Env:            sc.Env,
		URL:            sc.URL,
		Headers:        sc.Headers,
		Trust:          models.TrustLevel(sc.Trust),
		SandboxEnabled: sc.SandboxEnabled,
		Enabled:        sc.Enabled,
		Category:       sc.Category,
		CreatedAt:      time.Now(),
	}
	if sc.Transport == "http" {
		out.Transport = models.TransportHTTP
	} else {
		out.Transport = models.TransportStdio
	}
	return out
}

// resolveConfigPath applies the teacher's precedence: an explicit --config
// flag wins; otherwise SENTINEL_CONFIG, then the default path.
func resolveConfigPath(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if v := os.Getenv("SENTINEL_CONFIG"); v != "" {
		return v
	}
	return "sentinel.yaml"
}
