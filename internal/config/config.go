// Package config loads and validates Sentinel's static configuration:
// chat model providers, autonomy defaults, classifier rules, external
// tool servers, the container sandbox, and storage location.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the root configuration document, loaded from YAML with
// ${VAR} environment expansion and $include directives (see loader.go).
type Config struct {
	Version int `yaml:"version"`

	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	Autonomy AutonomyConfig `yaml:"autonomy"`
	Tools    ToolsConfig    `yaml:"tools"`
	ETP      ETPConfig      `yaml:"etp"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
	Storage  StorageConfig  `yaml:"storage"`
	Audit    AuditConfig    `yaml:"audit"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig configures the event-stream / approval API surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LLMConfig configures the ChatModel providers the Planner and
// reasoning-only steps call.
type LLMConfig struct {
	DefaultProvider string                       `yaml:"default_provider"`
	Providers       map[string]LLMProviderConfig `yaml:"providers"`
}

// LLMProviderConfig configures a single ChatModel backend.
type LLMProviderConfig struct {
	// Kind selects the provider implementation: "openai" (OpenAI-compatible,
	// covers Ollama/OpenRouter-style endpoints too) or "anthropic".
	Kind         string `yaml:"kind"`
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
}

// AutonomyConfig configures the default autonomy level and rule lists
// applied to projects with no explicit per-project override.
type AutonomyConfig struct {
	DefaultLevel string   `yaml:"default_level"` // L1..L5
	Allowlist    []string `yaml:"allowlist"`
	Blocklist    []string `yaml:"blocklist"`
}

// ToolsConfig configures the built-in tool surface.
type ToolsConfig struct {
	FilesystemAllowlist []string      `yaml:"filesystem_allowlist"`
	BlockedPatterns     []string      `yaml:"blocked_patterns"`
	WebSearch           WebSearchCfg  `yaml:"web_search"`
	CodeExecTimeout     time.Duration `yaml:"code_exec_timeout"`
	BrowserNavTimeout   time.Duration `yaml:"browser_nav_timeout"`
	Repo                RepoCfg       `yaml:"repo"`
	Knowledge           KnowledgeCfg  `yaml:"knowledge"`
}

// WebSearchCfg configures the web search tool's providers and cache.
type WebSearchCfg struct {
	PrimaryProvider  string        `yaml:"primary_provider"`
	FallbackProvider string        `yaml:"fallback_provider"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
}

// RepoCfg configures RepoTool's default auth and target host. Token is
// the fallback credential; a per-call "token" param always overrides it.
type RepoCfg struct {
	Token   string `yaml:"token"`
	BaseURL string `yaml:"base_url"`
}

// KnowledgeCfg configures KnowledgeQueryTool's defaults. No collection
// backend is configured here; one is registered at runtime via
// knowledge.Config's Backend field when a vector store is available.
type KnowledgeCfg struct {
	DefaultTopK     int     `yaml:"default_top_k"`
	DefaultMinScore float64 `yaml:"default_min_score"`
}

// ETPConfig configures the external tool protocol manager.
type ETPConfig struct {
	Servers []ExternalServerConfig `yaml:"servers"`
}

// ExternalServerConfig mirrors spec.md's ExternalServerConfig persisted record.
type ExternalServerConfig struct {
	ID             string            `yaml:"id"`
	Name           string            `yaml:"name"`
	Transport      string            `yaml:"transport"` // stdio | http
	Command        string            `yaml:"command"`
	Args           []string          `yaml:"args"`
	Env            map[string]string `yaml:"env"`
	URL            string            `yaml:"url"`
	Headers        map[string]string `yaml:"headers"`
	Trust          string            `yaml:"trust"` // builtin | verified | user_added
	SandboxEnabled bool              `yaml:"sandbox_enabled"`
	Enabled        bool              `yaml:"enabled"`
	Category       string            `yaml:"category"`
}

// SandboxConfig configures the container sandbox backend for untrusted
// stdio tool servers.
type SandboxConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Mode         string `yaml:"mode"`  // off | all | non-main
	Scope        string `yaml:"scope"` // agent | session | shared
	KernelPath   string `yaml:"kernel_path"`
	RootFSImage  string `yaml:"rootfs_image"`
	DefaultVCPUs int64  `yaml:"default_vcpus"`
	DefaultMemMB int64  `yaml:"default_mem_mb"`
	MaxPIDs      int    `yaml:"max_pids"`
}

// StorageConfig configures the embedded SQL database.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// AuditConfig configures audit retention.
type AuditConfig struct {
	StandardRetention time.Duration `yaml:"standard_retention"`
	YoloRetention     time.Duration `yaml:"yolo_retention"`
	CleanupCron       string        `yaml:"cleanup_cron"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | text
}

// Default returns the built-in configuration defaults, applied before a
// config file (if any) is merged on top.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Server:  ServerConfig{Addr: ":8088"},
		LLM: LLMConfig{
			DefaultProvider: "openai",
			Providers: map[string]LLMProviderConfig{
				"openai":    {Kind: "openai", DefaultModel: "gpt-4o-mini"},
				"anthropic": {Kind: "anthropic", DefaultModel: "claude-3-5-sonnet-20241022"},
			},
		},
		Autonomy: AutonomyConfig{DefaultLevel: "L2"},
		Tools: ToolsConfig{
			CodeExecTimeout:   300 * time.Second,
			BrowserNavTimeout: 30 * time.Second,
			WebSearch: WebSearchCfg{
				PrimaryProvider:  "serpapi",
				FallbackProvider: "html-scrape",
				CacheTTL:         5 * time.Minute,
			},
			Repo: RepoCfg{
				BaseURL: "https://api.github.com",
			},
			Knowledge: KnowledgeCfg{
				DefaultTopK:     5,
				DefaultMinScore: 0,
			},
		},
		Sandbox: SandboxConfig{
			Enabled:      false,
			DefaultVCPUs: 1,
			DefaultMemMB: 512,
			MaxPIDs:      50,
		},
		Storage: StorageConfig{Path: "sentinel.db"},
		Audit: AuditConfig{
			StandardRetention: 30 * 24 * time.Hour,
			YoloRetention:     90 * 24 * time.Hour,
			CleanupCron:       "0 3 * * *",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// mergeConfig overlays non-zero fields of override onto base, returning base.
// Maps and slices in override replace the corresponding base field wholesale
// when non-empty, matching the teacher's "last one wins" include semantics.
func mergeConfig(base, override *Config) *Config {
	if override == nil {
		return base
	}
	if override.Version != 0 {
		base.Version = override.Version
	}
	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}
	if override.LLM.DefaultProvider != "" {
		base.LLM.DefaultProvider = override.LLM.DefaultProvider
	}
	for name, p := range override.LLM.Providers {
		if base.LLM.Providers == nil {
			base.LLM.Providers = map[string]LLMProviderConfig{}
		}
		base.LLM.Providers[name] = p
	}
	if override.Autonomy.DefaultLevel != "" {
		base.Autonomy.DefaultLevel = override.Autonomy.DefaultLevel
	}
	if len(override.Autonomy.Allowlist) > 0 {
		base.Autonomy.Allowlist = override.Autonomy.Allowlist
	}
	if len(override.Autonomy.Blocklist) > 0 {
		base.Autonomy.Blocklist = override.Autonomy.Blocklist
	}
	if len(override.Tools.FilesystemAllowlist) > 0 {
		base.Tools.FilesystemAllowlist = override.Tools.FilesystemAllowlist
	}
	if len(override.Tools.BlockedPatterns) > 0 {
		base.Tools.BlockedPatterns = override.Tools.BlockedPatterns
	}
	if override.Tools.CodeExecTimeout > 0 {
		base.Tools.CodeExecTimeout = override.Tools.CodeExecTimeout
	}
	if override.Tools.BrowserNavTimeout > 0 {
		base.Tools.BrowserNavTimeout = override.Tools.BrowserNavTimeout
	}
	if override.Tools.WebSearch.PrimaryProvider != "" {
		base.Tools.WebSearch = override.Tools.WebSearch
	}
	if override.Tools.Repo.Token != "" {
		base.Tools.Repo.Token = override.Tools.Repo.Token
	}
	if override.Tools.Repo.BaseURL != "" {
		base.Tools.Repo.BaseURL = override.Tools.Repo.BaseURL
	}
	if override.Tools.Knowledge.DefaultTopK > 0 {
		base.Tools.Knowledge.DefaultTopK = override.Tools.Knowledge.DefaultTopK
	}
	if override.Tools.Knowledge.DefaultMinScore > 0 {
		base.Tools.Knowledge.DefaultMinScore = override.Tools.Knowledge.DefaultMinScore
	}
	if len(override.ETP.Servers) > 0 {
		base.ETP.Servers = override.ETP.Servers
	}
	if override.Sandbox.Enabled {
		base.Sandbox = override.Sandbox
	}
	if override.Storage.Path != "" {
		base.Storage.Path = override.Storage.Path
	}
	if override.Audit.StandardRetention > 0 {
		base.Audit.StandardRetention = override.Audit.StandardRetention
	}
	if override.Audit.YoloRetention > 0 {
		base.Audit.YoloRetention = override.Audit.YoloRetention
	}
	if override.Audit.CleanupCron != "" {
		base.Audit.CleanupCron = override.Audit.CleanupCron
	}
	if override.Log.Level != "" {
		base.Log.Level = override.Log.Level
	}
	if override.Log.Format != "" {
		base.Log.Format = override.Log.Format
	}
	return base
}

// applyEnvOverrides reads recognized environment variables (spec.md §6)
// and overlays them onto cfg, taking precedence over the config file.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		setProviderKey(cfg, "openai", v)
	}
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		setProviderKey(cfg, "anthropic", v)
	}
	if v := strings.TrimSpace(os.Getenv("SENTINEL_DATA_DIR")); v != "" {
		cfg.Storage.Path = v + "/sentinel.db"
	}
	if v := strings.TrimSpace(os.Getenv("SENTINEL_TEST_MODE")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil && b {
			cfg.Log.Level = "debug"
		}
	}
	if v := strings.TrimSpace(os.Getenv("GITHUB_TOKEN")); v != "" {
		cfg.Tools.Repo.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("SENTINEL_REPO_TOKEN")); v != "" {
		cfg.Tools.Repo.Token = v
	}
}

func setProviderKey(cfg *Config, name, key string) {
	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = map[string]LLMProviderConfig{}
	}
	p := cfg.LLM.Providers[name]
	p.APIKey = key
	cfg.LLM.Providers[name] = p
}
