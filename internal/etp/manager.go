package etp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arclight-ai/sentinel/internal/backoff"
	"github.com/arclight-ai/sentinel/internal/sandbox"
	"github.com/arclight-ai/sentinel/internal/tool"
	"github.com/arclight-ai/sentinel/pkg/models"
)

// MaxReconnectAttempts bounds the exponential-backoff reconnect loop
// before a server is marked errored and deregistered, per spec.md §4.5.
const MaxReconnectAttempts = 5

// reconnectPolicy: base 1s, factor 2, cap 60s, with jitter.
var reconnectPolicy = backoff.BackoffPolicy{InitialMs: 1000, MaxMs: 60000, Factor: 2, Jitter: 0.2}

// CallTimeout is the default per-call timeout for tools/call, per
// spec.md §4.12 ("ETP call: 120 s unless overridden").
const CallTimeout = 120 * time.Second

// connection is one server's live state: its client, the tools it last
// reported, and reconnect bookkeeping.
type connection struct {
	cfg    models.ExternalServerConfig
	client *Client
	tools  []ToolInfo
}

// Manager owns every ETP server connection. Callers never touch
// transports directly (spec.md §5): they go through Connect, CallTool
// (indirectly, via the registered tool.Tool bridge), and Disconnect.
type Manager struct {
	registry *tool.Registry
	launcher *sandbox.Launcher
	logger   *slog.Logger

	mu      sync.RWMutex
	conns   map[string]*connection
	sleeper func(time.Duration)
}

// NewManager returns a Manager that registers discovered tools into
// registry and, for user_added/sandbox_enabled stdio servers, launches
// them through launcher. launcher may be nil, in which case sandboxing is
// always treated as unavailable (documented downgrade).
func NewManager(registry *tool.Registry, launcher *sandbox.Launcher, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		registry: registry,
		launcher: launcher,
		logger:   logger,
		conns:    map[string]*connection{},
		sleeper:  time.Sleep,
	}
}

// Connect opens cfg's transport, runs the initialize handshake, caches its
// tool list, and registers each discovered tool into the registry under
// its namespaced name. On success it logs a server_connected event (spec's
// fixed 13 AgentEvent types have no ETP-specific member, so this is
// surfaced via structured logging rather than the event bus — see
// DESIGN.md).
func (m *Manager) Connect(ctx context.Context, cfg models.ExternalServerConfig) error {
	client := NewClient(cfg)

	launch, err := m.sandboxLaunch(cfg)
	if err != nil {
		return err
	}
	if err := client.Connect(ctx, launch); err != nil {
		return err
	}

	tools, err := client.ListTools(ctx)
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("etp: list tools for %q: %w", cfg.Name, err)
	}

	m.mu.Lock()
	if existing, ok := m.conns[cfg.ID]; ok {
		_ = existing.client.Close()
	}
	m.conns[cfg.ID] = &connection{cfg: cfg, client: client, tools: tools}
	m.mu.Unlock()

	for _, ti := range tools {
		m.registerTool(cfg, ti)
	}

	m.logger.Info("etp server connected",
		"server_id", cfg.ID, "server_name", cfg.Name, "transport", cfg.Transport, "tool_count", len(tools))
	return nil
}

// sandboxLaunch resolves the launch override for a stdio server per
// spec.md §4.5's trust/sandbox_enabled rules. Returns nil (launch
// cfg.Command/cfg.Args directly) for http transport, verified servers, or
// when sandboxing is disabled/unavailable.
func (m *Manager) sandboxLaunch(cfg models.ExternalServerConfig) (*launchCommand, error) {
	if cfg.Transport != models.TransportStdio {
		return nil, nil
	}

	var policy sandbox.Policy
	switch {
	case cfg.Trust == models.TrustUserAdded && cfg.SandboxEnabled:
		policy = sandbox.DefaultPolicy()
	case cfg.Trust == models.TrustVerified:
		policy = sandbox.VerifiedPolicy()
	default:
		return nil, nil
	}

	if m.launcher == nil || !m.launcher.Available() {
		if cfg.Trust == models.TrustUserAdded && cfg.SandboxEnabled {
			m.logger.Warn("etp: container runtime unavailable, launching stdio server unsandboxed",
				"server_id", cfg.ID, "server_name", cfg.Name)
		}
		return nil, nil
	}

	command, args, err := m.launcher.Wrap(cfg.Command, cfg.Args, cfg.Env, policy)
	if err != nil {
		return nil, fmt.Errorf("etp: sandbox wrap %q: %w", cfg.Name, err)
	}
	return &launchCommand{command: command, args: args}, nil
}

// registerTool wraps one discovered ToolInfo as a tool.Tool and registers
// it into the external namespace. requires_approval_default is true iff
// the server's trust is user_added, per spec.md §4.4.
func (m *Manager) registerTool(cfg models.ExternalServerConfig, ti ToolInfo) {
	name := tool.ExternalNamePrefix(cfg.ID, ti.Name)
	description := tool.ExternalDescriptionPrefix(cfg.Name, ti.Description)
	bridged := &externalTool{
		name:             name,
		description:      description,
		originalName:     ti.Name,
		schema:           decodeSchema(ti.InputSchema),
		category:         cfg.Category,
		requiresApproval: cfg.Trust == models.TrustUserAdded,
		manager:          m,
		serverID:         cfg.ID,
	}
	m.registry.RegisterExternal(name, bridged)
}

// CallTool invokes the named (original, unprefixed) tool on serverID.
// Transport errors trigger an asynchronous reconnect and are returned to
// the caller unmodified; the manager never replays the call itself.
func (m *Manager) CallTool(ctx context.Context, serverID, name string, args map[string]any) (string, error) {
	m.mu.RLock()
	conn, ok := m.conns[serverID]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("etp: server %q not connected", serverID)
	}

	callCtx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()

	result, err := conn.client.CallTool(callCtx, name, args)
	if err != nil {
		var transportErr *TransportError
		if errors.As(err, &transportErr) {
			go m.reconnect(context.Background(), conn.cfg)
		}
		return "", err
	}
	return result, nil
}

// reconnect retries Connect with exponential backoff and jitter (base 1s,
// factor 2, cap 60s). After MaxReconnectAttempts failures the server is
// marked last_error and deregistered from the registry.
func (m *Manager) reconnect(ctx context.Context, cfg models.ExternalServerConfig) {
	for attempt := 1; attempt <= MaxReconnectAttempts; attempt++ {
		delay := backoff.ComputeBackoff(reconnectPolicy, attempt)
		m.sleeper(delay)

		err := m.Connect(ctx, cfg)
		if err == nil {
			m.logger.Info("etp server reconnected", "server_id", cfg.ID, "attempt", attempt)
			return
		}
		m.logger.Warn("etp reconnect attempt failed", "server_id", cfg.ID, "attempt", attempt, "error", err)
	}

	m.logger.Error("etp reconnect exhausted, deregistering server", "server_id", cfg.ID)
	m.mu.Lock()
	if conn, ok := m.conns[cfg.ID]; ok {
		_ = conn.client.Close()
		delete(m.conns, cfg.ID)
	}
	m.mu.Unlock()
	m.registry.UnregisterExternalServer(cfg.ID)
}

// Disconnect closes serverID's connection and removes its tools from the
// registry. No-op if the server isn't connected.
func (m *Manager) Disconnect(serverID string) error {
	m.mu.Lock()
	conn, ok := m.conns[serverID]
	if ok {
		delete(m.conns, serverID)
	}
	m.mu.Unlock()
	if !ok {
		return nil
	}
	m.registry.UnregisterExternalServer(serverID)
	return conn.client.Close()
}

// Status describes one connected server for diagnostics/API surfaces.
type Status struct {
	ID        string
	Name      string
	Connected bool
	ToolCount int
}

// Statuses enumerates every connected server.
func (m *Manager) Statuses() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Status, 0, len(m.conns))
	for _, conn := range m.conns {
		out = append(out, Status{ID: conn.cfg.ID, Name: conn.cfg.Name, Connected: true, ToolCount: len(conn.tools)})
	}
	return out
}

func decodeSchema(raw []byte) map[string]any {
	if len(raw) == 0 {
		return map[string]any{"type": "object"}
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil || schema == nil {
		return map[string]any{"type": "object"}
	}
	return schema
}
