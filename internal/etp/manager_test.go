package etp

import (
	"context"
	"log/slog"
	"testing"

	"github.com/arclight-ai/sentinel/internal/sandbox"
	"github.com/arclight-ai/sentinel/internal/tool"
	"github.com/arclight-ai/sentinel/pkg/models"
)

func newTestManager() (*Manager, *tool.Registry) {
	registry := tool.NewRegistry()
	mgr := NewManager(registry, nil, slog.Default())
	return mgr, registry
}

func TestNewManagerNilLoggerDefaults(t *testing.T) {
	mgr := NewManager(tool.NewRegistry(), nil, nil)
	if mgr.logger == nil {
		t.Fatal("expected a default logger when nil is passed")
	}
}

func TestManagerDisconnectNotConnected(t *testing.T) {
	mgr, _ := newTestManager()
	if err := mgr.Disconnect("nonexistent"); err != nil {
		t.Fatalf("Disconnect of an unconnected server should be a no-op, got: %v", err)
	}
}

func TestManagerStatusesEmpty(t *testing.T) {
	mgr, _ := newTestManager()
	if statuses := mgr.Statuses(); len(statuses) != 0 {
		t.Fatalf("expected no statuses, got %d", len(statuses))
	}
}

func TestManagerCallToolNotConnected(t *testing.T) {
	mgr, _ := newTestManager()
	_, err := mgr.CallTool(context.Background(), "missing-server", "some_tool", nil)
	if err == nil {
		t.Fatal("expected error calling a tool on an unconnected server")
	}
}

func TestSandboxLaunchHTTPNeverWrapped(t *testing.T) {
	mgr, _ := newTestManager()
	cfg := models.ExternalServerConfig{Transport: models.TransportHTTP, URL: "https://example.com"}
	launch, err := mgr.sandboxLaunch(cfg)
	if err != nil || launch != nil {
		t.Fatalf("http transport must never be sandbox-wrapped, got launch=%v err=%v", launch, err)
	}
}

func TestSandboxLaunchBuiltinNeverWrapped(t *testing.T) {
	mgr, _ := newTestManager()
	cfg := models.ExternalServerConfig{Transport: models.TransportStdio, Trust: models.TrustBuiltin, Command: "tool"}
	launch, err := mgr.sandboxLaunch(cfg)
	if err != nil || launch != nil {
		t.Fatalf("builtin trust must never be sandbox-wrapped, got launch=%v err=%v", launch, err)
	}
}

func TestSandboxLaunchUserAddedWithoutRuntimeDowngrades(t *testing.T) {
	registry := tool.NewRegistry()
	mgr := NewManager(registry, sandbox.NewLauncher(""), slog.Default())
	// mgr.launcher.Available() depends on the test host having docker; force
	// the unavailable branch explicitly instead of depending on the host.
	mgr.launcher = &sandbox.Launcher{}

	cfg := models.ExternalServerConfig{
		Transport: models.TransportStdio, Trust: models.TrustUserAdded, SandboxEnabled: true, Command: "tool",
	}
	launch, err := mgr.sandboxLaunch(cfg)
	if err != nil {
		t.Fatalf("missing runtime must downgrade, not error: %v", err)
	}
	if launch != nil {
		t.Fatalf("expected no launch override when sandboxing is unavailable, got %+v", launch)
	}
}

func TestRegisterToolNamespacesAndRegistersExternal(t *testing.T) {
	mgr, registry := newTestManager()
	cfg := models.ExternalServerConfig{ID: "srv-12345678", Name: "My Server", Trust: models.TrustUserAdded, Category: "external"}

	mgr.registerTool(cfg, ToolInfo{Name: "do_thing", Description: "does a thing"})

	expectedName := tool.ExternalNamePrefix(cfg.ID, "do_thing")
	got, ok := registry.Get(expectedName)
	if !ok {
		t.Fatalf("expected tool registered under %q", expectedName)
	}
	if got.Description() != "[My Server] does a thing" {
		t.Fatalf("unexpected description: %q", got.Description())
	}
	if !got.RequiresApprovalDefault() {
		t.Fatal("user_added server's tools must require approval by default")
	}
}

func TestUnregisterExternalServerRemovesAllItsTools(t *testing.T) {
	mgr, registry := newTestManager()
	cfg := models.ExternalServerConfig{ID: "srv-abcdefgh", Name: "Srv"}
	mgr.registerTool(cfg, ToolInfo{Name: "a"})
	mgr.registerTool(cfg, ToolInfo{Name: "b"})

	registry.UnregisterExternalServer(cfg.ID)

	if _, ok := registry.Get(tool.ExternalNamePrefix(cfg.ID, "a")); ok {
		t.Fatal("expected tool a to be unregistered")
	}
	if _, ok := registry.Get(tool.ExternalNamePrefix(cfg.ID, "b")); ok {
		t.Fatal("expected tool b to be unregistered")
	}
}

func TestDecodeSchemaFallsBackToObject(t *testing.T) {
	if got := decodeSchema(nil); got["type"] != "object" {
		t.Fatalf("expected object fallback for empty schema, got %v", got)
	}
	if got := decodeSchema([]byte("not json")); got["type"] != "object" {
		t.Fatalf("expected object fallback for invalid schema, got %v", got)
	}
	got := decodeSchema([]byte(`{"type":"object","properties":{"x":{"type":"string"}}}`))
	if got["type"] != "object" {
		t.Fatalf("expected decoded schema to round-trip, got %v", got)
	}
}
