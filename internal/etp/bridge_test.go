package etp

import (
	"context"
	"log/slog"
	"testing"

	"github.com/arclight-ai/sentinel/internal/tool"
	"github.com/arclight-ai/sentinel/pkg/models"
)

func TestExternalToolExecuteUnconnectedServer(t *testing.T) {
	registry := tool.NewRegistry()
	mgr := NewManager(registry, nil, slog.Default())
	cfg := models.ExternalServerConfig{ID: "srv-1", Name: "Srv"}

	et := &externalTool{
		name: tool.ExternalNamePrefix(cfg.ID, "do_thing"), originalName: "do_thing",
		schema: map[string]any{"type": "object"}, manager: mgr, serverID: cfg.ID,
	}

	result, err := et.Execute(context.Background(), map[string]any{}, tool.AgentContext{})
	if err != nil {
		t.Fatalf("Execute should report failure via ToolResult, not an error, got: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure when the server isn't connected")
	}
	if result.Error == "" {
		t.Fatal("expected a non-empty error message")
	}
}

func TestExternalToolCategoryDefault(t *testing.T) {
	et := &externalTool{}
	if et.Category() != "external" {
		t.Fatalf("expected default category \"external\", got %q", et.Category())
	}
	et.category = "filesystem"
	if et.Category() != "filesystem" {
		t.Fatalf("expected overridden category, got %q", et.Category())
	}
}

func TestExternalToolIsAlwaysDestructive(t *testing.T) {
	et := &externalTool{}
	if !et.IsDestructive() {
		t.Fatal("external tools must default to destructive until proven otherwise")
	}
}

var _ tool.Tool = (*externalTool)(nil)
