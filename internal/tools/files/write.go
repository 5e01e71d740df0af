package files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/arclight-ai/sentinel/internal/tool"
	"github.com/arclight-ai/sentinel/pkg/models"
)

// WriteTool implements spec §4.4's FileWriteTool.
type WriteTool struct {
	resolver Resolver
}

// NewWriteTool creates a write tool scoped to the workspace.
func NewWriteTool(cfg Config) *WriteTool {
	return &WriteTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *WriteTool) Name() string                  { return "file_write" }
func (t *WriteTool) Description() string           { return "Write content to a file in the workspace (overwrites by default)." }
func (t *WriteTool) Category() string              { return "filesystem" }
func (t *WriteTool) IsDestructive() bool           { return true }
func (t *WriteTool) RequiresApprovalDefault() bool { return true }

func (t *WriteTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Path to write (relative to workspace).",
			},
			"content": map[string]any{
				"type":        "string",
				"description": "File contents to write.",
			},
			"append": map[string]any{
				"type":        "boolean",
				"description": "Append instead of overwrite (default: false).",
			},
		},
		"required": []string{"path", "content"},
	}
}

// Execute writes file contents.
func (t *WriteTool) Execute(ctx context.Context, params map[string]any, actx tool.AgentContext) (*models.ToolResult, error) {
	path, ok := stringParam(params, "path")
	if !ok || path == "" {
		return &models.ToolResult{Error: "path is required"}, nil
	}
	content, _ := stringParam(params, "content")
	appendMode := boolParam(params, "append", false)

	resolved, err := t.resolver.Resolve(path)
	if err != nil {
		return &models.ToolResult{Error: err.Error()}, nil
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return &models.ToolResult{Error: fmt.Sprintf("create directory: %v", err)}, nil
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(resolved, flags, 0o644)
	if err != nil {
		return &models.ToolResult{Error: fmt.Sprintf("open file: %v", err)}, nil
	}
	defer file.Close()

	n, err := file.WriteString(content)
	if err != nil {
		return &models.ToolResult{Error: fmt.Sprintf("write file: %v", err)}, nil
	}

	return &models.ToolResult{
		Success: true,
		Data: map[string]any{
			"path":          path,
			"bytes_written": n,
			"append":        appendMode,
		},
	}, nil
}
