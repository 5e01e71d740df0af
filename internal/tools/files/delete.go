package files

import (
	"context"
	"fmt"
	"os"

	"github.com/arclight-ai/sentinel/internal/tool"
	"github.com/arclight-ai/sentinel/pkg/models"
)

// DeleteTool implements spec §4.4's FileDeleteTool.
type DeleteTool struct {
	resolver Resolver
}

// NewDeleteTool creates a delete tool scoped to the workspace.
func NewDeleteTool(cfg Config) *DeleteTool {
	return &DeleteTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *DeleteTool) Name() string                  { return "file_delete" }
func (t *DeleteTool) Description() string           { return "Delete a file or directory in the workspace." }
func (t *DeleteTool) Category() string              { return "filesystem" }
func (t *DeleteTool) IsDestructive() bool           { return true }
func (t *DeleteTool) RequiresApprovalDefault() bool { return true }

func (t *DeleteTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Path to delete (relative to workspace).",
			},
			"recursive": map[string]any{
				"type":        "boolean",
				"description": "Delete directories and their contents (default: false).",
			},
		},
		"required": []string{"path"},
	}
}

// Execute removes a file or, when recursive is set, a directory tree.
func (t *DeleteTool) Execute(ctx context.Context, params map[string]any, actx tool.AgentContext) (*models.ToolResult, error) {
	path, ok := stringParam(params, "path")
	if !ok || path == "" {
		return &models.ToolResult{Error: "path is required"}, nil
	}
	recursive := boolParam(params, "recursive", false)

	resolved, err := t.resolver.Resolve(path)
	if err != nil {
		return &models.ToolResult{Error: err.Error()}, nil
	}

	info, err := os.Lstat(resolved)
	if err != nil {
		return &models.ToolResult{Error: fmt.Sprintf("stat path: %v", err)}, nil
	}
	if info.IsDir() && !recursive {
		return &models.ToolResult{Error: "path is a directory; set recursive to delete it"}, nil
	}

	if recursive {
		err = os.RemoveAll(resolved)
	} else {
		err = os.Remove(resolved)
	}
	if err != nil {
		return &models.ToolResult{Error: fmt.Sprintf("delete: %v", err)}, nil
	}

	return &models.ToolResult{
		Success: true,
		Data: map[string]any{
			"path":      path,
			"recursive": recursive,
			"was_dir":   info.IsDir(),
		},
	}, nil
}
