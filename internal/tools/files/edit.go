package files

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/arclight-ai/sentinel/internal/tool"
	"github.com/arclight-ai/sentinel/pkg/models"
)

// EditTool implements in-place find/replace edits on workspace files.
type EditTool struct {
	resolver Resolver
}

// NewEditTool creates an edit tool scoped to the workspace.
func NewEditTool(cfg Config) *EditTool {
	return &EditTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *EditTool) Name() string                  { return "file_edit" }
func (t *EditTool) Description() string           { return "Apply one or more find/replace edits to a file in the workspace." }
func (t *EditTool) Category() string              { return "filesystem" }
func (t *EditTool) IsDestructive() bool           { return true }
func (t *EditTool) RequiresApprovalDefault() bool { return true }

func (t *EditTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Path to edit (relative to workspace).",
			},
			"edits": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"old_text":    map[string]any{"type": "string", "description": "Text to replace."},
						"new_text":    map[string]any{"type": "string", "description": "Replacement text."},
						"replace_all": map[string]any{"type": "boolean", "description": "Replace all occurrences (default: false)."},
					},
					"required": []string{"old_text", "new_text"},
				},
			},
		},
		"required": []string{"path", "edits"},
	}
}

type fileEdit struct {
	OldText    string `json:"old_text"`
	NewText    string `json:"new_text"`
	ReplaceAll bool   `json:"replace_all"`
}

func parseEdits(raw any) ([]fileEdit, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("edits must be an array")
	}
	edits := make([]fileEdit, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("edit entries must be objects")
		}
		oldText, _ := stringParam(m, "old_text")
		newText, _ := stringParam(m, "new_text")
		edits = append(edits, fileEdit{
			OldText:    oldText,
			NewText:    newText,
			ReplaceAll: boolParam(m, "replace_all", false),
		})
	}
	return edits, nil
}

// Execute applies edits to the file.
func (t *EditTool) Execute(ctx context.Context, params map[string]any, actx tool.AgentContext) (*models.ToolResult, error) {
	path, ok := stringParam(params, "path")
	if !ok || path == "" {
		return &models.ToolResult{Error: "path is required"}, nil
	}
	rawEdits, ok := params["edits"]
	if !ok {
		return &models.ToolResult{Error: "edits are required"}, nil
	}
	edits, err := parseEdits(rawEdits)
	if err != nil {
		return &models.ToolResult{Error: err.Error()}, nil
	}
	if len(edits) == 0 {
		return &models.ToolResult{Error: "edits are required"}, nil
	}

	resolved, err := t.resolver.Resolve(path)
	if err != nil {
		return &models.ToolResult{Error: err.Error()}, nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return &models.ToolResult{Error: fmt.Sprintf("read file: %v", err)}, nil
	}

	content := string(data)
	replacements := 0
	for _, edit := range edits {
		if edit.OldText == "" {
			return &models.ToolResult{Error: "old_text is required"}, nil
		}
		if !strings.Contains(content, edit.OldText) {
			return &models.ToolResult{Error: "old_text not found"}, nil
		}
		if edit.ReplaceAll {
			count := strings.Count(content, edit.OldText)
			content = strings.ReplaceAll(content, edit.OldText, edit.NewText)
			replacements += count
		} else {
			content = strings.Replace(content, edit.OldText, edit.NewText, 1)
			replacements++
		}
	}

	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return &models.ToolResult{Error: fmt.Sprintf("write file: %v", err)}, nil
	}

	return &models.ToolResult{
		Success: true,
		Data: map[string]any{
			"path":         path,
			"replacements": replacements,
		},
	}, nil
}
