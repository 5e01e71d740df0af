package files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/arclight-ai/sentinel/internal/tool"
	"github.com/arclight-ai/sentinel/pkg/models"
)

// ListTool implements spec §4.4's FileListTool.
type ListTool struct {
	resolver Resolver
}

// NewListTool creates a list tool scoped to the workspace.
func NewListTool(cfg Config) *ListTool {
	return &ListTool{resolver: Resolver{Root: cfg.Workspace}}
}

func (t *ListTool) Name() string                  { return "file_list" }
func (t *ListTool) Description() string           { return "List files and directories under a workspace path." }
func (t *ListTool) Category() string              { return "filesystem" }
func (t *ListTool) IsDestructive() bool           { return false }
func (t *ListTool) RequiresApprovalDefault() bool { return false }

func (t *ListTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Directory to list (relative to workspace; defaults to workspace root).",
			},
			"recursive": map[string]any{
				"type":        "boolean",
				"description": "Walk subdirectories recursively (default: false).",
			},
		},
	}
}

type listEntry struct {
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

// Execute lists directory entries under path.
func (t *ListTool) Execute(ctx context.Context, params map[string]any, actx tool.AgentContext) (*models.ToolResult, error) {
	path, _ := stringParam(params, "path")
	if path == "" {
		path = "."
	}
	recursive := boolParam(params, "recursive", false)

	resolved, err := t.resolver.Resolve(path)
	if err != nil {
		return &models.ToolResult{Error: err.Error()}, nil
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return &models.ToolResult{Error: fmt.Sprintf("stat path: %v", err)}, nil
	}
	if !info.IsDir() {
		return &models.ToolResult{Error: "path is not a directory"}, nil
	}

	var entries []listEntry
	if recursive {
		err = filepath.WalkDir(resolved, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if p == resolved {
				return nil
			}
			rel, relErr := filepath.Rel(resolved, p)
			if relErr != nil {
				return relErr
			}
			fi, statErr := d.Info()
			var size int64
			if statErr == nil {
				size = fi.Size()
			}
			entries = append(entries, listEntry{Path: rel, IsDir: d.IsDir(), Size: size})
			return nil
		})
	} else {
		var dirEntries []os.DirEntry
		dirEntries, err = os.ReadDir(resolved)
		for _, d := range dirEntries {
			fi, statErr := d.Info()
			var size int64
			if statErr == nil {
				size = fi.Size()
			}
			entries = append(entries, listEntry{Path: d.Name(), IsDir: d.IsDir(), Size: size})
		}
	}
	if err != nil {
		return &models.ToolResult{Error: fmt.Sprintf("list directory: %v", err)}, nil
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	return &models.ToolResult{
		Success: true,
		Data: map[string]any{
			"path":    path,
			"entries": entries,
		},
	}, nil
}
