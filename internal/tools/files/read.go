package files

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/arclight-ai/sentinel/internal/tool"
	"github.com/arclight-ai/sentinel/pkg/models"
)

// ReadTool implements spec §4.4's FileReadTool.
type ReadTool struct {
	resolver   Resolver
	maxReadLen int
}

// NewReadTool creates a read tool scoped to the workspace.
func NewReadTool(cfg Config) *ReadTool {
	limit := cfg.MaxReadBytes
	if limit <= 0 {
		limit = 200000
	}
	return &ReadTool{
		resolver:   Resolver{Root: cfg.Workspace},
		maxReadLen: limit,
	}
}

func (t *ReadTool) Name() string        { return "file_read" }
func (t *ReadTool) Description() string { return "Read a file from the workspace with optional offset and byte limit." }
func (t *ReadTool) Category() string    { return "filesystem" }
func (t *ReadTool) IsDestructive() bool { return false }
func (t *ReadTool) RequiresApprovalDefault() bool { return false }

func (t *ReadTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Path to the file (relative to workspace).",
			},
			"offset": map[string]any{
				"type":        "integer",
				"description": "Byte offset to start reading from (default: 0).",
				"minimum":     0,
			},
			"max_bytes": map[string]any{
				"type":        "integer",
				"description": "Maximum bytes to read (capped by tool default).",
				"minimum":     0,
			},
		},
		"required": []string{"path"},
	}
}

// Execute reads a file with safety limits.
func (t *ReadTool) Execute(ctx context.Context, params map[string]any, actx tool.AgentContext) (*models.ToolResult, error) {
	path, ok := stringParam(params, "path")
	if !ok || path == "" {
		return &models.ToolResult{Error: "path is required"}, nil
	}
	offset := int64(intParam(params, "offset", 0))
	if offset < 0 {
		return &models.ToolResult{Error: "offset must be >= 0"}, nil
	}
	maxBytes := intParam(params, "max_bytes", 0)

	resolved, err := t.resolver.Resolve(path)
	if err != nil {
		return &models.ToolResult{Error: err.Error()}, nil
	}

	file, err := os.Open(resolved)
	if err != nil {
		return &models.ToolResult{Error: fmt.Sprintf("open file: %v", err)}, nil
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return &models.ToolResult{Error: fmt.Sprintf("stat file: %v", err)}, nil
	}

	if offset > 0 {
		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			return &models.ToolResult{Error: fmt.Sprintf("seek file: %v", err)}, nil
		}
	}

	limit := t.maxReadLen
	if maxBytes > 0 && maxBytes < limit {
		limit = maxBytes
	}

	remaining := int64(limit)
	if size := info.Size(); size > 0 {
		remaining = size - offset
		if remaining < 0 {
			remaining = 0
		}
		if remaining > int64(limit) {
			remaining = int64(limit)
		}
	}

	buf, err := io.ReadAll(io.LimitReader(file, remaining))
	if err != nil {
		return &models.ToolResult{Error: fmt.Sprintf("read file: %v", err)}, nil
	}

	truncated := info.Size() > 0 && offset+int64(len(buf)) < info.Size()

	return &models.ToolResult{
		Success: true,
		Data: map[string]any{
			"path":      path,
			"content":   string(buf),
			"offset":    offset,
			"bytes":     len(buf),
			"truncated": truncated,
		},
	}, nil
}
