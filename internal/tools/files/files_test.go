package files

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arclight-ai/sentinel/internal/tool"
)

func TestResolverRejectsEscape(t *testing.T) {
	root := t.TempDir()
	resolver := Resolver{Root: root}
	_, err := resolver.Resolve("../outside.txt")
	if err == nil {
		t.Fatal("expected escape to be rejected")
	}
}

func TestReadWriteEdit(t *testing.T) {
	root := t.TempDir()
	cfg := Config{Workspace: root, MaxReadBytes: 10}

	writeTool := NewWriteTool(cfg)
	readTool := NewReadTool(cfg)
	editTool := NewEditTool(cfg)

	actx := tool.AgentContext{}

	if _, err := writeTool.Execute(context.Background(), map[string]any{
		"path":    "notes.txt",
		"content": "hello world",
	}, actx); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	result, err := readTool.Execute(context.Background(), map[string]any{"path": "notes.txt"}, actx)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	data, ok := result.Data.(map[string]any)
	if !ok || !strings.Contains(data["content"].(string), "hello") {
		t.Fatalf("expected content, got %+v", result)
	}

	if _, err := editTool.Execute(context.Background(), map[string]any{
		"path": "notes.txt",
		"edits": []any{
			map[string]any{"old_text": "world", "new_text": "sentinel"},
		},
	}, actx); err != nil {
		t.Fatalf("edit failed: %v", err)
	}

	written, err := os.ReadFile(filepath.Join(root, "notes.txt"))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(written) != "hello sentinel" {
		t.Fatalf("unexpected content: %s", string(written))
	}
}

func TestApplyPatch(t *testing.T) {
	root := t.TempDir()
	cfg := Config{Workspace: root}
	path := filepath.Join(root, "file.txt")
	if err := os.WriteFile(path, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	patchTool := NewApplyPatchTool(cfg)
	patch := strings.Join([]string{
		"--- a/file.txt",
		"+++ b/file.txt",
		"@@ -1,3 +1,3 @@",
		" a",
		"-b",
		"+bb",
		" c",
		"",
	}, "\n")

	if _, err := patchTool.Execute(context.Background(), map[string]any{"patch": patch}, tool.AgentContext{}); err != nil {
		t.Fatalf("apply patch failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if string(data) != "a\nbb\nc\n" {
		t.Fatalf("unexpected content: %s", string(data))
	}
}

func TestDeleteRequiresRecursiveForDirectories(t *testing.T) {
	root := t.TempDir()
	cfg := Config{Workspace: root}
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	deleteTool := NewDeleteTool(cfg)
	actx := tool.AgentContext{}

	result, err := deleteTool.Execute(context.Background(), map[string]any{"path": "sub"}, actx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Success {
		t.Fatal("expected non-recursive delete of a directory to fail")
	}

	result, err = deleteTool.Execute(context.Background(), map[string]any{"path": "sub", "recursive": true}, actx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected recursive delete to succeed, got %+v", result)
	}
	if _, statErr := os.Stat(filepath.Join(root, "sub")); !os.IsNotExist(statErr) {
		t.Fatal("expected directory to be removed")
	}
}

func TestListDirectory(t *testing.T) {
	root := t.TempDir()
	cfg := Config{Workspace: root}
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("b"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	listTool := NewListTool(cfg)
	result, err := listTool.Execute(context.Background(), map[string]any{"recursive": true}, tool.AgentContext{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	data, ok := result.Data.(map[string]any)
	if !ok {
		t.Fatalf("unexpected data shape: %+v", result)
	}
	entries, ok := data["entries"].([]listEntry)
	if !ok || len(entries) != 3 {
		t.Fatalf("expected 3 entries (a.txt, sub, sub/b.txt), got %+v", data["entries"])
	}
}
