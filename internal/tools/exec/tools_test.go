package exec

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/arclight-ai/sentinel/internal/tool"
)

func TestExecToolRunsCommand(t *testing.T) {
	mgr := NewManager(t.TempDir())
	execTool := NewExecTool("exec", mgr)
	result, err := execTool.Execute(context.Background(), map[string]any{"command": "echo hello"}, tool.AgentContext{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success: %+v", result)
	}
	res, ok := result.Data.(ExecResult)
	if !ok || !strings.Contains(res.Stdout, "hello") {
		t.Fatalf("expected stdout in result: %+v", result.Data)
	}
}

func TestProcessToolLifecycle(t *testing.T) {
	mgr := NewManager(t.TempDir())
	execTool := NewExecTool("exec", mgr)
	procTool := NewProcessTool(mgr)
	actx := tool.AgentContext{}

	result, err := execTool.Execute(context.Background(), map[string]any{
		"command":    "echo background",
		"background": true,
	}, actx)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success: %+v", result)
	}
	data, ok := result.Data.(map[string]any)
	if !ok {
		t.Fatalf("unexpected data shape: %+v", result.Data)
	}
	processID, _ := data["process_id"].(string)
	if processID == "" {
		t.Fatalf("expected process_id")
	}

	time.Sleep(50 * time.Millisecond)

	statusResult, err := procTool.Execute(context.Background(), map[string]any{
		"action":     "status",
		"process_id": processID,
	}, actx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !statusResult.Success {
		t.Fatalf("expected status success: %+v", statusResult)
	}

	removeResult, err := procTool.Execute(context.Background(), map[string]any{
		"action":     "remove",
		"process_id": processID,
	}, actx)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !removeResult.Success {
		t.Fatalf("expected remove success: %+v", removeResult)
	}
}
