package exec

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/arclight-ai/sentinel/internal/tool"
	"github.com/arclight-ai/sentinel/pkg/models"
)

// ExecTool runs shell commands in the workspace, synchronously or
// backgrounded via the shared Manager.
type ExecTool struct {
	name    string
	manager *Manager
}

// NewExecTool creates an exec tool with the given name.
func NewExecTool(name string, manager *Manager) *ExecTool {
	if strings.TrimSpace(name) == "" {
		name = "exec"
	}
	return &ExecTool{name: name, manager: manager}
}

func (t *ExecTool) Name() string { return t.name }
func (t *ExecTool) Description() string {
	return "Run a shell command in the workspace (supports optional background execution)."
}
func (t *ExecTool) Category() string              { return "exec" }
func (t *ExecTool) IsDestructive() bool           { return true }
func (t *ExecTool) RequiresApprovalDefault() bool { return true }

func (t *ExecTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "Shell command to execute.",
			},
			"cwd": map[string]any{
				"type":        "string",
				"description": "Working directory (relative to workspace).",
			},
			"env": map[string]any{
				"type":        "object",
				"description": "Environment overrides (string values).",
			},
			"input": map[string]any{
				"type":        "string",
				"description": "Stdin content to pass to the command.",
			},
			"timeout_seconds": map[string]any{
				"type":        "integer",
				"description": "Timeout in seconds (0 = no timeout).",
				"minimum":     0,
			},
			"background": map[string]any{
				"type":        "boolean",
				"description": "Run in background and return a process id.",
			},
		},
		"required": []string{"command"},
	}
}

func stringEnv(raw any) map[string]string {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func (t *ExecTool) Execute(ctx context.Context, params map[string]any, actx tool.AgentContext) (*models.ToolResult, error) {
	if t.manager == nil {
		return &models.ToolResult{Error: "exec manager unavailable"}, nil
	}
	command, _ := stringParamExec(params, "command")
	command = strings.TrimSpace(command)
	if command == "" {
		return &models.ToolResult{Error: "command is required"}, nil
	}
	cwd, _ := stringParamExec(params, "cwd")
	input, _ := stringParamExec(params, "input")
	env := stringEnv(params["env"])
	background := boolParamExec(params, "background", false)
	timeout := time.Duration(intParamExec(params, "timeout_seconds", 0)) * time.Second

	if background {
		proc, err := t.manager.startBackground(ctx, command, cwd, env, input, timeout)
		if err != nil {
			return &models.ToolResult{Error: err.Error()}, nil
		}
		return &models.ToolResult{
			Success: true,
			Data:    map[string]any{"status": "running", "process_id": proc.id},
		}, nil
	}

	result, err := t.manager.runSync(ctx, command, cwd, env, input, timeout)
	if err != nil {
		return &models.ToolResult{Error: err.Error()}, nil
	}
	return &models.ToolResult{Success: result.ExitCode == 0, Data: result}, nil
}

// ProcessTool inspects and manages background exec processes.
type ProcessTool struct {
	manager *Manager
}

// NewProcessTool creates a process tool.
func NewProcessTool(manager *Manager) *ProcessTool {
	return &ProcessTool{manager: manager}
}

func (t *ProcessTool) Name() string { return "process" }
func (t *ProcessTool) Description() string {
	return "Manage background exec processes (list, status, log, write, kill, remove)."
}
func (t *ProcessTool) Category() string              { return "exec" }
func (t *ProcessTool) IsDestructive() bool           { return true }
func (t *ProcessTool) RequiresApprovalDefault() bool { return true }

func (t *ProcessTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"description": "Action: list, status, log, write, kill, remove.",
			},
			"process_id": map[string]any{
				"type":        "string",
				"description": "Process id for actions that target a process.",
			},
			"input": map[string]any{
				"type":        "string",
				"description": "Input for write action.",
			},
		},
		"required": []string{"action"},
	}
}

func (t *ProcessTool) Execute(ctx context.Context, params map[string]any, actx tool.AgentContext) (*models.ToolResult, error) {
	if t.manager == nil {
		return &models.ToolResult{Error: "process manager unavailable"}, nil
	}
	action, _ := stringParamExec(params, "action")
	action = strings.ToLower(strings.TrimSpace(action))
	if action == "" {
		return &models.ToolResult{Error: "action is required"}, nil
	}
	processID, _ := stringParamExec(params, "process_id")
	input, _ := stringParamExec(params, "input")

	if action == "list" {
		return &models.ToolResult{Success: true, Data: map[string]any{"processes": t.manager.list()}}, nil
	}

	switch action {
	case "status", "log", "write", "kill", "remove":
		if strings.TrimSpace(processID) == "" {
			return &models.ToolResult{Error: "process_id is required"}, nil
		}
	default:
		return &models.ToolResult{Error: "unsupported action"}, nil
	}

	proc, ok := t.manager.get(strings.TrimSpace(processID))
	if !ok {
		return &models.ToolResult{Error: "process not found"}, nil
	}

	switch action {
	case "status":
		return &models.ToolResult{Success: true, Data: proc.info()}, nil
	case "log":
		return &models.ToolResult{Success: true, Data: map[string]any{
			"stdout": proc.stdout.String(),
			"stderr": proc.stderr.String(),
			"status": proc.status(),
		}}, nil
	case "write":
		if proc.stdin == nil {
			return &models.ToolResult{Error: "process stdin unavailable"}, nil
		}
		if input == "" {
			return &models.ToolResult{Error: "input is required"}, nil
		}
		if _, err := proc.stdin.Write([]byte(input)); err != nil {
			return &models.ToolResult{Error: fmt.Sprintf("write stdin: %v", err)}, nil
		}
		return &models.ToolResult{Success: true, Data: map[string]any{"status": "written"}}, nil
	case "kill":
		if proc.cmd.Process == nil {
			return &models.ToolResult{Error: "process not running"}, nil
		}
		if err := proc.cmd.Process.Kill(); err != nil {
			return &models.ToolResult{Error: fmt.Sprintf("kill process: %v", err)}, nil
		}
		return &models.ToolResult{Success: true, Data: map[string]any{"status": "killed"}}, nil
	case "remove":
		if proc.status() == "running" {
			return &models.ToolResult{Error: "process still running"}, nil
		}
		if !t.manager.remove(proc.id) {
			return &models.ToolResult{Error: "remove failed"}, nil
		}
		return &models.ToolResult{Success: true, Data: map[string]any{"status": "removed"}}, nil
	}
	return &models.ToolResult{Error: "unsupported action"}, nil
}

func stringParamExec(params map[string]any, key string) (string, bool) {
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func intParamExec(params map[string]any, key string, fallback int) int {
	v, ok := params[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return fallback
	}
}

func boolParamExec(params map[string]any, key string, fallback bool) bool {
	v, ok := params[key]
	if !ok {
		return fallback
	}
	b, ok := v.(bool)
	if !ok {
		return fallback
	}
	return b
}
