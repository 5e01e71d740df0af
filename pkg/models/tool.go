package models

import "time"

// ToolDefinition describes a tool in the registry: its name, its
// JSON-Schema parameter contract, and the hints the classifier uses.
type ToolDefinition struct {
	Name                    string         `json:"name"`
	Description             string         `json:"description"`
	Parameters              map[string]any `json:"parameters"` // JSON Schema, type:"object"
	Category                string         `json:"category"`
	IsDestructive           bool           `json:"is_destructive"`
	RequiresApprovalDefault bool           `json:"requires_approval_default"`
}

// FunctionCallShape converts the definition into the provider-neutral
// function-calling shape ChatModel implementations expect.
func (d ToolDefinition) FunctionCallShape() map[string]any {
	return map[string]any{
		"name":        d.Name,
		"description": d.Description,
		"parameters":  d.Parameters,
	}
}

// ToolCall is a single invocation request against the registry.
type ToolCall struct {
	ID         string         `json:"id"`
	ToolName   string         `json:"tool_name"`
	Parameters map[string]any `json:"parameters"`
}

// ToolResult is produced at most once per ToolCall.
type ToolResult struct {
	CallID     string `json:"call_id"`
	Success    bool   `json:"success"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Elapsed sets DurationMS from a start time.
func (r *ToolResult) Elapsed(start time.Time) {
	r.DurationMS = time.Since(start).Milliseconds()
}
