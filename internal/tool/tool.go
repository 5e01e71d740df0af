// Package tool defines the Tool ABI and the process-wide Registry that
// dispatches to built-in and externally-sourced tools under it.
package tool

import (
	"context"

	"github.com/arclight-ai/sentinel/pkg/models"
)

// AgentContext is handed to every tool invocation. Tools must not mutate
// Variables outside documented fields of their own contract.
type AgentContext struct {
	SessionID string
	Messages  []models.Message
	Variables map[string]any
}

// Tool is the uniform interface every built-in and external tool
// implements. Parameter validation against Schema() is the Registry's
// responsibility, performed before Execute is ever called.
type Tool interface {
	Name() string
	Description() string
	Schema() map[string]any // JSON Schema, type:"object"
	IsDestructive() bool
	RequiresApprovalDefault() bool
	Category() string
	Execute(ctx context.Context, params map[string]any, actx AgentContext) (*models.ToolResult, error)
}

// Definition converts t into a models.ToolDefinition for enumeration,
// audit, and LLM function-calling.
func Definition(t Tool) models.ToolDefinition {
	return models.ToolDefinition{
		Name:                    t.Name(),
		Description:             t.Description(),
		Parameters:              t.Schema(),
		Category:                t.Category(),
		IsDestructive:           t.IsDestructive(),
		RequiresApprovalDefault: t.RequiresApprovalDefault(),
	}
}
