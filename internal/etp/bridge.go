package etp

import (
	"context"
	"time"

	"github.com/arclight-ai/sentinel/internal/tool"
	"github.com/arclight-ai/sentinel/pkg/models"
)

// externalTool bridges one remote MCP tool into the tool.Tool ABI so the
// registry and executor can invoke it uniformly alongside built-ins.
type externalTool struct {
	name             string
	description      string
	originalName     string
	schema           map[string]any
	category         string
	requiresApproval bool

	manager  *Manager
	serverID string
}

func (t *externalTool) Name() string           { return t.name }
func (t *externalTool) Description() string    { return t.description }
func (t *externalTool) Schema() map[string]any { return t.schema }

func (t *externalTool) Category() string {
	if t.category != "" {
		return t.category
	}
	return "external"
}

// IsDestructive is conservative: every external tool is treated as
// destructive until the server declares otherwise, since ETP's tools/list
// carries no destructiveness hint in the wire protocol.
func (t *externalTool) IsDestructive() bool { return true }

func (t *externalTool) RequiresApprovalDefault() bool { return t.requiresApproval }

// Execute calls the tool via the manager (not the client directly) so that
// a transport failure triggers the manager's reconnect bookkeeping.
func (t *externalTool) Execute(ctx context.Context, params map[string]any, actx tool.AgentContext) (*models.ToolResult, error) {
	start := time.Now()
	text, err := t.manager.CallTool(ctx, t.serverID, t.originalName, params)
	result := &models.ToolResult{}
	result.Elapsed(start)
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}
	result.Success = true
	result.Data = text
	return result, nil
}
