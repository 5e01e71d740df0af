package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/arclight-ai/sentinel/internal/audit"
	"github.com/arclight-ai/sentinel/internal/config"
	"github.com/arclight-ai/sentinel/internal/eventbus"
	"github.com/arclight-ai/sentinel/pkg/models"
)

// newAuditLogger builds the ambient structured-event logger, distinct
// from the SQL-backed storage.AuditStore: this one is an operational log
// stream (tool invocations, completions, permission decisions), not the
// durable compliance ledger the approval/autonomy system reads back from.
func newAuditLogger(cfg *config.Config) (*audit.Logger, error) {
	acfg := audit.DefaultConfig()
	acfg.Enabled = true
	acfg.Output = "stderr"
	if cfg.Log.Format == "json" {
		acfg.Format = audit.FormatJSON
	} else {
		acfg.Format = audit.FormatText
	}
	switch cfg.Log.Level {
	case "debug", "warn", "error":
		acfg.Level = audit.Level(cfg.Log.Level)
	default:
		acfg.Level = audit.LevelInfo
	}
	return audit.NewLogger(acfg)
}

// runAuditBridge relays bus events to the structured audit logger until
// sub closes. One bridge goroutine runs per app instance, alongside the
// progress-printing and approval-prompting subscribers.
func runAuditBridge(logger *audit.Logger, sub *eventbus.Subscription) {
	ctx := context.Background()
	for e := range sub.Events() {
		switch data := e.Data.(type) {
		case models.ToolCalledData:
			input, _ := json.Marshal(data.Call.Parameters)
			logger.LogToolInvocation(ctx, data.Call.ToolName, data.Call.ID, input, e.SessionID)
		case models.ToolResultData:
			output := ""
			if data.Result.Error != "" {
				output = data.Result.Error
			}
			logger.LogToolCompletion(ctx, "", data.Result.CallID, data.Result.Success, output,
				durationFromMillis(data.Result.DurationMS), e.SessionID)
		case models.ActionClassifiedData:
			logger.LogPermissionDecision(ctx, !data.Classification.RequiresApproval,
				string(data.Classification.RiskLevel), data.Classification.ToolName,
				"classify", data.Classification.Reason, e.SessionID)
		case models.ApprovalReceivedData:
			logger.LogPermissionDecision(ctx, data.Result.Decision == models.ApprovalApproved,
				"approval", "", string(data.Result.Decision), data.Result.DecidedBy, e.SessionID)
		case models.ErrorData:
			logger.LogError(ctx, audit.EventAgentError, data.Reason, data.Message, nil, e.SessionID)
		}
	}
}

func durationFromMillis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
