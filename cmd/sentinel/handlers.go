package main

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arclight-ai/sentinel/internal/eventbus"
	"github.com/arclight-ai/sentinel/pkg/models"
)

// runRun wires a full app in-process and executes task to completion,
// printing progress events to stderr and the terminal event to stdout.
// Approval requests are answered interactively on the terminal, since
// there is no separate server process to delegate them to.
func runRun(cmd *cobra.Command, configPath, task, projectPath string, maxTokens int) error {
	logger := slog.Default()
	application, err := buildApp(configPath, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application.connectExternalServers(ctx)

	progressSub := application.bus.Subscribe()
	defer progressSub.Close()
	go printProgress(cmd.ErrOrStderr(), progressSub)

	approvalSub := application.bus.Subscribe()
	defer approvalSub.Close()
	go answerApprovalsInteractively(application, approvalSub)

	var budget *models.TokenBudget
	if maxTokens > 0 {
		budget = models.NewTokenBudget(maxTokens, 0.8)
	}

	terminal := application.exec.Run(ctx, task, projectPath, budget)

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(terminal)

	if terminal.Type == models.EventError {
		return fmt.Errorf("run ended in error")
	}
	return nil
}

// printProgress renders a one-line summary per event to w, until the
// subscription closes.
func printProgress(w io.Writer, sub *eventbus.Subscription) {
	for e := range sub.Events() {
		fmt.Fprintf(w, "[%s] %s\n", e.Type, summarizeEventData(e))
	}
}

func summarizeEventData(e models.AgentEvent) string {
	switch data := e.Data.(type) {
	case models.StateChangeData:
		return fmt.Sprintf("%s -> %s", data.From, data.To)
	case models.StepEventData:
		if data.Step != nil {
			return data.Step.Description
		}
	case models.ToolCalledData:
		return data.Call.Name
	case models.ErrorData:
		return data.Message
	}
	return ""
}

// answerApprovalsInteractively prompts on stdin for every
// EventApprovalRequested seen on sub, until the subscription closes.
func answerApprovalsInteractively(application *app, sub *eventbus.Subscription) {
	reader := bufio.NewReader(os.Stdin)
	for e := range sub.Events() {
		if e.Type != models.EventApprovalRequested {
			continue
		}
		data, ok := e.Data.(models.ApprovalRequestedData)
		if !ok {
			continue
		}
		fmt.Fprintf(os.Stderr, "\napproval requested: %s on %v (risk=%s)\napprove? [y/N] ",
			data.Classification.ToolName, data.Classification.Parameters, data.Classification.RiskLevel)
		line, _ := reader.ReadString('\n')
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y") {
			application.approvals.Approve(data.RequestID, false, nil, "", "cli-interactive")
		} else {
			application.approvals.Reject(data.RequestID, "cli-interactive")
		}
	}
}

// runApproveList lists pending approvals on a running server.
func runApproveList(cmd *cobra.Command, addr string) error {
	client := newAPIClient(addr)
	var pending []models.ApprovalRequest
	if err := client.getJSON("/approvals", &pending); err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no pending approvals")
		return nil
	}
	for _, req := range pending {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%v\n", req.ID, req.Classification.ToolName, req.Classification.RiskLevel, req.Classification.Parameters)
	}
	return nil
}

// runApproveDecide approves or rejects a pending request by ID.
func runApproveDecide(cmd *cobra.Command, addr, requestID, decision string) error {
	client := newAPIClient(addr)
	path := fmt.Sprintf("/approvals/%s/reject", requestID)
	if strings.EqualFold(decision, "approve") {
		path = fmt.Sprintf("/approvals/%s/approve", requestID)
	} else if !strings.EqualFold(decision, "reject") {
		return fmt.Errorf("decision must be \"approve\" or \"reject\", got %q", decision)
	}
	if err := client.postJSON(path, nil, nil); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", requestID, strings.ToLower(decision))
	return nil
}

// runAutonomyGet prints a project's effective autonomy level.
func runAutonomyGet(cmd *cobra.Command, addr, projectPath string) error {
	client := newAPIClient(addr)
	var settings models.AutonomySettings
	if err := client.getJSON("/autonomy?project="+projectPath, &settings); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (allow=%v block=%v)\n", settings.ProjectPath, settings.Level, settings.Allowlist, settings.Blocklist)
	return nil
}

// runAutonomySet sets a project's autonomy level.
func runAutonomySet(cmd *cobra.Command, addr, projectPath, level string) error {
	client := newAPIClient(addr)
	body := map[string]string{"project": projectPath, "level": level}
	if err := client.postJSON("/autonomy", body, nil); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s set to %s\n", projectPath, level)
	return nil
}

// runAuditExport fetches audit entries and renders them as JSON or CSV.
func runAuditExport(cmd *cobra.Command, addr, sessionID, format string, limit int) error {
	client := newAPIClient(addr)
	path := fmt.Sprintf("/audit?limit=%d", limit)
	if sessionID != "" {
		path += "&session=" + sessionID
	}

	var entries []models.AuditEntry
	if err := client.getJSON(path, &entries); err != nil {
		return err
	}

	switch strings.ToLower(format) {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(entries)
	case "csv":
		return writeAuditCSV(cmd.OutOrStdout(), entries)
	default:
		return fmt.Errorf("unknown format %q (want json or csv)", format)
	}
}

func writeAuditCSV(w io.Writer, entries []models.AuditEntry) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	header := []string{"id", "session_id", "timestamp", "tool_name", "risk_level", "approval_decision", "duration_ms", "success", "error", "yolo_mode"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, e := range entries {
		row := []string{
			e.ID, e.SessionID, e.Timestamp.Format("2006-01-02T15:04:05Z07:00"), e.ToolName, string(e.RiskLevel),
			string(e.ApprovalDecision), strconv.FormatInt(e.DurationMS, 10), strconv.FormatBool(e.Success), e.Error, strconv.FormatBool(e.YoloMode),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// runKill trips the kill switch on a running server.
func runKill(cmd *cobra.Command, addr, reason string) error {
	client := newAPIClient(addr)
	body := map[string]string{"reason": reason}
	if err := client.postJSON("/kill", body, nil); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "kill switch triggered: %s\n", reason)
	return nil
}
