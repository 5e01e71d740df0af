// Package executor implements the orchestrator that ties Session, Plan,
// the classifier, autonomy, approval, audit, event bus, and kill switch
// together into one step loop (spec §4.12).
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arclight-ai/sentinel/internal/autonomy"
	"github.com/arclight-ai/sentinel/internal/backoff"
	"github.com/arclight-ai/sentinel/internal/chatmodel"
	"github.com/arclight-ai/sentinel/internal/classifier"
	"github.com/arclight-ai/sentinel/internal/eventbus"
	"github.com/arclight-ai/sentinel/internal/killswitch"
	"github.com/arclight-ai/sentinel/internal/observability"
	"github.com/arclight-ai/sentinel/internal/planner"
	"github.com/arclight-ai/sentinel/internal/storage"
	"github.com/arclight-ai/sentinel/internal/tool"
	"github.com/arclight-ai/sentinel/pkg/models"
	"github.com/google/uuid"
)

// Defaults per spec §4.12.
const (
	MaxIterations    = 20
	MaxSeconds       = 300
	ApprovalTimeout  = 60 * time.Second
	MaxRetryAttempts = 3
)

var retryPolicy = backoff.BackoffPolicy{InitialMs: 1000, MaxMs: 30000, Factor: 2, Jitter: 0.2}

// ApprovalRequester is the subset of the approval manager the executor
// needs. Implemented by *approval.Manager.
type ApprovalRequester interface {
	StartSession(sessionID string)
	EndSession(sessionID string)
	RequestApproval(ctx context.Context, cls models.ActionClassification, stepID, sessionID string, timeout time.Duration) models.ApprovalResult
}

// Executor runs one Session's plan-and-execute loop to completion.
type Executor struct {
	registry *tool.Registry
	planner  *planner.Planner
	model    chatmodel.ChatModel
	classifier *classifier.Classifier
	autonomy   *autonomy.Service
	approval   ApprovalRequester
	audit      storage.AuditStore
	bus        *eventbus.Bus
	kill       *killswitch.Switch
	logger     *slog.Logger
	tracer     *observability.Tracer

	now func() time.Time
}

// New wires an Executor from its collaborators.
func New(
	registry *tool.Registry,
	plan *planner.Planner,
	model chatmodel.ChatModel,
	cls *classifier.Classifier,
	auto *autonomy.Service,
	approval ApprovalRequester,
	audit storage.AuditStore,
	bus *eventbus.Bus,
	logger *slog.Logger,
) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	tracer, _ := observability.NewTracer(observability.TraceConfig{ServiceName: "sentinel-executor"})
	return &Executor{
		registry: registry, planner: plan, model: model, classifier: cls,
		autonomy: auto, approval: approval, audit: audit, bus: bus,
		kill: killswitch.New(), logger: logger, tracer: tracer, now: time.Now,
	}
}

// Cancel arms the kill switch with reason, causing the in-flight run (if
// any) to stop at the next step boundary.
func (e *Executor) Cancel(reason string) {
	e.kill.Trigger(reason)
}

// Run executes task to completion: plan, then the step loop, then
// teardown. It returns the terminal AgentEvent (completed, cancelled, or
// error).
func (e *Executor) Run(ctx context.Context, task, projectPath string, budget *models.TokenBudget) models.AgentEvent {
	session := models.NewSession(uuid.NewString(), task, projectPath, budget)
	e.kill.Reset()
	e.approval.StartSession(session.ID)
	defer func() {
		e.approval.EndSession(session.ID)
		e.kill.Reset()
	}()

	startedAt := e.now()

	session.Transition(models.SessionPlanning)
	e.publish(models.NewEvent(models.EventStateChange, session.ID, models.StateChangeData{From: models.SessionIdle, To: models.SessionPlanning}))

	tools := toToolSpecs(e.registry.Definitions())
	plan := e.planner.Plan(ctx, task, tools, session.Messages)
	e.publish(models.NewEvent(models.EventPlanCreated, session.ID, models.PlanCreatedData{Plan: plan}))

	session.Transition(models.SessionExecuting)
	e.publish(models.NewEvent(models.EventStateChange, session.ID, models.StateChangeData{From: models.SessionPlanning, To: models.SessionExecuting}))

	terminal := e.loop(ctx, session, plan, startedAt)
	return terminal
}

func (e *Executor) loop(ctx context.Context, session *models.Session, plan *models.Plan, startedAt time.Time) models.AgentEvent {
	for iteration := 0; iteration < MaxIterations; iteration++ {
		if e.kill.Triggered() {
			return e.cancelled(session, e.kill.Reason())
		}

		if e.now().Sub(startedAt) > MaxSeconds*time.Second {
			return e.failed(session, "execution exceeded the time cap")
		}

		if session.Budget != nil && !session.Budget.CanProceed() {
			e.publish(models.NewEvent(models.EventBudgetExceeded, session.ID, models.BudgetExceededData{
				UsedInput: session.Budget.UsedInput, UsedOutput: session.Budget.UsedOutput, MaxTotal: session.Budget.MaxTotal,
			}))
			return e.failed(session, "token budget exceeded")
		}

		step := plan.NextRunnable()
		if step == nil {
			if plan.IsComplete() {
				return e.completed(session)
			}
			return e.failed(session, "no runnable step and plan is not complete: unresolved dependencies or failed steps block progress")
		}

		step.Status = models.StepRunning
		e.publish(models.NewEvent(models.EventStepStarted, session.ID, models.StepEventData{Step: step}))

		var stepErr error
		if step.ToolName != "" {
			stepErr = e.runToolStep(ctx, session, step)
		} else {
			stepErr = e.runReasoningStep(ctx, session, step)
		}

		if stepErr != nil {
			step.Status = models.StepFailed
			step.Error = stepErr.Error()
			continue
		}

		if step.Status != models.StepSkipped {
			step.Status = models.StepCompleted
		}
		e.publish(models.NewEvent(models.EventStepCompleted, session.ID, models.StepEventData{Step: step}))

		if e.kill.Triggered() {
			return e.cancelled(session, e.kill.Reason())
		}
	}
	return e.failed(session, fmt.Sprintf("exceeded iteration cap (%d)", MaxIterations))
}

func (e *Executor) runReasoningStep(ctx context.Context, session *models.Session, step *models.PlanStep) error {
	ctx, span := e.tracer.TraceLLMRequest(ctx, e.model.Name(), "")
	defer span.End()

	resp, err := e.model.Chat(ctx, chatmodel.Request{
		Messages: []chatmodel.Message{{Role: chatmodel.RoleUser, Content: step.Description}},
	})
	if err != nil {
		e.tracer.RecordError(span, err)
		return err
	}
	if session.Budget != nil {
		session.Budget.Consume(resp.Usage.InputTokens, resp.Usage.OutputTokens)
	}
	step.Result = resp.Content
	session.AppendMessage("assistant", resp.Content)
	return nil
}

// execute_with_safety, spec §4.12.a. Per the failure semantics table
// (§4.12.b), no tool-step failure is fatal to the session by itself — a
// failed or skipped step only fails the session indirectly, by leaving
// its dependents permanently unreachable, which the loop's dead-lock
// check (plan not complete, no runnable step) turns into a session
// failure.
func (e *Executor) runToolStep(ctx context.Context, session *models.Session, step *models.PlanStep) error {
	ctx, span := e.tracer.TraceToolExecution(ctx, step.ToolName)
	defer span.End()

	params, _ := step.Params.(map[string]any)
	if params == nil {
		params = map[string]any{}
		if raw, err := json.Marshal(step.Params); err == nil {
			_ = json.Unmarshal(raw, &params)
		}
	}

	cls := e.classifier.Classify(step.ToolName, params, session.ProjectPath)
	e.publish(models.NewEvent(models.EventActionClassified, session.ID, models.ActionClassifiedData{Classification: cls}))

	approvalDecision := models.ApprovalDecision("")
	approvedBy := ""

	if cls.RequiresApproval {
		e.publish(models.NewEvent(models.EventApprovalRequested, session.ID, models.ApprovalRequestedData{StepID: step.ID, Classification: cls}))
		res := e.approval.RequestApproval(ctx, cls, step.ID, session.ID, ApprovalTimeout)
		e.publish(models.NewEvent(models.EventApprovalReceived, session.ID, models.ApprovalReceivedData{Result: res}))

		approvalDecision = res.Decision
		approvedBy = res.DecidedBy
		switch res.Decision {
		case models.ApprovalApproved:
			if res.ModifiedParams != nil {
				params = res.ModifiedParams
			}
		case models.ApprovalRejected:
			e.appendAudit(session, step, cls, approvalDecision, approvedBy, false, "approval rejected", 0)
			return fmt.Errorf("step %s: approval rejected", step.ID)
		case models.ApprovalTimeout:
			e.appendAudit(session, step, cls, approvalDecision, approvedBy, false, "approval timed out", 0)
			step.Status = models.StepSkipped
			return nil
		}
	}

	call := models.ToolCall{ID: uuid.NewString(), ToolName: step.ToolName, Parameters: params}
	e.publish(models.NewEvent(models.EventToolCalled, session.ID, models.ToolCalledData{Call: call}))

	start := e.now()
	result, err := e.executeWithRetry(ctx, call, session)
	if err != nil {
		e.tracer.RecordError(span, err)
		e.appendAudit(session, step, cls, approvalDecision, approvedBy, false, err.Error(), time.Since(start).Milliseconds())
		return fmt.Errorf("step %s: %w", step.ID, err)
	}

	e.publish(models.NewEvent(models.EventToolResult, session.ID, models.ToolResultData{Result: *result}))
	e.appendAuditResult(session, step, cls, approvalDecision, approvedBy, result)

	if !result.Success {
		return fmt.Errorf("step %s: tool %s failed: %s", step.ID, step.ToolName, result.Error)
	}
	step.Result = result.Data
	return nil
}

// executeWithRetry is execute_with_retry (spec §4.12.a step 3): up to
// MaxRetryAttempts, exponential backoff with jitter, retrying only
// transport/IO-class failures — schema validation errors and (by
// construction, since they're resolved before this is ever called)
// approval rejections never retry.
func (e *Executor) executeWithRetry(ctx context.Context, call models.ToolCall, session *models.Session) (*models.ToolResult, error) {
	var lastResult *models.ToolResult
	var lastErr error

	for attempt := 1; attempt <= MaxRetryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return lastResult, err
		}

		res, err := e.registry.Execute(ctx, call, tool.AgentContext{SessionID: session.ID, Messages: session.Messages})
		if err != nil {
			return nil, err
		}
		if res.Success || !isRetryableResult(res) {
			return res, nil
		}

		lastResult, lastErr = res, fmt.Errorf("tool %s: %s", call.ToolName, res.Error)
		if attempt < MaxRetryAttempts {
			if sleepErr := backoff.SleepWithBackoff(ctx, retryPolicy, attempt); sleepErr != nil {
				return lastResult, sleepErr
			}
		}
	}
	return lastResult, lastErr
}

var retryableResultSubstrings = []string{
	"connection refused", "connection reset", "timeout", "timed out",
	"temporary failure", "i/o timeout", "EOF", "broken pipe",
}

// isRetryableResult inspects a failed ToolResult's error string for the
// transport/IO-class signatures spec §4.12.a step 3 calls out as
// retryable; anything else (validation, logic errors) fails the step
// immediately.
func isRetryableResult(res *models.ToolResult) bool {
	if res == nil || res.Success {
		return false
	}
	msg := strings.ToLower(res.Error)
	for _, s := range retryableResultSubstrings {
		if strings.Contains(msg, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

func (e *Executor) appendAudit(session *models.Session, step *models.PlanStep, cls models.ActionClassification, decision models.ApprovalDecision, approvedBy string, success bool, errMsg string, durationMS int64) {
	e.appendAuditEntry(session, step, cls, decision, approvedBy, success, errMsg, nil, durationMS)
}

func (e *Executor) appendAuditResult(session *models.Session, step *models.PlanStep, cls models.ActionClassification, decision models.ApprovalDecision, approvedBy string, result *models.ToolResult) {
	var resultJSON []byte
	if result.Data != nil {
		resultJSON, _ = json.Marshal(result.Data)
	}
	e.appendAuditEntry(session, step, cls, decision, approvedBy, result.Success, result.Error, resultJSON, result.DurationMS)
}

func (e *Executor) appendAuditEntry(session *models.Session, step *models.PlanStep, cls models.ActionClassification, decision models.ApprovalDecision, approvedBy string, success bool, errMsg string, resultJSON []byte, durationMS int64) {
	if e.audit == nil {
		return
	}
	paramsJSON, _ := json.Marshal(cls.Parameters)
	yolo := e.autonomy.IsYOLOActive(session.ProjectPath)

	entry := models.AuditEntry{
		ID:               uuid.NewString(),
		SessionID:        session.ID,
		Timestamp:        e.now(),
		ToolName:         cls.ToolName,
		RiskLevel:        cls.RiskLevel,
		ApprovalDecision: decision,
		ApprovedBy:       approvedBy,
		DurationMS:       durationMS,
		Success:          success,
		Result:           resultJSON,
		Error:            errMsg,
		YoloMode:         yolo,
	}
	if yolo {
		entry.FullParameters = paramsJSON
		entry.Parameters = paramsJSON
	} else {
		entry.Parameters = models.TruncateParams(paramsJSON)
	}

	if err := e.audit.Append(context.Background(), entry); err != nil {
		e.logger.Error("failed to append audit entry", "session_id", session.ID, "tool_name", cls.ToolName, "error", err)
	}
}

func (e *Executor) publish(event models.AgentEvent) {
	if e.bus != nil {
		e.bus.Publish(event)
	}
}

func (e *Executor) completed(session *models.Session) models.AgentEvent {
	session.Transition(models.SessionCompleted)
	evt := models.NewEvent(models.EventCompleted, session.ID, nil)
	e.publish(evt)
	return evt
}

func (e *Executor) failed(session *models.Session, message string) models.AgentEvent {
	session.Transition(models.SessionFailed)
	evt := models.NewEvent(models.EventError, session.ID, models.ErrorData{Message: message})
	e.publish(evt)
	return evt
}

func (e *Executor) cancelled(session *models.Session, reason string) models.AgentEvent {
	session.Transition(models.SessionCancelled)
	e.publish(models.NewEvent(models.EventKillSwitchTriggered, session.ID, models.ErrorData{Message: "kill switch triggered", Reason: reason}))
	evt := models.NewEvent(models.EventCancelled, session.ID, models.ErrorData{Reason: reason})
	e.publish(evt)
	return evt
}

func toToolSpecs(defs []models.ToolDefinition) []chatmodel.ToolSpec {
	out := make([]chatmodel.ToolSpec, 0, len(defs))
	for _, d := range defs {
		raw, _ := json.Marshal(d.Parameters)
		out = append(out, chatmodel.ToolSpec{Name: d.Name, Description: d.Description, Parameters: raw})
	}
	return out
}
