package executor

import (
	"context"
	"testing"
	"time"

	"github.com/arclight-ai/sentinel/internal/autonomy"
	"github.com/arclight-ai/sentinel/internal/chatmodel"
	"github.com/arclight-ai/sentinel/internal/classifier"
	"github.com/arclight-ai/sentinel/internal/eventbus"
	"github.com/arclight-ai/sentinel/internal/planner"
	"github.com/arclight-ai/sentinel/internal/storage"
	"github.com/arclight-ai/sentinel/internal/tool"
	"github.com/arclight-ai/sentinel/pkg/models"
)

type fakeModel struct {
	plan string
}

func (f *fakeModel) Name() string { return "fake" }
func (f *fakeModel) Chat(ctx context.Context, req chatmodel.Request) (*chatmodel.Response, error) {
	return &chatmodel.Response{Content: f.plan, Usage: chatmodel.Usage{InputTokens: 10, OutputTokens: 5}}, nil
}
func (f *fakeModel) ChatStream(ctx context.Context, req chatmodel.Request) (<-chan chatmodel.Chunk, error) {
	return nil, nil
}

type fakeTool struct {
	name        string
	destructive bool
	category    string
	result      *models.ToolResult
	err         error
}

func (t *fakeTool) Name() string                  { return t.name }
func (t *fakeTool) Description() string           { return "fake tool" }
func (t *fakeTool) Schema() map[string]any        { return map[string]any{} }
func (t *fakeTool) IsDestructive() bool           { return t.destructive }
func (t *fakeTool) RequiresApprovalDefault() bool { return t.destructive }
func (t *fakeTool) Category() string              { return t.category }
func (t *fakeTool) Execute(ctx context.Context, params map[string]any, actx tool.AgentContext) (*models.ToolResult, error) {
	return t.result, t.err
}

type fakeApproval struct {
	decision models.ApprovalDecision
}

func (f *fakeApproval) StartSession(sessionID string) {}
func (f *fakeApproval) EndSession(sessionID string)    {}
func (f *fakeApproval) RequestApproval(ctx context.Context, cls models.ActionClassification, stepID, sessionID string, timeout time.Duration) models.ApprovalResult {
	return models.ApprovalResult{Decision: f.decision, DecidedBy: "test"}
}

func newTestExecutor(t *testing.T, planJSON string, tools ...*fakeTool) (*Executor, *storage.SQLiteStore) {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	reg := tool.NewRegistry()
	for _, ft := range tools {
		reg.RegisterBuiltin(ft)
	}
	auto := autonomy.New(db.Autonomy(), nil)
	cls := classifier.New(reg, auto)
	plan := planner.New(&fakeModel{plan: planJSON})
	bus := eventbus.New(16, nil)

	exec := New(reg, plan, &fakeModel{plan: planJSON}, cls, auto, &fakeApproval{decision: models.ApprovalApproved}, db.Audit(), bus, nil)
	return exec, db
}

func TestRunCompletesAutoExecutedSafeTool(t *testing.T) {
	planJSON := `{"task":"t","overview":"o","steps":[{"id":"1","description":"do it","tool_name":"noop","params":{}}]}`
	exec, _ := newTestExecutor(t, planJSON, &fakeTool{name: "noop", destructive: false, category: "filesystem", result: &models.ToolResult{Success: true}})

	evt := exec.Run(context.Background(), "t", "/proj", models.NewTokenBudget(10000, 0.8))
	if evt.Type != models.EventCompleted {
		t.Fatalf("expected completed, got %s: %+v", evt.Type, evt.Data)
	}
}

func TestRunFailsStepWhenToolErrors(t *testing.T) {
	planJSON := `{"task":"t","overview":"o","steps":[{"id":"1","description":"do it","tool_name":"noop","params":{}}]}`
	exec, _ := newTestExecutor(t, planJSON, &fakeTool{name: "noop", destructive: false, category: "filesystem", result: &models.ToolResult{Success: false, Error: "permission denied"}})

	evt := exec.Run(context.Background(), "t", "/proj", models.NewTokenBudget(10000, 0.8))
	if evt.Type != models.EventError {
		t.Fatalf("expected error (dead-locked plan after step failure), got %s", evt.Type)
	}
}

func TestRunRejectedApprovalFailsStep(t *testing.T) {
	planJSON := `{"task":"t","overview":"o","steps":[{"id":"1","description":"rm stuff","tool_name":"danger","params":{}}]}`
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	reg := tool.NewRegistry()
	reg.RegisterBuiltin(&fakeTool{name: "danger", destructive: true, category: "exec", result: &models.ToolResult{Success: true}})
	auto := autonomy.New(db.Autonomy(), nil)
	if err := auto.SetLevel(context.Background(), "/proj", models.AutonomyL1Assistant); err != nil {
		t.Fatalf("set level: %v", err)
	}
	cls := classifier.New(reg, auto)
	plan := planner.New(&fakeModel{plan: planJSON})
	bus := eventbus.New(16, nil)
	exec := New(reg, plan, &fakeModel{plan: planJSON}, cls, auto, &fakeApproval{decision: models.ApprovalRejected}, db.Audit(), bus, nil)

	evt := exec.Run(context.Background(), "t", "/proj", models.NewTokenBudget(10000, 0.8))
	if evt.Type != models.EventError {
		t.Fatalf("expected error after rejected approval leaves plan incomplete, got %s", evt.Type)
	}

	entries, err := db.Audit().List(context.Background(), storage.AuditFilter{})
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 1 || entries[0].ApprovalDecision != models.ApprovalRejected {
		t.Fatalf("expected one rejected audit entry, got %+v", entries)
	}
}

func TestRunCancelledWhenKillSwitchTriggeredBeforeStart(t *testing.T) {
	planJSON := `{"task":"t","overview":"o","steps":[{"id":"1","description":"do it","tool_name":"noop","params":{}}]}`
	exec, _ := newTestExecutor(t, planJSON, &fakeTool{name: "noop", destructive: false, category: "filesystem", result: &models.ToolResult{Success: true}})

	exec.Cancel("user requested stop")
	evt := exec.Run(context.Background(), "t", "/proj", models.NewTokenBudget(10000, 0.8))
	if evt.Type != models.EventCancelled {
		t.Fatalf("expected cancelled, got %s", evt.Type)
	}
}

func TestRunFailsWhenBudgetAlreadyExhausted(t *testing.T) {
	planJSON := `{"task":"t","overview":"o","steps":[{"id":"1","description":"do it","tool_name":"noop","params":{}}]}`
	exec, _ := newTestExecutor(t, planJSON, &fakeTool{name: "noop", destructive: false, category: "filesystem", result: &models.ToolResult{Success: true}})

	budget := models.NewTokenBudget(5, 0.8)
	budget.Consume(10, 0)
	evt := exec.Run(context.Background(), "t", "/proj", budget)
	if evt.Type != models.EventError {
		t.Fatalf("expected error from exhausted budget, got %s", evt.Type)
	}
}

func TestRunSkipsStepOnApprovalTimeoutAndCompletesRemainingWork(t *testing.T) {
	planJSON := `{"task":"t","overview":"o","steps":[{"id":"1","description":"rm stuff","tool_name":"danger","params":{}}]}`
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	reg := tool.NewRegistry()
	reg.RegisterBuiltin(&fakeTool{name: "danger", destructive: true, category: "exec", result: &models.ToolResult{Success: true}})
	auto := autonomy.New(db.Autonomy(), nil)
	if err := auto.SetLevel(context.Background(), "/proj", models.AutonomyL1Assistant); err != nil {
		t.Fatalf("set level: %v", err)
	}
	cls := classifier.New(reg, auto)
	plan := planner.New(&fakeModel{plan: planJSON})
	bus := eventbus.New(16, nil)
	exec := New(reg, plan, &fakeModel{plan: planJSON}, cls, auto, &fakeApproval{decision: models.ApprovalTimeout}, db.Audit(), bus, nil)

	evt := exec.Run(context.Background(), "t", "/proj", models.NewTokenBudget(10000, 0.8))
	if evt.Type != models.EventCompleted {
		t.Fatalf("expected completed (single step skipped, plan complete), got %s", evt.Type)
	}

	entries, err := db.Audit().List(context.Background(), storage.AuditFilter{})
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 1 || entries[0].ApprovalDecision != models.ApprovalTimeout {
		t.Fatalf("expected one timeout audit entry, got %+v", entries)
	}
}
