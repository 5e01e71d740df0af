// Package storage persists Sentinel's durable state — sessions, plan
// steps, the audit ledger, per-project autonomy settings, external tool
// server configs, and approval similarity caches — in a single embedded
// SQL database.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/arclight-ai/sentinel/pkg/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// SessionRecord is the trace store's persisted projection of a Session,
// including its final Plan and step outcomes for replay/history.
type SessionRecord struct {
	ID               string
	Task             string
	ProjectPath      string
	State            models.SessionState
	TokensUsedInput  int
	TokensUsedOutput int
	CreatedAt        time.Time
	EndedAt          time.Time
}

// StepRecord is the trace store's persisted projection of a PlanStep.
type StepRecord struct {
	SessionID   string
	StepID      string
	Description string
	ToolName    string
	Status      models.PlanStepStatus
	Error       string
}

// TraceStore is the per-task session/step repository (spec §2 "Trace
// store / session repo").
type TraceStore interface {
	SaveSession(ctx context.Context, rec SessionRecord) error
	SaveStep(ctx context.Context, rec StepRecord) error
	GetSession(ctx context.Context, id string) (*SessionRecord, error)
	ListSteps(ctx context.Context, sessionID string) ([]StepRecord, error)
}

// AuditFilter narrows AuditStore.List results.
type AuditFilter struct {
	SessionID string
	RiskLevel models.RiskLevel
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

// AuditStore is the durable, append-only invocation ledger (spec §4.10).
type AuditStore interface {
	Append(ctx context.Context, entry models.AuditEntry) error
	List(ctx context.Context, filter AuditFilter) ([]models.AuditEntry, error)
	Cleanup(ctx context.Context, now time.Time) (int64, error)
}

// AutonomyStore persists per-project autonomy level and rule lists (L5 is
// never persisted — see internal/autonomy).
type AutonomyStore interface {
	Get(ctx context.Context, projectPath string) (*models.AutonomySettings, error)
	Set(ctx context.Context, settings models.AutonomySettings) error
}

// ExternalServerStore persists ETP server configs.
type ExternalServerStore interface {
	Upsert(ctx context.Context, cfg models.ExternalServerConfig) error
	Get(ctx context.Context, id string) (*models.ExternalServerConfig, error)
	List(ctx context.Context) ([]models.ExternalServerConfig, error)
	Delete(ctx context.Context, id string) error
	MarkConnected(ctx context.Context, id string, at time.Time) error
	MarkError(ctx context.Context, id string, errMsg string) error
}

// ApprovalCacheStore persists cross-session "remember_scope=tool_type"
// approval similarity entries. Session-scoped entries live only in the
// approval manager's in-memory cache and are never persisted here.
type ApprovalCacheStore interface {
	Remember(ctx context.Context, similarityKey string) error
	IsRemembered(ctx context.Context, similarityKey string) (bool, error)
}

// Store groups every persistence interface behind one handle.
type Store interface {
	Trace() TraceStore
	Audit() AuditStore
	Autonomy() AutonomyStore
	ExternalServers() ExternalServerStore
	ApprovalCache() ApprovalCacheStore
	Close() error
}
