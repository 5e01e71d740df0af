package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure-Go driver, no cgo

	"github.com/arclight-ai/sentinel/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS agent_session (
	id TEXT PRIMARY KEY,
	task TEXT NOT NULL,
	project_path TEXT NOT NULL,
	state TEXT NOT NULL,
	tokens_used_input INTEGER NOT NULL DEFAULT 0,
	tokens_used_output INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	ended_at DATETIME
);

CREATE TABLE IF NOT EXISTS agent_step (
	session_id TEXT NOT NULL,
	step_id TEXT NOT NULL,
	description TEXT,
	tool_name TEXT,
	status TEXT NOT NULL,
	error TEXT,
	PRIMARY KEY (session_id, step_id)
);
CREATE INDEX IF NOT EXISTS idx_agent_step_session ON agent_step(session_id);

CREATE TABLE IF NOT EXISTS agent_audit (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	timestamp DATETIME NOT NULL,
	tool_name TEXT NOT NULL,
	risk_level TEXT NOT NULL,
	parameters BLOB,
	full_parameters BLOB,
	approval_decision TEXT,
	approved_by TEXT,
	duration_ms INTEGER,
	success INTEGER NOT NULL,
	result BLOB,
	error TEXT,
	yolo_mode INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_agent_audit_session ON agent_audit(session_id);
CREATE INDEX IF NOT EXISTS idx_agent_audit_timestamp ON agent_audit(timestamp);
CREATE INDEX IF NOT EXISTS idx_agent_audit_risk ON agent_audit(risk_level);

CREATE TABLE IF NOT EXISTS project_autonomy (
	project_path TEXT PRIMARY KEY,
	level TEXT NOT NULL,
	allowlist TEXT,
	blocklist TEXT
);

CREATE TABLE IF NOT EXISTS external_servers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	transport TEXT NOT NULL,
	command TEXT,
	args TEXT,
	env TEXT,
	url TEXT,
	headers TEXT,
	trust TEXT NOT NULL,
	sandbox_enabled INTEGER NOT NULL DEFAULT 0,
	enabled INTEGER NOT NULL DEFAULT 1,
	category TEXT,
	created_at DATETIME NOT NULL,
	last_connected DATETIME,
	last_error TEXT
);

CREATE TABLE IF NOT EXISTS tool_approval (
	similarity_key TEXT PRIMARY KEY,
	remembered_at DATETIME NOT NULL
);
`

// SQLiteStore implements Store on a single embedded modernc.org/sqlite
// database opened in WAL mode: one writer, multiple readers.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at path and applies
// the schema migrations. path may be ":memory:" for tests.
func Open(path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // one writer at a time; WAL still allows concurrent readers internally
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Trace() TraceStore               { return traceStore{db: s.db} }
func (s *SQLiteStore) Audit() AuditStore               { return auditStore{db: s.db} }
func (s *SQLiteStore) Autonomy() AutonomyStore         { return autonomyStore{db: s.db} }
func (s *SQLiteStore) ExternalServers() ExternalServerStore { return externalServerStore{db: s.db} }
func (s *SQLiteStore) ApprovalCache() ApprovalCacheStore    { return approvalCacheStore{db: s.db} }

type traceStore struct{ db *sql.DB }

func (t traceStore) SaveSession(ctx context.Context, rec SessionRecord) error {
	var ended any
	if !rec.EndedAt.IsZero() {
		ended = rec.EndedAt
	}
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO agent_session (id, task, project_path, state, tokens_used_input, tokens_used_output, created_at, ended_at)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET state=excluded.state,
			tokens_used_input=excluded.tokens_used_input,
			tokens_used_output=excluded.tokens_used_output,
			ended_at=excluded.ended_at`,
		rec.ID, rec.Task, rec.ProjectPath, string(rec.State), rec.TokensUsedInput, rec.TokensUsedOutput, rec.CreatedAt, ended)
	return err
}

func (t traceStore) SaveStep(ctx context.Context, rec StepRecord) error {
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO agent_step (session_id, step_id, description, tool_name, status, error)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(session_id, step_id) DO UPDATE SET status=excluded.status, error=excluded.error`,
		rec.SessionID, rec.StepID, rec.Description, rec.ToolName, string(rec.Status), rec.Error)
	return err
}

func (t traceStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	row := t.db.QueryRowContext(ctx, `
		SELECT id, task, project_path, state, tokens_used_input, tokens_used_output, created_at, ended_at
		FROM agent_session WHERE id = ?`, id)
	var rec SessionRecord
	var state string
	var ended sql.NullTime
	if err := row.Scan(&rec.ID, &rec.Task, &rec.ProjectPath, &state, &rec.TokensUsedInput, &rec.TokensUsedOutput, &rec.CreatedAt, &ended); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	rec.State = models.SessionState(state)
	if ended.Valid {
		rec.EndedAt = ended.Time
	}
	return &rec, nil
}

func (t traceStore) ListSteps(ctx context.Context, sessionID string) ([]StepRecord, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT session_id, step_id, description, tool_name, status, error
		FROM agent_step WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StepRecord
	for rows.Next() {
		var rec StepRecord
		var status string
		if err := rows.Scan(&rec.SessionID, &rec.StepID, &rec.Description, &rec.ToolName, &status, &rec.Error); err != nil {
			return nil, err
		}
		rec.Status = models.PlanStepStatus(status)
		out = append(out, rec)
	}
	return out, rows.Err()
}

type auditStore struct{ db *sql.DB }

func (a auditStore) Append(ctx context.Context, entry models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO agent_audit (id, session_id, timestamp, tool_name, risk_level, parameters, full_parameters,
			approval_decision, approved_by, duration_ms, success, result, error, yolo_mode)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		entry.ID, entry.SessionID, entry.Timestamp, entry.ToolName, string(entry.RiskLevel),
		entry.Parameters, nullBytes(entry.FullParameters), string(entry.ApprovalDecision), entry.ApprovedBy,
		entry.DurationMS, boolToInt(entry.Success), entry.Result, entry.Error, boolToInt(entry.YoloMode))
	return err
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (a auditStore) List(ctx context.Context, filter AuditFilter) ([]models.AuditEntry, error) {
	query := `SELECT id, session_id, timestamp, tool_name, risk_level, parameters, full_parameters,
		approval_decision, approved_by, duration_ms, success, result, error, yolo_mode FROM agent_audit WHERE 1=1`
	var args []any
	if filter.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, filter.SessionID)
	}
	if filter.RiskLevel != "" {
		query += " AND risk_level = ?"
		args = append(args, string(filter.RiskLevel))
	}
	if !filter.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.Since)
	}
	if !filter.Until.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, filter.Until)
	}
	query += " ORDER BY timestamp ASC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var risk, decision string
		var success, yolo int
		var fullParams sql.NullString
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Timestamp, &e.ToolName, &risk, &e.Parameters, &fullParams,
			&decision, &e.ApprovedBy, &e.DurationMS, &success, &e.Result, &e.Error, &yolo); err != nil {
			return nil, err
		}
		e.RiskLevel = models.RiskLevel(risk)
		e.ApprovalDecision = models.ApprovalDecision(decision)
		e.Success = success != 0
		e.YoloMode = yolo != 0
		if fullParams.Valid {
			e.FullParameters = []byte(fullParams.String)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (a auditStore) Cleanup(ctx context.Context, now time.Time) (int64, error) {
	standardCutoff := now.Add(-models.StandardRetention)
	yoloCutoff := now.Add(-models.YoloRetention)
	res, err := a.db.ExecContext(ctx, `
		DELETE FROM agent_audit
		WHERE (yolo_mode = 0 AND timestamp < ?)
		   OR (yolo_mode = 1 AND timestamp < ?)`, standardCutoff, yoloCutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type autonomyStore struct{ db *sql.DB }

func (s autonomyStore) Get(ctx context.Context, projectPath string) (*models.AutonomySettings, error) {
	row := s.db.QueryRowContext(ctx, `SELECT level, allowlist, blocklist FROM project_autonomy WHERE project_path = ?`, projectPath)
	var level, allow, block string
	if err := row.Scan(&level, &allow, &block); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	settings := &models.AutonomySettings{
		ProjectPath: projectPath,
		Level:       models.AutonomyLevel(level),
		Allowlist:   splitCSV(allow),
		Blocklist:   splitCSV(block),
	}
	return settings, nil
}

func (s autonomyStore) Set(ctx context.Context, settings models.AutonomySettings) error {
	// L5 is never persisted: a Set with L5 persists the project at L2
	// (the default) with its rule lists intact, matching the in-memory
	// YOLO-set contract in internal/autonomy.
	level := settings.Level
	if level == models.AutonomyL5YOLO {
		level = models.AutonomyL2Collaborator
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_autonomy (project_path, level, allowlist, blocklist)
		VALUES (?,?,?,?)
		ON CONFLICT(project_path) DO UPDATE SET level=excluded.level, allowlist=excluded.allowlist, blocklist=excluded.blocklist`,
		settings.ProjectPath, string(level), joinCSV(settings.Allowlist), joinCSV(settings.Blocklist))
	return err
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func joinCSV(items []string) string {
	return strings.Join(items, ",")
}

type externalServerStore struct{ db *sql.DB }

func (e externalServerStore) Upsert(ctx context.Context, cfg models.ExternalServerConfig) error {
	env, err := json.Marshal(cfg.Env)
	if err != nil {
		return err
	}
	headers, err := json.Marshal(cfg.Headers)
	if err != nil {
		return err
	}
	args, err := json.Marshal(cfg.Args)
	if err != nil {
		return err
	}
	_, err = e.db.ExecContext(ctx, `
		INSERT INTO external_servers (id, name, transport, command, args, env, url, headers, trust,
			sandbox_enabled, enabled, category, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name, transport=excluded.transport, command=excluded.command,
			args=excluded.args, env=excluded.env, url=excluded.url, headers=excluded.headers, trust=excluded.trust,
			sandbox_enabled=excluded.sandbox_enabled, enabled=excluded.enabled, category=excluded.category`,
		cfg.ID, cfg.Name, string(cfg.Transport), cfg.Command, string(args), string(env), cfg.URL, string(headers),
		string(cfg.Trust), boolToInt(cfg.SandboxEnabled), boolToInt(cfg.Enabled), cfg.Category, cfg.CreatedAt)
	return err
}

func (e externalServerStore) Get(ctx context.Context, id string) (*models.ExternalServerConfig, error) {
	row := e.db.QueryRowContext(ctx, `
		SELECT id, name, transport, command, args, env, url, headers, trust, sandbox_enabled, enabled, category,
			created_at, last_connected, last_error
		FROM external_servers WHERE id = ?`, id)
	return scanExternalServer(row)
}

func (e externalServerStore) List(ctx context.Context) ([]models.ExternalServerConfig, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT id, name, transport, command, args, env, url, headers, trust, sandbox_enabled, enabled, category,
			created_at, last_connected, last_error
		FROM external_servers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.ExternalServerConfig
	for rows.Next() {
		cfg, err := scanExternalServer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *cfg)
	}
	return out, rows.Err()
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanExternalServer.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanExternalServer(row rowScanner) (*models.ExternalServerConfig, error) {
	var cfg models.ExternalServerConfig
	var transport, trust, argsJSON, envJSON, headersJSON string
	var sandboxEnabled, enabled int
	var lastConnected sql.NullTime
	var lastError sql.NullString
	if err := row.Scan(&cfg.ID, &cfg.Name, &transport, &cfg.Command, &argsJSON, &envJSON, &cfg.URL, &headersJSON,
		&trust, &sandboxEnabled, &enabled, &cfg.Category, &cfg.CreatedAt, &lastConnected, &lastError); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	cfg.Transport = models.TransportKind(transport)
	cfg.Trust = models.TrustLevel(trust)
	cfg.SandboxEnabled = sandboxEnabled != 0
	cfg.Enabled = enabled != 0
	_ = json.Unmarshal([]byte(argsJSON), &cfg.Args)
	_ = json.Unmarshal([]byte(envJSON), &cfg.Env)
	_ = json.Unmarshal([]byte(headersJSON), &cfg.Headers)
	if lastConnected.Valid {
		t := lastConnected.Time
		cfg.LastConnected = &t
	}
	if lastError.Valid {
		cfg.LastError = lastError.String
	}
	return &cfg, nil
}

func (e externalServerStore) Delete(ctx context.Context, id string) error {
	_, err := e.db.ExecContext(ctx, `DELETE FROM external_servers WHERE id = ?`, id)
	return err
}

func (e externalServerStore) MarkConnected(ctx context.Context, id string, at time.Time) error {
	_, err := e.db.ExecContext(ctx, `UPDATE external_servers SET last_connected = ?, last_error = NULL WHERE id = ?`, at, id)
	return err
}

func (e externalServerStore) MarkError(ctx context.Context, id string, errMsg string) error {
	_, err := e.db.ExecContext(ctx, `UPDATE external_servers SET last_error = ? WHERE id = ?`, errMsg, id)
	return err
}

type approvalCacheStore struct{ db *sql.DB }

func (c approvalCacheStore) Remember(ctx context.Context, similarityKey string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO tool_approval (similarity_key, remembered_at) VALUES (?, ?)
		ON CONFLICT(similarity_key) DO UPDATE SET remembered_at=excluded.remembered_at`,
		similarityKey, time.Now())
	return err
}

func (c approvalCacheStore) IsRemembered(ctx context.Context, similarityKey string) (bool, error) {
	row := c.db.QueryRowContext(ctx, `SELECT 1 FROM tool_approval WHERE similarity_key = ?`, similarityKey)
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
