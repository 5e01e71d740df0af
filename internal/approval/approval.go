// Package approval implements the central async approval mediator: a
// request/response rendezvous with a per-session similarity cache and
// timeout-as-skip semantics (spec §4.8).
package approval

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/arclight-ai/sentinel/internal/storage"
	"github.com/arclight-ai/sentinel/pkg/models"
	"github.com/google/uuid"
)

// EventPublisher is the subset of the event bus the manager needs.
type EventPublisher interface {
	Publish(e models.AgentEvent)
}

// pendingRequest tracks one in-flight ApprovalRequest and its rendezvous
// channel. The channel is buffered 1 so a late decision never blocks.
type pendingRequest struct {
	request models.ApprovalRequest
	result  chan models.ApprovalResult
}

// Manager is the process-wide approval mediator.
type Manager struct {
	mu             sync.Mutex
	pending        map[string]*pendingRequest
	sessionCache   map[string]map[string]bool // sessionID -> similarityKey -> true
	toolTypeCache  map[string]bool            // similarityKey -> true, cross-session
	cacheStore     storage.ApprovalCacheStore
	bus            EventPublisher
	logger         *slog.Logger
}

// New returns a Manager. cacheStore persists tool_type-scoped remembered
// keys; bus receives approval_requested/approval_received events.
func New(cacheStore storage.ApprovalCacheStore, bus EventPublisher, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		pending:       map[string]*pendingRequest{},
		sessionCache:  map[string]map[string]bool{},
		toolTypeCache: map[string]bool{},
		cacheStore:    cacheStore,
		bus:           bus,
		logger:        logger,
	}
}

// StartSession clears this session's similarity cache.
func (m *Manager) StartSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionCache[sessionID] = map[string]bool{}
}

// EndSession clears all pending requests for sessionID; any still-waiting
// request resolves as timeout.
func (m *Manager) EndSession(sessionID string) {
	m.mu.Lock()
	var toResolve []*pendingRequest
	for id, p := range m.pending {
		if p.request.SessionID == sessionID {
			toResolve = append(toResolve, p)
			delete(m.pending, id)
		}
	}
	delete(m.sessionCache, sessionID)
	m.mu.Unlock()

	for _, p := range toResolve {
		select {
		case p.result <- models.ApprovalResult{Decision: models.ApprovalTimeout}:
		default:
		}
	}
}

// similarityKey derives the per-classification cache key: for filesystem
// tools, (tool_name, parent_directory(path)); otherwise tool_name alone.
func similarityKey(cls models.ActionClassification) string {
	path, _ := cls.Parameters["path"].(string)
	if path == "" {
		return cls.ToolName
	}
	return cls.ToolName + ":" + filepath.Dir(path)
}

// isSimilarCovered reports whether key is covered by an already-approved
// parent directory entry in cached (sub-paths count as similar: approval
// on /src covers /src/components).
func isSimilarCovered(cached map[string]bool, key string) bool {
	if cached[key] {
		return true
	}
	sepIdx := strings.LastIndex(key, ":")
	if sepIdx < 0 {
		return false
	}
	toolName, path := key[:sepIdx], key[sepIdx+1:]
	for cachedKey := range cached {
		cSepIdx := strings.LastIndex(cachedKey, ":")
		if cSepIdx < 0 {
			continue
		}
		cTool, cPath := cachedKey[:cSepIdx], cachedKey[cSepIdx+1:]
		if cTool != toolName {
			continue
		}
		if path == cPath || strings.HasPrefix(path, cPath+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// RequestApproval enqueues an ApprovalRequest and blocks until a decision
// is made, timeout elapses, or ctx is cancelled (treated as timeout).
// If the similarity cache already covers this classification, it returns
// a synthesized approved result immediately without publishing events.
func (m *Manager) RequestApproval(ctx context.Context, cls models.ActionClassification, stepID, sessionID string, timeout time.Duration) models.ApprovalResult {
	key := similarityKey(cls)

	m.mu.Lock()
	if m.toolTypeCache[key] {
		m.mu.Unlock()
		return models.ApprovalResult{Decision: models.ApprovalApproved, DecidedBy: "similar_match"}
	}
	if cached, ok := m.sessionCache[sessionID]; ok && isSimilarCovered(cached, key) {
		m.mu.Unlock()
		return models.ApprovalResult{Decision: models.ApprovalApproved, DecidedBy: "similar_match"}
	}

	req := models.ApprovalRequest{
		ID:             uuid.NewString(),
		Classification: cls,
		StepID:         stepID,
		SessionID:      sessionID,
	}
	p := &pendingRequest{request: req, result: make(chan models.ApprovalResult, 1)}
	m.pending[req.ID] = p
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(models.NewEvent(models.EventApprovalRequested, sessionID, models.ApprovalRequestedData{
			RequestID: req.ID, StepID: stepID, Classification: cls,
		}))
	}

	var result models.ApprovalResult
	select {
	case result = <-p.result:
	case <-time.After(timeout):
		result = models.ApprovalResult{Decision: models.ApprovalTimeout}
	case <-ctx.Done():
		result = models.ApprovalResult{Decision: models.ApprovalTimeout}
	}

	m.mu.Lock()
	delete(m.pending, req.ID)
	if result.Decision == models.ApprovalApproved && result.ApproveSimilar {
		if result.RememberScope == models.RememberToolType {
			m.toolTypeCache[key] = true
			if m.cacheStore != nil {
				_ = m.cacheStore.Remember(context.Background(), key)
			}
		} else {
			if m.sessionCache[sessionID] == nil {
				m.sessionCache[sessionID] = map[string]bool{}
			}
			m.sessionCache[sessionID][key] = true
		}
	}
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(models.NewEvent(models.EventApprovalReceived, sessionID, models.ApprovalReceivedData{Result: result}))
	}
	return result
}

// Approve resolves a pending request as approved. approveSimilar and
// rememberScope control similarity-cache population; modifiedParams, if
// non-nil, replace the classification's parameters for the caller.
func (m *Manager) Approve(requestID string, approveSimilar bool, modifiedParams map[string]any, rememberScope models.RememberScope, decidedBy string) bool {
	return m.resolve(requestID, models.ApprovalResult{
		Decision:       models.ApprovalApproved,
		ApproveSimilar: approveSimilar,
		ModifiedParams: modifiedParams,
		RememberScope:  rememberScope,
		DecidedBy:      decidedBy,
	})
}

// Reject resolves a pending request as rejected.
func (m *Manager) Reject(requestID, decidedBy string) bool {
	return m.resolve(requestID, models.ApprovalResult{Decision: models.ApprovalRejected, DecidedBy: decidedBy})
}

func (m *Manager) resolve(requestID string, result models.ApprovalResult) bool {
	m.mu.Lock()
	p, ok := m.pending[requestID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case p.result <- result:
		return true
	default:
		return false
	}
}

// Pending returns the current snapshot of outstanding ApprovalRequests,
// for a UI to render.
func (m *Manager) Pending() []models.ApprovalRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ApprovalRequest, 0, len(m.pending))
	for _, p := range m.pending {
		out = append(out, p.request)
	}
	return out
}
