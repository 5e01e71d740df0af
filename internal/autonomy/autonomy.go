// Package autonomy tracks the per-project autonomy level (L1-L5) and its
// allow/block rule lists. L5 is a session-only bypass: it is tracked in an
// in-memory set and never reaches the persisted store.
package autonomy

import (
	"context"
	"log/slog"
	"sync"

	"github.com/arclight-ai/sentinel/internal/storage"
	"github.com/arclight-ai/sentinel/pkg/models"
)

// DefaultLevel is the autonomy level assigned to a project with no
// explicit setting.
const DefaultLevel = models.AutonomyL2Collaborator

// ChangeCallback is invoked whenever a project's effective level changes.
type ChangeCallback func(projectPath string, level models.AutonomyLevel)

// Service is the process-wide autonomy service (spec §4.7).
type Service struct {
	mu        sync.RWMutex
	store     storage.AutonomyStore
	yolo      map[string]bool // in-memory-only L5 set, per project
	callbacks []ChangeCallback
	logger    *slog.Logger
}

// New returns a Service backed by store for persisted (non-L5) settings.
func New(store storage.AutonomyStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, yolo: map[string]bool{}, logger: logger}
}

// OnChange registers cb to be called after every SetLevel.
func (s *Service) OnChange(cb ChangeCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, cb)
}

// Level returns the effective autonomy level for projectPath: L5 if the
// in-memory YOLO set contains it, else the persisted level, else DefaultLevel.
func (s *Service) Level(projectPath string) models.AutonomyLevel {
	s.mu.RLock()
	yolo := s.yolo[projectPath]
	s.mu.RUnlock()
	if yolo {
		return models.AutonomyL5YOLO
	}

	settings, err := s.store.Get(context.Background(), projectPath)
	if err != nil || settings == nil {
		return DefaultLevel
	}
	return settings.Level
}

// IsYOLOActive reports whether projectPath currently has a session-only
// L5 bypass active.
func (s *Service) IsYOLOActive(projectPath string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.yolo[projectPath]
}

// SetLevel sets the level for projectPath. L5 adds to the in-memory set
// without persisting; L1-L4 removes from the in-memory set and persists.
func (s *Service) SetLevel(ctx context.Context, projectPath string, level models.AutonomyLevel) error {
	if level == models.AutonomyL5YOLO {
		s.mu.Lock()
		s.yolo[projectPath] = true
		s.mu.Unlock()
		s.notify(projectPath, level)
		return nil
	}

	s.mu.Lock()
	delete(s.yolo, projectPath)
	s.mu.Unlock()

	settings, err := s.store.Get(ctx, projectPath)
	if err != nil {
		settings = &models.AutonomySettings{ProjectPath: projectPath}
	}
	settings.Level = level
	if err := s.store.Set(ctx, *settings); err != nil {
		return err
	}
	s.notify(projectPath, level)
	return nil
}

// Allowlist returns the persisted allow-rule list for projectPath.
func (s *Service) Allowlist(projectPath string) []string {
	settings, err := s.store.Get(context.Background(), projectPath)
	if err != nil || settings == nil {
		return nil
	}
	return settings.Allowlist
}

// Blocklist returns the persisted block-rule list for projectPath.
func (s *Service) Blocklist(projectPath string) []string {
	settings, err := s.store.Get(context.Background(), projectPath)
	if err != nil || settings == nil {
		return nil
	}
	return settings.Blocklist
}

// SetRules persists the allow/block rule lists for projectPath; rule
// lists are persisted regardless of the current autonomy level.
func (s *Service) SetRules(ctx context.Context, projectPath string, allowlist, blocklist []string) error {
	settings, err := s.store.Get(ctx, projectPath)
	if err != nil {
		settings = &models.AutonomySettings{ProjectPath: projectPath, Level: DefaultLevel}
	}
	settings.Allowlist = allowlist
	settings.Blocklist = blocklist
	return s.store.Set(ctx, *settings)
}

func (s *Service) notify(projectPath string, level models.AutonomyLevel) {
	s.mu.RLock()
	callbacks := append([]ChangeCallback(nil), s.callbacks...)
	s.mu.RUnlock()
	for _, cb := range callbacks {
		cb(projectPath, level)
	}
}
