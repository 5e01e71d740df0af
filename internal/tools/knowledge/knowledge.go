// Package knowledge implements spec §4.4's KnowledgeQueryTool: semantic
// search over a collection of indexed documents, generalized from the
// teacher's document_search tool (internal/tools/rag) to a pluggable
// Backend rather than a single pgvector-backed index.Manager, since no
// embedding-provider or vector-store dependency is wired into this
// codebase's domain stack.
package knowledge

import (
	"context"

	"github.com/arclight-ai/sentinel/internal/tool"
	"github.com/arclight-ai/sentinel/pkg/models"
)

// Match is one retrieved chunk from a Backend search.
type Match struct {
	Collection string  `json:"collection"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
	Source     string  `json:"source,omitempty"`
}

// Backend resolves a query against an indexed document collection.
// Implementations live outside this package (e.g. wrapping a vector
// store); QueryTool owns only the tool ABI and default behavior.
type Backend interface {
	Search(ctx context.Context, collection, query string, topK int, minScore float64) ([]Match, error)
}

// noopBackend satisfies spec's "returns empty result gracefully when no
// collection is initialized" requirement: it is the zero-value backend
// wired in whenever no real index is configured.
type noopBackend struct{}

func (noopBackend) Search(ctx context.Context, collection, query string, topK int, minScore float64) ([]Match, error) {
	return nil, nil
}

// Config configures QueryTool's defaults, mirroring the teacher's
// SearchToolConfig (DefaultLimit/MaxLimit/DefaultThreshold).
type Config struct {
	DefaultTopK     int
	MaxTopK         int
	DefaultMinScore float64
}

// QueryTool implements the tool.Tool interface for knowledge-base search.
type QueryTool struct {
	backend Backend
	config  Config
}

// NewQueryTool creates a knowledge query tool backed by backend, applying
// defaults for any unset config values. A nil backend wires in a no-op
// backend that always returns an empty result set.
func NewQueryTool(cfg Config, backend Backend) *QueryTool {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = 20
	}
	if backend == nil {
		backend = noopBackend{}
	}
	return &QueryTool{backend: backend, config: cfg}
}

func (t *QueryTool) Name() string { return "knowledge_query" }

func (t *QueryTool) Description() string {
	return "Search an indexed document collection for relevant passages using semantic similarity. Returns an empty result set if no collection has been initialized."
}

func (t *QueryTool) Category() string              { return "knowledge" }
func (t *QueryTool) IsDestructive() bool           { return false }
func (t *QueryTool) RequiresApprovalDefault() bool { return false }

func (t *QueryTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query to find relevant passages.",
			},
			"collection": map[string]any{
				"type":        "string",
				"description": "Collection to search. Default: the backend's default collection.",
			},
			"top_k": map[string]any{
				"type":        "integer",
				"description": "Maximum number of results to return (default: 5, max: 20).",
			},
			"min_score": map[string]any{
				"type":        "number",
				"description": "Minimum similarity score from 0 to 1 (default: backend-specific, usually 0).",
			},
		},
		"required": []string{"query"},
	}
}

// Execute runs a knowledge-base search, clamping top_k to the configured
// maximum and falling back to config defaults for unset parameters.
func (t *QueryTool) Execute(ctx context.Context, params map[string]any, actx tool.AgentContext) (*models.ToolResult, error) {
	query, _ := params["query"].(string)
	if query == "" {
		return &models.ToolResult{Error: "query is required"}, nil
	}
	collection, _ := params["collection"].(string)

	topK := t.config.DefaultTopK
	if v, ok := params["top_k"].(float64); ok && v > 0 {
		topK = int(v)
	}
	if topK > t.config.MaxTopK {
		topK = t.config.MaxTopK
	}

	minScore := t.config.DefaultMinScore
	if v, ok := params["min_score"].(float64); ok {
		minScore = v
	}

	matches, err := t.backend.Search(ctx, collection, query, topK, minScore)
	if err != nil {
		return &models.ToolResult{Error: err.Error()}, nil
	}
	if matches == nil {
		matches = []Match{}
	}

	return &models.ToolResult{
		Success: true,
		Data: map[string]any{
			"query":   query,
			"matches": matches,
		},
	}, nil
}
