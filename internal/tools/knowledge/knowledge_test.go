package knowledge

import (
	"context"
	"testing"

	"github.com/arclight-ai/sentinel/internal/tool"
)

func TestQueryRequiresQuery(t *testing.T) {
	qt := NewQueryTool(Config{}, nil)
	result, err := qt.Execute(context.Background(), map[string]any{}, tool.AgentContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure for missing query")
	}
}

func TestQueryNoBackendReturnsEmptyGracefully(t *testing.T) {
	qt := NewQueryTool(Config{}, nil)
	result, err := qt.Execute(context.Background(), map[string]any{"query": "how does retries work"}, tool.AgentContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success with empty matches, got %+v", result)
	}
	data, ok := result.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected map data, got %T", result.Data)
	}
	matches, ok := data["matches"].([]Match)
	if !ok {
		t.Fatalf("expected []Match, got %T", data["matches"])
	}
	if len(matches) != 0 {
		t.Fatalf("expected no matches when no collection is initialized, got %d", len(matches))
	}
}

type fakeBackend struct {
	calledTopK int
}

func (f *fakeBackend) Search(ctx context.Context, collection, query string, topK int, minScore float64) ([]Match, error) {
	f.calledTopK = topK
	return []Match{{Collection: collection, Content: "result for " + query, Score: 0.9}}, nil
}

func TestQueryClampsTopKToMax(t *testing.T) {
	backend := &fakeBackend{}
	qt := NewQueryTool(Config{DefaultTopK: 5, MaxTopK: 10}, backend)

	result, err := qt.Execute(context.Background(), map[string]any{
		"query": "test",
		"top_k": float64(50),
	}, tool.AgentContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if backend.calledTopK != 10 {
		t.Fatalf("expected top_k clamped to 10, got %d", backend.calledTopK)
	}
}
