package approval

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/arclight-ai/sentinel/internal/storage"
	"github.com/arclight-ai/sentinel/pkg/models"
)

type recordingBus struct {
	mu     sync.Mutex
	events []models.AgentEvent
}

func (b *recordingBus) Publish(e models.AgentEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) count(t models.AgentEventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func newTestManager(t *testing.T) (*Manager, *recordingBus) {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	bus := &recordingBus{}
	return New(db.ApprovalCache(), bus, nil), bus
}

func TestTimeoutResolvesAsSkipNotReject(t *testing.T) {
	m, _ := newTestManager(t)
	m.StartSession("s1")

	cls := models.ActionClassification{ToolName: "file_write", Parameters: map[string]any{"path": "/src/a.go"}}
	result := m.RequestApproval(context.Background(), cls, "step1", "s1", 20*time.Millisecond)
	if result.Decision != models.ApprovalTimeout {
		t.Fatalf("expected timeout, got %s", result.Decision)
	}
}

func TestApproveSimilarCoversSubpaths(t *testing.T) {
	m, _ := newTestManager(t)
	m.StartSession("s1")

	cls := models.ActionClassification{ToolName: "file_write", Parameters: map[string]any{"path": "/src/a.go"}}
	var requestID string
	done := make(chan models.ApprovalResult, 1)
	go func() {
		done <- m.RequestApproval(context.Background(), cls, "step1", "s1", time.Second)
	}()

	waitForPending(t, m, &requestID)
	if !m.Approve(requestID, true, nil, models.RememberSession, "user") {
		t.Fatal("expected approve to succeed")
	}
	first := <-done
	if first.Decision != models.ApprovalApproved {
		t.Fatalf("expected approved, got %s", first.Decision)
	}

	cls2 := models.ActionClassification{ToolName: "file_write", Parameters: map[string]any{"path": "/src/components/b.go"}}
	second := m.RequestApproval(context.Background(), cls2, "step2", "s1", time.Second)
	if second.Decision != models.ApprovalApproved || second.DecidedBy != "similar_match" {
		t.Fatalf("expected sub-path covered by similarity cache, got %+v", second)
	}
}

func TestRejectDoesNotPopulateCache(t *testing.T) {
	m, _ := newTestManager(t)
	m.StartSession("s1")

	cls := models.ActionClassification{ToolName: "exec"}
	var requestID string
	done := make(chan models.ApprovalResult, 1)
	go func() {
		done <- m.RequestApproval(context.Background(), cls, "step1", "s1", time.Second)
	}()

	waitForPending(t, m, &requestID)
	m.Reject(requestID, "user")
	result := <-done
	if result.Decision != models.ApprovalRejected {
		t.Fatalf("expected rejected, got %s", result.Decision)
	}

	second := m.RequestApproval(context.Background(), cls, "step2", "s1", 20*time.Millisecond)
	if second.Decision != models.ApprovalTimeout {
		t.Fatalf("expected a fresh request (timeout in this test), not a cached approval, got %s", second.Decision)
	}
}

func TestEndSessionResolvesOutstandingAsTimeout(t *testing.T) {
	m, _ := newTestManager(t)
	m.StartSession("s1")

	cls := models.ActionClassification{ToolName: "exec"}
	done := make(chan models.ApprovalResult, 1)
	go func() {
		done <- m.RequestApproval(context.Background(), cls, "step1", "s1", time.Minute)
	}()

	waitForPendingCount(t, m, 1)
	m.EndSession("s1")

	select {
	case result := <-done:
		if result.Decision != models.ApprovalTimeout {
			t.Fatalf("expected timeout on end-session, got %s", result.Decision)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for end-session resolution")
	}
}

func waitForPending(t *testing.T, m *Manager, requestID *string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		pending := m.Pending()
		if len(pending) > 0 {
			*requestID = pending[0].ID
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for pending request")
}

func waitForPendingCount(t *testing.T, m *Manager, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(m.Pending()) >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for pending count")
}
