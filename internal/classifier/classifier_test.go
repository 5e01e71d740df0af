package classifier

import (
	"context"
	"testing"

	"github.com/arclight-ai/sentinel/internal/tool"
	"github.com/arclight-ai/sentinel/pkg/models"
)

type fakeTool struct {
	name          string
	destructive   bool
	category      string
}

func (f *fakeTool) Name() string                { return f.name }
func (f *fakeTool) Description() string          { return "" }
func (f *fakeTool) Schema() map[string]any        { return nil }
func (f *fakeTool) IsDestructive() bool           { return f.destructive }
func (f *fakeTool) RequiresApprovalDefault() bool  { return false }
func (f *fakeTool) Category() string              { return f.category }
func (f *fakeTool) Execute(ctx context.Context, params map[string]any, actx tool.AgentContext) (*models.ToolResult, error) {
	return &models.ToolResult{Success: true}, nil
}

type fakeAutonomy struct {
	level     models.AutonomyLevel
	allowlist []string
	blocklist []string
}

func (f *fakeAutonomy) Level(string) models.AutonomyLevel { return f.level }
func (f *fakeAutonomy) IsYOLOActive(string) bool          { return f.level == models.AutonomyL5YOLO }
func (f *fakeAutonomy) Allowlist(string) []string         { return f.allowlist }
func (f *fakeAutonomy) Blocklist(string) []string         { return f.blocklist }

func newRegistryWithTool(t *fakeTool) *tool.Registry {
	r := tool.NewRegistry()
	r.RegisterBuiltin(t)
	return r
}

func TestL5BypassesBeforeRules(t *testing.T) {
	reg := newRegistryWithTool(&fakeTool{name: "file_delete", destructive: true, category: "filesystem"})
	auto := &fakeAutonomy{level: models.AutonomyL5YOLO, blocklist: []string{"file_delete"}}
	c := New(reg, auto)

	cls := c.Classify("file_delete", map[string]any{"path": "/etc/passwd"}, "/proj")
	if cls.RequiresApproval {
		t.Fatal("expected L5 to bypass approval even though tool is blocklisted")
	}
}

func TestBlocklistBeatsAllowlist(t *testing.T) {
	reg := newRegistryWithTool(&fakeTool{name: "exec", destructive: true, category: "exec"})
	auto := &fakeAutonomy{level: models.AutonomyL2Collaborator, allowlist: []string{"exec"}, blocklist: []string{"exec"}}
	c := New(reg, auto)

	cls := c.Classify("exec", map[string]any{}, "/proj")
	if !cls.RequiresApproval || cls.RiskLevel != models.RiskCritical {
		t.Fatalf("expected blocklist to win as critical+approval, got %+v", cls)
	}
}

func TestAllowlistGrantsSafe(t *testing.T) {
	reg := newRegistryWithTool(&fakeTool{name: "web_search", destructive: false, category: "search"})
	auto := &fakeAutonomy{level: models.AutonomyL1Assistant, allowlist: []string{"web_search"}}
	c := New(reg, auto)

	cls := c.Classify("web_search", map[string]any{}, "/proj")
	if cls.RequiresApproval || cls.RiskLevel != models.RiskSafe {
		t.Fatalf("expected allowlisted tool to be safe+no approval, got %+v", cls)
	}
}

func TestAutonomyThresholdTableAppliesWhenNoRuleMatches(t *testing.T) {
	reg := newRegistryWithTool(&fakeTool{name: "file_write", destructive: true, category: "filesystem"})
	auto := &fakeAutonomy{level: models.AutonomyL3Trusted}
	c := New(reg, auto)

	cls := c.Classify("file_write", map[string]any{"path": "file.txt"}, "/proj")
	if cls.RiskLevel != models.RiskModerate {
		t.Fatalf("expected in-project write to be moderate, got %s", cls.RiskLevel)
	}
	if cls.RequiresApproval {
		t.Fatal("expected L3 to auto-execute moderate risk")
	}
}

// TestWriteOutsideProjectIsDestructive mirrors spec scenario 1: a write to
// /tmp/out.txt at autonomy L3 must classify destructive and require
// approval, regardless of /tmp being a common scratch location — there is
// no privileged exception for any path outside the project directory.
func TestWriteOutsideProjectIsDestructive(t *testing.T) {
	reg := newRegistryWithTool(&fakeTool{name: "file_write", destructive: true, category: "filesystem"})
	auto := &fakeAutonomy{level: models.AutonomyL3Trusted}
	c := New(reg, auto)

	cls := c.Classify("file_write", map[string]any{"path": "/tmp/out.txt"}, "/proj")
	if cls.RiskLevel != models.RiskDestructive {
		t.Fatalf("expected out-of-project write to be destructive, got %s", cls.RiskLevel)
	}
	if !cls.RequiresApproval {
		t.Fatal("expected L3 to require approval for destructive risk")
	}
}

func TestDestructiveExecWithNetworkIsCritical(t *testing.T) {
	reg := newRegistryWithTool(&fakeTool{name: "code_exec", destructive: true, category: "exec"})
	auto := &fakeAutonomy{level: models.AutonomyL4Expert}
	c := New(reg, auto)

	cls := c.Classify("code_exec", map[string]any{"network": true}, "/proj")
	if cls.RiskLevel != models.RiskCritical {
		t.Fatalf("expected network-enabled exec to be critical, got %s", cls.RiskLevel)
	}
	if !cls.RequiresApproval {
		t.Fatal("expected L4 to still require approval for critical risk")
	}
}
