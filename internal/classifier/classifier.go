// Package classifier maps (tool, parameters, project) to a risk tier and
// an approval requirement, per a per-project allow/block rule set and the
// five-tier autonomy threshold table.
package classifier

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/arclight-ai/sentinel/internal/tool"
	"github.com/arclight-ai/sentinel/pkg/models"
)

// AutonomyLookup resolves the effective autonomy level and rule lists for
// a project. Implemented by internal/autonomy's Service.
type AutonomyLookup interface {
	Level(projectPath string) models.AutonomyLevel
	IsYOLOActive(projectPath string) bool
	Allowlist(projectPath string) []string
	Blocklist(projectPath string) []string
}

// Classifier implements the spec's five-step decision order: L5 bypass,
// blocklist, allowlist, base risk from tool hints, then the autonomy
// threshold table.
type Classifier struct {
	registry *tool.Registry
	autonomy AutonomyLookup
}

// New returns a Classifier backed by registry (for tool hints) and
// autonomy (for per-project level/rules).
func New(registry *tool.Registry, autonomy AutonomyLookup) *Classifier {
	return &Classifier{registry: registry, autonomy: autonomy}
}

// Classify returns the ActionClassification for one invocation attempt.
func (c *Classifier) Classify(toolName string, params map[string]any, projectPath string) models.ActionClassification {
	level := c.autonomy.Level(projectPath)

	// Step 1: L5 is a true bypass, evaluated before any rule.
	if level == models.AutonomyL5YOLO {
		return models.ActionClassification{
			ToolName:         toolName,
			Parameters:       params,
			RiskLevel:        c.baseRisk(toolName, params, projectPath),
			Reason:           "autonomy level L5 bypasses approval gates",
			RequiresApproval: false,
		}
	}

	// Step 2: blocklist.
	if matchesAny(c.autonomy.Blocklist(projectPath), toolName, params) {
		return models.ActionClassification{
			ToolName:         toolName,
			Parameters:       params,
			RiskLevel:        models.RiskCritical,
			Reason:           "matched project blocklist",
			RequiresApproval: true,
		}
	}

	// Step 3: allowlist.
	if matchesAny(c.autonomy.Allowlist(projectPath), toolName, params) {
		return models.ActionClassification{
			ToolName:         toolName,
			Parameters:       params,
			RiskLevel:        models.RiskSafe,
			Reason:           "matched project allowlist",
			RequiresApproval: false,
		}
	}

	// Step 4: base risk from tool hints and parameter shape.
	risk := c.baseRisk(toolName, params, projectPath)

	// Step 5: autonomy threshold table.
	auto := level.AutoExecuteTiers()[risk]
	return models.ActionClassification{
		ToolName:         toolName,
		Parameters:       params,
		RiskLevel:        risk,
		Reason:           fmt.Sprintf("base risk %s under autonomy %s", risk, level),
		RequiresApproval: !auto,
	}
}

// baseRisk derives a risk tier from the tool's own IsDestructive/category
// hints and the shape of its parameters, per spec §4.6 step 4.
func (c *Classifier) baseRisk(toolName string, params map[string]any, projectPath string) models.RiskLevel {
	t, ok := c.registry.Get(toolName)
	if !ok {
		return models.RiskModerate // unknown tool: conservative default
	}
	if !t.IsDestructive() {
		return models.RiskSafe
	}

	switch t.Category() {
	case "exec":
		if networkEnabled(params) {
			return models.RiskCritical
		}
		return models.RiskDestructive
	case "filesystem":
		if pathOutsideProject(params, projectPath) {
			return models.RiskDestructive
		}
		return models.RiskModerate
	default:
		return models.RiskDestructive
	}
}

func networkEnabled(params map[string]any) bool {
	if v, ok := params["network"].(bool); ok {
		return v
	}
	return false
}

// pathOutsideProject reports whether params["path"], resolved against
// projectPath, falls outside the project directory. Any write outside
// the project tree is destructive regardless of which absolute location
// it names — there is no privileged exception for /tmp or any other path.
func pathOutsideProject(params map[string]any, projectPath string) bool {
	path, _ := params["path"].(string)
	if path == "" {
		return false
	}

	root := projectPath
	if root == "" {
		root = "."
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return true
	}

	var target string
	if filepath.IsAbs(path) {
		target = filepath.Clean(path)
	} else {
		target = filepath.Join(rootAbs, path)
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return true
	}

	rel, err := filepath.Rel(rootAbs, targetAbs)
	if err != nil {
		return true
	}
	return rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

// matchesAny reports whether toolName or any parameter string substring
// matches any pattern in patterns. Supports exact match, "*" wildcard,
// and "prefix*" glob, matching the teacher's matchesPattern contract.
func matchesAny(patterns []string, toolName string, params map[string]any) bool {
	for _, p := range patterns {
		if matchesPattern(p, toolName) {
			return true
		}
	}
	for _, v := range params {
		s, ok := v.(string)
		if !ok {
			continue
		}
		for _, p := range patterns {
			if p != "" && strings.Contains(s, p) {
				return true
			}
		}
	}
	return false
}

func matchesPattern(pattern, toolName string) bool {
	if pattern == "" {
		return false
	}
	if pattern == "*" || pattern == toolName {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(toolName, strings.TrimSuffix(pattern, "*"))
	}
	return false
}
