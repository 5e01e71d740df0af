package models

// RiskLevel is the classifier's output risk tier.
type RiskLevel string

const (
	RiskSafe        RiskLevel = "safe"
	RiskModerate    RiskLevel = "moderate"
	RiskDestructive RiskLevel = "destructive"
	RiskCritical    RiskLevel = "critical"
)

// riskOrder gives RiskLevel a total order for threshold comparisons.
var riskOrder = map[RiskLevel]int{
	RiskSafe:        0,
	RiskModerate:    1,
	RiskDestructive: 2,
	RiskCritical:    3,
}

// AtMost reports whether r is no riskier than other.
func (r RiskLevel) AtMost(other RiskLevel) bool {
	return riskOrder[r] <= riskOrder[other]
}

// ActionClassification is the classifier's pure-value verdict for one
// (tool, parameters) invocation.
type ActionClassification struct {
	ToolName         string         `json:"tool_name"`
	Parameters       map[string]any `json:"parameters"`
	RiskLevel        RiskLevel      `json:"risk_level"`
	Reason           string         `json:"reason"`
	RequiresApproval bool           `json:"requires_approval"`
}

// AutonomyLevel is one of the five autonomy tiers, L1 (most conservative)
// through L5 (YOLO, a true bypass of approval gates).
type AutonomyLevel string

const (
	AutonomyL1Assistant   AutonomyLevel = "L1"
	AutonomyL2Collaborator AutonomyLevel = "L2"
	AutonomyL3Trusted     AutonomyLevel = "L3"
	AutonomyL4Expert      AutonomyLevel = "L4"
	AutonomyL5YOLO        AutonomyLevel = "L5"
)

// AutoExecuteTiers returns the set of risk tiers that auto-execute
// (i.e. do not require approval) at level per the spec's threshold table.
func (level AutonomyLevel) AutoExecuteTiers() map[RiskLevel]bool {
	switch level {
	case AutonomyL1Assistant:
		return map[RiskLevel]bool{}
	case AutonomyL2Collaborator:
		return map[RiskLevel]bool{RiskSafe: true}
	case AutonomyL3Trusted:
		return map[RiskLevel]bool{RiskSafe: true, RiskModerate: true}
	case AutonomyL4Expert:
		return map[RiskLevel]bool{RiskSafe: true, RiskModerate: true, RiskDestructive: true}
	case AutonomyL5YOLO:
		return map[RiskLevel]bool{RiskSafe: true, RiskModerate: true, RiskDestructive: true, RiskCritical: true}
	default:
		return map[RiskLevel]bool{}
	}
}

// AutonomySettings is the per-project autonomy configuration. L5 is never
// persisted — callers track it via an in-memory per-project set instead.
type AutonomySettings struct {
	ProjectPath string        `json:"project_path"`
	Level       AutonomyLevel `json:"level"`
	Allowlist   []string      `json:"allowlist"`
	Blocklist   []string      `json:"blocklist"`
}
