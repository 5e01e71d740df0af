package models

import "testing"

func TestAutoExecuteTiersThresholdTable(t *testing.T) {
	cases := []struct {
		level AutonomyLevel
		tier  RiskLevel
		auto  bool
	}{
		{AutonomyL1Assistant, RiskSafe, false},
		{AutonomyL2Collaborator, RiskSafe, true},
		{AutonomyL2Collaborator, RiskModerate, false},
		{AutonomyL3Trusted, RiskModerate, true},
		{AutonomyL3Trusted, RiskDestructive, false},
		{AutonomyL4Expert, RiskDestructive, true},
		{AutonomyL4Expert, RiskCritical, false},
		{AutonomyL5YOLO, RiskCritical, true},
	}
	for _, c := range cases {
		got := c.level.AutoExecuteTiers()[c.tier]
		if got != c.auto {
			t.Errorf("%s/%s: expected auto=%v, got %v", c.level, c.tier, c.auto, got)
		}
	}
}

func TestRiskLevelAtMost(t *testing.T) {
	if !RiskSafe.AtMost(RiskCritical) {
		t.Fatal("expected safe <= critical")
	}
	if RiskCritical.AtMost(RiskSafe) {
		t.Fatal("expected critical not <= safe")
	}
}
