package policy

import (
	"testing"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
)

func enforce(domain, threshold string) *PolicyConfig {
	return &PolicyConfig{
		Version:     1,
		Enforcement: map[string]EnforcementConfig{domain: {FailOnSeverity: threshold}},
	}
}

func TestShouldFail(t *testing.T) {
	open22 := finding("ssh", portRule, models.DomainNetwork, models.SeverityCritical)
	open443 := finding("https", portRule, models.DomainNetwork, models.SeverityHigh)
	blob := finding("images", containerRule, models.DomainStorage, models.SeverityMedium)
	unstamped := models.Finding{ID: "x", Severity: models.SeverityHigh}

	cases := []struct {
		name     string
		domain   string
		findings []models.Finding
		cfg      *PolicyConfig
		want     bool
	}{
		{"nil policy", "network", []models.Finding{open22}, nil, false},
		{"no enforcement block", "network", []models.Finding{open22}, &PolicyConfig{Version: 1}, false},
		{"other domain configured", "network", []models.Finding{open22}, enforce("storage", "LOW"), false},
		{"empty threshold", "network", []models.Finding{open22}, enforce("network", ""), false},
		{"unknown threshold", "network", []models.Finding{open22}, enforce("network", "blocker"), false},
		{"no findings", "network", nil, enforce("network", "INFO"), false},
		{"equal severity trips", "network", []models.Finding{open443}, enforce("network", "HIGH"), true},
		{"higher severity trips", "network", []models.Finding{open22}, enforce("network", "high"), true},
		{"lower severity passes", "network", []models.Finding{open443}, enforce("network", "CRITICAL"), false},
		{"one match is enough", "network", []models.Finding{open443, open22}, enforce("network", "critical"), true},
		{"foreign-domain findings ignored", "network", []models.Finding{blob}, enforce("network", "LOW"), false},
		{"storage threshold", "storage", []models.Finding{blob, open22}, enforce("storage", "MEDIUM"), true},
		{"unstamped finding counts", "storage", []models.Finding{unstamped}, enforce("storage", "HIGH"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ShouldFail(tc.domain, tc.findings, tc.cfg); got != tc.want {
				t.Errorf("ShouldFail = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestShouldFailAny(t *testing.T) {
	cfg := &PolicyConfig{
		Version: 1,
		Enforcement: map[string]EnforcementConfig{
			"network": {FailOnSeverity: "CRITICAL"},
			"storage": {FailOnSeverity: "MEDIUM"},
		},
	}
	high := finding("https", portRule, models.DomainNetwork, models.SeverityHigh)
	blob := finding("images", containerRule, models.DomainStorage, models.SeverityMedium)

	if ShouldFailAny([]models.Finding{high}, cfg) {
		t.Error("HIGH network finding is below the CRITICAL network threshold")
	}
	if !ShouldFailAny([]models.Finding{high, blob}, cfg) {
		t.Error("MEDIUM storage finding meets the storage threshold")
	}
	if ShouldFailAny([]models.Finding{high, blob}, nil) {
		t.Error("nil policy never fails")
	}
}

func TestSeverityRank(t *testing.T) {
	if SeverityRank(models.SeverityCritical) <= SeverityRank(models.SeverityHigh) {
		t.Error("CRITICAL must outrank HIGH")
	}
	if SeverityRank(models.SeverityInfo) != 1 || SeverityRank("BOGUS") != 0 {
		t.Error("unexpected rank for INFO or unknown severity")
	}
}
