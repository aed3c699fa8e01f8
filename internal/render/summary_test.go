package render

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
)

func sampleResult() *models.RemediationResult {
	return &models.RemediationResult{
		RunID:             "run-1",
		TrustedRanges:     []string{"198.51.100.0/24", "203.0.113.0/24"},
		TrustedRangesUsed: 2,
		RuleFindings:      3,
		StorageFindings:   2,
		RulesFixed:        2,
		TokensIssued:      2,
		RuleAction:        "update",
		StorageAction:     "issue_tokens",
		Failures: []models.ItemFailure{
			{Operation: "update_rule_group", AccountID: "sub-prod", Resource: "nsg-prod/allow-rdp", Error: "boom"},
		},
		Notes: []string{"secure confirmation declined"},
	}
}

func TestRenderRemediationSummary(t *testing.T) {
	var buf bytes.Buffer
	RenderRemediationSummary(&buf, sampleResult())
	out := buf.String()

	for _, want := range []string{
		"REMEDIATION SUMMARY (run run-1)",
		"Trusted ranges (2): 198.51.100.0/24, 203.0.113.0/24",
		"action: update",
		"rules fixed:      2",
		"tokens issued:    2",
		"containers secured: 0",
		"Failures (1):",
		"update_rule_group sub-prod/nsg-prod/allow-rdp: boom",
		"Note: secure confirmation declined",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRenderRemediationSummary_EmptyRanges(t *testing.T) {
	var buf bytes.Buffer
	RenderRemediationSummary(&buf, &models.RemediationResult{RunID: "r"})
	out := buf.String()
	if !strings.Contains(out, "Trusted ranges (0): (none)") {
		t.Errorf("expected (none) for empty ranges:\n%s", out)
	}
	if strings.Contains(out, "Failures") {
		t.Errorf("no failures section expected:\n%s", out)
	}
	if !strings.Contains(out, "action: -") {
		t.Errorf("missing action must render as dash:\n%s", out)
	}
}

func TestRenderScanSummary(t *testing.T) {
	report := &models.ScanReport{
		Provider:      "azure",
		Identity:      "tenant Contoso",
		Accounts:      []models.AccountRef{{ID: "sub-prod"}},
		TrustedRanges: []string{"198.51.100.0/24"},
		Summary: models.ScanSummary{
			TotalFindings: 2, NetworkFindings: 1, StorageFindings: 1,
			HighFindings: 2, RuleGroups: 1, Containers: 2,
		},
		Errors: []models.ItemFailure{{Operation: "list_containers", Resource: "saprod", Error: "denied"}},
	}
	var buf bytes.Buffer
	RenderScanSummary(&buf, report)
	out := buf.String()
	for _, want := range []string{
		"SCAN azure (tenant Contoso)",
		"Accounts: 1  Rule groups: 1  Containers: 2",
		"Findings: 2 (network 1, storage 1)",
		"HIGH 2",
		"Trusted ranges: 198.51.100.0/24",
		"Inventory errors (1):",
		"list_containers saprod: denied",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRenderScanSummary_NilIsNoop(t *testing.T) {
	var buf bytes.Buffer
	RenderScanSummary(&buf, nil)
	RenderRemediationSummary(&buf, nil)
	if buf.Len() != 0 {
		t.Errorf("nil inputs must write nothing, got %q", buf.String())
	}
}

func TestWriteJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "summary.json")
	if err := WriteJSONFile(path, sampleResult()); err != nil {
		t.Fatalf("WriteJSONFile: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}
	data, _ := os.ReadFile(path)
	var got models.RemediationResult
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("summary is not valid JSON: %v", err)
	}
	if got.RulesFixed != 2 || got.RunID != "run-1" || len(got.Failures) != 1 {
		t.Errorf("round trip lost data: %+v", got)
	}
}
