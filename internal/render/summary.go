// Package render writes end-of-run summaries for the ea CLI.
// It only formats what the engine and remediation flow already computed.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
)

// RenderScanSummary writes the scan header and severity counts to w.
//
// Example output:
//
//	SCAN azure (tenant Contoso)
//	Accounts: 2  Rule groups: 5  Containers: 12
//	Findings: 3 (network 2, storage 1)
//	  CRITICAL 1  HIGH 2  MEDIUM 0  LOW 0
//	Trusted ranges: 198.51.100.0/24
func RenderScanSummary(w io.Writer, report *models.ScanReport) {
	if report == nil {
		return
	}
	s := report.Summary
	fmt.Fprintf(w, "SCAN %s (%s)\n", report.Provider, report.Identity)
	fmt.Fprintf(w, "Accounts: %d  Rule groups: %d  Containers: %d\n",
		len(report.Accounts), s.RuleGroups, s.Containers)
	fmt.Fprintf(w, "Findings: %d (network %d, storage %d)\n",
		s.TotalFindings, s.NetworkFindings, s.StorageFindings)
	fmt.Fprintf(w, "  CRITICAL %d  HIGH %d  MEDIUM %d  LOW %d\n",
		s.CriticalFindings, s.HighFindings, s.MediumFindings, s.LowFindings)
	fmt.Fprintf(w, "Trusted ranges: %s\n", joinOrNone(report.TrustedRanges))
	if len(report.Errors) > 0 {
		fmt.Fprintf(w, "Inventory errors (%d):\n", len(report.Errors))
		renderFailures(w, report.Errors)
	}
}

// RenderRemediationSummary writes the final tally of a remediation run.
// Counts are confirmed successes only; failures are listed underneath.
func RenderRemediationSummary(w io.Writer, res *models.RemediationResult) {
	if res == nil {
		return
	}
	fmt.Fprintf(w, "REMEDIATION SUMMARY (run %s)\n", res.RunID)
	fmt.Fprintf(w, "Trusted ranges (%d): %s\n", res.TrustedRangesUsed, joinOrNone(res.TrustedRanges))
	fmt.Fprintf(w, "Rule findings:      %d  action: %s\n", res.RuleFindings, orDash(res.RuleAction))
	fmt.Fprintf(w, "  rules fixed:      %d\n", res.RulesFixed)
	fmt.Fprintf(w, "Storage findings:   %d  action: %s\n", res.StorageFindings, orDash(res.StorageAction))
	fmt.Fprintf(w, "  tokens issued:    %d\n", res.TokensIssued)
	fmt.Fprintf(w, "  containers secured: %d\n", res.ContainersSecured)

	if len(res.Failures) > 0 {
		fmt.Fprintf(w, "Failures (%d):\n", len(res.Failures))
		renderFailures(w, res.Failures)
	}
	for _, n := range res.Notes {
		fmt.Fprintf(w, "Note: %s\n", n)
	}
}

func renderFailures(w io.Writer, failures []models.ItemFailure) {
	for _, f := range failures {
		scope := f.Resource
		if f.AccountID != "" {
			scope = f.AccountID + "/" + f.Resource
		}
		fmt.Fprintf(w, "  - %s %s: %s\n", f.Operation, scope, f.Error)
	}
}

// WriteJSON writes v as indented JSON to w.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteJSONFile writes v as indented JSON to path, creating parent
// directories as needed. The file is readable only by its owner since
// summaries can list account and container names.
func WriteJSONFile(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create summary dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open summary file: %w", err)
	}
	if err := WriteJSON(f, v); err != nil {
		f.Close()
		return fmt.Errorf("write summary file: %w", err)
	}
	return f.Close()
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
