package policy

import (
	"strings"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
)

// ShouldFail reports whether any finding in findings has a severity at or above
// the configured fail_on_severity threshold for the given domain.
//
// It returns false when cfg is nil, when the domain has no enforcement block
// or an unrecognised threshold, or when findings is empty. Findings from other
// domains are ignored.
func ShouldFail(domain string, findings []models.Finding, cfg *PolicyConfig) bool {
	if cfg == nil {
		return false
	}
	enfCfg, ok := cfg.Enforcement[domain]
	if !ok || enfCfg.FailOnSeverity == "" {
		return false
	}
	threshold, ok := severityRank[models.Severity(strings.ToUpper(enfCfg.FailOnSeverity))]
	if !ok {
		return false
	}
	for _, f := range findings {
		if f.Domain != "" && f.Domain != domain {
			continue
		}
		if r, ok := severityRank[f.Severity]; ok && r >= threshold {
			return true
		}
	}
	return false
}

// ShouldFailAny reports whether ShouldFail holds for any known domain.
func ShouldFailAny(findings []models.Finding, cfg *PolicyConfig) bool {
	for _, d := range Domains() {
		if ShouldFail(d, findings, cfg) {
			return true
		}
	}
	return false
}
