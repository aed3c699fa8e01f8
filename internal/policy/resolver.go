package policy

import (
	"strings"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
)

// ApplyPolicy filters and re-grades findings for one domain. Order is kept.
//
// A disabled domain drops everything. A rule with enabled=false is dropped.
// A rule severity override is applied before the domain min_severity filter.
func ApplyPolicy(findings []models.Finding, domain string, cfg *PolicyConfig) []models.Finding {
	if cfg == nil {
		return findings
	}

	d, hasDomain := cfg.Domains[domain]
	if hasDomain && !d.Enabled {
		return []models.Finding{}
	}
	minRank := 0
	if hasDomain && d.MinSeverity != "" {
		minRank = severityRank[models.Severity(strings.ToUpper(d.MinSeverity))]
	}

	var result []models.Finding
	for _, f := range findings {
		ruleCfg, hasRule := cfg.Rules[f.RuleID]

		if hasRule && ruleCfg.Enabled != nil && !*ruleCfg.Enabled {
			continue
		}

		if hasRule && ruleCfg.Severity != "" {
			f.Severity = models.Severity(strings.ToUpper(ruleCfg.Severity))
		}

		if minRank > 0 && severityRank[f.Severity] < minRank {
			continue
		}

		result = append(result, f)
	}

	return result
}

// ApplyByDomain applies the policy to a mixed finding list using each
// finding's own Domain. Order is kept.
func ApplyByDomain(findings []models.Finding, cfg *PolicyConfig) []models.Finding {
	if cfg == nil {
		return findings
	}
	out := make([]models.Finding, 0, len(findings))
	for _, f := range findings {
		out = append(out, ApplyPolicy([]models.Finding{f}, f.Domain, cfg)...)
	}
	return out
}
