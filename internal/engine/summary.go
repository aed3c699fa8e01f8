package engine

import "github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"

// computeSummary aggregates finding counts per domain and severity.
func computeSummary(findings []models.Finding, inv *models.Inventory) models.ScanSummary {
	var s models.ScanSummary
	s.TotalFindings = len(findings)
	if inv != nil {
		s.RuleGroups = len(inv.RuleGroups)
		s.Containers = len(inv.Containers)
	}
	for _, f := range findings {
		switch f.Domain {
		case models.DomainNetwork:
			s.NetworkFindings++
		case models.DomainStorage:
			s.StorageFindings++
		}
		switch f.Severity {
		case models.SeverityCritical:
			s.CriticalFindings++
		case models.SeverityHigh:
			s.HighFindings++
		case models.SeverityMedium:
			s.MediumFindings++
		case models.SeverityLow:
			s.LowFindings++
		}
	}
	return s
}
