package policy

import "github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"

var severityRank = map[models.Severity]int{
	models.SeverityCritical: 5,
	models.SeverityHigh:     4,
	models.SeverityMedium:   3,
	models.SeverityLow:      2,
	models.SeverityInfo:     1,
}

// SeverityRank returns the numeric rank of s (CRITICAL=5 … INFO=1), or 0 for
// an unknown severity.
func SeverityRank(s models.Severity) int {
	return severityRank[s]
}
