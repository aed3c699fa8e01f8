package models

import "time"

// Severity represents the impact level of a finding.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// ResourceType identifies the kind of cloud resource a finding refers to.
type ResourceType string

const (
	ResourceNetworkRule      ResourceType = "NETWORK_RULE"
	ResourceStorageContainer ResourceType = "STORAGE_CONTAINER"
)

// Domain names used to stamp findings and to key policy configuration.
const (
	DomainNetwork = "network"
	DomainStorage = "storage"
)

// Finding is a single over-permissive rule or publicly readable container.
// It is the atomic output unit of the rule engine.
//
// Rule and Group are set for network findings; Container is set for storage
// findings. They point at the exact snapshot the finding was classified
// from so remediation acts on that object and nothing else.
type Finding struct {
	ID             string         `json:"id"`
	RuleID         string         `json:"rule_id"`
	ResourceID     string         `json:"resource_id"`
	ResourceType   ResourceType   `json:"resource_type"`
	AccountID      string         `json:"account_id"`
	ResourceGroup  string         `json:"resource_group,omitempty"`
	Domain         string         `json:"domain"`
	Severity       Severity       `json:"severity"`
	Port           string         `json:"port,omitempty"`
	Explanation    string         `json:"explanation"`
	Recommendation string         `json:"recommendation"`
	DetectedAt     time.Time      `json:"detected_at"`
	Metadata       map[string]any `json:"metadata,omitempty"`

	Rule      *NetworkRule      `json:"rule,omitempty"`
	Group     *NetworkRuleGroup `json:"-"`
	Container *StorageContainer `json:"container,omitempty"`
}

// ScanSummary aggregates counts across all findings of a scan.
type ScanSummary struct {
	TotalFindings    int `json:"total_findings"`
	NetworkFindings  int `json:"network_findings"`
	StorageFindings  int `json:"storage_findings"`
	CriticalFindings int `json:"critical_findings"`
	HighFindings     int `json:"high_findings"`
	MediumFindings   int `json:"medium_findings"`
	LowFindings      int `json:"low_findings"`
	RuleGroups       int `json:"rule_groups"`
	Containers       int `json:"containers"`
}

// ScanReport is the top-level output of one scan.
// Findings keep discovery order: accounts in listing order, then groups and
// rules in provider order.
type ScanReport struct {
	ReportID      string       `json:"report_id"`
	GeneratedAt   time.Time    `json:"generated_at"`
	Provider      string       `json:"provider"`
	Identity      string       `json:"identity"`
	Accounts      []AccountRef `json:"accounts"`
	TrustedRanges []string     `json:"trusted_ranges"`
	Summary       ScanSummary  `json:"summary"`
	Findings      []Finding    `json:"findings"`
	// Errors lists inventory calls that failed during the scan. A failed
	// call never aborts the scan; its account or resource is simply missing.
	Errors []ItemFailure `json:"errors,omitempty"`
}
