package models

// ItemFailure records one provider call that failed for a single item.
// Resource names the account, rule group/rule, or container concerned.
type ItemFailure struct {
	Operation string `json:"operation"`
	AccountID string `json:"account_id,omitempty"`
	Resource  string `json:"resource"`
	Error     string `json:"error"`
}

// RemediationResult is the running tally of one remediation run.
// Counts only ever include confirmed successes.
type RemediationResult struct {
	RunID             string        `json:"run_id"`
	TrustedRanges     []string      `json:"trusted_ranges"`
	TrustedRangesUsed int           `json:"trusted_ranges_used"`
	RuleFindings      int           `json:"rule_findings"`
	StorageFindings   int           `json:"storage_findings"`
	RulesFixed        int           `json:"rules_fixed"`
	TokensIssued      int           `json:"tokens_issued"`
	ContainersSecured int           `json:"containers_secured"`
	RuleAction        string        `json:"rule_action,omitempty"`
	StorageAction     string        `json:"storage_action,omitempty"`
	Failures          []ItemFailure `json:"failures,omitempty"`
	Notes             []string      `json:"notes,omitempty"`
}

// RecordFailure appends a failure to the tally.
func (r *RemediationResult) RecordFailure(f ItemFailure) {
	r.Failures = append(r.Failures, f)
}

// Note appends a free-form operator-visible note (skips, cancellations).
func (r *RemediationResult) Note(msg string) {
	r.Notes = append(r.Notes, msg)
}
