package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
)

// NetworkOpenPortRule flags inbound allow rules whose source is open to
// anyone ("*", "0.0.0.0/0", "Internet") and whose destination ports are a
// wildcard or include a sensitive port.
//
// A rule produces at most one finding, tagged with the first sensitive port
// encountered while walking its port entries in order. Multi-port rules are
// not split into one finding per port.
type NetworkOpenPortRule struct{}

func (r NetworkOpenPortRule) ID() string     { return "NETWORK_OPEN_SENSITIVE_PORT" }
func (r NetworkOpenPortRule) Name() string   { return "Inbound Rule Exposes Sensitive Port To Internet" }
func (r NetworkOpenPortRule) Domain() string { return models.DomainNetwork }

// Evaluate walks groups and rules in inventory order and returns one finding
// per exposed rule. A wildcard port is CRITICAL; a specific port is HIGH.
func (r NetworkOpenPortRule) Evaluate(ctx RuleContext) []models.Finding {
	if ctx.Inventory == nil {
		return nil
	}
	ports := ctx.sensitivePorts()
	open := ctx.openSources()

	var findings []models.Finding
	for gi := range ctx.Inventory.RuleGroups {
		group := &ctx.Inventory.RuleGroups[gi]
		for ri := range group.Rules {
			rule := &group.Rules[ri]
			port, ok := ClassifyRule(*rule, ports, open)
			if !ok {
				continue
			}
			sev := models.SeverityHigh
			if port == models.WildcardPort {
				sev = models.SeverityCritical
			}
			source := strings.Join(rule.Sources, ",")
			findings = append(findings, models.Finding{
				ID:            fmt.Sprintf("%s-%s/%s/%s", r.ID(), group.AccountID, group.ID, rule.Name),
				RuleID:        r.ID(),
				ResourceID:    group.Name + "/" + rule.Name,
				ResourceType:  models.ResourceNetworkRule,
				AccountID:     group.AccountID,
				ResourceGroup: group.ResourceGroup,
				Severity:      sev,
				Port:          port,
				Explanation: fmt.Sprintf("Rule %s in %s allows inbound port %s from %s.",
					rule.Name, group.Name, port, source),
				Recommendation: "Restrict the source to trusted ingress ranges or delete the rule.",
				DetectedAt:     time.Now().UTC(),
				Metadata: map[string]any{
					"group_id": group.ID,
					"source":   source,
					"ports":    rule.Ports,
				},
				Rule:  rule,
				Group: group,
			})
		}
	}
	return findings
}

// ClassifyRule reports whether rule is an exposure finding and, if so, the
// triggering port: "*" for a wildcard entry, otherwise the first sensitive
// port (in sensitive-port order) found in the first matching port entry.
func ClassifyRule(rule models.NetworkRule, sensitive []int, openSources []string) (string, bool) {
	if !rule.IsInboundAllow() {
		return "", false
	}
	if !IsOpenSource(rule.Sources, openSources) {
		return "", false
	}
	for _, entry := range rule.Ports {
		pr, ok := models.ParsePortEntry(entry)
		if !ok {
			continue
		}
		if pr.Any {
			return models.WildcardPort, true
		}
		for _, p := range sensitive {
			if pr.Contains(p) {
				return strconv.Itoa(p), true
			}
		}
	}
	return "", false
}

// IsOpenSource reports whether any entry of the source specifier is one of
// the open sources. Tags compare case-insensitively.
func IsOpenSource(sources []string, openSources []string) bool {
	for _, s := range sources {
		s = strings.TrimSpace(s)
		for _, o := range openSources {
			if strings.EqualFold(s, o) {
				return true
			}
		}
	}
	return false
}
