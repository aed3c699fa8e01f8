package remediation

import (
	"net/netip"
	"regexp"
	"strings"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
)

// cidrPattern is the syntactic shape of a single IPv4 CIDR source.
var cidrPattern = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}/\d{1,2}$`)

// DefaultGenericSources are source values never treated as a trusted range.
var DefaultGenericSources = []string{"*", "0.0.0.0/0", "Internet", "VirtualNetwork"}

// InferTrustedRanges collects the single-CIDR sources of every inbound allow
// rule, excluding DefaultGenericSources. The result is deduplicated and in
// discovery order. Multi-entry source lists never contribute.
func InferTrustedRanges(rules []models.NetworkRule) []string {
	return InferTrustedRangesWith(rules, DefaultGenericSources)
}

// InferTrustedRangesWith is InferTrustedRanges with a caller-supplied
// generic-source exclusion set.
func InferTrustedRangesWith(rules []models.NetworkRule, generic []string) []string {
	excluded := make(map[string]struct{}, len(generic))
	for _, g := range generic {
		excluded[strings.ToLower(g)] = struct{}{}
	}

	seen := make(map[string]struct{})
	out := []string{}
	for _, r := range rules {
		if !r.IsInboundAllow() {
			continue
		}
		src, ok := r.SingleSource()
		if !ok {
			continue
		}
		if _, skip := excluded[strings.ToLower(src)]; skip {
			continue
		}
		if !cidrPattern.MatchString(src) {
			continue
		}
		if _, dup := seen[src]; dup {
			continue
		}
		seen[src] = struct{}{}
		out = append(out, src)
	}
	return out
}

// ParseOperatorRanges parses a line of operator-entered CIDRs separated by
// commas or whitespace. An empty line yields an empty set. Any malformed
// entry fails the whole line with a *ValidationError.
func ParseOperatorRanges(line string) ([]string, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == ';'
	})
	seen := make(map[string]struct{}, len(fields))
	out := []string{}
	for _, f := range fields {
		if !cidrPattern.MatchString(f) {
			return nil, &ValidationError{Input: f, Reason: "expected an IPv4 CIDR such as 203.0.113.4/32"}
		}
		if _, err := netip.ParsePrefix(f); err != nil {
			return nil, &ValidationError{Input: f, Reason: err.Error()}
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out, nil
}
