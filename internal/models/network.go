package models

import (
	"strconv"
	"strings"
)

// Direction is the traffic direction a network rule applies to.
type Direction string

const (
	DirectionInbound  Direction = "Inbound"
	DirectionOutbound Direction = "Outbound"
)

// Access is the effect of a network rule when it matches.
type Access string

const (
	AccessAllow Access = "Allow"
	AccessDeny  Access = "Deny"
)

// WildcardPort is the port specifier meaning "every port".
const WildcardPort = "*"

// AccountRef identifies one scannable account: an Azure subscription, an AWS
// account reached through a profile, or a Kubernetes context.
type AccountRef struct {
	ID       string `json:"id"       yaml:"id"`
	Name     string `json:"name"     yaml:"name"`
	Provider string `json:"provider" yaml:"provider"`
}

// NetworkRuleGroup is a provider-side container of network rules (an Azure
// NSG, an EC2 security group, a Kubernetes NetworkPolicy). It is read whole,
// mutated in memory, and written back whole by the provider.
type NetworkRuleGroup struct {
	ID            string        `json:"id"             yaml:"id"`
	Name          string        `json:"name"           yaml:"name"`
	AccountID     string        `json:"account_id"     yaml:"account_id"`
	ResourceGroup string        `json:"resource_group" yaml:"resource_group"`
	Location      string        `json:"location"       yaml:"location"`
	Rules         []NetworkRule `json:"rules"          yaml:"rules"`
}

// Clone returns a deep copy of g so callers can mutate rules without
// touching the snapshot the copy was taken from.
func (g NetworkRuleGroup) Clone() NetworkRuleGroup {
	out := g
	out.Rules = make([]NetworkRule, len(g.Rules))
	for i, r := range g.Rules {
		out.Rules[i] = r.Clone()
	}
	return out
}

// RuleIndex returns the position of the rule named name, or -1.
func (g NetworkRuleGroup) RuleIndex(name string) int {
	for i := range g.Rules {
		if g.Rules[i].Name == name {
			return i
		}
	}
	return -1
}

// NetworkRule is one access-control entry inside a NetworkRuleGroup.
//
// Sources holds the source specifier: a wildcard ("*"), a well-known tag
// ("Internet", "VirtualNetwork"), or one or more CIDRs. Ports holds the
// destination port specifier entries: "22", "1000-2000" or "*".
type NetworkRule struct {
	GroupName     string    `json:"group_name"     yaml:"group_name"`
	Name          string    `json:"name"           yaml:"name"`
	Direction     Direction `json:"direction"      yaml:"direction"`
	Access        Access    `json:"access"         yaml:"access"`
	Sources       []string  `json:"sources"        yaml:"sources"`
	Ports         []string  `json:"ports"          yaml:"ports"`
	Protocol      string    `json:"protocol"       yaml:"protocol"`
	Priority      int       `json:"priority"       yaml:"priority"`
	AccountID     string    `json:"account_id"     yaml:"account_id"`
	ResourceGroup string    `json:"resource_group" yaml:"resource_group"`
}

// Clone returns a copy of r with independent slices.
func (r NetworkRule) Clone() NetworkRule {
	out := r
	out.Sources = append([]string(nil), r.Sources...)
	out.Ports = append([]string(nil), r.Ports...)
	return out
}

// IsInboundAllow reports whether r permits incoming traffic.
func (r NetworkRule) IsInboundAllow() bool {
	return strings.EqualFold(string(r.Direction), string(DirectionInbound)) &&
		strings.EqualFold(string(r.Access), string(AccessAllow))
}

// SingleSource returns the source when the specifier has exactly one entry.
func (r NetworkRule) SingleSource() (string, bool) {
	if len(r.Sources) != 1 {
		return "", false
	}
	return strings.TrimSpace(r.Sources[0]), true
}

// PortRange is an inclusive destination port range parsed from a port entry.
type PortRange struct {
	From int
	To   int
	Any  bool
}

// Contains reports whether port falls inside the range.
func (p PortRange) Contains(port int) bool {
	if p.Any {
		return true
	}
	return port >= p.From && port <= p.To
}

// ParsePortEntry parses "22", "1000-2000" or "*". The second return value is
// false for entries that cannot be parsed; those never match anything.
func ParsePortEntry(entry string) (PortRange, bool) {
	entry = strings.TrimSpace(entry)
	if entry == WildcardPort || strings.EqualFold(entry, "any") {
		return PortRange{Any: true}, true
	}
	if from, to, ok := strings.Cut(entry, "-"); ok {
		lo, err1 := strconv.Atoi(strings.TrimSpace(from))
		hi, err2 := strconv.Atoi(strings.TrimSpace(to))
		if err1 != nil || err2 != nil || lo > hi {
			return PortRange{}, false
		}
		if lo == 0 && hi == 65535 {
			return PortRange{Any: true}, true
		}
		return PortRange{From: lo, To: hi}, true
	}
	p, err := strconv.Atoi(entry)
	if err != nil {
		return PortRange{}, false
	}
	return PortRange{From: p, To: p}, true
}
