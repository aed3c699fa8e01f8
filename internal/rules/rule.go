package rules

import (
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/policy"
)

// DefaultSensitivePorts are remote-administration and database ports:
// SSH, RDP, SQL Server, MySQL, PostgreSQL. Order is significant: it is the
// order ports are tried when tagging a finding.
var DefaultSensitivePorts = []int{22, 3389, 1433, 3306, 5432}

// DefaultOpenSources are the source specifiers that mean "anyone".
var DefaultOpenSources = []string{"*", "0.0.0.0/0", "Internet"}

// RuleContext carries the inventory snapshot for one scan.
// It is the sole input to Rule.Evaluate and must contain everything a rule
// needs; rules must never make network calls or read external state.
type RuleContext struct {
	// Inventory is the snapshot taken by the engine. Rules may keep pointers
	// into it on findings but must never modify it.
	Inventory *models.Inventory

	// SensitivePorts overrides DefaultSensitivePorts when non-empty.
	SensitivePorts []int

	// OpenSources overrides DefaultOpenSources when non-empty.
	OpenSources []string

	// Policy holds the active PolicyConfig. May be nil when no policy file
	// is loaded; rules must treat nil as "use defaults".
	Policy *policy.PolicyConfig
}

func (c RuleContext) sensitivePorts() []int {
	if len(c.SensitivePorts) > 0 {
		return c.SensitivePorts
	}
	return DefaultSensitivePorts
}

func (c RuleContext) openSources() []string {
	if len(c.OpenSources) > 0 {
		return c.OpenSources
	}
	return DefaultOpenSources
}

// Rule is a single deterministic exposure-detection rule.
// Rules must be stateless and never call a provider.
type Rule interface {
	// ID returns the unique, stable identifier for this rule.
	ID() string

	// Name returns a short human-readable rule name.
	Name() string

	// Domain returns the policy domain the rule belongs to.
	Domain() string

	// Evaluate inspects the provided context and returns zero or more
	// findings in discovery order. An empty slice means no exposure.
	Evaluate(ctx RuleContext) []models.Finding
}

// RuleRegistry manages the set of active rules and drives evaluation.
type RuleRegistry interface {
	// Register adds a rule to the registry. Panics on duplicate ID.
	Register(rule Rule)

	// All returns all registered rules in registration order.
	All() []Rule

	// EvaluateAll runs every registered rule against ctx and merges results.
	EvaluateAll(ctx RuleContext) []models.Finding
}
