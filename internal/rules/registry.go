package rules

import (
	"fmt"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
)

// DefaultRuleRegistry is an ordered, in-memory registry.
// Rules are evaluated in registration order, which fixes the order of
// findings in the report: every network finding precedes every storage
// finding when the network pack is registered first.
type DefaultRuleRegistry struct {
	rules []Rule
	index map[string]struct{}
}

// NewDefaultRuleRegistry returns an empty registry ready for rule registration.
func NewDefaultRuleRegistry() *DefaultRuleRegistry {
	return &DefaultRuleRegistry{
		index: make(map[string]struct{}),
	}
}

// NewRegistryWith registers every rule of every pack in order.
func NewRegistryWith(packs ...[]Rule) *DefaultRuleRegistry {
	r := NewDefaultRuleRegistry()
	for _, pack := range packs {
		for _, rule := range pack {
			r.Register(rule)
		}
	}
	return r
}

// Register adds rule to the registry. Panics if the same ID is registered twice.
func (r *DefaultRuleRegistry) Register(rule Rule) {
	if _, exists := r.index[rule.ID()]; exists {
		panic(fmt.Sprintf("duplicate rule ID: %q", rule.ID()))
	}
	r.rules = append(r.rules, rule)
	r.index[rule.ID()] = struct{}{}
}

// All returns all registered rules in registration order.
func (r *DefaultRuleRegistry) All() []Rule {
	return r.rules
}

// IDs returns the registered rule IDs in registration order.
func (r *DefaultRuleRegistry) IDs() []string {
	ids := make([]string, 0, len(r.rules))
	for _, rule := range r.rules {
		ids = append(ids, rule.ID())
	}
	return ids
}

// EvaluateAll runs every registered rule against ctx and returns the merged
// findings slice. Findings are stamped with the rule's domain.
func (r *DefaultRuleRegistry) EvaluateAll(ctx RuleContext) []models.Finding {
	var findings []models.Finding
	for _, rule := range r.rules {
		for _, f := range rule.Evaluate(ctx) {
			if f.Domain == "" {
				f.Domain = rule.Domain()
			}
			findings = append(findings, f)
		}
	}
	return findings
}
