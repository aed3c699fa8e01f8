package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
)

var validDomains = map[string]bool{
	models.DomainNetwork: true,
	models.DomainStorage: true,
}

const severityChoices = "CRITICAL, HIGH, MEDIUM, LOW, INFO"

// Domains returns the recognised domain names in sorted order.
func Domains() []string {
	return sortedKeys(validDomains)
}

// Validate returns every problem found in cfg; an empty result means the
// config is usable. Rule IDs are checked against ruleIDs.
func Validate(cfg *PolicyConfig, ruleIDs []string) []error {
	if cfg == nil {
		return []error{fmt.Errorf("policy config is nil")}
	}

	v := &validation{}
	if cfg.Version != 1 {
		v.addf("version: unsupported value %d; must be 1", cfg.Version)
	}

	for _, name := range sortedKeys(cfg.Domains) {
		v.domain("domains."+name, name)
		v.severity("domains."+name+".min_severity", cfg.Domains[name].MinSeverity)
	}

	known := make(map[string]bool, len(ruleIDs))
	for _, id := range ruleIDs {
		known[id] = true
	}
	for _, id := range sortedKeys(cfg.Rules) {
		if !known[id] {
			v.addf("rules.%s: unknown rule ID", id)
		}
		v.severity("rules."+id+".severity", cfg.Rules[id].Severity)
	}

	for _, name := range sortedKeys(cfg.Enforcement) {
		v.domain("enforcement."+name, name)
		v.severity("enforcement."+name+".fail_on_severity", cfg.Enforcement[name].FailOnSeverity)
	}

	return v.errs
}

type validation struct {
	errs []error
}

func (v *validation) addf(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validation) domain(field, name string) {
	if !validDomains[name] {
		v.addf("%s: unknown domain; valid values: %s", field, strings.Join(Domains(), ", "))
	}
}

// severity accepts an empty value as "not set".
func (v *validation) severity(field, value string) {
	if value == "" {
		return
	}
	if _, ok := severityRank[models.Severity(strings.ToUpper(value))]; !ok {
		v.addf("%s: invalid value %q; valid values: %s", field, value, severityChoices)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
