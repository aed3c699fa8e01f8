// Package network provides the network exposure rule pack.
//
// Convention: every rule pack lives in internal/rulepacks/<domain>/pack.go
// and exposes a single New() func returning []rules.Rule.
package network

import "github.com/pankaj-dahiya-devops/exposure-advisor/internal/rules"

// New returns the default network exposure rule pack.
func New() []rules.Rule {
	return []rules.Rule{
		rules.NetworkOpenPortRule{}, // CRITICAL/HIGH: inbound rule open to the internet on a sensitive port
	}
}
