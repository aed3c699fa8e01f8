// Package storage provides the storage exposure rule pack.
package storage

import "github.com/pankaj-dahiya-devops/exposure-advisor/internal/rules"

// New returns the default storage exposure rule pack.
func New() []rules.Rule {
	return []rules.Rule{
		rules.StoragePublicContainerRule{}, // HIGH/MEDIUM: container allows anonymous reads
	}
}
