// Package inventory defines the two collaborators the advisor talks to: a
// SessionProvider that authenticates and switches the active account, and an
// InventoryProvider that lists and mutates network rules and storage.
//
// Implementations live under internal/providers/<name>. The engine and the
// remediation package depend only on these interfaces.
package inventory

import (
	"context"
	"time"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
)

// Session is the opaque handle returned by Authenticate. The advisor never
// sees credentials; it only hands the session back to the provider.
type Session interface {
	// Identity is a human-readable description of the authenticated
	// principal (tenant, caller ARN, kube context).
	Identity() string
}

// SessionProvider establishes and scopes sessions.
// Every error it returns is an *AuthError.
type SessionProvider interface {
	Authenticate(ctx context.Context) (Session, error)
	SetActiveAccount(ctx context.Context, s Session, accountID string) error
}

// InventoryProvider lists and mutates provider resources.
// Every error it returns is a *ProviderError.
type InventoryProvider interface {
	ListAccounts(ctx context.Context, s Session) ([]models.AccountRef, error)
	ListNetworkRuleGroups(ctx context.Context, s Session, accountID string) ([]models.NetworkRuleGroup, error)
	ListStorageAccounts(ctx context.Context, s Session, accountID string) ([]models.StorageAccountRef, error)
	ListContainers(ctx context.Context, s Session, account models.StorageAccountRef) ([]models.StorageContainer, error)

	// UpdateRuleGroup writes group back as a whole.
	UpdateRuleGroup(ctx context.Context, s Session, group models.NetworkRuleGroup) error
	DeleteRule(ctx context.Context, s Session, group models.NetworkRuleGroup, ruleName string) error

	SetAccountPublicAccess(ctx context.Context, s Session, account models.StorageAccountRef, allowed bool) error
	IssueDelegatedReadToken(ctx context.Context, s Session, c models.StorageContainer, expiry time.Time) (models.AccessDescriptor, error)
}

// Provider is a complete cloud binding.
type Provider interface {
	SessionProvider
	InventoryProvider

	// Name returns the provider key ("azure", "aws", "kubernetes", "static").
	Name() string
}
