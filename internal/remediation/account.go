package remediation

import (
	"context"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/inventory"
)

// accountSwitcher is the one session call remediation needs.
type accountSwitcher interface {
	SetActiveAccount(ctx context.Context, s inventory.Session, accountID string) error
}

// accountScope keeps the provider session pointed at the account of the item
// being remediated, switching only when the account changes.
type accountScope struct {
	sessions accountSwitcher
	session  inventory.Session
	current  string
}

// use switches to accountID. Any failure is fatal for the run and is
// returned as an *inventory.AuthError.
func (a *accountScope) use(ctx context.Context, accountID string) error {
	if accountID == "" || accountID == a.current {
		return nil
	}
	if err := a.sessions.SetActiveAccount(ctx, a.session, accountID); err != nil {
		if inventory.IsAuthError(err) {
			return err
		}
		return inventory.NewAuthError("session", "set active account "+accountID, err)
	}
	a.current = accountID
	return nil
}
