package remediation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/inventory"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
)

// StorageBackend is the subset of a provider the storage remediator uses.
type StorageBackend interface {
	SetActiveAccount(ctx context.Context, s inventory.Session, accountID string) error
	SetAccountPublicAccess(ctx context.Context, s inventory.Session, account models.StorageAccountRef, allowed bool) error
	IssueDelegatedReadToken(ctx context.Context, s inventory.Session, c models.StorageContainer, expiry time.Time) (models.AccessDescriptor, error)
}

// StorageRemediator issues delegated read tokens for public containers and
// disables public access at the storage-account level.
type StorageRemediator struct {
	backend      StorageBackend
	ledger       *Ledger
	logger       *slog.Logger
	confirmToken string
	now          func() time.Time
}

// NewStorageRemediator returns a remediator recording tokens to ledger.
// A nil ledger is allowed when tokens are never issued.
func NewStorageRemediator(backend StorageBackend, ledger *Ledger, logger *slog.Logger, confirmToken string) *StorageRemediator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if confirmToken == "" {
		confirmToken = DefaultConfirmToken
	}
	return &StorageRemediator{
		backend:      backend,
		ledger:       ledger,
		logger:       logger,
		confirmToken: confirmToken,
		now:          time.Now,
	}
}

// IssueTokens issues one read-only token per container finding expiring
// days from now and records each to the ledger. Failures are isolated per
// container; only an *inventory.AuthError is returned.
func (r *StorageRemediator) IssueTokens(ctx context.Context, s inventory.Session, findings []models.Finding, days int, result *models.RemediationResult) error {
	if r.ledger == nil {
		return fmt.Errorf("issue tokens: no ledger configured")
	}
	if !ValidExpiryDays(days) {
		days = DefaultExpiryDays
	}
	expiry := r.now().UTC().Add(time.Duration(days) * 24 * time.Hour)
	scope := &accountScope{sessions: r.backend, session: s}

	for _, c := range uniqueContainers(findings) {
		if err := scope.use(ctx, c.AccountID); err != nil {
			return err
		}
		desc, err := r.backend.IssueDelegatedReadToken(ctx, s, c, expiry)
		if err == nil {
			err = r.ledger.Record(desc)
		}
		if err != nil {
			if inventory.IsAuthError(err) {
				return err
			}
			r.logger.Error("token issuance failed",
				"account", c.AccountID,
				"storage_account", c.Account,
				"container", c.Name,
				"error", err,
			)
			result.RecordFailure(models.ItemFailure{
				Operation: "issue_token",
				AccountID: c.AccountID,
				Resource:  c.Account + "/" + c.Name,
				Error:     err.Error(),
			})
			continue
		}
		r.logger.Info("token issued",
			"storage_account", c.Account,
			"container", c.Name,
			"expires", desc.Expiry.Format(time.RFC3339),
		)
		result.TokensIssued++
	}
	return nil
}

// SecureImmediately disables public access after checking confirmation
// against the confirmation token. A mismatch returns ErrNotConfirmed with no
// provider call made.
func (r *StorageRemediator) SecureImmediately(ctx context.Context, s inventory.Session, findings []models.Finding, confirmation string, result *models.RemediationResult) error {
	if confirmation != r.confirmToken {
		result.Note("secure cancelled: confirmation token did not match")
		return ErrNotConfirmed
	}
	return r.SecureAccounts(ctx, s, findings, result)
}

// SecureAccounts disables public blob access once per distinct
// (account, storage account) pair among findings, in first-seen order. When
// a pair succeeds every container finding under it counts as secured. A
// failing pair is recorded and the rest continue.
func (r *StorageRemediator) SecureAccounts(ctx context.Context, s inventory.Session, findings []models.Finding, result *models.RemediationResult) error {
	scope := &accountScope{sessions: r.backend, session: s}

	for _, g := range groupByStorageAccount(uniqueContainers(findings)) {
		if err := scope.use(ctx, g.ref.AccountID); err != nil {
			return err
		}
		if err := r.backend.SetAccountPublicAccess(ctx, s, g.ref, false); err != nil {
			if inventory.IsAuthError(err) {
				return err
			}
			r.logger.Error("disable public access failed",
				"account", g.ref.AccountID,
				"storage_account", g.ref.Name,
				"containers", len(g.containers),
				"error", err,
			)
			result.RecordFailure(models.ItemFailure{
				Operation: "secure_account",
				AccountID: g.ref.AccountID,
				Resource:  g.ref.Name,
				Error:     err.Error(),
			})
			continue
		}
		r.logger.Info("public access disabled",
			"account", g.ref.AccountID,
			"storage_account", g.ref.Name,
			"containers", len(g.containers),
		)
		result.ContainersSecured += len(g.containers)
	}
	return nil
}

type accountGroup struct {
	ref        models.StorageAccountRef
	containers []models.StorageContainer
}

func groupByStorageAccount(containers []models.StorageContainer) []accountGroup {
	var groups []accountGroup
	index := make(map[string]int)
	for _, c := range containers {
		ref := c.StorageAccountRef()
		key := ref.AccountID + "|" + ref.ID
		if ref.ID == "" {
			key = ref.AccountID + "|" + ref.Name
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, accountGroup{ref: ref})
		}
		groups[i].containers = append(groups[i].containers, c)
	}
	return groups
}

// uniqueContainers extracts the containers referenced by findings, once
// each, in finding order.
func uniqueContainers(findings []models.Finding) []models.StorageContainer {
	seen := make(map[string]struct{})
	var out []models.StorageContainer
	for _, f := range findings {
		if f.Container == nil {
			continue
		}
		c := *f.Container
		key := c.AccountID + "|" + c.Account + "/" + c.Name
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
