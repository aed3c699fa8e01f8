package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/inventory"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/policy"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/remediation"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/rules"
)

// DefaultEngine is the production implementation of Engine.
// It scans accounts strictly one after another and never calls a cloud
// SDK directly.
type DefaultEngine struct {
	provider inventory.Provider
	registry rules.RuleRegistry
	policy   *policy.PolicyConfig
	logger   *slog.Logger
}

// NewDefaultEngine constructs a DefaultEngine wired to the supplied provider
// and rule registry. pol and logger may be nil.
func NewDefaultEngine(
	provider inventory.Provider,
	registry rules.RuleRegistry,
	pol *policy.PolicyConfig,
	logger *slog.Logger,
) *DefaultEngine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &DefaultEngine{
		provider: provider,
		registry: registry,
		policy:   pol,
		logger:   logger,
	}
}

// Scan implements Engine. An *inventory.AuthError from authentication or an
// account switch aborts the scan. Every other provider failure is recorded
// in ScanReport.Errors and the scan continues with the next item.
func (e *DefaultEngine) Scan(ctx context.Context, opts ScanOptions) (*ScanResult, error) {
	sess, err := e.provider.Authenticate(ctx)
	if err != nil {
		return nil, asAuthError(e.provider.Name(), "authenticate", err)
	}
	e.logger.Info("authenticated", "provider", e.provider.Name(), "identity", sess.Identity())

	inv := &models.Inventory{}
	var failures []models.ItemFailure

	accounts, err := e.provider.ListAccounts(ctx, sess)
	if err != nil {
		if inventory.IsAuthError(err) {
			return nil, err
		}
		failures = append(failures, e.fail("list_accounts", "", "", err))
	}
	accounts = filterAccounts(accounts, opts.Accounts)
	if len(opts.Accounts) > 0 && len(accounts) == 0 {
		e.logger.Warn("no listed account matched --account", "requested", opts.Accounts)
	}

	for _, acct := range accounts {
		if err := e.provider.SetActiveAccount(ctx, sess, acct.ID); err != nil {
			return nil, asAuthError(e.provider.Name(), "set active account "+acct.ID, err)
		}
		inv.Accounts = append(inv.Accounts, acct)
		e.logger.Debug("scanning account", "account", acct.ID, "name", acct.Name)

		failures = append(failures, e.collectAccount(ctx, sess, acct, inv, opts.SkipStorage)...)
	}

	rctx := rules.RuleContext{
		Inventory:      inv,
		SensitivePorts: opts.SensitivePorts,
		OpenSources:    opts.OpenSources,
		Policy:         e.policy,
	}
	findings := policy.ApplyByDomain(e.registry.EvaluateAll(rctx), e.policy)

	generic := opts.GenericSources
	if len(generic) == 0 {
		generic = remediation.DefaultGenericSources
	}
	ranges := remediation.InferTrustedRangesWith(inv.AllRules(), generic)

	report := &models.ScanReport{
		ReportID:      uuid.NewString(),
		GeneratedAt:   time.Now().UTC(),
		Provider:      e.provider.Name(),
		Identity:      sess.Identity(),
		Accounts:      inv.Accounts,
		TrustedRanges: ranges,
		Summary:       computeSummary(findings, inv),
		Findings:      findings,
		Errors:        failures,
	}
	e.logger.Info("scan complete",
		"accounts", len(inv.Accounts),
		"rule_groups", len(inv.RuleGroups),
		"containers", len(inv.Containers),
		"findings", len(findings),
		"trusted_ranges", len(ranges),
	)
	return &ScanResult{Session: sess, Inventory: inv, Report: report}, nil
}

// collectAccount appends one account's rule groups and containers to inv
// and returns the failures met on the way.
func (e *DefaultEngine) collectAccount(
	ctx context.Context,
	sess inventory.Session,
	acct models.AccountRef,
	inv *models.Inventory,
	skipStorage bool,
) []models.ItemFailure {
	var failures []models.ItemFailure

	groups, err := e.provider.ListNetworkRuleGroups(ctx, sess, acct.ID)
	if err != nil {
		failures = append(failures, e.fail("list_rule_groups", acct.ID, acct.Name, err))
	}
	inv.RuleGroups = append(inv.RuleGroups, groups...)

	if skipStorage {
		return failures
	}

	storageAccounts, err := e.provider.ListStorageAccounts(ctx, sess, acct.ID)
	if errors.Is(err, inventory.ErrUnsupported) {
		e.logger.Debug("provider has no storage plane", "provider", e.provider.Name())
		return failures
	}
	if err != nil {
		failures = append(failures, e.fail("list_storage_accounts", acct.ID, acct.Name, err))
	}
	inv.StorageAccounts = append(inv.StorageAccounts, storageAccounts...)

	for _, sa := range storageAccounts {
		containers, err := e.provider.ListContainers(ctx, sess, sa)
		if err != nil {
			failures = append(failures, e.fail("list_containers", acct.ID, sa.Name, err))
			continue
		}
		inv.Containers = append(inv.Containers, containers...)
	}
	return failures
}

func (e *DefaultEngine) fail(op, accountID, resource string, err error) models.ItemFailure {
	e.logger.Error("inventory call failed", "op", op, "account", accountID, "resource", resource, "error", err)
	return models.ItemFailure{Operation: op, AccountID: accountID, Resource: resource, Error: err.Error()}
}

func asAuthError(provider, op string, err error) error {
	if inventory.IsAuthError(err) {
		return err
	}
	return inventory.NewAuthError(provider, op, err)
}

// filterAccounts keeps accounts whose ID or Name is in want, preserving the
// provider's order. An empty want keeps everything.
func filterAccounts(accounts []models.AccountRef, want []string) []models.AccountRef {
	if len(want) == 0 {
		return accounts
	}
	keep := make(map[string]struct{}, len(want))
	for _, w := range want {
		keep[w] = struct{}{}
	}
	var out []models.AccountRef
	for _, a := range accounts {
		_, byID := keep[a.ID]
		_, byName := keep[a.Name]
		if byID || byName {
			out = append(out, a)
		}
	}
	return out
}

// Describe returns a one-line account label for logs and tables.
func Describe(a models.AccountRef) string {
	if a.Name == "" || a.Name == a.ID {
		return a.ID
	}
	return fmt.Sprintf("%s (%s)", a.Name, a.ID)
}
