// Package static serves an inventory snapshot from a YAML file. Mutations
// change the in-memory copy and, when write-back is on, the file itself.
// It backs offline runs, demos and tests of the remediation flow.
package static

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/inventory"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
)

// ProviderName is the key used on the command line and in reports.
const ProviderName = "static"

// Options configures the static provider.
type Options struct {
	// Path is the YAML snapshot to load.
	Path string

	// WriteBack persists every successful mutation to Path.
	WriteBack bool
}

type session struct{ path string }

func (s session) Identity() string { return "snapshot " + s.path }

// Provider implements inventory.Provider over a snapshot file.
type Provider struct {
	opts   Options
	logger *slog.Logger

	mu  sync.Mutex
	inv *models.Inventory
}

// NewProvider returns a Provider for the snapshot at opts.Path. The file is
// read on Authenticate.
func NewProvider(opts Options, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Provider{opts: opts, logger: logger}
}

// NewFromInventory returns a Provider serving inv directly.
func NewFromInventory(inv *models.Inventory) *Provider {
	return &Provider{inv: inv, logger: slog.New(slog.DiscardHandler)}
}

func (p *Provider) Name() string { return ProviderName }

// Load parses a snapshot file.
func Load(path string) (*models.Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %q: %w", path, err)
	}
	var inv models.Inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("parse snapshot %q: %w", path, err)
	}
	return &inv, nil
}

// Save writes inv to path through a temporary file and a rename.
func Save(path string, inv *models.Inventory) error {
	data, err := yaml.Marshal(inv)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func (p *Provider) Authenticate(_ context.Context) (inventory.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inv == nil {
		if p.opts.Path == "" {
			return nil, inventory.NewAuthError(ProviderName, "load snapshot", errors.New("no snapshot path"))
		}
		inv, err := Load(p.opts.Path)
		if err != nil {
			return nil, inventory.NewAuthError(ProviderName, "load snapshot", err)
		}
		p.inv = inv
	}
	path := p.opts.Path
	if path == "" {
		path = "(memory)"
	}
	return session{path: path}, nil
}

func (p *Provider) SetActiveAccount(_ context.Context, _ inventory.Session, accountID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, a := range p.accounts() {
		if a.ID == accountID {
			return nil
		}
	}
	return inventory.NewAuthError(ProviderName, "set account", fmt.Errorf("account %q not in snapshot", accountID))
}

func (p *Provider) ListAccounts(_ context.Context, _ inventory.Session) ([]models.AccountRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accounts(), nil
}

// accounts returns the declared accounts, or the account IDs referenced by
// groups and storage in first-seen order when none are declared.
func (p *Provider) accounts() []models.AccountRef {
	if len(p.inv.Accounts) > 0 {
		return append([]models.AccountRef(nil), p.inv.Accounts...)
	}
	var out []models.AccountRef
	seen := make(map[string]bool)
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, models.AccountRef{ID: id, Name: id, Provider: ProviderName})
	}
	for _, g := range p.inv.RuleGroups {
		add(g.AccountID)
	}
	for _, sa := range p.inv.StorageAccounts {
		add(sa.AccountID)
	}
	return out
}

func (p *Provider) ListNetworkRuleGroups(_ context.Context, _ inventory.Session, accountID string) ([]models.NetworkRuleGroup, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.NetworkRuleGroup
	for _, g := range p.inv.RuleGroups {
		if g.AccountID == accountID {
			out = append(out, g.Clone())
		}
	}
	return out, nil
}

func (p *Provider) ListStorageAccounts(_ context.Context, _ inventory.Session, accountID string) ([]models.StorageAccountRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.StorageAccountRef
	for _, sa := range p.inv.StorageAccounts {
		if sa.AccountID == accountID {
			out = append(out, sa)
		}
	}
	return out, nil
}

func (p *Provider) ListContainers(_ context.Context, _ inventory.Session, account models.StorageAccountRef) ([]models.StorageContainer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.StorageContainer
	for _, c := range p.inv.Containers {
		if belongsTo(c, account) {
			out = append(out, c)
		}
	}
	return out, nil
}

func belongsTo(c models.StorageContainer, account models.StorageAccountRef) bool {
	if account.ID != "" && c.StorageAccountID != "" {
		return c.StorageAccountID == account.ID
	}
	return c.Account == account.Name && c.AccountID == account.AccountID
}

func (p *Provider) UpdateRuleGroup(_ context.Context, _ inventory.Session, group models.NetworkRuleGroup) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.groupIndex(group.ID)
	if i < 0 {
		return inventory.NewProviderError("update rule group", group.ID, errors.New("group not found"))
	}
	p.inv.RuleGroups[i] = group.Clone()
	return p.persist("update rule group", group.ID)
}

func (p *Provider) DeleteRule(_ context.Context, _ inventory.Session, group models.NetworkRuleGroup, ruleName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	resource := group.ID + "/" + ruleName
	i := p.groupIndex(group.ID)
	if i < 0 {
		return inventory.NewProviderError("delete rule", resource, errors.New("group not found"))
	}
	g := &p.inv.RuleGroups[i]
	j := g.RuleIndex(ruleName)
	if j < 0 {
		return inventory.NewProviderError("delete rule", resource, errors.New("rule not found"))
	}
	g.Rules = append(g.Rules[:j:j], g.Rules[j+1:]...)
	return p.persist("delete rule", resource)
}

// SetAccountPublicAccess flips the account flag. Disallowing public access
// also turns every container of the account off.
func (p *Provider) SetAccountPublicAccess(_ context.Context, _ inventory.Session, account models.StorageAccountRef, allowed bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	found := false
	for i := range p.inv.StorageAccounts {
		sa := &p.inv.StorageAccounts[i]
		if sa.ID == account.ID && sa.Name == account.Name {
			sa.AllowPublicAccess = allowed
			found = true
		}
	}
	if !found {
		return inventory.NewProviderError("set public access", account.Name, errors.New("storage account not found"))
	}
	if !allowed {
		for i := range p.inv.Containers {
			if belongsTo(p.inv.Containers[i], account) {
				p.inv.Containers[i].PublicAccess = models.PublicAccessOff
			}
		}
	}
	return p.persist("set public access", account.Name)
}

// IssueDelegatedReadToken returns an opaque token URL. Nothing is signed.
func (p *Provider) IssueDelegatedReadToken(_ context.Context, _ inventory.Session, c models.StorageContainer, expiry time.Time) (models.AccessDescriptor, error) {
	q := url.Values{}
	q.Set("token", uuid.NewString())
	q.Set("se", expiry.UTC().Format(time.RFC3339))
	u := url.URL{Scheme: ProviderName, Host: c.Account, Path: "/" + c.Name, RawQuery: q.Encode()}
	return models.AccessDescriptor{Account: c.Account, Container: c.Name, URL: u.String(), Expiry: expiry.UTC()}, nil
}

// Snapshot returns a deep copy of the current inventory.
func (p *Provider) Snapshot() *models.Inventory {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := *p.inv
	out.Accounts = append([]models.AccountRef(nil), p.inv.Accounts...)
	out.RuleGroups = make([]models.NetworkRuleGroup, len(p.inv.RuleGroups))
	for i, g := range p.inv.RuleGroups {
		out.RuleGroups[i] = g.Clone()
	}
	out.StorageAccounts = append([]models.StorageAccountRef(nil), p.inv.StorageAccounts...)
	out.Containers = append([]models.StorageContainer(nil), p.inv.Containers...)
	return &out
}

func (p *Provider) groupIndex(id string) int {
	for i := range p.inv.RuleGroups {
		if p.inv.RuleGroups[i].ID == id {
			return i
		}
	}
	return -1
}

// persist writes the snapshot when write-back is on. Callers hold p.mu.
func (p *Provider) persist(op, resource string) error {
	if !p.opts.WriteBack || p.opts.Path == "" {
		return nil
	}
	if err := Save(p.opts.Path, p.inv); err != nil {
		return inventory.NewProviderError(op, resource, err)
	}
	p.logger.Debug("snapshot written", "path", p.opts.Path, "op", op)
	return nil
}

var _ inventory.Provider = (*Provider)(nil)
