package remediation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/inventory"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
)

type fakeSession struct{}

func (fakeSession) Identity() string { return "tester@contoso" }

// fakeBackend records every mutating call and fails the ones named in its
// fail maps.
type fakeBackend struct {
	switches []string
	updates  []models.NetworkRuleGroup
	deletes  []string
	secured  []string
	tokens   []string

	failSwitch  map[string]bool
	failUpdate  map[string]bool // by group name
	failDelete  map[string]bool // by rule name
	failSecure  map[string]bool // by storage account name
	failToken   map[string]bool // by container name
	authOnToken bool
}

func (b *fakeBackend) mutations() int {
	return len(b.updates) + len(b.deletes) + len(b.secured) + len(b.tokens)
}

func (b *fakeBackend) SetActiveAccount(_ context.Context, _ inventory.Session, accountID string) error {
	b.switches = append(b.switches, accountID)
	if b.failSwitch[accountID] {
		return inventory.NewAuthError("fake", "set account", errors.New("forbidden"))
	}
	return nil
}

func (b *fakeBackend) UpdateRuleGroup(_ context.Context, _ inventory.Session, g models.NetworkRuleGroup) error {
	if b.failUpdate[g.Name] {
		return inventory.NewProviderError("update_rule_group", g.Name, errors.New("conflict"))
	}
	b.updates = append(b.updates, g.Clone())
	return nil
}

func (b *fakeBackend) DeleteRule(_ context.Context, _ inventory.Session, g models.NetworkRuleGroup, rule string) error {
	if b.failDelete[rule] {
		return inventory.NewProviderError("delete_rule", g.Name+"/"+rule, errors.New("not found"))
	}
	b.deletes = append(b.deletes, g.Name+"/"+rule)
	return nil
}

func (b *fakeBackend) SetAccountPublicAccess(_ context.Context, _ inventory.Session, a models.StorageAccountRef, allowed bool) error {
	if b.failSecure[a.Name] {
		return inventory.NewProviderError("set_public_access", a.Name, errors.New("throttled"))
	}
	b.secured = append(b.secured, fmt.Sprintf("%s=%v", a.Name, allowed))
	return nil
}

func (b *fakeBackend) IssueDelegatedReadToken(_ context.Context, _ inventory.Session, c models.StorageContainer, expiry time.Time) (models.AccessDescriptor, error) {
	if b.authOnToken {
		return models.AccessDescriptor{}, inventory.NewAuthError("fake", "token", errors.New("expired"))
	}
	if b.failToken[c.Name] {
		return models.AccessDescriptor{}, inventory.NewProviderError("issue_token", c.Name, errors.New("denied"))
	}
	b.tokens = append(b.tokens, c.Account+"/"+c.Name)
	return models.AccessDescriptor{
		Account:   c.Account,
		Container: c.Name,
		URL:       "https://" + c.Account + ".blob.core.windows.net/" + c.Name + "?sig=x",
		Expiry:    expiry,
	}, nil
}

// ruleFinding builds a network finding that points at rule index ri of g.
func ruleFinding(g *models.NetworkRuleGroup, ri int, port string) models.Finding {
	r := &g.Rules[ri]
	return models.Finding{
		ID:           "NETWORK_OPEN_SENSITIVE_PORT-" + g.AccountID + "/" + g.ID + "/" + r.Name,
		RuleID:       "NETWORK_OPEN_SENSITIVE_PORT",
		ResourceID:   g.Name + "/" + r.Name,
		ResourceType: models.ResourceNetworkRule,
		AccountID:    g.AccountID,
		Domain:       models.DomainNetwork,
		Severity:     models.SeverityHigh,
		Port:         port,
		Rule:         r,
		Group:        g,
	}
}

func containerFinding(c *models.StorageContainer) models.Finding {
	return models.Finding{
		ID:           "STORAGE_PUBLIC_CONTAINER-" + c.AccountID + "/" + c.Account + "/" + c.Name,
		RuleID:       "STORAGE_PUBLIC_CONTAINER",
		ResourceID:   c.Account + "/" + c.Name,
		ResourceType: models.ResourceStorageContainer,
		AccountID:    c.AccountID,
		Domain:       models.DomainStorage,
		Severity:     models.SeverityHigh,
		Container:    c,
	}
}

func openRule(name, source string, ports ...string) models.NetworkRule {
	return models.NetworkRule{
		Name:      name,
		Direction: models.DirectionInbound,
		Access:    models.AccessAllow,
		Sources:   []string{source},
		Ports:     ports,
		Protocol:  "Tcp",
		Priority:  100,
	}
}
