// Package azure binds the advisor to Azure: subscriptions are accounts,
// network security groups are rule groups, and blob containers are the
// storage plane.
package azure

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/inventory"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
)

// ProviderName is the key used on the command line and in reports.
const ProviderName = "azure"

const managementScope = "https://management.azure.com/.default"

// Options configures the Azure provider.
type Options struct {
	// TenantID pins the credential to one tenant. Empty uses the default.
	TenantID string
}

// session is the Azure implementation of inventory.Session.
type session struct {
	cred     azcore.TokenCredential
	tenant   string
	identity string

	mu      sync.Mutex
	active  string
	clients map[string]*clientSet
}

func (s *session) Identity() string { return s.identity }

// Provider implements inventory.Provider against Azure Resource Manager.
type Provider struct {
	opts          Options
	logger        *slog.Logger
	newCred       func(Options) (azcore.TokenCredential, error)
	subscriptions subscriptionsFactory
	clients       clientFactory
	tenantName    tenantLookup
}

// NewProvider returns a Provider that authenticates with the default Azure
// credential chain (environment, workload identity, managed identity, CLI).
func NewProvider(opts Options, logger *slog.Logger) *Provider {
	return newProviderWithFactories(opts, logger, defaultCredential, newDefaultSubscriptions, newDefaultClientSet, graphTenantName)
}

func newProviderWithFactories(
	opts Options,
	logger *slog.Logger,
	newCred func(Options) (azcore.TokenCredential, error),
	subs subscriptionsFactory,
	clients clientFactory,
	tenant tenantLookup,
) *Provider {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Provider{
		opts:          opts,
		logger:        logger,
		newCred:       newCred,
		subscriptions: subs,
		clients:       clients,
		tenantName:    tenant,
	}
}

func defaultCredential(opts Options) (azcore.TokenCredential, error) {
	return azidentity.NewDefaultAzureCredential(&azidentity.DefaultAzureCredentialOptions{
		TenantID: opts.TenantID,
	})
}

func (p *Provider) Name() string { return ProviderName }

// Authenticate builds a credential and proves it by fetching a management
// token. The tenant display name is best effort.
func (p *Provider) Authenticate(ctx context.Context) (inventory.Session, error) {
	cred, err := p.newCred(p.opts)
	if err != nil {
		return nil, inventory.NewAuthError(ProviderName, "create credential", err)
	}
	if _, err := cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{managementScope}}); err != nil {
		return nil, inventory.NewAuthError(ProviderName, "acquire token", err)
	}

	s := &session{cred: cred, tenant: p.opts.TenantID, clients: make(map[string]*clientSet)}
	name, err := p.tenantName(ctx, cred)
	switch {
	case err == nil && name != "":
		s.identity = "tenant " + name
	case s.tenant != "":
		p.logger.Warn("tenant name lookup failed", "error", err)
		s.identity = "tenant " + s.tenant
	default:
		p.logger.Warn("tenant name lookup failed", "error", err)
		s.identity = "default tenant"
	}
	return s, nil
}

// SetActiveAccount builds the subscription-scoped clients on first use.
func (p *Provider) SetActiveAccount(_ context.Context, is inventory.Session, subscriptionID string) error {
	s, err := asSession(is)
	if err != nil {
		return inventory.NewAuthError(ProviderName, "set subscription", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[subscriptionID]; !ok {
		cs, err := p.clients(subscriptionID, s.cred)
		if err != nil {
			return inventory.NewAuthError(ProviderName, "set subscription "+subscriptionID, err)
		}
		s.clients[subscriptionID] = cs
	}
	s.active = subscriptionID
	return nil
}

// ListAccounts returns enabled subscriptions in the order ARM lists them.
func (p *Provider) ListAccounts(ctx context.Context, is inventory.Session) ([]models.AccountRef, error) {
	s, err := asSession(is)
	if err != nil {
		return nil, inventory.NewProviderError("list subscriptions", "", err)
	}
	client, err := p.subscriptions(s.cred)
	if err != nil {
		return nil, inventory.NewProviderError("list subscriptions", "", err)
	}

	var out []models.AccountRef
	pager := client.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, inventory.NewProviderError("list subscriptions", "", err)
		}
		for _, sub := range page.Value {
			if sub == nil || sub.SubscriptionID == nil {
				continue
			}
			if sub.State != nil && *sub.State != armsubscriptions.SubscriptionStateEnabled {
				p.logger.Debug("skipping subscription", "id", *sub.SubscriptionID, "state", *sub.State)
				continue
			}
			out = append(out, models.AccountRef{
				ID:       *sub.SubscriptionID,
				Name:     strOr(sub.DisplayName, *sub.SubscriptionID),
				Provider: ProviderName,
			})
		}
	}
	return out, nil
}

// ListNetworkRuleGroups returns every NSG in the subscription with its
// custom security rules. Default rules are not included.
func (p *Provider) ListNetworkRuleGroups(ctx context.Context, is inventory.Session, subscriptionID string) ([]models.NetworkRuleGroup, error) {
	cs, err := p.clientsFor(is, subscriptionID)
	if err != nil {
		return nil, inventory.NewProviderError("list security groups", subscriptionID, err)
	}
	var out []models.NetworkRuleGroup
	pager := cs.Groups.NewListAllPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, inventory.NewProviderError("list security groups", subscriptionID, err)
		}
		for _, nsg := range page.Value {
			if nsg == nil {
				continue
			}
			out = append(out, groupFromNSG(subscriptionID, nsg))
		}
	}
	return out, nil
}

// UpdateRuleGroup reads the current NSG, applies the source specifiers of
// group's rules by name, drops rules no longer present, and writes the NSG
// back as a whole.
func (p *Provider) UpdateRuleGroup(ctx context.Context, is inventory.Session, group models.NetworkRuleGroup) error {
	cs, err := p.clientsFor(is, group.AccountID)
	if err != nil {
		return inventory.NewProviderError("update security group", group.Name, err)
	}
	current, err := cs.Groups.Get(ctx, group.ResourceGroup, group.Name, nil)
	if err != nil {
		return inventory.NewProviderError("get security group", group.Name, err)
	}
	nsg := current.SecurityGroup
	applyGroup(&nsg, group)
	if err := cs.Writer.CreateOrUpdate(ctx, group.ResourceGroup, group.Name, nsg); err != nil {
		return inventory.NewProviderError("update security group", group.Name, err)
	}
	p.logger.Debug("security group updated", "group", group.Name, "rules", len(group.Rules))
	return nil
}

func (p *Provider) DeleteRule(ctx context.Context, is inventory.Session, group models.NetworkRuleGroup, ruleName string) error {
	cs, err := p.clientsFor(is, group.AccountID)
	if err != nil {
		return inventory.NewProviderError("delete rule", group.Name+"/"+ruleName, err)
	}
	if err := cs.Writer.DeleteRule(ctx, group.ResourceGroup, group.Name, ruleName); err != nil {
		return inventory.NewProviderError("delete rule", group.Name+"/"+ruleName, err)
	}
	return nil
}

func (p *Provider) ListStorageAccounts(ctx context.Context, is inventory.Session, subscriptionID string) ([]models.StorageAccountRef, error) {
	cs, err := p.clientsFor(is, subscriptionID)
	if err != nil {
		return nil, inventory.NewProviderError("list storage accounts", subscriptionID, err)
	}
	var out []models.StorageAccountRef
	pager := cs.Accounts.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, inventory.NewProviderError("list storage accounts", subscriptionID, err)
		}
		for _, acct := range page.Value {
			if acct == nil || acct.Name == nil {
				continue
			}
			out = append(out, accountFromARM(subscriptionID, acct))
		}
	}
	return out, nil
}

// ListContainers reports each blob container with its effective access
// level: when the account disallows public access, every container is off.
func (p *Provider) ListContainers(ctx context.Context, is inventory.Session, account models.StorageAccountRef) ([]models.StorageContainer, error) {
	cs, err := p.clientsFor(is, account.AccountID)
	if err != nil {
		return nil, inventory.NewProviderError("list containers", account.Name, err)
	}
	var out []models.StorageContainer
	pager := cs.Containers.NewListPager(account.ResourceGroup, account.Name, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, inventory.NewProviderError("list containers", account.Name, err)
		}
		for _, item := range page.Value {
			if item == nil || item.Name == nil {
				continue
			}
			out = append(out, containerFromARM(account, item))
		}
	}
	return out, nil
}

func (p *Provider) SetAccountPublicAccess(ctx context.Context, is inventory.Session, account models.StorageAccountRef, allowed bool) error {
	cs, err := p.clientsFor(is, account.AccountID)
	if err != nil {
		return inventory.NewProviderError("set public access", account.Name, err)
	}
	params := armstorage.AccountUpdateParameters{
		Properties: &armstorage.AccountPropertiesUpdateParameters{
			AllowBlobPublicAccess: to.Ptr(allowed),
		},
	}
	if _, err := cs.Accounts.Update(ctx, account.ResourceGroup, account.Name, params, nil); err != nil {
		return inventory.NewProviderError("set public access", account.Name, err)
	}
	return nil
}

// IssueDelegatedReadToken asks ARM to sign a read/list service SAS for the
// container with the account key. HTTPS only.
func (p *Provider) IssueDelegatedReadToken(ctx context.Context, is inventory.Session, c models.StorageContainer, expiry time.Time) (models.AccessDescriptor, error) {
	resource := c.Account + "/" + c.Name
	cs, err := p.clientsFor(is, c.AccountID)
	if err != nil {
		return models.AccessDescriptor{}, inventory.NewProviderError("issue token", resource, err)
	}
	params := armstorage.ServiceSasParameters{
		CanonicalizedResource:  to.Ptr(fmt.Sprintf("/blob/%s/%s", c.Account, c.Name)),
		Resource:               to.Ptr(armstorage.SignedResourceC),
		Permissions:            to.Ptr(armstorage.Permissions("rl")),
		Protocols:              to.Ptr(armstorage.HTTPProtocolHTTPS),
		SharedAccessExpiryTime: to.Ptr(expiry.UTC()),
	}
	resp, err := cs.Accounts.ListServiceSAS(ctx, c.ResourceGroup, c.Account, params, nil)
	if err != nil {
		return models.AccessDescriptor{}, inventory.NewProviderError("issue token", resource, err)
	}
	if resp.ServiceSasToken == nil || *resp.ServiceSasToken == "" {
		return models.AccessDescriptor{}, inventory.NewProviderError("issue token", resource, fmt.Errorf("empty SAS token"))
	}
	return models.AccessDescriptor{
		Account:   c.Account,
		Container: c.Name,
		URL:       fmt.Sprintf("https://%s.blob.core.windows.net/%s?%s", c.Account, c.Name, *resp.ServiceSasToken),
		Expiry:    expiry.UTC(),
	}, nil
}

func (p *Provider) clientsFor(is inventory.Session, subscriptionID string) (*clientSet, error) {
	s, err := asSession(is)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if subscriptionID == "" {
		subscriptionID = s.active
	}
	if cs, ok := s.clients[subscriptionID]; ok {
		return cs, nil
	}
	cs, err := p.clients(subscriptionID, s.cred)
	if err != nil {
		return nil, err
	}
	s.clients[subscriptionID] = cs
	return cs, nil
}

func asSession(is inventory.Session) (*session, error) {
	s, ok := is.(*session)
	if !ok || s == nil {
		return nil, fmt.Errorf("not an azure session: %T", is)
	}
	return s, nil
}

// compile-time check
var _ inventory.Provider = (*Provider)(nil)
