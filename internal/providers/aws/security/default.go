// Package awssecurity binds the advisor to AWS: profiles are accounts, EC2
// security groups and public EKS endpoints are rule groups, and S3 buckets
// are the storage plane.
package awssecurity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/inventory"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/providers/aws/common"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/providers/aws/eks"
)

// ProviderName is the key used on the command line and in reports.
const ProviderName = "aws"

// Options configures the AWS provider.
type Options struct {
	// Profile restricts the run to one shared-config profile. Empty loads
	// every usable profile.
	Profile string

	// Regions overrides region discovery.
	Regions []string
}

type session struct {
	identity string
	profiles []*common.ProfileConfig
	byID     map[string]*common.ProfileConfig

	mu      sync.Mutex
	active  *common.ProfileConfig
	regions map[string][]string
	clients map[string]*regionalClients
}

func (s *session) Identity() string { return s.identity }

// Provider implements inventory.Provider for AWS.
type Provider struct {
	opts    Options
	loader  common.AWSClientProvider
	factory clientFactory
	logger  *slog.Logger
	now     func() time.Time
}

// NewProvider returns a Provider backed by the real AWS SDK.
func NewProvider(opts Options, loader common.AWSClientProvider, logger *slog.Logger) *Provider {
	return newProviderWithFactory(opts, loader, newDefaultClients, logger)
}

func newProviderWithFactory(opts Options, loader common.AWSClientProvider, f clientFactory, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Provider{opts: opts, loader: loader, factory: f, logger: logger, now: time.Now}
}

func (p *Provider) Name() string { return ProviderName }

// Authenticate loads the selected profile, or every usable profile, and
// resolves each caller identity through STS.
func (p *Provider) Authenticate(ctx context.Context) (inventory.Session, error) {
	var profiles []*common.ProfileConfig
	if p.opts.Profile != "" {
		pc, err := p.loader.LoadProfile(ctx, p.opts.Profile)
		if err != nil {
			return nil, inventory.NewAuthError(ProviderName, "load profile", err)
		}
		profiles = []*common.ProfileConfig{pc}
	} else {
		all, err := p.loader.LoadAllProfiles(ctx)
		if err != nil {
			return nil, inventory.NewAuthError(ProviderName, "load profiles", err)
		}
		profiles = all
	}
	if len(profiles) == 0 {
		return nil, inventory.NewAuthError(ProviderName, "load profiles", errors.New("no usable profile"))
	}

	s := &session{
		byID:    make(map[string]*common.ProfileConfig),
		regions: make(map[string][]string),
		clients: make(map[string]*regionalClients),
	}
	// Several profiles may reach one account; the first wins.
	for _, pc := range profiles {
		if _, dup := s.byID[pc.AccountID]; dup {
			p.logger.Debug("profile reaches an account already loaded", "profile", pc.ProfileName, "account", pc.AccountID)
			continue
		}
		s.byID[pc.AccountID] = pc
		s.profiles = append(s.profiles, pc)
	}
	s.identity = profiles[0].ARN
	if s.identity == "" {
		s.identity = "profile " + profiles[0].ProfileName
	}
	if n := len(s.profiles); n > 1 {
		s.identity = fmt.Sprintf("%s (+%d accounts)", s.identity, n-1)
	}
	return s, nil
}

func (p *Provider) SetActiveAccount(_ context.Context, is inventory.Session, accountID string) error {
	s, err := asSession(is)
	if err != nil {
		return inventory.NewAuthError(ProviderName, "set account", err)
	}
	pc, ok := s.byID[accountID]
	if !ok {
		return inventory.NewAuthError(ProviderName, "set account", fmt.Errorf("no profile for account %s", accountID))
	}
	s.mu.Lock()
	s.active = pc
	s.mu.Unlock()
	return nil
}

func (p *Provider) ListAccounts(_ context.Context, is inventory.Session) ([]models.AccountRef, error) {
	s, err := asSession(is)
	if err != nil {
		return nil, inventory.NewProviderError("list accounts", "", err)
	}
	out := make([]models.AccountRef, 0, len(s.profiles))
	for _, pc := range s.profiles {
		out = append(out, models.AccountRef{ID: pc.AccountID, Name: pc.ProfileName, Provider: ProviderName})
	}
	return out, nil
}

// ListNetworkRuleGroups collects security groups, then public EKS endpoints,
// from every active region. Groups from calls that succeed are returned
// alongside the errors of those that fail.
func (p *Provider) ListNetworkRuleGroups(ctx context.Context, is inventory.Session, accountID string) ([]models.NetworkRuleGroup, error) {
	s, pc, err := p.profileFor(is, accountID)
	if err != nil {
		return nil, inventory.NewProviderError("list security groups", accountID, err)
	}
	regions, err := p.regionsFor(ctx, s, pc)
	if err != nil {
		return nil, inventory.NewProviderError("list regions", accountID, err)
	}

	var (
		groups []models.NetworkRuleGroup
		errs   []error
	)
	for _, region := range regions {
		clients := p.clientsFor(s, pc, region)
		got, err := collectRuleGroups(ctx, clients.EC2, pc.AccountID, region)
		groups = append(groups, got...)
		if err != nil {
			errs = append(errs, err)
		}
		clusters, err := eks.CollectEndpointGroups(ctx, clients.EKS, pc.AccountID, region)
		groups = append(groups, clusters...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return groups, inventory.NewProviderError("list security groups", accountID, errors.Join(errs...))
	}
	return groups, nil
}

// UpdateRuleGroup re-reads the security group and reconciles its ingress
// permissions with group. A cluster group rewrites the endpoint CIDRs.
func (p *Provider) UpdateRuleGroup(ctx context.Context, is inventory.Session, group models.NetworkRuleGroup) error {
	s, pc, err := p.profileFor(is, group.AccountID)
	if err != nil {
		return inventory.NewProviderError("update security group", group.ID, err)
	}
	if eks.IsClusterGroup(group.ID) {
		if err := eks.ApplyGroup(ctx, p.clientsFor(s, pc, group.Location).EKS, group); err != nil {
			return inventory.NewProviderError("update cluster endpoint", group.ID, err)
		}
		return nil
	}
	client := p.clientsFor(s, pc, group.Location).EC2
	sg, err := describeGroup(ctx, client, group.ID)
	if err != nil {
		return inventory.NewProviderError("update security group", group.ID, err)
	}
	if err := syncIngress(ctx, client, sg, group); err != nil {
		return inventory.NewProviderError("update security group", group.ID, err)
	}
	return nil
}

// DeleteRule revokes the whole ingress permission named ruleName. On a
// cluster group it disables the public endpoint.
func (p *Provider) DeleteRule(ctx context.Context, is inventory.Session, group models.NetworkRuleGroup, ruleName string) error {
	resource := group.ID + "/" + ruleName
	s, pc, err := p.profileFor(is, group.AccountID)
	if err != nil {
		return inventory.NewProviderError("delete rule", resource, err)
	}
	if eks.IsClusterGroup(group.ID) {
		if ruleName != eks.EndpointRuleName {
			return inventory.NewProviderError("delete rule", resource, errors.New("rule not found"))
		}
		if err := eks.DisablePublicEndpoint(ctx, p.clientsFor(s, pc, group.Location).EKS, group.Name); err != nil {
			return inventory.NewProviderError("delete rule", resource, err)
		}
		return nil
	}
	client := p.clientsFor(s, pc, group.Location).EC2
	sg, err := describeGroup(ctx, client, group.ID)
	if err != nil {
		return inventory.NewProviderError("delete rule", resource, err)
	}
	for _, perm := range sg.IpPermissions {
		if permissionName(models.DirectionInbound, perm) != ruleName {
			continue
		}
		if err := revoke(ctx, client, group.ID, perm); err != nil {
			return inventory.NewProviderError("delete rule", resource, err)
		}
		return nil
	}
	return inventory.NewProviderError("delete rule", resource, errors.New("rule not found"))
}

// ListStorageAccounts returns one reference per bucket.
func (p *Provider) ListStorageAccounts(ctx context.Context, is inventory.Session, accountID string) ([]models.StorageAccountRef, error) {
	s, pc, err := p.profileFor(is, accountID)
	if err != nil {
		return nil, inventory.NewProviderError("list buckets", accountID, err)
	}
	buckets, err := listBuckets(ctx, p.clientsFor(s, pc, pc.Region).S3, pc.Region)
	if err != nil {
		return nil, inventory.NewProviderError("list buckets", accountID, err)
	}

	out := make([]models.StorageAccountRef, 0, len(buckets))
	var errs []error
	for _, b := range buckets {
		allowed, err := publicAccessAllowed(ctx, p.clientsFor(s, pc, b.Region).S3, b.Name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, models.StorageAccountRef{
			ID:                bucketARN(b.Name),
			Name:              b.Name,
			AccountID:         pc.AccountID,
			Location:          b.Region,
			AllowPublicAccess: allowed,
		})
	}
	if len(errs) > 0 {
		return out, inventory.NewProviderError("list buckets", accountID, errors.Join(errs...))
	}
	return out, nil
}

// ListContainers returns the single container of a bucket.
func (p *Provider) ListContainers(ctx context.Context, is inventory.Session, account models.StorageAccountRef) ([]models.StorageContainer, error) {
	s, pc, err := p.profileFor(is, account.AccountID)
	if err != nil {
		return nil, inventory.NewProviderError("list containers", account.Name, err)
	}
	c := models.StorageContainer{
		Account:          account.Name,
		Name:             BucketContainer,
		PublicAccess:     models.PublicAccessOff,
		AccountID:        account.AccountID,
		StorageAccountID: account.ID,
		Location:         account.Location,
	}
	if account.AllowPublicAccess {
		level, err := bucketAccessLevel(ctx, p.clientsFor(s, pc, account.Location).S3, account.Name)
		if err != nil {
			return nil, inventory.NewProviderError("list containers", account.Name, err)
		}
		c.PublicAccess = level
	}
	return []models.StorageContainer{c}, nil
}

func (p *Provider) SetAccountPublicAccess(ctx context.Context, is inventory.Session, account models.StorageAccountRef, allowed bool) error {
	s, pc, err := p.profileFor(is, account.AccountID)
	if err != nil {
		return inventory.NewProviderError("set public access", account.Name, err)
	}
	if err := setBucketPublicAccess(ctx, p.clientsFor(s, pc, account.Location).S3, account.Name, allowed); err != nil {
		return inventory.NewProviderError("set public access", account.Name, err)
	}
	return nil
}

// IssueDelegatedReadToken presigns a listing request for the bucket.
// SigV4 caps presigned URLs at seven days; longer requests are shortened
// and the descriptor carries the real expiry.
func (p *Provider) IssueDelegatedReadToken(ctx context.Context, is inventory.Session, c models.StorageContainer, expiry time.Time) (models.AccessDescriptor, error) {
	resource := c.Account + "/" + c.Name
	s, pc, err := p.profileFor(is, c.AccountID)
	if err != nil {
		return models.AccessDescriptor{}, inventory.NewProviderError("issue token", resource, err)
	}
	now := p.now()
	ttl := expiry.Sub(now)
	if ttl <= 0 {
		return models.AccessDescriptor{}, inventory.NewProviderError("issue token", resource, errors.New("expiry is in the past"))
	}
	if ttl > MaxPresignExpiry {
		p.logger.Warn("presigned URL lifetime capped", "bucket", c.Account, "requested", ttl.Round(time.Hour), "max", MaxPresignExpiry)
		ttl = MaxPresignExpiry
	}
	url, err := presignBucketRead(ctx, p.clientsFor(s, pc, c.Location).Presign, c.Account, ttl)
	if err != nil {
		return models.AccessDescriptor{}, inventory.NewProviderError("issue token", resource, err)
	}
	return models.AccessDescriptor{
		Account:   c.Account,
		Container: c.Name,
		URL:       url,
		Expiry:    now.Add(ttl).UTC(),
	}, nil
}

// profileFor resolves the profile for accountID, or the active one.
func (p *Provider) profileFor(is inventory.Session, accountID string) (*session, *common.ProfileConfig, error) {
	s, err := asSession(is)
	if err != nil {
		return nil, nil, err
	}
	if pc, ok := s.byID[accountID]; ok {
		return s, pc, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if accountID == "" && s.active != nil {
		return s, s.active, nil
	}
	return nil, nil, fmt.Errorf("no profile for account %q", accountID)
}

func (p *Provider) regionsFor(ctx context.Context, s *session, pc *common.ProfileConfig) ([]string, error) {
	if len(p.opts.Regions) > 0 {
		return p.opts.Regions, nil
	}
	s.mu.Lock()
	cached, ok := s.regions[pc.AccountID]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}
	regions, err := p.loader.GetActiveRegions(ctx, pc)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.regions[pc.AccountID] = regions
	s.mu.Unlock()
	return regions, nil
}

func (p *Provider) clientsFor(s *session, pc *common.ProfileConfig, region string) *regionalClients {
	if region == "" {
		region = pc.Region
	}
	key := pc.AccountID + "/" + region
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[key]; ok {
		return c
	}
	c := p.factory(p.loader.ConfigForRegion(pc, region))
	s.clients[key] = c
	return c
}

func asSession(is inventory.Session) (*session, error) {
	s, ok := is.(*session)
	if !ok || s == nil {
		return nil, fmt.Errorf("not an aws session: %T", is)
	}
	return s, nil
}

var _ inventory.Provider = (*Provider)(nil)
