// Package kubernetes binds the advisor to a Kubernetes cluster: the
// kubeconfig context is the account, and ingress NetworkPolicies and
// LoadBalancer services are rule groups. Clusters have no storage plane.
package kubernetes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8sclient "k8s.io/client-go/kubernetes"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/inventory"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
)

// ProviderName is the key used on the command line and in reports.
const ProviderName = "kubernetes"

type session struct {
	clientset k8sclient.Interface
	info      ClusterInfo
	version   string
}

func (s *session) Identity() string {
	id := "context " + s.info.ContextName
	if s.info.Server != "" {
		id += " (" + s.info.Server + ")"
	}
	return id
}

// Provider implements inventory.Provider for one kubeconfig context.
type Provider struct {
	contextName string
	clients     KubeClientProvider
	logger      *slog.Logger
}

// NewProvider returns a Provider for contextName. An empty name uses the
// kubeconfig's current context.
func NewProvider(clients KubeClientProvider, contextName string, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Provider{contextName: contextName, clients: clients, logger: logger}
}

func (p *Provider) Name() string { return ProviderName }

// Authenticate builds the clientset and proves it by reading the server
// version.
func (p *Provider) Authenticate(_ context.Context) (inventory.Session, error) {
	cs, info, err := p.clients.ClientsetForContext(p.contextName)
	if err != nil {
		return nil, inventory.NewAuthError(ProviderName, "load kubeconfig", err)
	}
	v, err := cs.Discovery().ServerVersion()
	if err != nil {
		return nil, inventory.NewAuthError(ProviderName, "server version", err)
	}
	p.logger.Debug("connected to cluster", "context", info.ContextName, "version", v.GitVersion)
	return &session{clientset: cs, info: info, version: v.GitVersion}, nil
}

func (p *Provider) SetActiveAccount(_ context.Context, is inventory.Session, accountID string) error {
	s, err := asSession(is)
	if err != nil {
		return inventory.NewAuthError(ProviderName, "set context", err)
	}
	if accountID != s.info.ContextName {
		return inventory.NewAuthError(ProviderName, "set context",
			fmt.Errorf("session is bound to context %q, not %q", s.info.ContextName, accountID))
	}
	return nil
}

func (p *Provider) ListAccounts(_ context.Context, is inventory.Session) ([]models.AccountRef, error) {
	s, err := asSession(is)
	if err != nil {
		return nil, inventory.NewProviderError("list contexts", "", err)
	}
	return []models.AccountRef{{ID: s.info.ContextName, Name: s.info.ContextName, Provider: ProviderName}}, nil
}

func (p *Provider) ListNetworkRuleGroups(ctx context.Context, is inventory.Session, accountID string) ([]models.NetworkRuleGroup, error) {
	s, err := asSession(is)
	if err != nil {
		return nil, inventory.NewProviderError("list network policies", accountID, err)
	}
	groups, err := collectRuleGroups(ctx, s.clientset, s.info)
	if err != nil {
		return groups, inventory.NewProviderError("list network policies", accountID, err)
	}
	return groups, nil
}

// UpdateRuleGroup reads the object behind group, rewrites the sources of
// the rules group names, and updates it whole.
func (p *Provider) UpdateRuleGroup(ctx context.Context, is inventory.Session, group models.NetworkRuleGroup) error {
	s, err := asSession(is)
	if err != nil {
		return inventory.NewProviderError("update rule group", group.ID, err)
	}
	kind, ns, name, ok := splitGroupID(group.ID)
	if !ok {
		return inventory.NewProviderError("update rule group", group.ID, errors.New("malformed group ID"))
	}
	switch kind {
	case kindNetworkPolicy:
		api := s.clientset.NetworkingV1().NetworkPolicies(ns)
		np, err := api.Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return inventory.NewProviderError("update rule group", group.ID, err)
		}
		applyPolicy(np, group)
		if _, err := api.Update(ctx, np, metav1.UpdateOptions{}); err != nil {
			return inventory.NewProviderError("update rule group", group.ID, err)
		}
	case kindService:
		api := s.clientset.CoreV1().Services(ns)
		svc, err := api.Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return inventory.NewProviderError("update rule group", group.ID, err)
		}
		if idx := group.RuleIndex("load-balancer"); idx >= 0 {
			svc.Spec.LoadBalancerSourceRanges = append([]string(nil), group.Rules[idx].Sources...)
		}
		if _, err := api.Update(ctx, svc, metav1.UpdateOptions{}); err != nil {
			return inventory.NewProviderError("update rule group", group.ID, err)
		}
	default:
		return inventory.NewProviderError("update rule group", group.ID, fmt.Errorf("unknown kind %q", kind))
	}
	return nil
}

// DeleteRule removes an ingress rule from a NetworkPolicy. A service cannot
// lose its load balancer rule without being changed in type, so deleting
// one is unsupported.
func (p *Provider) DeleteRule(ctx context.Context, is inventory.Session, group models.NetworkRuleGroup, ruleName string) error {
	resource := group.ID + "/" + ruleName
	s, err := asSession(is)
	if err != nil {
		return inventory.NewProviderError("delete rule", resource, err)
	}
	kind, ns, name, ok := splitGroupID(group.ID)
	if !ok {
		return inventory.NewProviderError("delete rule", resource, errors.New("malformed group ID"))
	}
	if kind != kindNetworkPolicy {
		return inventory.NewProviderError("delete rule", resource, inventory.ErrUnsupported)
	}
	api := s.clientset.NetworkingV1().NetworkPolicies(ns)
	np, err := api.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return inventory.NewProviderError("delete rule", resource, err)
	}
	if !removeIngressRule(np, ruleName) {
		return inventory.NewProviderError("delete rule", resource, errors.New("rule not found"))
	}
	if _, err := api.Update(ctx, np, metav1.UpdateOptions{}); err != nil {
		return inventory.NewProviderError("delete rule", resource, err)
	}
	return nil
}

func (p *Provider) ListStorageAccounts(_ context.Context, _ inventory.Session, accountID string) ([]models.StorageAccountRef, error) {
	return nil, inventory.NewProviderError("list storage accounts", accountID, inventory.ErrUnsupported)
}

func (p *Provider) ListContainers(_ context.Context, _ inventory.Session, account models.StorageAccountRef) ([]models.StorageContainer, error) {
	return nil, inventory.NewProviderError("list containers", account.Name, inventory.ErrUnsupported)
}

func (p *Provider) SetAccountPublicAccess(_ context.Context, _ inventory.Session, account models.StorageAccountRef, _ bool) error {
	return inventory.NewProviderError("set public access", account.Name, inventory.ErrUnsupported)
}

func (p *Provider) IssueDelegatedReadToken(_ context.Context, _ inventory.Session, c models.StorageContainer, _ time.Time) (models.AccessDescriptor, error) {
	return models.AccessDescriptor{}, inventory.NewProviderError("issue token", c.Account+"/"+c.Name, inventory.ErrUnsupported)
}

func asSession(is inventory.Session) (*session, error) {
	s, ok := is.(*session)
	if !ok || s == nil {
		return nil, fmt.Errorf("not a kubernetes session: %T", is)
	}
	return s, nil
}

var _ inventory.Provider = (*Provider)(nil)
