package kubernetes

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8sclient "k8s.io/client-go/kubernetes"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
)

// collectRuleGroups lists ingress NetworkPolicies and LoadBalancer services
// across all namespaces. Policies come first, each list in API order.
func collectRuleGroups(ctx context.Context, clientset k8sclient.Interface, info ClusterInfo) ([]models.NetworkRuleGroup, error) {
	policies, err := clientset.NetworkingV1().NetworkPolicies(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list network policies: %w", err)
	}
	var groups []models.NetworkRuleGroup
	for i := range policies.Items {
		np := &policies.Items[i]
		if !hasIngress(np) {
			continue
		}
		groups = append(groups, groupFromPolicy(np, info.ContextName))
	}

	services, err := clientset.CoreV1().Services(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return groups, fmt.Errorf("list services: %w", err)
	}
	for i := range services.Items {
		svc := &services.Items[i]
		if svc.Spec.Type != corev1.ServiceTypeLoadBalancer {
			continue
		}
		groups = append(groups, groupFromService(svc, info.ContextName))
	}
	return groups, nil
}

func hasIngress(np *networkingv1.NetworkPolicy) bool {
	if len(np.Spec.PolicyTypes) == 0 {
		// Without explicit types, ingress is always implied.
		return true
	}
	for _, t := range np.Spec.PolicyTypes {
		if t == networkingv1.PolicyTypeIngress {
			return true
		}
	}
	return false
}

func groupFromPolicy(np *networkingv1.NetworkPolicy, contextName string) models.NetworkRuleGroup {
	g := models.NetworkRuleGroup{
		ID:            groupID(kindNetworkPolicy, np.Namespace, np.Name),
		Name:          np.Name,
		AccountID:     contextName,
		ResourceGroup: np.Namespace,
	}
	names := ingressRuleNames(np.Spec.Ingress)
	for i, in := range np.Spec.Ingress {
		ports, proto := policyPorts(in.Ports)
		g.Rules = append(g.Rules, models.NetworkRule{
			GroupName:     np.Name,
			Name:          names[i],
			Direction:     models.DirectionInbound,
			Access:        models.AccessAllow,
			Sources:       policySources(in.From),
			Ports:         ports,
			Protocol:      proto,
			AccountID:     contextName,
			ResourceGroup: np.Namespace,
		})
	}
	return g
}

// ingressRuleNames names each ingress rule by a hash of its content, so a
// rule keeps its name when other rules of the policy are removed.
// Identical rules get a numeric suffix.
func ingressRuleNames(rules []networkingv1.NetworkPolicyIngressRule) []string {
	names := make([]string, len(rules))
	seen := make(map[string]int)
	for i, r := range rules {
		h := fnv.New32a()
		raw, _ := json.Marshal(r)
		h.Write(raw)
		name := fmt.Sprintf("ingress-%08x", h.Sum32())
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s-%d", name, n)
		}
		names[i] = name
	}
	return names
}

// policySources renders peers. An empty peer list admits every source.
func policySources(peers []networkingv1.NetworkPolicyPeer) []string {
	if len(peers) == 0 {
		return []string{"*"}
	}
	out := make([]string, 0, len(peers))
	for _, p := range peers {
		out = append(out, peerLabel(p))
	}
	return out
}

// peerLabel returns the CIDR of an ipBlock peer, or a stable selector
// label for pod and namespace selectors.
func peerLabel(p networkingv1.NetworkPolicyPeer) string {
	if p.IPBlock != nil {
		return p.IPBlock.CIDR
	}
	var parts []string
	if p.NamespaceSelector != nil {
		parts = append(parts, "ns="+metav1.FormatLabelSelector(p.NamespaceSelector))
	}
	if p.PodSelector != nil {
		parts = append(parts, "pod="+metav1.FormatLabelSelector(p.PodSelector))
	}
	return selectorPrefix + strings.Join(parts, ";")
}

// policyPorts renders ports. An empty list, or a port entry without a
// port, admits every port. Named ports are kept as names.
func policyPorts(ports []networkingv1.NetworkPolicyPort) ([]string, string) {
	if len(ports) == 0 {
		return []string{models.WildcardPort}, "*"
	}
	var out []string
	proto := ""
	for _, p := range ports {
		if proto == "" && p.Protocol != nil {
			proto = strings.ToLower(string(*p.Protocol))
		}
		if p.Port == nil {
			out = append(out, models.WildcardPort)
			continue
		}
		entry := p.Port.String()
		if p.EndPort != nil {
			entry = fmt.Sprintf("%s-%d", entry, *p.EndPort)
		}
		out = append(out, entry)
	}
	if proto == "" {
		proto = "tcp"
	}
	return out, proto
}

// applyPolicy rewrites the peers of every rule of np named in group and
// leaves other rules untouched. Selector sources keep their original peer;
// every other source becomes an ipBlock.
func applyPolicy(np *networkingv1.NetworkPolicy, group models.NetworkRuleGroup) {
	names := ingressRuleNames(np.Spec.Ingress)
	for i := range np.Spec.Ingress {
		idx := group.RuleIndex(names[i])
		if idx < 0 {
			continue
		}
		original := make(map[string]networkingv1.NetworkPolicyPeer)
		for _, p := range np.Spec.Ingress[i].From {
			original[peerLabel(p)] = p
		}
		var from []networkingv1.NetworkPolicyPeer
		for _, s := range group.Rules[idx].Sources {
			if p, ok := original[s]; ok {
				from = append(from, p)
				continue
			}
			if s == "*" {
				// Dropping the peer list would admit every source.
				from = nil
				break
			}
			from = append(from, networkingv1.NetworkPolicyPeer{IPBlock: &networkingv1.IPBlock{CIDR: s}})
		}
		np.Spec.Ingress[i].From = from
	}
}

// removeIngressRule drops the rule named name and reports whether it existed.
func removeIngressRule(np *networkingv1.NetworkPolicy, name string) bool {
	names := ingressRuleNames(np.Spec.Ingress)
	for i, n := range names {
		if n != name {
			continue
		}
		np.Spec.Ingress = append(np.Spec.Ingress[:i], np.Spec.Ingress[i+1:]...)
		return true
	}
	return false
}

// groupFromService exposes a LoadBalancer service as a group with one rule.
// An empty loadBalancerSourceRanges admits every address.
func groupFromService(svc *corev1.Service, contextName string) models.NetworkRuleGroup {
	sources := append([]string(nil), svc.Spec.LoadBalancerSourceRanges...)
	if len(sources) == 0 {
		sources = []string{"0.0.0.0/0"}
	}
	var ports []string
	proto := ""
	for _, p := range svc.Spec.Ports {
		ports = append(ports, strconv.Itoa(int(p.Port)))
		if proto == "" {
			proto = strings.ToLower(string(p.Protocol))
		}
	}
	return models.NetworkRuleGroup{
		ID:            groupID(kindService, svc.Namespace, svc.Name),
		Name:          svc.Name,
		AccountID:     contextName,
		ResourceGroup: svc.Namespace,
		Rules: []models.NetworkRule{{
			GroupName:     svc.Name,
			Name:          "load-balancer",
			Direction:     models.DirectionInbound,
			Access:        models.AccessAllow,
			Sources:       sources,
			Ports:         ports,
			Protocol:      proto,
			AccountID:     contextName,
			ResourceGroup: svc.Namespace,
		}},
	}
}
