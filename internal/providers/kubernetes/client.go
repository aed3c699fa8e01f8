package kubernetes

import (
	"fmt"

	k8sclient "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// KubeClientProvider creates clientsets for kubeconfig contexts.
type KubeClientProvider interface {
	// ClientsetForContext returns a clientset for contextName, or for the
	// kubeconfig's current context when contextName is empty.
	ClientsetForContext(contextName string) (k8sclient.Interface, ClusterInfo, error)
}

// DefaultKubeClientProvider reads the kubeconfig the way kubectl does: an
// explicit path wins, otherwise $KUBECONFIG, otherwise ~/.kube/config.
type DefaultKubeClientProvider struct {
	kubeconfig string
}

// NewDefaultKubeClientProvider returns a provider for the kubeconfig at path.
// An empty path uses the kubectl lookup order.
func NewDefaultKubeClientProvider(path string) *DefaultKubeClientProvider {
	return &DefaultKubeClientProvider{kubeconfig: path}
}

// ClientsetForContext implements KubeClientProvider.
func (p *DefaultKubeClientProvider) ClientsetForContext(contextName string) (k8sclient.Interface, ClusterInfo, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if p.kubeconfig != "" {
		rules.ExplicitPath = p.kubeconfig
	}
	loader := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules,
		&clientcmd.ConfigOverrides{CurrentContext: contextName})

	info, err := clusterInfo(loader, contextName)
	if err != nil {
		return nil, ClusterInfo{}, err
	}

	rest, err := loader.ClientConfig()
	if err != nil {
		return nil, ClusterInfo{}, fmt.Errorf("build REST config for context %q: %w", info.ContextName, err)
	}
	cs, err := k8sclient.NewForConfig(rest)
	if err != nil {
		return nil, ClusterInfo{}, fmt.Errorf("build clientset for context %q: %w", info.ContextName, err)
	}
	return cs, info, nil
}

// clusterInfo resolves the effective context and its API server from the
// merged kubeconfig.
func clusterInfo(loader clientcmd.ClientConfig, contextName string) (ClusterInfo, error) {
	raw, err := loader.RawConfig()
	if err != nil {
		return ClusterInfo{}, fmt.Errorf("load kubeconfig: %w", err)
	}
	name := contextName
	if name == "" {
		name = raw.CurrentContext
	}
	kctx, ok := raw.Contexts[name]
	if !ok {
		return ClusterInfo{}, fmt.Errorf("kubeconfig context %q not found", name)
	}
	info := ClusterInfo{ContextName: name}
	if cluster, ok := raw.Clusters[kctx.Cluster]; ok {
		info.Server = cluster.Server
	}
	return info, nil
}
