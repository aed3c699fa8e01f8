package kubernetes

import "strings"

// ClusterInfo identifies a Kubernetes cluster and the kubeconfig context used
// to connect to it.
type ClusterInfo struct {
	// ContextName is the kubeconfig context name used to connect.
	ContextName string

	// Server is the Kubernetes API server URL resolved from the kubeconfig.
	Server string
}

// Rule group kinds. A group ID is "<kind>/<namespace>/<name>".
const (
	kindNetworkPolicy = "networkpolicy"
	kindService       = "service"
)

// selectorPrefix marks a policy peer that selects pods or namespaces rather
// than addresses. Such sources are never open.
const selectorPrefix = "selector:"

func groupID(kind, namespace, name string) string {
	return kind + "/" + namespace + "/" + name
}

// splitGroupID is the inverse of groupID.
func splitGroupID(id string) (kind, namespace, name string, ok bool) {
	parts := strings.SplitN(id, "/", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
