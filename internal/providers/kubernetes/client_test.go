package kubernetes

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const twoContexts = `apiVersion: v1
kind: Config
current-context: staging
clusters:
- name: prod-cluster
  cluster:
    server: https://prod.example.internal:6443
- name: staging-cluster
  cluster:
    server: https://staging.example.internal:6443
contexts:
- name: prod
  context:
    cluster: prod-cluster
    user: ops
- name: staging
  context:
    cluster: staging-cluster
    user: ops
users:
- name: ops
  user:
    token: not-a-real-token
`

func writeKubeconfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	if err := os.WriteFile(path, []byte(twoContexts), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestClientsetForContext_ResolvesContext(t *testing.T) {
	p := NewDefaultKubeClientProvider(writeKubeconfig(t))

	cases := map[string]ClusterInfo{
		"":     {ContextName: "staging", Server: "https://staging.example.internal:6443"},
		"prod": {ContextName: "prod", Server: "https://prod.example.internal:6443"},
	}
	for ctxName, want := range cases {
		cs, info, err := p.ClientsetForContext(ctxName)
		if err != nil {
			t.Fatalf("context %q: %v", ctxName, err)
		}
		if cs == nil || info != want {
			t.Errorf("context %q: got %+v", ctxName, info)
		}
	}
}

func TestClientsetForContext_UnknownContext(t *testing.T) {
	p := NewDefaultKubeClientProvider(writeKubeconfig(t))
	_, _, err := p.ClientsetForContext("dev")
	if err == nil || !strings.Contains(err.Error(), `"dev" not found`) {
		t.Fatalf("err = %v", err)
	}
}

func TestClientsetForContext_KubeconfigFromEnvironment(t *testing.T) {
	t.Setenv("KUBECONFIG", writeKubeconfig(t))
	_, info, err := NewDefaultKubeClientProvider("").ClientsetForContext("prod")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.ContextName != "prod" {
		t.Errorf("info: %+v", info)
	}
}
