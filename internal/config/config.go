package config

// Config is the top-level application configuration.
// It is loaded from ~/.config/exposure-advisor/config.yaml and must never be
// committed with real secrets.
type Config struct {
	Advisor    AdvisorConfig    `yaml:"advisor"    json:"advisor"`
	Azure      AzureConfig      `yaml:"azure"      json:"azure"`
	AWS        AWSConfig        `yaml:"aws"        json:"aws"`
	Kubernetes KubernetesConfig `yaml:"kubernetes" json:"kubernetes"`
	Output     OutputConfig     `yaml:"output"     json:"output"`
}

// AdvisorConfig tunes classification and the remediation gates.
type AdvisorConfig struct {
	// SensitivePorts replaces the default {22, 3389, 1433, 3306, 5432}.
	// Order sets which port tags a multi-port finding.
	SensitivePorts []int `yaml:"sensitive_ports" json:"sensitive_ports"`

	// OpenSources replaces the default {"*", "0.0.0.0/0", "Internet"}.
	OpenSources []string `yaml:"open_sources" json:"open_sources"`

	// GenericSources are never inferred as trusted ranges.
	GenericSources []string `yaml:"generic_sources" json:"generic_sources"`

	// ConfirmationToken is the literal required before delete and
	// secure-immediately. Case-sensitive.
	ConfirmationToken string `yaml:"confirmation_token" json:"confirmation_token"`

	// DefaultExpiryDays is offered as the token horizon default.
	DefaultExpiryDays int `yaml:"default_expiry_days" json:"default_expiry_days"`
}

// AzureConfig holds Azure defaults used when flags are not provided.
type AzureConfig struct {
	// Subscriptions limits the scan to these subscription IDs.
	Subscriptions []string `yaml:"subscriptions" json:"subscriptions"`

	// TenantID pins the credential to one tenant.
	TenantID string `yaml:"tenant_id" json:"tenant_id"`
}

// AWSConfig holds AWS-specific defaults used when flags are not provided.
type AWSConfig struct {
	// DefaultRegion limits scans to one region when --region is not given.
	// Empty means every enabled region.
	DefaultRegion string `yaml:"default_region" json:"default_region"`

	// DefaultProfile is used when no --profile flag is provided.
	DefaultProfile string `yaml:"default_profile" json:"default_profile"`
}

// KubernetesConfig selects the kubeconfig context.
type KubernetesConfig struct {
	Context    string `yaml:"context"    json:"context"`
	Kubeconfig string `yaml:"kubeconfig" json:"kubeconfig"`
}

// OutputConfig sets where run artefacts are written.
type OutputConfig struct {
	LedgerPath  string `yaml:"ledger_path"  json:"ledger_path"`
	SummaryPath string `yaml:"summary_path" json:"summary_path"`
}

// Loader is the interface for reading Config from disk.
// Default implementation reads from ~/.config/exposure-advisor/config.yaml.
type Loader interface {
	// Load reads, parses, and validates the configuration file.
	Load() (*Config, error)

	// ConfigPath returns the absolute path to the configuration file.
	ConfigPath() string
}
