package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPolicyFile is looked up in the working directory when --policy is
// not given.
const DefaultPolicyFile = "ea.yaml"

// LoadPolicy reads and parses a policy file. Only version 1 is supported.
func LoadPolicy(path string) (*PolicyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg PolicyConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse policy %s: %w", path, err)
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported policy version %d", cfg.Version)
	}

	if cfg.Domains == nil {
		cfg.Domains = make(map[string]DomainConfig)
	}
	if cfg.Rules == nil {
		cfg.Rules = make(map[string]RuleConfig)
	}
	if cfg.Enforcement == nil {
		cfg.Enforcement = make(map[string]EnforcementConfig)
	}

	return &cfg, nil
}

// LoadOptional loads path when it is non-empty, otherwise DefaultPolicyFile
// if that exists. It returns (nil, nil) when no policy applies.
func LoadOptional(path string) (*PolicyConfig, error) {
	if path != "" {
		return LoadPolicy(path)
	}
	if _, err := os.Stat(DefaultPolicyFile); err != nil {
		return nil, nil
	}
	return LoadPolicy(DefaultPolicyFile)
}
