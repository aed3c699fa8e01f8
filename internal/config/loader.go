package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	defaultLedgerFile      = "ea-tokens.txt"
	defaultConfirmToken    = "CONFIRM"
	defaultExpiryDays      = 30
	defaultConfigDirectory = "exposure-advisor"
)

// DefaultLoader reads a YAML file. A missing file yields Default().
type DefaultLoader struct {
	path string
}

// NewDefaultLoader returns a loader for path, or for the per-user default
// location when path is empty.
func NewDefaultLoader(path string) *DefaultLoader {
	if path == "" {
		path = DefaultPath()
	}
	return &DefaultLoader{path: path}
}

// DefaultPath returns ~/.config/exposure-advisor/config.yaml, honouring
// XDG_CONFIG_HOME.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, defaultConfigDirectory, "config.yaml")
}

func (l *DefaultLoader) ConfigPath() string { return l.path }

func (l *DefaultLoader) Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", l.path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", l.path, err)
	}
	applyDefaults(cfg)

	if errs := Validate(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("config %s: %w", l.path, errors.Join(errs...))
	}
	return cfg, nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Advisor.ConfirmationToken == "" {
		cfg.Advisor.ConfirmationToken = defaultConfirmToken
	}
	if cfg.Advisor.DefaultExpiryDays == 0 {
		cfg.Advisor.DefaultExpiryDays = defaultExpiryDays
	}
	if cfg.Output.LedgerPath == "" {
		cfg.Output.LedgerPath = defaultLedgerFile
	}
}

// Validate returns every semantic problem in cfg.
func Validate(cfg *Config) []error {
	var errs []error
	for _, p := range cfg.Advisor.SensitivePorts {
		if p < 1 || p > 65535 {
			errs = append(errs, fmt.Errorf("advisor.sensitive_ports: %d outside 1-65535", p))
		}
	}
	switch cfg.Advisor.DefaultExpiryDays {
	case 7, 30, 90:
	default:
		errs = append(errs, fmt.Errorf("advisor.default_expiry_days: %d; must be 7, 30 or 90", cfg.Advisor.DefaultExpiryDays))
	}
	for _, s := range cfg.Advisor.OpenSources {
		if s == "" {
			errs = append(errs, errors.New("advisor.open_sources: empty entry"))
		}
	}
	return errs
}
