package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/config"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/engine"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/inventory"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/logs"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/policy"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/providers/aws/common"
	awssecurity "github.com/pankaj-dahiya-devops/exposure-advisor/internal/providers/aws/security"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/providers/azure"
	kube "github.com/pankaj-dahiya-devops/exposure-advisor/internal/providers/kubernetes"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/providers/static"
	netpack "github.com/pankaj-dahiya-devops/exposure-advisor/internal/rulepacks/network"
	storagepack "github.com/pankaj-dahiya-devops/exposure-advisor/internal/rulepacks/storage"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/rules"
)

// globalOptions holds the flags shared by every subcommand.
type globalOptions struct {
	provider   string
	accounts   []string
	inventory  string
	writeBack  bool
	profile    string
	regions    []string
	kubeCtx    string
	kubeconfig string
	policyPath string
	configPath string
	verbose    bool
	noColor    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "ea",
		Short:         "Exposure advisor: find and fix internet-exposed rules and public storage",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.provider, "provider", "azure", "Cloud provider: azure, aws, kubernetes or static")
	pf.StringSliceVar(&opts.accounts, "account", nil, "Restrict to these account IDs or names (repeatable)")
	pf.StringVar(&opts.inventory, "inventory", "", "Snapshot file for --provider static")
	pf.BoolVar(&opts.writeBack, "write-back", false, "Persist static snapshot changes to --inventory")
	pf.StringVar(&opts.profile, "profile", "", "AWS profile name (default: every configured profile)")
	pf.StringSliceVar(&opts.regions, "region", nil, "AWS region(s) (default: all enabled regions)")
	pf.StringVar(&opts.kubeCtx, "context", "", "Kubeconfig context (default: current context)")
	pf.StringVar(&opts.kubeconfig, "kubeconfig", "", "Path to kubeconfig (default: $KUBECONFIG or ~/.kube/config)")
	pf.StringVar(&opts.policyPath, "policy", "", "Policy file (default: ./"+policy.DefaultPolicyFile+" when present)")
	pf.StringVar(&opts.configPath, "config", "", "Config file (default: "+config.DefaultPath()+")")
	pf.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")
	pf.BoolVar(&opts.noColor, "no-color", false, "Disable coloured output")

	root.AddCommand(newScanCmd(opts))
	root.AddCommand(newRemediateCmd(opts))
	root.AddCommand(newDoctorCmd(opts))
	root.AddCommand(newVersionCmd())
	return root
}

// deps is everything a command needs after flags and files are read.
type deps struct {
	cfg      *config.Config
	policy   *policy.PolicyConfig
	logger   *slog.Logger
	provider inventory.Provider
}

// setup loads config and policy, builds the logger and the provider.
func setup(cmd *cobra.Command, opts *globalOptions) (*deps, error) {
	logger := logs.New(cmd.ErrOrStderr(), opts.verbose, opts.noColor)

	cfg, err := config.NewDefaultLoader(opts.configPath).Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	pol, err := policy.LoadOptional(opts.policyPath)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	if pol != nil {
		if errs := policy.Validate(pol, allRuleIDs()); len(errs) > 0 {
			for _, e := range errs {
				logger.Error("policy", "error", e)
			}
			return nil, fmt.Errorf("policy has %d error(s)", len(errs))
		}
	}

	provider, err := buildProvider(opts, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &deps{cfg: cfg, policy: pol, logger: logger, provider: provider}, nil
}

// buildProvider selects the inventory backend. Flags win over config.
func buildProvider(opts *globalOptions, cfg *config.Config, logger *slog.Logger) (inventory.Provider, error) {
	switch strings.ToLower(opts.provider) {
	case azure.ProviderName:
		return azure.NewProvider(azure.Options{TenantID: cfg.Azure.TenantID}, logger), nil
	case awssecurity.ProviderName:
		profile := opts.profile
		if profile == "" {
			profile = cfg.AWS.DefaultProfile
		}
		regions := opts.regions
		if len(regions) == 0 && cfg.AWS.DefaultRegion != "" {
			regions = []string{cfg.AWS.DefaultRegion}
		}
		loader := common.NewDefaultAWSClientProvider().WithSDKLogger(logs.SDKLogger(logger))
		return awssecurity.NewProvider(awssecurity.Options{Profile: profile, Regions: regions}, loader, logger), nil
	case kube.ProviderName:
		kubeconfig := opts.kubeconfig
		if kubeconfig == "" {
			kubeconfig = cfg.Kubernetes.Kubeconfig
		}
		kctx := opts.kubeCtx
		if kctx == "" {
			kctx = cfg.Kubernetes.Context
		}
		return kube.NewProvider(kube.NewDefaultKubeClientProvider(kubeconfig), kctx, logger), nil
	case static.ProviderName:
		if opts.inventory == "" {
			return nil, fmt.Errorf("--provider static requires --inventory")
		}
		return static.NewProvider(static.Options{Path: opts.inventory, WriteBack: opts.writeBack}, logger), nil
	}
	return nil, fmt.Errorf("unknown provider %q: want azure, aws, kubernetes or static", opts.provider)
}

// newEngine wires the rule packs into a scan engine.
func (rt *deps) newEngine() *engine.DefaultEngine {
	registry := rules.NewRegistryWith(netpack.New(), storagepack.New())
	return engine.NewDefaultEngine(rt.provider, registry, rt.policy, rt.logger)
}

// scanOptions maps config and flags to engine options.
func (rt *deps) scanOptions(opts *globalOptions) engine.ScanOptions {
	accounts := opts.accounts
	if len(accounts) == 0 && rt.provider.Name() == azure.ProviderName {
		accounts = rt.cfg.Azure.Subscriptions
	}
	return engine.ScanOptions{
		Accounts:       accounts,
		SensitivePorts: rt.cfg.Advisor.SensitivePorts,
		OpenSources:    rt.cfg.Advisor.OpenSources,
		GenericSources: rt.cfg.Advisor.GenericSources,
	}
}

// scopeLabel names the resource-group column for the active provider.
func scopeLabel(provider string) string {
	switch provider {
	case awssecurity.ProviderName:
		return "VPC"
	case kube.ProviderName:
		return "NAMESPACE"
	}
	return "RESOURCE GROUP"
}

// allRuleIDs returns every rule ID known to the shipped rule packs.
func allRuleIDs() []string {
	return rules.NewRegistryWith(netpack.New(), storagepack.New()).IDs()
}
