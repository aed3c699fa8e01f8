package common

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go/logging"
)

// fallbackRegion is used when neither the profile nor the environment sets
// one; STS and EC2 DescribeRegions both answer from there.
const fallbackRegion = "us-east-1"

const defaultProfile = "default"

// DefaultAWSClientProvider loads profiles from the shared AWS config files.
type DefaultAWSClientProvider struct {
	factory   ClientFactory
	sdkLogger logging.Logger
	files     []sharedFile
}

// NewDefaultAWSClientProvider returns a provider backed by the real AWS SDK.
func NewDefaultAWSClientProvider() *DefaultAWSClientProvider {
	return NewDefaultAWSClientProviderWithFactory(NewClientSet)
}

// NewDefaultAWSClientProviderWithFactory returns a provider that builds its
// clients with f.
func NewDefaultAWSClientProviderWithFactory(f ClientFactory) *DefaultAWSClientProvider {
	return &DefaultAWSClientProvider{factory: f, files: defaultSharedFiles()}
}

// WithSDKLogger routes SDK retry logging to l.
func (p *DefaultAWSClientProvider) WithSDKLogger(l logging.Logger) *DefaultAWSClientProvider {
	p.sdkLogger = l
	return p
}

// LoadProfile loads one profile and resolves its caller identity. An empty
// name selects the SDK default chain.
func (p *DefaultAWSClientProvider) LoadProfile(ctx context.Context, profile string) (*ProfileConfig, error) {
	display := profile
	if display == "" {
		display = defaultProfile
	}

	var opts []func(*awsconfig.LoadOptions) error
	if profile != "" && profile != defaultProfile {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	if p.sdkLogger != nil {
		opts = append(opts, awsconfig.WithLogger(p.sdkLogger), awsconfig.WithClientLogMode(aws.LogRetries))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS profile %q: %w", display, err)
	}
	if cfg.Region == "" {
		cfg.Region = fallbackRegion
	}

	clients := p.factory(cfg)
	accountID, arn, err := resolveIdentity(ctx, clients.STS)
	if err != nil {
		return nil, fmt.Errorf("resolve identity for profile %q: %w", display, err)
	}

	return &ProfileConfig{
		ProfileName: display,
		AccountID:   accountID,
		ARN:         arn,
		Region:      cfg.Region,
		Config:      cfg,
		Clients:     clients,
	}, nil
}

// LoadAllProfiles loads every profile named in the shared files. Profiles
// that fail to load are skipped; it errors only when none succeed.
func (p *DefaultAWSClientProvider) LoadAllProfiles(ctx context.Context) ([]*ProfileConfig, error) {
	names, err := profileNames(p.files)
	if err != nil {
		return nil, fmt.Errorf("discover AWS profiles: %w", err)
	}
	if len(names) == 0 {
		names = []string{defaultProfile}
	}

	var (
		loaded []*ProfileConfig
		errs   []error
	)
	for _, name := range names {
		pc, err := p.LoadProfile(ctx, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		loaded = append(loaded, pc)
	}
	if len(loaded) == 0 {
		return nil, fmt.Errorf("no usable AWS profile: %w", errors.Join(errs...))
	}
	return loaded, nil
}

// GetActiveRegions lists the opted-in regions for the profile's account,
// sorted by name.
func (p *DefaultAWSClientProvider) GetActiveRegions(ctx context.Context, pc *ProfileConfig) ([]string, error) {
	out, err := pc.Clients.EC2.DescribeRegions(ctx, &ec2.DescribeRegionsInput{AllRegions: aws.Bool(false)})
	if err != nil {
		return nil, fmt.Errorf("describe regions for profile %q: %w", pc.ProfileName, err)
	}
	var regions []string
	for _, r := range out.Regions {
		if name := aws.ToString(r.RegionName); name != "" {
			regions = append(regions, name)
		}
	}
	sort.Strings(regions)
	return regions, nil
}

// ConfigForRegion returns a copy of the profile's config pinned to region.
func (p *DefaultAWSClientProvider) ConfigForRegion(pc *ProfileConfig, region string) aws.Config {
	regional := pc.Config.Copy()
	regional.Region = region
	return regional
}

func resolveIdentity(ctx context.Context, client STSClient) (accountID, arn string, err error) {
	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", "", fmt.Errorf("STS GetCallerIdentity: %w", err)
	}
	if out.Account == nil {
		return "", "", errors.New("STS GetCallerIdentity returned no account")
	}
	return aws.ToString(out.Account), aws.ToString(out.Arn), nil
}

// sharedFile is one INI file the SDK reads profiles from. In the config file
// every section except [default] carries a "profile " prefix.
type sharedFile struct {
	path     string
	prefixed bool
}

func defaultSharedFiles() []sharedFile {
	creds := os.Getenv("AWS_SHARED_CREDENTIALS_FILE")
	if creds == "" {
		creds = awsconfig.DefaultSharedCredentialsFilename()
	}
	conf := os.Getenv("AWS_CONFIG_FILE")
	if conf == "" {
		conf = awsconfig.DefaultSharedConfigFilename()
	}
	return []sharedFile{{path: creds}, {path: conf, prefixed: true}}
}

// profileNames returns the distinct profile names across files in
// first-seen order.
func profileNames(files []sharedFile) ([]string, error) {
	seen := map[string]bool{}
	var names []string
	for _, f := range files {
		sections, err := f.sections()
		if err != nil {
			return nil, err
		}
		for _, s := range sections {
			if s != "" && !seen[s] {
				seen[s] = true
				names = append(names, s)
			}
		}
	}
	return names, nil
}

// sections returns the profile name of every [section] header. A missing
// file has no sections.
func (f sharedFile) sections() ([]string, error) {
	fh, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.path, err)
	}
	defer fh.Close()

	var names []string
	sc := bufio.NewScanner(fh)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		header, ok := strings.CutPrefix(line, "[")
		if !ok {
			continue
		}
		header, ok = strings.CutSuffix(header, "]")
		if !ok {
			continue
		}
		header = strings.TrimSpace(header)
		if f.prefixed && header != defaultProfile {
			rest, ok := strings.CutPrefix(header, "profile ")
			if !ok {
				// sso-session and services blocks are not profiles.
				continue
			}
			header = strings.TrimSpace(rest)
		}
		names = append(names, header)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", f.path, err)
	}
	return names, nil
}
