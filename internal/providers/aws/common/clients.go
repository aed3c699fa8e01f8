// Package common loads AWS profiles and the account-level clients shared by
// the AWS provider.
package common

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// ProfileConfig is one loaded profile. Each backs one advisor account.
type ProfileConfig struct {
	ProfileName string
	AccountID   string
	ARN         string // caller identity reported by STS
	Region      string // home region; regional clients derive from Config
	Config      aws.Config
	Clients     *ClientSet
}

// AWSClientProvider resolves profiles and the regions to scan for them.
type AWSClientProvider interface {
	LoadProfile(ctx context.Context, profile string) (*ProfileConfig, error)
	LoadAllProfiles(ctx context.Context) ([]*ProfileConfig, error)
	GetActiveRegions(ctx context.Context, pc *ProfileConfig) ([]string, error)
	ConfigForRegion(pc *ProfileConfig, region string) aws.Config
}

// STSClient resolves the caller identity of a profile.
type STSClient interface {
	GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// EC2RegionClient lists the regions enabled for an account.
type EC2RegionClient interface {
	DescribeRegions(context.Context, *ec2.DescribeRegionsInput, ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error)
}

// ClientSet holds the clients built against a profile's home region.
type ClientSet struct {
	STS STSClient
	EC2 EC2RegionClient
}

// ClientFactory builds a ClientSet; tests swap in fakes.
type ClientFactory func(aws.Config) *ClientSet

// NewClientSet is the production ClientFactory.
func NewClientSet(cfg aws.Config) *ClientSet {
	return &ClientSet{STS: sts.NewFromConfig(cfg), EC2: ec2.NewFromConfig(cfg)}
}
