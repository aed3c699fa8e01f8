package awssecurity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2svc "github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	eksvc "github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/providers/aws/common"
)

type fakeLoader struct {
	profiles []*common.ProfileConfig
	regions  []string
	err      error
}

func (f *fakeLoader) LoadProfile(_ context.Context, name string) (*common.ProfileConfig, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.profiles {
		if p.ProfileName == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("profile %q not found", name)
}

func (f *fakeLoader) LoadAllProfiles(context.Context) ([]*common.ProfileConfig, error) {
	return f.profiles, f.err
}

func (f *fakeLoader) GetActiveRegions(context.Context, *common.ProfileConfig) ([]string, error) {
	return f.regions, nil
}

func (f *fakeLoader) ConfigForRegion(pc *common.ProfileConfig, region string) aws.Config {
	cfg := pc.Config
	cfg.Region = region
	return cfg
}

type fakeEC2 struct {
	groups      []ec2types.SecurityGroup
	describeErr error
	authorized  []ec2types.IpPermission
	revoked     []ec2types.IpPermission
	revokeErr   error
}

func (f *fakeEC2) DescribeSecurityGroups(_ context.Context, in *ec2svc.DescribeSecurityGroupsInput, _ ...func(*ec2svc.Options)) (*ec2svc.DescribeSecurityGroupsOutput, error) {
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	if len(in.GroupIds) == 0 {
		return &ec2svc.DescribeSecurityGroupsOutput{SecurityGroups: f.groups}, nil
	}
	var out []ec2types.SecurityGroup
	for _, g := range f.groups {
		if aws.ToString(g.GroupId) == in.GroupIds[0] {
			out = append(out, g)
		}
	}
	return &ec2svc.DescribeSecurityGroupsOutput{SecurityGroups: out}, nil
}

func (f *fakeEC2) AuthorizeSecurityGroupIngress(_ context.Context, in *ec2svc.AuthorizeSecurityGroupIngressInput, _ ...func(*ec2svc.Options)) (*ec2svc.AuthorizeSecurityGroupIngressOutput, error) {
	f.authorized = append(f.authorized, in.IpPermissions...)
	return &ec2svc.AuthorizeSecurityGroupIngressOutput{}, nil
}

func (f *fakeEC2) RevokeSecurityGroupIngress(_ context.Context, in *ec2svc.RevokeSecurityGroupIngressInput, _ ...func(*ec2svc.Options)) (*ec2svc.RevokeSecurityGroupIngressOutput, error) {
	if f.revokeErr != nil {
		return nil, f.revokeErr
	}
	f.revoked = append(f.revoked, in.IpPermissions...)
	return &ec2svc.RevokeSecurityGroupIngressOutput{}, nil
}

type bucketState struct {
	location     s3types.BucketLocationConstraint
	policyPublic *bool
	aclGrants    []s3types.Grant
	block        *s3types.PublicAccessBlockConfiguration
}

type fakeS3 struct {
	buckets map[string]*bucketState
	order   []string
}

func apiErr(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

func (f *fakeS3) ListBuckets(context.Context, *s3svc.ListBucketsInput, ...func(*s3svc.Options)) (*s3svc.ListBucketsOutput, error) {
	out := &s3svc.ListBucketsOutput{}
	for _, n := range f.order {
		out.Buckets = append(out.Buckets, s3types.Bucket{Name: aws.String(n)})
	}
	return out, nil
}

func (f *fakeS3) bucket(name *string) (*bucketState, error) {
	b, ok := f.buckets[aws.ToString(name)]
	if !ok {
		return nil, apiErr("NoSuchBucket")
	}
	return b, nil
}

func (f *fakeS3) GetBucketLocation(_ context.Context, in *s3svc.GetBucketLocationInput, _ ...func(*s3svc.Options)) (*s3svc.GetBucketLocationOutput, error) {
	b, err := f.bucket(in.Bucket)
	if err != nil {
		return nil, err
	}
	return &s3svc.GetBucketLocationOutput{LocationConstraint: b.location}, nil
}

func (f *fakeS3) GetBucketPolicyStatus(_ context.Context, in *s3svc.GetBucketPolicyStatusInput, _ ...func(*s3svc.Options)) (*s3svc.GetBucketPolicyStatusOutput, error) {
	b, err := f.bucket(in.Bucket)
	if err != nil {
		return nil, err
	}
	if b.policyPublic == nil {
		return nil, apiErr("NoSuchBucketPolicy")
	}
	return &s3svc.GetBucketPolicyStatusOutput{PolicyStatus: &s3types.PolicyStatus{IsPublic: b.policyPublic}}, nil
}

func (f *fakeS3) GetBucketAcl(_ context.Context, in *s3svc.GetBucketAclInput, _ ...func(*s3svc.Options)) (*s3svc.GetBucketAclOutput, error) {
	b, err := f.bucket(in.Bucket)
	if err != nil {
		return nil, err
	}
	return &s3svc.GetBucketAclOutput{Grants: b.aclGrants}, nil
}

func (f *fakeS3) GetPublicAccessBlock(_ context.Context, in *s3svc.GetPublicAccessBlockInput, _ ...func(*s3svc.Options)) (*s3svc.GetPublicAccessBlockOutput, error) {
	b, err := f.bucket(in.Bucket)
	if err != nil {
		return nil, err
	}
	if b.block == nil {
		return nil, apiErr("NoSuchPublicAccessBlockConfiguration")
	}
	return &s3svc.GetPublicAccessBlockOutput{PublicAccessBlockConfiguration: b.block}, nil
}

func (f *fakeS3) PutPublicAccessBlock(_ context.Context, in *s3svc.PutPublicAccessBlockInput, _ ...func(*s3svc.Options)) (*s3svc.PutPublicAccessBlockOutput, error) {
	b, err := f.bucket(in.Bucket)
	if err != nil {
		return nil, err
	}
	b.block = in.PublicAccessBlockConfiguration
	return &s3svc.PutPublicAccessBlockOutput{}, nil
}

func (f *fakeS3) DeletePublicAccessBlock(_ context.Context, in *s3svc.DeletePublicAccessBlockInput, _ ...func(*s3svc.Options)) (*s3svc.DeletePublicAccessBlockOutput, error) {
	b, err := f.bucket(in.Bucket)
	if err != nil {
		return nil, err
	}
	b.block = nil
	return &s3svc.DeletePublicAccessBlockOutput{}, nil
}

type fakePresign struct {
	ttl time.Duration
	err error
}

func (f *fakePresign) PresignBucketList(_ context.Context, bucket string, ttl time.Duration) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.ttl = ttl
	return fmt.Sprintf("https://%s.s3.amazonaws.com/?list-type=2&X-Amz-Expires=%d", bucket, int(ttl.Seconds())), nil
}

// fakeEKS serves a single page of clusters.
type fakeEKS struct {
	clusters []ekstypes.Cluster
	updates  []*eksvc.UpdateClusterConfigInput
}

func (f *fakeEKS) ListClusters(context.Context, *eksvc.ListClustersInput, ...func(*eksvc.Options)) (*eksvc.ListClustersOutput, error) {
	out := &eksvc.ListClustersOutput{}
	for _, c := range f.clusters {
		out.Clusters = append(out.Clusters, aws.ToString(c.Name))
	}
	return out, nil
}

func (f *fakeEKS) DescribeCluster(_ context.Context, in *eksvc.DescribeClusterInput, _ ...func(*eksvc.Options)) (*eksvc.DescribeClusterOutput, error) {
	for i := range f.clusters {
		if aws.ToString(f.clusters[i].Name) == aws.ToString(in.Name) {
			return &eksvc.DescribeClusterOutput{Cluster: &f.clusters[i]}, nil
		}
	}
	return nil, fmt.Errorf("cluster %s not found", aws.ToString(in.Name))
}

func (f *fakeEKS) UpdateClusterConfig(_ context.Context, in *eksvc.UpdateClusterConfigInput, _ ...func(*eksvc.Options)) (*eksvc.UpdateClusterConfigOutput, error) {
	f.updates = append(f.updates, in)
	return &eksvc.UpdateClusterConfigOutput{}, nil
}

// fixture wires one profile to shared fakes; factory calls are recorded by
// region.
type fixture struct {
	loader  *fakeLoader
	ec2     *fakeEC2
	eks     *fakeEKS
	s3      *fakeS3
	presign *fakePresign
	regions []string
}

func newFixture() *fixture {
	return &fixture{
		loader: &fakeLoader{
			profiles: []*common.ProfileConfig{
				{ProfileName: "prod", AccountID: "111111111111", ARN: "arn:aws:iam::111111111111:user/ops", Region: "us-east-1"},
			},
			regions: []string{"us-east-1"},
		},
		ec2:     &fakeEC2{},
		eks:     &fakeEKS{},
		s3:      &fakeS3{buckets: map[string]*bucketState{}},
		presign: &fakePresign{},
	}
}

func (fx *fixture) provider(opts Options) *Provider {
	return newProviderWithFactory(opts, fx.loader, func(cfg aws.Config) *regionalClients {
		fx.regions = append(fx.regions, cfg.Region)
		return &regionalClients{EC2: fx.ec2, EKS: fx.eks, S3: fx.s3, Presign: fx.presign}
	}, nil)
}

func (fx *fixture) addBucket(name string, st *bucketState) {
	fx.s3.buckets[name] = st
	fx.s3.order = append(fx.s3.order, name)
}

var errBoom = errors.New("boom")
