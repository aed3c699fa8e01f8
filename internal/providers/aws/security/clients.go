package awssecurity

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2svc "github.com/aws/aws-sdk-go-v2/service/ec2"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/providers/aws/eks"
)

// ec2API is the narrow EC2 interface for security group inventory and
// mutation. It embeds DescribeSecurityGroupsAPIClient so the SDK paginator
// can be used directly.
type ec2API interface {
	ec2svc.DescribeSecurityGroupsAPIClient
	AuthorizeSecurityGroupIngress(ctx context.Context, params *ec2svc.AuthorizeSecurityGroupIngressInput, optFns ...func(*ec2svc.Options)) (*ec2svc.AuthorizeSecurityGroupIngressOutput, error)
	RevokeSecurityGroupIngress(ctx context.Context, params *ec2svc.RevokeSecurityGroupIngressInput, optFns ...func(*ec2svc.Options)) (*ec2svc.RevokeSecurityGroupIngressOutput, error)
}

// s3API is the narrow S3 interface for bucket inventory and public access
// control.
type s3API interface {
	ListBuckets(ctx context.Context, params *s3svc.ListBucketsInput, optFns ...func(*s3svc.Options)) (*s3svc.ListBucketsOutput, error)
	GetBucketLocation(ctx context.Context, params *s3svc.GetBucketLocationInput, optFns ...func(*s3svc.Options)) (*s3svc.GetBucketLocationOutput, error)
	GetBucketPolicyStatus(ctx context.Context, params *s3svc.GetBucketPolicyStatusInput, optFns ...func(*s3svc.Options)) (*s3svc.GetBucketPolicyStatusOutput, error)
	GetBucketAcl(ctx context.Context, params *s3svc.GetBucketAclInput, optFns ...func(*s3svc.Options)) (*s3svc.GetBucketAclOutput, error)
	GetPublicAccessBlock(ctx context.Context, params *s3svc.GetPublicAccessBlockInput, optFns ...func(*s3svc.Options)) (*s3svc.GetPublicAccessBlockOutput, error)
	PutPublicAccessBlock(ctx context.Context, params *s3svc.PutPublicAccessBlockInput, optFns ...func(*s3svc.Options)) (*s3svc.PutPublicAccessBlockOutput, error)
	DeletePublicAccessBlock(ctx context.Context, params *s3svc.DeletePublicAccessBlockInput, optFns ...func(*s3svc.Options)) (*s3svc.DeletePublicAccessBlockOutput, error)
}

// presignAPI signs bucket listing URLs without calling S3.
type presignAPI interface {
	PresignBucketList(ctx context.Context, bucket string, ttl time.Duration) (string, error)
}

// regionalClients bundles the clients used for one profile and region.
type regionalClients struct {
	EC2     ec2API
	EKS     eks.API
	S3      s3API
	Presign presignAPI
}

// clientFactory creates regionalClients from an AWS config.
// Injection point: tests replace this with a function returning fakes.
type clientFactory func(cfg aws.Config) *regionalClients

func newDefaultClients(cfg aws.Config) *regionalClients {
	return &regionalClients{
		EC2:     ec2svc.NewFromConfig(cfg),
		EKS:     eks.NewClient(cfg),
		S3:      s3svc.NewFromConfig(cfg),
		Presign: newListingPresigner(cfg),
	}
}
