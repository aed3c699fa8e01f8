package eks

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awseks "github.com/aws/aws-sdk-go-v2/service/eks"
)

// API is the subset of EKS operations used for endpoint exposure.
// It embeds ListClustersAPIClient so the SDK paginator can be used directly.
type API interface {
	awseks.ListClustersAPIClient

	DescribeCluster(
		ctx context.Context,
		params *awseks.DescribeClusterInput,
		optFns ...func(*awseks.Options),
	) (*awseks.DescribeClusterOutput, error)

	UpdateClusterConfig(
		ctx context.Context,
		params *awseks.UpdateClusterConfigInput,
		optFns ...func(*awseks.Options),
	) (*awseks.UpdateClusterConfigOutput, error)
}

// NewClient returns the SDK client for cfg.
func NewClient(cfg aws.Config) API {
	return awseks.NewFromConfig(cfg)
}
