// Package eks exposes EKS cluster API endpoints as network rule groups.
//
// A cluster with a public endpoint becomes a group with a single inbound
// rule, EndpointRuleName, on tcp/443 whose sources are the cluster's public
// access CIDRs. Restricting the rule rewrites those CIDRs; deleting it turns
// the public endpoint off and leaves private access on.
package eks

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/arn"
	awseks "github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
)

const (
	// EndpointRuleName is the name of the one rule of a cluster group.
	EndpointRuleName = "public-endpoint"

	endpointPort = "443"

	// AWS applies 0.0.0.0/0 when a public endpoint has no CIDR list.
	defaultPublicCIDR = "0.0.0.0/0"
)

// IsClusterGroup reports whether a rule group ID is an EKS cluster ARN.
func IsClusterGroup(groupID string) bool {
	a, err := arn.Parse(groupID)
	return err == nil && a.Service == "eks"
}

// CollectEndpointGroups lists clusters in the client's region and returns a
// group for every cluster whose API endpoint is public.
func CollectEndpointGroups(ctx context.Context, client API, accountID, region string) ([]models.NetworkRuleGroup, error) {
	var groups []models.NetworkRuleGroup
	pager := awseks.NewListClustersPaginator(client, &awseks.ListClustersInput{})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return groups, fmt.Errorf("list EKS clusters in %s: %w", region, err)
		}
		for _, name := range page.Clusters {
			cluster, err := describeCluster(ctx, client, name)
			if err != nil {
				return groups, err
			}
			if g, ok := groupFromCluster(cluster, accountID, region); ok {
				groups = append(groups, g)
			}
		}
	}
	return groups, nil
}

func describeCluster(ctx context.Context, client API, name string) (*ekstypes.Cluster, error) {
	out, err := client.DescribeCluster(ctx, &awseks.DescribeClusterInput{Name: aws.String(name)})
	if err != nil {
		return nil, fmt.Errorf("describe EKS cluster %q: %w", name, err)
	}
	if out.Cluster == nil {
		return nil, fmt.Errorf("describe EKS cluster %q: empty response", name)
	}
	return out.Cluster, nil
}

func groupFromCluster(c *ekstypes.Cluster, accountID, region string) (models.NetworkRuleGroup, bool) {
	vpc := c.ResourcesVpcConfig
	if vpc == nil || !vpc.EndpointPublicAccess {
		return models.NetworkRuleGroup{}, false
	}
	sources := append([]string(nil), vpc.PublicAccessCidrs...)
	if len(sources) == 0 {
		sources = []string{defaultPublicCIDR}
	}
	g := models.NetworkRuleGroup{
		ID:            aws.ToString(c.Arn),
		Name:          aws.ToString(c.Name),
		AccountID:     accountID,
		ResourceGroup: aws.ToString(vpc.VpcId),
		Location:      region,
	}
	g.Rules = []models.NetworkRule{{
		GroupName:     g.Name,
		Name:          EndpointRuleName,
		Direction:     models.DirectionInbound,
		Access:        models.AccessAllow,
		Sources:       sources,
		Ports:         []string{endpointPort},
		Protocol:      "tcp",
		AccountID:     accountID,
		ResourceGroup: g.ResourceGroup,
	}}
	return g, true
}

// ApplyGroup writes group's endpoint rule back to the cluster. A group
// without the endpoint rule disables the public endpoint.
func ApplyGroup(ctx context.Context, client API, group models.NetworkRuleGroup) error {
	for _, r := range group.Rules {
		if r.Name != EndpointRuleName {
			continue
		}
		return updateVpcConfig(ctx, client, group.Name, &ekstypes.VpcConfigRequest{
			PublicAccessCidrs: append([]string(nil), r.Sources...),
		})
	}
	return DisablePublicEndpoint(ctx, client, group.Name)
}

// DisablePublicEndpoint turns the public endpoint off. Private access is
// switched on in the same request so the cluster stays reachable from the VPC.
func DisablePublicEndpoint(ctx context.Context, client API, clusterName string) error {
	return updateVpcConfig(ctx, client, clusterName, &ekstypes.VpcConfigRequest{
		EndpointPublicAccess:  aws.Bool(false),
		EndpointPrivateAccess: aws.Bool(true),
	})
}

func updateVpcConfig(ctx context.Context, client API, clusterName string, cfg *ekstypes.VpcConfigRequest) error {
	_, err := client.UpdateClusterConfig(ctx, &awseks.UpdateClusterConfigInput{
		Name:               aws.String(clusterName),
		ResourcesVpcConfig: cfg,
	})
	if err != nil {
		return fmt.Errorf("update EKS cluster %q endpoint: %w", clusterName, err)
	}
	return nil
}
