package awssecurity

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2svc "github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
)

const (
	groupRefPrefix      = "sg:"
	prefixListRefPrefix = "pl:"
)

// collectRuleGroups lists every security group in region. Each IP
// permission becomes one rule whose sources are all of its ranges.
func collectRuleGroups(ctx context.Context, client ec2API, accountID, region string) ([]models.NetworkRuleGroup, error) {
	var groups []models.NetworkRuleGroup
	pager := ec2svc.NewDescribeSecurityGroupsPaginator(client, &ec2svc.DescribeSecurityGroupsInput{})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return groups, fmt.Errorf("describe security groups in %s: %w", region, err)
		}
		for _, sg := range page.SecurityGroups {
			groups = append(groups, groupFromSG(sg, accountID, region))
		}
	}
	return groups, nil
}

// describeGroup reads one security group by ID.
func describeGroup(ctx context.Context, client ec2API, groupID string) (ec2types.SecurityGroup, error) {
	out, err := client.DescribeSecurityGroups(ctx, &ec2svc.DescribeSecurityGroupsInput{
		GroupIds: []string{groupID},
	})
	if err != nil {
		return ec2types.SecurityGroup{}, fmt.Errorf("describe security group %s: %w", groupID, err)
	}
	if len(out.SecurityGroups) == 0 {
		return ec2types.SecurityGroup{}, fmt.Errorf("security group %s not found", groupID)
	}
	return out.SecurityGroups[0], nil
}

func groupFromSG(sg ec2types.SecurityGroup, accountID, region string) models.NetworkRuleGroup {
	g := models.NetworkRuleGroup{
		ID:            aws.ToString(sg.GroupId),
		Name:          aws.ToString(sg.GroupName),
		AccountID:     accountID,
		ResourceGroup: aws.ToString(sg.VpcId),
		Location:      region,
	}
	add := func(dir models.Direction, perms []ec2types.IpPermission) {
		for _, perm := range perms {
			g.Rules = append(g.Rules, models.NetworkRule{
				GroupName:     g.Name,
				Name:          permissionName(dir, perm),
				Direction:     dir,
				Access:        models.AccessAllow,
				Sources:       permissionSources(perm),
				Ports:         permissionPorts(perm),
				Protocol:      protocolLabel(aws.ToString(perm.IpProtocol)),
				AccountID:     accountID,
				ResourceGroup: g.ResourceGroup,
			})
		}
	}
	add(models.DirectionInbound, sg.IpPermissions)
	add(models.DirectionOutbound, sg.IpPermissionsEgress)
	return g
}

// permissionName derives a stable rule name from direction, protocol and
// port range. EC2 merges permissions sharing these, so the name is unique
// within a group.
func permissionName(dir models.Direction, perm ec2types.IpPermission) string {
	prefix := "ingress"
	if dir == models.DirectionOutbound {
		prefix = "egress"
	}
	proto := protocolLabel(aws.ToString(perm.IpProtocol))
	if proto == "*" {
		return prefix + "-all"
	}
	from, to := aws.ToInt32(perm.FromPort), aws.ToInt32(perm.ToPort)
	if perm.FromPort == nil || from < 0 {
		return prefix + "-" + proto
	}
	if from == to {
		return fmt.Sprintf("%s-%s-%d", prefix, proto, from)
	}
	return fmt.Sprintf("%s-%s-%d-%d", prefix, proto, from, to)
}

func protocolLabel(p string) string {
	switch strings.ToLower(p) {
	case "-1", "all", "":
		return "*"
	case "6":
		return "tcp"
	case "17":
		return "udp"
	case "1":
		return "icmp"
	case "58":
		return "icmpv6"
	default:
		return strings.ToLower(p)
	}
}

// permissionPorts renders the port range. ICMP type/code pairs are not
// ports and yield no entries.
func permissionPorts(perm ec2types.IpPermission) []string {
	switch protocolLabel(aws.ToString(perm.IpProtocol)) {
	case "*":
		return []string{models.WildcardPort}
	case "icmp", "icmpv6":
		return nil
	}
	if perm.FromPort == nil {
		return []string{models.WildcardPort}
	}
	from, to := aws.ToInt32(perm.FromPort), aws.ToInt32(perm.ToPort)
	if from == to {
		return []string{strconv.Itoa(int(from))}
	}
	return []string{fmt.Sprintf("%d-%d", from, to)}
}

// permissionSources lists CIDRs first, then referenced groups and prefix
// lists using the sg: and pl: prefixes.
func permissionSources(perm ec2types.IpPermission) []string {
	var out []string
	for _, r := range perm.IpRanges {
		out = append(out, aws.ToString(r.CidrIp))
	}
	for _, r := range perm.Ipv6Ranges {
		out = append(out, aws.ToString(r.CidrIpv6))
	}
	for _, p := range perm.UserIdGroupPairs {
		out = append(out, groupRefPrefix+aws.ToString(p.GroupId))
	}
	for _, p := range perm.PrefixListIds {
		out = append(out, prefixListRefPrefix+aws.ToString(p.PrefixListId))
	}
	return out
}

// withSources returns a permission with perm's protocol and ports and only
// the given sources.
func withSources(perm ec2types.IpPermission, sources []string) ec2types.IpPermission {
	out := ec2types.IpPermission{
		IpProtocol: perm.IpProtocol,
		FromPort:   perm.FromPort,
		ToPort:     perm.ToPort,
	}
	for _, s := range sources {
		switch {
		case strings.HasPrefix(s, groupRefPrefix):
			out.UserIdGroupPairs = append(out.UserIdGroupPairs, ec2types.UserIdGroupPair{
				GroupId: aws.String(strings.TrimPrefix(s, groupRefPrefix)),
			})
		case strings.HasPrefix(s, prefixListRefPrefix):
			out.PrefixListIds = append(out.PrefixListIds, ec2types.PrefixListId{
				PrefixListId: aws.String(strings.TrimPrefix(s, prefixListRefPrefix)),
			})
		case strings.Contains(s, ":"):
			out.Ipv6Ranges = append(out.Ipv6Ranges, ec2types.Ipv6Range{CidrIpv6: aws.String(s)})
		default:
			out.IpRanges = append(out.IpRanges, ec2types.IpRange{CidrIp: aws.String(s)})
		}
	}
	return out
}

// missing returns the entries of a absent from b, in a's order.
func missing(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, s := range b {
		set[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := set[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}

// syncIngress makes the ingress permissions of sg match the inbound rules
// of group. New sources are authorized before old ones are revoked. A
// permission whose rule is absent from group is revoked whole.
func syncIngress(ctx context.Context, client ec2API, sg ec2types.SecurityGroup, group models.NetworkRuleGroup) error {
	groupID := aws.ToString(sg.GroupId)
	for _, perm := range sg.IpPermissions {
		name := permissionName(models.DirectionInbound, perm)
		idx := group.RuleIndex(name)
		if idx < 0 {
			if err := revoke(ctx, client, groupID, perm); err != nil {
				return fmt.Errorf("revoke %s: %w", name, err)
			}
			continue
		}
		have := permissionSources(perm)
		want := group.Rules[idx].Sources
		add, drop := missing(want, have), missing(have, want)

		if len(add) > 0 {
			if _, err := client.AuthorizeSecurityGroupIngress(ctx, &ec2svc.AuthorizeSecurityGroupIngressInput{
				GroupId:       aws.String(groupID),
				IpPermissions: []ec2types.IpPermission{withSources(perm, add)},
			}); err != nil {
				return fmt.Errorf("authorize %s: %w", name, err)
			}
		}
		if len(drop) > 0 {
			if err := revoke(ctx, client, groupID, withSources(perm, drop)); err != nil {
				if len(add) > 0 {
					// Best effort: put the rule back as it was.
					_ = revoke(ctx, client, groupID, withSources(perm, add))
				}
				return fmt.Errorf("revoke old sources of %s: %w", name, err)
			}
		}
	}
	return nil
}

func revoke(ctx context.Context, client ec2API, groupID string, perm ec2types.IpPermission) error {
	_, err := client.RevokeSecurityGroupIngress(ctx, &ec2svc.RevokeSecurityGroupIngressInput{
		GroupId:       aws.String(groupID),
		IpPermissions: []ec2types.IpPermission{perm},
	})
	return err
}
