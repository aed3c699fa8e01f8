package awssecurity

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/inventory"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/providers/aws/common"
	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/rules"
)

func tcpPerm(port int32, cidrs ...string) ec2types.IpPermission {
	p := ec2types.IpPermission{IpProtocol: aws.String("tcp"), FromPort: aws.Int32(port), ToPort: aws.Int32(port)}
	for _, c := range cidrs {
		p.IpRanges = append(p.IpRanges, ec2types.IpRange{CidrIp: aws.String(c)})
	}
	return p
}

func webGroup() ec2types.SecurityGroup {
	return ec2types.SecurityGroup{
		GroupId:   aws.String("sg-0abc"),
		GroupName: aws.String("web"),
		VpcId:     aws.String("vpc-1"),
		IpPermissions: []ec2types.IpPermission{
			tcpPerm(22, "0.0.0.0/0"),
			tcpPerm(443, "0.0.0.0/0"),
			{
				IpProtocol:       aws.String("tcp"),
				FromPort:         aws.Int32(5000),
				ToPort:           aws.Int32(6000),
				UserIdGroupPairs: []ec2types.UserIdGroupPair{{GroupId: aws.String("sg-lb")}},
			},
		},
		IpPermissionsEgress: []ec2types.IpPermission{{
			IpProtocol: aws.String("-1"),
			IpRanges:   []ec2types.IpRange{{CidrIp: aws.String("0.0.0.0/0")}},
		}},
	}
}

func authed(t *testing.T, p *Provider) inventory.Session {
	t.Helper()
	s, err := p.Authenticate(context.Background())
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	return s
}

func TestAuthenticate_FailureIsAuthError(t *testing.T) {
	fx := newFixture()
	fx.loader.err = errBoom
	_, err := fx.provider(Options{}).Authenticate(context.Background())
	if !inventory.IsAuthError(err) {
		t.Fatalf("want AuthError, got %v", err)
	}
}

func TestAuthenticate_DedupesAccountsAndShowsARN(t *testing.T) {
	fx := newFixture()
	fx.loader.profiles = append(fx.loader.profiles,
		&common.ProfileConfig{ProfileName: "prod-admin", AccountID: "111111111111"},
		&common.ProfileConfig{ProfileName: "dev", AccountID: "222222222222"},
	)
	p := fx.provider(Options{})
	s := authed(t, p)
	if s.Identity() != "arn:aws:iam::111111111111:user/ops (+1 accounts)" {
		t.Errorf("identity: %q", s.Identity())
	}
	accts, _ := p.ListAccounts(context.Background(), s)
	if len(accts) != 2 || accts[0].Name != "prod" || accts[1].Name != "dev" {
		t.Errorf("accounts: %+v", accts)
	}
}

func TestSetActiveAccount_UnknownIsAuthError(t *testing.T) {
	fx := newFixture()
	p := fx.provider(Options{})
	s := authed(t, p)
	if err := p.SetActiveAccount(context.Background(), s, "999"); !inventory.IsAuthError(err) {
		t.Fatalf("want AuthError, got %v", err)
	}
	if err := p.SetActiveAccount(context.Background(), s, "111111111111"); err != nil {
		t.Fatalf("known account: %v", err)
	}
}

func TestListNetworkRuleGroups_MapsPermissions(t *testing.T) {
	fx := newFixture()
	fx.ec2.groups = []ec2types.SecurityGroup{webGroup()}
	p := fx.provider(Options{Regions: []string{"eu-west-1"}})
	s := authed(t, p)

	groups, err := p.ListNetworkRuleGroups(context.Background(), s, "111111111111")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("want 1 group, got %d", len(groups))
	}
	g := groups[0]
	if g.ID != "sg-0abc" || g.Location != "eu-west-1" || g.ResourceGroup != "vpc-1" {
		t.Errorf("group: %+v", g)
	}
	var names []string
	for _, r := range g.Rules {
		names = append(names, r.Name)
	}
	want := []string{"ingress-tcp-22", "ingress-tcp-443", "ingress-tcp-5000-6000", "egress-all"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("rule names: %v", names)
	}
	if g.Rules[2].Sources[0] != "sg:sg-lb" || g.Rules[2].Ports[0] != "5000-6000" {
		t.Errorf("group reference rule: %+v", g.Rules[2])
	}
	if g.Rules[3].Direction != models.DirectionOutbound || g.Rules[3].Ports[0] != "*" {
		t.Errorf("egress rule: %+v", g.Rules[3])
	}

	// The SSH rule is the only exposure: 443 is not sensitive and the
	// 5000-6000 range is reachable only from another group.
	findings := rules.NetworkOpenPortRule{}.Evaluate(rules.RuleContext{Inventory: &models.Inventory{RuleGroups: groups}})
	if len(findings) != 1 || findings[0].Port != "22" {
		t.Errorf("findings: %+v", findings)
	}
}

func TestListNetworkRuleGroups_RegionErrorKeepsPartial(t *testing.T) {
	fx := newFixture()
	fx.ec2.describeErr = errBoom
	p := fx.provider(Options{Regions: []string{"us-east-1", "eu-west-1"}})
	s := authed(t, p)
	_, err := p.ListNetworkRuleGroups(context.Background(), s, "111111111111")
	var pe *inventory.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("want ProviderError, got %v", err)
	}
}

func TestUpdateRuleGroup_AuthorizesThenRevokes(t *testing.T) {
	fx := newFixture()
	fx.ec2.groups = []ec2types.SecurityGroup{webGroup()}
	p := fx.provider(Options{Regions: []string{"us-east-1"}})
	s := authed(t, p)
	groups, _ := p.ListNetworkRuleGroups(context.Background(), s, "111111111111")

	g := groups[0].Clone()
	g.Rules[0].Sources = []string{"203.0.113.0/24", "2001:db8::/32"}
	if err := p.UpdateRuleGroup(context.Background(), s, g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fx.ec2.authorized) != 1 {
		t.Fatalf("want 1 authorize, got %d", len(fx.ec2.authorized))
	}
	add := fx.ec2.authorized[0]
	if aws.ToString(add.IpRanges[0].CidrIp) != "203.0.113.0/24" || aws.ToString(add.Ipv6Ranges[0].CidrIpv6) != "2001:db8::/32" {
		t.Errorf("authorized: %+v", add)
	}
	if aws.ToInt32(add.FromPort) != 22 {
		t.Errorf("authorize must keep the port, got %d", aws.ToInt32(add.FromPort))
	}
	if len(fx.ec2.revoked) != 1 || aws.ToString(fx.ec2.revoked[0].IpRanges[0].CidrIp) != "0.0.0.0/0" {
		t.Errorf("revoked: %+v", fx.ec2.revoked)
	}
}

func TestUpdateRuleGroup_RevokesDroppedRules(t *testing.T) {
	fx := newFixture()
	fx.ec2.groups = []ec2types.SecurityGroup{webGroup()}
	p := fx.provider(Options{Regions: []string{"us-east-1"}})
	s := authed(t, p)
	groups, _ := p.ListNetworkRuleGroups(context.Background(), s, "111111111111")

	g := groups[0].Clone()
	g.Rules = g.Rules[1:]
	if err := p.UpdateRuleGroup(context.Background(), s, g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fx.ec2.authorized) != 0 || len(fx.ec2.revoked) != 1 || aws.ToInt32(fx.ec2.revoked[0].FromPort) != 22 {
		t.Errorf("authorized %d, revoked %+v", len(fx.ec2.authorized), fx.ec2.revoked)
	}
}

func TestUpdateRuleGroup_RevokeFailureIsProviderError(t *testing.T) {
	fx := newFixture()
	fx.ec2.groups = []ec2types.SecurityGroup{webGroup()}
	p := fx.provider(Options{Regions: []string{"us-east-1"}})
	s := authed(t, p)
	groups, _ := p.ListNetworkRuleGroups(context.Background(), s, "111111111111")

	fx.ec2.revokeErr = errBoom
	g := groups[0].Clone()
	g.Rules[0].Sources = []string{"203.0.113.0/24"}
	err := p.UpdateRuleGroup(context.Background(), s, g)
	var pe *inventory.ProviderError
	if !errors.As(err, &pe) || pe.Resource != "sg-0abc" {
		t.Fatalf("want ProviderError for sg-0abc, got %v", err)
	}
}

func TestDeleteRule(t *testing.T) {
	fx := newFixture()
	fx.ec2.groups = []ec2types.SecurityGroup{webGroup()}
	p := fx.provider(Options{Regions: []string{"us-east-1"}})
	s := authed(t, p)
	g := models.NetworkRuleGroup{ID: "sg-0abc", AccountID: "111111111111", Location: "us-east-1"}

	if err := p.DeleteRule(context.Background(), s, g, "ingress-tcp-22"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fx.ec2.revoked) != 1 || aws.ToInt32(fx.ec2.revoked[0].FromPort) != 22 {
		t.Errorf("revoked: %+v", fx.ec2.revoked)
	}
	if err := p.DeleteRule(context.Background(), s, g, "ingress-tcp-3389"); err == nil {
		t.Error("want error for a rule that does not exist")
	}
}

func TestStorage_BucketClassification(t *testing.T) {
	fx := newFixture()
	fx.addBucket("site", &bucketState{location: "eu-west-1", policyPublic: aws.Bool(true)})
	fx.addBucket("assets", &bucketState{aclGrants: []s3types.Grant{{
		Grantee:    &s3types.Grantee{URI: aws.String(allUsersURI), Type: s3types.TypeGroup},
		Permission: s3types.PermissionWrite,
	}}})
	fx.addBucket("private", &bucketState{location: "EU"})
	fx.addBucket("blocked", &bucketState{policyPublic: aws.Bool(true), block: &s3types.PublicAccessBlockConfiguration{
		IgnorePublicAcls: aws.Bool(true), RestrictPublicBuckets: aws.Bool(true),
	}})
	p := fx.provider(Options{})
	s := authed(t, p)
	ctx := context.Background()

	accts, err := p.ListStorageAccounts(ctx, s, "111111111111")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(accts) != 4 {
		t.Fatalf("want 4 buckets, got %d", len(accts))
	}
	if accts[0].ID != "arn:aws:s3:::site" || accts[0].Location != "eu-west-1" || accts[1].Location != "us-east-1" || accts[2].Location != "eu-west-1" {
		t.Errorf("bucket refs: %+v", accts)
	}
	if accts[3].AllowPublicAccess {
		t.Error("blocked bucket must not allow public access")
	}

	want := []models.PublicAccessLevel{models.PublicAccessContainer, models.PublicAccessBlob, models.PublicAccessOff, models.PublicAccessOff}
	for i, a := range accts {
		cs, err := p.ListContainers(ctx, s, a)
		if err != nil {
			t.Fatalf("ListContainers(%s): %v", a.Name, err)
		}
		if len(cs) != 1 || cs[0].Name != BucketContainer || cs[0].PublicAccess != want[i] {
			t.Errorf("%s: got %+v; want %s", a.Name, cs, want[i])
		}
	}
}

func TestSetAccountPublicAccess_PutsFullBlock(t *testing.T) {
	fx := newFixture()
	fx.addBucket("site", &bucketState{policyPublic: aws.Bool(true)})
	p := fx.provider(Options{})
	s := authed(t, p)
	ref := models.StorageAccountRef{Name: "site", AccountID: "111111111111", Location: "us-east-1"}

	if err := p.SetAccountPublicAccess(context.Background(), s, ref, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b := fx.s3.buckets["site"].block
	if b == nil || !aws.ToBool(b.BlockPublicAcls) || !aws.ToBool(b.IgnorePublicAcls) ||
		!aws.ToBool(b.BlockPublicPolicy) || !aws.ToBool(b.RestrictPublicBuckets) {
		t.Errorf("block: %+v", b)
	}
}

func TestIssueDelegatedReadToken_CapsAtSevenDays(t *testing.T) {
	fx := newFixture()
	p := fx.provider(Options{})
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	s := authed(t, p)
	c := models.StorageContainer{Account: "site", Name: BucketContainer, AccountID: "111111111111", Location: "eu-west-1"}

	d, err := p.IssueDelegatedReadToken(context.Background(), s, c, now.Add(30*24*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fx.presign.ttl != MaxPresignExpiry {
		t.Errorf("presign expiry: %v", fx.presign.ttl)
	}
	if !d.Expiry.Equal(now.Add(MaxPresignExpiry)) {
		t.Errorf("descriptor expiry: %v", d.Expiry)
	}
	if !strings.HasPrefix(d.URL, "https://site.s3.amazonaws.com/") {
		t.Errorf("url: %s", d.URL)
	}
	if fx.regions[len(fx.regions)-1] != "eu-west-1" {
		t.Errorf("presign must use the bucket region, got %v", fx.regions)
	}
}

func TestIssueDelegatedReadToken_PastExpiry(t *testing.T) {
	fx := newFixture()
	p := fx.provider(Options{})
	s := authed(t, p)
	c := models.StorageContainer{Account: "site", Name: BucketContainer, AccountID: "111111111111"}
	if _, err := p.IssueDelegatedReadToken(context.Background(), s, c, time.Now().Add(-time.Hour)); err == nil {
		t.Error("want error for an expiry in the past")
	}
}

func TestClusterEndpoint_ListedUpdatedAndDeleted(t *testing.T) {
	fx := newFixture()
	fx.ec2.groups = []ec2types.SecurityGroup{webGroup()}
	fx.eks.clusters = []ekstypes.Cluster{{
		Name: aws.String("prod"),
		Arn:  aws.String("arn:aws:eks:us-east-1:111111111111:cluster/prod"),
		ResourcesVpcConfig: &ekstypes.VpcConfigResponse{
			VpcId:                aws.String("vpc-1"),
			EndpointPublicAccess: true,
		},
	}}
	p := fx.provider(Options{Regions: []string{"us-east-1"}})
	s := authed(t, p)

	groups, err := p.ListNetworkRuleGroups(context.Background(), s, "111111111111")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 2 || groups[1].Name != "prod" {
		t.Fatalf("want security group then cluster, got %+v", groups)
	}

	g := groups[1].Clone()
	g.Rules[0].Sources = []string{"203.0.113.0/24"}
	if err := p.UpdateRuleGroup(context.Background(), s, g); err != nil {
		t.Fatalf("UpdateRuleGroup: %v", err)
	}
	if len(fx.ec2.authorized)+len(fx.ec2.revoked) != 0 {
		t.Error("a cluster update must not touch security groups")
	}
	if got := fx.eks.updates[0].ResourcesVpcConfig.PublicAccessCidrs; !reflect.DeepEqual(got, []string{"203.0.113.0/24"}) {
		t.Errorf("cidrs = %v", got)
	}

	if err := p.DeleteRule(context.Background(), s, g, "public-endpoint"); err != nil {
		t.Fatalf("DeleteRule: %v", err)
	}
	if aws.ToBool(fx.eks.updates[1].ResourcesVpcConfig.EndpointPublicAccess) {
		t.Error("delete must disable the public endpoint")
	}
	if err := p.DeleteRule(context.Background(), s, g, "ingress-tcp-22"); err == nil {
		t.Error("want error for an unknown cluster rule")
	}
}
