package awssecurity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	s3svc "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/pankaj-dahiya-devops/exposure-advisor/internal/models"
)

// BucketContainer is the container name given to a bucket. S3 has no
// container level below the bucket, so each bucket holds exactly one.
const BucketContainer = "*"

// MaxPresignExpiry is the longest lifetime SigV4 allows on a presigned URL.
const MaxPresignExpiry = 7 * 24 * time.Hour

const allUsersURI = "http://acs.amazonaws.com/groups/global/AllUsers"

type bucketInfo struct {
	Name   string
	Region string
}

// listBuckets returns every bucket owned by the account with its region.
// A bucket whose location cannot be read falls back to homeRegion.
func listBuckets(ctx context.Context, client s3API, homeRegion string) ([]bucketInfo, error) {
	out, err := client.ListBuckets(ctx, &s3svc.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("list S3 buckets: %w", err)
	}
	buckets := make([]bucketInfo, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		name := aws.ToString(b.Name)
		region := homeRegion
		if loc, err := client.GetBucketLocation(ctx, &s3svc.GetBucketLocationInput{Bucket: aws.String(name)}); err == nil {
			region = normaliseLocation(loc.LocationConstraint)
		}
		buckets = append(buckets, bucketInfo{Name: name, Region: region})
	}
	return buckets, nil
}

// normaliseLocation maps GetBucketLocation's legacy values to region names.
func normaliseLocation(c s3types.BucketLocationConstraint) string {
	switch c {
	case "":
		return "us-east-1"
	case "EU":
		return "eu-west-1"
	default:
		return string(c)
	}
}

// publicAccessAllowed reports whether the bucket's public access block still
// lets policies and ACLs grant public access. A bucket without a block is
// allowed.
func publicAccessAllowed(ctx context.Context, client s3API, bucket string) (bool, error) {
	out, err := client.GetPublicAccessBlock(ctx, &s3svc.GetPublicAccessBlockInput{Bucket: aws.String(bucket)})
	if err != nil {
		if isErrorCode(err, "NoSuchPublicAccessBlockConfiguration") {
			return true, nil
		}
		return false, fmt.Errorf("get public access block for %s: %w", bucket, err)
	}
	cfg := out.PublicAccessBlockConfiguration
	if cfg == nil {
		return true, nil
	}
	return !(aws.ToBool(cfg.IgnorePublicAcls) && aws.ToBool(cfg.RestrictPublicBuckets)), nil
}

// bucketAccessLevel classifies anonymous access to a bucket. A public
// bucket policy or an AllUsers READ grant allows anonymous listing and is
// container-level; any other AllUsers grant is blob-level.
func bucketAccessLevel(ctx context.Context, client s3API, bucket string) (models.PublicAccessLevel, error) {
	status, err := client.GetBucketPolicyStatus(ctx, &s3svc.GetBucketPolicyStatusInput{Bucket: aws.String(bucket)})
	switch {
	case err == nil:
		if status.PolicyStatus != nil && aws.ToBool(status.PolicyStatus.IsPublic) {
			return models.PublicAccessContainer, nil
		}
	case isErrorCode(err, "NoSuchBucketPolicy"):
	default:
		return models.PublicAccessOff, fmt.Errorf("get policy status for %s: %w", bucket, err)
	}

	acl, err := client.GetBucketAcl(ctx, &s3svc.GetBucketAclInput{Bucket: aws.String(bucket)})
	if err != nil {
		return models.PublicAccessOff, fmt.Errorf("get ACL for %s: %w", bucket, err)
	}
	level := models.PublicAccessOff
	for _, g := range acl.Grants {
		if g.Grantee == nil || aws.ToString(g.Grantee.URI) != allUsersURI {
			continue
		}
		switch g.Permission {
		case s3types.PermissionRead, s3types.PermissionFullControl:
			return models.PublicAccessContainer, nil
		default:
			level = models.PublicAccessBlob
		}
	}
	return level, nil
}

// setBucketPublicAccess blocks all public access or removes the block.
func setBucketPublicAccess(ctx context.Context, client s3API, bucket string, allowed bool) error {
	if allowed {
		_, err := client.DeletePublicAccessBlock(ctx, &s3svc.DeletePublicAccessBlockInput{Bucket: aws.String(bucket)})
		return err
	}
	_, err := client.PutPublicAccessBlock(ctx, &s3svc.PutPublicAccessBlockInput{
		Bucket: aws.String(bucket),
		PublicAccessBlockConfiguration: &s3types.PublicAccessBlockConfiguration{
			BlockPublicAcls:       aws.Bool(true),
			IgnorePublicAcls:      aws.Bool(true),
			BlockPublicPolicy:     aws.Bool(true),
			RestrictPublicBuckets: aws.Bool(true),
		},
	})
	return err
}

// presignBucketRead signs a ListObjectsV2 request for bucket valid for ttl.
func presignBucketRead(ctx context.Context, client presignAPI, bucket string, ttl time.Duration) (string, error) {
	u, err := client.PresignBucketList(ctx, bucket, ttl)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", bucket, err)
	}
	return u, nil
}

// listingPresigner signs ListObjectsV2 GET requests with SigV4 query
// parameters. The S3 presign client only covers object and bucket
// operations, not listings.
type listingPresigner struct {
	creds  aws.CredentialsProvider
	region string
	signer *v4.Signer
	now    func() time.Time
}

func newListingPresigner(cfg aws.Config) *listingPresigner {
	return &listingPresigner{creds: cfg.Credentials, region: cfg.Region, signer: v4.NewSigner(), now: time.Now}
}

func (p *listingPresigner) PresignBucketList(ctx context.Context, bucket string, ttl time.Duration) (string, error) {
	if p.creds == nil {
		return "", errors.New("no credentials to sign with")
	}
	creds, err := p.creds.Retrieve(ctx)
	if err != nil {
		return "", fmt.Errorf("retrieve credentials: %w", err)
	}

	u := listingURL(bucket, p.region)
	q := u.Query()
	q.Set("list-type", "2")
	q.Set("X-Amz-Expires", strconv.FormatInt(int64(ttl/time.Second), 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	signed, _, err := p.signer.PresignHTTP(ctx, creds, req, unsignedPayload, "s3", p.region, p.now().UTC())
	if err != nil {
		return "", fmt.Errorf("sign listing request: %w", err)
	}
	return signed, nil
}

const unsignedPayload = "UNSIGNED-PAYLOAD"

// listingURL uses virtual-hosted style unless the bucket name has dots,
// which would not match the wildcard TLS certificate.
func listingURL(bucket, region string) *url.URL {
	host := "s3." + region + ".amazonaws.com"
	if strings.Contains(bucket, ".") {
		return &url.URL{Scheme: "https", Host: host, Path: "/" + bucket + "/"}
	}
	return &url.URL{Scheme: "https", Host: bucket + "." + host, Path: "/"}
}

func bucketARN(name string) string { return "arn:aws:s3:::" + name }

func isErrorCode(err error, code string) bool {
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == code
}
