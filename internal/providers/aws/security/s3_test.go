package awssecurity

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
)

func staticCreds(err error) aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		if err != nil {
			return aws.Credentials{}, err
		}
		return aws.Credentials{AccessKeyID: "AKIDEXAMPLE", SecretAccessKey: "secret", Source: "test"}, nil
	})
}

func testPresigner(creds aws.CredentialsProvider) *listingPresigner {
	signedAt := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	return &listingPresigner{
		creds:  creds,
		region: "eu-west-1",
		signer: v4.NewSigner(),
		now:    func() time.Time { return signedAt },
	}
}

func TestListingPresigner_SignsListObjectsV2(t *testing.T) {
	raw, err := testPresigner(staticCreds(nil)).PresignBucketList(context.Background(), "site", MaxPresignExpiry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	if u.Scheme != "https" || u.Host != "site.s3.eu-west-1.amazonaws.com" || u.Path != "/" {
		t.Errorf("url: %s", raw)
	}
	q := u.Query()
	want := map[string]string{
		"list-type":        "2",
		"X-Amz-Expires":    "604800",
		"X-Amz-Algorithm":  "AWS4-HMAC-SHA256",
		"X-Amz-Date":       "20261019T120000Z",
		"X-Amz-Credential": "AKIDEXAMPLE/20261019/eu-west-1/s3/aws4_request",
	}
	for k, v := range want {
		if q.Get(k) != v {
			t.Errorf("%s = %q, want %q", k, q.Get(k), v)
		}
	}
	if q.Get("X-Amz-Signature") == "" {
		t.Error("missing signature")
	}
}

func TestListingPresigner_DottedBucketUsesPathStyle(t *testing.T) {
	raw, err := testPresigner(staticCreds(nil)).PresignBucketList(context.Background(), "assets.example.com", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, _ := url.Parse(raw)
	if u.Host != "s3.eu-west-1.amazonaws.com" || u.Path != "/assets.example.com/" {
		t.Errorf("url: %s", raw)
	}
	if u.Query().Get("X-Amz-Expires") != "3600" {
		t.Errorf("expires: %s", u.Query().Get("X-Amz-Expires"))
	}
}

func TestListingPresigner_CredentialErrors(t *testing.T) {
	if _, err := testPresigner(nil).PresignBucketList(context.Background(), "site", time.Hour); err == nil {
		t.Error("want error without a credentials provider")
	}
	_, err := testPresigner(staticCreds(errBoom)).PresignBucketList(context.Background(), "site", time.Hour)
	if !errors.Is(err, errBoom) {
		t.Errorf("want wrapped credential error, got %v", err)
	}
}
