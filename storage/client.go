// Package storage sets up the object storage client. Both AWS S3 and
// Cloudflare R2 speak the S3 API so they share one client type.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/spf13/viper"
)

type Client struct {
	C         *s3.Client
	Bucket    *string
	PublicURL string
}

// New returns a client for the provider selected by storage.type. A nil
// client and no error means storage is disabled.
func New(ctx context.Context) (*Client, error) {
	if !viper.GetBool("storage.enabled") {
		return nil, nil
	}

	switch viper.GetString("storage.type") {
	case "s3":
		return NewS3(ctx)
	case "r2":
		return NewR2(ctx)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", viper.GetString("storage.type"))
	}
}

func NewS3(ctx context.Context) (*Client, error) {
	region := viper.GetString("aws.region")
	bucket := viper.GetString("aws.bucket")

	c, err := newClient(ctx,
		viper.GetString("aws.access_key"),
		viper.GetString("aws.secret_access_key"),
		bucket,
		func(o *s3.Options) {
			o.Region = region
		})
	if err != nil {
		return nil, err
	}

	c.PublicURL = publicURL(fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region))
	return c, nil
}

func NewR2(ctx context.Context) (*Client, error) {
	accountID := viper.GetString("cloudflare.account_id")

	c, err := newClient(ctx,
		viper.GetString("cloudflare.access_key_id"),
		viper.GetString("cloudflare.secret_access_key"),
		viper.GetString("cloudflare.bucket"),
		func(o *s3.Options) {
			o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID))
			o.Region = "auto"
		})
	if err != nil {
		return nil, err
	}

	// R2 buckets have no default public hostname
	c.PublicURL = publicURL("")
	return c, nil
}

func newClient(ctx context.Context, key, secret, bucketName string, opt func(*s3.Options)) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")),
	)
	if err != nil {
		return nil, err
	}

	bucket := aws.String(bucketName)
	client := s3.NewFromConfig(cfg, opt)

	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: bucket,
	})
	if err != nil {
		var apiErr smithy.APIError

		if errors.As(err, &apiErr) {
			if apiErr.ErrorCode() == "NotFound" {
				return nil, fmt.Errorf("bucket '%s' does not exist", bucketName)
			}
		}

		return nil, fmt.Errorf("failed to check if bucket exists, %w", err)
	}

	return &Client{
		C:      client,
		Bucket: bucket,
	}, nil
}

func publicURL(fallback string) string {
	if u := viper.GetString("storage.public_url"); u != "" {
		return strings.TrimSuffix(u, "/")
	}

	return fallback
}

// URL returns the public address of an object
func (c *Client) URL(key string) string {
	if c.PublicURL == "" {
		return key
	}

	return c.PublicURL + "/" + key
}
