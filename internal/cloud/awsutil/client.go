// Package awsutil implements the cloud adapter for AWS EC2.
package awsutil

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"go.uber.org/zap"

	"github.com/emaland/cmp/internal/cloud"
)

const DefaultRegion = "us-east-1"

// Client is the EC2 adapter. Region scoped calls get their own ec2 client
// built from the shared config.
type Client struct {
	cfg aws.Config
	log *zap.Logger
}

// NewClient loads an AWS config signed with the static access key. A non
// empty creds.Endpoint overrides the service endpoint.
func NewClient(ctx context.Context, creds cloud.Credentials, log *zap.Logger) (*Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(DefaultRegion),
	}
	if creds.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.AccessKeySecret, "")))
	}
	if creds.Endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(creds.Endpoint))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return NewFromConfig(cfg, log), nil
}

// NewFromConfig wraps an already loaded AWS config.
func NewFromConfig(cfg aws.Config, log *zap.Logger) *Client {
	return &Client{cfg: cfg, log: log.With(zap.String("vendor", "aws"))}
}

// Factory returns a cloud.Factory producing AWS adapters.
func Factory(log *zap.Logger) cloud.Factory {
	return func(ctx context.Context, creds cloud.Credentials) (cloud.Adapter, error) {
		return NewClient(ctx, creds, log)
	}
}

func (c *Client) ec2(region string) *ec2.Client {
	if region == "" {
		return ec2.NewFromConfig(c.cfg)
	}
	return ec2.NewFromConfig(c.cfg, func(o *ec2.Options) {
		o.Region = region
	})
}

// Validate verifies the credentials with sts:GetCallerIdentity.
func (c *Client) Validate(ctx context.Context) error {
	if _, err := sts.NewFromConfig(c.cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{}); err != nil {
		return fmt.Errorf("verifying aws credentials: %w", err)
	}
	return nil
}

var _ cloud.Adapter = (*Client)(nil)
