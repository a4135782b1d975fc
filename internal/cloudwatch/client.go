package cloudwatch

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Session holds a resolved AWS configuration. The SDK clients it hands out
// share credentials and region.
type Session struct {
	cfg aws.Config
}

// NewSession loads the AWS configuration for profile and region. Empty
// values fall back to the SDK's default resolution chain.
func NewSession(ctx context.Context, profile, region string) (*Session, error) {
	var opts []func(*config.LoadOptions) error

	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Session{cfg: cfg}, nil
}

// Region returns the region the session resolved to.
func (s *Session) Region() string {
	return s.cfg.Region
}

// Logs returns a CloudWatch Logs client.
func (s *Session) Logs() *Client {
	return NewClient(cloudwatchlogs.NewFromConfig(s.cfg))
}

// Metrics returns a CloudWatch metrics client.
func (s *Session) Metrics() *MetricsAPI {
	return NewMetricsAPI(cloudwatch.NewFromConfig(s.cfg))
}

// AccountID returns the AWS account ID of the session's credentials.
func (s *Session) AccountID(ctx context.Context) (string, error) {
	result, err := sts.NewFromConfig(s.cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("failed to get caller identity: %w", err)
	}

	if result.Account == nil {
		return "", fmt.Errorf("account ID not returned")
	}

	return *result.Account, nil
}
