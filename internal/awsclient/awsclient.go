// Package awsclient builds the AWS service clients shared by the stores and
// the notification channels.
package awsclient

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"sensoralarm/internal/logger"
)

// Clients holds one client per AWS service. They are safe for concurrent use
// and meant to be built once per process.
type Clients struct {
	DynamoDB *dynamodb.Client
	SES      *sesv2.Client
	SNS      *sns.Client
}

// Load resolves credentials from the default chain. An empty region falls
// back to the environment/shared config.
func Load(ctx context.Context, region string) (*Clients, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	logger.WithComponent("awsclient").Info().
		Str("region", cfg.Region).
		Msg("aws clients initialized")

	return FromConfig(cfg), nil
}

// FromConfig builds the clients from an already resolved aws.Config.
func FromConfig(cfg aws.Config) *Clients {
	return &Clients{
		DynamoDB: dynamodb.NewFromConfig(cfg),
		SES:      sesv2.NewFromConfig(cfg),
		SNS:      sns.NewFromConfig(cfg),
	}
}
