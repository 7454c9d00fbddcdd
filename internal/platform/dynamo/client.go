package dynamo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/cvelasquez94/raffle-fast/internal/common/config"
	"github.com/cvelasquez94/raffle-fast/internal/common/logger"
)

// NewClient builds a DynamoDB client from the ambient AWS configuration. A
// non-empty endpoint override points the client at a local instance.
func NewClient(ctx context.Context, cfg *config.Config) (*dynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Dynamo.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Dynamo.Endpoint)
		}
	})

	logger.Info().
		Str("table", cfg.Dynamo.TicketsTable).
		Str("endpoint", cfg.Dynamo.Endpoint).
		Msg("DynamoDB client initialized")

	return client, nil
}
