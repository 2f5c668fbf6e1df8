package directory

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"sensoralarm/internal/models"
)

// DynamoDBDirectory queries a subscriptions table partitioned by sensorId.
type DynamoDBDirectory struct {
	client dynamodb.QueryAPIClient
	table  string
}

// NewDynamoDB returns a directory backed by the given table.
func NewDynamoDB(client dynamodb.QueryAPIClient, table string) *DynamoDBDirectory {
	return &DynamoDBDirectory{client: client, table: table}
}

// ListSubscriptions reads every page of subscriptions for the sensor.
func (d *DynamoDBDirectory) ListSubscriptions(ctx context.Context, sensorID string) ([]models.Subscription, error) {
	paginator := dynamodb.NewQueryPaginator(d.client, &dynamodb.QueryInput{
		TableName:              aws.String(d.table),
		KeyConditionExpression: aws.String("sensorId = :sid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid": &types.AttributeValueMemberS{Value: sensorID},
		},
	})

	subs := make([]models.Subscription, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query subscriptions for %s: %w", sensorID, err)
		}

		var batch []models.Subscription
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("decode subscriptions for %s: %w", sensorID, err)
		}
		subs = append(subs, batch...)
	}
	return subs, nil
}
