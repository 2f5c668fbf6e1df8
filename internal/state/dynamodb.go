package state

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"sensoralarm/internal/models"
)

// Attribute names of the state table key
const (
	attrSensorMetric = "sensorMetric"
	attrSubscriberID = "subscriberId"
)

// itemAPI is the subset of the DynamoDB client used by the state store.
type itemAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// stateItem is the table row for one key.
type stateItem struct {
	SensorMetric   string `dynamodbav:"sensorMetric"`
	SubscriberID   string `dynamodbav:"subscriberId"`
	LastState      string `dynamodbav:"lastState"`
	LastNotifiedAt *int64 `dynamodbav:"lastNotifiedAt,omitempty"` // epoch ms
	UpdatedAt      int64  `dynamodbav:"updatedAt"`                // epoch ms
}

// DynamoDBStore keeps alarm state in a DynamoDB table keyed by
// (sensorMetric, subscriberId).
type DynamoDBStore struct {
	client itemAPI
	table  string
	now    func() time.Time
}

// NewDynamoDB returns a store backed by the given table.
func NewDynamoDB(client itemAPI, table string) *DynamoDBStore {
	return &DynamoDBStore{
		client: client,
		table:  table,
		now:    time.Now,
	}
}

func (s *DynamoDBStore) key(key models.StateKey) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrSensorMetric: &types.AttributeValueMemberS{Value: key.PartitionKey()},
		attrSubscriberID: &types.AttributeValueMemberS{Value: key.SubscriberID},
	}
}

// Get reads the state with a consistent read so a write from the previous
// record of the same partition is visible.
func (s *DynamoDBStore) Get(ctx context.Context, key models.StateKey) (*models.AlarmState, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            s.key(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get state %s: %w", key, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var item stateItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", key, err)
	}

	kind := models.AlarmKind(item.LastState)
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %s has lastState %q", ErrCorruptState, key, item.LastState)
	}

	st := &models.AlarmState{LastState: kind}
	if item.LastNotifiedAt != nil {
		t := time.UnixMilli(*item.LastNotifiedAt).UTC()
		st.LastNotifiedAt = &t
	}
	return st, nil
}

// Put overwrites the state of a key.
func (s *DynamoDBStore) Put(ctx context.Context, key models.StateKey, st models.AlarmState) error {
	item := stateItem{
		SensorMetric: key.PartitionKey(),
		SubscriberID: key.SubscriberID,
		LastState:    string(st.LastState),
		UpdatedAt:    s.now().UnixMilli(),
	}
	if st.LastNotifiedAt != nil {
		ms := st.LastNotifiedAt.UnixMilli()
		item.LastNotifiedAt = &ms
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("encode state %s: %w", key, err)
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("put state %s: %w", key, err)
	}
	return nil
}
