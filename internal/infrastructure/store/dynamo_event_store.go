package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/example/slashtodo/internal/domain/event"
)

// dynamoDeleteBatchSize is DynamoDB's BatchWriteItem limit
const dynamoDeleteBatchSize = 25

// DynamoAPI is the subset of the DynamoDB client the event store uses
type DynamoAPI interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// DynamoEventStore stores events in DynamoDB with aggregate_id as partition
// key and version as sort key. Events are streamed to Kinesis via the
// table's Kinesis integration.
type DynamoEventStore struct {
	client    DynamoAPI
	codec     Codec
	tableName string
	batchSize int
}

// dynamoEvent represents the DynamoDB item structure
type dynamoEvent struct {
	AggregateID   string `dynamodbav:"aggregate_id"`
	Version       int    `dynamodbav:"version"`
	EventID       string `dynamodbav:"event_id"`
	AggregateType string `dynamodbav:"aggregate_type"`
	Kind          string `dynamodbav:"kind"`
	Data          string `dynamodbav:"data"`
	CreatedAt     string `dynamodbav:"created_at"`
}

func NewDynamoEventStore(client DynamoAPI, codec Codec, tableName string) *DynamoEventStore {
	return &DynamoEventStore{
		client:    client,
		codec:     codec,
		tableName: tableName,
		batchSize: MaxBatchSize,
	}
}

// WithBatchSize overrides the sub-batch limit
func (es *DynamoEventStore) WithBatchSize(n int) *DynamoEventStore {
	es.batchSize = n
	return es
}

// NewDynamoClient builds a client from the default AWS credential chain.
// endpoint overrides the service URL, e.g. for DynamoDB Local.
func NewDynamoClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// GetByID returns all events for an aggregate, ascending by version
func (es *DynamoEventStore) GetByID(ctx context.Context, aggregateID string) ([]event.Event, error) {
	items, err := es.queryAggregate(ctx, aggregateID, "")
	if err != nil {
		return nil, err
	}

	events := make([]event.Event, 0, len(items))
	for _, item := range items {
		r, err := recordFromItem(item)
		if err != nil {
			return nil, err
		}
		e, err := es.codec.Decode(r)
		if err != nil {
			return nil, fmt.Errorf("failed to decode event %s: %w", r.EventID, err)
		}
		events = append(events, e)
	}
	return events, nil
}

// Save writes each sub-batch with one TransactWriteItems call. Every put is
// conditional on the (aggregate_id, version) slot being free.
func (es *DynamoEventStore) Save(ctx context.Context, aggregateID string, expectedStartVersion int, events []event.Event) error {
	if err := ValidateBatch(aggregateID, expectedStartVersion, events); err != nil {
		return err
	}
	records, err := EncodeAll(es.codec, events)
	if err != nil {
		return err
	}

	return commitBatches(aggregateID, records, es.batchSize, func(_ int, batch []Record) error {
		writes := make([]types.TransactWriteItem, 0, len(batch))
		for _, r := range batch {
			av, err := attributevalue.MarshalMap(itemFromRecord(r))
			if err != nil {
				return fmt.Errorf("failed to marshal event: %w", err)
			}
			writes = append(writes, types.TransactWriteItem{
				Put: &types.Put{
					TableName:           aws.String(es.tableName),
					Item:                av,
					ConditionExpression: aws.String("attribute_not_exists(aggregate_id) AND attribute_not_exists(version)"),
				},
			})
		}

		_, err := es.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: writes,
		})
		if err != nil {
			return classifyDynamoError(aggregateID, batch[0].Version, err)
		}
		return nil
	})
}

func classifyDynamoError(aggregateID string, version int, err error) error {
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for _, reason := range canceled.CancellationReasons {
			if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
				return fmt.Errorf("%w: %s batch from version %d", ErrConflict, aggregateID, version)
			}
		}
	}
	var condFailed *types.ConditionalCheckFailedException
	if errors.As(err, &condFailed) {
		return fmt.Errorf("%w: %s batch from version %d", ErrConflict, aggregateID, version)
	}
	return fmt.Errorf("failed to write events: %w", err)
}

// Delete removes every item of the aggregate in BatchWriteItem chunks
func (es *DynamoEventStore) Delete(ctx context.Context, aggregateID string) error {
	items, err := es.queryAggregate(ctx, aggregateID, "version")
	if err != nil {
		return err
	}

	for _, chunk := range Chunk(items, dynamoDeleteBatchSize) {
		requests := make([]types.WriteRequest, 0, len(chunk))
		for _, item := range chunk {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{
					Key: map[string]types.AttributeValue{
						"aggregate_id": &types.AttributeValueMemberS{Value: aggregateID},
						"version":      item["version"],
					},
				},
			})
		}

		pending := map[string][]types.WriteRequest{es.tableName: requests}
		for len(pending) > 0 {
			out, err := es.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return fmt.Errorf("failed to delete events: %w", err)
			}
			pending = out.UnprocessedItems
		}
	}
	return nil
}

// queryAggregate pages through all items of one partition
func (es *DynamoEventStore) queryAggregate(ctx context.Context, aggregateID, projection string) ([]map[string]types.AttributeValue, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(es.tableName),
		KeyConditionExpression: aws.String("aggregate_id = :aid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":aid": &types.AttributeValueMemberS{Value: aggregateID},
		},
		ScanIndexForward: aws.Bool(true), // Ascending order by version
		ConsistentRead:   aws.Bool(true),
	}
	if projection != "" {
		input.ProjectionExpression = aws.String(projection)
	}

	var items []map[string]types.AttributeValue
	for {
		result, err := es.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query events: %w", err)
		}
		items = append(items, result.Items...)
		if len(result.LastEvaluatedKey) == 0 {
			return items, nil
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
}

func itemFromRecord(r Record) dynamoEvent {
	return dynamoEvent{
		AggregateID:   r.AggregateID,
		Version:       r.Version,
		EventID:       r.EventID,
		AggregateType: r.AggregateType,
		Kind:          r.Kind,
		Data:          string(r.Data),
		CreatedAt:     r.Timestamp.Format(time.RFC3339Nano),
	}
}

func recordFromItem(item map[string]types.AttributeValue) (Record, error) {
	var de dynamoEvent
	if err := attributevalue.UnmarshalMap(item, &de); err != nil {
		return Record{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return RecordFromFields(de.AggregateID, de.AggregateType, strconv.Itoa(de.Version), de.EventID, de.Kind, de.Data, de.CreatedAt)
}

// RecordFromFields rebuilds a Record from the string attributes of a stored
// item. The stream adapter uses it as well.
func RecordFromFields(aggregateID, aggregateType, version, eventID, kind, data, createdAt string) (Record, error) {
	v, err := strconv.Atoi(version)
	if err != nil {
		return Record{}, fmt.Errorf("failed to parse version %q: %w", version, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Record{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return Record{
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Version:       v,
		EventID:       eventID,
		Kind:          kind,
		Data:          json.RawMessage(data),
		Timestamp:     ts,
	}, nil
}
