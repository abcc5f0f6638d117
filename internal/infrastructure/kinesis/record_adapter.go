package kinesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/aws/aws-lambda-go/events"

	"github.com/example/slashtodo/internal/infrastructure/store"
)

// ConvertFromKinesisRecord converts a Kinesis record carrying a DynamoDB
// stream change of the event table into a store.Record. Only INSERTs are
// events; anything else yields nil.
func ConvertFromKinesisRecord(record events.KinesisEventRecord) (*store.Record, error) {
	var dynamoDBRecord events.DynamoDBEventRecord
	if err := json.Unmarshal(record.Kinesis.Data, &dynamoDBRecord); err != nil {
		return nil, fmt.Errorf("failed to unmarshal DynamoDB record: %w", err)
	}
	return ConvertFromDynamoDBStreamRecord(dynamoDBRecord)
}

// ConvertFromDynamoDBStreamRecord converts a DynamoDB stream record directly
func ConvertFromDynamoDBStreamRecord(record events.DynamoDBEventRecord) (*store.Record, error) {
	if record.EventName != string(events.DynamoDBOperationTypeInsert) {
		return nil, nil
	}
	return convertDynamoDBImage(record.Change.NewImage)
}

func convertDynamoDBImage(image map[string]events.DynamoDBAttributeValue) (*store.Record, error) {
	if image == nil {
		return nil, errors.New("DynamoDB image is nil")
	}

	str := func(name string) string {
		if v, ok := image[name]; ok && v.DataType() == events.DataTypeString {
			return v.String()
		}
		return ""
	}
	var version string
	if v, ok := image["version"]; ok && v.DataType() == events.DataTypeNumber {
		version = v.Number()
	}

	aggregateID, eventID, kind := str("aggregate_id"), str("event_id"), str("kind")
	if aggregateID == "" || eventID == "" || kind == "" || version == "" {
		return nil, fmt.Errorf("missing required fields: aggregate_id=%q, event_id=%q, kind=%q, version=%q",
			aggregateID, eventID, kind, version)
	}

	record, err := store.RecordFromFields(aggregateID, str("aggregate_type"), version, eventID, kind, str("data"), str("created_at"))
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// RecordHandler projects one converted record
type RecordHandler func(ctx context.Context, record store.Record) error

// HandleKinesisEvent converts and handles the records of a batch in order.
// A shard is ordered per aggregate, so once a record fails it and every
// record after it are reported as batch item failures to be redelivered.
func HandleKinesisEvent(ctx context.Context, kinesisEvent events.KinesisEvent, handle RecordHandler) events.KinesisEventResponse {
	var failures []events.KinesisBatchItemFailure
	for _, r := range kinesisEvent.Records {
		if len(failures) == 0 {
			err := handleKinesisRecord(ctx, r, handle)
			if err == nil {
				continue
			}
			log.Printf("[Kinesis] Failed to process record %s: %v", r.EventID, err)
		}
		failures = append(failures, events.KinesisBatchItemFailure{ItemIdentifier: r.Kinesis.SequenceNumber})
	}
	return events.KinesisEventResponse{BatchItemFailures: failures}
}

func handleKinesisRecord(ctx context.Context, r events.KinesisEventRecord, handle RecordHandler) error {
	record, err := ConvertFromKinesisRecord(r)
	if err != nil {
		return err
	}
	if record == nil {
		return nil
	}
	return handle(ctx, *record)
}
