// Package notification turns the SQS batch delivered to the thumbnail worker
// into work items. The batch is two levels deep: each SQS record (the
// envelope) carries an S3 event notification in its body, and each S3 event
// record inside it names one uploaded object.
package notification

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"thumbnails/internal/types"
)

// Envelope is one SQS record: the unit the queue retries.
type Envelope struct {
	CorrelationID string
	Body          string
}

// sqsBatch mirrors events.SQSEvent but keeps Records as a pointer so an
// absent field can be told apart from an empty batch.
type sqsBatch struct {
	Records *[]events.SQSMessage `json:"Records"`
}

// DecodeBatch parses the raw Lambda payload as an SQS event. Any failure here
// is fatal for the invocation: without correlation ids there is nothing to
// report partial failures against.
func DecodeBatch(payload []byte) ([]Envelope, error) {
	var batch sqsBatch
	if err := json.Unmarshal(payload, &batch); err != nil {
		return nil, types.NewEnvelopeDecodeError(err)
	}
	if batch.Records == nil {
		return nil, types.NewEnvelopeDecodeError(errors.New("payload has no Records field"))
	}
	return FromSQSEvent(events.SQSEvent{Records: *batch.Records})
}

// FromSQSEvent converts an already-parsed SQS event. Every record must carry
// a message id.
func FromSQSEvent(event events.SQSEvent) ([]Envelope, error) {
	envelopes := make([]Envelope, 0, len(event.Records))
	for i, record := range event.Records {
		if record.MessageId == "" {
			return nil, types.NewEnvelopeDecodeError(fmt.Errorf("record %d has no messageId", i))
		}
		envelopes = append(envelopes, Envelope{
			CorrelationID: record.MessageId,
			Body:          record.Body,
		})
	}
	return envelopes, nil
}

// Decode parses the S3 event carried by env and returns one work item per S3
// record, in order, all sharing env's correlation id. The S3 test event that
// is published when a notification is configured yields no items.
func Decode(env Envelope) ([]types.WorkItem, error) {
	body := strings.TrimSpace(env.Body)
	if body == "" {
		return nil, types.NewNotificationDecodeError(env.CorrelationID, errors.New("empty message body"))
	}

	var s3Event events.S3Event
	if err := json.Unmarshal([]byte(body), &s3Event); err != nil {
		return nil, types.NewNotificationDecodeError(env.CorrelationID, err)
	}

	if len(s3Event.Records) == 0 {
		if isTestEvent(body) {
			return nil, nil
		}
		return nil, types.NewNotificationDecodeError(env.CorrelationID, errors.New("notification has no Records"))
	}

	items := make([]types.WorkItem, 0, len(s3Event.Records))
	for i, record := range s3Event.Records {
		bucket := record.S3.Bucket.Name
		// S3 URL-encodes keys in notifications; prefer the decoded form.
		key := record.S3.Object.URLDecodedKey
		if key == "" {
			key = record.S3.Object.Key
		}
		if bucket == "" || key == "" {
			return nil, types.NewNotificationDecodeError(env.CorrelationID,
				fmt.Errorf("record %d is missing bucket name or object key", i))
		}
		items = append(items, types.WorkItem{
			SourceBucket:  bucket,
			SourceKey:     key,
			CorrelationID: env.CorrelationID,
		})
	}
	return items, nil
}

func isTestEvent(body string) bool {
	var test types.S3TestEvent
	if err := json.Unmarshal([]byte(body), &test); err != nil {
		return false
	}
	return test.Event == types.S3TestEventName
}
