package notification

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thumbnails/internal/types"
)

// s3Body builds an S3 event notification body naming the given keys in bucket.
func s3Body(t *testing.T, bucket string, keys ...string) string {
	t.Helper()
	records := make([]map[string]any, 0, len(keys))
	for _, key := range keys {
		records = append(records, map[string]any{
			"eventVersion": "2.1",
			"eventSource":  "aws:s3",
			"eventName":    "ObjectCreated:Put",
			"s3": map[string]any{
				"bucket": map[string]any{"name": bucket, "arn": "arn:aws:s3:::" + bucket},
				"object": map[string]any{"key": key, "size": 1024},
			},
		})
	}
	body, err := json.Marshal(map[string]any{"Records": records})
	require.NoError(t, err)
	return string(body)
}

func TestDecodeBatch(t *testing.T) {
	payload := `{"Records":[
		{"messageId":"msg-1","receiptHandle":"rh-1","body":"b1","eventSource":"aws:sqs"},
		{"messageId":"msg-2","receiptHandle":"rh-2","body":"b2","eventSource":"aws:sqs"}
	]}`

	envs, err := DecodeBatch([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, []Envelope{
		{CorrelationID: "msg-1", Body: "b1"},
		{CorrelationID: "msg-2", Body: "b2"},
	}, envs)
}

func TestDecodeBatchEmptyRecords(t *testing.T) {
	envs, err := DecodeBatch([]byte(`{"Records":[]}`))
	require.NoError(t, err)
	assert.Empty(t, envs)
}

func TestDecodeBatchFatalErrors(t *testing.T) {
	tests := map[string]string{
		"not json":          `{"Records":`,
		"missing records":   `{"detail-type":"Scheduled Event"}`,
		"missing messageId": `{"Records":[{"body":"x"}]}`,
		"records not array": `{"Records":"nope"}`,
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeBatch([]byte(payload))
			require.Error(t, err)
			assert.Equal(t, types.ErrKindEnvelopeDecode, types.KindOf(err))
		})
	}
}

func TestDecodeFlattensRecordsSharingCorrelationID(t *testing.T) {
	env := Envelope{
		CorrelationID: "msg-1",
		Body:          s3Body(t, "uploads", "a/one.jpg", "b/two.png", "three.gif"),
	}

	items, err := Decode(env)
	require.NoError(t, err)
	assert.Equal(t, []types.WorkItem{
		{SourceBucket: "uploads", SourceKey: "a/one.jpg", CorrelationID: "msg-1"},
		{SourceBucket: "uploads", SourceKey: "b/two.png", CorrelationID: "msg-1"},
		{SourceBucket: "uploads", SourceKey: "three.gif", CorrelationID: "msg-1"},
	}, items)
}

func TestDecodeUsesURLDecodedKey(t *testing.T) {
	env := Envelope{CorrelationID: "msg-1", Body: s3Body(t, "uploads", "photos/summer+trip%3A2026.jpg")}

	items, err := Decode(env)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "photos/summer trip:2026.jpg", items[0].SourceKey)
}

func TestDecodeTestEventYieldsNothing(t *testing.T) {
	env := Envelope{
		CorrelationID: "msg-1",
		Body:          `{"Service":"Amazon S3","Event":"s3:TestEvent","Time":"2026-10-01T00:00:00.000Z","Bucket":"uploads"}`,
	}

	items, err := Decode(env)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestDecodeMalformedNotification(t *testing.T) {
	tests := map[string]string{
		"empty body":     "  ",
		"not json":       "hello",
		"no records":     `{"foo":"bar"}`,
		"missing bucket": `{"Records":[{"s3":{"bucket":{"name":""},"object":{"key":"a.jpg"}}}]}`,
		"missing key":    `{"Records":[{"s3":{"bucket":{"name":"b"},"object":{"key":""}}}]}`,
		"bad escape":     `{"Records":[{"s3":{"bucket":{"name":"b"},"object":{"key":"%zz.jpg"}}}]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(Envelope{CorrelationID: "msg-9", Body: body})
			require.Error(t, err)
			assert.Equal(t, types.ErrKindNotificationDecode, types.KindOf(err))
			assert.Contains(t, err.Error(), "msg-9")
		})
	}
}
