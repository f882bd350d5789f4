package types

// S3 notification field names as they appear in an SQS message body. The body
// of each SQS record is a JSON S3 event: {"Records":[{"s3":{"bucket":{"name":...},
// "object":{"key":...}}}]}. S3 also publishes a one-off "s3:TestEvent" body
// without Records when a notification is first configured.
const (
	S3TestEventName = "s3:TestEvent"
)

// S3TestEvent is the body S3 publishes when a notification target is configured.
type S3TestEvent struct {
	Service string `json:"Service"`
	Event   string `json:"Event"`
	Bucket  string `json:"Bucket"`
}
