package types

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes pipeline failures. The kind doubles as the "reason"
// tag on failure logs and metrics.
type ErrorKind string

const (
	// Batch level: the SQS event itself could not be parsed. Fatal.
	ErrKindEnvelopeDecode ErrorKind = "envelope_decode"

	// Item level: caught and isolated per envelope.
	ErrKindNotificationDecode ErrorKind = "notification_decode"
	ErrKindFetch              ErrorKind = "fetch"
	ErrKindImageDecode        ErrorKind = "image_decode"
	ErrKindEncode             ErrorKind = "encode"
	ErrKindPublish            ErrorKind = "publish"
	ErrKindPanic              ErrorKind = "panic"
	ErrKindCancelled          ErrorKind = "cancelled"

	// Redrive loop. Receive and send abort the loop; delete is tolerated.
	ErrKindReceive ErrorKind = "receive"
	ErrKindSend    ErrorKind = "send"
	ErrKindDelete  ErrorKind = "delete"

	ErrKindUnknown ErrorKind = "unknown"
)

// PipelineError is the error type returned by every pipeline stage.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Err     error

	// NotFound is set on fetch errors when the store reported the key missing.
	NotFound bool
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is matches another *PipelineError by kind, so sentinel comparisons such as
// errors.Is(err, &PipelineError{Kind: ErrKindFetch}) work through wrapping.
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

func newPipelineError(kind ErrorKind, err error, format string, args ...any) *PipelineError {
	return &PipelineError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// NewEnvelopeDecodeError reports a malformed SQS batch.
func NewEnvelopeDecodeError(err error) *PipelineError {
	return newPipelineError(ErrKindEnvelopeDecode, err, "failed to decode SQS event")
}

// NewNotificationDecodeError reports a malformed S3 notification inside one SQS message.
func NewNotificationDecodeError(messageID string, err error) *PipelineError {
	return newPipelineError(ErrKindNotificationDecode, err, "failed to decode notification in message %s", messageID)
}

// NewFetchError reports a failed download of the source object.
func NewFetchError(bucket, key string, notFound bool, err error) *PipelineError {
	e := newPipelineError(ErrKindFetch, err, "failed to fetch s3://%s/%s", bucket, key)
	e.NotFound = notFound
	return e
}

// NewImageDecodeError reports source bytes that are not a supported raster format.
func NewImageDecodeError(key string, err error) *PipelineError {
	return newPipelineError(ErrKindImageDecode, err, "failed to decode image %s", key)
}

// NewEncodeError reports a derivative that could not be encoded.
func NewEncodeError(name string, err error) *PipelineError {
	return newPipelineError(ErrKindEncode, err, "failed to encode derivative %s", name)
}

// NewPublishError reports a failed upload of a derivative.
func NewPublishError(bucket, key string, err error) *PipelineError {
	return newPipelineError(ErrKindPublish, err, "failed to publish s3://%s/%s", bucket, key)
}

// NewPanicError converts a recovered panic into an item failure.
func NewPanicError(v any) *PipelineError {
	return newPipelineError(ErrKindPanic, nil, "recovered panic: %v", v)
}

// NewCancelledError marks an item that was never started because the
// invocation ran out of time.
func NewCancelledError(err error) *PipelineError {
	return newPipelineError(ErrKindCancelled, err, "invocation ended before item was processed")
}

// NewReceiveError reports a failed receive from a queue.
func NewReceiveError(queueURL string, err error) *PipelineError {
	return newPipelineError(ErrKindReceive, err, "failed to receive from %s", queueURL)
}

// NewSendError reports a failed send to a queue.
func NewSendError(queueURL string, err error) *PipelineError {
	return newPipelineError(ErrKindSend, err, "failed to send to %s", queueURL)
}

// NewDeleteError reports a failed delete-by-receipt on a queue.
func NewDeleteError(queueURL string, err error) *PipelineError {
	return newPipelineError(ErrKindDelete, err, "failed to delete from %s", queueURL)
}

// KindOf returns the ErrorKind of the first PipelineError in err's chain,
// or ErrKindUnknown.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ErrKindUnknown
}

// IsNotFound reports whether err is a fetch error for a missing object.
func IsNotFound(err error) bool {
	var pe *PipelineError
	return errors.As(err, &pe) && pe.Kind == ErrKindFetch && pe.NotFound
}
