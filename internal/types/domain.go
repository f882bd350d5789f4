// Package types holds the domain entities shared by the thumbnail worker and
// the DLQ redriver: work items decoded from upload notifications, derivative
// size specifications, batch outcomes, and the error taxonomy.
package types

import (
	"fmt"
	"strconv"
	"strings"
)

// WorkItem is one unit of derivative work: a single uploaded object.
// CorrelationID is the SQS message id of the envelope the item came from and
// is only used to report failures back to the queue infrastructure.
type WorkItem struct {
	SourceBucket  string
	SourceKey     string
	CorrelationID string
}

// DerivativeSpec is one configured output bounding box.
type DerivativeSpec struct {
	Width  int
	Height int
}

// String renders the size as "WxH", the form used in filenames and config.
func (s DerivativeSpec) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// ParseDerivativeSpec parses a "WxH" size such as "1280x720".
// Both dimensions must be positive integers.
func ParseDerivativeSpec(s string) (DerivativeSpec, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return DerivativeSpec{}, fmt.Errorf("invalid size %q: expected WxH", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return DerivativeSpec{}, fmt.Errorf("invalid width in size %q: %w", s, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return DerivativeSpec{}, fmt.Errorf("invalid height in size %q: %w", s, err)
	}
	if width <= 0 || height <= 0 {
		return DerivativeSpec{}, fmt.Errorf("invalid size %q: dimensions must be positive", s)
	}
	return DerivativeSpec{Width: width, Height: height}, nil
}

// BatchResult is the outcome of processing one SQS batch. FailedCorrelationIDs
// holds each failing envelope's id at most once, in batch order.
type BatchResult struct {
	FailedCorrelationIDs []string
	Processed            int
	Failed               int
}

// QueueMessage is a message received from an SQS queue during redrive.
// Body is forwarded verbatim; ReceiptHandle is only valid for the receive
// that produced it.
type QueueMessage struct {
	MessageID     string
	Body          string
	ReceiptHandle string
}

// RedriveResult summarizes one run of the redrive loop.
type RedriveResult struct {
	// RedrivenCount is the number of messages sent to the primary queue.
	RedrivenCount int `json:"redrivenCount"`
	// Drains counts receives that returned at least one message.
	Drains int `json:"drains"`
	// DeleteFailures counts messages that were sent but could not be removed
	// from the DLQ; each will be redriven again on a later receive.
	DeleteFailures int `json:"deleteFailures"`
	// Truncated is set when the drain cap or the invocation deadline stopped
	// the loop before the DLQ reported empty.
	Truncated bool `json:"truncated"`
}
