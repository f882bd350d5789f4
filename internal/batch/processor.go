// Package batch runs the thumbnail worker's SQS batches: it decodes the
// batch, generates derivatives for every uploaded object, and reports the
// messages that need to be retried.
//
// A failure while handling one object never stops its siblings. It is
// logged with the object's identity and the enclosing message id goes into
// the partial batch response. Only a batch that cannot be decoded at all
// fails the whole invocation.
package batch

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"thumbnails/internal/notification"
	"thumbnails/internal/telemetry"
	"thumbnails/internal/types"
)

// MaxConcurrency caps the per-batch worker pool.
const MaxConcurrency = 16

// Generator produces and publishes the derivatives of one work item,
// returning the keys it published.
type Generator interface {
	Generate(ctx context.Context, item types.WorkItem) ([]string, error)
}

// Processor handles SQS batches for the thumbnail worker.
type Processor struct {
	gen         Generator
	logger      types.Logger
	metrics     telemetry.Recorder
	concurrency int
}

// NewProcessor creates a Processor. concurrency is clamped to
// [1, MaxConcurrency]; 1 processes items strictly in batch order.
func NewProcessor(gen Generator, logger types.Logger, metrics telemetry.Recorder, concurrency int) *Processor {
	return &Processor{
		gen:         gen,
		logger:      logger,
		metrics:     metrics,
		concurrency: min(max(concurrency, 1), MaxConcurrency),
	}
}

// Handle is the Lambda entry point. It returns an error only when the batch
// itself cannot be decoded; otherwise the response lists the message ids
// with at least one failed item.
func (p *Processor) Handle(ctx context.Context, payload json.RawMessage) (events.SQSEventResponse, error) {
	envelopes, err := notification.DecodeBatch(payload)
	if err != nil {
		p.logger.Error("failed to decode SQS batch", "error", err.Error())
		return events.SQSEventResponse{}, err
	}
	return Response(p.Process(ctx, envelopes)), nil
}

// Response converts a BatchResult into the SQS partial batch response.
func Response(result types.BatchResult) events.SQSEventResponse {
	failures := make([]events.SQSBatchItemFailure, 0, len(result.FailedCorrelationIDs))
	for _, id := range result.FailedCorrelationIDs {
		failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: id})
	}
	return events.SQSEventResponse{BatchItemFailures: failures}
}

// job is one work item plus the position of its envelope in the batch.
type job struct {
	item     types.WorkItem
	envelope int
}

// Process handles already-decoded envelopes. Notification decode failures
// are attributed to their envelope; items are then processed through the
// worker pool. Metrics are recorded once, after every item has finished.
func (p *Processor) Process(ctx context.Context, envelopes []notification.Envelope) types.BatchResult {
	start := time.Now()
	logger := p.logger.With("request_id", requestID(ctx))
	failures := newFailureSet()

	var jobs []job
	for i, env := range envelopes {
		items, err := notification.Decode(env)
		if err != nil {
			logger.Error("failed to decode notification",
				"correlation_id", env.CorrelationID,
				"reason", string(types.KindOf(err)),
				"error", err.Error(),
			)
			failures.add(env.CorrelationID, i, types.KindOf(err))
			continue
		}
		if len(items) == 0 {
			logger.Info("notification carried no objects", "correlation_id", env.CorrelationID)
		}
		for _, item := range items {
			jobs = append(jobs, job{item: item, envelope: i})
		}
	}

	var (
		mu        sync.Mutex
		published int
	)

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for _, j := range jobs {
		g.Go(func() error {
			keys, err := p.run(ctx, j.item)
			n := len(keys)
			itemLogger := logger.With(
				"correlation_id", j.item.CorrelationID,
				"bucket", j.item.SourceBucket,
				"key", j.item.SourceKey,
			)
			if err != nil {
				itemLogger.Error("failed to generate derivatives",
					"reason", string(types.KindOf(err)),
					"not_found", types.IsNotFound(err),
					"error", err.Error(),
					"published", n,
				)
				failures.add(j.item.CorrelationID, j.envelope, types.KindOf(err))
			} else {
				itemLogger.Info("derivatives published", "count", n)
			}

			mu.Lock()
			published += n
			mu.Unlock()
			// Errors are isolated per item and never cancel the group.
			return nil
		})
	}
	_ = g.Wait()

	result := types.BatchResult{
		FailedCorrelationIDs: failures.ids(),
		Processed:            len(jobs),
		Failed:               failures.failedItems(),
	}

	p.metrics.RecordBatch(ctx, telemetry.BatchStats{
		Processed:        result.Processed,
		Failed:           result.Failed,
		Published:        published,
		FailuresByReason: failures.reasons(),
		Duration:         time.Since(start),
	})

	logger.Info("batch processed",
		"envelopes", len(envelopes),
		"items", result.Processed,
		"failed_items", result.Failed,
		"failed_messages", len(result.FailedCorrelationIDs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result
}

// run generates one item, converting a panic into an item failure. Items
// not started before the invocation's context ends are failed without being
// attempted, so the queue redelivers them.
func (p *Processor) run(ctx context.Context, item types.WorkItem) (keys []string, err error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, types.NewCancelledError(ctxErr)
	}
	defer func() {
		if r := recover(); r != nil {
			keys, err = nil, types.NewPanicError(r)
		}
	}()
	return p.gen.Generate(ctx, item)
}

// failureSet collects failing correlation ids. Safe for concurrent use.
type failureSet struct {
	mu       sync.Mutex
	position map[string]int
	byReason map[types.ErrorKind]int
	count    int
}

func newFailureSet() *failureSet {
	return &failureSet{
		position: make(map[string]int),
		byReason: make(map[types.ErrorKind]int),
	}
}

func (s *failureSet) add(correlationID string, envelope int, reason types.ErrorKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position[correlationID] = envelope
	s.byReason[reason]++
	s.count++
}

// ids returns each failing correlation id once, ordered by envelope position.
func (s *failureSet) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.position))
	for id := range s.position {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.position[ids[i]] < s.position[ids[j]]
	})
	return ids
}

func (s *failureSet) failedItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *failureSet) reasons() map[types.ErrorKind]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[types.ErrorKind]int, len(s.byReason))
	for k, v := range s.byReason {
		out[k] = v
	}
	return out
}

// requestID returns the Lambda request id, or a fresh id outside Lambda.
func requestID(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	return uuid.NewString()
}
