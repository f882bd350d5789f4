// Package telemetry publishes pipeline metrics to CloudWatch.
package telemetry

import (
	"context"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"thumbnails/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// BatchStats is the per-invocation summary of one thumbnail worker batch.
type BatchStats struct {
	Processed int
	Failed    int
	Published int

	// FailuresByReason counts failing work items per error kind.
	FailuresByReason map[types.ErrorKind]int
	Duration         time.Duration
}

// Recorder records pipeline metrics. Implementations never fail the caller.
type Recorder interface {
	RecordBatch(ctx context.Context, stats BatchStats)
	RecordRedrive(ctx context.Context, result types.RedriveResult)
}

var (
	_ Recorder = (*CloudWatchRecorder)(nil)
	_ Recorder = NopRecorder{}
)

// CloudWatchRecorder sends one PutMetricData call per invocation. Errors are
// logged and swallowed.
type CloudWatchRecorder struct {
	client    CloudWatchClient
	namespace string
	logger    types.Logger
}

// NewCloudWatchRecorder creates a recorder for namespace. An empty namespace
// falls back to types.MetricNamespace.
func NewCloudWatchRecorder(client CloudWatchClient, namespace string, logger types.Logger) *CloudWatchRecorder {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	return &CloudWatchRecorder{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// RecordBatch emits ImagesProcessed, DerivativesPublished and BatchDuration
// with the Function dimension, plus one ImagesFailed datum per failure reason.
func (r *CloudWatchRecorder) RecordBatch(ctx context.Context, stats BatchStats) {
	fn := functionDim(types.FunctionThumbnailWorker)
	data := []cwtypes.MetricDatum{
		count(types.MetricImagesProcessed, stats.Processed, fn),
		count(types.MetricDerivativesPublished, stats.Published, fn),
		{
			MetricName: aws.String(types.MetricBatchDuration),
			Value:      aws.Float64(float64(stats.Duration.Milliseconds())),
			Unit:       cwtypes.StandardUnitMilliseconds,
			Dimensions: []cwtypes.Dimension{fn},
		},
	}

	reasons := make([]string, 0, len(stats.FailuresByReason))
	for reason := range stats.FailuresByReason {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		n := stats.FailuresByReason[types.ErrorKind(reason)]
		data = append(data, count(types.MetricImagesFailed, n, fn, cwtypes.Dimension{
			Name:  aws.String(types.DimReason),
			Value: aws.String(reason),
		}))
	}

	r.put(ctx, data, "processed", stats.Processed, "failed", stats.Failed)
}

// RecordRedrive emits MessagesRedriven and RedriveDeleteFailures.
func (r *CloudWatchRecorder) RecordRedrive(ctx context.Context, result types.RedriveResult) {
	fn := functionDim(types.FunctionDLQRedriver)
	r.put(ctx, []cwtypes.MetricDatum{
		count(types.MetricMessagesRedriven, result.RedrivenCount, fn),
		count(types.MetricRedriveDeleteFailures, result.DeleteFailures, fn),
	}, "redriven", result.RedrivenCount)
}

func (r *CloudWatchRecorder) put(ctx context.Context, data []cwtypes.MetricDatum, logArgs ...any) {
	_, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(r.namespace),
		MetricData: data,
	})
	if err != nil {
		r.logger.Warn("failed to publish metrics", append([]any{"error", err.Error()}, logArgs...)...)
	}
}

func functionDim(name string) cwtypes.Dimension {
	return cwtypes.Dimension{
		Name:  aws.String(types.DimFunction),
		Value: aws.String(name),
	}
}

func count(name string, v int, dims ...cwtypes.Dimension) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(float64(v)),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: dims,
	}
}

// NopRecorder discards all metrics. Used when ENABLE_METRICS is false and in
// the local CLI.
type NopRecorder struct{}

func (NopRecorder) RecordBatch(context.Context, BatchStats)            {}
func (NopRecorder) RecordRedrive(context.Context, types.RedriveResult) {}
