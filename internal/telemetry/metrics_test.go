package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"thumbnails/internal/types"
)

// mockCloudWatchClient records PutMetricData calls for verification.
type mockCloudWatchClient struct {
	calls     []*cloudwatch.PutMetricDataInput
	returnErr error
}

func (m *mockCloudWatchClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

// recordingLogger captures Warn calls.
type recordingLogger struct {
	types.NopLogger
	warnings []string
}

func (l *recordingLogger) Warn(msg string, _ ...any) { l.warnings = append(l.warnings, msg) }

func datumByName(t *testing.T, data []cwtypes.MetricDatum, name, reason string) cwtypes.MetricDatum {
	t.Helper()
	for _, d := range data {
		if aws.ToString(d.MetricName) != name {
			continue
		}
		if reason == "" {
			return d
		}
		for _, dim := range d.Dimensions {
			if aws.ToString(dim.Name) == types.DimReason && aws.ToString(dim.Value) == reason {
				return d
			}
		}
	}
	t.Fatalf("metric %s (reason %q) not found", name, reason)
	return cwtypes.MetricDatum{}
}

func TestRecordBatch(t *testing.T) {
	cw := &mockCloudWatchClient{}
	rec := NewCloudWatchRecorder(cw, "", &recordingLogger{})

	rec.RecordBatch(context.Background(), BatchStats{
		Processed: 5,
		Failed:    2,
		Published: 9,
		FailuresByReason: map[types.ErrorKind]int{
			types.ErrKindFetch:       1,
			types.ErrKindImageDecode: 1,
		},
		Duration: 1500 * time.Millisecond,
	})

	if len(cw.calls) != 1 {
		t.Fatalf("expected 1 PutMetricData call, got %d", len(cw.calls))
	}
	input := cw.calls[0]
	if aws.ToString(input.Namespace) != types.MetricNamespace {
		t.Errorf("expected namespace %q, got %q", types.MetricNamespace, aws.ToString(input.Namespace))
	}
	if len(input.MetricData) != 5 {
		t.Fatalf("expected 5 metric data, got %d", len(input.MetricData))
	}

	if v := aws.ToFloat64(datumByName(t, input.MetricData, types.MetricImagesProcessed, "").Value); v != 5 {
		t.Errorf("ImagesProcessed = %v, want 5", v)
	}
	if v := aws.ToFloat64(datumByName(t, input.MetricData, types.MetricDerivativesPublished, "").Value); v != 9 {
		t.Errorf("DerivativesPublished = %v, want 9", v)
	}
	duration := datumByName(t, input.MetricData, types.MetricBatchDuration, "")
	if aws.ToFloat64(duration.Value) != 1500 || duration.Unit != cwtypes.StandardUnitMilliseconds {
		t.Errorf("unexpected BatchDuration datum: %v %s", aws.ToFloat64(duration.Value), duration.Unit)
	}
	fetch := datumByName(t, input.MetricData, types.MetricImagesFailed, string(types.ErrKindFetch))
	if aws.ToFloat64(fetch.Value) != 1 || len(fetch.Dimensions) != 2 {
		t.Errorf("unexpected ImagesFailed{fetch} datum: %+v", fetch)
	}
	for _, d := range input.MetricData {
		fn := d.Dimensions[0]
		if aws.ToString(fn.Name) != types.DimFunction || aws.ToString(fn.Value) != types.FunctionThumbnailWorker {
			t.Errorf("metric %s missing Function dimension", aws.ToString(d.MetricName))
		}
	}
}

func TestRecordRedrive(t *testing.T) {
	cw := &mockCloudWatchClient{}
	rec := NewCloudWatchRecorder(cw, "Custom", &recordingLogger{})

	rec.RecordRedrive(context.Background(), types.RedriveResult{RedrivenCount: 7, Drains: 2, DeleteFailures: 1})

	if len(cw.calls) != 1 {
		t.Fatalf("expected 1 PutMetricData call, got %d", len(cw.calls))
	}
	input := cw.calls[0]
	if aws.ToString(input.Namespace) != "Custom" {
		t.Errorf("expected namespace Custom, got %q", aws.ToString(input.Namespace))
	}
	if v := aws.ToFloat64(datumByName(t, input.MetricData, types.MetricMessagesRedriven, "").Value); v != 7 {
		t.Errorf("MessagesRedriven = %v, want 7", v)
	}
	if v := aws.ToFloat64(datumByName(t, input.MetricData, types.MetricRedriveDeleteFailures, "").Value); v != 1 {
		t.Errorf("RedriveDeleteFailures = %v, want 1", v)
	}
}

func TestRecordErrorsAreLoggedNotReturned(t *testing.T) {
	cw := &mockCloudWatchClient{returnErr: errors.New("throttled")}
	logger := &recordingLogger{}
	rec := NewCloudWatchRecorder(cw, "", logger)

	rec.RecordBatch(context.Background(), BatchStats{Processed: 1})
	rec.RecordRedrive(context.Background(), types.RedriveResult{})

	if len(logger.warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(logger.warnings))
	}
}
