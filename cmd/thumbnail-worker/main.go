// Package main is the entrypoint for the Thumbnail Worker Lambda function.
//
// The worker is triggered by the images SQS queue. Every message body is an
// S3 event notification for one or more uploaded images; for each image the
// worker publishes the configured thumbnail sizes to the thumbnails bucket.
// Messages with at least one failed image are returned in batchItemFailures
// so SQS redelivers only those.
//
// Cold Start (main):
//  1. Load and validate WorkerConfig (SSM indirection outside local).
//  2. Initialize the zerolog logger.
//  3. Load AWS SDK configuration and build the S3 and CloudWatch clients.
//  4. Wire Store -> Generator -> Processor.
//  5. Register Processor.Handle and call lambda.Start.
//
// With APP_ENV=local the worker reads one SQS event JSON from stdin, runs it,
// and prints the partial batch response:
//
//	APP_ENV=local THUMBNAILS_BUCKET_NAME=thumbs go run ./cmd/thumbnail-worker < event.json
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"thumbnails/internal/batch"
	"thumbnails/internal/config"
	"thumbnails/internal/derivative"
	"thumbnails/internal/logging"
	"thumbnails/internal/storage"
	"thumbnails/internal/telemetry"
	"thumbnails/internal/types"
)

func main() {
	var provider config.SecretProvider
	if os.Getenv("APP_ENV") != "local" {
		provider = config.NewSSMProvider(os.Getenv("AWS_REGION"))
	}

	cfg, err := config.LoadWorkerConfig(provider)
	if err != nil {
		fmt.Fprintf(os.Stderr, "thumbnail-worker: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.Environment).With(
		"function", types.FunctionThumbnailWorker,
		"version", cfg.Build.Version,
	)
	logger.Info("Thumbnail Worker Lambda initializing (cold start)")

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		logger.Error("Failed to load AWS SDK config", "error", err.Error())
		os.Exit(1)
	}

	store := storage.New(storage.NewClient(awsCfg, cfg.AWS.EndpointURL))
	gen := derivative.NewGenerator(store, derivative.Config{
		Bucket:         cfg.Derivatives.Bucket,
		Folder:         cfg.Derivatives.Folder,
		FolderTemplate: cfg.Derivatives.FolderTemplate,
		Sizes:          cfg.Derivatives.Sizes.Specs(),
	})
	processor := batch.NewProcessor(gen, logger, newRecorder(cfg.Observability, awsCfg, logger), cfg.Derivatives.Concurrency)

	logger.Info("Thumbnail Worker Lambda initialized",
		"bucket", cfg.Derivatives.Bucket,
		"folder", cfg.Derivatives.Folder,
		"sizes", len(cfg.Derivatives.Sizes),
		"concurrency", cfg.Derivatives.Concurrency,
		"metrics_enabled", cfg.Observability.EnableMetrics,
	)

	if cfg.Environment == "local" {
		if err := runLocal(processor, os.Stdin, os.Stdout); err != nil {
			logger.Error("Handler execution failed", "error", err.Error())
			os.Exit(1)
		}
		return
	}

	lambda.Start(processor.Handle)
}

// runLocal feeds one SQS event from r through the processor and writes the
// partial batch response to w.
func runLocal(processor *batch.Processor, r io.Reader, w io.Writer) error {
	payload, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}
	if len(payload) == 0 {
		return fmt.Errorf("no input received on stdin")
	}

	resp, err := processor.Handle(context.Background(), json.RawMessage(payload))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func newRecorder(cfg config.ObservabilityConfig, awsCfg aws.Config, logger types.Logger) telemetry.Recorder {
	if !cfg.EnableMetrics {
		return telemetry.NopRecorder{}
	}
	return telemetry.NewCloudWatchRecorder(cloudwatch.NewFromConfig(awsCfg), cfg.MetricNamespace, logger)
}
