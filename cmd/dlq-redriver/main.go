// Package main is the entrypoint for the DLQ Redriver Lambda function.
//
// The redriver is invoked on demand (console, CLI, or schedule). It moves
// every message in the images dead-letter queue back to the images queue and
// returns {"redrivenCount", "drains", "deleteFailures", "truncated"}.
//
// A message whose delete from the DLQ fails after it was sent is redriven
// again on a later drain, so the primary queue can see it twice. The worker
// tolerates this: derivative keys are deterministic and uploads overwrite.
//
// With APP_ENV=local the loop runs once and the result is printed to stdout.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"thumbnails/internal/config"
	"thumbnails/internal/logging"
	"thumbnails/internal/queue"
	"thumbnails/internal/redrive"
	"thumbnails/internal/telemetry"
	"thumbnails/internal/types"
)

func main() {
	var provider config.SecretProvider
	if os.Getenv("APP_ENV") != "local" {
		provider = config.NewSSMProvider(os.Getenv("AWS_REGION"))
	}

	cfg, err := config.LoadRedriveConfig(provider)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dlq-redriver: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.Environment).With(
		"function", types.FunctionDLQRedriver,
		"version", cfg.Build.Version,
	)

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		logger.Error("Failed to load AWS SDK config", "error", err.Error())
		os.Exit(1)
	}

	redriver := redrive.New(
		queue.NewClient(queue.NewSQSClient(awsCfg, cfg.AWS.EndpointURL)),
		redrive.ConfigFrom(cfg.Queues),
		logger,
		newRecorder(cfg.Observability, awsCfg, logger),
	)

	logger.Info("DLQ Redriver Lambda initialized",
		"queue_url", cfg.Queues.PrimaryURL,
		"dlq_url", cfg.Queues.DLQURL,
		"max_drains", cfg.Queues.MaxDrains,
	)

	if cfg.Environment == "local" {
		result, err := redriver.Run(context.Background())
		_ = json.NewEncoder(os.Stdout).Encode(result)
		if err != nil {
			os.Exit(1)
		}
		return
	}

	lambda.Start(func(ctx context.Context) (types.RedriveResult, error) {
		return redriver.Run(ctx)
	})
}

func newRecorder(cfg config.ObservabilityConfig, awsCfg aws.Config, logger types.Logger) telemetry.Recorder {
	if !cfg.EnableMetrics {
		return telemetry.NopRecorder{}
	}
	return telemetry.NewCloudWatchRecorder(cloudwatch.NewFromConfig(awsCfg), cfg.MetricNamespace, logger)
}
