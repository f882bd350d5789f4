// Package config defines the configuration structures for the thumbnail worker
// and the DLQ redriver. Configuration is loaded once at process initialization
// (Lambda Cold Start) and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format fails startup with a
// descriptive ConfigError.
package config

import (
	"strings"
	"time"

	"thumbnails/internal/types"
)

// WorkerConfig is the configuration of the thumbnail worker Lambda.
type WorkerConfig struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	AWS           AWSConfig
	Derivatives   DerivativeConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo `ignored:"true"`
}

// RedriveConfig is the configuration of the DLQ redriver Lambda and the
// thumbctl redrive command.
type RedriveConfig struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	AWS           AWSConfig
	Queues        QueueConfig
	Observability ObservabilityConfig

	Build BuildInfo `ignored:"true"`
}

// AWSConfig holds regional configuration shared by every AWS client.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// LocalStack / S3-compatible endpoint support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
}

// DerivativeConfig describes where and in which sizes derivatives are published.
type DerivativeConfig struct {
	Bucket string `envconfig:"THUMBNAILS_BUCKET_NAME" validate:"required"`
	// Folder is the key prefix under which all derivatives are published.
	Folder string `envconfig:"THUMBNAILS_FOLDER" default:"thumbnails" validate:"required"`
	// FolderTemplate names the per-source subfolder; {filename} is replaced by
	// the source object's base name.
	FolderTemplate string   `envconfig:"THUMBNAILS_FOLDER_TEMPLATE" default:"thumbnails_{filename}" validate:"required,contains={filename}"`
	Sizes          SizeList `envconfig:"THUMBNAIL_SIZES" default:"75x75,125x125,1280x720" validate:"min=1"`
	// Concurrency bounds how many work items of one batch run at once.
	Concurrency int `envconfig:"WORKER_CONCURRENCY" default:"1" validate:"min=1,max=16"`
}

// QueueConfig identifies the primary queue and its dead-letter queue, and
// tunes the redrive receive calls.
type QueueConfig struct {
	PrimaryURL string `envconfig:"IMAGES_QUEUE_URL" validate:"required,url"`
	DLQURL     string `envconfig:"IMAGES_DLQ_URL" validate:"required,url,nefield=PrimaryURL"`

	MaxMessages       int32         `envconfig:"REDRIVE_MAX_MESSAGES" default:"5" validate:"min=1,max=10"`
	VisibilityTimeout time.Duration `envconfig:"REDRIVE_VISIBILITY_TIMEOUT" default:"5s" validate:"min=1s,max=12h"`
	WaitTime          time.Duration `envconfig:"REDRIVE_WAIT_TIME" default:"3s" validate:"min=0s,max=20s"`
	// MaxDrains caps non-empty receives per run; 0 drains until the DLQ is empty.
	MaxDrains int `envconfig:"REDRIVE_MAX_DRAINS" default:"100" validate:"min=0"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Thumbnails"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"true"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// SizeList is a comma-separated list of "WxH" derivative sizes. It implements
// envconfig.Decoder so THUMBNAIL_SIZES decodes straight into specs.
type SizeList []types.DerivativeSpec

// Decode parses a value such as "75x75,125x125,1280x720". Order is kept.
func (l *SizeList) Decode(value string) error {
	var specs SizeList
	for _, part := range strings.Split(value, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		spec, err := types.ParseDerivativeSpec(part)
		if err != nil {
			return err
		}
		specs = append(specs, spec)
	}
	*l = specs
	return nil
}

// Specs returns the sizes as a plain slice.
func (l SizeList) Specs() []types.DerivativeSpec {
	return []types.DerivativeSpec(l)
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
