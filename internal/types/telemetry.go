package types

// Telemetry metric names for CloudWatch.
// All components MUST use these constants.
const (
	// Metric Names
	MetricImagesProcessed       = "ImagesProcessed"
	MetricImagesFailed          = "ImagesFailed"
	MetricDerivativesPublished  = "DerivativesPublished"
	MetricBatchDuration         = "BatchDuration"
	MetricMessagesRedriven      = "MessagesRedriven"
	MetricRedriveDeleteFailures = "RedriveDeleteFailures"

	// Dimension Keys
	DimFunction = "Function"
	DimReason   = "Reason"

	// Function dimension values
	FunctionThumbnailWorker = "thumbnail-worker"
	FunctionDLQRedriver     = "dlq-redriver"

	// Metric Namespace
	MetricNamespace = "Thumbnails"
)
