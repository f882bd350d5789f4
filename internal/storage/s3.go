// Package storage provides the S3 object store used to fetch source images
// and publish derivatives.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sony/gobreaker/v2"

	"thumbnails/internal/types"
)

// Client is the subset of the S3 SDK used by the transfer managers.
type Client interface {
	manager.DownloadAPIClient
	manager.UploadAPIClient
}

// Store fetches and publishes objects through the S3 transfer managers.
// Every call runs through a circuit breaker so a failing endpoint stops
// being hammered by the remaining items of a batch.
type Store struct {
	downloader *manager.Downloader
	uploader   *manager.Uploader
	breaker    *gobreaker.CircuitBreaker[int64]
}

// Option configures a Store.
type Option func(*Store)

// WithBreaker replaces the default circuit breaker.
func WithBreaker(cb *gobreaker.CircuitBreaker[int64]) Option {
	return func(s *Store) {
		s.breaker = cb
	}
}

// NewClient builds an S3 client from cfg. A non-empty endpointURL points the
// client at an S3-compatible endpoint (LocalStack, MinIO) with path-style
// addressing.
func NewClient(cfg aws.Config, endpointURL string) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpointURL != "" {
			o.BaseEndpoint = aws.String(endpointURL)
			o.UsePathStyle = true
		}
	})
}

// New creates a Store over client.
func New(client Client, opts ...Option) *Store {
	s := &Store{
		downloader: manager.NewDownloader(client),
		uploader:   manager.NewUploader(client),
		breaker:    NewBreaker("s3"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewBreaker returns the default store circuit breaker. Missing objects and
// cancelled contexts do not count against the endpoint.
func NewBreaker(name string) *gobreaker.CircuitBreaker[int64] {
	return gobreaker.NewCircuitBreaker[int64](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isMissing(err) || errors.Is(err, context.Canceled)
		},
	})
}

// Fetch downloads s3://bucket/key into dst and returns the number of bytes
// written. Failures are returned as fetch errors; NotFound is set when the
// object does not exist.
func (s *Store) Fetch(ctx context.Context, bucket, key string, dst io.WriterAt) (int64, error) {
	n, err := s.breaker.Execute(func() (int64, error) {
		return s.downloader.Download(ctx, dst, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
	})
	if err != nil {
		return 0, types.NewFetchError(bucket, key, isMissing(err), err)
	}
	return n, nil
}

// Publish uploads body to s3://bucket/key with the given content type.
func (s *Store) Publish(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	_, err := s.breaker.Execute(func() (int64, error) {
		_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(bucket),
			Key:         aws.String(key),
			Body:        body,
			ContentType: aws.String(contentType),
		})
		return 0, err
	})
	if err != nil {
		return types.NewPublishError(bucket, key, err)
	}
	return nil
}

func isMissing(err error) bool {
	var noSuchKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}
