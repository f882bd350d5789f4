// Package redrive moves messages stranded in the dead-letter queue back to
// the primary images queue.
//
// The loop is a two-state machine. In DRAINING it receives up to MaxMessages
// from the DLQ; an empty receive moves it to DONE. Every received message is
// sent to the primary queue with its body unchanged and then deleted from the
// DLQ by receipt handle. A failed delete leaves the message in the DLQ, so a
// later drain sends it again: that duplicate is accepted and counted in
// DeleteFailures. Receive and send failures abort the loop.
package redrive

import (
	"context"
	"time"

	"thumbnails/internal/config"
	"thumbnails/internal/telemetry"
	"thumbnails/internal/types"
)

// Queue is the subset of queue operations the loop uses.
type Queue interface {
	Receive(ctx context.Context, queueURL string, max int32, visibility, wait time.Duration) ([]types.QueueMessage, error)
	Send(ctx context.Context, queueURL, body string) error
	Delete(ctx context.Context, queueURL, receiptHandle string) error
}

// Config holds the queue endpoints and receive parameters.
type Config struct {
	PrimaryURL        string
	DLQURL            string
	MaxMessages       int32
	VisibilityTimeout time.Duration
	WaitTime          time.Duration

	// MaxDrains bounds the number of non-empty receives per run. Zero means
	// drain until the DLQ reports empty.
	MaxDrains int
}

type state int

const (
	stateDraining state = iota
	stateDone
)

// Redriver runs the redrive loop.
type Redriver struct {
	queue      Queue
	cfg        Config
	logger     types.Logger
	metrics    telemetry.Recorder
	onRedriven func(types.QueueMessage)
}

// Option configures a Redriver.
type Option func(*Redriver)

// WithProgress registers fn to be called after each message is sent to the
// primary queue.
func WithProgress(fn func(types.QueueMessage)) Option {
	return func(r *Redriver) {
		r.onRedriven = fn
	}
}

// New creates a Redriver.
func New(q Queue, cfg Config, logger types.Logger, metrics telemetry.Recorder, opts ...Option) *Redriver {
	r := &Redriver{
		queue:   q,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drains the DLQ into the primary queue. The returned result is valid
// even when err is non-nil and counts the work done before the failure;
// messages already redriven are not rolled back.
func (r *Redriver) Run(ctx context.Context) (result types.RedriveResult, err error) {
	logger := r.logger.With("dlq_url", r.cfg.DLQURL, "queue_url", r.cfg.PrimaryURL)
	defer func() {
		r.metrics.RecordRedrive(context.WithoutCancel(ctx), result)
		if err != nil {
			logger.Error("redrive aborted",
				"error", err.Error(),
				"reason", string(types.KindOf(err)),
				"redriven", result.RedrivenCount,
				"drains", result.Drains,
			)
			return
		}
		logger.Info("redrive complete",
			"redriven", result.RedrivenCount,
			"drains", result.Drains,
			"delete_failures", result.DeleteFailures,
			"truncated", result.Truncated,
		)
	}()

	for st := stateDraining; st != stateDone; {
		if r.cfg.MaxDrains > 0 && result.Drains >= r.cfg.MaxDrains {
			logger.Warn("drain cap reached, DLQ may still hold messages", "max_drains", r.cfg.MaxDrains)
			result.Truncated = true
			break
		}
		if r.outOfTime(ctx) {
			logger.Warn("invocation deadline too close for another drain")
			result.Truncated = true
			break
		}

		msgs, err := r.queue.Receive(ctx, r.cfg.DLQURL, r.cfg.MaxMessages, r.cfg.VisibilityTimeout, r.cfg.WaitTime)
		if err != nil {
			return result, err
		}
		if len(msgs) == 0 {
			st = stateDone
			continue
		}

		result.Drains++
		for _, msg := range msgs {
			if err := r.queue.Send(ctx, r.cfg.PrimaryURL, msg.Body); err != nil {
				return result, err
			}
			result.RedrivenCount++

			if err := r.queue.Delete(ctx, r.cfg.DLQURL, msg.ReceiptHandle); err != nil {
				result.DeleteFailures++
				logger.Warn("message redriven but not deleted from DLQ, it will be redriven again",
					"message_id", msg.MessageID,
					"error", err.Error(),
				)
			}

			if r.onRedriven != nil {
				r.onRedriven(msg)
			}
		}
	}

	return result, nil
}

// drainMargin is the time reserved for sending and deleting one drain's
// messages after the receive returns.
const drainMargin = 2 * time.Second

// outOfTime reports whether ctx expires before a long-poll receive and the
// sends and deletes of its messages could complete. A drain cut short is
// safe: undeleted messages reappear in the DLQ after their visibility timeout.
func (r *Redriver) outOfTime(ctx context.Context) bool {
	deadline, ok := ctx.Deadline()
	if !ok {
		return false
	}
	return time.Until(deadline) < r.cfg.WaitTime+drainMargin
}

// ConfigFrom converts the loaded queue configuration.
func ConfigFrom(q config.QueueConfig) Config {
	return Config{
		PrimaryURL:        q.PrimaryURL,
		DLQURL:            q.DLQURL,
		MaxMessages:       q.MaxMessages,
		VisibilityTimeout: q.VisibilityTimeout,
		WaitTime:          q.WaitTime,
		MaxDrains:         q.MaxDrains,
	}
}
