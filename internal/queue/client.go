// Package queue wraps the SQS operations the redrive loop needs: batch
// receive, send, and delete by receipt handle.
package queue

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"thumbnails/internal/types"
)

// SQSAPI abstracts the SQS SDK calls used by Client for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// NewSQSClient builds an SQS client from cfg, optionally pointed at a
// custom endpoint such as LocalStack.
func NewSQSClient(cfg aws.Config, endpointURL string) *sqs.Client {
	return sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if endpointURL != "" {
			o.BaseEndpoint = aws.String(endpointURL)
		}
	})
}

// Client performs queue operations and maps failures onto the pipeline
// error taxonomy.
type Client struct {
	api SQSAPI
}

// NewClient creates a Client.
func NewClient(api SQSAPI) *Client {
	return &Client{api: api}
}

// Receive long-polls queueURL for up to max messages. Received messages stay
// invisible to other consumers for visibility. An empty slice means the
// queue had nothing to deliver within wait.
func (c *Client) Receive(ctx context.Context, queueURL string, max int32, visibility, wait time.Duration) ([]types.QueueMessage, error) {
	out, err := c.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(queueURL),
		MaxNumberOfMessages: max,
		VisibilityTimeout:   int32(visibility / time.Second),
		WaitTimeSeconds:     int32(wait / time.Second),
	})
	if err != nil {
		return nil, types.NewReceiveError(queueURL, err)
	}

	msgs := make([]types.QueueMessage, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, types.QueueMessage{
			MessageID:     aws.ToString(m.MessageId),
			Body:          aws.ToString(m.Body),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
		})
	}
	return msgs, nil
}

// Send enqueues body on queueURL unchanged.
func (c *Client) Send(ctx context.Context, queueURL, body string) error {
	_, err := c.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return types.NewSendError(queueURL, err)
	}
	return nil
}

// Delete removes a received message from queueURL by its receipt handle.
func (c *Client) Delete(ctx context.Context, queueURL, receiptHandle string) error {
	_, err := c.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return types.NewDeleteError(queueURL, err)
	}
	return nil
}
