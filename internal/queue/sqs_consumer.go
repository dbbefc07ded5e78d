package queue

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/sirupsen/logrus"
)

// SQSAPI is the part of *sqs.Client the consumer uses.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// MessageHandler processes one message body. A nil error deletes the message.
type MessageHandler interface {
	HandlePaymentMessage(ctx context.Context, body string) error
}

// SQSConsumer long-polls a queue and hands each message to a handler.
// Messages whose handler fails with a permanent error are deleted; others return after the visibility timeout.
type SQSConsumer struct {
	client     SQSAPI
	queueURL   string
	handler    MessageHandler
	permanent  error
	retryDelay time.Duration
	logger     *logrus.Logger
}

func NewSQSConsumer(client SQSAPI, queueURL string, handler MessageHandler, permanent error, logger *logrus.Logger) *SQSConsumer {
	return &SQSConsumer{
		client:     client,
		queueURL:   queueURL,
		handler:    handler,
		permanent:  permanent,
		retryDelay: 5 * time.Second,
		logger:     logger,
	}
}

func (c *SQSConsumer) Start(ctx context.Context) {
	c.logger.WithField("queue", c.queueURL).Info("SQS consumer listening")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("SQS consumer stopping")
			return
		default:
		}

		result, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            &c.queueURL,
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   60,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.WithError(err).Error("SQS receive failed")
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return
			}
			continue
		}

		for _, message := range result.Messages {
			c.process(ctx, message.Body, message.MessageId, message.ReceiptHandle)
		}
	}
}

func (c *SQSConsumer) process(ctx context.Context, body, messageID, receiptHandle *string) {
	id := ""
	if messageID != nil {
		id = *messageID
	}
	if body == nil {
		c.logger.WithField("message_id", id).Warn("Empty SQS message, deleting")
		c.deleteMessage(ctx, receiptHandle)
		return
	}

	err := c.handler.HandlePaymentMessage(ctx, *body)
	switch {
	case err == nil:
		c.deleteMessage(ctx, receiptHandle)
	case c.permanent != nil && errors.Is(err, c.permanent):
		c.logger.WithError(err).WithField("message_id", id).Warn("Discarding unprocessable SQS message")
		c.deleteMessage(ctx, receiptHandle)
	default:
		c.logger.WithError(err).WithField("message_id", id).Error("SQS message failed, will be redelivered")
	}
}

func (c *SQSConsumer) deleteMessage(ctx context.Context, receiptHandle *string) {
	if receiptHandle == nil {
		c.logger.Warn("SQS message without receipt handle, cannot delete")
		return
	}
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      &c.queueURL,
		ReceiptHandle: receiptHandle,
	})
	if err != nil {
		c.logger.WithError(err).Error("SQS delete failed")
	}
}
