package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/payment-engine/internal/payment/application"
	"github.com/dmehra2102/payment-engine/internal/payment/domain"
	"github.com/dmehra2102/payment-engine/pkg/tracing"
)

const (
	CallbackCaptured = "payment.captured"
	CallbackFailed   = "payment.failed"
)

// Callback is a gateway webhook relayed onto Kafka by the edge.
type Callback struct {
	Type             string `json:"type"`
	PaymentID        string `json:"payment_id"`
	OrderID          string `json:"order_id"`
	PaymentReference string `json:"payment_reference"`
	Signature        string `json:"signature"`
	Reason           string `json:"reason"`
}

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Deduper marks messages as processed. Forget undoes a mark when processing
// failed with a retryable error.
type Deduper interface {
	Key(topic string, partition int, offset int64) string
	Seen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

type Payments interface {
	VerifyPayment(ctx context.Context, req application.VerifyRequest) (application.VerifyResult, error)
	HandlePaymentFailure(ctx context.Context, paymentID, reason string) error
}

type Consumer struct {
	log        *slog.Logger
	reader     Reader
	svc        Payments
	idem       Deduper
	tracer     trace.Tracer
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, svc Payments, idem Deduper) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return NewConsumerWithReader(log, r, svc, idem)
}

func NewConsumerWithReader(log *slog.Logger, r Reader, svc Payments, idem Deduper) *Consumer {
	return &Consumer{
		log:        log,
		reader:     r,
		svc:        svc,
		idem:       idem,
		tracer:     otel.Tracer("payment-callback-consumer"),
		minBackoff: 200 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
}

// WithBackoff bounds the wait between attempts at a message that failed
// with a retryable error.
func (c *Consumer) WithBackoff(initial, ceiling time.Duration) *Consumer {
	c.minBackoff, c.maxBackoff = initial, ceiling
	return c
}

// Run consumes until ctx ends. A message is committed only once it has been
// handled or classified as permanently bad; retryable failures are retried
// in place with backoff, so offsets never move past an unhandled callback.
// Run returns an error only when the reader itself fails.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		backoff := c.minBackoff
		for {
			err := c.process(ctx, msg)
			if err == nil {
				break
			}
			c.log.Warn("callback retry scheduled", "offset", msg.Offset, "partition", msg.Partition, "backoff", backoff, "err", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > c.maxBackoff {
				backoff = c.maxBackoff
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// process claims the message in the dedupe store and handles it. The claim is
// released when handling fails so the retry is not mistaken for a duplicate.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if seen {
		c.log.Info("duplicate message skipped", "key", key)
		return nil
	}

	if err := c.handle(ctx, msg); err != nil {
		if fErr := c.idem.Forget(ctx, key); fErr != nil {
			c.log.Error("idempotency release failed", "key", key, "err", fErr)
		}
		return fmt.Errorf("callback at offset %d: %w", msg.Offset, err)
	}
	return nil
}

// handle returns an error only when the message must be redelivered.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeGatewayCallback")
	defer span.End()

	var cb Callback
	if err := json.Unmarshal(msg.Value, &cb); err != nil {
		c.log.Error("unmarshal failed", "offset", msg.Offset, "err", err)
		return nil
	}
	span.SetAttributes(attribute.String("callback.type", cb.Type), attribute.String("payment.id", cb.PaymentID))

	var err error
	switch cb.Type {
	case CallbackCaptured:
		var res application.VerifyResult
		res, err = c.svc.VerifyPayment(msgCtx, application.VerifyRequest{
			PaymentID:        cb.PaymentID,
			OrderID:          cb.OrderID,
			PaymentReference: cb.PaymentReference,
			Signature:        cb.Signature,
		})
		if err == nil {
			c.log.Info("capture callback handled", "payment_id", cb.PaymentID, "verified", res.Verified, "status", res.Status)
		}
	case CallbackFailed:
		err = c.svc.HandlePaymentFailure(msgCtx, cb.PaymentID, cb.Reason)
		if err == nil {
			c.log.Info("failure callback handled", "payment_id", cb.PaymentID)
		}
	default:
		c.log.Warn("unknown callback type", "type", cb.Type, "payment_id", cb.PaymentID)
		return nil
	}
	if err == nil {
		return nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if domain.IsRetryable(err) {
		return err
	}
	c.log.Error("callback dropped", "type", cb.Type, "payment_id", cb.PaymentID, "err", err)
	return nil
}
