package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	fulfillment "github.com/Sairishwanth89/medfirst/internal/fulfillment/application"
	"github.com/Sairishwanth89/medfirst/internal/order/domain"
	"github.com/Sairishwanth89/medfirst/pkg/idempotency"
	"github.com/Sairishwanth89/medfirst/pkg/tracing"
)

type Fetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Consumer drains order events and drives the fulfillment processor.
// An offset is committed only once its event is resolved, so a crash
// mid-processing redelivers the event; the processor's state check
// makes that redelivery a no-op. A persistently failing event is
// retried in place with backoff and then dropped with an error log
// rather than wedging the partition.
type Consumer struct {
	log         *slog.Logger
	reader      Fetcher
	processor   *fulfillment.Processor
	deduper     idempotency.Deduper
	processed   prometheus.Counter
	skipped     prometheus.Counter
	tracer      trace.Tracer
	maxAttempts int
	retryDelay  time.Duration
}

func NewConsumer(log *slog.Logger, reader Fetcher, processor *fulfillment.Processor, deduper idempotency.Deduper, processed, skipped prometheus.Counter) *Consumer {
	return &Consumer{
		log:         log,
		reader:      reader,
		processor:   processor,
		deduper:     deduper,
		processed:   processed,
		skipped:     skipped,
		tracer:      otel.Tracer("fulfillment-consumer"),
		maxAttempts: 5,
		retryDelay:  time.Second,
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("consumer stopping")
				return nil
			}
			c.log.Error("fetch message failed", "err", err)
			continue
		}
		if err := c.handleWithRetry(ctx, msg); err != nil {
			// Shutdown mid-processing: the uncommitted offset is
			// redelivered to the next consumer.
			c.log.Info("consumer stopping", "err", err)
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("offset commit failed", "err", err)
		}
	}
}

func (c *Consumer) handleWithRetry(ctx context.Context, msg kafka.Message) error {
	for attempt := 1; ; attempt++ {
		// The SetNX dedup marks the key seen as a side effect, so only
		// the first attempt may consult it; retries of this same
		// message must not be mistaken for duplicates.
		err := c.handle(ctx, msg, attempt == 1)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if attempt >= c.maxAttempts {
			c.log.Error("event dropped after repeated failures",
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
			c.skipped.Inc()
			return nil
		}
		c.log.Warn("event processing failed, retrying",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset,
			"attempt", attempt, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message, checkDedup bool) error {
	ctx = tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	ctx, span := c.tracer.Start(ctx, "HandleOrderEvent")
	defer span.End()

	if checkDedup {
		key := idempotency.Key(msg.Topic, msg.Partition, msg.Offset)
		seen, err := c.deduper.Seen(ctx, key)
		if err != nil {
			// Dedup is a fast path only; the processor's state check
			// still holds, so fall through rather than stalling the
			// partition.
			c.log.Warn("dedup check failed, processing anyway", "key", key, "err", err)
		} else if seen {
			c.log.Info("duplicate event, skipping", "key", key)
			c.skipped.Inc()
			return nil
		}
	}

	var event domain.OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil || event.OrderID == "" {
		// A malformed payload will never become valid; commit past it.
		c.log.Error("malformed event payload, dropping",
			"topic", msg.Topic, "offset", msg.Offset, "err", err)
		c.skipped.Inc()
		return nil
	}
	span.SetAttributes(attribute.String("order.id", event.OrderID))

	outcome, err := c.processor.Process(ctx, event.OrderID)
	if err != nil {
		return err
	}
	switch outcome {
	case fulfillment.Advanced:
		c.processed.Inc()
	case fulfillment.Skipped:
		c.skipped.Inc()
	}
	return nil
}
