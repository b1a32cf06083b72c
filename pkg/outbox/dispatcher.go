package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker"
)

type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Dispatcher publishes outbox events to a single topic. Broker trouble
// trips a circuit breaker so the relay backs off instead of hammering a
// dead broker; every failure is logged for the operator.
type Dispatcher struct {
	log      *slog.Logger
	producer Producer
	topic    string
	cb       *gobreaker.CircuitBreaker
}

func NewDispatcher(log *slog.Logger, producer Producer, topic string) *Dispatcher {
	settings := gobreaker.Settings{
		Name:    "outbox-" + topic,
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("dispatcher breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &Dispatcher{
		log:      log,
		producer: producer,
		topic:    topic,
		cb:       gobreaker.NewCircuitBreaker(settings),
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	headers := make([]kafka.Header, 0, len(event.Headers)+2)
	for k, v := range event.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	headers = append(headers, kafka.Header{Key: "event_type", Value: []byte(event.Type)})
	if event.Traceparent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(event.Traceparent)})
	}

	msg := kafka.Message{
		Topic:   d.topic,
		Key:     []byte(event.AggregateID),
		Value:   event.Payload,
		Headers: headers,
	}
	_, err := d.cb.Execute(func() (any, error) {
		return nil, d.producer.WriteMessages(ctx, msg)
	})
	if err != nil {
		d.log.Error("outbox dispatch failed", "event_id", event.ID, "type", event.Type, "err", err)
		return err
	}
	d.log.Info("outbox dispatched", "event_id", event.ID, "type", event.Type)
	return nil
}
