package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	kafkago "github.com/segmentio/kafka-go"

	fulfillment "github.com/Sairishwanth89/medfirst/internal/fulfillment/application"
	"github.com/Sairishwanth89/medfirst/internal/order/domain"
)

type scriptedFetcher struct {
	msgs      []kafkago.Message
	committed []int64
	cancel    context.CancelFunc
}

func (f *scriptedFetcher) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	if len(f.msgs) == 0 {
		f.cancel()
		return kafkago.Message{}, ctx.Err()
	}
	m := f.msgs[0]
	f.msgs = f.msgs[1:]
	return m, nil
}

func (f *scriptedFetcher) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

type fakeStore struct {
	orders map[string]domain.Order
	getErr error
	reads  int
}

func (s *fakeStore) Get(_ context.Context, id string) (domain.Order, error) {
	s.reads++
	if s.getErr != nil {
		return domain.Order{}, s.getErr
	}
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (s *fakeStore) TransitionStatus(_ context.Context, id string, from, to domain.Status, _ *string) (domain.Order, error) {
	o := s.orders[id]
	if o.Status != from {
		return domain.Order{}, domain.ErrStatusConflict
	}
	o.Status = to
	s.orders[id] = o
	return o, nil
}

type mapDeduper map[string]bool

func (d mapDeduper) Seen(_ context.Context, key string) (bool, error) {
	seen := d[key]
	d[key] = true
	return seen, nil
}

func eventMessage(t *testing.T, orderID string, offset int64) kafkago.Message {
	t.Helper()
	payload, err := json.Marshal(domain.NewOrderEvent(orderID))
	if err != nil {
		t.Fatal(err)
	}
	return kafkago.Message{Topic: "order.events", Partition: 0, Offset: offset, Value: payload}
}

func runConsumer(t *testing.T, store *fakeStore, deduper mapDeduper, msgs ...kafkago.Message) (*scriptedFetcher, prometheus.Counter, prometheus.Counter) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := &scriptedFetcher{msgs: msgs, cancel: cancel}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	processed := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_processed"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_skipped"})
	processor := fulfillment.NewProcessor(log, store, 0)

	c := NewConsumer(log, fetcher, processor, deduper, processed, skipped)
	c.retryDelay = time.Millisecond
	if err := c.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	return fetcher, processed, skipped
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatal(err)
	}
	return m.GetCounter().GetValue()
}

func TestConsumerAdvancesAndCommits(t *testing.T) {
	store := &fakeStore{orders: map[string]domain.Order{"o1": {ID: "o1", Status: domain.StatusConfirmed}}}
	fetcher, processed, _ := runConsumer(t, store, mapDeduper{}, eventMessage(t, "o1", 7))

	if store.orders["o1"].Status != domain.StatusReadyForPickup {
		t.Fatalf("status = %s", store.orders["o1"].Status)
	}
	if len(fetcher.committed) != 1 || fetcher.committed[0] != 7 {
		t.Fatalf("committed = %v", fetcher.committed)
	}
	if counterValue(t, processed) != 1 {
		t.Fatal("processed counter not incremented")
	}
}

func TestConsumerSkipsDuplicateOffset(t *testing.T) {
	store := &fakeStore{orders: map[string]domain.Order{"o1": {ID: "o1", Status: domain.StatusConfirmed}}}
	msg := eventMessage(t, "o1", 3)
	fetcher, processed, skipped := runConsumer(t, store, mapDeduper{}, msg, msg)

	if len(fetcher.committed) != 2 {
		t.Fatalf("committed = %v, want both offsets", fetcher.committed)
	}
	if counterValue(t, processed) != 1 || counterValue(t, skipped) != 1 {
		t.Fatalf("processed = %v, skipped = %v", counterValue(t, processed), counterValue(t, skipped))
	}
}

func TestConsumerDropsEventAfterBoundedRetries(t *testing.T) {
	store := &fakeStore{getErr: errors.New("store down")}
	fetcher, _, skipped := runConsumer(t, store, mapDeduper{}, eventMessage(t, "o1", 9))

	if store.reads != 5 {
		t.Fatalf("attempts = %d, want 5", store.reads)
	}
	if len(fetcher.committed) != 1 {
		t.Fatalf("poison event not committed past: %v", fetcher.committed)
	}
	if counterValue(t, skipped) != 1 {
		t.Fatal("skipped counter not incremented")
	}
}

func TestConsumerCommitsPastMalformedPayload(t *testing.T) {
	store := &fakeStore{orders: map[string]domain.Order{}}
	bad := kafkago.Message{Topic: "order.events", Partition: 0, Offset: 1, Value: []byte("{not json")}
	fetcher, _, skipped := runConsumer(t, store, mapDeduper{}, bad)

	if len(fetcher.committed) != 1 {
		t.Fatalf("malformed message not committed: %v", fetcher.committed)
	}
	if counterValue(t, skipped) != 1 {
		t.Fatal("skipped counter not incremented")
	}
}
