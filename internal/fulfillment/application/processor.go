package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Sairishwanth89/medfirst/internal/order/domain"
)

// OrderStore is the slice of the order repository the worker needs.
type OrderStore interface {
	Get(ctx context.Context, id string) (domain.Order, error)
	TransitionStatus(ctx context.Context, id string, from, to domain.Status, courierID *string) (domain.Order, error)
}

type Outcome int

const (
	// Advanced means the order was moved to ready_for_pickup.
	Advanced Outcome = iota
	// Skipped means the event required no work: unknown order, order
	// not in confirmed state, or a concurrent transition won the race.
	Skipped
)

// Processor packages confirmed orders. Process is idempotent: it always
// re-reads the order and only acts when the current state calls for it,
// so redelivered or duplicated events are harmless.
type Processor struct {
	log            *slog.Logger
	store          OrderStore
	packagingDelay time.Duration
}

func NewProcessor(log *slog.Logger, store OrderStore, packagingDelay time.Duration) *Processor {
	return &Processor{log: log, store: store, packagingDelay: packagingDelay}
}

func (p *Processor) Process(ctx context.Context, orderID string) (Outcome, error) {
	o, err := p.store.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			p.log.Warn("event references unknown order", "order_id", orderID)
			return Skipped, nil
		}
		return Skipped, err
	}
	if o.Status != domain.StatusConfirmed {
		p.log.Info("order not awaiting packaging, skipping",
			"order_id", orderID, "status", o.Status)
		return Skipped, nil
	}

	// Simulated packaging work. Abort cleanly on shutdown so the
	// uncommitted event is redelivered to the next worker.
	select {
	case <-ctx.Done():
		return Skipped, ctx.Err()
	case <-time.After(p.packagingDelay):
	}

	_, err = p.store.TransitionStatus(ctx, orderID, domain.StatusConfirmed, domain.StatusReadyForPickup, nil)
	if err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			p.log.Info("order moved concurrently, skipping", "order_id", orderID)
			return Skipped, nil
		}
		return Skipped, err
	}
	p.log.Info("order ready for pickup", "order_id", orderID)
	return Advanced, nil
}
