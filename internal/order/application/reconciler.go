package application

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Sairishwanth89/medfirst/internal/order/domain"
)

// Reconciler sweeps for orders whose queue event was lost, for example
// when an outbox row was marked failed past its retry budget or the
// broker dropped the topic. It re-enqueues an event for any pending or
// confirmed order that has sat idle past the threshold with nothing
// awaiting delivery.
type Reconciler struct {
	log        *slog.Logger
	repo       OrderRepository
	interval   time.Duration
	stuckAfter time.Duration
	reconciled prometheus.Counter
}

func NewReconciler(log *slog.Logger, repo OrderRepository, interval, stuckAfter time.Duration, reconciled prometheus.Counter) *Reconciler {
	return &Reconciler{
		log:        log,
		repo:       repo,
		interval:   interval,
		stuckAfter: stuckAfter,
		reconciled: reconciled,
	}
}

func (r *Reconciler) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("reconciler stopping")
			return nil
		case <-t.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reconciler) sweep(ctx context.Context) {
	stalled, err := r.repo.FindStalled(ctx,
		[]domain.Status{domain.StatusPending, domain.StatusConfirmed}, r.stuckAfter)
	if err != nil {
		r.log.Error("reconciler query failed", "err", err)
		return
	}
	for _, o := range stalled {
		eventType := domain.EventOrderPlaced
		if o.Status == domain.StatusConfirmed {
			eventType = domain.EventOrderConfirmed
		}
		payload, err := json.Marshal(domain.NewOrderEvent(o.ID))
		if err != nil {
			r.log.Error("reconciler marshal failed", "order_id", o.ID, "err", err)
			continue
		}
		if err := r.repo.AppendEvent(ctx, o.ID, eventType, payload); err != nil {
			r.log.Error("reconciler re-enqueue failed", "order_id", o.ID, "err", err)
			continue
		}
		r.reconciled.Inc()
		r.log.Warn("stalled order event re-enqueued",
			"order_id", o.ID, "status", o.Status, "event_type", eventType)
	}
}
