package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/Sairishwanth89/medfirst/internal/order/domain"
	"github.com/Sairishwanth89/medfirst/pkg/tracing"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

// traceparent pulls the current trace context out of ctx so the relay
// can stitch the consumer's span onto the producer's trace.
func traceparent(ctx context.Context) string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier[tracing.TraceparentHeader]
}

func (r *Repository) CreateWithEvent(ctx context.Context, o domain.Order, eventType string, payload []byte) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `INSERT INTO orders (id, user_id, pharmacy_id, total_cents, delivery_address, status, courier_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		o.ID, o.UserID, o.PharmacyID, o.TotalCents, o.DeliveryAddress, o.Status, o.CourierID, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, item := range o.Items {
		batch.Queue(`INSERT INTO order_items (order_id, product_id, quantity, unit_price_cents, subtotal_cents)
			VALUES ($1,$2,$3,$4,$5)`,
			o.ID, item.ProductID, item.Quantity, item.UnitPriceCents, item.SubtotalCents)
	}
	batchResult := tx.SendBatch(ctx, batch)
	if err = batchResult.Close(); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,'pending')`,
		"order", o.ID, eventType, payload, traceparent(ctx))
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	var o domain.Order
	err := r.pool.QueryRow(ctx, `SELECT id, user_id, pharmacy_id, total_cents, delivery_address, status, courier_id, created_at, updated_at
		FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.UserID, &o.PharmacyID, &o.TotalCents, &o.DeliveryAddress, &o.Status, &o.CourierID, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	if o.Items, err = r.items(ctx, id); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) items(ctx context.Context, orderID string) ([]domain.Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT product_id, quantity, unit_price_cents, subtotal_cents
		FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.UnitPriceCents, &it.SubtotalCents); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.PharmacyID, &o.TotalCents, &o.DeliveryAddress, &o.Status, &o.CourierID, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range orders {
		if orders[i].Items, err = r.items(ctx, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

const orderColumns = `id, user_id, pharmacy_id, total_cents, delivery_address, status, courier_id, created_at, updated_at`

func (r *Repository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
}

func (r *Repository) ListByPharmacy(ctx context.Context, pharmacyID string) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE pharmacy_id=$1 ORDER BY created_at DESC`, pharmacyID)
}

func (r *Repository) ListForCourier(ctx context.Context, courierID string) ([]domain.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE (status='ready_for_pickup' AND courier_id IS NULL) OR courier_id=$1
		ORDER BY created_at DESC`, courierID)
}

// TransitionStatus applies a compare-and-set on the status column. A
// zero row count after a successful Exec means the expected state was
// gone, which callers surface as a conflict rather than a retry.
func (r *Repository) TransitionStatus(ctx context.Context, id string, from, to domain.Status, courierID *string) (domain.Order, error) {
	var ct pgconn.CommandTag
	var err error
	if courierID != nil {
		ct, err = r.pool.Exec(ctx, `UPDATE orders SET status=$3, courier_id=$4, updated_at=now()
			WHERE id=$1 AND status=$2`, id, from, to, *courierID)
	} else {
		ct, err = r.pool.Exec(ctx, `UPDATE orders SET status=$3, updated_at=now()
			WHERE id=$1 AND status=$2`, id, from, to)
	}
	if err != nil {
		return domain.Order{}, err
	}
	if ct.RowsAffected() == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return domain.Order{}, err
		}
		return domain.Order{}, domain.ErrStatusConflict
	}
	return r.Get(ctx, id)
}

func (r *Repository) AppendEvent(ctx context.Context, orderID, eventType string, payload []byte) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,'pending')`,
		"order", orderID, eventType, payload, traceparent(ctx))
	return err
}

// FindStalled returns orders stuck in one of the given states past
// idleFor with nothing left in the outbox awaiting delivery. These are
// the orders whose wake-up event was lost and needs re-enqueueing.
func (r *Repository) FindStalled(ctx context.Context, statuses []domain.Status, idleFor time.Duration) ([]domain.Order, error) {
	states := make([]string, 0, len(statuses))
	for _, s := range statuses {
		states = append(states, string(s))
	}
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders o
		WHERE o.status = ANY($1)
		  AND o.updated_at < now() - $2::interval
		  AND NOT EXISTS (
			SELECT 1 FROM outbox b
			WHERE b.aggregate_id = o.id AND b.status IN ('pending','in_progress')
		  )
		ORDER BY o.updated_at`, states, idleFor.String())
}
