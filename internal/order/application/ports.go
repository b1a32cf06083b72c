package application

import (
	"context"
	"time"

	catalogdomain "github.com/Sairishwanth89/medfirst/internal/catalog/domain"
	"github.com/Sairishwanth89/medfirst/internal/order/domain"
)

type OrderRepository interface {
	// CreateWithEvent persists the order and its outbox event in one
	// transaction, so a committed order always has an event on the way
	// out even if the broker is down at commit time.
	CreateWithEvent(ctx context.Context, o domain.Order, eventType string, payload []byte) error
	Get(ctx context.Context, id string) (domain.Order, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListByPharmacy(ctx context.Context, pharmacyID string) ([]domain.Order, error)
	// ListForCourier returns the unclaimed ready_for_pickup pool plus
	// orders assigned to the given courier.
	ListForCourier(ctx context.Context, courierID string) ([]domain.Order, error)

	// TransitionStatus moves the order from -> to with a conditional
	// update, returning domain.ErrStatusConflict when the order is no
	// longer in the expected state. courierID, when non-nil, is
	// recorded as the assignee.
	TransitionStatus(ctx context.Context, id string, from, to domain.Status, courierID *string) (domain.Order, error)

	// AppendEvent enqueues a standalone outbox event for an existing
	// order (confirmation trigger, reconciliation sweep).
	AppendEvent(ctx context.Context, orderID, eventType string, payload []byte) error

	// FindStalled returns orders sitting in one of the given states for
	// longer than idleFor with no outbox event still awaiting delivery.
	FindStalled(ctx context.Context, statuses []domain.Status, idleFor time.Duration) ([]domain.Order, error)
}

// Inventory is the slice of the catalog the order flow needs: price
// lookup plus the atomic decrement and its compensating increment.
type Inventory interface {
	Get(ctx context.Context, id string) (catalogdomain.Product, error)
	Decrement(ctx context.Context, id string, qty int64) error
	Increment(ctx context.Context, id string, qty int64) error
}
