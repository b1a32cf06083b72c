package domain

import "time"

const (
	EventOrderPlaced    = "order.placed"
	EventOrderConfirmed = "order.confirmed"
)

// OrderEvent is the queue payload: a pointer at an order, never a
// snapshot. Consumers re-read the order before acting because the
// payload may be stale by the time it is processed.
type OrderEvent struct {
	OrderID   string    `json:"order_id"`
	EmittedAt time.Time `json:"emitted_at"`
}

func NewOrderEvent(orderID string) OrderEvent {
	return OrderEvent{OrderID: orderID, EmittedAt: time.Now().UTC()}
}
