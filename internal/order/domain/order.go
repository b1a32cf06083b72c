package domain

import (
	"errors"
	"time"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusReadyForPickup Status = "ready_for_pickup"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// transitions is the full lifecycle graph. Anything not listed here is
// illegal, including every edge out of a terminal state.
var transitions = map[Status][]Status{
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusReadyForPickup, StatusCancelled},
	StatusReadyForPickup: {StatusOutForDelivery},
	StatusOutForDelivery: {StatusDelivered},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusReadyForPickup,
		StatusOutForDelivery, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

func (s Status) CanTransitionTo(to Status) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Item is a point-in-time snapshot: quantity and price are captured at
// purchase and do not track later product changes.
type Item struct {
	ProductID      string `json:"product_id"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_at_purchase_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

type Order struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	PharmacyID      string    `json:"pharmacy_id"`
	Items           []Item    `json:"items"`
	TotalCents      int64     `json:"total_amount_cents"`
	DeliveryAddress string    `json:"delivery_address"`
	Status          Status    `json:"status"`
	CourierID       *string   `json:"assigned_courier_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

var ErrTotalMismatch = errors.New("order total does not match item subtotals")

// NewOrder builds a pending order from snapshot items, enforcing the
// total == sum(subtotals) invariant by construction.
func NewOrder(id, userID, pharmacyID, address string, items []Item) Order {
	var total int64
	for i := range items {
		items[i].SubtotalCents = items[i].UnitPriceCents * items[i].Quantity
		total += items[i].SubtotalCents
	}
	now := time.Now().UTC()
	return Order{
		ID:              id,
		UserID:          userID,
		PharmacyID:      pharmacyID,
		Items:           items,
		TotalCents:      total,
		DeliveryAddress: address,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
