package domain

import (
	"fmt"
	"time"
)

// Product is a catalog entry owned by a pharmacy. AvailableQuantity is
// the single contended value in the system: it is only ever changed by
// the atomic decrement of a reservation, its compensating increment, or
// an explicit restock, and it never goes below zero.
type Product struct {
	ID                string    `json:"id"`
	PharmacyID        string    `json:"pharmacy_id"`
	Name              string    `json:"name"`
	UnitPriceCents    int64     `json:"unit_price_cents"`
	AvailableQuantity int64     `json:"available_quantity"`
	Removed           bool      `json:"removed"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type NotFoundError struct {
	ProductID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

type InsufficientStockError struct {
	ProductID string
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s", e.ProductID)
}
