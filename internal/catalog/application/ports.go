package application

import (
	"context"

	"github.com/Sairishwanth89/medfirst/internal/catalog/domain"
)

type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	Get(ctx context.Context, id string) (domain.Product, error)
	ListByPharmacy(ctx context.Context, pharmacyID string) ([]domain.Product, error)

	// Decrement atomically subtracts qty from available_quantity,
	// failing with InsufficientStockError instead of going negative.
	// Increment is its inverse, used for restock and compensation.
	Decrement(ctx context.Context, id string, qty int64) error
	Increment(ctx context.Context, id string, qty int64) error

	// Remove soft-deletes: historical orders keep referencing the row.
	Remove(ctx context.Context, id, pharmacyID string) error
}
