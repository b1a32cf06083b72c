package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Sairishwanth89/medfirst/internal/catalog/domain"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Create(ctx context.Context, p *domain.Product) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := r.pool.Exec(ctx, `INSERT INTO products (id, pharmacy_id, name, unit_price_cents, available_quantity, removed, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,false,$6,$7)`,
		p.ID, p.PharmacyID, p.Name, p.UnitPriceCents, p.AvailableQuantity, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Product, error) {
	var p domain.Product
	err := r.pool.QueryRow(ctx, `SELECT id, pharmacy_id, name, unit_price_cents, available_quantity, removed, created_at, updated_at
		FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.PharmacyID, &p.Name, &p.UnitPriceCents, &p.AvailableQuantity, &p.Removed, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, domain.NotFoundError{ProductID: id}
	}
	if err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func (r *Repository) ListByPharmacy(ctx context.Context, pharmacyID string) ([]domain.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, pharmacy_id, name, unit_price_cents, available_quantity, removed, created_at, updated_at
		FROM products WHERE pharmacy_id=$1 AND NOT removed ORDER BY created_at`, pharmacyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.PharmacyID, &p.Name, &p.UnitPriceCents, &p.AvailableQuantity, &p.Removed, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// Decrement is the reservation primitive. The availability check and
// the subtraction happen in one statement, so two concurrent orders can
// never both take the last unit.
func (r *Repository) Decrement(ctx context.Context, id string, qty int64) error {
	ct, err := r.pool.Exec(ctx, `UPDATE products
		SET available_quantity = available_quantity - $2, updated_at = now()
		WHERE id=$1 AND NOT removed AND available_quantity >= $2`, id, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		// Either the row is missing or the stock ran out; a second
		// read tells them apart for the caller's error taxonomy.
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return domain.InsufficientStockError{ProductID: id}
	}
	return nil
}

func (r *Repository) Increment(ctx context.Context, id string, qty int64) error {
	ct, err := r.pool.Exec(ctx, `UPDATE products
		SET available_quantity = available_quantity + $2, updated_at = now()
		WHERE id=$1`, id, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.NotFoundError{ProductID: id}
	}
	return nil
}

func (r *Repository) Remove(ctx context.Context, id, pharmacyID string) error {
	ct, err := r.pool.Exec(ctx, `UPDATE products SET removed=true, updated_at=now()
		WHERE id=$1 AND pharmacy_id=$2`, id, pharmacyID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.NotFoundError{ProductID: id}
	}
	return nil
}
