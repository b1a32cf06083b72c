package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Sairishwanth89/medfirst/internal/catalog/domain"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotOwner     = errors.New("product belongs to another pharmacy")
)

type Service struct {
	log  *slog.Logger
	repo ProductRepository
}

func NewService(log *slog.Logger, repo ProductRepository) *Service {
	return &Service{log: log, repo: repo}
}

func (s *Service) Create(ctx context.Context, pharmacyID, name string, unitPriceCents, quantity int64) (domain.Product, error) {
	if pharmacyID == "" || name == "" || unitPriceCents < 0 || quantity < 0 {
		return domain.Product{}, ErrInvalidInput
	}
	p := domain.Product{
		ID:                uuid.NewString(),
		PharmacyID:        pharmacyID,
		Name:              name,
		UnitPriceCents:    unitPriceCents,
		AvailableQuantity: quantity,
	}
	if err := s.repo.Create(ctx, &p); err != nil {
		return domain.Product{}, err
	}
	s.log.Info("product created", "product_id", p.ID, "pharmacy_id", pharmacyID)
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Product, error) {
	if id == "" {
		return domain.Product{}, ErrInvalidInput
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) ListByPharmacy(ctx context.Context, pharmacyID string) ([]domain.Product, error) {
	if pharmacyID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByPharmacy(ctx, pharmacyID)
}

// Restock adds quantity to a product owned by the calling pharmacy.
func (s *Service) Restock(ctx context.Context, pharmacyID, productID string, quantity int64) (domain.Product, error) {
	if productID == "" || quantity <= 0 {
		return domain.Product{}, ErrInvalidInput
	}
	p, err := s.repo.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	if p.PharmacyID != pharmacyID {
		return domain.Product{}, ErrNotOwner
	}
	if err := s.repo.Increment(ctx, productID, quantity); err != nil {
		return domain.Product{}, err
	}
	s.log.Info("product restocked", "product_id", productID, "quantity", quantity)
	return s.repo.Get(ctx, productID)
}

func (s *Service) Remove(ctx context.Context, pharmacyID, productID string) error {
	if productID == "" {
		return ErrInvalidInput
	}
	p, err := s.repo.Get(ctx, productID)
	if err != nil {
		return err
	}
	if p.PharmacyID != pharmacyID {
		return ErrNotOwner
	}
	return s.repo.Remove(ctx, productID, pharmacyID)
}
