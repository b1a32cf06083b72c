package application

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	catalogdomain "github.com/Sairishwanth89/medfirst/internal/catalog/domain"
	"github.com/Sairishwanth89/medfirst/internal/order/domain"
	"github.com/Sairishwanth89/medfirst/pkg/auth"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrForbidden         = errors.New("caller not authorized for this order")
)

// Line is one cart entry in a placement request.
type Line struct {
	ProductID string
	Quantity  int64
}

type Service struct {
	log    *slog.Logger
	repo   OrderRepository
	inv    Inventory
	tracer trace.Tracer
}

func NewService(log *slog.Logger, repo OrderRepository, inv Inventory) *Service {
	return &Service{
		log:    log,
		repo:   repo,
		inv:    inv,
		tracer: otel.Tracer("order-service"),
	}
}

// PlaceOrder reserves stock for every line and commits the order as a
// single logical unit. Each line is reserved with the store's atomic
// decrement; if any line fails, every prior reservation is compensated
// before the error is returned, so no partial state is observable.
func (s *Service) PlaceOrder(ctx context.Context, userID, pharmacyID, address string, lines []Line) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "PlaceOrder")
	defer span.End()

	if userID == "" || pharmacyID == "" || address == "" || len(lines) == 0 {
		return domain.Order{}, ErrInvalidInput
	}
	for _, l := range lines {
		if l.ProductID == "" || l.Quantity <= 0 {
			return domain.Order{}, ErrInvalidInput
		}
	}

	items := make([]domain.Item, 0, len(lines))
	reserved := make([]Line, 0, len(lines))
	for _, l := range lines {
		p, err := s.inv.Get(ctx, l.ProductID)
		if err != nil {
			s.compensate(ctx, reserved)
			return domain.Order{}, err
		}
		if p.Removed || p.PharmacyID != pharmacyID {
			s.compensate(ctx, reserved)
			return domain.Order{}, catalogdomain.NotFoundError{ProductID: l.ProductID}
		}
		// The read above is only for the price snapshot and ownership;
		// the availability check and the write are one atomic step.
		if err := s.inv.Decrement(ctx, l.ProductID, l.Quantity); err != nil {
			s.compensate(ctx, reserved)
			return domain.Order{}, err
		}
		reserved = append(reserved, l)
		items = append(items, domain.Item{
			ProductID:      l.ProductID,
			Quantity:       l.Quantity,
			UnitPriceCents: p.UnitPriceCents,
		})
	}

	o := domain.NewOrder(uuid.NewString(), userID, pharmacyID, address, items)
	payload, err := json.Marshal(domain.NewOrderEvent(o.ID))
	if err != nil {
		s.compensate(ctx, reserved)
		return domain.Order{}, err
	}
	if err := s.repo.CreateWithEvent(ctx, o, domain.EventOrderPlaced, payload); err != nil {
		s.compensate(ctx, reserved)
		return domain.Order{}, err
	}
	s.log.Info("order placed", "order_id", o.ID, "user_id", userID, "total_cents", o.TotalCents)
	return o, nil
}

// compensate re-increments stock for lines already reserved in a
// placement that is about to fail. A failed increment is logged for
// the operator; it cannot fail the request that is already erroring.
func (s *Service) compensate(ctx context.Context, reserved []Line) {
	for _, l := range reserved {
		if err := s.inv.Increment(ctx, l.ProductID, l.Quantity); err != nil {
			s.log.Error("stock compensation failed",
				"product_id", l.ProductID, "quantity", l.Quantity, "err", err)
		}
	}
}

// UpdateStatus validates and applies one lifecycle transition on behalf
// of an authenticated caller.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, to domain.Status, ident auth.Identity) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "UpdateStatus")
	defer span.End()

	if orderID == "" || !to.Valid() {
		return domain.Order{}, ErrInvalidInput
	}
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	from := o.Status
	if !from.CanTransitionTo(to) {
		return domain.Order{}, ErrIllegalTransition
	}
	if !domain.RoleMayTransition(from, to, ident.Role) {
		return domain.Order{}, ErrForbidden
	}
	if err := s.checkOwnership(o, to, ident); err != nil {
		return domain.Order{}, err
	}

	var courierID *string
	if to == domain.StatusOutForDelivery {
		id := ident.UserID
		courierID = &id
	}

	updated, err := s.repo.TransitionStatus(ctx, orderID, from, to, courierID)
	if err != nil {
		return domain.Order{}, err
	}

	switch to {
	case domain.StatusConfirmed:
		// The confirmation event is what wakes the fulfillment worker.
		payload, merr := json.Marshal(domain.NewOrderEvent(orderID))
		if merr == nil {
			merr = s.repo.AppendEvent(ctx, orderID, domain.EventOrderConfirmed, payload)
		}
		if merr != nil {
			// The reconciliation sweep re-publishes stalled orders.
			s.log.Error("confirmation event enqueue failed", "order_id", orderID, "err", merr)
		}
	case domain.StatusCancelled:
		s.restock(ctx, updated)
	}

	s.log.Info("order status updated", "order_id", orderID, "from", from, "to", to, "role", ident.Role)
	return updated, nil
}

func (s *Service) checkOwnership(o domain.Order, to domain.Status, ident auth.Identity) error {
	switch ident.Role {
	case auth.RolePatient:
		if o.UserID != ident.UserID {
			return ErrForbidden
		}
	case auth.RolePharmacy:
		if o.PharmacyID != ident.PharmacyID {
			return ErrForbidden
		}
	case auth.RoleCourier:
		switch to {
		case domain.StatusOutForDelivery:
			if o.CourierID != nil && *o.CourierID != ident.UserID {
				return ErrForbidden
			}
		case domain.StatusDelivered:
			if o.CourierID == nil || *o.CourierID != ident.UserID {
				return ErrForbidden
			}
		}
	}
	return nil
}

// restock returns a cancelled order's quantities to the shelf.
func (s *Service) restock(ctx context.Context, o domain.Order) {
	for _, it := range o.Items {
		if err := s.inv.Increment(ctx, it.ProductID, it.Quantity); err != nil {
			s.log.Error("restock on cancel failed",
				"order_id", o.ID, "product_id", it.ProductID, "err", err)
		}
	}
}

// Get returns one order if the caller is allowed to see it.
func (s *Service) Get(ctx context.Context, orderID string, ident auth.Identity) (domain.Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	switch ident.Role {
	case auth.RolePatient:
		if o.UserID != ident.UserID {
			return domain.Order{}, ErrForbidden
		}
	case auth.RolePharmacy:
		if o.PharmacyID != ident.PharmacyID {
			return domain.Order{}, ErrForbidden
		}
	case auth.RoleCourier:
		assigned := o.CourierID != nil && *o.CourierID == ident.UserID
		if !assigned && o.Status != domain.StatusReadyForPickup {
			return domain.Order{}, ErrForbidden
		}
	}
	return o, nil
}

func (s *Service) ListMine(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) ListForPharmacy(ctx context.Context, pharmacyID string) ([]domain.Order, error) {
	return s.repo.ListByPharmacy(ctx, pharmacyID)
}

func (s *Service) ListForCourier(ctx context.Context, courierID string) ([]domain.Order, error) {
	return s.repo.ListForCourier(ctx, courierID)
}
