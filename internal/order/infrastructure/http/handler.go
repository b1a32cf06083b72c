package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	catalogapp "github.com/Sairishwanth89/medfirst/internal/catalog/application"
	catalogdomain "github.com/Sairishwanth89/medfirst/internal/catalog/domain"
	"github.com/Sairishwanth89/medfirst/internal/order/application"
	"github.com/Sairishwanth89/medfirst/internal/order/domain"
	"github.com/Sairishwanth89/medfirst/pkg/auth"
	"github.com/Sairishwanth89/medfirst/pkg/metrics"
)

type Handler struct {
	log      *slog.Logger
	orders   *application.Service
	catalog  *catalogapp.Service
	verifier auth.Verifier
	metrics  *metrics.Metrics
	validate *validator.Validate
	tracer   trace.Tracer
}

func NewHandler(log *slog.Logger, orders *application.Service, catalog *catalogapp.Service, verifier auth.Verifier, m *metrics.Metrics) *Handler {
	return &Handler{
		log:      log,
		orders:   orders,
		catalog:  catalog,
		verifier: verifier,
		metrics:  m,
		validate: validator.New(),
		tracer:   otel.Tracer("order-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.metrics.CountRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(h.verifier))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RolePatient))
			r.Post("/orders", h.placeOrder)
			r.Get("/orders", h.listMyOrders)
		})
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RolePharmacy))
			r.Get("/orders/pharmacy/mine", h.listPharmacyOrders)
			r.Post("/products", h.createProduct)
			r.Get("/products/mine", h.listMyProducts)
			r.Post("/products/{id}/restock", h.restockProduct)
			r.Delete("/products/{id}", h.removeProduct)
		})
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleCourier))
			r.Get("/orders/courier/available", h.listCourierOrders)
		})

		// Transition legality and role checks live in the service.
		r.Patch("/orders/{id}/status", h.updateStatus)
		r.Get("/orders/{id}", h.getOrder)
	})
	return r
}

type orderLineReq struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
}

type placeOrderReq struct {
	PharmacyID      string         `json:"pharmacy_id" validate:"required"`
	DeliveryAddress string         `json:"delivery_address" validate:"required"`
	Items           []orderLineReq `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PlaceOrder")
	defer span.End()

	ident, _ := auth.FromContext(ctx)
	var req placeOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "InvalidInput", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.metrics.ReservationsRejected.WithLabelValues("invalid_input").Inc()
		h.writeError(w, http.StatusBadRequest, "InvalidInput", err.Error())
		return
	}

	lines := make([]application.Line, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, application.Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	o, err := h.orders.PlaceOrder(ctx, ident.UserID, req.PharmacyID, req.DeliveryAddress, lines)
	if err != nil {
		h.writePlacementError(w, err)
		return
	}
	h.metrics.OrdersPlaced.Inc()
	h.writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) writePlacementError(w http.ResponseWriter, err error) {
	var insufficient catalogdomain.InsufficientStockError
	var notFound catalogdomain.NotFoundError
	switch {
	case errors.As(err, &insufficient):
		h.metrics.ReservationsRejected.WithLabelValues("insufficient_stock").Inc()
		h.writeError(w, http.StatusBadRequest, "InsufficientStock", insufficient.Error())
	case errors.As(err, &notFound):
		h.metrics.ReservationsRejected.WithLabelValues("product_not_found").Inc()
		h.writeError(w, http.StatusBadRequest, "ProductNotFound", notFound.Error())
	case errors.Is(err, application.ErrInvalidInput):
		h.metrics.ReservationsRejected.WithLabelValues("invalid_input").Inc()
		h.writeError(w, http.StatusBadRequest, "InvalidInput", err.Error())
	default:
		h.metrics.ReservationsRejected.WithLabelValues("internal").Inc()
		h.log.Error("order placement failed", "err", err)
		h.writeError(w, http.StatusInternalServerError, "Internal", "order placement failed")
	}
}

type updateStatusReq struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateOrderStatus")
	defer span.End()

	ident, _ := auth.FromContext(ctx)
	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "InvalidInput", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, "InvalidInput", err.Error())
		return
	}

	o, err := h.orders.UpdateStatus(ctx, chi.URLParam(r, "id"), domain.Status(req.Status), ident)
	if err != nil {
		h.writeStatusError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, o)
}

func (h *Handler) writeStatusError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, "InvalidInput", err.Error())
	case errors.Is(err, application.ErrIllegalTransition):
		h.writeError(w, http.StatusConflict, "IllegalTransition", err.Error())
	case errors.Is(err, domain.ErrStatusConflict):
		h.writeError(w, http.StatusConflict, "StatusConflict", err.Error())
	case errors.Is(err, application.ErrForbidden):
		h.writeError(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "OrderNotFound", err.Error())
	default:
		h.log.Error("status update failed", "err", err)
		h.writeError(w, http.StatusInternalServerError, "Internal", "status update failed")
	}
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.FromContext(r.Context())
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "id"), ident)
	if err != nil {
		h.writeStatusError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, o)
}

func (h *Handler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.FromContext(r.Context())
	orders, err := h.orders.ListMine(r.Context(), ident.UserID)
	h.writeList(w, orders, err)
}

func (h *Handler) listPharmacyOrders(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.FromContext(r.Context())
	orders, err := h.orders.ListForPharmacy(r.Context(), ident.PharmacyID)
	h.writeList(w, orders, err)
}

func (h *Handler) listCourierOrders(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.FromContext(r.Context())
	orders, err := h.orders.ListForCourier(r.Context(), ident.UserID)
	h.writeList(w, orders, err)
}

func (h *Handler) writeList(w http.ResponseWriter, orders []domain.Order, err error) {
	if err != nil {
		h.log.Error("order list failed", "err", err)
		h.writeError(w, http.StatusInternalServerError, "Internal", "listing failed")
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	h.writeJSON(w, http.StatusOK, orders)
}

type createProductReq struct {
	Name           string `json:"name" validate:"required"`
	UnitPriceCents int64  `json:"unit_price_cents" validate:"gte=0"`
	Quantity       int64  `json:"available_quantity" validate:"gte=0"`
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.FromContext(r.Context())
	var req createProductReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "InvalidInput", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, "InvalidInput", err.Error())
		return
	}
	p, err := h.catalog.Create(r.Context(), ident.PharmacyID, req.Name, req.UnitPriceCents, req.Quantity)
	if err != nil {
		h.writeCatalogError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) listMyProducts(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.FromContext(r.Context())
	products, err := h.catalog.ListByPharmacy(r.Context(), ident.PharmacyID)
	if err != nil {
		h.writeCatalogError(w, err)
		return
	}
	if products == nil {
		products = []catalogdomain.Product{}
	}
	h.writeJSON(w, http.StatusOK, products)
}

type restockReq struct {
	Quantity int64 `json:"quantity" validate:"required,gt=0"`
}

func (h *Handler) restockProduct(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.FromContext(r.Context())
	var req restockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "InvalidInput", "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, "InvalidInput", err.Error())
		return
	}
	p, err := h.catalog.Restock(r.Context(), ident.PharmacyID, chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		h.writeCatalogError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) removeProduct(w http.ResponseWriter, r *http.Request) {
	ident, _ := auth.FromContext(r.Context())
	if err := h.catalog.Remove(r.Context(), ident.PharmacyID, chi.URLParam(r, "id")); err != nil {
		h.writeCatalogError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeCatalogError(w http.ResponseWriter, err error) {
	var notFound catalogdomain.NotFoundError
	switch {
	case errors.As(err, &notFound):
		h.writeError(w, http.StatusNotFound, "ProductNotFound", notFound.Error())
	case errors.Is(err, catalogapp.ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, "InvalidInput", err.Error())
	case errors.Is(err, catalogapp.ErrNotOwner):
		h.writeError(w, http.StatusForbidden, "Forbidden", err.Error())
	default:
		h.log.Error("catalog request failed", "err", err)
		h.writeError(w, http.StatusInternalServerError, "Internal", "catalog request failed")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}
