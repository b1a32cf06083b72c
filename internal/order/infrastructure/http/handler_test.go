package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	catalogapp "github.com/Sairishwanth89/medfirst/internal/catalog/application"
	catalogdomain "github.com/Sairishwanth89/medfirst/internal/catalog/domain"
	"github.com/Sairishwanth89/medfirst/internal/order/application"
	"github.com/Sairishwanth89/medfirst/internal/order/domain"
	"github.com/Sairishwanth89/medfirst/pkg/auth"
	"github.com/Sairishwanth89/medfirst/pkg/metrics"
)

const testSecret = "test-secret"

type memRepo struct {
	orders map[string]domain.Order
	events []string
}

func (r *memRepo) CreateWithEvent(_ context.Context, o domain.Order, eventType string, _ []byte) error {
	r.orders[o.ID] = o
	r.events = append(r.events, eventType)
	return nil
}

func (r *memRepo) Get(_ context.Context, id string) (domain.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (r *memRepo) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memRepo) ListByPharmacy(_ context.Context, pharmacyID string) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range r.orders {
		if o.PharmacyID == pharmacyID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memRepo) ListForCourier(_ context.Context, courierID string) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range r.orders {
		if (o.Status == domain.StatusReadyForPickup && o.CourierID == nil) ||
			(o.CourierID != nil && *o.CourierID == courierID) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memRepo) TransitionStatus(_ context.Context, id string, from, to domain.Status, courierID *string) (domain.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	if o.Status != from {
		return domain.Order{}, domain.ErrStatusConflict
	}
	o.Status = to
	if courierID != nil {
		o.CourierID = courierID
	}
	r.orders[id] = o
	return o, nil
}

func (r *memRepo) AppendEvent(_ context.Context, _ string, eventType string, _ []byte) error {
	r.events = append(r.events, eventType)
	return nil
}

func (r *memRepo) FindStalled(context.Context, []domain.Status, time.Duration) ([]domain.Order, error) {
	return nil, nil
}

type memInventory struct {
	products map[string]catalogdomain.Product
}

func (m *memInventory) Get(_ context.Context, id string) (catalogdomain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return catalogdomain.Product{}, catalogdomain.NotFoundError{ProductID: id}
	}
	return p, nil
}

func (m *memInventory) Decrement(_ context.Context, id string, qty int64) error {
	p := m.products[id]
	if p.AvailableQuantity < qty {
		return catalogdomain.InsufficientStockError{ProductID: id}
	}
	p.AvailableQuantity -= qty
	m.products[id] = p
	return nil
}

func (m *memInventory) Increment(_ context.Context, id string, qty int64) error {
	p := m.products[id]
	p.AvailableQuantity += qty
	m.products[id] = p
	return nil
}

type memProducts struct{ memInventory }

func (m *memProducts) Create(_ context.Context, p *catalogdomain.Product) error {
	m.products[p.ID] = *p
	return nil
}

func (m *memProducts) ListByPharmacy(_ context.Context, pharmacyID string) ([]catalogdomain.Product, error) {
	var out []catalogdomain.Product
	for _, p := range m.products {
		if p.PharmacyID == pharmacyID && !p.Removed {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProducts) Remove(_ context.Context, id, _ string) error {
	p := m.products[id]
	p.Removed = true
	m.products[id] = p
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *memRepo, *memProducts) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := &memRepo{orders: map[string]domain.Order{}}
	products := &memProducts{memInventory{products: map[string]catalogdomain.Product{
		"p1": {ID: "p1", PharmacyID: "ph1", Name: "Ibuprofen", UnitPriceCents: 499, AvailableQuantity: 10},
	}}}

	orders := application.NewService(log, repo, &products.memInventory)
	catalog := catalogapp.NewService(log, products)
	h := NewHandler(log, orders, catalog, auth.NewJWTVerifier(testSecret), metrics.New())

	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv, repo, products
}

func token(t *testing.T, userID string, role auth.Role, pharmacyID string) string {
	t.Helper()
	tok, err := auth.Sign(testSecret, userID, role, pharmacyID, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func doJSON(t *testing.T, method, url, bearer string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	return body["error"]
}

func TestPlaceOrderEndpoint(t *testing.T) {
	srv, repo, _ := newTestServer(t)
	patient := token(t, "u1", auth.RolePatient, "")

	resp := doJSON(t, http.MethodPost, srv.URL+"/orders", patient, map[string]any{
		"pharmacy_id":      "ph1",
		"delivery_address": "12 Main St",
		"items":            []map[string]any{{"product_id": "p1", "quantity": 2}},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var o domain.Order
	if err := json.NewDecoder(resp.Body).Decode(&o); err != nil {
		t.Fatal(err)
	}
	if o.Status != domain.StatusPending || o.TotalCents != 998 {
		t.Fatalf("order = %+v", o)
	}
	if len(repo.events) != 1 || repo.events[0] != domain.EventOrderPlaced {
		t.Fatalf("events = %v", repo.events)
	}
}

func TestPlaceOrderRejectionsMapToCodes(t *testing.T) {
	srv, _, _ := newTestServer(t)
	patient := token(t, "u1", auth.RolePatient, "")

	resp := doJSON(t, http.MethodPost, srv.URL+"/orders", patient, map[string]any{
		"pharmacy_id":      "ph1",
		"delivery_address": "12 Main St",
		"items":            []map[string]any{{"product_id": "p1", "quantity": 999}},
	})
	if resp.StatusCode != http.StatusBadRequest || errorCode(t, resp) != "InsufficientStock" {
		t.Fatalf("insufficient stock: status %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/orders", patient, map[string]any{
		"pharmacy_id":      "ph1",
		"delivery_address": "12 Main St",
		"items":            []map[string]any{{"product_id": "ghost", "quantity": 1}},
	})
	if resp.StatusCode != http.StatusBadRequest || errorCode(t, resp) != "ProductNotFound" {
		t.Fatalf("unknown product: status %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/orders", patient, map[string]any{
		"pharmacy_id":      "ph1",
		"delivery_address": "12 Main St",
		"items":            []map[string]any{},
	})
	if resp.StatusCode != http.StatusBadRequest || errorCode(t, resp) != "InvalidInput" {
		t.Fatalf("empty cart: status %d", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/orders", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", resp.StatusCode)
	}

	courier := token(t, "c1", auth.RoleCourier, "")
	resp = doJSON(t, http.MethodPost, srv.URL+"/orders", courier, map[string]any{})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("wrong role: status = %d, want 403", resp.StatusCode)
	}
}

func TestUpdateStatusEndpoint(t *testing.T) {
	srv, repo, _ := newTestServer(t)
	repo.orders["o1"] = domain.NewOrder("o1", "u1", "ph1", "addr", []domain.Item{
		{ProductID: "p1", Quantity: 1, UnitPriceCents: 499},
	})

	pharmacy := token(t, "staff", auth.RolePharmacy, "ph1")
	resp := doJSON(t, http.MethodPatch, srv.URL+"/orders/o1/status", pharmacy, map[string]string{"status": "confirmed"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm: status = %d", resp.StatusCode)
	}

	// Jumping confirmed -> delivered is off the lifecycle graph.
	courier := token(t, "c1", auth.RoleCourier, "")
	resp = doJSON(t, http.MethodPatch, srv.URL+"/orders/o1/status", courier, map[string]string{"status": "delivered"})
	if resp.StatusCode != http.StatusConflict || errorCode(t, resp) != "IllegalTransition" {
		t.Fatalf("illegal transition: status = %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPatch, srv.URL+"/orders/ghost/status", pharmacy, map[string]string{"status": "confirmed"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown order: status = %d", resp.StatusCode)
	}
}

func TestGetOrderVisibility(t *testing.T) {
	srv, repo, _ := newTestServer(t)
	repo.orders["o1"] = domain.NewOrder("o1", "u1", "ph1", "addr", nil)

	owner := token(t, "u1", auth.RolePatient, "")
	if resp := doJSON(t, http.MethodGet, srv.URL+"/orders/o1", owner, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("owner: status = %d", resp.StatusCode)
	}

	stranger := token(t, "u2", auth.RolePatient, "")
	if resp := doJSON(t, http.MethodGet, srv.URL+"/orders/o1", stranger, nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("stranger: status = %d", resp.StatusCode)
	}
}

func TestProductEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)
	pharmacy := token(t, "staff", auth.RolePharmacy, "ph1")

	resp := doJSON(t, http.MethodPost, srv.URL+"/products", pharmacy, map[string]any{
		"name":               "Paracetamol 500mg",
		"unit_price_cents":   350,
		"available_quantity": 40,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create product: status = %d", resp.StatusCode)
	}
	var p catalogdomain.Product
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/products/"+p.ID+"/restock", pharmacy, map[string]any{"quantity": 10})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("restock: status = %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/products/mine", pharmacy, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: status = %d", resp.StatusCode)
	}

	patient := token(t, "u1", auth.RolePatient, "")
	resp = doJSON(t, http.MethodPost, srv.URL+"/products", patient, map[string]any{"name": "X"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("patient creating product: status = %d", resp.StatusCode)
	}
}
