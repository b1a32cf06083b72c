package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a dedicated registry so two services in one test binary
// never fight over global collectors.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests         *prometheus.CounterVec
	OrdersPlaced         prometheus.Counter
	ReservationsRejected *prometheus.CounterVec
	WorkerProcessed      prometheus.Counter
	WorkerSkipped        prometheus.Counter
	EventsReconciled     prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medfirst_http_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medfirst_orders_placed_total",
			Help: "Orders committed with stock reserved.",
		}),
		ReservationsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medfirst_reservations_rejected_total",
			Help: "Order placements rejected, by reason.",
		}, []string{"reason"}),
		WorkerProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medfirst_worker_orders_processed_total",
			Help: "Orders advanced to ready_for_pickup by the fulfillment worker.",
		}),
		WorkerSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medfirst_worker_events_skipped_total",
			Help: "Order events skipped as stale or duplicate.",
		}),
		EventsReconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medfirst_events_reconciled_total",
			Help: "Order events re-enqueued by the reconciliation sweep.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		m.HTTPRequests,
		m.OrdersPlaced,
		m.ReservationsRejected,
		m.WorkerProcessed,
		m.WorkerSkipped,
		m.EventsReconciled,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CountRequests is a chi-compatible middleware recording request totals.
func (m *Metrics) CountRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)
		m.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(sw.code)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
