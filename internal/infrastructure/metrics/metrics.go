package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/storefront-api/internal/application/checkout"
)

var _ checkout.Metrics = (*Metrics)(nil)

// Metrics colectores HTTP y de negocio, en un registro propio.
type Metrics struct {
	registry   *prometheus.Registry
	requests   *prometheus.CounterVec
	latencyMS  *prometheus.HistogramVec
	checkouts  *prometheus.CounterVec
	orderTotal prometheus.Histogram
	orderItems prometheus.Histogram
}

// New registra los colectores bajo namespace (p.ej. "storefront").
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		latencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"method", "route"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		orderTotal: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "order_total",
			Help:      "Order totals in the store currency.",
			Buckets:   prometheus.ExponentialBuckets(5, 2, 10),
		}),
		orderItems: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "order_items",
			Help:      "Units per order.",
			Buckets:   prometheus.LinearBuckets(1, 2, 10),
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.latencyMS, m.checkouts, m.orderTotal, m.orderItems,
	)
	return m
}

// Registry expone el registro (tests).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware cuenta requests por ruta registrada (no por path concreto) y mide latencia.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		// El error se resuelve aquí para registrar el status final de la respuesta.
		if err := c.Next(); err != nil {
			if hErr := c.App().ErrorHandler(c, err); hErr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		route := c.Route().Path
		status := strconv.Itoa(c.Response().StatusCode())
		m.requests.WithLabelValues(c.Method(), route, status).Inc()
		m.latencyMS.WithLabelValues(c.Method(), route).Observe(float64(time.Since(start).Milliseconds()))
		return nil
	}
}

// Handler sirve el formato de exposición de Prometheus.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

// CheckoutCompleted registra un pedido creado.
func (m *Metrics) CheckoutCompleted(total decimal.Decimal, items int) {
	m.checkouts.WithLabelValues("completed").Inc()
	m.orderTotal.Observe(total.InexactFloat64())
	m.orderItems.Observe(float64(items))
}

// CheckoutFailed registra un checkout fallido por motivo.
func (m *Metrics) CheckoutFailed(reason string) {
	m.checkouts.WithLabelValues(reason).Inc()
}

// CheckoutReplayed registra una respuesta idempotente.
func (m *Metrics) CheckoutReplayed() {
	m.checkouts.WithLabelValues("replayed").Inc()
}
