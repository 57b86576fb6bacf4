package metrics

import (
	"context"
	"net/http"

	"storefront/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
	Orders    *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewServerMetrics registers the collectors on reg. A nil reg means the default registry.
func NewServerMetrics(service string, reg *prometheus.Registry) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storefront",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: service,
		Name:      "order_events_total",
		Help:      "Order lifecycle transitions by event type.",
	}, []string{"type"})

	m := &ServerMetrics{Requests: requests, LatencyMS: latency, Orders: orders}
	if reg == nil {
		prometheus.MustRegister(requests, latency, orders)
		m.gatherer = prometheus.DefaultGatherer
	} else {
		reg.MustRegister(requests, latency, orders)
		m.gatherer = reg
	}
	return m
}

// Publish counts the event. It lets the metrics sit in the order event fanout.
func (m *ServerMetrics) Publish(_ context.Context, ev models.OrderEvent) error {
	m.Orders.WithLabelValues(ev.Type).Inc()
	return nil
}

func (m *ServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
