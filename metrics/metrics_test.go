package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storefront/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPublishCountsEvents(t *testing.T) {
	m := NewServerMetrics("test", prometheus.NewRegistry())

	_ = m.Publish(context.Background(), models.OrderEvent{Type: models.EventOrderPlaced})
	_ = m.Publish(context.Background(), models.OrderEvent{Type: models.EventOrderPlaced})
	_ = m.Publish(context.Background(), models.OrderEvent{Type: models.EventOrderDelivered})

	if got := testutil.ToFloat64(m.Orders.WithLabelValues(models.EventOrderPlaced)); got != 2 {
		t.Fatalf("placed = %v", got)
	}
	if got := testutil.ToFloat64(m.Orders.WithLabelValues(models.EventOrderDelivered)); got != 1 {
		t.Fatalf("delivered = %v", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := NewServerMetrics("test", prometheus.NewRegistry())
	m.Requests.WithLabelValues("orders.create", "201").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `storefront_test_http_requests_total{handler="orders.create",status="201"} 1`) {
		t.Fatalf("counter missing from exposition:\n%s", rec.Body.String())
	}
}
