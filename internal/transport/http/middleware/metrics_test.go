package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newMetricsRouter(t *testing.T, registry *prometheus.Registry) (*gin.Engine, *HTTPMetrics) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	metrics, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("NewHTTPMetrics: %v", err)
	}

	router := gin.New()
	router.Use(metrics.Handler())
	router.POST("/auth/password/request-reset", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.POST("/auth/password/verify-code", func(c *gin.Context) {
		c.Status(http.StatusBadRequest)
	})
	return router, metrics
}

func TestHTTPMetricsLabelsByRouteTemplateAndStatus(t *testing.T) {
	registry := prometheus.NewRegistry()
	router, metrics := newMetricsRouter(t, registry)

	for i := 0; i < 2; i++ {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/auth/password/request-reset", nil))
	}
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/auth/password/verify-code", nil))

	reset := prometheus.Labels{"method": http.MethodPost, "route": "/auth/password/request-reset", "status": "200"}
	if got := testutil.ToFloat64(metrics.Requests.With(reset)); got != 2 {
		t.Fatalf("expected 2 request-reset requests, got %v", got)
	}
	verify := prometheus.Labels{"method": http.MethodPost, "route": "/auth/password/verify-code", "status": "400"}
	if got := testutil.ToFloat64(metrics.Requests.With(verify)); got != 1 {
		t.Fatalf("expected 1 rejected verify-code request, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.InFlight); got != 0 {
		t.Fatalf("in-flight gauge not released: %v", got)
	}
	if n := testutil.CollectAndCount(metrics.Duration, "recovery_http_request_duration_seconds"); n != 2 {
		t.Fatalf("expected one duration series per route, got %d", n)
	}
}

func TestHTTPMetricsCollapsesUnmatchedPaths(t *testing.T) {
	registry := prometheus.NewRegistry()
	router, metrics := newMetricsRouter(t, registry)

	for _, path := range []string{"/auth/password/nope", "/wp-login.php"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	unmatched := prometheus.Labels{"method": http.MethodGet, "route": "unmatched", "status": "404"}
	if got := testutil.ToFloat64(metrics.Requests.With(unmatched)); got != 2 {
		t.Fatalf("expected unmatched paths to share one series, got %v", got)
	}
}

func TestNewHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()

	first, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("first NewHTTPMetrics: %v", err)
	}
	second, err := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("second NewHTTPMetrics: %v", err)
	}
	if first.Requests != second.Requests {
		t.Fatalf("expected the existing request counter to be reused")
	}

	first.Requests.WithLabelValues(http.MethodPost, "/auth/login", "200").Inc()
	expected := `
# HELP recovery_http_requests_total Total number of HTTP requests partitioned by method, route, and status code.
# TYPE recovery_http_requests_total counter
recovery_http_requests_total{method="POST",route="/auth/login",status="200"} 1
`
	if err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "recovery_http_requests_total"); err != nil {
		t.Fatalf("unexpected exposition: %v", err)
	}
}

func TestHTTPMetricsNilHandlerPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use((*HTTPMetrics)(nil).Handler())
	router.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}
