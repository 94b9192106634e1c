package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/books/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/books/"+id, nil))
	}

	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/books/{id}", "404"))
	if got != 2 {
		t.Fatalf("requests_total = %v, want 2", got)
	}
}

func TestMiddlewareDefaultsToOK(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/empty", func(http.ResponseWriter, *http.Request) {})

	for _, path := range []string{"/", "/empty"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	for _, route := range []string{"/", "/empty"} {
		if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, route, "200")); got != 1 {
			t.Fatalf("requests_total{route=%q,status=200} = %v, want 1", route, got)
		}
	}
}

func TestNilMetricsHelpersAreNoops(t *testing.T) {
	var m *Metrics
	m.AuthFailure("invalid_token")
	m.RateLimited("login")
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AuthFailure("missing_token")
	m.RateLimited("login")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, name := range []string{"bookshelf_auth_failures_total", "bookshelf_rate_limited_total"} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected %s in exposition output", name)
		}
	}
	if got := testutil.ToFloat64(m.AuthFailuresTotal.WithLabelValues("missing_token")); got != 1 {
		t.Fatalf("auth_failures_total = %v, want 1", got)
	}
}
