package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveBackend(t *testing.T) {
	c := NewCollector()

	c.ObserveBackend("list", 200, 10*time.Millisecond)
	c.ObserveBackend("list", 200, 20*time.Millisecond)
	c.ObserveBackend("delete", 404, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.BackendRequests.WithLabelValues("list", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.BackendRequests.WithLabelValues("delete", "404")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.BackendDuration))
}

func TestObserveBackendOnNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() { c.ObserveBackend("list", 0, time.Second) })
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	c := NewCollector()

	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Route("/api", func(r chi.Router) {
		r.Get("/lates/{year}/{month}/{day}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	})

	srv := httptest.NewServer(r)
	defer srv.Close()

	for _, path := range []string{"/api/lates/2023/1/1", "/api/lates/2023/1/2"} {
		res, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		res.Body.Close()
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/api/lates/{year}/{month}/{day}", "404")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.ObserveBackend("create", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "nexlate_backend_requests_total"))
}
