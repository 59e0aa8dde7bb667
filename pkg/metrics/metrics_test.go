package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ReconcileSucceeded()
	m.ReconcileFailed("resolve_route")
	m.ReconcileFailed("resolve_route")
	m.DictionaryRows("buses", RowInserted, 3)
	m.DictionaryRows("buses", RowDropped, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconciliations.WithLabelValues("success", "")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.reconciliations.WithLabelValues("failure", "resolve_route")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.dictionaryRows.WithLabelValues("buses", RowInserted)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.dictionaryRows.WithLabelValues("buses", RowDropped)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ReconcileSucceeded()
		m.ReconcileFailed("parse_time")
		m.DictionaryRows("routes", RowSkipped, 1)
	})
}

func TestMiddlewareObservesRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m := New(reg)

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	n, err := testutil.GatherAndCount(reg, metricPrefix+"http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
