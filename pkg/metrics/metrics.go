// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "fleet_"

// Dictionary row results.
const (
	RowInserted = "inserted"
	RowSkipped  = "skipped"
	RowDropped  = "dropped"
	// RowDuplicate counts entries repeated within one batch.
	RowDuplicate = "duplicate"
)

// Metrics groups the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	reconciliations *prometheus.CounterVec
	dictionaryRows  *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "order_reconciliations_total",
			Help: "Order reconciliations by outcome and failing step",
		}, []string{"outcome", "step"}),
		dictionaryRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metricPrefix + "dictionary_rows_total",
			Help: "Dictionary sync rows by dictionary and result",
		}, []string{"dictionary", "result"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metricPrefix + "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.reconciliations, m.dictionaryRows, m.httpDuration)
	return m
}

// ReconcileSucceeded counts a successful reconciliation.
func (m *Metrics) ReconcileSucceeded() {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues("success", "").Inc()
}

// ReconcileFailed counts a reconciliation that failed at step.
func (m *Metrics) ReconcileFailed(step string) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues("failure", step).Inc()
}

// DictionaryRows adds n rows with result to dictionary.
func (m *Metrics) DictionaryRows(dictionary, result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dictionaryRows.WithLabelValues(dictionary, result).Add(float64(n))
}

// Middleware observes request latency labelled by the matched route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
