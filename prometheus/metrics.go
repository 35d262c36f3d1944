// Package prometheus exports crawl metrics through a private Prometheus registry.
package prometheus

import (
	"fmt"
	"net/http"
	"time"

	"github.com/fwojciec/partcrawl"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ensure Metrics implements partcrawl.Observer at compile time.
var _ partcrawl.Observer = (*Metrics)(nil)

// Fetch outcomes used as the "outcome" label.
const (
	OutcomeOK        = "ok"
	OutcomeTransient = "transient"
	OutcomePermanent = "permanent"
	OutcomeNotFound  = "not_found"
)

// Metrics records crawl events. It is safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	pagesFetched    *prometheus.CounterVec
	fetchDuration   *prometheus.HistogramVec
	recordsAdmitted *prometheus.CounterVec
	unitFailures    *prometheus.CounterVec
}

// NewMetrics registers the crawl collectors on a fresh registry.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "partcrawl_pages_fetched_total",
			Help: "Fetched units partitioned by page kind and outcome.",
		}, []string{"kind", "outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "partcrawl_fetch_duration_seconds",
			Help:    "Fetch duration including retries, partitioned by page kind.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 45, 90, 180},
		}, []string{"kind"}),
		recordsAdmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "partcrawl_records_admitted_total",
			Help: "Records admitted for persistence partitioned by record type.",
		}, []string{"record"}),
		unitFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "partcrawl_unit_failures_total",
			Help: "Discarded units partitioned by page kind and failure category.",
		}, []string{"kind", "category"}),
	}
	for _, collector := range []prometheus.Collector{
		m.pagesFetched,
		m.fetchDuration,
		m.recordsAdmitted,
		m.unitFailures,
	} {
		if err := m.registry.Register(collector); err != nil {
			return nil, fmt.Errorf("register crawl collector: %w", err)
		}
	}
	return m, nil
}

// PageFetched records one fetched unit.
func (m *Metrics) PageFetched(kind partcrawl.PageKind, d time.Duration, err error) {
	m.pagesFetched.WithLabelValues(kind.String(), outcome(err)).Inc()
	m.fetchDuration.WithLabelValues(kind.String()).Observe(d.Seconds())
}

// RecordsAdmitted counts the records in b.
func (m *Metrics) RecordsAdmitted(b *partcrawl.Batch) {
	if b == nil {
		return
	}
	if n := len(b.Models); n > 0 {
		m.recordsAdmitted.WithLabelValues("model").Add(float64(n))
	}
	if n := len(b.Parts); n > 0 {
		m.recordsAdmitted.WithLabelValues("part").Add(float64(n))
	}
	if n := len(b.Links); n > 0 {
		m.recordsAdmitted.WithLabelValues("link").Add(float64(n))
	}
}

// UnitFailed counts one discarded unit.
func (m *Metrics) UnitFailed(kind partcrawl.PageKind, category partcrawl.FailureCategory) {
	m.unitFailures.WithLabelValues(kind.String(), string(category)).Inc()
}

// Registry returns the private registry holding the crawl collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case partcrawl.IsNotFound(err):
		return OutcomeNotFound
	case partcrawl.IsPermanent(err):
		return OutcomePermanent
	}
	return OutcomeTransient
}
