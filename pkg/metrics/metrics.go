// Package metrics exposes Prometheus collectors for the import pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "smart_import"

// Metrics groups the import collectors.
type Metrics struct {
	registry *prometheus.Registry

	FilesAnalyzed  *prometheus.CounterVec
	AnalyzeSeconds *prometheus.HistogramVec
	RowsPrepared   *prometheus.CounterVec
	ItemsImported  *prometheus.CounterVec
	ActiveSessions prometheus.Gauge
}

// New registers the collectors on a fresh registry together with the Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		FilesAnalyzed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_analyzed_total",
			Help:      "Uploaded files analyzed, by file type and outcome.",
		}, []string{"file_type", "outcome"}),
		AnalyzeSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analyze_duration_seconds",
			Help:      "Time spent extracting and analyzing a file.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"file_type"}),
		RowsPrepared: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_prepared_total",
			Help:      "Prepared rows, by import type and validity.",
		}, []string{"import_type", "validity"}),
		ItemsImported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Import execution outcomes per item.",
		}, []string{"import_type", "outcome"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Import sessions currently held in memory.",
		}),
	}
	reg.MustRegister(m.FilesAnalyzed, m.AnalyzeSeconds, m.RowsPrepared, m.ItemsImported, m.ActiveSessions)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveAnalysis records one analyzed file.
func (m *Metrics) ObserveAnalysis(fileType string, took time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.FilesAnalyzed.WithLabelValues(fileType, outcome).Inc()
	m.AnalyzeSeconds.WithLabelValues(fileType).Observe(took.Seconds())
}

// ObservePrepared records prepared row counts.
func (m *Metrics) ObservePrepared(importType string, valid, invalid int) {
	if m == nil {
		return
	}
	m.RowsPrepared.WithLabelValues(importType, "valid").Add(float64(valid))
	m.RowsPrepared.WithLabelValues(importType, "invalid").Add(float64(invalid))
}

// ObserveImport records execution outcomes.
func (m *Metrics) ObserveImport(importType string, imported, failed, skipped int) {
	if m == nil {
		return
	}
	m.ItemsImported.WithLabelValues(importType, "imported").Add(float64(imported))
	m.ItemsImported.WithLabelValues(importType, "failed").Add(float64(failed))
	m.ItemsImported.WithLabelValues(importType, "skipped").Add(float64(skipped))
}

// SetActiveSessions reports the session store size.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}
