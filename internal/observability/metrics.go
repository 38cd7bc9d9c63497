// Package observability provides metrics and monitoring capabilities for campusfit.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campusfit/campusfit-go/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry  *prometheus.Registry
	Ingest    *metrics.IngestMetrics
	Tracker   *metrics.TrackerMetrics
	Review    *metrics.ReviewMetrics
	Datastore *metrics.DatastoreMetrics
	Alerts    *metrics.AlertMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric collectors.
// It returns an error if any metric collector fails to initialize.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register Go collector: %w", err)
	}

	ingestMetrics, err := metrics.NewIngestMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest metrics: %w", err)
	}

	trackerMetrics, err := metrics.NewTrackerMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracker metrics: %w", err)
	}

	reviewMetrics, err := metrics.NewReviewMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create review metrics: %w", err)
	}

	datastoreMetrics, err := metrics.NewDatastoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create datastore metrics: %w", err)
	}

	alertMetrics, err := metrics.NewAlertMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create alert metrics: %w", err)
	}

	return &Metrics{
		registry:  registry,
		Ingest:    ingestMetrics,
		Tracker:   trackerMetrics,
		Review:    reviewMetrics,
		Datastore: datastoreMetrics,
		Alerts:    alertMetrics,
	}, nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the exposition handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}
