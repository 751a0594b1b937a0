// Package metrics provides Prometheus metrics for builds and the dev server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Build outcomes used as the "status" label
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusCached  = "cached"
)

// Collector holds the Prometheus metrics of one neuron process
type Collector struct {
	BuildsTotal   *prometheus.CounterVec
	BuildDuration prometheus.Histogram
	BundleModules prometheus.Gauge
	BundleBytes   prometheus.Gauge
	ReloadClients prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates a collector on a private registry
func New() *Collector {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates a collector registered on reg
func NewWithRegistry(reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		BuildsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "neuron",
				Name:      "builds_total",
				Help:      "Total number of bundle builds by outcome",
			},
			[]string{"status"},
		),
		BuildDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "neuron",
				Name:      "build_duration_seconds",
				Help:      "Bundle build duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		BundleModules: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "neuron",
				Name:      "bundle_modules",
				Help:      "Number of modules in the last successful bundle",
			},
		),
		BundleBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "neuron",
				Name:      "bundle_bytes",
				Help:      "Size of the last successful bundle in bytes",
			},
		),
		ReloadClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "neuron",
				Name:      "reload_clients",
				Help:      "Number of connected live-reload clients",
			},
		),
		gatherer: reg,
	}
}

// RecordBuild records one finished build
func (c *Collector) RecordBuild(status string, duration time.Duration, modules, bytes int) {
	if c == nil {
		return
	}
	c.BuildsTotal.WithLabelValues(status).Inc()
	c.BuildDuration.Observe(duration.Seconds())
	if status != StatusFailure {
		c.BundleModules.Set(float64(modules))
		c.BundleBytes.Set(float64(bytes))
	}
}

// SetReloadClients updates the live-reload client gauge
func (c *Collector) SetReloadClients(n int) {
	if c == nil {
		return
	}
	c.ReloadClients.Set(float64(n))
}

// Handler serves the collector's registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
