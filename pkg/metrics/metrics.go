// Package metrics exposes decode and repository counters in Prometheus format
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for one application instance. Each instance
// has its own registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	// Decodes counts finished decodes by result ("ok" or the format error kind)
	Decodes *prometheus.CounterVec

	// DecodeWarnings counts non-fatal findings such as payload size mismatches
	DecodeWarnings prometheus.Counter

	// DecodeSeconds observes wall time per file
	DecodeSeconds prometheus.Histogram

	// DecodedBytes sums the decompressed size of every decoded file
	DecodedBytes prometheus.Counter

	// Volumes is the number of volumes currently held by the repository
	Volumes prometheus.Gauge

	// Mappings is the number of mapping records currently held
	Mappings prometheus.Gauge
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Decodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "niftiview",
			Name:      "decodes_total",
			Help:      "Number of NIfTI decodes by result.",
		}, []string{"result"}),
		DecodeWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "niftiview",
			Name:      "decode_warnings_total",
			Help:      "Number of non-fatal decode warnings.",
		}),
		DecodeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "niftiview",
			Name:      "decode_duration_seconds",
			Help:      "Time spent reading and decoding one file.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		DecodedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "niftiview",
			Name:      "decoded_bytes_total",
			Help:      "Voxel payload bytes decoded.",
		}),
		Volumes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "niftiview",
			Name:      "volumes",
			Help:      "Volumes held by the repository.",
		}),
		Mappings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "niftiview",
			Name:      "mappings",
			Help:      "Mapping records held by the repository.",
		}),
	}

	m.registry.MustRegister(m.Decodes, m.DecodeWarnings, m.DecodeSeconds, m.DecodedBytes, m.Volumes, m.Mappings)
	return m
}

// Registry returns the registry all collectors are registered with
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
