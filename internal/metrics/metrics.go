// Package metrics provides Prometheus metrics for the newsroom API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "newsroom"

// Image pipeline stages reported by ObserveImageFailure.
const (
	StageRead   = "read"
	StageDecode = "decode"
	StageEncode = "encode"
	StageStore  = "store"
)

// Collector owns a private registry so tests and multiple servers do not collide.
type Collector struct {
	registry       *prometheus.Registry
	adminChecks    *prometheus.CounterVec
	imagesIngested prometheus.Counter
	imageFailures  *prometheus.CounterVec
	ingestDuration prometheus.Histogram
}

// NewCollector registers the newsroom metrics along with Go runtime collectors.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		adminChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "admin_checks_total",
				Help:      "Admin gate decisions by outcome",
			},
			[]string{"outcome"},
		),
		imagesIngested: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "images_ingested_total",
				Help:      "Images stored by the ingestion pipeline",
			},
		),
		imageFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "image_failures_total",
				Help:      "Image ingestion and retrieval failures by stage",
			},
			[]string{"stage"},
		),
		ingestDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "image_ingest_duration_seconds",
				Help:      "Time spent decoding, hashing, thumbnailing and storing an upload",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
}

// ObserveAdminCheck counts one admin gate decision.
func (c *Collector) ObserveAdminCheck(outcome string) {
	c.adminChecks.WithLabelValues(outcome).Inc()
}

// ObserveImageIngested records a stored upload and how long it took.
func (c *Collector) ObserveImageIngested(elapsed time.Duration) {
	c.imagesIngested.Inc()
	c.ingestDuration.Observe(elapsed.Seconds())
}

// ObserveImageFailure counts a pipeline failure at the given stage.
func (c *Collector) ObserveImageFailure(stage string) {
	c.imageFailures.WithLabelValues(stage).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
