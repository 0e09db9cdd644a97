// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics exposes Prometheus counters and histograms for token
// acquisition, upstream traffic, and redirects.
//
// A nil *Collector is valid and records nothing, so components can be
// constructed without metrics in tests and one-shot CLI runs.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "patent_jump"

// Redirect modes recorded by RecordRedirect.
const (
	RedirectFresh  = "fresh"
	RedirectReused = "reused"
	RedirectStale  = "stale"
)

// Collector owns the Prometheus registry and every metric patent-jump exports.
type Collector struct {
	registry *prometheus.Registry

	acquisitions     *prometheus.CounterVec
	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	redirects        *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
}

// NewCollector creates and registers all metrics. If registry is nil a
// fresh registry is used.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		acquisitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "acquisitions_total",
				Help:      "Token acquisitions by the step that concluded them and their outcome",
			},
			[]string{"step", "outcome"},
		),
		upstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Outbound requests to the search service by kind and status code",
			},
			[]string{"kind", "code"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_request_duration_seconds",
				Help:      "Duration of outbound requests in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"kind"},
		),
		redirects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "redirects_total",
				Help:      "Redirects issued by token freshness",
			},
			[]string{"mode"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Inbound HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}

	registry.MustRegister(
		c.acquisitions,
		c.upstreamRequests,
		c.upstreamDuration,
		c.redirects,
		c.httpRequests,
	)
	return c
}

// RecordAcquisition counts one finished acquisition.
func (c *Collector) RecordAcquisition(step, outcome string) {
	if c == nil {
		return
	}
	c.acquisitions.WithLabelValues(step, outcome).Inc()
}

// RecordUpstream counts one outbound call. A status of 0 means the call
// failed before a response arrived and is recorded with code "error".
func (c *Collector) RecordUpstream(kind string, status int, d time.Duration) {
	if c == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	c.upstreamRequests.WithLabelValues(kind, code).Inc()
	c.upstreamDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordRedirect counts one redirect by mode (fresh, reused, stale).
func (c *Collector) RecordRedirect(mode string) {
	if c == nil {
		return
	}
	c.redirects.WithLabelValues(mode).Inc()
}

// RecordHTTP counts one inbound request. route is the mux pattern, not the
// raw path, to keep label cardinality bounded.
func (c *Collector) RecordHTTP(route string, status int) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
