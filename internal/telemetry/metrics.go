// Package telemetry provides observability primitives for the proxy.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the proxy engine and for the
// auxiliary health/metrics server's own request handling.
type Metrics struct {
	// Admin/health server request metrics (internal/server).
	RequestsTotal   *prometheus.CounterVec // labels: method, path, status
	RequestDuration *prometheus.HistogramVec // labels: method, path
	ActiveRequests  prometheus.Gauge

	// Proxy engine metrics (internal/proxy, internal/extractor, internal/collector).
	FlowsTotal            prometheus.Counter
	AuthRejectsTotal      *prometheus.CounterVec // labels: reason
	ForwardRequestsTotal  *prometheus.CounterVec // labels: method
	ForwardDuration       prometheus.Histogram
	TunnelActive          prometheus.Gauge
	TunnelBytesTotal      *prometheus.CounterVec // labels: direction
	ExtractorMatchesTotal *prometheus.CounterVec // labels: processor
	CollectorUploadsTotal *prometheus.CounterVec // labels: outcome
	CollectorQueueDepth   prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "talon",
			Name:      "admin_requests_total",
			Help:      "Total number of requests to the health/metrics server.",
		}, []string{"method", "path", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "talon",
			Name:      "admin_request_duration_seconds",
			Help:      "Health/metrics server request duration in seconds.",
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "talon",
			Name:      "admin_active_requests",
			Help:      "Number of currently active requests on the health/metrics server.",
		}),

		FlowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "talon",
			Name:      "flows_total",
			Help:      "Total number of proxy flows created.",
		}),

		AuthRejectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "talon",
			Name:      "auth_rejects_total",
			Help:      "Total number of authentication rejections.",
		}, []string{"reason"}),

		ForwardRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "talon",
			Name:      "forward_requests_total",
			Help:      "Total number of forwarded (non-CONNECT) requests.",
		}, []string{"method"}),

		ForwardDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "talon",
			Name:      "forward_duration_seconds",
			Help:      "Upstream round-trip duration for forwarded requests.",
		}),

		TunnelActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "talon",
			Name:      "tunnel_active",
			Help:      "Number of currently open CONNECT tunnels.",
		}),

		TunnelBytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "talon",
			Name:      "tunnel_bytes_total",
			Help:      "Total bytes spliced through CONNECT tunnels.",
		}, []string{"direction"}),

		ExtractorMatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "talon",
			Name:      "extractor_matches_total",
			Help:      "Total number of processor rule matches.",
		}, []string{"processor"}),

		CollectorUploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "talon",
			Name:      "collector_uploads_total",
			Help:      "Total collector upload attempts.",
		}, []string{"outcome"}),

		CollectorQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "talon",
			Name:      "collector_queue_depth",
			Help:      "Current depth of the collector's upload queue.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
		m.FlowsTotal,
		m.AuthRejectsTotal,
		m.ForwardRequestsTotal,
		m.ForwardDuration,
		m.TunnelActive,
		m.TunnelBytesTotal,
		m.ExtractorMatchesTotal,
		m.CollectorUploadsTotal,
		m.CollectorQueueDepth,
	)

	return m
}
