package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewPedanticRegistry()
	m := NewMetrics(reg)

	if m.RequestsTotal == nil {
		t.Error("RequestsTotal is nil")
	}
	if m.RequestDuration == nil {
		t.Error("RequestDuration is nil")
	}
	if m.ActiveRequests == nil {
		t.Error("ActiveRequests is nil")
	}
	if m.FlowsTotal == nil {
		t.Error("FlowsTotal is nil")
	}
	if m.AuthRejectsTotal == nil {
		t.Error("AuthRejectsTotal is nil")
	}
	if m.ForwardRequestsTotal == nil {
		t.Error("ForwardRequestsTotal is nil")
	}
	if m.ForwardDuration == nil {
		t.Error("ForwardDuration is nil")
	}
	if m.TunnelActive == nil {
		t.Error("TunnelActive is nil")
	}
	if m.TunnelBytesTotal == nil {
		t.Error("TunnelBytesTotal is nil")
	}
	if m.ExtractorMatchesTotal == nil {
		t.Error("ExtractorMatchesTotal is nil")
	}
	if m.CollectorUploadsTotal == nil {
		t.Error("CollectorUploadsTotal is nil")
	}
	if m.CollectorQueueDepth == nil {
		t.Error("CollectorQueueDepth is nil")
	}

	// Verify metrics can be gathered without error.
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected at least one metric family")
	}
}

func TestNewMetricsIncrement(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewPedanticRegistry()
	m := NewMetrics(reg)

	// Increment counters and observe histograms to verify they work.
	m.RequestsTotal.WithLabelValues("POST", "/v1/chat/completions", "200").Inc()
	m.FlowsTotal.Inc()
	m.TunnelActive.Inc()
	m.ActiveRequests.Set(5)
	m.RequestDuration.WithLabelValues("POST", "/v1/chat/completions").Observe(0.123)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather after increment: %v", err)
	}

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	want := []string{
		"talon_admin_requests_total",
		"talon_flows_total",
		"talon_tunnel_active",
		"talon_admin_active_requests",
		"talon_admin_request_duration_seconds",
	}
	for _, name := range want {
		if !names[name] {
			t.Errorf("missing metric %q in gathered families", name)
		}
	}
}

// SetupTracing is not unit-tested because it requires a gRPC connection
// to an OTLP collector, which is integration-test territory.
