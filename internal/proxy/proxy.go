// Package proxy implements the core engine: the Dispatcher, ForwardPath,
// TunnelPath, and the glue that turns a net/http.Server into the intercepting
// forward proxy described by the HTTP value types in the talon package.
package proxy

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/dnscache"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	talon "github.com/talonproxy/talon/internal"
	"github.com/talonproxy/talon/internal/telemetry"
)

const (
	defaultMaxBodyBytes      = 32 << 20
	defaultRequestTimeout    = 30 * time.Second
	defaultTunnelDialTimeout = 10 * time.Second
)

// Options configures a Proxy.
type Options struct {
	// Authenticators are tried, in order, by the AuthPipeline. A nil or
	// empty slice means every request passes (flow.Auth stays nil).
	Authenticators []talon.Authenticator
	// Handlers are invoked, in declaration order, on both the request and
	// response side of the forward path.
	Handlers []talon.Handler

	Upstream          *http.Client
	DNSResolver       *dnscache.Resolver
	MaxBodyBytes      int64
	RequestTimeout    time.Duration
	TunnelDialTimeout time.Duration

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
	Tracer  trace.Tracer
}

// Proxy is the shared, read-only (save for the flow id counter) engine
// object. It implements http.Handler and is meant to be wrapped directly by
// an http.Server.
type Proxy struct {
	authenticators []talon.Authenticator
	handlers       []talon.Handler

	upstream          *http.Client
	dialer            *net.Dialer
	dnsResolver       *dnscache.Resolver
	maxBodyBytes      int64
	requestTimeout    time.Duration
	tunnelDialTimeout time.Duration

	logger  *slog.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer

	idCounter atomic.Uint64
}

// New builds a Proxy from opts, applying defaults for anything left zero.
func New(opts Options) *Proxy {
	p := &Proxy{
		authenticators:    opts.Authenticators,
		handlers:          opts.Handlers,
		upstream:          opts.Upstream,
		dnsResolver:       opts.DNSResolver,
		maxBodyBytes:      opts.MaxBodyBytes,
		requestTimeout:    opts.RequestTimeout,
		tunnelDialTimeout: opts.TunnelDialTimeout,
		logger:            opts.Logger,
		metrics:           opts.Metrics,
		tracer:            opts.Tracer,
		dialer:            &net.Dialer{},
	}
	if p.upstream == nil {
		p.upstream = &http.Client{}
	}
	if p.upstream.CheckRedirect == nil {
		// Redirects are returned to the client, never followed upstream.
		c := *p.upstream
		c.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
		p.upstream = &c
	}
	if p.maxBodyBytes == 0 {
		p.maxBodyBytes = defaultMaxBodyBytes
	}
	if p.requestTimeout == 0 {
		p.requestTimeout = defaultRequestTimeout
	}
	if p.tunnelDialTimeout == 0 {
		p.tunnelDialTimeout = defaultTunnelDialTimeout
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// NextFlowID implements talon.FlowOwner: a monotonic atomic counter
// providing total order of flow creation, not of completion.
func (p *Proxy) NextFlowID() uint64 { return p.idCounter.Add(1) }

// ServeHTTP is the Listener+FlowFactory+Dispatcher entry point: it creates
// the Flow, runs the AuthPipeline, and dispatches to ForwardPath or
// TunnelPath based on the request method.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	traceID := uuid.Must(uuid.NewV7()).String()
	flow := talon.NewFlow(p, talon.ClientAddr(r.RemoteAddr), traceID)

	if p.tracer != nil {
		var span trace.Span
		ctx, span = p.tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithAttributes(
				attribute.Int64("flow.id", int64(flow.ID())),
				attribute.String("flow.trace_id", traceID),
				attribute.String("http.method", r.Method),
			),
		)
		defer span.End()
	}

	if p.metrics != nil {
		p.metrics.FlowsTotal.Inc()
	}

	if err := p.authenticate(ctx, flow, r); err != nil {
		status := talon.StatusFor(err)
		p.logger.LogAttrs(ctx, slog.LevelInfo, "auth rejected",
			slog.Uint64("flow_id", flow.ID()),
			slog.String("trace_id", traceID),
			slog.String("error", err.Error()),
			slog.Int("status", status),
		)
		if p.metrics != nil {
			p.metrics.AuthRejectsTotal.WithLabelValues(authReason(err)).Inc()
		}
		w.Header().Set("Proxy-Authenticate", "Bearer")
		w.WriteHeader(status)
		return
	}

	if r.Method == http.MethodConnect {
		p.handleTunnel(ctx, flow, w, r)
		return
	}
	p.handleForward(ctx, flow, w, r)
}

func authReason(err error) string {
	switch talon.StatusFor(err) {
	case http.StatusProxyAuthRequired:
		return "rejected"
	default:
		return "error"
	}
}
