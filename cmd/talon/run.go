package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/dnscache"
	"go.opentelemetry.io/otel/trace"

	talon "github.com/talonproxy/talon/internal"
	"github.com/talonproxy/talon/internal/collector"
	"github.com/talonproxy/talon/internal/config"
	"github.com/talonproxy/talon/internal/extractor"
	"github.com/talonproxy/talon/internal/identityauth"
	"github.com/talonproxy/talon/internal/proxy"
	"github.com/talonproxy/talon/internal/server"
	"github.com/talonproxy/talon/internal/telemetry"
	"github.com/talonproxy/talon/internal/worker"
)

func run(fs *flag.FlagSet, args []string, showVersion *bool) error {
	cfg, err := config.Load(fs, args)
	if err != nil {
		return &talon.ConfigError{Msg: "load configuration", Err: err}
	}

	if *showVersion {
		fmt.Println("talon", version)
		os.Exit(0)
	}

	setupLogging(cfg.Verbosity)
	slog.Info("starting talon", "version", version, "host", cfg.Host, "port", cfg.Port)

	// Shared DNS cache for both the forward path's upstream transport and
	// the tunnel path's dialer.
	dnsResolver := &dnscache.Resolver{}
	refreshCtx, stopRefresh := context.WithCancel(context.Background())
	defer stopRefresh()
	go func() {
		t := time.NewTicker(5 * time.Minute)
		defer t.Stop()
		for {
			select {
			case <-refreshCtx.Done():
				return
			case <-t.C:
				dnsResolver.Refresh(true)
			}
		}
	}()

	upstream := &http.Client{
		Transport: &http.Transport{
			DialContext: dialContextFor(dnsResolver),
		},
	}

	var authenticators []talon.Authenticator
	if cfg.IdentityServer != "" {
		auth, err := identityauth.New(cfg.IdentityServer, nil)
		if err != nil {
			return &talon.ConfigError{Msg: "build identity authenticator", Err: err}
		}
		authenticators = append(authenticators, auth)
		slog.Info("authentication enabled", "server", cfg.IdentityServer)
	} else {
		slog.Warn("no identity server configured, every request is unauthenticated")
	}

	processors, err := loadProcessors(cfg.ProcessorPath)
	if err != nil {
		return &talon.ConfigError{Msg: "load processors", Err: err}
	}
	slog.Info("processors loaded", "count", len(processors))

	// Prometheus metrics.
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promRegistry.MustRegister(collectors.NewGoCollector())
	metrics := telemetry.NewMetrics(promRegistry)
	var metricsHandler http.Handler
	if cfg.MetricsEnabled {
		metricsHandler = promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})
	}

	// OpenTelemetry tracing.
	var tracer trace.Tracer
	var tracingShutdown func(context.Context) error
	if cfg.TracingEnabled {
		shutdown, err := telemetry.SetupTracing(context.Background(), cfg.TracingEndpoint, 0.1,
			telemetry.ServiceInfo{Name: "talon", Version: version})
		if err != nil {
			slog.Warn("tracing setup failed, continuing without tracing", "error", err)
		} else {
			tracingShutdown = shutdown
			tracer = telemetry.Tracer("talon/proxy")
			slog.Info("opentelemetry tracing enabled", "endpoint", cfg.TracingEndpoint)
		}
	}

	extractorEngine := extractor.New(processors, slog.Default(), metrics)

	var handlers []talon.Handler
	var collectorWorker *collector.Worker
	var sink *collector.Sink
	if cfg.CollectorServer != "" {
		sink = collector.New(cfg.CollectorServer, nil, cfg.CollectorQueueSize, extractorEngine, slog.Default(), metrics)
		handlers = append(handlers, sink)
		collectorWorker = collector.NewWorker(sink, cfg.ShutdownDrainTimeout)
		slog.Info("collector enabled", "server", cfg.CollectorServer, "queue_size", cfg.CollectorQueueSize)
	} else {
		slog.Info("no collector server configured, extracted documents are not uploaded")
	}

	// shuttingDown flips true once the shutdown sequence starts, so /readyz
	// fails fast instead of racing the listener's own Shutdown accept-refusal.
	var shuttingDown atomic.Bool
	readyCheck := func(context.Context) error {
		if shuttingDown.Load() {
			return errors.New("shutting down")
		}
		if sink != nil && sink.Saturated() {
			return errors.New("collector upload queue saturated")
		}
		return nil
	}

	var workers []worker.Worker
	if collectorWorker != nil {
		workers = append(workers, collectorWorker)
	}
	runner := worker.NewRunner(workers...)

	p := proxy.New(proxy.Options{
		Authenticators:    authenticators,
		Handlers:          handlers,
		Upstream:          upstream,
		DNSResolver:       dnsResolver,
		MaxBodyBytes:      cfg.MaxBodyBytes,
		RequestTimeout:    cfg.RequestTimeout,
		TunnelDialTimeout: cfg.TunnelDialTimeout,
		Logger:            slog.Default(),
		Metrics:           metrics,
		Tracer:            tracer,
	})

	proxyAddr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	proxySrv := &http.Server{
		Addr:              proxyAddr,
		Handler:           p,
		ReadHeaderTimeout: 5 * time.Second,
	}

	webAddr := fmt.Sprintf("%s:%d", cfg.WebHost, cfg.WebPort)
	webHandler := server.New(server.Deps{
		Metrics:        metrics,
		MetricsHandler: metricsHandler,
		Tracer:         tracer,
		ReadyCheck:     readyCheck,
	})
	webSrv := &http.Server{
		Addr:              webAddr,
		Handler:           webHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan error, 1)
	go func() {
		workerDone <- runner.Run(workerCtx)
	}()

	errCh := make(chan error, 2)
	go func() {
		if err := proxySrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("proxy listener: %w", err)
		}
	}()
	go func() {
		if err := webSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("web listener: %w", err)
		}
	}()

	slog.Info("talon ready", "proxy_addr", proxyAddr, "web_addr", webAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		workerCancel()
		return err
	}

	shuttingDown.Store(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownDrainTimeout+10*time.Second)
	defer cancel()

	if err := proxySrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("proxy shutdown error", "error", err)
	}
	if err := webSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("web shutdown error", "error", err)
	}

	workerCancel()
	if err := <-workerDone; err != nil {
		slog.Error("worker shutdown error", "error", err)
	}

	if tracingShutdown != nil {
		if err := tracingShutdown(shutdownCtx); err != nil {
			slog.Error("tracing shutdown error", "error", err)
		}
	}

	slog.Info("talon stopped")
	return nil
}

// dialContextFor returns a DialContext that resolves addr's host through
// resolver before dialing, giving the upstream transport a DNS-cached base
// dialer instead of relying on net's per-dial resolution.
func dialContextFor(resolver *dnscache.Resolver) func(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return dialer.DialContext(ctx, network, addr)
		}
		ips, err := resolver.LookupHost(ctx, host)
		if err != nil || len(ips) == 0 {
			return dialer.DialContext(ctx, network, addr)
		}
		return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0], port))
	}
}

// setupLogging installs a slog handler at the level named by verbosity.
// "trace" has no stdlib equivalent and is mapped to slog.LevelDebug-4 so
// --verbosity trace still shows strictly more than debug.
func setupLogging(verbosity string) {
	var level slog.Level
	switch verbosity {
	case "trace":
		level = slog.LevelDebug - 4
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	default:
		level = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// loadProcessors discovers Processor YAML definitions at path: a single
// file, a directory (every *.yaml/*.yml entry, non-recursive), or an empty
// path (no processors, the extractor contributes nothing).
func loadProcessors(path string) ([]*extractor.Processor, error) {
	if path == "" {
		return nil, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return extractor.LoadFiles([]string{path})
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		paths = append(paths, filepath.Join(path, e.Name()))
	}
	return extractor.LoadFiles(paths)
}
