// Package config loads the proxy's own configuration: flags are parsed
// first, each falling back to its APP_* environment mirror, then to a
// built-in default. Processor definitions are the only YAML this module
// reads; the proxy's own settings are flags/env only, no config file.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the fully resolved proxy configuration.
type Config struct {
	Host    string
	Port    int
	WebHost string
	WebPort int

	// Verbosity is one of "trace", "debug", "info", "warn".
	Verbosity string

	// IdentityServer is the base URI of the identity endpoint consulted by
	// the reference Authenticator. Empty disables authentication entirely.
	IdentityServer string

	// CollectorServer is the base URI of the document collection endpoint.
	// Empty disables the CollectorSink.
	CollectorServer string

	// ProcessorPath is a file or directory of Processor YAML definitions.
	ProcessorPath string

	MaxBodyBytes         int64
	RequestTimeout       time.Duration
	TunnelDialTimeout    time.Duration
	ShutdownDrainTimeout time.Duration
	CollectorQueueSize   int

	MetricsEnabled  bool
	TracingEnabled  bool
	TracingEndpoint string
}

const (
	defaultHost    = "0.0.0.0"
	defaultPort    = 8888
	defaultWebHost = "0.0.0.0"
	defaultWebPort = 9090

	defaultVerbosity = "info"

	defaultMaxBodyBytes         = 32 << 20
	defaultRequestTimeout       = 30 * time.Second
	defaultTunnelDialTimeout    = 10 * time.Second
	defaultShutdownDrainTimeout = 5 * time.Second
	defaultCollectorQueueSize   = 256

	defaultTracingEndpoint = "localhost:4317"
)

// Load parses args (normally os.Args[1:]) against the flag set fs, falling
// back to APP_* environment variables and then to built-in defaults. fs is
// taken as a parameter so callers (and tests) can supply flag.NewFlagSet
// instead of reaching for the global flag.CommandLine.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}

	host := fs.String("host", envOr("APP_HOST", defaultHost), "address the proxy listens on")
	port := fs.Int("port", envOrInt("APP_PORT", defaultPort), "port the proxy listens on")
	webHost := fs.String("web-host", envOr("APP_WEB_HOST", defaultWebHost), "address the health/metrics server listens on")
	webPort := fs.Int("web-port", envOrInt("APP_WEB_PORT", defaultWebPort), "port the health/metrics server listens on")
	verbosity := fs.String("verbosity", envOr("APP_VERBOSITY", defaultVerbosity), "log level: trace, debug, info, warn")
	identityServer := fs.String("server", envOr("APP_SERVER", ""), "base URI of the identity endpoint; empty disables authentication")
	collectorServer := fs.String("collector", envOr("APP_COLLECTOR", ""), "base URI of the document collection endpoint; empty disables the collector")
	processorPath := fs.String("processor", envOr("APP_PROCESSOR", ""), "file or directory of processor YAML definitions")

	maxBodyBytes := fs.Int64("max-body-bytes", envOrInt64("APP_MAX_BODY_BYTES", defaultMaxBodyBytes), "maximum buffered request/response body size in bytes")
	requestTimeout := fs.Duration("request-timeout", envOrDuration("APP_REQUEST_TIMEOUT", defaultRequestTimeout), "upstream round-trip timeout for forwarded requests")
	tunnelDialTimeout := fs.Duration("tunnel-dial-timeout", envOrDuration("APP_TUNNEL_DIAL_TIMEOUT", defaultTunnelDialTimeout), "dial timeout for CONNECT tunnel targets")
	shutdownDrainTimeout := fs.Duration("shutdown-drain-timeout", envOrDuration("APP_SHUTDOWN_DRAIN_TIMEOUT", defaultShutdownDrainTimeout), "how long to drain the collector queue on shutdown")
	collectorQueueSize := fs.Int("collector-queue-size", envOrInt("APP_COLLECTOR_QUEUE_SIZE", defaultCollectorQueueSize), "bounded size of the collector's upload queue")

	metricsEnabled := fs.Bool("metrics", envOrBool("APP_METRICS_ENABLED", true), "expose Prometheus metrics on the health/metrics server")
	tracingEnabled := fs.Bool("tracing", envOrBool("APP_TRACING_ENABLED", false), "enable OpenTelemetry tracing")
	tracingEndpoint := fs.String("tracing-endpoint", envOr("APP_TRACING_ENDPOINT", defaultTracingEndpoint), "OTLP gRPC endpoint")

	if err := fs.Parse(args); err != nil {
		return nil, &LoadError{err}
	}

	if *port < 0 || *port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", *port)
	}
	if *webPort < 0 || *webPort > 65535 {
		return nil, fmt.Errorf("invalid web-port: %d", *webPort)
	}
	switch *verbosity {
	case "trace", "debug", "info", "warn":
	default:
		return nil, fmt.Errorf("invalid verbosity: %q", *verbosity)
	}

	cfg.Host = *host
	cfg.Port = *port
	cfg.WebHost = *webHost
	cfg.WebPort = *webPort
	cfg.Verbosity = *verbosity
	cfg.IdentityServer = *identityServer
	cfg.CollectorServer = *collectorServer
	cfg.ProcessorPath = *processorPath
	cfg.MaxBodyBytes = *maxBodyBytes
	cfg.RequestTimeout = *requestTimeout
	cfg.TunnelDialTimeout = *tunnelDialTimeout
	cfg.ShutdownDrainTimeout = *shutdownDrainTimeout
	cfg.CollectorQueueSize = *collectorQueueSize
	cfg.MetricsEnabled = *metricsEnabled
	cfg.TracingEnabled = *tracingEnabled
	cfg.TracingEndpoint = *tracingEndpoint

	return cfg, nil
}

// LoadError wraps a flag-parsing failure. config has no project imports
// (mirroring the talon package being the dependency root), so it cannot
// return a *talon.ConfigError directly; cmd/talon maps this to one.
type LoadError struct{ Err error }

func (e *LoadError) Error() string { return "parse flags: " + e.Err.Error() }
func (e *LoadError) Unwrap() error { return e.Err }

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envOrInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envOrDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
