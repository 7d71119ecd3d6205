package config

import (
	"flag"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()
	fs := flag.NewFlagSet("talon", flag.ContinueOnError)
	cfg, err := Load(fs, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Host != defaultHost || cfg.Port != defaultPort {
		t.Errorf("host/port = %s:%d, want %s:%d", cfg.Host, cfg.Port, defaultHost, defaultPort)
	}
	if cfg.Verbosity != "info" {
		t.Errorf("verbosity = %q, want info", cfg.Verbosity)
	}
	if cfg.IdentityServer != "" {
		t.Errorf("identity server = %q, want empty by default", cfg.IdentityServer)
	}
	if cfg.MaxBodyBytes != defaultMaxBodyBytes {
		t.Errorf("max body bytes = %d, want %d", cfg.MaxBodyBytes, defaultMaxBodyBytes)
	}
}

func TestLoad_FlagsOverrideDefaults(t *testing.T) {
	t.Parallel()
	fs := flag.NewFlagSet("talon", flag.ContinueOnError)
	cfg, err := Load(fs, []string{
		"--host", "127.0.0.1",
		"--port", "9999",
		"--server", "https://identity.example.com",
		"--request-timeout", "5s",
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Host != "127.0.0.1" || cfg.Port != 9999 {
		t.Errorf("host/port = %s:%d, want 127.0.0.1:9999", cfg.Host, cfg.Port)
	}
	if cfg.IdentityServer != "https://identity.example.com" {
		t.Errorf("identity server = %q", cfg.IdentityServer)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("request timeout = %s, want 5s", cfg.RequestTimeout)
	}
}

func TestLoad_EnvironmentFallback(t *testing.T) {
	t.Setenv("APP_HOST", "192.168.1.1")
	t.Setenv("APP_PORT", "1234")
	t.Setenv("APP_VERBOSITY", "debug")

	fs := flag.NewFlagSet("talon", flag.ContinueOnError)
	cfg, err := Load(fs, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Host != "192.168.1.1" {
		t.Errorf("host = %q, want env override", cfg.Host)
	}
	if cfg.Port != 1234 {
		t.Errorf("port = %d, want env override", cfg.Port)
	}
	if cfg.Verbosity != "debug" {
		t.Errorf("verbosity = %q, want debug", cfg.Verbosity)
	}
}

func TestLoad_FlagsBeatEnvironment(t *testing.T) {
	t.Setenv("APP_PORT", "1234")

	fs := flag.NewFlagSet("talon", flag.ContinueOnError)
	cfg, err := Load(fs, []string{"--port", "4321"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 4321 {
		t.Errorf("port = %d, want 4321 (flag beats env)", cfg.Port)
	}
}

func TestLoad_InvalidVerbosity(t *testing.T) {
	t.Parallel()
	fs := flag.NewFlagSet("talon", flag.ContinueOnError)
	if _, err := Load(fs, []string{"--verbosity", "chatty"}); err == nil {
		t.Fatal("Load with invalid verbosity: want error, got nil")
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Parallel()
	fs := flag.NewFlagSet("talon", flag.ContinueOnError)
	if _, err := Load(fs, []string{"--port", "99999"}); err == nil {
		t.Fatal("Load with out-of-range port: want error, got nil")
	}
}
