package talon

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the AuthError taxonomy. Authenticators and the
// AuthPipeline return these (or the typed variants below) to classify a
// rejection; StatusFor maps any of them to 407.
var (
	ErrMissingHeader    = errors.New("proxy-authorization header missing")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrUnknownAuth      = errors.New("unknown authentication error")
)

// InvalidFormatError reports a Proxy-Authorization value that did not split
// into exactly two whitespace-separated tokens.
type InvalidFormatError struct{ N int }

func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid proxy-authorization format: got %d token(s), want 2", e.N)
}

// InvalidSchemeError reports an Authenticator rejecting a credentials scheme
// it does not support (e.g. anything but "Bearer" for the reference
// identity-endpoint Authenticator).
type InvalidSchemeError struct{ Got, Expect string }

func (e *InvalidSchemeError) Error() string {
	return fmt.Sprintf("invalid auth scheme: got %q, want %q", e.Got, e.Expect)
}

// ConfigError reports a fatal startup-time misconfiguration: an invalid
// regex, malformed processor YAML, or a bad socket address.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return "config error: " + e.Msg + ": " + e.Err.Error()
	}
	return "config error: " + e.Msg
}
func (e *ConfigError) Unwrap() error { return e.Err }

// TransportError reports the upstream being unreachable or the connection
// breaking mid-flight; it maps to 502 Bad Gateway.
type TransportError struct {
	Msg string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return "transport error: " + e.Msg + ": " + e.Err.Error()
	}
	return "transport error: " + e.Msg
}
func (e *TransportError) Unwrap() error { return e.Err }

// HandlerError reports a handler-internal fault. It is always logged and
// swallowed; it never reaches a client-visible response directly.
type HandlerError struct {
	Msg string
	Err error
}

func (e *HandlerError) Error() string {
	if e.Err != nil {
		return "handler error: " + e.Msg + ": " + e.Err.Error()
	}
	return "handler error: " + e.Msg
}
func (e *HandlerError) Unwrap() error { return e.Err }

// TunnelError reports a CONNECT target that could not be reached, or a
// mid-tunnel I/O failure.
type TunnelError struct {
	Msg string
	Err error
}

func (e *TunnelError) Error() string {
	if e.Err != nil {
		return "tunnel error: " + e.Msg + ": " + e.Err.Error()
	}
	return "tunnel error: " + e.Msg
}
func (e *TunnelError) Unwrap() error { return e.Err }

// CollectorError reports a failed document upload. It is logged only; it
// never affects the client-visible response.
type CollectorError struct {
	Msg string
	Err error
}

func (e *CollectorError) Error() string {
	if e.Err != nil {
		return "collector error: " + e.Msg + ": " + e.Err.Error()
	}
	return "collector error: " + e.Msg
}
func (e *CollectorError) Unwrap() error { return e.Err }

// StatusFor maps an error from the data path to the HTTP status that should
// be returned to the client.
func StatusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch {
	case errors.Is(err, ErrMissingHeader),
		errors.Is(err, ErrNotAuthenticated),
		errors.Is(err, ErrUnknownAuth):
		return http.StatusProxyAuthRequired
	}
	var invalidFormat *InvalidFormatError
	if errors.As(err, &invalidFormat) {
		return http.StatusProxyAuthRequired
	}
	var invalidScheme *InvalidSchemeError
	if errors.As(err, &invalidScheme) {
		return http.StatusProxyAuthRequired
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return http.StatusBadGateway
	}
	var tunnelErr *TunnelError
	if errors.As(err, &tunnelErr) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
