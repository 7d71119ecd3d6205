package proxy

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"

	"golang.org/x/sync/errgroup"

	talon "github.com/talonproxy/talon/internal"
)

// handleTunnel implements TunnelPath: dial the CONNECT authority,
// acknowledge with 200, then splice the two sockets until either side closes.
// Handlers are never invoked inside a tunnel -- the payload is opaque.
func (p *Proxy) handleTunnel(ctx context.Context, flow *talon.Flow, w http.ResponseWriter, r *http.Request) {
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "tunneling not supported", http.StatusInternalServerError)
		return
	}

	authority := r.URL.Host
	if authority == "" {
		authority = r.RequestURI
	}

	dialCtx, cancel := context.WithTimeout(ctx, p.tunnelDialTimeout)
	upstream, err := p.dialTunnel(dialCtx, authority)
	cancel()
	if err != nil {
		p.logger.LogAttrs(ctx, slog.LevelWarn, "tunnel dial failed",
			slog.Uint64("flow_id", flow.ID()),
			slog.String("authority", authority),
			slog.String("error", err.Error()),
		)
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	clientConn, clientBuf, err := hijacker.Hijack()
	if err != nil {
		upstream.Close()
		p.logger.LogAttrs(ctx, slog.LevelWarn, "tunnel hijack failed",
			slog.Uint64("flow_id", flow.ID()),
			slog.String("error", err.Error()),
		)
		return
	}

	if _, err := clientBuf.WriteString("HTTP/1.1 200 Connection Established\r\n\r\n"); err != nil {
		clientConn.Close()
		upstream.Close()
		return
	}
	if err := clientBuf.Flush(); err != nil {
		clientConn.Close()
		upstream.Close()
		return
	}

	if p.metrics != nil {
		p.metrics.TunnelActive.Inc()
		defer p.metrics.TunnelActive.Dec()
	}

	p.splice(ctx, flow, clientConn, clientBuf.Reader, upstream)
}

func (p *Proxy) dialTunnel(ctx context.Context, authority string) (net.Conn, error) {
	if p.dnsResolver != nil {
		if host, port, err := net.SplitHostPort(authority); err == nil {
			if ips, lerr := p.dnsResolver.LookupHost(ctx, host); lerr == nil && len(ips) > 0 {
				authority = net.JoinHostPort(ips[0], port)
			}
		}
	}
	return p.dialer.DialContext(ctx, "tcp", authority)
}

// splice copies bytes in both directions until either side reaches EOF or
// errors, then tears down both halves. clientReader is the buffered reader
// left over from hijacking (it may already hold bytes the client sent right
// after CONNECT).
func (p *Proxy) splice(ctx context.Context, flow *talon.Flow, client net.Conn, clientReader io.Reader, upstream net.Conn) {
	var g errgroup.Group
	g.Go(func() error {
		defer upstream.Close()
		n, err := io.Copy(upstream, clientReader)
		if p.metrics != nil {
			p.metrics.TunnelBytesTotal.WithLabelValues("client_to_upstream").Add(float64(n))
		}
		return err
	})
	g.Go(func() error {
		defer client.Close()
		n, err := io.Copy(client, upstream)
		if p.metrics != nil {
			p.metrics.TunnelBytesTotal.WithLabelValues("upstream_to_client").Add(float64(n))
		}
		return err
	})
	if err := g.Wait(); err != nil {
		p.logger.LogAttrs(ctx, slog.LevelDebug, "tunnel closed",
			slog.Uint64("flow_id", flow.ID()),
			slog.String("error", err.Error()),
		)
	}
}
