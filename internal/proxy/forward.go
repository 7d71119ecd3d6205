package proxy

import (
	"context"
	"log/slog"
	"net/http"

	talon "github.com/talonproxy/talon/internal"
)

// handleForward implements ForwardPath and the handler pipeline: it
// buffers the inbound request, runs the request-side handler chain, either
// dispatches upstream or short-circuits on a Respond directive, runs the
// response-side handler chain against whichever response resulted, and
// writes the final response to the client.
func (p *Proxy) handleForward(ctx context.Context, flow *talon.Flow, w http.ResponseWriter, r *http.Request) {
	req, err := talon.FromHTTPRequest(r, p.maxBodyBytes)
	if err != nil {
		p.writeSynthetic(w, badGateway(nil, err))
		return
	}
	stripHopByHop(req.Headers)

	var respondWith *talon.Response
	for _, h := range p.handlers {
		fwd, herr := h.OnRequest(ctx, flow, req)
		if herr != nil {
			p.logHandlerError(ctx, flow, "request", herr)
			continue
		}
		switch fwd.Kind {
		case talon.ForwardModify:
			if fwd.Request != nil {
				req = fwd.Request
			}
		case talon.ForwardRespond:
			respondWith = fwd.Response
		}
		if respondWith != nil {
			break
		}
	}

	var resp *talon.Response
	if respondWith != nil {
		resp = respondWith
	} else {
		resp, err = p.roundTrip(ctx, req)
		if err != nil {
			p.logger.LogAttrs(ctx, slog.LevelWarn, "upstream request failed",
				slog.Uint64("flow_id", flow.ID()),
				slog.String("error", err.Error()),
			)
			resp = badGateway(req, err)
		}
	}

	for _, h := range p.handlers {
		rev, herr := h.OnResponse(ctx, flow, resp)
		if herr != nil {
			p.logHandlerError(ctx, flow, "response", herr)
			continue
		}
		if rev.Kind == talon.ReverseModify && rev.Response != nil {
			resp = rev.Response
		}
	}

	stripHopByHop(resp.Headers)
	if p.metrics != nil {
		p.metrics.ForwardRequestsTotal.WithLabelValues(req.Method).Inc()
	}
	p.writeSynthetic(w, resp)
}

func (p *Proxy) logHandlerError(ctx context.Context, flow *talon.Flow, side string, err error) {
	p.logger.LogAttrs(ctx, slog.LevelWarn, "handler error",
		slog.Uint64("flow_id", flow.ID()),
		slog.String("side", side),
		slog.String("error", err.Error()),
	)
}

// roundTrip dispatches req to the origin server with a finite deadline and
// returns the drained, owned Response.
func (p *Proxy) roundTrip(ctx context.Context, req *talon.Request) (*talon.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, p.requestTimeout)
	defer cancel()

	outReq, err := talon.NewUpstreamHTTPRequest(req)
	if err != nil {
		return nil, &talon.TransportError{Msg: "build upstream request", Err: err}
	}
	outReq = outReq.WithContext(ctx)

	httpResp, err := p.upstream.Do(outReq)
	if err != nil {
		return nil, &talon.TransportError{Msg: "upstream request failed", Err: err}
	}
	defer httpResp.Body.Close()

	resp, err := talon.ResponseFromHTTP(httpResp, req, p.maxBodyBytes)
	if err != nil {
		return nil, &talon.TransportError{Msg: "drain upstream response", Err: err}
	}
	return resp, nil
}

// badGateway builds the synthetic 502 response fed through the response
// chain when the upstream transport fails.
func badGateway(req *talon.Request, err error) *talon.Response {
	return talon.NewResponseBuilder().
		Status(http.StatusBadGateway).
		Version("HTTP/1.1").
		Header("Content-Type", "text/plain; charset=utf-8").
		Payload([]byte("bad gateway: " + err.Error())).
		ForRequest(req).
		Build()
}

// writeSynthetic copies an owned Response onto the real http.ResponseWriter.
func (p *Proxy) writeSynthetic(w http.ResponseWriter, resp *talon.Response) {
	dst := w.Header()
	for k, vals := range resp.Headers.AsHTTPHeader() {
		dst[k] = vals
	}
	w.WriteHeader(resp.Status)
	if len(resp.Payload) > 0 {
		w.Write(resp.Payload)
	}
}
