// Package talon defines the domain types and interfaces shared by the proxy
// engine, the extractor, and the collector. This package has no project
// imports -- it is the dependency root.
package talon

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Headers is an owned, case-insensitive multi-map of header names to values,
// decoupled from any particular transport representation.
type Headers http.Header

// NewHeaders returns an empty Headers map.
func NewHeaders() Headers { return Headers{} }

// HeadersFrom copies h into an owned Headers value.
func HeadersFrom(h http.Header) Headers { return Headers(h.Clone()) }

func (h Headers) Get(key string) string       { return http.Header(h).Get(key) }
func (h Headers) Values(key string) []string  { return http.Header(h).Values(key) }
func (h Headers) Set(key, value string)       { http.Header(h).Set(key, value) }
func (h Headers) Add(key, value string)       { http.Header(h).Add(key, value) }
func (h Headers) Del(key string)              { http.Header(h).Del(key) }
func (h Headers) Clone() Headers              { return Headers(http.Header(h).Clone()) }
func (h Headers) AsHTTPHeader() http.Header    { return http.Header(h) }

// Request is an owned, immutable snapshot of an HTTP request. Handlers that
// need to change a request produce a new Request and return it via a Modify
// directive (see Forward) rather than mutating one in place.
type Request struct {
	Method  string
	URI     *url.URL
	Version string
	Headers Headers
	Payload []byte
}

// Clone returns an independent copy of r, safe to hand to a detached task.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Headers = r.Headers.Clone()
	clone.Payload = append([]byte(nil), r.Payload...)
	u := *r.URI
	clone.URI = &u
	return &clone
}

// RequestBuilder constructs a Request fluently.
type RequestBuilder struct {
	req Request
}

// NewRequestBuilder returns a builder with empty headers.
func NewRequestBuilder() *RequestBuilder {
	return &RequestBuilder{req: Request{Headers: NewHeaders()}}
}

func (b *RequestBuilder) Method(m string) *RequestBuilder   { b.req.Method = m; return b }
func (b *RequestBuilder) URI(u *url.URL) *RequestBuilder    { b.req.URI = u; return b }
func (b *RequestBuilder) Version(v string) *RequestBuilder  { b.req.Version = v; return b }
func (b *RequestBuilder) Header(k, v string) *RequestBuilder { b.req.Headers.Add(k, v); return b }
func (b *RequestBuilder) Headers(h Headers) *RequestBuilder { b.req.Headers = h; return b }
func (b *RequestBuilder) Payload(p []byte) *RequestBuilder  { b.req.Payload = p; return b }

// Build returns the constructed Request.
func (b *RequestBuilder) Build() *Request {
	r := b.req
	return &r
}

// Response is an owned, immutable snapshot of an HTTP response. It always
// carries the Request that produced it, since the ExtractorEngine matches
// on the originating request's host/path/method.
type Response struct {
	Status  int
	Version string
	Headers Headers
	Payload []byte
	Request *Request
}

// Clone returns an independent copy of resp, safe to hand to a detached task.
func (resp *Response) Clone() *Response {
	if resp == nil {
		return nil
	}
	clone := *resp
	clone.Headers = resp.Headers.Clone()
	clone.Payload = append([]byte(nil), resp.Payload...)
	clone.Request = resp.Request.Clone()
	return &clone
}

// ResponseBuilder constructs a Response fluently.
type ResponseBuilder struct {
	resp Response
}

// NewResponseBuilder returns a builder with empty headers.
func NewResponseBuilder() *ResponseBuilder {
	return &ResponseBuilder{resp: Response{Headers: NewHeaders()}}
}

func (b *ResponseBuilder) Status(s int) *ResponseBuilder       { b.resp.Status = s; return b }
func (b *ResponseBuilder) Version(v string) *ResponseBuilder   { b.resp.Version = v; return b }
func (b *ResponseBuilder) Header(k, v string) *ResponseBuilder { b.resp.Headers.Add(k, v); return b }
func (b *ResponseBuilder) Headers(h Headers) *ResponseBuilder  { b.resp.Headers = h; return b }
func (b *ResponseBuilder) Payload(p []byte) *ResponseBuilder   { b.resp.Payload = p; return b }
func (b *ResponseBuilder) ForRequest(r *Request) *ResponseBuilder {
	b.resp.Request = r
	return b
}

// Build returns the constructed Response.
func (b *ResponseBuilder) Build() *Response {
	r := b.resp
	return &r
}

// ErrBodyTooLarge is returned by FromHTTPRequest/ResponseFromHTTP when the
// body exceeds the configured MaxBodyBytes.
var ErrBodyTooLarge = fmt.Errorf("request or response body exceeds maximum size")

// FromHTTPRequest drains r's body into an owned Request snapshot. Buffering
// is unconditional: the proxy commits to whole-message semantics. maxBody <= 0
// means unbounded.
func FromHTTPRequest(r *http.Request, maxBody int64) (*Request, error) {
	payload, err := drainBody(r.Body, maxBody)
	if err != nil {
		return nil, err
	}
	return &Request{
		Method:  r.Method,
		URI:     r.URL,
		Version: r.Proto,
		Headers: HeadersFrom(r.Header),
		Payload: payload,
	}, nil
}

// ResponseFromHTTP drains resp's body into an owned Response snapshot,
// attaching the Request that produced it (possibly handler-modified).
func ResponseFromHTTP(resp *http.Response, req *Request, maxBody int64) (*Response, error) {
	payload, err := drainBody(resp.Body, maxBody)
	if err != nil {
		return nil, err
	}
	return &Response{
		Status:  resp.StatusCode,
		Version: resp.Proto,
		Headers: HeadersFrom(resp.Header),
		Payload: payload,
		Request: req,
	}, nil
}

func drainBody(body io.ReadCloser, maxBody int64) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	defer body.Close()
	if maxBody <= 0 {
		return io.ReadAll(body)
	}
	limited := io.LimitReader(body, maxBody+1)
	buf, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(buf)) > maxBody {
		return nil, ErrBodyTooLarge
	}
	return buf, nil
}

// NewUpstreamHTTPRequest builds a net/http request from an owned Request for
// dispatch to the origin server.
func NewUpstreamHTTPRequest(req *Request) (*http.Request, error) {
	out, err := http.NewRequest(req.Method, req.URI.String(), bytes.NewReader(req.Payload))
	if err != nil {
		return nil, err
	}
	out.Header = req.Headers.AsHTTPHeader().Clone()
	return out, nil
}
