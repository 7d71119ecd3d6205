package proxy

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	talon "github.com/talonproxy/talon/internal"
)

type recordingHandler struct {
	onRequest  func(ctx context.Context, flow *talon.Flow, req *talon.Request) (talon.Forward, error)
	onResponse func(ctx context.Context, flow *talon.Flow, resp *talon.Response) (talon.Reverse, error)
	reqCalls   int
	respCalls  int
}

func (h *recordingHandler) OnRequest(ctx context.Context, flow *talon.Flow, req *talon.Request) (talon.Forward, error) {
	h.reqCalls++
	if h.onRequest != nil {
		return h.onRequest(ctx, flow, req)
	}
	return talon.DoNothingForward(), nil
}

func (h *recordingHandler) OnResponse(ctx context.Context, flow *talon.Flow, resp *talon.Response) (talon.Reverse, error) {
	h.respCalls++
	if h.onResponse != nil {
		return h.onResponse(ctx, flow, resp)
	}
	return talon.DoNothingReverse(), nil
}

// S4: a plain GET is forwarded to the upstream and the upstream's response
// reaches the client unchanged (forward idempotence, property 3).
func TestHandleForward_ForwardsToUpstream(t *testing.T) {
	t.Parallel()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello from upstream"))
	}))
	defer upstream.Close()

	p := New(Options{Upstream: upstream.Client()})

	req := httptest.NewRequest(http.MethodGet, upstream.URL+"/path", nil)
	rec := httptest.NewRecorder()
	flow := newFlow(p)

	p.handleForward(context.Background(), flow, rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if string(body) != "hello from upstream" {
		t.Errorf("body = %q, want %q", body, "hello from upstream")
	}
	if rec.Header().Get("X-Upstream") != "yes" {
		t.Errorf("X-Upstream header missing from response")
	}
}

// Property 4: handler ordering -- request handlers run in declaration order.
func TestHandleForward_HandlerOrdering(t *testing.T) {
	t.Parallel()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	var order []string
	h1 := &recordingHandler{onRequest: func(ctx context.Context, flow *talon.Flow, req *talon.Request) (talon.Forward, error) {
		order = append(order, "h1")
		return talon.DoNothingForward(), nil
	}}
	h2 := &recordingHandler{onRequest: func(ctx context.Context, flow *talon.Flow, req *talon.Request) (talon.Forward, error) {
		order = append(order, "h2")
		return talon.DoNothingForward(), nil
	}}

	p := New(Options{Upstream: upstream.Client(), Handlers: []talon.Handler{h1, h2}})
	req := httptest.NewRequest(http.MethodGet, upstream.URL+"/", nil)
	rec := httptest.NewRecorder()
	flow := newFlow(p)

	p.handleForward(context.Background(), flow, rec, req)

	if len(order) != 2 || order[0] != "h1" || order[1] != "h2" {
		t.Errorf("handler order = %v, want [h1 h2]", order)
	}
}

// Property 5: short-circuit -- a RespondForward directive skips the
// upstream round trip entirely and every later handler's OnRequest.
func TestHandleForward_ShortCircuitsOnRespond(t *testing.T) {
	t.Parallel()
	upstreamHit := false
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamHit = true
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	synthetic := talon.NewResponseBuilder().Status(http.StatusTeapot).Payload([]byte("short-circuited")).Build()
	h1 := &recordingHandler{onRequest: func(ctx context.Context, flow *talon.Flow, req *talon.Request) (talon.Forward, error) {
		return talon.RespondForward(synthetic), nil
	}}
	h2 := &recordingHandler{}

	p := New(Options{Upstream: upstream.Client(), Handlers: []talon.Handler{h1, h2}})
	req := httptest.NewRequest(http.MethodGet, upstream.URL+"/", nil)
	rec := httptest.NewRecorder()
	flow := newFlow(p)

	p.handleForward(context.Background(), flow, rec, req)

	if upstreamHit {
		t.Error("upstream was contacted despite a RespondForward short-circuit")
	}
	if h2.reqCalls != 0 {
		t.Errorf("h2.OnRequest called %d times, want 0 after short-circuit", h2.reqCalls)
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if string(body) != "short-circuited" {
		t.Errorf("body = %q, want short-circuited", body)
	}
	if h1.respCalls != 1 {
		t.Errorf("h1.OnResponse called %d times, want 1 (response chain still runs)", h1.respCalls)
	}
}

// A handler error is logged and treated as DoNothing; it never fails the
// request.
func TestHandleForward_HandlerErrorIsSwallowed(t *testing.T) {
	t.Parallel()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	faulty := &recordingHandler{onRequest: func(ctx context.Context, flow *talon.Flow, req *talon.Request) (talon.Forward, error) {
		return talon.Forward{}, &talon.HandlerError{Msg: "boom"}
	}}

	p := New(Options{Upstream: upstream.Client(), Handlers: []talon.Handler{faulty}})
	req := httptest.NewRequest(http.MethodGet, upstream.URL+"/", nil)
	rec := httptest.NewRecorder()
	flow := newFlow(p)

	p.handleForward(context.Background(), flow, rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 despite handler error", rec.Code)
	}
}

// Upstream unreachability produces a synthetic 502 through the response
// handler chain rather than panicking.
func TestHandleForward_UpstreamUnreachable(t *testing.T) {
	t.Parallel()
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := upstream.URL
	upstream.Close()

	p := New(Options{Upstream: http.DefaultClient})
	req := httptest.NewRequest(http.MethodGet, url+"/", nil)
	rec := httptest.NewRecorder()
	flow := newFlow(p)

	p.handleForward(context.Background(), flow, rec, req)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}
