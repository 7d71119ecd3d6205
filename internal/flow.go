package talon

import "net"

// FlowOwner is the minimal capability a Flow needs from its owning Proxy: a
// monotonic id source. Expressing it as an interface here (rather than
// holding a concrete *proxy.Proxy) keeps this dependency-root package free
// of project imports while still letting a Flow carry a "shared-ref to
// Proxy" per the data model -- the cyclic Flow<->Proxy reference described
// in the design notes is harmless under a garbage-collected runtime, so no
// explicit cycle-breaking beyond this narrow interface is needed.
type FlowOwner interface {
	NextFlowID() uint64
}

// Flow is the per-request context threaded through one request/response
// pair. Its id is unique within a Proxy instance and strictly monotonically
// increasing. auth is set once, by the AuthPipeline, before any handler
// runs; it is read-only to every handler thereafter.
type Flow struct {
	id      uint64
	traceID string
	owner   FlowOwner
	client  net.Addr
	auth    *Credentials
}

// NewFlow allocates a new Flow from owner's id counter.
func NewFlow(owner FlowOwner, client net.Addr, traceID string) *Flow {
	return &Flow{
		id:      owner.NextFlowID(),
		traceID: traceID,
		owner:   owner,
		client:  client,
	}
}

func (f *Flow) ID() uint64          { return f.id }
func (f *Flow) TraceID() string     { return f.traceID }
func (f *Flow) Client() net.Addr    { return f.client }
func (f *Flow) Auth() *Credentials  { return f.auth }

// SetAuth is called exactly once, by the AuthPipeline, to record the
// credentials that authenticated this flow.
func (f *Flow) SetAuth(c *Credentials) { f.auth = c }

// ClientAddr is a net.Addr built from a bare remote-address string such as
// http.Request.RemoteAddr, for use where no dialed net.Conn is available.
type ClientAddr string

func (a ClientAddr) Network() string { return "tcp" }
func (a ClientAddr) String() string  { return string(a) }
