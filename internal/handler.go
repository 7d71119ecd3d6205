package talon

import "context"

// ForwardKind tags the variant carried by a Forward directive.
type ForwardKind int

const (
	// ForwardDoNothing continues the pipeline unchanged.
	ForwardDoNothing ForwardKind = iota + 1
	// ForwardModify substitutes the request going upstream and continues
	// with the next handler.
	ForwardModify
	// ForwardRespond short-circuits the forward path: the carried Response
	// is returned to the client without contacting upstream.
	ForwardRespond
)

// Forward is the directive a request-side handler returns. Construct one
// only through the DoNothingForward/ModifyForward/RespondForward
// constructors so the zero value is never mistaken for a valid directive.
type Forward struct {
	Kind     ForwardKind
	Request  *Request
	Response *Response
}

func DoNothingForward() Forward               { return Forward{Kind: ForwardDoNothing} }
func ModifyForward(r *Request) Forward        { return Forward{Kind: ForwardModify, Request: r} }
func RespondForward(resp *Response) Forward   { return Forward{Kind: ForwardRespond, Response: resp} }

// ReverseKind tags the variant carried by a Reverse directive.
type ReverseKind int

const (
	// ReverseDoNothing continues the pipeline unchanged.
	ReverseDoNothing ReverseKind = iota + 1
	// ReverseModify substitutes the response going downstream. There is no
	// short-circuit equivalent on the response side.
	ReverseModify
)

// Reverse is the directive a response-side handler returns.
type Reverse struct {
	Kind     ReverseKind
	Response *Response
}

func DoNothingReverse() Reverse             { return Reverse{Kind: ReverseDoNothing} }
func ModifyReverse(resp *Response) Reverse  { return Reverse{Kind: ReverseModify, Response: resp} }

// Handler is the polymorphic capability invoked at the request- and
// response-side of the forward path. The Proxy holds a heterogeneous list
// of Handlers for its lifetime; handlers are shared read-only among Flows,
// so any internal mutability must be synchronized by the handler itself.
//
// A handler that returns a non-nil error is logged and treated as
// DoNothing/DoNothingReverse; handler faults never fail the request.
type Handler interface {
	OnRequest(ctx context.Context, flow *Flow, req *Request) (Forward, error)
	OnResponse(ctx context.Context, flow *Flow, resp *Response) (Reverse, error)
}
