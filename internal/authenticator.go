package talon

import "context"

// Authenticator is polymorphic over the single capability authenticate.
// It returns nil on success, or one of: *InvalidSchemeError,
// ErrNotAuthenticated, or a *TransportError if the validation call itself
// failed (e.g. the identity endpoint was unreachable).
type Authenticator interface {
	Authenticate(ctx context.Context, creds Credentials) error
}
