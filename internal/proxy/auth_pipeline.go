package proxy

import (
	"context"
	"net/http"

	talon "github.com/talonproxy/talon/internal"
)

// authenticate implements the AuthPipeline contract:
//
//  1. Extract the Proxy-Authorization header. If absent, return
//     ErrMissingHeader, which ServeHTTP rejects with 407.
//  2. Split on whitespace; a token count != 2 yields Rejected(InvalidFormat).
//  3. Try each configured Authenticator in order; the first success wins and
//     sets flow.Auth.
//  4. If every authenticator errors, yield Rejected with the first error.
//
// A Proxy configured with zero authenticators always passes, leaving
// flow.Auth nil -- this is checked first so a missing or malformed header
// never rejects a request when there is nothing configured to authenticate
// against.
func (p *Proxy) authenticate(ctx context.Context, flow *talon.Flow, r *http.Request) error {
	if len(p.authenticators) == 0 {
		return nil
	}

	creds, err := talon.CredentialsFromHeader(r.Header)
	if err != nil {
		return err
	}

	var firstErr error
	for _, a := range p.authenticators {
		if err := a.Authenticate(ctx, creds); err == nil {
			flow.SetAuth(&creds)
			return nil
		} else if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = talon.ErrUnknownAuth
	}
	return firstErr
}
