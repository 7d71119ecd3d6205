package talon

import (
	"net/http"
	"strings"
)

// ProxyAuthorizationHeader is the standard header carrying proxy credentials.
const ProxyAuthorizationHeader = "Proxy-Authorization"

// Credentials is a parsed Proxy-Authorization value: exactly a scheme and a
// single credential token.
type Credentials struct {
	Scheme      string
	Credentials string
}

// CredentialsFromHeader extracts and parses the Proxy-Authorization header.
// It returns exactly one of: a Credentials value, ErrMissingHeader (header
// absent), or *InvalidFormatError (wrong token count) -- it never panics,
// regardless of the header's contents (property: header parse totality).
//
// strings.Fields collapses any run of whitespace between tokens, so replacing
// a single space with "   " or a tab yields the same result (property:
// whitespace invariance).
func CredentialsFromHeader(h http.Header) (Credentials, error) {
	raw := h.Get(ProxyAuthorizationHeader)
	if raw == "" {
		return Credentials{}, ErrMissingHeader
	}
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return Credentials{}, &InvalidFormatError{N: len(fields)}
	}
	return Credentials{Scheme: fields[0], Credentials: fields[1]}, nil
}
