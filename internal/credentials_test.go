package talon

import (
	"errors"
	"net/http"
	"testing"
)

func TestCredentialsFromHeader_BasicAuth(t *testing.T) {
	t.Parallel()
	h := http.Header{}
	h.Set(ProxyAuthorizationHeader, "Basic dXNlcm5hbWU6cGFzc3dvcmQ=")

	creds, err := CredentialsFromHeader(h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if creds.Scheme != "Basic" || creds.Credentials != "dXNlcm5hbWU6cGFzc3dvcmQ=" {
		t.Errorf("creds = %+v, want {Basic dXNlcm5hbWU6cGFzc3dvcmQ=}", creds)
	}
}

func TestCredentialsFromHeader_Malformed(t *testing.T) {
	t.Parallel()
	h := http.Header{}
	h.Set(ProxyAuthorizationHeader, "Scheme Value Extra")

	_, err := CredentialsFromHeader(h)
	var invalidFormat *InvalidFormatError
	if !errors.As(err, &invalidFormat) {
		t.Fatalf("err = %v, want *InvalidFormatError", err)
	}
	if invalidFormat.N != 3 {
		t.Errorf("N = %d, want 3", invalidFormat.N)
	}
}

func TestCredentialsFromHeader_Missing(t *testing.T) {
	t.Parallel()
	h := http.Header{}

	_, err := CredentialsFromHeader(h)
	if !errors.Is(err, ErrMissingHeader) {
		t.Fatalf("err = %v, want ErrMissingHeader", err)
	}
}

func TestCredentialsFromHeader_SingleToken(t *testing.T) {
	t.Parallel()
	h := http.Header{}
	h.Set(ProxyAuthorizationHeader, "OnlyOneToken")

	_, err := CredentialsFromHeader(h)
	var invalidFormat *InvalidFormatError
	if !errors.As(err, &invalidFormat) || invalidFormat.N != 1 {
		t.Fatalf("err = %v, want *InvalidFormatError{N:1}", err)
	}
}

// Property: header parse totality -- for every input, CredentialsFromHeader
// returns exactly one of Ok, ErrMissingHeader, or *InvalidFormatError; it
// never panics.
func TestCredentialsFromHeader_Totality(t *testing.T) {
	t.Parallel()
	inputs := []string{
		"", "a", "a b", "a b c", "   ", "a\tb", "🙂 🙃", string([]byte{0xff, 0xfe}),
		"a b c d e f g h i j k l m n o p",
	}
	for _, in := range inputs {
		h := http.Header{}
		if in != "" {
			h.Set(ProxyAuthorizationHeader, in)
		}
		creds, err := CredentialsFromHeader(h)
		switch {
		case err == nil:
			if creds.Scheme == "" || creds.Credentials == "" {
				t.Errorf("input %q: ok but empty credentials", in)
			}
		case errors.Is(err, ErrMissingHeader):
		default:
			var invalidFormat *InvalidFormatError
			if !errors.As(err, &invalidFormat) {
				t.Errorf("input %q: unexpected error type %v", in, err)
			}
		}
	}
}

// Property: whitespace invariance -- replacing any inter-token whitespace
// run with a single space does not change the parse result.
func TestCredentialsFromHeader_WhitespaceInvariance(t *testing.T) {
	t.Parallel()
	variants := []string{
		"Bearer token123",
		"Bearer    token123",
		"Bearer\ttoken123",
		"Bearer \t  token123",
	}
	var want Credentials
	for i, v := range variants {
		h := http.Header{}
		h.Set(ProxyAuthorizationHeader, v)
		got, err := CredentialsFromHeader(h)
		if err != nil {
			t.Fatalf("variant %d: unexpected error: %v", i, err)
		}
		if i == 0 {
			want = got
			continue
		}
		if got != want {
			t.Errorf("variant %d = %+v, want %+v", i, got, want)
		}
	}
}
