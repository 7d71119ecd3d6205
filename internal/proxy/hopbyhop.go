package proxy

import talon "github.com/talonproxy/talon/internal"

// hopByHopHeaders are proxy-specific headers that must not be forwarded
// between client and upstream. Not enforced by the plain HTTP transport,
// specified explicitly here).
var hopByHopHeaders = [...]string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
	"Proxy-Authenticate",
	"Proxy-Authorization",
}

func stripHopByHop(h talon.Headers) {
	for _, k := range hopByHopHeaders {
		h.Del(k)
	}
}
