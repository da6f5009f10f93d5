// ABOUTME: Intercepted request model and classification into fetch strategies
// ABOUTME: Maps Sec-Fetch headers and Accept onto request mode and destination

package interceptor

import (
	"net/http"
	"net/url"
	"strings"
)

// Mode is the fetch mode of a request.
type Mode string

const (
	ModeNavigate   Mode = "navigate"
	ModeCORS       Mode = "cors"
	ModeNoCORS     Mode = "no-cors"
	ModeSameOrigin Mode = "same-origin"
)

// Destination is what the requested resource will be used as.
type Destination string

const (
	DestEmpty    Destination = ""
	DestDocument Destination = "document"
	DestImage    Destination = "image"
	DestScript   Destination = "script"
	DestStyle    Destination = "style"
	DestFont     Destination = "font"
	DestManifest Destination = "manifest"
)

// Request is an outgoing request seen by the interceptor.
type Request struct {
	Method      string
	URL         *url.URL // absolute
	Header      http.Header
	Body        []byte
	Mode        Mode
	Destination Destination
}

// Strategy is how a request is answered.
type Strategy int

const (
	// StrategyPassthrough forwards cross-origin requests untouched.
	StrategyPassthrough Strategy = iota
	// StrategyNetworkFirst tries the network, then the cache.
	StrategyNetworkFirst
	// StrategyCacheFirst tries the cache, then the network.
	StrategyCacheFirst
	// StrategyNetworkOnly is used for non-GET requests, which are never cached.
	StrategyNetworkOnly
)

func (s Strategy) String() string {
	switch s {
	case StrategyPassthrough:
		return "passthrough"
	case StrategyNetworkFirst:
		return "network-first"
	case StrategyCacheFirst:
		return "cache-first"
	case StrategyNetworkOnly:
		return "network-only"
	default:
		return "unknown"
	}
}

// IsNavigation reports whether the request loads a top-level document.
func (r *Request) IsNavigation() bool {
	return r.Mode == ModeNavigate
}

// IsImage reports whether the request is for an image.
func (r *Request) IsImage() bool {
	return r.Destination == DestImage
}

// sameOrigin compares scheme and host (including port).
func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) && strings.EqualFold(a.Host, b.Host)
}

// requestMode derives the fetch mode from Sec-Fetch-Mode, falling back to
// treating GETs that accept HTML as navigations.
func requestMode(r *http.Request) Mode {
	if m := r.Header.Get("Sec-Fetch-Mode"); m != "" {
		return Mode(strings.ToLower(m))
	}
	if r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html") {
		return ModeNavigate
	}
	return ModeNoCORS
}

// requestDestination derives the destination from Sec-Fetch-Dest, falling
// back to the Accept header.
func requestDestination(r *http.Request, mode Mode) Destination {
	if d := r.Header.Get("Sec-Fetch-Dest"); d != "" {
		d = strings.ToLower(d)
		if d == "empty" {
			return DestEmpty
		}
		return Destination(d)
	}
	accept := r.Header.Get("Accept")
	switch {
	case mode == ModeNavigate:
		return DestDocument
	case strings.HasPrefix(accept, "image/"):
		return DestImage
	case strings.Contains(accept, "text/css"):
		return DestStyle
	default:
		return DestEmpty
	}
}
