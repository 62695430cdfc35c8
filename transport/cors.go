package transport

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORS headers announced on preflight. Only POST reaches the handler.
var (
	corsAllowMethods = strings.Join([]string{http.MethodPost, http.MethodOptions}, ", ")
	corsAllowHeaders = strings.Join([]string{"Content-Type", RequestIDHeader}, ", ")
	corsMaxAge       = strconv.Itoa(24 * 60 * 60)
)

// CORSPolicy decides which browser origins may call the HTTP transport.
type CORSPolicy struct {
	// Origins lists exact origins, or "*" for any origin.
	Origins []string
	// AllowCredentials sets Access-Control-Allow-Credentials on allowed
	// responses. It is never sent with a wildcard origin.
	AllowCredentials bool
	// ExposeHeaders lists response headers scripts may read.
	ExposeHeaders []string
}

// allowed returns the Access-Control-Allow-Origin value for origin, or ""
// when the origin is not allowed.
func (p CORSPolicy) allowed(origin string) string {
	if slices.Contains(p.Origins, "*") {
		return "*"
	}
	if origin != "" && slices.Contains(p.Origins, origin) {
		return origin
	}
	return ""
}

// Middleware returns router middleware that decorates responses with CORS
// headers. It never answers a request itself: preflight requests continue
// to the router, which replies with an envelope like any other
// unsupported method.
func (p CORSPolicy) Middleware() func(http.Handler) http.Handler {
	expose := strings.Join(p.ExposeHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allow := p.allowed(r.Header.Get("Origin"))
			if allow == "" {
				next.ServeHTTP(w, r)
				return
			}

			hdr := w.Header()
			hdr.Set("Access-Control-Allow-Origin", allow)
			hdr.Add("Vary", "Origin")
			if p.AllowCredentials && allow != "*" {
				hdr.Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				hdr.Set("Access-Control-Allow-Methods", corsAllowMethods)
				hdr.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				hdr.Set("Access-Control-Max-Age", corsMaxAge)
			} else if expose != "" {
				hdr.Set("Access-Control-Expose-Headers", expose)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WithCORS sets the CORS policy for the HTTP transport.
func WithCORS(policy CORSPolicy) HTTPOption {
	return func(h *HTTP) {
		h.cors = &policy
	}
}

// WithCORSOrigins allows the given origins. An empty list leaves CORS
// disabled.
func WithCORSOrigins(origins ...string) HTTPOption {
	return func(h *HTTP) {
		if len(origins) == 0 {
			return
		}
		h.cors = &CORSPolicy{Origins: origins}
	}
}
