package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const wellKnownSuffix = "/.well-known/atproto-did"

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	EnableHSTS bool          // only when traffic is HTTPS end-to-end
	HSTSMaxAge time.Duration // defaults to 180 days when not positive

	// WellKnownMaxAge lets resolvers cache successful DID documents. Zero
	// leaves Cache-Control to the handler.
	WellKnownMaxAge time.Duration
}

// SecurityHeaders returns a Gin middleware that adds baseline hardening
// headers (nosniff, frame DENY, no-referrer, Permissions-Policy), HSTS for
// HTTPS requests when enabled, and a public Cache-Control on well-known DID
// documents. X-Request-ID is appended to Access-Control-Expose-Headers.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	hsts := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains"

	var wellKnownCache string
	if s := int(opt.WellKnownMaxAge.Seconds()); s > 0 {
		wellKnownCache = "public, max-age=" + strconv.Itoa(s)
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		if rid := h.Get("X-Request-ID"); rid != "" {
			const hdr = "Access-Control-Expose-Headers"
			cur := h.Get(hdr)
			if cur == "" {
				h.Set(hdr, "X-Request-ID")
			} else if !strings.Contains(cur, "X-Request-ID") {
				h.Set(hdr, cur+", X-Request-ID")
			}
		}

		// Headers must be set before the handler writes, but a 404 must
		// not be cached: a username can be claimed at any moment.
		cacheable := wellKnownCache != "" && strings.HasSuffix(c.Request.URL.Path, wellKnownSuffix)
		if cacheable {
			h.Set("Cache-Control", wellKnownCache)
			c.Writer = &cacheGuard{ResponseWriter: c.Writer}
		}

		c.Next()
	}
}

// cacheGuard downgrades Cache-Control to no-store for non-200 responses.
type cacheGuard struct {
	gin.ResponseWriter
}

func (w *cacheGuard) WriteHeader(code int) {
	if code != http.StatusOK {
		w.Header().Set("Cache-Control", "no-store")
	}
	w.ResponseWriter.WriteHeader(code)
}

// isHTTPS reports whether the incoming request used HTTPS either directly
// or via a reverse proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
