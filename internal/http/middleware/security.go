package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// The API only returns JSON, so nothing may load or frame it.
	apiCSP = "default-src 'none'; frame-ancestors 'none'; base-uri 'none'"
	// Swagger UI ships its bootstrap inline.
	docsCSP = "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; frame-ancestors 'none'"

	defaultHSTSMaxAge = 180 * 24 * time.Hour
)

// SecurityOptions selects the optional response headers.
type SecurityOptions struct {
	// EnableHSTS sends Strict-Transport-Security on HTTPS requests. Leave it
	// off unless TLS reaches the process or a proxy sets X-Forwarded-Proto.
	EnableHSTS bool
	HSTSMaxAge time.Duration // default 180 days

	// NoStore marks API responses uncacheable. Commitment data is personal
	// and per caller.
	NoStore bool

	// EnablePolicy adds Permissions-Policy and a Content-Security-Policy.
	EnablePolicy bool

	// DocsPrefix is where the Swagger UI is mounted. Its pages get a CSP
	// that lets the UI run, and they stay cacheable.
	DocsPrefix string
}

// SecurityHeaders hardens every response for browser clients.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := opt.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = defaultHSTSMaxAge
	}
	hsts := "max-age=" + strconv.FormatInt(int64(maxAge/time.Second), 10) + "; includeSubDomains"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		docs := opt.DocsPrefix != "" && strings.HasPrefix(c.Request.URL.Path, opt.DocsPrefix)
		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			if docs {
				h.Set("Content-Security-Policy", docsCSP)
			} else {
				h.Set("Content-Security-Policy", apiCSP)
			}
		}
		if opt.NoStore && !docs {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		c.Next()
	}
}

func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
