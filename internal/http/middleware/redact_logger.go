// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access logger of the service. It
// scrubs personal data from request metadata before emitting a zerolog line:
//   - bodies are never logged
//   - secret query parameters (password, token, rut) are masked by name
//   - e-mail addresses, Chilean RUTs, phone numbers and UUIDs are pattern-redacted
//   - sensitive headers (Authorization, Cookie, Set-Cookie, X-Api-Key, plus
//     custom ones) are masked entirely
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RedactOptions configures additional scrub behavior for RedactingLogger.
//
// MaskHeaders and MaskParams name extra headers and query parameters whose
// values are replaced with "[REDACTED]". Matching is case-insensitive and
// merged with the built-in lists.
type RedactOptions struct {
	MaskHeaders []string
	MaskParams  []string
}

var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}\-[0-9a-f]{4}\-[1-5][0-9a-f]{3}\-[89ab][0-9a-f]{3}\-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	// 12.345.678-5, 12345678-K
	rutRE = regexp.MustCompile(`(?i)\b\d{1,2}\.?\d{3}\.?\d{3}-[0-9k]\b`)
	// Digits only, so the hex groups of a UUID never match.
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
)

// redactPII replaces personal data in s. UUIDs and RUTs go before phones:
// the phone pattern is the loosest and would eat their digit groups.
func redactPII(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	s = rutRE.ReplaceAllString(s, "[REDACTED:rut]")
	s = phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
	return s
}

// paramMasker returns a function that blanks the values of the named query
// parameters in a raw query string.
func paramMasker(names []string) func(string) string {
	quoted := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			quoted = append(quoted, regexp.QuoteMeta(n))
		}
	}
	re := regexp.MustCompile(`(?i)(^|&)(` + strings.Join(quoted, "|") + `)=[^&]*`)
	return func(q string) string {
		return re.ReplaceAllString(q, "${1}${2}=[REDACTED]")
	}
}

// RedactingLogger logs one line per request once it has been served.
//
// The line is written through the request logger, so it carries the request
// id and, when the Actor middleware identified the caller, the person id.
// Query and headers are scrubbed first; bodies are never logged. Level is
// info, warn for 4xx and error for 5xx or when a handler attached an error.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := map[string]bool{
		"authorization": true,
		"cookie":        true,
		"set-cookie":    true,
		"x-api-key":     true,
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			maskHeaders[h] = true
		}
	}
	maskParams := paramMasker(append([]string{"password", "token", "rut"}, opts.MaskParams...))

	return func(c *gin.Context) {
		start := time.Now()
		query := truncate(redactPII(maskParams(c.Request.URL.RawQuery)), maxQueryLogLength)
		headers := make(map[string]string, len(c.Request.Header))
		for name, values := range c.Request.Header {
			if maskHeaders[strings.ToLower(name)] {
				headers[name] = "[REDACTED]"
			} else {
				headers[name] = redactPII(strings.Join(values, ", "))
			}
		}

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		status := c.Writer.Status()
		lg := LoggerFrom(c)
		var ev *zerolog.Event
		switch {
		case status >= 500 || len(c.Errors) > 0:
			ev = lg.Error()
		case status >= 400:
			ev = lg.Warn()
		default:
			ev = lg.Info()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Str("method", c.Request.Method).
			Str("route", route).
			Str("query", query).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Interface("headers", headers).
			Msg("http_request")
	}
}
