package middleware

import (
	"fmt"
	"net/http"
	"regexp"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDHeader = "X-Request-ID"
	ctxKeyRequestID = "request_id"

	maxQueryLogLength = 2048
)

// Client supplied ids are kept only when they look like an id; anything
// else could forge log lines or carry personal data.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:\-]{1,128}$`)

// RequestID assigns the correlation id echoed in X-Request-ID and in every
// error body. It also seeds the request context with a logger carrying the
// id, so services logging through log.Ctx(ctx) are correlated too.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if !requestIDPattern.MatchString(rid) {
			rid = uuid.NewString()
		}
		c.Set(ctxKeyRequestID, rid)
		c.Header(requestIDHeader, rid)

		l := log.With().Str("request_id", rid).Logger()
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
		c.Next()
	}
}

// RequestIDFrom returns the id set by RequestID, or "".
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(ctxKeyRequestID)
}

// LoggerFrom returns the request logger, falling back to the global one
// when RequestID did not run.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if c.Request != nil {
		if l := zerolog.Ctx(c.Request.Context()); l.GetLevel() != zerolog.Disabled {
			return l
		}
	}
	return &log.Logger
}

// addLogFields extends the request logger for everything downstream.
func addLogFields(c *gin.Context, fields func(zerolog.Context) zerolog.Context) {
	l := fields(LoggerFrom(c).With()).Logger()
	c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
}

// Recovery turns a panic into a logged stack trace and, when nothing was
// written yet, the usual JSON error body with status 500.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			LoggerFrom(c).Error().
				Str("panic", fmt.Sprint(rec)).
				Bytes("stack", debug.Stack()).
				Str("route", c.FullPath()).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
