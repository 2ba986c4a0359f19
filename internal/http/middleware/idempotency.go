package middleware

import (
	"context"
	"net/http"
	"path"
	"regexp"

	"github.com/gin-gonic/gin"

	"github.com/nicoiwnl/SGC-Maule/internal/observability"
)

const (
	// HeaderIdempotencyKey carries the client's key on creation requests.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderIdempotentReplay is "true" on responses served for a repeated key.
	HeaderIdempotentReplay = "Idempotent-Replay"

	ctxKeyIdem       = "idempotency"
	ctxKeyRateBypass = "rate.bypass"

	defaultIdemKeyLen = 200
)

var defaultIdemKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~:\-]+$`)

// IdemRequest describes a POST that carried a valid Idempotency-Key.
type IdemRequest struct {
	Key   string
	Scope string // "commitments" for POST /api/v1/commitments
	// ReplayID is the resource an earlier request with the same key created,
	// or 0 on a first attempt.
	ReplayID uint
}

// IdempotencyFrom returns the keyed request IdempotencyValidator accepted.
func IdempotencyFrom(c *gin.Context) (IdemRequest, bool) {
	v, ok := c.Get(ctxKeyIdem)
	if !ok {
		return IdemRequest{}, false
	}
	r, ok := v.(IdemRequest)
	return r, ok
}

// ReplayOf returns the resource a repeated key already created.
func ReplayOf(c *gin.Context) (uint, bool) {
	r, _ := IdempotencyFrom(c)
	return r.ReplayID, r.ReplayID != 0
}

// IdempotencyOptions configures IdempotencyValidator. Zero values use a 200
// byte limit, a token-character pattern and the last route segment as scope.
type IdempotencyOptions struct {
	MaxLen  int
	Pattern *regexp.Regexp
	Scope   func(*gin.Context) string
}

// IdempotencyLookup finds the resource stored for (personID, scope, key).
// Expired records must report exists=false.
type IdempotencyLookup func(ctx context.Context, personID uint, scope, key string) (resourceID uint, exists bool, err error)

// IdempotencyValidator checks the Idempotency-Key of POST requests and, for
// an identified caller, looks up an earlier creation under the same key.
// A hit exempts the request from rate limiting. Lookup failures are logged
// and the request runs as a first attempt.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	if opts.MaxLen <= 0 {
		opts.MaxLen = defaultIdemKeyLen
	}
	if opts.Pattern == nil {
		opts.Pattern = defaultIdemKeyPattern
	}
	if opts.Scope == nil {
		opts.Scope = routeScope
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if c.Request.Method != http.MethodPost || key == "" {
			c.Next()
			return
		}
		if len(key) > opts.MaxLen || !opts.Pattern.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}

		req := IdemRequest{Key: key, Scope: opts.Scope(c)}
		if a, ok := ActorFrom(c); ok && lookup != nil {
			id, exists, err := lookup(c.Request.Context(), a.PersonID, req.Scope, key)
			switch {
			case err != nil:
				LoggerFrom(c).Warn().Err(err).Str("scope", req.Scope).Msg("idempotency lookup failed")
			case exists && id != 0:
				req.ReplayID = id
				c.Set(ctxKeyRateBypass, true)
				observability.RecordReplay(req.Scope)
			}
		}
		c.Set(ctxKeyIdem, req)
		c.Next()
	}
}

func routeScope(c *gin.Context) string {
	p := c.FullPath()
	if p == "" {
		p = c.Request.URL.Path
	}
	return path.Base(path.Clean("/" + p))
}
