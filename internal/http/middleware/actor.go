package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
)

// HeaderUserID carries the caller's person id.
const HeaderUserID = "X-User-ID"

const ctxKeyActor = "actor"

// ActorResolver loads the Actor for a person id. It must fail for unknown
// people.
type ActorResolver func(ctx context.Context, personID uint) (domain.Actor, error)

// ActorOptions configures the Actor middleware.
type ActorOptions struct {
	Resolve ActorResolver
	// Exempt lists path prefixes served without identification, e.g.
	// "/health" or "/api/v1/auth/login".
	Exempt []string
}

// Actor identifies the caller from X-User-ID and resolves a fresh Actor
// for every request. The Actor is stored in the Gin context (see ActorFrom)
// and its person id is added to the request logger.
//
// Requests to exempt paths, or to no route at all, pass through so that
// health probes work and unknown paths still answer 404.
func Actor(opts ActorOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.FullPath() == "" || exempt(c.Request.URL.Path, opts.Exempt) {
			c.Next()
			return
		}

		raw := strings.TrimSpace(c.GetHeader(HeaderUserID))
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			abortUnauthenticated(c, "missing or malformed "+HeaderUserID)
			return
		}
		a, err := opts.Resolve(c.Request.Context(), uint(id))
		if err != nil {
			LoggerFrom(c).Warn().Err(err).Uint64("person_id", id).Msg("actor resolution failed")
			abortUnauthenticated(c, "unknown user")
			return
		}

		c.Set(ctxKeyActor, a)
		addLogFields(c, func(z zerolog.Context) zerolog.Context {
			return z.Uint("person_id", a.PersonID)
		})
		c.Next()
	}
}

// ActorFrom returns the Actor resolved for this request.
func ActorFrom(c *gin.Context) (domain.Actor, bool) {
	v, ok := c.Get(ctxKeyActor)
	if !ok {
		return domain.Actor{}, false
	}
	a, ok := v.(domain.Actor)
	return a, ok
}

func exempt(p string, prefixes []string) bool {
	for _, pre := range prefixes {
		if pre != "" && strings.HasPrefix(p, pre) {
			return true
		}
	}
	return false
}

func abortUnauthenticated(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": RequestIDFrom(c),
		"code":       "unauthenticated",
		"message":    msg,
	})
}
