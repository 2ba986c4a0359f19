package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/nicoiwnl/SGC-Maule/internal/observability"
)

// RateLimitOptions sizes the limiter. Identified callers get one bucket per
// person; anonymous requests share a bucket per client IP. Requests under
// LoginPath draw from a second, per-IP bucket so credential guessing is
// throttled independently of normal API use.
type RateLimitOptions struct {
	RPS   float64
	Burst int

	LoginPath  string
	LoginRPS   float64
	LoginBurst int

	// IdleTTL evicts buckets not used for this long. Default 10m.
	IdleTTL time.Duration
}

// RateLimiter is an in-process token bucket limiter. Limits are per
// instance; replicas each enforce their own.
type RateLimiter struct {
	api       *bucketSet
	login     *bucketSet
	loginPath string
}

func NewRateLimiter(opts RateLimitOptions) *RateLimiter {
	ttl := opts.IdleTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	rl := &RateLimiter{
		api:       newBucketSet("api", opts.RPS, opts.Burst, ttl),
		loginPath: opts.LoginPath,
	}
	if opts.LoginPath != "" {
		rl.login = newBucketSet("login", opts.LoginRPS, opts.LoginBurst, ttl)
	}
	return rl
}

// Handler rejects requests whose bucket is empty with 429 and a Retry-After
// in whole seconds. Idempotent replays are never limited.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}
		set, key := rl.api, rateKey(c)
		if rl.login != nil && strings.HasPrefix(c.Request.URL.Path, rl.loginPath) {
			set, key = rl.login, "ip:"+c.ClientIP()
		}

		wait, ok := set.take(key, time.Now())
		if ok {
			c.Next()
			return
		}

		observability.RecordRateLimited(set.name)
		LoggerFrom(c).Warn().Str("bucket", set.name).Str("key", key).Msg("rate limited")
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
		msg := "too many requests"
		if set == rl.login {
			msg = "too many login attempts"
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": RequestIDFrom(c),
			"code":       "rate_limited",
			"message":    msg,
		})
	}
}

// IsRateBypass reports whether IdempotencyValidator found a stored result
// for this request.
func IsRateBypass(c *gin.Context) bool {
	return c.GetBool(ctxKeyRateBypass)
}

// rateKey buckets identified callers by person id and everyone else by IP.
func rateKey(c *gin.Context) string {
	if a, ok := ActorFrom(c); ok {
		return "person:" + strconv.FormatUint(uint64(a.PersonID), 10)
	}
	return "ip:" + c.ClientIP()
}

func retryAfterSeconds(wait time.Duration) int {
	if wait <= 0 {
		return 1
	}
	return int(math.Ceil(wait.Seconds()))
}

// sweepEvery is how many takes pass between sweeps of idle buckets.
const sweepEvery = 4096

type bucket struct {
	lim      *rate.Limiter
	lastUsed time.Time
}

type bucketSet struct {
	name  string
	limit rate.Limit
	burst int
	ttl   time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket
	takes   int
}

func newBucketSet(name string, rps float64, burst int, ttl time.Duration) *bucketSet {
	return &bucketSet{
		name:    name,
		limit:   rate.Limit(rps),
		burst:   max(burst, 1),
		ttl:     ttl,
		buckets: make(map[string]*bucket),
	}
}

// take spends one token from key's bucket. When none is available it
// reports how long until one would be, or a minute for a zero rate.
func (s *bucketSet) take(key string, now time.Time) (time.Duration, bool) {
	s.mu.Lock()
	s.takes++
	if s.takes >= sweepEvery {
		s.takes = 0
		for k, b := range s.buckets {
			if now.Sub(b.lastUsed) >= s.ttl {
				delete(s.buckets, k)
			}
		}
	}
	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(s.limit, s.burst)}
		s.buckets[key] = b
	}
	b.lastUsed = now
	s.mu.Unlock()

	r := b.lim.ReserveN(now, 1)
	if !r.OK() {
		return time.Minute, false
	}
	d := r.DelayFrom(now)
	if d == 0 {
		return 0, true
	}
	r.CancelAt(now)
	if s.limit == 0 || d == rate.InfDuration {
		return time.Minute, false
	}
	return d, false
}
