// Package httpapi mounts the SGC-Maule REST API on a Gin engine: the
// middleware chain, probes, /metrics and every route of the versioned API.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/nicoiwnl/SGC-Maule/internal/config"
	"github.com/nicoiwnl/SGC-Maule/internal/http/handlers"
	"github.com/nicoiwnl/SGC-Maule/internal/http/middleware"
	"github.com/nicoiwnl/SGC-Maule/internal/services"
)

const (
	defaultMaxBody = 1 << 20
	loginRoute     = "/auth/login"
)

// RegisterRoutes builds the services on db and mounts the API under
// cfg.APIBasePath.
//
// The actor is resolved before idempotency and rate limiting, since both
// key on the calling person. A replayed creation skips the rate limiter.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	handlers.RegisterValidators()

	base := config.CleanBasePath(cfg.APIBasePath)
	idem := &services.IdempotencyService{DB: db, TTL: cfg.IdempotencyTTL}

	r.Use(
		otelgin.Middleware(cfg.OTEL.ServiceName),
		middleware.RequestID(),
		middleware.RedactingLogger(middleware.RedactOptions{
			MaskHeaders: []string{"Authorization", "Cookie", "Set-Cookie", "X-API-Key"},
			MaskParams:  []string{"password", "token", "rut"},
		}),
		middleware.Recovery(),
		limitBody(cfg.MaxBodyBytes),
		middleware.Metrics(),
	)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(
		middleware.Actor(middleware.ActorOptions{
			Resolve: (&services.ActorService{DB: db}).Resolve,
			Exempt:  []string{"/health", "/ready", "/metrics", "/swagger", base + loginRoute},
		}),
		middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, idem.Lookup),
		rateLimiter(cfg, base+loginRoute).Handler(),
		corsPolicy(cfg.CORS),
		middleware.SecurityHeaders(middleware.SecurityOptions{
			EnableHSTS:   cfg.Security.EnableHSTS,
			HSTSMaxAge:   cfg.Security.HSTSMaxAge,
			NoStore:      true,
			EnablePolicy: true,
			DocsPrefix:   "/swagger",
		}),
	)

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/ready", ready(db))

	h := handlers.New(handlers.Services{
		Commitments: &services.CommitmentService{DB: db},
		Lifecycle:   &services.LifecycleService{DB: db},
		Verifiers:   &services.VerifierService{DB: db},
		Meetings:    &services.MeetingService{DB: db},
		Org:         &services.OrgService{DB: db},
		Reports:     &services.ReportService{DB: db},
		Auth:        &services.AuthService{DB: db},
		Idempotency: idem,
	})
	mountAPI(r.Group(base), h)
}

func mountAPI(api *gin.RouterGroup, h *handlers.Handlers) {
	api.POST(loginRoute, h.Login)
	api.GET("/me", h.Me)

	api.GET("/commitments", h.ListCommitments)
	api.POST("/commitments", h.CreateCommitment)
	api.GET("/commitments/archived", h.ListArchivedCommitments)
	api.GET("/commitments/deleted", h.ListDeletedCommitments)
	api.POST("/commitments/purge", h.BulkPurgeCommitments)
	api.GET("/commitments/:id", h.GetCommitment)
	api.PATCH("/commitments/:id", h.UpdateCommitment)
	api.PUT("/commitments/:id/referents", h.ReplaceReferents)
	api.GET("/commitments/:id/history", h.CommitmentHistory)
	api.GET("/commitments/:id/meeting", h.CommitmentMeeting)

	api.POST("/commitments/:id/archive", h.ArchiveCommitment)
	api.POST("/commitments/:id/unarchive", h.UnarchiveCommitment)
	api.DELETE("/commitments/:id", h.DeleteCommitment)
	api.POST("/commitments/:id/restore", h.RestoreCommitment)
	api.DELETE("/commitments/:id/purge", h.PurgeCommitment)

	api.GET("/commitments/:id/verifiers", h.ListVerifiers)
	api.POST("/commitments/:id/verifiers", h.AddVerifier)
	api.DELETE("/verifiers/:id", h.DeleteVerifier)

	api.GET("/meetings", h.ListMeetings)
	api.POST("/meetings", h.CreateMeeting)
	api.GET("/meetings/:id/commitments", h.MeetingCommitments)

	api.GET("/people", h.ListPeople)
	api.GET("/people/suggest", h.SuggestPeople)
	api.PATCH("/people/:id", h.UpdatePerson)
	api.GET("/ranks", h.ListRanks)

	api.GET("/departments", h.ListDepartments)
	api.POST("/departments", h.CreateDepartment)
	api.PATCH("/departments/:id", h.UpdateDepartment)
	api.GET("/departments/:id/chain", h.DepartmentChain)

	api.GET("/areas", h.ListAreas)
	api.POST("/areas", h.CreateArea)
	api.PATCH("/areas/:id", h.UpdateArea)
	api.DELETE("/areas/:id", h.DeleteArea)
	api.GET("/origins", h.ListOrigins)
	api.POST("/origins", h.CreateOrigin)
	api.PATCH("/origins/:id", h.UpdateOrigin)
	api.DELETE("/origins/:id", h.DeleteOrigin)

	api.GET("/reports/summary", h.ReportSummary)
	api.GET("/reports/departments", h.ReportDepartments)
	api.GET("/reports/people", h.ReportPeople)
	api.GET("/reports/daily", h.ReportDaily)
	api.GET("/reports/lifecycle", h.ReportLifecycle)
	api.GET("/reports/percentages", h.ReportPercentages)
	api.GET("/reports/month", h.ReportMonth)
	api.GET("/reports/hierarchy", h.ReportHierarchy)
}

func rateLimiter(cfg config.Config, loginPath string) *middleware.RateLimiter {
	login := cfg.LoginRate
	if login.Burst <= 0 {
		login = config.RateConfig{RPS: 0.2, Burst: 5}
	}
	return middleware.NewRateLimiter(middleware.RateLimitOptions{
		RPS:        cfg.RateRPS,
		Burst:      cfg.RateBurst,
		LoginPath:  loginPath,
		LoginRPS:   login.RPS,
		LoginBurst: login.Burst,
	})
}

// corsPolicy allows any origin without credentials when none are
// configured, otherwise only the listed ones.
func corsPolicy(cfg config.CORSConfig) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization",
			middleware.HeaderUserID, middleware.HeaderIdempotencyKey},
		ExposeHeaders: []string{"X-Request-ID", "Retry-After", middleware.HeaderIdempotentReplay},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = cfg.AllowedOrigins
	}
	return cors.New(cc)
}

func ready(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("readiness check failed")
			handlers.Fail(c, http.StatusServiceUnavailable, "not_ready", "database unavailable")
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

// limitBody caps request bodies; reading past maxBytes fails the bind.
func limitBody(maxBytes int64) gin.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBody
	}
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
