package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nicoiwnl/SGC-Maule/internal/config"
	"github.com/nicoiwnl/SGC-Maule/internal/domain"
	"github.com/nicoiwnl/SGC-Maule/internal/http/middleware"
	"github.com/nicoiwnl/SGC-Maule/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.Open("sqlite", filepath.Join(t.TempDir(), "router.db"), "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.Logger = logger.Default.LogMode(logger.Silent)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig(origins ...string) config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     100,
		RateBurst:   50,
		CORS:        config.CORSConfig{AllowedOrigins: origins},
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newEngine(t *testing.T, db *gorm.DB, cfg config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, db, cfg)
	return r
}

func serve(r *gin.Engine, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_ProbesMetricsAndFallbacks(t *testing.T) {
	r := newEngine(t, newTestDB(t), testConfig())

	cases := []struct {
		method, target string
		want           int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/ready", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/nope", http.StatusNotFound},
		{http.MethodPost, "/health", http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		// none of these need X-User-ID
		w := serve(r, tc.method, tc.target, nil, nil)
		if w.Code != tc.want {
			t.Fatalf("%s %s = %d want %d (%s)", tc.method, tc.target, w.Code, tc.want, w.Body.String())
		}
		if w.Header().Get("X-Request-ID") == "" {
			t.Fatalf("%s %s without request id", tc.method, tc.target)
		}
		// /metrics is mounted ahead of the API middleware
		if tc.target != "/metrics" && w.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Fatalf("%s %s missing security headers: %v", tc.method, tc.target, w.Header())
		}
	}
}

func TestRegisterRoutes_CORS(t *testing.T) {
	open := newEngine(t, newTestDB(t), testConfig())
	w := serve(open, http.MethodGet, "/health", nil, map[string]string{"Origin": "http://intranet.local"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-all ACAO=%q", got)
	}

	strict := newEngine(t, newTestDB(t), testConfig("http://sgc.example.cl"))
	w = serve(strict, http.MethodGet, "/health", nil, map[string]string{"Origin": "http://sgc.example.cl"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://sgc.example.cl" {
		t.Fatalf("listed origin ACAO=%q", got)
	}
	w = serve(strict, http.MethodGet, "/health", nil, map[string]string{"Origin": "http://evil.example"})
	if w.Code != http.StatusForbidden || w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("foreign origin: %d ACAO=%q", w.Code, w.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestLimitBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(8))
	r.POST("/echo", func(c *gin.Context) {
		var v map[string]any
		if err := c.ShouldBindJSON(&v); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})
	if w := serve(r, http.MethodPost, "/echo", map[string]string{"a": "b"}, nil); w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized body: %d", w.Code)
	}
	if w := serve(r, http.MethodPost, "/echo", map[string]string{}, nil); w.Code != http.StatusOK {
		t.Fatalf("small body: %d", w.Code)
	}
}

func TestRegisterRoutes_RequiresActor(t *testing.T) {
	r := newEngine(t, newTestDB(t), testConfig())

	for _, uid := range []string{"", "abc", "999"} {
		w := serve(r, http.MethodGet, "/api/v1/commitments", nil, map[string]string{middleware.HeaderUserID: uid})
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("X-User-ID=%q: expected 401, got %d", uid, w.Code)
		}
	}

	// login is exempt: a bad body is a 400, not a 401
	if w := serve(r, http.MethodPost, "/api/v1/auth/login", map[string]string{}, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("login without actor: %d", w.Code)
	}
}

func TestRegisterRoutes_CreateCommitment_IdempotentReplay(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	dept, err := repo.CreateDepartment(ctx, db, "Dirección", nil)
	if err != nil {
		t.Fatalf("department: %v", err)
	}
	boss := &domain.Person{Name: "Ana", LastName: "Soto", Rank: domain.RankServiceDirector}
	if err := repo.CreatePerson(ctx, db, boss, dept.ID, true); err != nil {
		t.Fatalf("person: %v", err)
	}
	r := newEngine(t, db, testConfig())

	headers := map[string]string{
		middleware.HeaderUserID:         strconv.Itoa(int(boss.ID)),
		middleware.HeaderIdempotencyKey: "create-1",
	}
	body := map[string]any{
		"description":   "Enviar acta firmada",
		"priority":      "Alta",
		"due_date":      "2025-03-20",
		"department_id": dept.ID,
		"referents":     []uint{boss.ID},
	}

	first := serve(r, http.MethodPost, "/api/v1/commitments", body, headers)
	if first.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", first.Code, first.Body.String())
	}
	var created struct {
		ID     uint   `json:"id"`
		Status string `json:"status"`
	}
	_ = json.Unmarshal(first.Body.Bytes(), &created)
	if created.ID == 0 || created.Status != domain.StatusPending {
		t.Fatalf("created=%+v", created)
	}

	second := serve(r, http.MethodPost, "/api/v1/commitments", body, headers)
	if second.Code != http.StatusOK {
		t.Fatalf("replay: %d %s", second.Code, second.Body.String())
	}
	if second.Header().Get(middleware.HeaderIdempotentReplay) != "true" {
		t.Fatalf("missing replay header")
	}
	var replayed struct {
		ID uint `json:"id"`
	}
	_ = json.Unmarshal(second.Body.Bytes(), &replayed)
	if replayed.ID != created.ID {
		t.Fatalf("replayed id=%d want %d", replayed.ID, created.ID)
	}

	var n int64
	db.Model(&domain.Commitment{}).Count(&n)
	if n != 1 {
		t.Fatalf("expected one commitment, got %d", n)
	}

	// the new commitment shows up in the caller's listing
	w := serve(r, http.MethodGet, "/api/v1/commitments?view=mine", nil, map[string]string{middleware.HeaderUserID: strconv.Itoa(int(boss.ID))})
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d %s", w.Code, w.Body.String())
	}
	var page struct {
		Commitments []struct {
			ID uint `json:"id"`
		} `json:"commitments"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &page)
	if len(page.Commitments) != 1 || page.Commitments[0].ID != created.ID {
		t.Fatalf("listing=%+v", page)
	}
}
