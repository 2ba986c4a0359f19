package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
	"github.com/nicoiwnl/SGC-Maule/internal/http/middleware"
	"github.com/nicoiwnl/SGC-Maule/internal/repo"
	"github.com/nicoiwnl/SGC-Maule/internal/services"
)

// ---------- test plumbing ----------

// Stubs embed the interface so unused methods panic if reached.

type stubCommitments struct {
	CommitmentService
	create   func(ctx context.Context, a domain.Actor, in services.CommitmentInput) (*services.CommitmentView, error)
	get      func(ctx context.Context, a domain.Actor, id uint) (*services.CommitmentView, error)
	update   func(ctx context.Context, a domain.Actor, id uint, p services.CommitmentPatch) (*services.CommitmentView, error)
	derive   func(ctx context.Context, a domain.Actor, id uint, referents []uint) (*services.CommitmentView, error)
	list     func(view string, f services.ListFilter) (*services.CommitmentPage, error)
	archived func(ctx context.Context, a domain.Actor, f services.ListFilter) (*services.CommitmentPage, error)
}

func (s *stubCommitments) Create(ctx context.Context, a domain.Actor, in services.CommitmentInput) (*services.CommitmentView, error) {
	return s.create(ctx, a, in)
}

func (s *stubCommitments) Get(ctx context.Context, a domain.Actor, id uint) (*services.CommitmentView, error) {
	return s.get(ctx, a, id)
}

func (s *stubCommitments) Update(ctx context.Context, a domain.Actor, id uint, p services.CommitmentPatch) (*services.CommitmentView, error) {
	return s.update(ctx, a, id, p)
}

func (s *stubCommitments) Derive(ctx context.Context, a domain.Actor, id uint, referents []uint) (*services.CommitmentView, error) {
	return s.derive(ctx, a, id, referents)
}

func (s *stubCommitments) ListShared(_ context.Context, _ domain.Actor, f services.ListFilter) (*services.CommitmentPage, error) {
	return s.list("shared", f)
}

func (s *stubCommitments) ListMine(_ context.Context, _ domain.Actor, f services.ListFilter) (*services.CommitmentPage, error) {
	return s.list("mine", f)
}

func (s *stubCommitments) ListAll(_ context.Context, _ domain.Actor, f services.ListFilter) (*services.CommitmentPage, error) {
	return s.list("all", f)
}

func (s *stubCommitments) ListByDepartment(_ context.Context, _ domain.Actor, dept uint, f services.ListFilter) (*services.CommitmentPage, error) {
	return s.list("department:"+strconv.Itoa(int(dept)), f)
}

func (s *stubCommitments) ListArchived(ctx context.Context, a domain.Actor, f services.ListFilter) (*services.CommitmentPage, error) {
	return s.archived(ctx, a, f)
}

type stubLifecycle struct {
	LifecycleService
	archive   func(id uint) error
	bulkPurge func(ids []uint) (int64, error)
}

func (s *stubLifecycle) Archive(_ context.Context, _ domain.Actor, id uint) error { return s.archive(id) }

func (s *stubLifecycle) BulkPurge(_ context.Context, _ domain.Actor, ids []uint) (int64, error) {
	return s.bulkPurge(ids)
}

type stubMeetings struct {
	MeetingService
	create func(in services.MeetingInput) (*services.MeetingResult, error)
	filter func(f repo.MeetingFilter) ([]domain.Meeting, error)
}

func (s *stubMeetings) Create(_ context.Context, _ domain.Actor, in services.MeetingInput) (*services.MeetingResult, error) {
	return s.create(in)
}

func (s *stubMeetings) Filter(_ context.Context, f repo.MeetingFilter) ([]domain.Meeting, error) {
	return s.filter(f)
}

type stubOrg struct {
	OrgService
	suggest    func(q string, k int) ([]services.PersonSuggestion, error)
	createArea func(a domain.Actor, name string, dept *uint) (*domain.Area, error)
	deleteArea func(id uint) error
}

func (s *stubOrg) SuggestPeople(_ context.Context, q string, k int) ([]services.PersonSuggestion, error) {
	return s.suggest(q, k)
}

func (s *stubOrg) CreateArea(_ context.Context, a domain.Actor, name string, dept *uint) (*domain.Area, error) {
	return s.createArea(a, name, dept)
}

func (s *stubOrg) DeleteArea(_ context.Context, _ domain.Actor, id uint) error { return s.deleteArea(id) }

type stubReports struct {
	ReportService
	summary   func(q services.ReportQuery) (*services.Summary, error)
	hierarchy func(root uint) ([]services.HierarchyNode, error)
}

func (s *stubReports) Summary(_ context.Context, _ domain.Actor, q services.ReportQuery) (*services.Summary, error) {
	return s.summary(q)
}

func (s *stubReports) HierarchyRollup(_ context.Context, _ domain.Actor, root uint, _ services.ReportQuery) ([]services.HierarchyNode, error) {
	return s.hierarchy(root)
}

type stubAuth struct {
	login func(username, password string) (uint, error)
}

func (s stubAuth) Login(_ context.Context, username, password string) (uint, error) {
	return s.login(username, password)
}

type remembered struct {
	personID   uint
	scope, key string
	resourceID uint
}

type stubIdem struct{ calls []remembered }

func (s *stubIdem) Remember(_ context.Context, personID uint, scope, key string, resourceID uint, _ int) error {
	s.calls = append(s.calls, remembered{personID, scope, key, resourceID})
	return nil
}

// testActor is the only person the test resolver knows.
var testActor = domain.Actor{PersonID: 4, Name: "Ana Rojas", DepartmentID: 3, HasDepartment: true, Rank: domain.RankDepartmentHead}

// newRouter mounts h behind the Actor middleware and, when replay is
// non-zero, an idempotency lookup that reports that resource id.
func newRouter(h *Handlers, replay uint) *gin.Engine {
	gin.SetMode(gin.TestMode)
	RegisterValidators()
	r := gin.New()
	r.Use(middleware.Actor(middleware.ActorOptions{
		Resolve: func(_ context.Context, id uint) (domain.Actor, error) {
			if id != testActor.PersonID {
				return domain.Actor{}, services.ErrUnauthenticated
			}
			return testActor, nil
		},
		Exempt: []string{"/auth/login"},
	}))
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{},
		func(context.Context, uint, string, string) (uint, bool, error) {
			return replay, replay != 0, nil
		}))

	r.GET("/commitments", h.ListCommitments)
	r.POST("/commitments", h.CreateCommitment)
	r.GET("/commitments/archived", h.ListArchivedCommitments)
	r.GET("/commitments/:id", h.GetCommitment)
	r.PATCH("/commitments/:id", h.UpdateCommitment)
	r.PUT("/commitments/:id/referents", h.ReplaceReferents)
	r.POST("/commitments/:id/archive", h.ArchiveCommitment)
	r.POST("/commitments/purge", h.BulkPurgeCommitments)
	r.POST("/meetings", h.CreateMeeting)
	r.GET("/meetings", h.ListMeetings)
	r.GET("/people/suggest", h.SuggestPeople)
	r.POST("/areas", h.CreateArea)
	r.DELETE("/areas/:id", h.DeleteArea)
	r.GET("/reports/summary", h.ReportSummary)
	r.GET("/reports/hierarchy", h.ReportHierarchy)
	r.POST("/auth/login", h.Login)
	r.GET("/me", h.Me)
	return r
}

func do(r *gin.Engine, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderUserID, strconv.Itoa(int(testActor.PersonID)))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, w.Body.String())
	}
	return er
}

func viewOf(id uint) *services.CommitmentView {
	return &services.CommitmentView{CommitmentRow: repo.CommitmentRow{Commitment: domain.Commitment{ID: id, Status: domain.StatusPending}}}
}

// ---------- error mapping ----------

func TestMapServiceError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("bad due: %w", services.ErrValidation), http.StatusBadRequest, ErrCodeValidation},
		{services.ErrUnauthenticated, http.StatusUnauthorized, ErrCodeUnauthenticated},
		{services.ErrPermission, http.StatusForbidden, ErrCodeForbidden},
		{fmt.Errorf("commitment 9: %w", services.ErrNotFound), http.StatusNotFound, ErrCodeNotFound},
		{services.ErrInvalidState, http.StatusConflict, ErrCodeInvalidState},
		{services.ErrConflict, http.StatusConflict, ErrCodeConflict},
		{services.ErrResponsibleRemoval, http.StatusUnprocessableEntity, ErrCodeResponsibleRemoval},
		{errors.New("disk on fire"), http.StatusInternalServerError, ErrCodeInternal},
	}
	gin.SetMode(gin.TestMode)
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		mapServiceError(c, tc.err)
		if w.Code != tc.status {
			t.Fatalf("%v: status=%d want %d", tc.err, w.Code, tc.status)
		}
		er := decodeErr(t, w)
		if er.Code != tc.code {
			t.Fatalf("%v: code=%q want %q", tc.err, er.Code, tc.code)
		}
		if tc.status == http.StatusInternalServerError && er.Message == tc.err.Error() {
			t.Fatalf("500 must not leak the cause")
		}
	}
}

// ---------- commitments ----------

func TestCreateCommitment_CreatedAndRemembered(t *testing.T) {
	idem := &stubIdem{}
	var got services.CommitmentInput
	h := New(Services{
		Commitments: &stubCommitments{create: func(_ context.Context, a domain.Actor, in services.CommitmentInput) (*services.CommitmentView, error) {
			if a.PersonID != testActor.PersonID {
				t.Fatalf("actor not passed: %+v", a)
			}
			got = in
			return viewOf(31), nil
		}},
		Idempotency: idem,
	})
	r := newRouter(h, 0)

	body := CreateCommitmentRequest{Description: "Enviar acta", Priority: "Alta", DueDate: "2025-03-20", DepartmentID: 3, Referents: []uint{4, 7}}
	w := do(r, http.MethodPost, "/commitments", body, map[string]string{middleware.HeaderIdempotencyKey: "k-1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if got.DueDate == nil || got.DueDate.Day() != 20 || len(got.Referents) != 2 {
		t.Fatalf("input not mapped: %+v", got)
	}
	if len(idem.calls) != 1 || idem.calls[0] != (remembered{4, "commitments", "k-1", 31}) {
		t.Fatalf("remember calls: %+v", idem.calls)
	}
}

func TestCreateCommitment_ReplayReturnsStored(t *testing.T) {
	h := New(Services{
		Commitments: &stubCommitments{
			get: func(_ context.Context, _ domain.Actor, id uint) (*services.CommitmentView, error) { return viewOf(id), nil },
			create: func(context.Context, domain.Actor, services.CommitmentInput) (*services.CommitmentView, error) {
				t.Fatalf("create must not run on replay")
				return nil, nil
			},
		},
	})
	r := newRouter(h, 31)

	w := do(r, http.MethodPost, "/commitments", map[string]any{}, map[string]string{middleware.HeaderIdempotencyKey: "k-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if w.Header().Get(middleware.HeaderIdempotentReplay) != "true" {
		t.Fatalf("missing replay header")
	}
	var v services.CommitmentView
	_ = json.Unmarshal(w.Body.Bytes(), &v)
	if v.ID != 31 {
		t.Fatalf("replayed id=%d", v.ID)
	}
}

func TestCreateCommitment_InvalidBody(t *testing.T) {
	r := newRouter(New(Services{Commitments: &stubCommitments{}}), 0)

	w := do(r, http.MethodPost, "/commitments", map[string]any{"description": "x", "priority": "Alta", "due_date": "20-03-2025", "department_id": 3}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
	if er := decodeErr(t, w); er.Code != ErrCodeInvalidBody {
		t.Fatalf("code=%q", er.Code)
	}
}

func TestListCommitments_ViewDispatch(t *testing.T) {
	var seen string
	var filter services.ListFilter
	h := New(Services{Commitments: &stubCommitments{list: func(view string, f services.ListFilter) (*services.CommitmentPage, error) {
		seen, filter = view, f
		return &services.CommitmentPage{Items: []services.CommitmentView{*viewOf(1)}, Total: 45, Page: f.Page, PageSize: f.PageSize}, nil
	}}})
	r := newRouter(h, 0)

	cases := map[string]string{
		"/commitments":                         "shared",
		"/commitments?view=mine":               "mine",
		"/commitments?view=all":                "all",
		"/commitments?department=8":            "department:8",
		"/commitments?view=shared&department=8": "department:8",
	}
	for target, want := range cases {
		w := do(r, http.MethodGet, target, nil, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status=%d body=%s", target, w.Code, w.Body.String())
		}
		if seen != want {
			t.Fatalf("%s dispatched to %q, want %q", target, seen, want)
		}
	}

	w := do(r, http.MethodGet, "/commitments?progress=10-60&page=2&page_size=20&order=desc&search=%20acta%20", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if filter.Progress != "10-60" || filter.Page != 2 || filter.Order != "desc" || filter.Search != "acta" {
		t.Fatalf("filter=%+v", filter)
	}
	var resp ListCommitmentsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Pagination.TotalPages != 3 || !resp.Pagination.HasNext || len(resp.Commitments) != 1 {
		t.Fatalf("pagination=%+v", resp.Pagination)
	}
}

func TestListCommitments_BadQuery(t *testing.T) {
	r := newRouter(New(Services{Commitments: &stubCommitments{}}), 0)
	for _, target := range []string{
		"/commitments?progress=90-10",
		"/commitments?progress=abc",
		"/commitments?view=everything",
		"/commitments?due=tomorrow",
		"/commitments?order=sideways",
	} {
		w := do(r, http.MethodGet, target, nil, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d", target, w.Code)
		}
	}
}

func TestListArchived_PermissionMapped(t *testing.T) {
	h := New(Services{Commitments: &stubCommitments{archived: func(context.Context, domain.Actor, services.ListFilter) (*services.CommitmentPage, error) {
		return nil, services.ErrPermission
	}}})
	w := do(newRouter(h, 0), http.MethodGet, "/commitments/archived", nil, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestUpdateCommitment_PatchAndErrors(t *testing.T) {
	var patch services.CommitmentPatch
	h := New(Services{Commitments: &stubCommitments{
		update: func(_ context.Context, _ domain.Actor, id uint, p services.CommitmentPatch) (*services.CommitmentView, error) {
			patch = p
			if id == 99 {
				return nil, services.ErrNotFound
			}
			return viewOf(id), nil
		},
		derive: func(context.Context, domain.Actor, uint, []uint) (*services.CommitmentView, error) {
			return nil, services.ErrResponsibleRemoval
		},
	}})
	r := newRouter(h, 0)

	w := do(r, http.MethodPatch, "/commitments/5", map[string]any{"progress": 100, "status": "Completado", "due_date": "2025-04-01"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if patch.Progress == nil || *patch.Progress != 100 || patch.Status == nil || patch.DueDate == nil || patch.Description != nil {
		t.Fatalf("patch=%+v", patch)
	}

	if w := do(r, http.MethodPatch, "/commitments/5", map[string]any{"progress": 101}, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("progress 101: status=%d", w.Code)
	}
	if w := do(r, http.MethodPatch, "/commitments/99", map[string]any{}, nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing: status=%d", w.Code)
	}
	if w := do(r, http.MethodPatch, "/commitments/abc", map[string]any{}, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status=%d", w.Code)
	}
	if w := do(r, http.MethodPut, "/commitments/5/referents", ReferentsRequest{Referents: []uint{8}}, nil); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("derive: status=%d", w.Code)
	}
}

// ---------- actor ----------

func TestHandlers_UnknownActor(t *testing.T) {
	r := newRouter(New(Services{Commitments: &stubCommitments{}}), 0)
	req := httptest.NewRequest(http.MethodGet, "/commitments", nil)
	req.Header.Set(middleware.HeaderUserID, "77")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestActorHelper_MissingActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if _, okA := actor(c); okA {
		t.Fatalf("expected no actor")
	}
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestMe(t *testing.T) {
	w := do(newRouter(New(Services{}), 0), http.MethodGet, "/me", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var a domain.Actor
	_ = json.Unmarshal(w.Body.Bytes(), &a)
	if a != testActor {
		t.Fatalf("me=%+v", a)
	}
}
