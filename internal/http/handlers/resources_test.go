package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/rs/zerolog"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
	"github.com/nicoiwnl/SGC-Maule/internal/http/middleware"
	"github.com/nicoiwnl/SGC-Maule/internal/repo"
	"github.com/nicoiwnl/SGC-Maule/internal/services"
)

func TestArchive_NoContentAndInvalidState(t *testing.T) {
	h := New(Services{Lifecycle: &stubLifecycle{archive: func(id uint) error {
		if id == 2 {
			return services.ErrInvalidState
		}
		return nil
	}}})
	r := newRouter(h, 0)

	if w := do(r, http.MethodPost, "/commitments/1/archive", nil, nil); w.Code != http.StatusNoContent {
		t.Fatalf("archive: status=%d", w.Code)
	}
	w := do(r, http.MethodPost, "/commitments/2/archive", nil, nil)
	if w.Code != http.StatusConflict || decodeErr(t, w).Code != ErrCodeInvalidState {
		t.Fatalf("pending archive: status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestBulkPurge(t *testing.T) {
	h := New(Services{Lifecycle: &stubLifecycle{bulkPurge: func(ids []uint) (int64, error) {
		return int64(len(ids)), nil
	}}})
	r := newRouter(h, 0)

	w := do(r, http.MethodPost, "/commitments/purge", BulkPurgeRequest{IDs: []uint{3, 4, 5}}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp BulkPurgeResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Purged != 3 {
		t.Fatalf("purged=%d", resp.Purged)
	}

	if w := do(r, http.MethodPost, "/commitments/purge", BulkPurgeRequest{IDs: []uint{}}, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("empty ids: status=%d", w.Code)
	}
	if w := do(r, http.MethodPost, "/commitments/purge", BulkPurgeRequest{IDs: []uint{0}}, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("zero id: status=%d", w.Code)
	}
}

func TestCreateMeeting_MapsInputAndRemembers(t *testing.T) {
	idem := &stubIdem{}
	var got services.MeetingInput
	h := New(Services{
		Meetings: &stubMeetings{create: func(in services.MeetingInput) (*services.MeetingResult, error) {
			got = in
			return &services.MeetingResult{Meeting: &domain.Meeting{ID: 12}, CommitmentIDs: []uint{40}}, nil
		}},
		Idempotency: idem,
	})
	r := newRouter(h, 0)

	body := CreateMeetingRequest{
		Name:     "Comité de gestión",
		AreaName: "Finanzas",
		Guests:   []GuestRequest{{FullName: "Gina Pino", Email: "gina@example.cl"}},
		Commitments: []CreateCommitmentRequest{
			{Description: "Enviar acta", Priority: "Alta", DueDate: "2025-03-20", DepartmentID: 3},
		},
	}
	w := do(r, http.MethodPost, "/meetings", body, map[string]string{middleware.HeaderIdempotencyKey: "m-1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if got.AreaName != "Finanzas" || len(got.Guests) != 1 || got.Guests[0].Email != "gina@example.cl" || len(got.Commitments) != 1 {
		t.Fatalf("input=%+v", got)
	}
	if len(idem.calls) != 1 || idem.calls[0].scope != "meetings" || idem.calls[0].resourceID != 12 {
		t.Fatalf("remember calls=%+v", idem.calls)
	}

	noCommitments := body
	noCommitments.Commitments = nil
	if w := do(r, http.MethodPost, "/meetings", noCommitments, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("no commitments: status=%d", w.Code)
	}
}

func TestListMeetings_Filter(t *testing.T) {
	var got repo.MeetingFilter
	h := New(Services{Meetings: &stubMeetings{filter: func(f repo.MeetingFilter) ([]domain.Meeting, error) {
		got = f
		return []domain.Meeting{{ID: 1}}, nil
	}}})
	r := newRouter(h, 0)

	w := do(r, http.MethodGet, "/meetings?area=2&from=2025-01-01&to=2025-02-01", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if got.AreaID != 2 || got.From == nil || got.To == nil || got.From.Month() != 1 || got.To.Month() != 2 {
		t.Fatalf("filter=%+v", got)
	}
	if w := do(r, http.MethodGet, "/meetings?from=01/01/2025", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad from: status=%d", w.Code)
	}
}

func TestSuggestPeople(t *testing.T) {
	var gotK int
	h := New(Services{Org: &stubOrg{suggest: func(q string, k int) ([]services.PersonSuggestion, error) {
		gotK = k
		return []services.PersonSuggestion{{ID: 7, Name: "Juan Muñoz", Score: 1}}, nil
	}}})
	r := newRouter(h, 0)

	w := do(r, http.MethodGet, "/people/suggest?q=munoz&k=500", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if gotK != 50 {
		t.Fatalf("k not clamped: %d", gotK)
	}
	if w := do(r, http.MethodGet, "/people/suggest?q=%20", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("blank q: status=%d", w.Code)
	}
}

func TestCatalogHandlers(t *testing.T) {
	h := New(Services{Org: &stubOrg{
		createArea: func(a domain.Actor, name string, dept *uint) (*domain.Area, error) {
			if a.IsBaseRank() {
				return nil, services.ErrPermission
			}
			return &domain.Area{ID: 9, Name: name, DepartmentID: dept}, nil
		},
		deleteArea: func(id uint) error {
			if id == 404 {
				return services.ErrNotFound
			}
			return nil
		},
	}})
	r := newRouter(h, 0)

	dept := uint(3)
	w := do(r, http.MethodPost, "/areas", CatalogRequest{Name: "Finanzas", DepartmentID: &dept}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status=%d body=%s", w.Code, w.Body.String())
	}
	var area domain.Area
	_ = json.Unmarshal(w.Body.Bytes(), &area)
	if area.ID != 9 || area.DepartmentID == nil || *area.DepartmentID != 3 {
		t.Fatalf("area=%+v", area)
	}
	if w := do(r, http.MethodPost, "/areas", map[string]any{}, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing name: status=%d", w.Code)
	}
	if w := do(r, http.MethodDelete, "/areas/1", nil, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: status=%d", w.Code)
	}
	if w := do(r, http.MethodDelete, "/areas/404", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("delete missing: status=%d", w.Code)
	}
}

func TestReports_QueryAndHierarchyRoot(t *testing.T) {
	var q services.ReportQuery
	var root uint
	h := New(Services{Reports: &stubReports{
		summary: func(got services.ReportQuery) (*services.Summary, error) {
			q = got
			return &services.Summary{People: 2}, nil
		},
		hierarchy: func(r uint) ([]services.HierarchyNode, error) {
			root = r
			return []services.HierarchyNode{}, nil
		},
	}})
	r := newRouter(h, 0)

	w := do(r, http.MethodGet, "/reports/summary?scope=all&month=marzo&year=2025&area=4", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if !q.All || q.Month != "marzo" || q.Year != 2025 || q.AreaID != 4 {
		t.Fatalf("query=%+v", q)
	}
	if w := do(r, http.MethodGet, "/reports/summary?day=40", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("day 40: status=%d", w.Code)
	}

	if w := do(r, http.MethodGet, "/reports/hierarchy?root=6", nil, nil); w.Code != http.StatusOK || root != 6 {
		t.Fatalf("hierarchy: status=%d root=%d", w.Code, root)
	}
	if w := do(r, http.MethodGet, "/reports/hierarchy", nil, nil); w.Code != http.StatusOK || root != 0 {
		t.Fatalf("default root: status=%d root=%d", w.Code, root)
	}
	if w := do(r, http.MethodGet, "/reports/hierarchy?root=x", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad root: status=%d", w.Code)
	}
}

func TestLogin(t *testing.T) {
	h := New(Services{Auth: stubAuth{login: func(username, password string) (uint, error) {
		if username == "jperez" && password == "s3cret-pass" {
			return 4, nil
		}
		return 0, services.ErrUnauthenticated
	}}})
	r := newRouter(h, 0)

	w := do(r, http.MethodPost, "/auth/login", LoginRequest{Username: "jperez", Password: "s3cret-pass"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp LoginResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.PersonID != 4 {
		t.Fatalf("person_id=%d", resp.PersonID)
	}

	if w := do(r, http.MethodPost, "/auth/login", LoginRequest{Username: "jperez", Password: "nope"}, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status=%d", w.Code)
	}
}

func TestArchive_LeavesTransitionLoggingToService(t *testing.T) {
	h := New(Services{Lifecycle: &stubLifecycle{archive: func(uint) error { return nil }}})
	r := newRouter(h, 0)

	var logs bytes.Buffer
	req := httptest.NewRequest(http.MethodPost, "/commitments/1/archive", nil)
	req = req.WithContext(zerolog.New(&logs).WithContext(req.Context()))
	req.Header.Set(middleware.HeaderUserID, strconv.Itoa(int(testActor.PersonID)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status=%d", w.Code)
	}
	if logs.Len() != 0 {
		t.Fatalf("handler logged: %s", logs.String())
	}
}
