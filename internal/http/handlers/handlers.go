// Package handlers provides the HTTP handlers of the commitment tracker.
//
// Handlers are transport-thin: they bind and validate input, take the
// per-request Actor from the context, call an application service and
// translate the result (or the service error, see mapServiceError) into a
// JSON response.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
	"github.com/nicoiwnl/SGC-Maule/internal/http/middleware"
	"github.com/nicoiwnl/SGC-Maule/internal/repo"
	"github.com/nicoiwnl/SGC-Maule/internal/services"
	"github.com/nicoiwnl/SGC-Maule/internal/utils"
)

//
// Service contracts (context-aware)
//

// CommitmentService edits, reads and lists commitments.
type CommitmentService interface {
	Create(ctx context.Context, a domain.Actor, in services.CommitmentInput) (*services.CommitmentView, error)
	Update(ctx context.Context, a domain.Actor, id uint, p services.CommitmentPatch) (*services.CommitmentView, error)
	Derive(ctx context.Context, a domain.Actor, id uint, referents []uint) (*services.CommitmentView, error)
	Get(ctx context.Context, a domain.Actor, id uint) (*services.CommitmentView, error)
	History(ctx context.Context, a domain.Actor, id uint) ([]domain.CommitmentChange, error)
	ListShared(ctx context.Context, a domain.Actor, f services.ListFilter) (*services.CommitmentPage, error)
	ListMine(ctx context.Context, a domain.Actor, f services.ListFilter) (*services.CommitmentPage, error)
	ListByDepartment(ctx context.Context, a domain.Actor, deptID uint, f services.ListFilter) (*services.CommitmentPage, error)
	ListAll(ctx context.Context, a domain.Actor, f services.ListFilter) (*services.CommitmentPage, error)
	ListArchived(ctx context.Context, a domain.Actor, f services.ListFilter) (*services.CommitmentPage, error)
	ListDeleted(ctx context.Context, a domain.Actor, f services.ListFilter) (*services.CommitmentPage, error)
}

// LifecycleService moves commitments between the active, archived and
// deleted stores.
type LifecycleService interface {
	Archive(ctx context.Context, a domain.Actor, id uint) error
	Unarchive(ctx context.Context, a domain.Actor, id uint) error
	SoftDelete(ctx context.Context, a domain.Actor, id uint) error
	Restore(ctx context.Context, a domain.Actor, id uint) error
	Purge(ctx context.Context, a domain.Actor, id uint) error
	BulkPurge(ctx context.Context, a domain.Actor, ids []uint) (int64, error)
}

// VerifierService manages the evidence files of a commitment.
type VerifierService interface {
	Add(ctx context.Context, a domain.Actor, commitmentID uint, fileName, path, description string) (*domain.Verifier, error)
	List(ctx context.Context, a domain.Actor, commitmentID uint) ([]repo.VerifierRow, error)
	Delete(ctx context.Context, a domain.Actor, id uint) (string, error)
}

// MeetingService records meetings and answers meeting queries.
type MeetingService interface {
	Create(ctx context.Context, a domain.Actor, in services.MeetingInput) (*services.MeetingResult, error)
	Get(ctx context.Context, id uint) (*services.MeetingResult, error)
	Mine(ctx context.Context, a domain.Actor) ([]domain.Meeting, error)
	Filter(ctx context.Context, f repo.MeetingFilter) ([]domain.Meeting, error)
	Commitments(ctx context.Context, a domain.Actor, meetingID uint) ([]services.CommitmentView, error)
	ByCommitment(ctx context.Context, commitmentID uint) (*domain.Meeting, error)
}

// OrgService manages people, departments and the area/origin catalogs.
type OrgService interface {
	ListPeople(ctx context.Context, f repo.PersonFilter) ([]repo.PersonRow, error)
	Ranks(ctx context.Context) ([]string, error)
	UpdatePerson(ctx context.Context, a domain.Actor, id uint, p services.PersonPatch) (*domain.Person, error)
	SuggestPeople(ctx context.Context, q string, k int) ([]services.PersonSuggestion, error)

	ListDepartments(ctx context.Context) ([]domain.Department, error)
	CreateDepartment(ctx context.Context, a domain.Actor, name string, parentID *uint) (*domain.Department, error)
	UpdateDepartment(ctx context.Context, a domain.Actor, id uint, name string, parentID *uint) (*domain.Department, error)
	DepartmentChain(ctx context.Context, id uint) ([]repo.DepartmentLevel, error)

	ListAreas(ctx context.Context, deptID uint) ([]domain.Area, error)
	CreateArea(ctx context.Context, a domain.Actor, name string, deptID *uint) (*domain.Area, error)
	UpdateArea(ctx context.Context, a domain.Actor, id uint, name string, deptID *uint) (*domain.Area, error)
	DeleteArea(ctx context.Context, a domain.Actor, id uint) error
	ListOrigins(ctx context.Context, deptID uint) ([]domain.Origin, error)
	CreateOrigin(ctx context.Context, a domain.Actor, name string, deptID *uint) (*domain.Origin, error)
	UpdateOrigin(ctx context.Context, a domain.Actor, id uint, name string, deptID *uint) (*domain.Origin, error)
	DeleteOrigin(ctx context.Context, a domain.Actor, id uint) error
}

// ReportService computes scoped aggregates.
type ReportService interface {
	Summary(ctx context.Context, a domain.Actor, q services.ReportQuery) (*services.Summary, error)
	ByDepartment(ctx context.Context, a domain.Actor, q services.ReportQuery) ([]repo.DepartmentSummary, error)
	TopPeople(ctx context.Context, a domain.Actor, q services.ReportQuery) ([]repo.PersonLoad, error)
	PerDay(ctx context.Context, a domain.Actor, q services.ReportQuery) ([]repo.DayCount, error)
	ArchivedDeletedCounts(ctx context.Context, a domain.Actor, q services.ReportQuery) (*services.LifecycleCounts, error)
	CompletionPercentages(ctx context.Context, a domain.Actor, q services.ReportQuery) (*services.Percentages, error)
	MonthSummary(ctx context.Context, a domain.Actor, q services.ReportQuery) (*services.MonthReport, error)
	HierarchyRollup(ctx context.Context, a domain.Actor, rootID uint, q services.ReportQuery) ([]services.HierarchyNode, error)
}

// AuthService checks credentials.
type AuthService interface {
	Login(ctx context.Context, username, password string) (uint, error)
}

// IdempotencyStore records which resource a keyed creation produced.
type IdempotencyStore interface {
	Remember(ctx context.Context, personID uint, scope, key string, resourceID uint, status int) error
}

//
// Handler wiring
//

// Services bundles the dependencies of Handlers. Idempotency may be nil.
type Services struct {
	Commitments CommitmentService
	Lifecycle   LifecycleService
	Verifiers   VerifierService
	Meetings    MeetingService
	Org         OrgService
	Reports     ReportService
	Auth        AuthService
	Idempotency IdempotencyStore
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	commitments CommitmentService
	lifecycle   LifecycleService
	verifiers   VerifierService
	meetings    MeetingService
	org         OrgService
	reports     ReportService
	auth        AuthService
	idem        IdempotencyStore
}

// New constructs Handlers bound to the given services.
func New(s Services) *Handlers {
	return &Handlers{
		commitments: s.Commitments,
		lifecycle:   s.Lifecycle,
		verifiers:   s.Verifiers,
		meetings:    s.Meetings,
		org:         s.Org,
		reports:     s.Reports,
		auth:        s.Auth,
		idem:        s.Idempotency,
	}
}

//
// Helpers
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func paginationOf(page, pageSize int, total int64) Pagination {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// actor returns the Actor set by middleware.Actor, answering 401 when it is
// missing.
func actor(c *gin.Context) (domain.Actor, bool) {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthenticated, "missing "+middleware.HeaderUserID)
	}
	return a, ok
}

// idParam parses a positive numeric path parameter, answering 400 on error.
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := utils.ParseID(c.Param(name))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

// dateParam parses an optional YYYY-MM-DD query parameter.
func dateParam(c *gin.Context, name string) (*time.Time, bool) {
	d, err := utils.ParseDate(c.Query(name))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, name+" must be a date (YYYY-MM-DD)")
		return nil, false
	}
	return d, true
}
