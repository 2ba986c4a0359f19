// Commitment HTTP handlers.
//
// This file exposes the commitment resource:
//   - GET    /commitments                   (shared, mine, all or one department)
//   - POST   /commitments                   (create; Idempotency-Key aware)
//   - GET    /commitments/{id}              (read with referents)
//   - PATCH  /commitments/{id}              (partial update)
//   - PUT    /commitments/{id}/referents    (derive: reconcile referents)
//   - GET    /commitments/{id}/history      (audit trail)
//   - GET    /commitments/archived|deleted  (stored listings)
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
	"github.com/nicoiwnl/SGC-Maule/internal/http/middleware"
	"github.com/nicoiwnl/SGC-Maule/internal/services"
	"github.com/nicoiwnl/SGC-Maule/internal/utils"
)

//
// DTOs
//

// CreateCommitmentRequest is the JSON payload for a new commitment. The
// first referent becomes the principal one.
type CreateCommitmentRequest struct {
	Description      string `json:"description"       binding:"required,max=4000" example:"Enviar acta firmada"`
	Priority         string `json:"priority"          binding:"required,max=32"   example:"Alta"`
	DueDate          string `json:"due_date"          binding:"required,datetime=2006-01-02" example:"2025-03-20"`
	DepartmentID     uint   `json:"department_id"     binding:"required"          example:"3"`
	AreaID           *uint  `json:"area_id,omitempty"                             example:"1"`
	OriginID         *uint  `json:"origin_id,omitempty"                           example:"2"`
	Comment          string `json:"comment,omitempty"`
	DirectionComment string `json:"direction_comment,omitempty"`
	Referents        []uint `json:"referents,omitempty"`
}

func (r CreateCommitmentRequest) input() services.CommitmentInput {
	due, _ := utils.ParseDate(r.DueDate)
	return services.CommitmentInput{
		Description:      r.Description,
		Priority:         r.Priority,
		DueDate:          due,
		DepartmentID:     r.DepartmentID,
		AreaID:           r.AreaID,
		OriginID:         r.OriginID,
		Comment:          r.Comment,
		DirectionComment: r.DirectionComment,
		Referents:        r.Referents,
	}
}

// UpdateCommitmentRequest is a partial update; omitted fields stay as they
// are. A present referents list reconciles the referent set.
type UpdateCommitmentRequest struct {
	Description      *string `json:"description,omitempty"       binding:"omitempty,max=4000"`
	Status           *string `json:"status,omitempty"            binding:"omitempty,max=32" example:"Completado"`
	Priority         *string `json:"priority,omitempty"          binding:"omitempty,max=32"`
	Progress         *int    `json:"progress,omitempty"          binding:"omitempty,gte=0,lte=100" example:"100"`
	Comment          *string `json:"comment,omitempty"`
	DirectionComment *string `json:"direction_comment,omitempty"`
	DueDate          *string `json:"due_date,omitempty"          binding:"omitempty,datetime=2006-01-02"`
	Referents        *[]uint `json:"referents,omitempty"`
}

func (r UpdateCommitmentRequest) patch() services.CommitmentPatch {
	p := services.CommitmentPatch{
		Description:      r.Description,
		Status:           r.Status,
		Priority:         r.Priority,
		Progress:         r.Progress,
		Comment:          r.Comment,
		DirectionComment: r.DirectionComment,
		Referents:        r.Referents,
	}
	if r.DueDate != nil {
		p.DueDate, _ = utils.ParseDate(*r.DueDate)
	}
	return p
}

// ReferentsRequest replaces the referent set of a commitment. The current
// principal referent must stay in the list.
type ReferentsRequest struct {
	Referents []uint `json:"referents" binding:"required,min=1"`
}

// ListCommitmentsQuery holds the listing filters.
type ListCommitmentsQuery struct {
	View       string `form:"view"       binding:"omitempty,oneof=shared mine all"`
	Search     string `form:"search"     binding:"max=200"`
	Status     string `form:"status"`
	Priority   string `form:"priority"`
	Due        string `form:"due"        binding:"omitempty,datetime=2006-01-02"`
	Progress   string `form:"progress"   binding:"omitempty,progress_range"`
	Month      string `form:"month"`
	Year       int    `form:"year"       binding:"omitempty,gte=1900,lte=9999"`
	Area       uint   `form:"area"`
	Department uint   `form:"department"`
	Order      string `form:"order"      binding:"omitempty,oneof=asc desc"`
}

// ListCommitmentsResponse wraps a page of commitments.
type ListCommitmentsResponse struct {
	Commitments []services.CommitmentView `json:"commitments"`
	Pagination  Pagination                `json:"pagination"`
}

// listFilter binds the listing query and pagination, answering 400 on
// invalid input.
func listFilter(c *gin.Context) (ListCommitmentsQuery, services.ListFilter, bool) {
	var q ListCommitmentsQuery
	if !bindQuery(c, &q) {
		return q, services.ListFilter{}, false
	}
	due, okD := dateParam(c, "due")
	if !okD {
		return q, services.ListFilter{}, false
	}
	page, pageSize := clampPagination(c)
	return q, services.ListFilter{
		Search:       strings.TrimSpace(q.Search),
		Status:       q.Status,
		Priority:     q.Priority,
		Due:          due,
		Progress:     q.Progress,
		Month:        q.Month,
		Year:         q.Year,
		AreaID:       q.Area,
		DepartmentID: q.Department,
		Order:        q.Order,
		Page:         page,
		PageSize:     pageSize,
	}, true
}

func writePage(c *gin.Context, p *services.CommitmentPage) {
	ok(c, http.StatusOK, ListCommitmentsResponse{
		Commitments: p.Items,
		Pagination:  paginationOf(p.Page, p.PageSize, p.Total),
	})
}

//
// Handlers
//

// ListCommitments godoc
// @ID          listCommitments
// @Summary     List commitments
// @Description view=shared (default) lists the caller's department hierarchy, view=mine the commitments the caller is a referent of, view=all every active commitment (directors only). A department filter lists that department, within scope.
// @Tags        Commitments
// @Produce     json
//
// @Param       X-User-ID   header  int     true  "Person id of the caller"  example(12)
// @Param       view        query   string  false "Listing"                  Enums(shared, mine, all) default(shared)
// @Param       search      query   string  false "Free text over description, department and referents"
// @Param       status      query   string  false "Status"                   example(Pendiente)
// @Param       priority    query   string  false "Priority"                 example(Alta)
// @Param       due         query   string  false "Due date (YYYY-MM-DD)"    format(date)
// @Param       progress    query   string  false "Progress range min-max"   example(0-50)
// @Param       month       query   string  false "Creation month (name or number)" example(Marzo)
// @Param       year        query   int     false "Creation year"
// @Param       area        query   int     false "Area id"
// @Param       department  query   int     false "Department id"
// @Param       order       query   string  false "Due date ordering"        Enums(asc, desc)
// @Param       page        query   int     false "Page number"              minimum(1) default(1)
// @Param       page_size   query   int     false "Items per page"           minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListCommitmentsResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Unauthenticated"
// @Failure     403  {object} handlers.ErrorResponse "Outside the caller's scope"
// @Router      /commitments [get]
func (h *Handlers) ListCommitments(c *gin.Context) {
	a, okA := actor(c)
	if !okA {
		return
	}
	q, f, okF := listFilter(c)
	if !okF {
		return
	}
	ctx := c.Request.Context()

	var (
		page *services.CommitmentPage
		err  error
	)
	switch {
	case q.View == "mine":
		page, err = h.commitments.ListMine(ctx, a, f)
	case q.View == "all":
		page, err = h.commitments.ListAll(ctx, a, f)
	case q.Department != 0:
		page, err = h.commitments.ListByDepartment(ctx, a, q.Department, f)
	default:
		page, err = h.commitments.ListShared(ctx, a, f)
	}
	if err != nil {
		mapServiceError(c, err)
		return
	}
	writePage(c, page)
}

// ListArchivedCommitments godoc
// @ID          listArchivedCommitments
// @Summary     List archived commitments
// @Description Archived commitments within the caller's lifecycle scope, with verifier counts.
// @Tags        Lifecycle
// @Produce     json
// @Param       X-User-ID  header  int  true   "Person id of the caller"
// @Param       page       query   int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query   int  false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.ListCommitmentsResponse
// @Failure     403  {object} handlers.ErrorResponse "Rank not allowed"
// @Router      /commitments/archived [get]
func (h *Handlers) ListArchivedCommitments(c *gin.Context) {
	h.listStored(c, h.commitments.ListArchived)
}

// ListDeletedCommitments godoc
// @ID          listDeletedCommitments
// @Summary     List deleted commitments
// @Description Soft-deleted commitments within the caller's lifecycle scope, with verifier counts.
// @Tags        Lifecycle
// @Produce     json
// @Param       X-User-ID  header  int  true   "Person id of the caller"
// @Param       page       query   int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query   int  false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.ListCommitmentsResponse
// @Failure     403  {object} handlers.ErrorResponse "Rank not allowed"
// @Router      /commitments/deleted [get]
func (h *Handlers) ListDeletedCommitments(c *gin.Context) {
	h.listStored(c, h.commitments.ListDeleted)
}

func (h *Handlers) listStored(c *gin.Context, list func(ctx context.Context, a domain.Actor, f services.ListFilter) (*services.CommitmentPage, error)) {
	a, okA := actor(c)
	if !okA {
		return
	}
	_, f, okF := listFilter(c)
	if !okF {
		return
	}
	page, err := list(c.Request.Context(), a, f)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	writePage(c, page)
}

// CreateCommitment godoc
// @ID          createCommitment
// @Summary     Create a commitment
// @Description Creates a Pendiente commitment at 0% progress. With an Idempotency-Key, a retry returns the commitment created first (200, Idempotent-Replay: true).
// @Tags        Commitments
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  int     true  "Person id of the caller"
// @Param       Idempotency-Key  header  string  false "Key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.CreateCommitmentRequest  true  "Commitment"
//
// @Success     201  {object} services.CommitmentView
// @Success     200  {object} services.CommitmentView "Replayed creation"
// @Header      200  {string} Idempotent-Replay "true"
// @Failure     400  {object} handlers.ErrorResponse "Invalid body"
// @Failure     403  {object} handlers.ErrorResponse "Department outside scope"
// @Router      /commitments [post]
func (h *Handlers) CreateCommitment(c *gin.Context) {
	a, okA := actor(c)
	if !okA {
		return
	}
	ctx := c.Request.Context()

	if id, replay := middleware.ReplayOf(c); replay {
		if v, err := h.commitments.Get(ctx, a, id); err == nil {
			c.Header(middleware.HeaderIdempotentReplay, "true")
			ok(c, http.StatusOK, v)
			return
		}
	}

	var req CreateCommitmentRequest
	if !bindJSON(c, &req) {
		return
	}
	v, err := h.commitments.Create(ctx, a, req.input())
	if err != nil {
		mapServiceError(c, err)
		return
	}
	h.remember(c, a, v.ID)
	ok(c, http.StatusCreated, v)
}

// remember records a keyed creation. Failures only cost the replay.
func (h *Handlers) remember(c *gin.Context, a domain.Actor, resourceID uint) {
	req, has := middleware.IdempotencyFrom(c)
	if !has || h.idem == nil {
		return
	}
	if err := h.idem.Remember(c.Request.Context(), a.PersonID, req.Scope, req.Key, resourceID, http.StatusCreated); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Str("idempotency_key", req.Key).Msg("idempotency record not stored")
	}
}

// GetCommitment godoc
// @ID          getCommitment
// @Summary     Get a commitment
// @Tags        Commitments
// @Produce     json
// @Param       X-User-ID  header  int  true  "Person id of the caller"
// @Param       id         path    int  true  "Commitment id"
// @Success     200  {object} services.CommitmentView
// @Failure     404  {object} handlers.ErrorResponse "Not found or not visible"
// @Router      /commitments/{id} [get]
func (h *Handlers) GetCommitment(c *gin.Context) {
	a, okA := actor(c)
	if !okA {
		return
	}
	id, okID := idParam(c, "id")
	if !okID {
		return
	}
	v, err := h.commitments.Get(c.Request.Context(), a, id)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}

// UpdateCommitment godoc
// @ID          updateCommitment
// @Summary     Update a commitment
// @Description Partial update of status, progress, comments, description, priority and due date. Sending referents also reconciles them; that part needs a director or the department head.
// @Tags        Commitments
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  int  true  "Person id of the caller"
// @Param       id         path    int  true  "Commitment id"
// @Param       body       body    handlers.UpdateCommitmentRequest  true  "Fields to change"
// @Success     200  {object} services.CommitmentView
// @Failure     400  {object} handlers.ErrorResponse "Invalid body"
// @Failure     403  {object} handlers.ErrorResponse "Not allowed to edit"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Failure     422  {object} handlers.ErrorResponse "Principal referent removed"
// @Router      /commitments/{id} [patch]
func (h *Handlers) UpdateCommitment(c *gin.Context) {
	a, okA := actor(c)
	if !okA {
		return
	}
	id, okID := idParam(c, "id")
	if !okID {
		return
	}
	var req UpdateCommitmentRequest
	if !bindJSON(c, &req) {
		return
	}
	v, err := h.commitments.Update(c.Request.Context(), a, id, req.patch())
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}

// ReplaceReferents godoc
// @ID          replaceReferents
// @Summary     Derive a commitment
// @Description Replaces the non-principal referents. The principal referent must be kept.
// @Tags        Commitments
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  int  true  "Person id of the caller"
// @Param       id         path    int  true  "Commitment id"
// @Param       body       body    handlers.ReferentsRequest  true  "Desired referents"
// @Success     200  {object} services.CommitmentView
// @Failure     403  {object} handlers.ErrorResponse "Not allowed to derive"
// @Failure     422  {object} handlers.ErrorResponse "Principal referent removed"
// @Router      /commitments/{id}/referents [put]
func (h *Handlers) ReplaceReferents(c *gin.Context) {
	a, okA := actor(c)
	if !okA {
		return
	}
	id, okID := idParam(c, "id")
	if !okID {
		return
	}
	var req ReferentsRequest
	if !bindJSON(c, &req) {
		return
	}
	v, err := h.commitments.Derive(c.Request.Context(), a, id, req.Referents)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}

// CommitmentHistory godoc
// @ID          commitmentHistory
// @Summary     Audit trail of a commitment
// @Tags        Commitments
// @Produce     json
// @Param       X-User-ID  header  int  true  "Person id of the caller"
// @Param       id         path    int  true  "Commitment id"
// @Success     200  {array}  domain.CommitmentChange
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /commitments/{id}/history [get]
func (h *Handlers) CommitmentHistory(c *gin.Context) {
	a, okA := actor(c)
	if !okA {
		return
	}
	id, okID := idParam(c, "id")
	if !okID {
		return
	}
	changes, err := h.commitments.History(c.Request.Context(), a, id)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, changes)
}
