// Org chart HTTP handlers: people, ranks, departments and the area/origin
// catalogs.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
	"github.com/nicoiwnl/SGC-Maule/internal/repo"
	"github.com/nicoiwnl/SGC-Maule/internal/services"
	"github.com/nicoiwnl/SGC-Maule/internal/utils"
)

// UpdatePersonRequest is a partial person update. department_id moves the
// person to another department.
type UpdatePersonRequest struct {
	Name         *string `json:"name,omitempty"          binding:"omitempty,max=100"`
	LastName     *string `json:"last_name,omitempty"     binding:"omitempty,max=100"`
	Email        *string `json:"email,omitempty"         binding:"omitempty,email"`
	Title        *string `json:"title,omitempty"         binding:"omitempty,max=200"`
	Profession   *string `json:"profession,omitempty"    binding:"omitempty,max=200"`
	PhoneExt     *string `json:"phone_ext,omitempty"     binding:"omitempty,max=20"`
	Rank         *string `json:"rank,omitempty"          binding:"omitempty,max=100" example:"JEFE/A DE DEPARTAMENTO"`
	DepartmentID *uint   `json:"department_id,omitempty"`
	IsDirector   *bool   `json:"is_director,omitempty"`
}

// DepartmentRequest creates or updates a department. A null parent makes it
// a root.
type DepartmentRequest struct {
	Name     string `json:"name"      binding:"required,max=200" example:"Informática"`
	ParentID *uint  `json:"parent_id"                            example:"1"`
}

// CatalogRequest creates or updates an area or origin. A null department
// makes the entry global.
type CatalogRequest struct {
	Name         string `json:"name"          binding:"required,max=200" example:"Recursos Humanos"`
	DepartmentID *uint  `json:"department_id"`
}

// ListPeople godoc
// @ID          listPeople
// @Summary     List people
// @Tags        People
// @Produce     json
// @Param       X-User-ID   header  int     true   "Person id of the caller"
// @Param       search      query   string  false  "Name or last name"
// @Param       department  query   int     false  "Department id"
// @Param       rank        query   string  false  "Rank"
// @Success     200  {array}  repo.PersonRow
// @Router      /people [get]
func (h *Handlers) ListPeople(c *gin.Context) {
	if _, okA := actor(c); !okA {
		return
	}
	rows, err := h.org.ListPeople(c.Request.Context(), repo.PersonFilter{
		Search:       strings.TrimSpace(c.Query("search")),
		DepartmentID: utils.UintDefault(c.Query("department"), 0),
		Rank:         strings.TrimSpace(c.Query("rank")),
	})
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, rows)
}

// SuggestPeople godoc
// @ID          suggestPeople
// @Summary     Suggest people for a partial name
// @Description Accent-insensitive token match, best first.
// @Tags        People
// @Produce     json
// @Param       X-User-ID  header  int     true   "Person id of the caller"
// @Param       q          query   string  true   "Partial name"  example(munoz)
// @Param       k          query   int     false  "Max results"   minimum(1) maximum(50) default(10)
// @Success     200  {array}  services.PersonSuggestion
// @Failure     400  {object} handlers.ErrorResponse "Missing q"
// @Router      /people/suggest [get]
func (h *Handlers) SuggestPeople(c *gin.Context) {
	if _, okA := actor(c); !okA {
		return
	}
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "q is required")
		return
	}
	k := min(max(utils.AtoiDefault(c.Query("k"), 10), 1), 50)
	out, err := h.org.SuggestPeople(c.Request.Context(), q, k)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}

// UpdatePerson godoc
// @ID          updatePerson
// @Summary     Update a person
// @Tags        People
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  int  true  "Person id of the caller"
// @Param       id         path    int  true  "Person id"
// @Param       body       body    handlers.UpdatePersonRequest  true  "Fields to change"
// @Success     200  {object} domain.Person
// @Failure     403  {object} handlers.ErrorResponse "Directors only"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /people/{id} [patch]
func (h *Handlers) UpdatePerson(c *gin.Context) {
	a, okA := actor(c)
	if !okA {
		return
	}
	id, okID := idParam(c, "id")
	if !okID {
		return
	}
	var req UpdatePersonRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.org.UpdatePerson(c.Request.Context(), a, id, services.PersonPatch(req))
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// ListRanks godoc
// @ID          listRanks
// @Summary     Distinct ranks in use
// @Tags        People
// @Produce     json
// @Param       X-User-ID  header  int  true  "Person id of the caller"
// @Success     200  {array}  string
// @Router      /ranks [get]
func (h *Handlers) ListRanks(c *gin.Context) {
	if _, okA := actor(c); !okA {
		return
	}
	ranks, err := h.org.Ranks(c.Request.Context())
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, ranks)
}

// ListDepartments godoc
// @ID          listDepartments
// @Summary     List departments
// @Tags        Departments
// @Produce     json
// @Param       X-User-ID  header  int  true  "Person id of the caller"
// @Success     200  {array}  domain.Department
// @Router      /departments [get]
func (h *Handlers) ListDepartments(c *gin.Context) {
	if _, okA := actor(c); !okA {
		return
	}
	ds, err := h.org.ListDepartments(c.Request.Context())
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, ds)
}

// CreateDepartment godoc
// @ID          createDepartment
// @Summary     Create a department
// @Tags        Departments
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  int  true  "Person id of the caller"
// @Param       body       body    handlers.DepartmentRequest  true  "Department"
// @Success     201  {object} domain.Department
// @Failure     400  {object} handlers.ErrorResponse "Invalid body or unknown parent"
// @Failure     403  {object} handlers.ErrorResponse "Directors only"
// @Router      /departments [post]
func (h *Handlers) CreateDepartment(c *gin.Context) {
	a, okA := actor(c)
	if !okA {
		return
	}
	var req DepartmentRequest
	if !bindJSON(c, &req) {
		return
	}
	d, err := h.org.CreateDepartment(c.Request.Context(), a, req.Name, req.ParentID)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusCreated, d)
}

// UpdateDepartment godoc
// @ID          updateDepartment
// @Summary     Rename or re-parent a department
// @Description Re-parenting under one of its own descendants is rejected.
// @Tags        Departments
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  int  true  "Person id of the caller"
// @Param       id         path    int  true  "Department id"
// @Param       body       body    handlers.DepartmentRequest  true  "Department"
// @Success     200  {object} domain.Department
// @Failure     400  {object} handlers.ErrorResponse "Would create a cycle"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /departments/{id} [patch]
func (h *Handlers) UpdateDepartment(c *gin.Context) {
	a, okA := actor(c)
	if !okA {
		return
	}
	id, okID := idParam(c, "id")
	if !okID {
		return
	}
	var req DepartmentRequest
	if !bindJSON(c, &req) {
		return
	}
	d, err := h.org.UpdateDepartment(c.Request.Context(), a, id, req.Name, req.ParentID)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// DepartmentChain godoc
// @ID          departmentChain
// @Summary     A department and its ancestors
// @Tags        Departments
// @Produce     json
// @Param       X-User-ID  header  int  true  "Person id of the caller"
// @Param       id         path    int  true  "Department id"
// @Success     200  {array}  repo.DepartmentLevel
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /departments/{id}/chain [get]
func (h *Handlers) DepartmentChain(c *gin.Context) {
	if _, okA := actor(c); !okA {
		return
	}
	id, okID := idParam(c, "id")
	if !okID {
		return
	}
	chain, err := h.org.DepartmentChain(c.Request.Context(), id)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, chain)
}

//
// Catalogs
//

// catalogOps adapts the area or origin methods of OrgService to one shape.
type catalogOps[T any] struct {
	list   func(ctx context.Context, deptID uint) ([]T, error)
	create func(ctx context.Context, a domain.Actor, name string, deptID *uint) (*T, error)
	update func(ctx context.Context, a domain.Actor, id uint, name string, deptID *uint) (*T, error)
	remove func(ctx context.Context, a domain.Actor, id uint) error
}

func (h *Handlers) areaOps() catalogOps[domain.Area] {
	return catalogOps[domain.Area]{h.org.ListAreas, h.org.CreateArea, h.org.UpdateArea, h.org.DeleteArea}
}

func (h *Handlers) originOps() catalogOps[domain.Origin] {
	return catalogOps[domain.Origin]{h.org.ListOrigins, h.org.CreateOrigin, h.org.UpdateOrigin, h.org.DeleteOrigin}
}

func (ops catalogOps[T]) listHandler(c *gin.Context) {
	if _, okA := actor(c); !okA {
		return
	}
	items, err := ops.list(c.Request.Context(), utils.UintDefault(c.Query("department"), 0))
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

func (ops catalogOps[T]) createHandler(c *gin.Context) {
	a, okA := actor(c)
	if !okA {
		return
	}
	var req CatalogRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := ops.create(c.Request.Context(), a, req.Name, req.DepartmentID)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusCreated, item)
}

func (ops catalogOps[T]) updateHandler(c *gin.Context) {
	a, okA := actor(c)
	if !okA {
		return
	}
	id, okID := idParam(c, "id")
	if !okID {
		return
	}
	var req CatalogRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := ops.update(c.Request.Context(), a, id, req.Name, req.DepartmentID)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, item)
}

func (ops catalogOps[T]) deleteHandler(c *gin.Context) {
	a, okA := actor(c)
	if !okA {
		return
	}
	id, okID := idParam(c, "id")
	if !okID {
		return
	}
	if err := ops.remove(c.Request.Context(), a, id); err != nil {
		mapServiceError(c, err)
		return
	}
	noContent(c)
}

// ListAreas godoc
// @ID          listAreas
// @Summary     Areas visible to a department
// @Description Entries owned by the department, by its parent, or global.
// @Tags        Catalogs
// @Produce     json
// @Param       X-User-ID   header  int  true   "Person id of the caller"
// @Param       department  query   int  false  "Department id; omitted lists global entries only"
// @Success     200  {array}  domain.Area
// @Router      /areas [get]
func (h *Handlers) ListAreas(c *gin.Context) { h.areaOps().listHandler(c) }

// CreateArea godoc
// @ID          createArea
// @Summary     Create an area
// @Tags        Catalogs
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  int  true  "Person id of the caller"
// @Param       body       body    handlers.CatalogRequest  true  "Area"
// @Success     201  {object} domain.Area
// @Failure     403  {object} handlers.ErrorResponse "Base rank"
// @Router      /areas [post]
func (h *Handlers) CreateArea(c *gin.Context) { h.areaOps().createHandler(c) }

// UpdateArea godoc
// @ID          updateArea
// @Summary     Update an area
// @Tags        Catalogs
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  int  true  "Person id of the caller"
// @Param       id         path    int  true  "Area id"
// @Param       body       body    handlers.CatalogRequest  true  "Area"
// @Success     200  {object} domain.Area
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /areas/{id} [patch]
func (h *Handlers) UpdateArea(c *gin.Context) { h.areaOps().updateHandler(c) }

// DeleteArea godoc
// @ID          deleteArea
// @Summary     Delete an area
// @Tags        Catalogs
// @Param       X-User-ID  header  int  true  "Person id of the caller"
// @Param       id         path    int  true  "Area id"
// @Success     204  {string} string "No Content"
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /areas/{id} [delete]
func (h *Handlers) DeleteArea(c *gin.Context) { h.areaOps().deleteHandler(c) }

// ListOrigins godoc
// @ID          listOrigins
// @Summary     Origins visible to a department
// @Tags        Catalogs
// @Produce     json
// @Param       X-User-ID   header  int  true   "Person id of the caller"
// @Param       department  query   int  false  "Department id"
// @Success     200  {array}  domain.Origin
// @Router      /origins [get]
func (h *Handlers) ListOrigins(c *gin.Context) { h.originOps().listHandler(c) }

// CreateOrigin godoc
// @ID          createOrigin
// @Summary     Create an origin
// @Tags        Catalogs
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  int  true  "Person id of the caller"
// @Param       body       body    handlers.CatalogRequest  true  "Origin"
// @Success     201  {object} domain.Origin
// @Router      /origins [post]
func (h *Handlers) CreateOrigin(c *gin.Context) { h.originOps().createHandler(c) }

// UpdateOrigin godoc
// @ID          updateOrigin
// @Summary     Update an origin
// @Tags        Catalogs
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  int  true  "Person id of the caller"
// @Param       id         path    int  true  "Origin id"
// @Param       body       body    handlers.CatalogRequest  true  "Origin"
// @Success     200  {object} domain.Origin
// @Router      /origins/{id} [patch]
func (h *Handlers) UpdateOrigin(c *gin.Context) { h.originOps().updateHandler(c) }

// DeleteOrigin godoc
// @ID          deleteOrigin
// @Summary     Delete an origin
// @Tags        Catalogs
// @Param       X-User-ID  header  int  true  "Person id of the caller"
// @Param       id         path    int  true  "Origin id"
// @Success     204  {string} string "No Content"
// @Router      /origins/{id} [delete]
func (h *Handlers) DeleteOrigin(c *gin.Context) { h.originOps().deleteHandler(c) }
