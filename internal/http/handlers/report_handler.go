package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
	"github.com/nicoiwnl/SGC-Maule/internal/services"
	"github.com/nicoiwnl/SGC-Maule/internal/utils"
)

// ReportQueryParams selects what a report covers. scope=all asks for every
// department and is honored for the service director only.
type ReportQueryParams struct {
	Scope      string `form:"scope"      binding:"omitempty,oneof=all own"`
	Department uint   `form:"department"`
	Area       uint   `form:"area"`
	Day        int    `form:"day"        binding:"omitempty,min=1,max=31"`
	Month      string `form:"month"      binding:"max=20"`
	Year       int    `form:"year"       binding:"omitempty,min=1900,max=9999"`
}

func (p ReportQueryParams) query() services.ReportQuery {
	return services.ReportQuery{
		All:          p.Scope == "all",
		DepartmentID: p.Department,
		AreaID:       p.Area,
		Day:          p.Day,
		Month:        p.Month,
		Year:         p.Year,
	}
}

// report binds the query, runs fn and writes its result.
func report[T any](c *gin.Context, fn func(context.Context, domain.Actor, services.ReportQuery) (T, error)) {
	a, okA := actor(c)
	if !okA {
		return
	}
	var p ReportQueryParams
	if !bindQuery(c, &p) {
		return
	}
	out, err := fn(c.Request.Context(), a, p.query())
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}

// ReportSummary godoc
// @ID          reportSummary
// @Summary     Totals for the caller's report scope
// @Tags        Reports
// @Produce     json
// @Param       X-User-ID   header  int     true   "Person id of the caller"
// @Param       scope       query   string  false  "all for every department"  Enums(all, own)
// @Param       department  query   int     false  "Department id"
// @Param       area        query   int     false  "Area id"
// @Param       day         query   int     false  "Day of month"
// @Param       month       query   string  false  "Month name or number, or Todos"
// @Param       year        query   int     false  "Year"
// @Success     200  {object} services.Summary
// @Failure     403  {object} handlers.ErrorResponse "Department outside scope"
// @Router      /reports/summary [get]
func (h *Handlers) ReportSummary(c *gin.Context) { report(c, h.reports.Summary) }

// ReportDepartments godoc
// @ID          reportDepartments
// @Summary     Totals per department
// @Tags        Reports
// @Produce     json
// @Param       X-User-ID  header  int     true   "Person id of the caller"
// @Param       scope      query   string  false  "all for every department"
// @Param       month      query   string  false  "Month"
// @Param       year       query   int     false  "Year"
// @Success     200  {array}  repo.DepartmentSummary
// @Router      /reports/departments [get]
func (h *Handlers) ReportDepartments(c *gin.Context) { report(c, h.reports.ByDepartment) }

// ReportPeople godoc
// @ID          reportPeople
// @Summary     People with the most assigned commitments
// @Tags        Reports
// @Produce     json
// @Param       X-User-ID  header  int     true   "Person id of the caller"
// @Param       scope      query   string  false  "all for every department"
// @Success     200  {array}  repo.PersonLoad
// @Router      /reports/people [get]
func (h *Handlers) ReportPeople(c *gin.Context) { report(c, h.reports.TopPeople) }

// ReportDaily godoc
// @ID          reportDaily
// @Summary     Commitments created per day
// @Tags        Reports
// @Produce     json
// @Param       X-User-ID  header  int     true   "Person id of the caller"
// @Param       month      query   string  false  "Month"
// @Param       year       query   int     false  "Year"
// @Success     200  {array}  repo.DayCount
// @Router      /reports/daily [get]
func (h *Handlers) ReportDaily(c *gin.Context) { report(c, h.reports.PerDay) }

// ReportLifecycle godoc
// @ID          reportLifecycle
// @Summary     Active, archived and deleted counts
// @Tags        Reports
// @Produce     json
// @Param       X-User-ID  header  int     true   "Person id of the caller"
// @Param       scope      query   string  false  "all for every department"
// @Success     200  {object} services.LifecycleCounts
// @Router      /reports/lifecycle [get]
func (h *Handlers) ReportLifecycle(c *gin.Context) { report(c, h.reports.ArchivedDeletedCounts) }

// ReportPercentages godoc
// @ID          reportPercentages
// @Summary     Completed and pending shares
// @Tags        Reports
// @Produce     json
// @Param       X-User-ID  header  int     true   "Person id of the caller"
// @Param       scope      query   string  false  "all for every department"
// @Success     200  {object} services.Percentages
// @Router      /reports/percentages [get]
func (h *Handlers) ReportPercentages(c *gin.Context) { report(c, h.reports.CompletionPercentages) }

// ReportMonth godoc
// @ID          reportMonth
// @Summary     Summary of one month
// @Tags        Reports
// @Produce     json
// @Param       X-User-ID   header  int     true   "Person id of the caller"
// @Param       month       query   string  false  "Month name or number, or Todos"  example(marzo)
// @Param       area        query   int     false  "Area id"
// @Param       year        query   int     false  "Year"
// @Param       department  query   int     false  "Department id"
// @Success     200  {object} services.MonthReport
// @Router      /reports/month [get]
func (h *Handlers) ReportMonth(c *gin.Context) { report(c, h.reports.MonthSummary) }

// ReportHierarchy godoc
// @ID          reportHierarchy
// @Summary     Department tree with rolled-up totals
// @Tags        Reports
// @Produce     json
// @Param       X-User-ID  header  int     true   "Person id of the caller"
// @Param       root       query   int     false  "Root department; defaults to the caller's"
// @Param       month      query   string  false  "Month"
// @Param       year       query   int     false  "Year"
// @Success     200  {array}  services.HierarchyNode
// @Failure     403  {object} handlers.ErrorResponse "Root outside scope"
// @Router      /reports/hierarchy [get]
func (h *Handlers) ReportHierarchy(c *gin.Context) {
	var root uint
	if v := c.Query("root"); v != "" {
		id, err := utils.ParseID(v)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "root must be a positive integer")
			return
		}
		root = id
	}
	report(c, func(ctx context.Context, a domain.Actor, q services.ReportQuery) ([]services.HierarchyNode, error) {
		return h.reports.HierarchyRollup(ctx, a, root, q)
	})
}
