// Package services – ReportService
//
// This file implements the dashboard figures: global and per-department
// totals, the busiest referents, daily creation counts, lifecycle counts,
// completion percentages and the department hierarchy roll-up. Every figure
// is restricted to the actor's report scope; only the service director may
// ask for all departments.
package services

import (
	"context"
	"math"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
	"github.com/nicoiwnl/SGC-Maule/internal/repo"
)

// ReportQuery selects the data a report covers. Month accepts a Spanish
// month name, a number or "Todos".
type ReportQuery struct {
	All          bool
	DepartmentID uint
	AreaID       uint
	Day          int
	Month        string
	Year         int
}

func (q ReportQuery) period() repo.Period {
	return repo.Period{Day: q.Day, Month: MonthNumber(q.Month), Year: q.Year, AreaID: q.AreaID}
}

// Summary holds the global totals of a scope.
type Summary struct {
	repo.Totals
	People      int64 `json:"people"`
	Departments int64 `json:"departments"`
}

// Percentages are shares of the total in percent, rounded to two decimals.
type Percentages struct {
	Completed float64 `json:"completed"`
	Pending   float64 `json:"pending"`
}

// LifecycleCounts counts commitments per location plus meeting figures.
type LifecycleCounts struct {
	Active                   int64   `json:"active"`
	Archived                 int64   `json:"archived"`
	Deleted                  int64   `json:"deleted"`
	Meetings                 int64   `json:"meetings"`
	AvgCommitmentsPerMeeting float64 `json:"avg_commitments_per_meeting"`
}

// HierarchyNode is one department of a roll-up. Rollup adds the counts of
// every descendant to Own.
type HierarchyNode struct {
	DepartmentID uint        `json:"department_id"`
	Name         string      `json:"name"`
	ParentID     *uint       `json:"parent_id"`
	Level        int         `json:"level"`
	Path         string      `json:"path"`
	Own          repo.Totals `json:"own"`
	Rollup       repo.Totals `json:"rollup"`
}

// MonthReport is the summary of one month/area/year/department selection.
type MonthReport struct {
	Month       string                   `json:"month"`
	Totals      repo.Totals              `json:"totals"`
	Percentages Percentages              `json:"percentages"`
	Departments []repo.DepartmentSummary `json:"departments"`
}

// ReportService computes scoped aggregates.
type ReportService struct {
	DB *gorm.DB
}

// Percent returns part as a percentage of total, 0 when total is 0.
func Percent(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(part)*10000/float64(total)) / 100
}

// PercentagesOf converts t into completion percentages.
func PercentagesOf(t repo.Totals) Percentages {
	return Percentages{Completed: Percent(t.Completed, t.Total), Pending: Percent(t.Pending, t.Total)}
}

// scope resolves the department ids a report covers; nil means all.
// Asking for a department outside the actor's scope is refused.
func (s *ReportService) scope(ctx context.Context, a domain.Actor, q ReportQuery) ([]uint, error) {
	ids, err := (&ScopeService{DB: s.DB}).ReportScope(ctx, a, q.All)
	if err != nil {
		return nil, err
	}
	if q.DepartmentID == 0 {
		return ids, nil
	}
	if ids != nil && !slices.Contains(ids, q.DepartmentID) && !a.IsTopBoss {
		return nil, ErrPermission
	}
	return []uint{q.DepartmentID}, nil
}

func (s *ReportService) span(ctx context.Context, op string, a domain.Actor) (context.Context, trace.Span) {
	return otel.Tracer("services/ReportService").Start(ctx, op,
		trace.WithAttributes(attribute.Int64("actor.id", int64(a.PersonID))),
	)
}

// Summary returns commitment totals with people and department counts.
func (s *ReportService) Summary(ctx context.Context, a domain.Actor, q ReportQuery) (*Summary, error) {
	ctx, span := s.span(ctx, "Summary", a)
	defer span.End()

	ids, err := s.scope(ctx, a, q)
	if err != nil {
		return nil, err
	}
	out := &Summary{}
	if out.Totals, err = repo.CommitmentTotals(ctx, s.DB, ids, q.period()); err != nil {
		return nil, err
	}
	if ids != nil && len(ids) == 0 {
		return out, nil
	}
	if out.People, err = repo.CountPeople(ctx, s.DB, ids); err != nil {
		return nil, err
	}
	if out.Departments, err = repo.CountDepartments(ctx, s.DB, ids); err != nil {
		return nil, err
	}
	return out, nil
}

// ByDepartment returns totals for each department in scope.
func (s *ReportService) ByDepartment(ctx context.Context, a domain.Actor, q ReportQuery) ([]repo.DepartmentSummary, error) {
	ctx, span := s.span(ctx, "ByDepartment", a)
	defer span.End()

	ids, err := s.scope(ctx, a, q)
	if err != nil {
		return nil, err
	}
	return repo.DepartmentSummaries(ctx, s.DB, ids, q.period())
}

// TopPeople returns the ten referents with the most pending commitments.
func (s *ReportService) TopPeople(ctx context.Context, a domain.Actor, q ReportQuery) ([]repo.PersonLoad, error) {
	ctx, span := s.span(ctx, "TopPeople", a)
	defer span.End()

	ids, err := s.scope(ctx, a, q)
	if err != nil {
		return nil, err
	}
	return repo.TopPeople(ctx, s.DB, ids, 10)
}

// PerDay returns creation counts per day filtered by day, month and year.
func (s *ReportService) PerDay(ctx context.Context, a domain.Actor, q ReportQuery) ([]repo.DayCount, error) {
	ctx, span := s.span(ctx, "PerDay", a)
	defer span.End()

	ids, err := s.scope(ctx, a, q)
	if err != nil {
		return nil, err
	}
	return repo.DailyCounts(ctx, s.DB, ids, q.period())
}

// ArchivedDeletedCounts counts commitments per location in scope, together
// with the meeting count and average commitments per meeting.
func (s *ReportService) ArchivedDeletedCounts(ctx context.Context, a domain.Actor, q ReportQuery) (*LifecycleCounts, error) {
	ctx, span := s.span(ctx, "ArchivedDeletedCounts", a)
	defer span.End()

	ids, err := s.scope(ctx, a, q)
	if err != nil {
		return nil, err
	}
	byLoc, err := repo.LocationCounts(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}
	meetings, avg, err := s.AvgCommitmentsPerMeeting(ctx)
	if err != nil {
		return nil, err
	}
	return &LifecycleCounts{
		Active:                   byLoc[domain.LocationActive],
		Archived:                 byLoc[domain.LocationArchived],
		Deleted:                  byLoc[domain.LocationDeleted],
		Meetings:                 meetings,
		AvgCommitmentsPerMeeting: avg,
	}, nil
}

// AvgCommitmentsPerMeeting returns the meeting count and the average number
// of linked commitments per meeting, 0 when there are no meetings.
func (s *ReportService) AvgCommitmentsPerMeeting(ctx context.Context) (int64, float64, error) {
	meetings, links, err := repo.MeetingLinkCounts(ctx, s.DB)
	if err != nil {
		return 0, 0, err
	}
	if meetings == 0 {
		return 0, 0, nil
	}
	return meetings, math.Round(float64(links)*100/float64(meetings)) / 100, nil
}

// CompletionPercentages returns the completed and pending shares in scope.
func (s *ReportService) CompletionPercentages(ctx context.Context, a domain.Actor, q ReportQuery) (*Percentages, error) {
	ctx, span := s.span(ctx, "CompletionPercentages", a)
	defer span.End()

	ids, err := s.scope(ctx, a, q)
	if err != nil {
		return nil, err
	}
	t, err := repo.CommitmentTotals(ctx, s.DB, ids, q.period())
	if err != nil {
		return nil, err
	}
	p := PercentagesOf(t)
	return &p, nil
}

// MonthSummary returns totals, percentages and per-department counts for
// the selected month, area, year and department.
func (s *ReportService) MonthSummary(ctx context.Context, a domain.Actor, q ReportQuery) (*MonthReport, error) {
	ctx, span := s.span(ctx, "MonthSummary", a)
	defer span.End()

	ids, err := s.scope(ctx, a, q)
	if err != nil {
		return nil, err
	}
	p := q.period()
	out := &MonthReport{Month: MonthName(p.Month)}
	if out.Month == "" {
		out.Month = AllMonths
	}
	if out.Totals, err = repo.CommitmentTotals(ctx, s.DB, ids, p); err != nil {
		return nil, err
	}
	out.Percentages = PercentagesOf(out.Totals)
	if out.Departments, err = repo.DepartmentSummaries(ctx, s.DB, ids, p); err != nil {
		return nil, err
	}
	return out, nil
}

// HierarchyRollup returns rootID and its descendants with own and
// cumulative totals. rootID 0 starts at the actor's department. Nodes
// outside the actor's scope are left out.
func (s *ReportService) HierarchyRollup(ctx context.Context, a domain.Actor, rootID uint, q ReportQuery) ([]HierarchyNode, error) {
	ctx, span := s.span(ctx, "HierarchyRollup", a)
	defer span.End()

	if rootID == 0 {
		if !a.HasDepartment {
			return []HierarchyNode{}, nil
		}
		rootID = a.DepartmentID
	}
	q.DepartmentID = 0
	q.All = true
	scope, err := s.scope(ctx, a, q)
	if err != nil {
		return nil, err
	}
	if scope != nil && !slices.Contains(scope, rootID) {
		return nil, ErrPermission
	}

	levels, err := repo.DescendantDepartments(ctx, s.DB, rootID)
	if err != nil {
		return nil, err
	}
	if len(levels) == 0 {
		return nil, ErrNotFound
	}
	ids := make([]uint, 0, len(levels))
	kept := levels[:0:0]
	for _, l := range levels {
		if scope == nil || slices.Contains(scope, l.ID) {
			ids = append(ids, l.ID)
			kept = append(kept, l)
		}
	}
	sums, err := repo.DepartmentSummaries(ctx, s.DB, ids, q.period())
	if err != nil {
		return nil, err
	}
	own := make(map[uint]repo.Totals, len(sums))
	for _, d := range sums {
		own[d.DepartmentID] = d.Totals
	}
	return rollup(kept, own, rootID), nil
}

// rollup builds HierarchyNodes from a traversal. Parents outside levels end
// the path; a cycle is cut at the first repeated department.
func rollup(levels []repo.DepartmentLevel, own map[uint]repo.Totals, rootID uint) []HierarchyNode {
	byID := make(map[uint]repo.DepartmentLevel, len(levels))
	for _, l := range levels {
		byID[l.ID] = l
	}
	ancestors := func(id uint) []repo.DepartmentLevel {
		var chain []repo.DepartmentLevel
		seen := map[uint]bool{}
		for cur, ok := byID[id]; ok && !seen[cur.ID]; cur, ok = byID[derefParent(cur.ParentID)] {
			seen[cur.ID] = true
			chain = append(chain, cur)
			if cur.ID == rootID {
				break
			}
		}
		return chain
	}

	nodes := make([]HierarchyNode, len(levels))
	index := make(map[uint]int, len(levels))
	for i, l := range levels {
		chain := ancestors(l.ID)
		names := make([]string, len(chain))
		for j, c := range chain {
			names[len(chain)-1-j] = c.Name
		}
		nodes[i] = HierarchyNode{
			DepartmentID: l.ID,
			Name:         l.Name,
			ParentID:     l.ParentID,
			Level:        l.Level,
			Path:         strings.Join(names, " > "),
			Own:          own[l.ID],
		}
		index[l.ID] = i
	}
	for _, l := range levels {
		t := own[l.ID]
		for _, anc := range ancestors(l.ID) {
			n := &nodes[index[anc.ID]]
			n.Rollup.Total += t.Total
			n.Rollup.Completed += t.Completed
			n.Rollup.Pending += t.Pending
		}
	}
	return nodes
}

func derefParent(p *uint) uint {
	if p == nil {
		return 0
	}
	return *p
}
