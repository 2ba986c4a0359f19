// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the aggregate queries behind the
// dashboards: totals, per-department and per-person counts, daily series
// and lifecycle counts. Only active commitments are counted unless a
// function says otherwise.
package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
)

// Period restricts aggregates by date parts and area. Month and year apply
// to the due date, Day/Month/Year in DailyCounts to the creation time.
// Zero values mean no restriction.
type Period struct {
	Day    int
	Month  int
	Year   int
	AreaID uint
}

// Totals are commitment counts split by completion.
type Totals struct {
	Total     int64 `json:"total"`
	Completed int64 `json:"completed"`
	Pending   int64 `json:"pending"`
}

// DepartmentSummary holds Totals for one department.
type DepartmentSummary struct {
	DepartmentID uint   `json:"department_id"`
	Name         string `json:"name"`
	Totals
}

// PersonLoad holds Totals for one referent.
type PersonLoad struct {
	PersonID uint   `json:"person_id"`
	Name     string `json:"name"`
	LastName string `json:"last_name"`
	Totals
}

// DayCount is the number of commitments created on Day (YYYY-MM-DD).
type DayCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

const totalsSelect = "COUNT(c.id) AS total, " +
	"COALESCE(SUM(CASE WHEN c.status = 'Completado' THEN 1 ELSE 0 END), 0) AS completed, " +
	"COALESCE(SUM(CASE WHEN c.id IS NOT NULL AND c.status <> 'Completado' THEN 1 ELSE 0 END), 0) AS pending"

// periodConds renders the due-date and area conditions for alias c.
func periodConds(db *gorm.DB, p Period) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if p.Month > 0 {
		conds = append(conds, monthExpr(db, "c.due_date")+" = ?")
		args = append(args, p.Month)
	}
	if p.Year > 0 {
		conds = append(conds, yearExpr(db, "c.due_date")+" = ?")
		args = append(args, p.Year)
	}
	if p.AreaID != 0 {
		conds = append(conds, "c.area_id = ?")
		args = append(args, p.AreaID)
	}
	return strings.Join(conds, " AND "), args
}

// CommitmentTotals counts active commitments, optionally limited to
// deptIDs (nil = all departments).
func CommitmentTotals(ctx context.Context, db *gorm.DB, deptIDs []uint, p Period) (Totals, error) {
	var out Totals
	if deptIDs != nil && len(deptIDs) == 0 {
		return out, nil
	}
	q := db.WithContext(ctx).
		Table("commitment AS c").
		Select(totalsSelect).
		Where("c.location = ?", domain.LocationActive)
	if deptIDs != nil {
		q = q.Where("c.department_id IN ?", deptIDs)
	}
	if cond, args := periodConds(db, p); cond != "" {
		q = q.Where(cond, args...)
	}
	err := q.Scan(&out).Error
	return out, err
}

// DepartmentSummaries returns Totals for every department in deptIDs (nil =
// all), including departments with no commitments, ordered by name.
func DepartmentSummaries(ctx context.Context, db *gorm.DB, deptIDs []uint, p Period) ([]DepartmentSummary, error) {
	out := []DepartmentSummary{}
	if deptIDs != nil && len(deptIDs) == 0 {
		return out, nil
	}
	on := "c.department_id = d.id AND c.location = ?"
	args := []any{domain.LocationActive}
	if cond, pargs := periodConds(db, p); cond != "" {
		on += " AND " + cond
		args = append(args, pargs...)
	}
	q := db.WithContext(ctx).
		Table("department AS d").
		Select("d.id AS department_id, d.name, "+totalsSelect).
		Joins("LEFT JOIN commitment c ON "+on, args...)
	if deptIDs != nil {
		q = q.Where("d.id IN ?", deptIDs)
	}
	err := q.Group("d.id, d.name").Order("d.name asc, d.id asc").Scan(&out).Error
	return out, err
}

// TopPeople returns referents ordered by pending commitments, then total.
func TopPeople(ctx context.Context, db *gorm.DB, deptIDs []uint, limit int) ([]PersonLoad, error) {
	out := []PersonLoad{}
	if deptIDs != nil && len(deptIDs) == 0 {
		return out, nil
	}
	if limit <= 0 {
		limit = 10
	}
	q := db.WithContext(ctx).
		Table("person AS p").
		Select("p.id AS person_id, p.name, p.last_name, "+totalsSelect).
		Joins("JOIN commitment_referent r ON r.person_id = p.id").
		Joins("JOIN commitment c ON c.id = r.commitment_id AND c.location = ?", domain.LocationActive)
	if deptIDs != nil {
		q = q.Where("c.department_id IN ?", deptIDs)
	}
	err := q.Group("p.id, p.name, p.last_name").
		Order("pending desc, total desc, p.name asc").
		Limit(limit).
		Scan(&out).Error
	return out, err
}

// DailyCounts returns the number of active commitments created per day.
func DailyCounts(ctx context.Context, db *gorm.DB, deptIDs []uint, p Period) ([]DayCount, error) {
	out := []DayCount{}
	if deptIDs != nil && len(deptIDs) == 0 {
		return out, nil
	}
	day := dateExpr(db, "c.created_at")
	q := db.WithContext(ctx).
		Table("commitment AS c").
		Select(day+" AS day, COUNT(*) AS count").
		Where("c.location = ?", domain.LocationActive)
	if deptIDs != nil {
		q = q.Where("c.department_id IN ?", deptIDs)
	}
	if p.Day > 0 {
		q = q.Where(dayOfMonthExpr(db, "c.created_at")+" = ?", p.Day)
	}
	if p.Month > 0 {
		q = q.Where(monthExpr(db, "c.created_at")+" = ?", p.Month)
	}
	if p.Year > 0 {
		q = q.Where(yearExpr(db, "c.created_at")+" = ?", p.Year)
	}
	err := q.Group(day).Order("day asc").Scan(&out).Error
	return out, err
}

// LocationCounts returns the number of commitments per location.
func LocationCounts(ctx context.Context, db *gorm.DB, deptIDs []uint) (map[domain.Location]int64, error) {
	out := map[domain.Location]int64{
		domain.LocationActive:   0,
		domain.LocationArchived: 0,
		domain.LocationDeleted:  0,
	}
	if deptIDs != nil && len(deptIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		Location string
		N        int64
	}
	q := db.WithContext(ctx).
		Model(&domain.Commitment{}).
		Select("location, COUNT(*) AS n")
	if deptIDs != nil {
		q = q.Where("department_id IN ?", deptIDs)
	}
	if err := q.Group("location").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[domain.Location(r.Location)] = r.N
	}
	return out, nil
}

// MeetingLinkCounts returns the number of meetings and of commitment links
// to meetings.
func MeetingLinkCounts(ctx context.Context, db *gorm.DB) (meetings, links int64, err error) {
	if meetings, err = CountMeetings(ctx, db); err != nil {
		return 0, 0, err
	}
	err = db.WithContext(ctx).Model(&domain.MeetingCommitment{}).Count(&links).Error
	return meetings, links, err
}
