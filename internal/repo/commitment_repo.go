// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for commitments:
// creation, filtered listings, field updates, lifecycle moves and purges.
//
// All functions are context-aware and accept a *gorm.DB handle, so they can
// run inside a caller's transaction. They hold no business rules: location
// and version checks are expressed as WHERE clauses and reported through
// RowsAffected.
//
// Error semantics:
//   - A missing row yields ErrNotFound (gorm.ErrRecordNotFound).
//   - Other DB errors are returned unchanged.
package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CommitmentFilter selects commitments for listings. Zero values mean "no
// restriction" except for Location, which defaults to active, and
// DepartmentIDs, which restricts when Scoped is true even if it is empty.
type CommitmentFilter struct {
	Location      domain.Location
	Scoped        bool
	DepartmentIDs []uint
	ReferentID    uint
	MeetingID     uint
	Search        string
	Status        string
	Priority      string
	DueDate       *time.Time
	ProgressMin   *int
	ProgressMax   *int
	Month         int
	Year          int
	AreaID        uint
	OrderDue      string // "asc" or "desc"; empty orders by id
	Limit         int
	Offset        int
}

// CommitmentRow is a commitment joined with its classification names.
type CommitmentRow struct {
	domain.Commitment
	DepartmentName string `json:"department_name"`
	AreaName       string `json:"area_name"`
	OriginName     string `json:"origin_name"`
}

// CreateCommitment inserts c. CreatedAt defaults to now (UTC) and Location
// to active.
func CreateCommitment(ctx context.Context, db *gorm.DB, c *domain.Commitment) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.Location == "" {
		c.Location = domain.LocationActive
	}
	if c.Version == 0 {
		c.Version = 1
	}
	return db.WithContext(ctx).Create(c).Error
}

// GetCommitment loads a commitment by id. When loc is non-empty the row
// must also be in that location, otherwise ErrNotFound is returned.
func GetCommitment(ctx context.Context, db *gorm.DB, id uint, loc domain.Location) (*domain.Commitment, error) {
	q := db.WithContext(ctx).Where("id = ?", id)
	if loc != "" {
		q = q.Where("location = ?", loc)
	}
	var c domain.Commitment
	if err := q.First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCommitmentRow loads a commitment with its classification names.
func GetCommitmentRow(ctx context.Context, db *gorm.DB, id uint) (*CommitmentRow, error) {
	var out CommitmentRow
	res := commitmentBase(ctx, db).Where("c.id = ?", id).Limit(1).Scan(&out)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &out, nil
}

// UpdateCommitment applies fields to an active commitment and bumps its
// version. It returns ErrNotFound if the commitment is not active.
func UpdateCommitment(ctx context.Context, db *gorm.DB, id uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	upd := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		upd[k] = v
	}
	upd["version"] = gorm.Expr("version + 1")
	res := db.WithContext(ctx).
		Model(&domain.Commitment{}).
		Where("id = ? AND location = ?", id, domain.LocationActive).
		Updates(upd)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MoveCommitment switches a commitment from one location to another if it
// is still at version. It stamps the move and bumps the version. moved is
// false when no row matched (wrong location or a concurrent change).
func MoveCommitment(ctx context.Context, db *gorm.DB, id uint, from, to domain.Location, version int, actorID uint, at time.Time) (moved bool, err error) {
	res := db.WithContext(ctx).
		Model(&domain.Commitment{}).
		Where("id = ? AND location = ? AND version = ?", id, from, version).
		Updates(map[string]any{
			"location": to,
			"version":  gorm.Expr("version + 1"),
			"moved_at": at,
			"moved_by": actorID,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// PurgeCommitments hard-deletes the commitments among ids that are in one
// of locs, together with their referents, meeting links, verifiers and
// change log. It returns the number of commitments removed.
func PurgeCommitments(ctx context.Context, db *gorm.DB, ids []uint, locs ...domain.Location) (int64, error) {
	if len(ids) == 0 || len(locs) == 0 {
		return 0, nil
	}
	db = db.WithContext(ctx)

	var victims []uint
	if err := db.Model(&domain.Commitment{}).
		Where("id IN ? AND location IN ?", ids, locs).
		Pluck("id", &victims).Error; err != nil {
		return 0, err
	}
	if len(victims) == 0 {
		return 0, nil
	}

	for _, dep := range []any{
		&domain.CommitmentReferent{},
		&domain.MeetingCommitment{},
		&domain.Verifier{},
		&domain.CommitmentChange{},
	} {
		if err := db.Where("commitment_id IN ?", victims).Delete(dep).Error; err != nil {
			return 0, err
		}
	}
	res := db.Where("id IN ?", victims).Delete(&domain.Commitment{})
	return res.RowsAffected, res.Error
}

// LogChange appends an audit entry for a commitment.
func LogChange(ctx context.Context, db *gorm.DB, commitmentID, personID uint, action string, at time.Time) error {
	return db.WithContext(ctx).Create(&domain.CommitmentChange{
		CommitmentID: commitmentID,
		PersonID:     personID,
		Action:       action,
		ChangedAt:    at,
	}).Error
}

// ListChanges returns the audit trail of a commitment, oldest first.
func ListChanges(ctx context.Context, db *gorm.DB, commitmentID uint) ([]domain.CommitmentChange, error) {
	var out []domain.CommitmentChange
	err := db.WithContext(ctx).
		Where("commitment_id = ?", commitmentID).
		Order("changed_at asc, id asc").
		Find(&out).Error
	return out, err
}

// ListCommitments returns commitments matching f.
func ListCommitments(ctx context.Context, db *gorm.DB, f CommitmentFilter) ([]CommitmentRow, error) {
	if f.Scoped && len(f.DepartmentIDs) == 0 {
		return []CommitmentRow{}, nil
	}
	q := applyCommitmentFilter(commitmentBase(ctx, db), db, f)

	switch strings.ToLower(f.OrderDue) {
	case "asc":
		q = q.Order("c.due_date asc").Order("c.id asc")
	case "desc":
		q = q.Order("c.due_date desc").Order("c.id asc")
	default:
		q = q.Order("c.id asc")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}

	out := []CommitmentRow{}
	err := q.Scan(&out).Error
	return out, err
}

// CountCommitments returns the number of commitments matching f, ignoring
// ordering and pagination.
func CountCommitments(ctx context.Context, db *gorm.DB, f CommitmentFilter) (int64, error) {
	if f.Scoped && len(f.DepartmentIDs) == 0 {
		return 0, nil
	}
	var n int64
	q := db.WithContext(ctx).Table("commitment AS c").
		Joins("LEFT JOIN department d ON d.id = c.department_id")
	err := applyCommitmentFilter(q, db, f).Count(&n).Error
	return n, err
}

func commitmentBase(ctx context.Context, db *gorm.DB) *gorm.DB {
	return db.WithContext(ctx).
		Table("commitment AS c").
		Select("c.*, COALESCE(d.name, '') AS department_name, COALESCE(a.name, '') AS area_name, COALESCE(o.name, '') AS origin_name").
		Joins("LEFT JOIN department d ON d.id = c.department_id").
		Joins("LEFT JOIN area a ON a.id = c.area_id").
		Joins("LEFT JOIN origin o ON o.id = c.origin_id")
}

func applyCommitmentFilter(q, db *gorm.DB, f CommitmentFilter) *gorm.DB {
	loc := f.Location
	if loc == "" {
		loc = domain.LocationActive
	}
	q = q.Where("c.location = ?", loc)

	if f.Scoped {
		q = q.Where("c.department_id IN ?", f.DepartmentIDs)
	}
	if f.ReferentID != 0 {
		q = q.Where("EXISTS (SELECT 1 FROM commitment_referent rf WHERE rf.commitment_id = c.id AND rf.person_id = ?)", f.ReferentID)
	}
	if f.MeetingID != 0 {
		q = q.Where("EXISTS (SELECT 1 FROM meeting_commitment mc WHERE mc.commitment_id = c.id AND mc.meeting_id = ?)", f.MeetingID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		op := likeOp(db)
		pat := likePattern(s)
		q = q.Where(
			"(c.description "+op+" ? OR d.name "+op+" ? OR EXISTS ("+
				"SELECT 1 FROM commitment_referent rs JOIN person ps ON ps.id = rs.person_id "+
				"WHERE rs.commitment_id = c.id AND (ps.name || ' ' || ps.last_name) "+op+" ?))",
			pat, pat, pat,
		)
	}
	if f.Status != "" {
		q = q.Where("c.status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("c.priority = ?", f.Priority)
	}
	if f.DueDate != nil {
		day := time.Date(f.DueDate.Year(), f.DueDate.Month(), f.DueDate.Day(), 0, 0, 0, 0, time.UTC)
		q = q.Where("c.due_date >= ? AND c.due_date < ?", day, day.AddDate(0, 0, 1))
	}
	if f.ProgressMin != nil {
		q = q.Where("c.progress >= ?", *f.ProgressMin)
	}
	if f.ProgressMax != nil {
		q = q.Where("c.progress <= ?", *f.ProgressMax)
	}
	if f.Month > 0 {
		q = q.Where(monthExpr(db, "c.due_date")+" = ?", f.Month)
	}
	if f.Year > 0 {
		q = q.Where(yearExpr(db, "c.due_date")+" = ?", f.Year)
	}
	if f.AreaID != 0 {
		q = q.Where("c.area_id = ?", f.AreaID)
	}
	return q
}

// CountVerifiersByCommitment returns verifier counts keyed by commitment id.
func CountVerifiersByCommitment(ctx context.Context, db *gorm.DB, ids []uint) (map[uint]int64, error) {
	out := make(map[uint]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []struct {
		CommitmentID uint
		N            int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Verifier{}).
		Select("commitment_id, COUNT(*) AS n").
		Where("commitment_id IN ?", ids).
		Group("commitment_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.CommitmentID] = r.N
	}
	return out, nil
}
