package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
)

// ReferentRow is a referent joined with the person's display fields.
type ReferentRow struct {
	CommitmentID uint   `json:"commitment_id"`
	PersonID     uint   `json:"person_id"`
	Principal    bool   `json:"principal"`
	Name         string `json:"name"`
	LastName     string `json:"last_name"`
	Rank         string `json:"rank"`
}

// ListReferents returns the referent links of a commitment.
func ListReferents(ctx context.Context, db *gorm.DB, commitmentID uint) ([]domain.CommitmentReferent, error) {
	var out []domain.CommitmentReferent
	err := db.WithContext(ctx).
		Where("commitment_id = ?", commitmentID).
		Order("person_id asc").
		Find(&out).Error
	return out, err
}

// ListReferentRows returns referents with names for the given commitments,
// principal first, then by name and last name.
func ListReferentRows(ctx context.Context, db *gorm.DB, commitmentIDs []uint) ([]ReferentRow, error) {
	out := []ReferentRow{}
	if len(commitmentIDs) == 0 {
		return out, nil
	}
	err := db.WithContext(ctx).
		Table("commitment_referent AS r").
		Select("r.commitment_id, r.person_id, r.principal, p.name, p.last_name, p.rank").
		Joins("JOIN person p ON p.id = r.person_id").
		Where("r.commitment_id IN ?", commitmentIDs).
		Order("r.commitment_id asc, r.principal desc, p.name asc, p.last_name asc").
		Scan(&out).Error
	return out, err
}

// AddReferents links personIDs to a commitment. Existing links are left
// untouched, including their principal flag.
func AddReferents(ctx context.Context, db *gorm.DB, commitmentID uint, personIDs []uint, principal bool) error {
	if len(personIDs) == 0 {
		return nil
	}
	rows := make([]domain.CommitmentReferent, 0, len(personIDs))
	for _, pid := range personIDs {
		rows = append(rows, domain.CommitmentReferent{CommitmentID: commitmentID, PersonID: pid, Principal: principal})
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

// RemoveNonPrincipalReferents deletes the non-principal links of a
// commitment whose person is not in keep.
func RemoveNonPrincipalReferents(ctx context.Context, db *gorm.DB, commitmentID uint, keep []uint) (int64, error) {
	q := db.WithContext(ctx).
		Where("commitment_id = ? AND principal = ?", commitmentID, false)
	if len(keep) > 0 {
		q = q.Where("person_id NOT IN ?", keep)
	}
	res := q.Delete(&domain.CommitmentReferent{})
	return res.RowsAffected, res.Error
}

// IsPrincipal reports whether personID is the principal referent of a
// commitment.
func IsPrincipal(ctx context.Context, db *gorm.DB, commitmentID, personID uint) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.CommitmentReferent{}).
		Where("commitment_id = ? AND person_id = ? AND principal = ?", commitmentID, personID, true).
		Count(&n).Error
	return n > 0, err
}
