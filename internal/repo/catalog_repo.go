package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
)

// Catalog is the shape shared by Area and Origin.
type Catalog interface {
	domain.Area | domain.Origin
}

// CreateCatalog inserts an area or origin.
func CreateCatalog[T Catalog](ctx context.Context, db *gorm.DB, item *T) error {
	return db.WithContext(ctx).Create(item).Error
}

// GetCatalog loads an area or origin by id.
func GetCatalog[T Catalog](ctx context.Context, db *gorm.DB, id uint) (*T, error) {
	var out T
	if err := db.WithContext(ctx).First(&out, id).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateCatalog renames an area or origin and sets its department.
func UpdateCatalog[T Catalog](ctx context.Context, db *gorm.DB, id uint, name string, deptID *uint) error {
	var zero T
	res := db.WithContext(ctx).
		Model(&zero).
		Where("id = ?", id).
		Updates(map[string]any{"name": name, "department_id": deptID})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCatalog removes an area or origin. References from commitments and
// meetings are cleared first.
func DeleteCatalog[T Catalog](ctx context.Context, db *gorm.DB, id uint) error {
	var zero T
	col := "area_id"
	if _, ok := any(zero).(domain.Origin); ok {
		col = "origin_id"
	}
	db = db.WithContext(ctx)
	if err := db.Model(&domain.Commitment{}).Where(col+" = ?", id).Update(col, nil).Error; err != nil {
		return err
	}
	if err := db.Model(&domain.Meeting{}).Where(col+" = ?", id).Update(col, nil).Error; err != nil {
		return err
	}
	res := db.Delete(&zero, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCatalogFor returns the entries visible to a department: its own, its
// parent's, and the global ones (no department). deptID 0 returns all.
func ListCatalogFor[T Catalog](ctx context.Context, db *gorm.DB, deptID uint) ([]T, error) {
	out := []T{}
	q := db.WithContext(ctx).Order("name asc, id asc")
	if deptID != 0 {
		q = q.Where(
			"department_id IS NULL OR department_id = ? OR department_id = (SELECT parent_id FROM department WHERE id = ?)",
			deptID, deptID,
		)
	}
	err := q.Find(&out).Error
	return out, err
}

// FindCatalogByName returns the entry with name (case-insensitive) owned by
// deptID or global, or ErrNotFound.
func FindCatalogByName[T Catalog](ctx context.Context, db *gorm.DB, name string, deptID *uint) (*T, error) {
	var out T
	q := db.WithContext(ctx).Where("LOWER(name) = ?", strings.ToLower(name))
	if deptID != nil {
		q = q.Where("department_id = ? OR department_id IS NULL", *deptID)
	}
	if err := q.Order("id asc").First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// UpsertGuest inserts a guest or refreshes name, institution and phone of
// the existing guest with the same email. It returns the stored row.
func UpsertGuest(ctx context.Context, db *gorm.DB, g *domain.Guest) (*domain.Guest, error) {
	g.Email = strings.ToLower(strings.TrimSpace(g.Email))
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoUpdates: clause.AssignmentColumns([]string{"full_name", "institution", "phone"}),
		}).
		Create(g).Error
	if err != nil {
		return nil, err
	}
	var out domain.Guest
	if err := db.WithContext(ctx).Where("email = ?", g.Email).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// GetStaff loads a staff entry by id.
func GetStaff(ctx context.Context, db *gorm.DB, id uint) (*domain.Staff, error) {
	var s domain.Staff
	if err := db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}
