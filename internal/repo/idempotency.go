package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
)

// ErrDuplicate is returned when a live record already holds the
// (person_id, scope, key) tuple.
var ErrDuplicate = errors.New("duplicate")

// FindIdempotency returns the record for the tuple unless it expired by now.
func FindIdempotency(ctx context.Context, db *gorm.DB, personID uint, scope, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(scope) == "" || strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where(&domain.Idempotency{PersonID: personID, Scope: scope, Key: key}).
		Where("expires_at > ?", now).
		Take(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, err
	}
	return &rec, nil
}

// SaveIdempotency stores rec, taking over the tuple of an expired record.
// A live record for the tuple is left alone and ErrDuplicate returned.
func SaveIdempotency(ctx context.Context, db *gorm.DB, rec *domain.Idempotency, now time.Time) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	res := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "person_id"}, {Name: "scope"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"id", "resource_id", "status", "created_at", "expires_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "idempotency.expires_at <= ?", Vars: []any{now}},
		}},
	}).Create(rec)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

// PurgeExpiredIdempotency deletes records that expired by now.
func PurgeExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}
