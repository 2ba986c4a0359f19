package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
)

// VerifierRow is a verifier with the uploader's display name.
type VerifierRow struct {
	domain.Verifier
	UploaderName string `json:"uploader_name"`
}

// CreateVerifier inserts v, defaulting UploadedAt to now (UTC).
func CreateVerifier(ctx context.Context, db *gorm.DB, v *domain.Verifier) error {
	if v.UploadedAt.IsZero() {
		v.UploadedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(v).Error
}

// GetVerifier loads a verifier by id.
func GetVerifier(ctx context.Context, db *gorm.DB, id uint) (*domain.Verifier, error) {
	var v domain.Verifier
	if err := db.WithContext(ctx).First(&v, id).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVerifiers returns the verifiers of a commitment, newest first.
func ListVerifiers(ctx context.Context, db *gorm.DB, commitmentID uint) ([]VerifierRow, error) {
	out := []VerifierRow{}
	err := db.WithContext(ctx).
		Table("commitment_verifier AS v").
		Select("v.*, COALESCE(p.name || ' ' || p.last_name, '') AS uploader_name").
		Joins("LEFT JOIN person p ON p.id = v.uploaded_by").
		Where("v.commitment_id = ?", commitmentID).
		Order("v.uploaded_at desc, v.id desc").
		Scan(&out).Error
	return out, err
}

// DeleteVerifier removes a verifier and returns its storage path.
func DeleteVerifier(ctx context.Context, db *gorm.DB, id uint) (string, error) {
	v, err := GetVerifier(ctx, db, id)
	if err != nil {
		return "", err
	}
	if err := db.WithContext(ctx).Delete(&domain.Verifier{}, id).Error; err != nil {
		return "", err
	}
	return v.StoragePath, nil
}
