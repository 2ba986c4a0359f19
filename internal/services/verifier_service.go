package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
	"github.com/nicoiwnl/SGC-Maule/internal/repo"
)

// VerifierService records evidence files attached to commitments. Only the
// file name and storage path are stored; file bytes are the caller's job.
type VerifierService struct {
	DB *gorm.DB

	Now func() time.Time
}

// Add attaches a verifier to an active commitment the actor can reach.
func (s *VerifierService) Add(ctx context.Context, a domain.Actor, commitmentID uint, fileName, path, description string) (*domain.Verifier, error) {
	ctx, span := otel.Tracer("services/VerifierService").Start(ctx, "Add",
		trace.WithAttributes(attribute.Int64("commitment.id", int64(commitmentID))),
	)
	defer span.End()

	fileName = strings.TrimSpace(fileName)
	path = strings.TrimSpace(path)
	if fileName == "" || path == "" {
		return nil, fmt.Errorf("file name and path are required: %w", ErrValidation)
	}
	at := time.Now().UTC()
	if s.Now != nil {
		at = s.Now().UTC()
	}

	var v *domain.Verifier
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := activeCommitment(ctx, tx, commitmentID)
		if err != nil {
			return err
		}
		if err := canReach(ctx, tx, a, c); err != nil {
			return err
		}
		uploader := a.PersonID
		v = &domain.Verifier{
			CommitmentID: commitmentID,
			FileName:     fileName,
			StoragePath:  path,
			Description:  strings.TrimSpace(description),
			UploadedAt:   at,
			UploadedBy:   &uploader,
		}
		return repo.CreateVerifier(ctx, tx, v)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return v, nil
}

// List returns the verifiers of a commitment, newest first.
func (s *VerifierService) List(ctx context.Context, a domain.Actor, commitmentID uint) ([]repo.VerifierRow, error) {
	ctx, span := otel.Tracer("services/VerifierService").Start(ctx, "List",
		trace.WithAttributes(attribute.Int64("commitment.id", int64(commitmentID))),
	)
	defer span.End()

	c, err := repo.GetCommitment(ctx, s.DB, commitmentID, "")
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("commitment %d: %w", commitmentID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := canReach(ctx, s.DB, a, c); err != nil {
		return nil, err
	}
	return repo.ListVerifiers(ctx, s.DB, commitmentID)
}

// Delete removes a verifier of an active commitment and returns its storage
// path so the caller can remove the file. Archived and deleted commitments
// keep their verifiers.
func (s *VerifierService) Delete(ctx context.Context, a domain.Actor, id uint) (string, error) {
	ctx, span := otel.Tracer("services/VerifierService").Start(ctx, "Delete",
		trace.WithAttributes(attribute.Int64("verifier.id", int64(id))),
	)
	defer span.End()

	var path string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v, err := repo.GetVerifier(ctx, tx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("verifier %d: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		c, err := activeCommitment(ctx, tx, v.CommitmentID)
		if err != nil {
			return err
		}
		if err := canReach(ctx, tx, a, c); err != nil {
			return err
		}
		path, err = repo.DeleteVerifier(ctx, tx, id)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return path, nil
}

// canReach allows the service director, actors whose scope covers the
// commitment's department, and the commitment's referents.
func canReach(ctx context.Context, db *gorm.DB, a domain.Actor, c *domain.Commitment) error {
	if a.IsTopBoss {
		return nil
	}
	ids, err := visibleDepartments(ctx, db, a)
	if err != nil {
		return err
	}
	if slices.Contains(ids, c.DepartmentID) {
		return nil
	}
	refs, err := repo.ListReferents(ctx, db, c.ID)
	if err != nil {
		return err
	}
	for _, r := range refs {
		if r.PersonID == a.PersonID {
			return nil
		}
	}
	return ErrPermission
}
