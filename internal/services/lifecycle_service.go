// Package services – LifecycleService
//
// This file implements the commitment lifecycle: soft delete, archive and
// their reverse moves, plus purge. A commitment lives in one row whose
// location column says where it is; dependents (referents, meeting links,
// verifiers) reference the id and therefore move with it.
//
// Every operation runs in a single transaction. A move is a compare-and-swap
// on (location, version): when two actors race on the same commitment one
// wins and the other gets ErrConflict.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
	"github.com/nicoiwnl/SGC-Maule/internal/observability"
	"github.com/nicoiwnl/SGC-Maule/internal/repo"
)

// ActionPurge labels hard deletions in metrics and logs.
const ActionPurge = "purge"

// LifecycleService moves commitments between the active, archived and
// deleted locations.
type LifecycleService struct {
	DB *gorm.DB

	// Now is the clock used for moved_at and audit rows; defaults to UTC now.
	Now func() time.Time
}

func (s *LifecycleService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// SoftDelete moves an active commitment to the deleted location.
func (s *LifecycleService) SoftDelete(ctx context.Context, a domain.Actor, id uint) error {
	return s.move(ctx, a, id, domain.LocationActive, domain.LocationDeleted, domain.ActionDelete, nil)
}

// Archive moves an active, completed commitment to the archived location.
func (s *LifecycleService) Archive(ctx context.Context, a domain.Actor, id uint) error {
	return s.move(ctx, a, id, domain.LocationActive, domain.LocationArchived, domain.ActionArchive,
		func(c *domain.Commitment) error {
			if c.Status != domain.StatusCompleted {
				return fmt.Errorf("commitment %d has status %q: %w", c.ID, c.Status, ErrInvalidState)
			}
			return nil
		})
}

// Restore moves a deleted commitment back to active.
func (s *LifecycleService) Restore(ctx context.Context, a domain.Actor, id uint) error {
	return s.move(ctx, a, id, domain.LocationDeleted, domain.LocationActive, domain.ActionRestore, nil)
}

// Unarchive moves an archived commitment back to active.
func (s *LifecycleService) Unarchive(ctx context.Context, a domain.Actor, id uint) error {
	return s.move(ctx, a, id, domain.LocationArchived, domain.LocationActive, domain.ActionUnarchive, nil)
}

func (s *LifecycleService) move(
	ctx context.Context,
	a domain.Actor,
	id uint,
	from, to domain.Location,
	action string,
	check func(*domain.Commitment) error,
) error {
	ctx, span := otel.Tracer("services/LifecycleService").Start(ctx, action,
		trace.WithAttributes(
			attribute.Int64("commitment.id", int64(id)),
			attribute.Int64("actor.id", int64(a.PersonID)),
			attribute.String("from", string(from)),
			attribute.String("to", string(to)),
		),
	)
	defer span.End()

	now := s.now()
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := repo.GetCommitment(ctx, tx, id, from)
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("commitment %d not %s: %w", id, from, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if err := checkLifecycle(ctx, tx, a, c.DepartmentID); err != nil {
			return err
		}
		if check != nil {
			if err := check(c); err != nil {
				return err
			}
		}
		moved, err := repo.MoveCommitment(ctx, tx, id, from, to, c.Version, a.PersonID, now)
		if err != nil {
			return fmt.Errorf("move commitment %d: %w", id, err)
		}
		if !moved {
			return fmt.Errorf("commitment %d: %w", id, ErrConflict)
		}
		return repo.LogChange(ctx, tx, id, a.PersonID, action, now)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	observability.RecordTransition(action, 1)
	log.Ctx(ctx).Info().
		Str("action", action).
		Uint("commitment_id", id).
		Uint("actor_id", a.PersonID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("commitment moved")
	return nil
}

// Purge hard-deletes a commitment from the deleted location together with
// its referents, meeting links, verifiers and change log. Only the service
// director may purge.
func (s *LifecycleService) Purge(ctx context.Context, a domain.Actor, id uint) error {
	ctx, span := otel.Tracer("services/LifecycleService").Start(ctx, "Purge",
		trace.WithAttributes(attribute.Int64("commitment.id", int64(id))),
	)
	defer span.End()

	if !a.IsTopBoss {
		return ErrPermission
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := repo.PurgeCommitments(ctx, tx, []uint{id}, domain.LocationDeleted)
		if err != nil {
			return fmt.Errorf("purge commitment %d: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("commitment %d not deleted: %w", id, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	observability.RecordTransition(ActionPurge, 1)
	log.Ctx(ctx).Info().Uint("commitment_id", id).Uint("actor_id", a.PersonID).Msg("commitment purged")
	return nil
}

// BulkPurge hard-deletes every listed id that is archived or deleted. Active
// and unknown ids are ignored. It returns the number purged.
func (s *LifecycleService) BulkPurge(ctx context.Context, a domain.Actor, ids []uint) (int64, error) {
	ctx, span := otel.Tracer("services/LifecycleService").Start(ctx, "BulkPurge",
		trace.WithAttributes(attribute.Int("ids", len(ids))),
	)
	defer span.End()

	if !a.IsTopBoss {
		return 0, ErrPermission
	}
	var n int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		n, err = repo.PurgeCommitments(ctx, tx, ids, domain.LocationArchived, domain.LocationDeleted)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("bulk purge: %w", err)
	}
	observability.RecordTransition(ActionPurge, int(n))
	log.Ctx(ctx).Info().Int64("purged", n).Int("requested", len(ids)).Uint("actor_id", a.PersonID).Msg("commitments purged")
	return n, nil
}
