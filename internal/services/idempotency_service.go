package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
	"github.com/nicoiwnl/SGC-Maule/internal/repo"
)

// IdempotencyService remembers which resource a creation request produced,
// so a retried request with the same Idempotency-Key gets the same resource.
type IdempotencyService struct {
	DB  *gorm.DB
	TTL time.Duration

	// Now is the clock used for expiry checks; defaults to UTC now.
	Now func() time.Time
}

func (s *IdempotencyService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Lookup returns the resource id stored for (personID, scope, key) when a
// non-expired record exists.
func (s *IdempotencyService) Lookup(ctx context.Context, personID uint, scope, key string) (uint, bool, error) {
	rec, err := repo.FindIdempotency(ctx, s.DB, personID, scope, key, s.now())
	if errors.Is(err, repo.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rec.ResourceID, true, nil
}

// Remember stores the outcome of a creation. A concurrent request that
// already stored the same key wins; its record is kept.
func (s *IdempotencyService) Remember(ctx context.Context, personID uint, scope, key string, resourceID uint, status int) error {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := s.now()
	err := repo.SaveIdempotency(ctx, s.DB, &domain.Idempotency{
		PersonID:   personID,
		Scope:      scope,
		Key:        key,
		ResourceID: resourceID,
		Status:     status,
		ExpiresAt:  now.Add(ttl),
	}, now)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// Sweep deletes expired records and returns how many went.
func (s *IdempotencyService) Sweep(ctx context.Context) (int64, error) {
	return repo.PurgeExpiredIdempotency(ctx, s.DB, s.now())
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *IdempotencyService) RunSweeper(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.Sweep(ctx)
			switch {
			case err != nil && ctx.Err() == nil:
				log.Ctx(ctx).Warn().Err(err).Msg("idempotency sweep failed")
			case n > 0:
				log.Ctx(ctx).Debug().Int64("deleted", n).Msg("expired idempotency records removed")
			}
		}
	}
}
