package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
	"github.com/nicoiwnl/SGC-Maule/internal/repo"
)

// ActorService builds the per-request Actor from the database. Nothing is
// cached between requests, so rank or department changes apply immediately.
type ActorService struct {
	DB *gorm.DB
}

// Resolve loads the person and department assignment for personID. An
// unknown person yields ErrUnauthenticated; a person without department
// resolves with HasDepartment=false.
func (s *ActorService) Resolve(ctx context.Context, personID uint) (domain.Actor, error) {
	if personID == 0 {
		return domain.Actor{}, ErrUnauthenticated
	}
	p, err := repo.GetPerson(ctx, s.DB, personID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Actor{}, fmt.Errorf("person %d: %w", personID, ErrUnauthenticated)
	}
	if err != nil {
		return domain.Actor{}, err
	}

	a := domain.Actor{
		PersonID: p.ID,
		Name:     p.FullName(),
		Rank:     strings.TrimSpace(p.Rank),
		Title:    strings.TrimSpace(p.Title),
	}
	a.IsTopBoss = strings.EqualFold(a.Rank, domain.RankServiceDirector) ||
		strings.EqualFold(a.Title, domain.RankServiceDirector)

	pd, err := repo.GetPersonDepartment(ctx, s.DB, personID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
	case err != nil:
		return domain.Actor{}, err
	default:
		a.DepartmentID = pd.DepartmentID
		a.HasDepartment = true
		a.IsDirector = pd.IsDirector
	}
	a.IsDirector = a.IsDirector || a.IsTopBoss
	return a, nil
}
