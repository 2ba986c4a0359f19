package services

import (
	"context"
	"slices"

	"gorm.io/gorm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
	"github.com/nicoiwnl/SGC-Maule/internal/repo"
)

// ScopeService computes which departments an actor may see and act on.
//
// Visibility follows the actor's rank: the base rank sees its own department
// only, every other rank sees its department and all descendants. An actor
// without a department sees nothing.
type ScopeService struct {
	DB *gorm.DB
}

// VisibleDepartments returns the department ids visible to a. The result is
// never nil; an empty slice means no visibility.
func (s *ScopeService) VisibleDepartments(ctx context.Context, a domain.Actor) ([]uint, error) {
	return visibleDepartments(ctx, s.DB, a)
}

func visibleDepartments(ctx context.Context, db *gorm.DB, a domain.Actor) ([]uint, error) {
	ctx, span := otel.Tracer("services/ScopeService").Start(ctx, "VisibleDepartments",
		trace.WithAttributes(
			attribute.Int64("actor.id", int64(a.PersonID)),
			attribute.String("actor.rank", a.Rank),
		),
	)
	defer span.End()

	if !a.HasDepartment {
		return []uint{}, nil
	}
	if a.IsBaseRank() {
		return []uint{a.DepartmentID}, nil
	}
	ids, err := repo.DescendantDepartmentIDs(ctx, db, a.DepartmentID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []uint{}
	}
	return ids, nil
}

// ReportScope returns the departments a report for a covers. nil means every
// department and is granted only to the service director asking for all.
func (s *ScopeService) ReportScope(ctx context.Context, a domain.Actor, all bool) ([]uint, error) {
	if all && a.IsTopBoss {
		return nil, nil
	}
	return s.VisibleDepartments(ctx, a)
}

// CanView reports whether deptID is inside a's visible scope.
func (s *ScopeService) CanView(ctx context.Context, a domain.Actor, deptID uint) (bool, error) {
	ids, err := s.VisibleDepartments(ctx, a)
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, deptID), nil
}

// CanEdit reports whether a may edit commitments owned by deptID.
func (s *ScopeService) CanEdit(a domain.Actor, deptID uint) bool { return a.CanEdit(deptID) }

// CanDerive reports whether a may reassign referents of commitments owned
// by deptID. It follows the edit rule.
func (s *ScopeService) CanDerive(a domain.Actor, deptID uint) bool { return a.CanEdit(deptID) }

// IsDepartmentHead reports whether a holds a leadership rank in deptID.
func (s *ScopeService) IsDepartmentHead(a domain.Actor, deptID uint) bool { return a.HeadOf(deptID) }

// checkLifecycle enforces the permission rule shared by lifecycle moves: a
// rank above base (or the director flag) and the commitment's department in
// scope. The service director is never restricted by scope.
func checkLifecycle(ctx context.Context, db *gorm.DB, a domain.Actor, deptID uint) error {
	if !a.CanManageLifecycle() {
		return ErrPermission
	}
	if a.IsTopBoss {
		return nil
	}
	ids, err := visibleDepartments(ctx, db, a)
	if err != nil {
		return err
	}
	if !slices.Contains(ids, deptID) {
		return ErrPermission
	}
	return nil
}
