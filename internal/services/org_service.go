package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
	"github.com/nicoiwnl/SGC-Maule/internal/repo"
	"github.com/nicoiwnl/SGC-Maule/internal/search"
)

// PersonPatch is a partial person update. A non-nil DepartmentID moves the
// person to that department.
type PersonPatch struct {
	Name         *string
	LastName     *string
	Email        *string
	Title        *string
	Profession   *string
	PhoneExt     *string
	Rank         *string
	DepartmentID *uint
	IsDirector   *bool
}

// PersonSuggestion is a ranked match for a people search.
type PersonSuggestion struct {
	ID    uint    `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// OrgService manages people, departments and the area/origin catalogs.
// Writes require the director flag, except catalog entries, which any
// rank above base may maintain.
type OrgService struct {
	DB *gorm.DB
}

func (s *OrgService) span(ctx context.Context, op string) (context.Context, trace.Span) {
	return otel.Tracer("services/OrgService").Start(ctx, op)
}

// ListPeople returns people matching f.
func (s *OrgService) ListPeople(ctx context.Context, f repo.PersonFilter) ([]repo.PersonRow, error) {
	ctx, span := s.span(ctx, "ListPeople")
	defer span.End()
	return repo.ListPeople(ctx, s.DB, f)
}

// Ranks returns the distinct ranks in use.
func (s *OrgService) Ranks(ctx context.Context) ([]string, error) {
	ctx, span := s.span(ctx, "Ranks")
	defer span.End()
	return repo.DistinctRanks(ctx, s.DB)
}

// UpdatePerson applies p to person id.
func (s *OrgService) UpdatePerson(ctx context.Context, a domain.Actor, id uint, p PersonPatch) (*domain.Person, error) {
	ctx, span := otel.Tracer("services/OrgService").Start(ctx, "UpdatePerson",
		trace.WithAttributes(attribute.Int64("person.id", int64(id))),
	)
	defer span.End()

	if !a.IsDirector {
		return nil, ErrPermission
	}
	fields := map[string]any{}
	set := func(col string, v *string, required bool) error {
		if v == nil {
			return nil
		}
		val := strings.TrimSpace(*v)
		if required && val == "" {
			return fmt.Errorf("%s must not be empty: %w", col, ErrValidation)
		}
		fields[col] = val
		return nil
	}
	for _, f := range []struct {
		col      string
		v        *string
		required bool
	}{
		{"name", p.Name, true},
		{"last_name", p.LastName, false},
		{"email", p.Email, false},
		{"title", p.Title, false},
		{"profession", p.Profession, false},
		{"phone_ext", p.PhoneExt, false},
		{"rank", p.Rank, true},
	} {
		if err := set(f.col, f.v, f.required); err != nil {
			return nil, err
		}
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetPerson(ctx, tx, id); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return fmt.Errorf("person %d: %w", id, ErrNotFound)
			}
			return err
		}
		if err := repo.UpdatePerson(ctx, tx, id, fields); err != nil {
			return err
		}
		if p.DepartmentID == nil && p.IsDirector == nil {
			return nil
		}

		current, err := repo.GetPersonDepartment(ctx, tx, id)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		var deptID uint
		var director bool
		if current != nil {
			deptID, director = current.DepartmentID, current.IsDirector
		}
		if p.DepartmentID != nil {
			deptID = *p.DepartmentID
		}
		if p.IsDirector != nil {
			director = *p.IsDirector
		}
		if deptID == 0 {
			return fmt.Errorf("department is required: %w", ErrValidation)
		}
		if _, err := repo.GetDepartment(ctx, tx, deptID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return fmt.Errorf("department %d: %w", deptID, ErrValidation)
			}
			return err
		}
		return repo.AssignDepartment(ctx, tx, id, deptID, director)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return repo.GetPerson(ctx, s.DB, id)
}

// SuggestPeople ranks people by token overlap with q, ignoring case and
// accents. Prefixes of at least two letters match whole words.
func (s *OrgService) SuggestPeople(ctx context.Context, q string, k int) ([]PersonSuggestion, error) {
	ctx, span := s.span(ctx, "SuggestPeople")
	defer span.End()

	people, err := repo.ListPeople(ctx, s.DB, repo.PersonFilter{})
	if err != nil {
		return nil, err
	}
	docs := make([]search.Doc, len(people))
	for i, p := range people {
		docs[i] = search.Doc{ID: p.ID, Text: p.FullName()}
	}
	results := search.NewIndex(docs).TopK(q, k)
	out := make([]PersonSuggestion, len(results))
	for i, r := range results {
		out[i] = PersonSuggestion{ID: r.ID, Name: r.Text, Score: r.Score}
	}
	return out, nil
}

// ListDepartments returns every department.
func (s *OrgService) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	ctx, span := s.span(ctx, "ListDepartments")
	defer span.End()
	return repo.ListDepartments(ctx, s.DB)
}

// CreateDepartment adds a department under parentID (nil for a root).
func (s *OrgService) CreateDepartment(ctx context.Context, a domain.Actor, name string, parentID *uint) (*domain.Department, error) {
	ctx, span := s.span(ctx, "CreateDepartment")
	defer span.End()

	if !a.IsDirector {
		return nil, ErrPermission
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("department name is required: %w", ErrValidation)
	}
	var out *domain.Department
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.checkParent(ctx, tx, 0, parentID); err != nil {
			return err
		}
		var err error
		out, err = repo.CreateDepartment(ctx, tx, name, parentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateDepartment renames and re-parents a department. A parent that is
// the department itself or one of its descendants is rejected.
func (s *OrgService) UpdateDepartment(ctx context.Context, a domain.Actor, id uint, name string, parentID *uint) (*domain.Department, error) {
	ctx, span := otel.Tracer("services/OrgService").Start(ctx, "UpdateDepartment",
		trace.WithAttributes(attribute.Int64("department.id", int64(id))),
	)
	defer span.End()

	if !a.IsDirector {
		return nil, ErrPermission
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("department name is required: %w", ErrValidation)
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetDepartment(ctx, tx, id); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return fmt.Errorf("department %d: %w", id, ErrNotFound)
			}
			return err
		}
		if err := s.checkParent(ctx, tx, id, parentID); err != nil {
			return err
		}
		return repo.UpdateDepartment(ctx, tx, id, name, parentID)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return repo.GetDepartment(ctx, s.DB, id)
}

// checkParent verifies parentID exists and, for an existing department id,
// is not inside its subtree.
func (s *OrgService) checkParent(ctx context.Context, tx *gorm.DB, id uint, parentID *uint) error {
	if parentID == nil {
		return nil
	}
	if _, err := repo.GetDepartment(ctx, tx, *parentID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("parent department %d: %w", *parentID, ErrValidation)
		}
		return err
	}
	if id == 0 {
		return nil
	}
	below, err := repo.DescendantDepartmentIDs(ctx, tx, id)
	if err != nil {
		return err
	}
	if slices.Contains(below, *parentID) {
		return fmt.Errorf("department %d cannot be placed under %d: %w", id, *parentID, ErrValidation)
	}
	return nil
}

// DepartmentChain returns department id and its ancestors, nearest first.
func (s *OrgService) DepartmentChain(ctx context.Context, id uint) ([]repo.DepartmentLevel, error) {
	ctx, span := s.span(ctx, "DepartmentChain")
	defer span.End()

	chain, err := repo.AncestorChain(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("department %d: %w", id, ErrNotFound)
	}
	return chain, nil
}

// ListAreas returns the areas visible to deptID (0 for all).
func (s *OrgService) ListAreas(ctx context.Context, deptID uint) ([]domain.Area, error) {
	return listCatalog[domain.Area](ctx, s.DB, deptID)
}

// CreateArea adds an area; a nil department makes it global.
func (s *OrgService) CreateArea(ctx context.Context, a domain.Actor, name string, deptID *uint) (*domain.Area, error) {
	item := &domain.Area{DepartmentID: deptID}
	if err := createCatalog(ctx, s.DB, a, item, &item.Name, name, deptID); err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateArea renames an area and sets its department.
func (s *OrgService) UpdateArea(ctx context.Context, a domain.Actor, id uint, name string, deptID *uint) (*domain.Area, error) {
	return updateCatalog[domain.Area](ctx, s.DB, a, id, name, deptID)
}

// DeleteArea removes an area and clears references to it.
func (s *OrgService) DeleteArea(ctx context.Context, a domain.Actor, id uint) error {
	return deleteCatalog[domain.Area](ctx, s.DB, a, id)
}

// ListOrigins returns the origins visible to deptID (0 for all).
func (s *OrgService) ListOrigins(ctx context.Context, deptID uint) ([]domain.Origin, error) {
	return listCatalog[domain.Origin](ctx, s.DB, deptID)
}

// CreateOrigin adds an origin; a nil department makes it global.
func (s *OrgService) CreateOrigin(ctx context.Context, a domain.Actor, name string, deptID *uint) (*domain.Origin, error) {
	item := &domain.Origin{DepartmentID: deptID}
	if err := createCatalog(ctx, s.DB, a, item, &item.Name, name, deptID); err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateOrigin renames an origin and sets its department.
func (s *OrgService) UpdateOrigin(ctx context.Context, a domain.Actor, id uint, name string, deptID *uint) (*domain.Origin, error) {
	return updateCatalog[domain.Origin](ctx, s.DB, a, id, name, deptID)
}

// DeleteOrigin removes an origin and clears references to it.
func (s *OrgService) DeleteOrigin(ctx context.Context, a domain.Actor, id uint) error {
	return deleteCatalog[domain.Origin](ctx, s.DB, a, id)
}

func listCatalog[T repo.Catalog](ctx context.Context, db *gorm.DB, deptID uint) ([]T, error) {
	ctx, span := otel.Tracer("services/OrgService").Start(ctx, "ListCatalog")
	defer span.End()
	return repo.ListCatalogFor[T](ctx, db, deptID)
}

func checkCatalogDept(ctx context.Context, db *gorm.DB, deptID *uint) error {
	if deptID == nil {
		return nil
	}
	if _, err := repo.GetDepartment(ctx, db, *deptID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("department %d: %w", *deptID, ErrValidation)
		}
		return err
	}
	return nil
}

func createCatalog[T repo.Catalog](ctx context.Context, db *gorm.DB, a domain.Actor, item *T, nameField *string, name string, deptID *uint) error {
	ctx, span := otel.Tracer("services/OrgService").Start(ctx, "CreateCatalog")
	defer span.End()

	if !a.CanManageLifecycle() {
		return ErrPermission
	}
	*nameField = NormalizeName(name)
	if *nameField == "" {
		return fmt.Errorf("name is required: %w", ErrValidation)
	}
	if err := checkCatalogDept(ctx, db, deptID); err != nil {
		return err
	}
	return repo.CreateCatalog(ctx, db, item)
}

func updateCatalog[T repo.Catalog](ctx context.Context, db *gorm.DB, a domain.Actor, id uint, name string, deptID *uint) (*T, error) {
	ctx, span := otel.Tracer("services/OrgService").Start(ctx, "UpdateCatalog",
		trace.WithAttributes(attribute.Int64("catalog.id", int64(id))),
	)
	defer span.End()

	if !a.CanManageLifecycle() {
		return nil, ErrPermission
	}
	name = NormalizeName(name)
	if name == "" {
		return nil, fmt.Errorf("name is required: %w", ErrValidation)
	}
	if err := checkCatalogDept(ctx, db, deptID); err != nil {
		return nil, err
	}
	if err := repo.UpdateCatalog[T](ctx, db, id, name, deptID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("catalog entry %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return repo.GetCatalog[T](ctx, db, id)
}

func deleteCatalog[T repo.Catalog](ctx context.Context, db *gorm.DB, a domain.Actor, id uint) error {
	ctx, span := otel.Tracer("services/OrgService").Start(ctx, "DeleteCatalog",
		trace.WithAttributes(attribute.Int64("catalog.id", int64(id))),
	)
	defer span.End()

	if !a.CanManageLifecycle() {
		return ErrPermission
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return repo.DeleteCatalog[T](ctx, tx, id)
	})
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("catalog entry %d: %w", id, ErrNotFound)
	}
	return err
}
