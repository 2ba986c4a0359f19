package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
)

// DepartmentLevel is a department annotated with its distance from the
// start of a traversal (1 = start).
type DepartmentLevel struct {
	ID       uint   `json:"id"`
	Name     string `json:"name"`
	ParentID *uint  `json:"parent_id"`
	Level    int    `json:"level"`
}

// PersonRow is a person with their department assignment.
type PersonRow struct {
	domain.Person
	DepartmentID   *uint  `json:"department_id"`
	DepartmentName string `json:"department_name"`
	IsDirector     bool   `json:"is_director"`
}

// PersonFilter narrows ListPeople. Zero values mean no restriction.
type PersonFilter struct {
	Search       string
	DepartmentID uint
	Rank         string
}

// CreateDepartment inserts a department under parentID (nil for a root).
func CreateDepartment(ctx context.Context, db *gorm.DB, name string, parentID *uint) (*domain.Department, error) {
	d := &domain.Department{Name: name, ParentID: parentID}
	if err := db.WithContext(ctx).Create(d).Error; err != nil {
		return nil, err
	}
	return d, nil
}

// GetDepartment loads a department by id.
func GetDepartment(ctx context.Context, db *gorm.DB, id uint) (*domain.Department, error) {
	var d domain.Department
	if err := db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDepartments returns all departments ordered by name.
func ListDepartments(ctx context.Context, db *gorm.DB) ([]domain.Department, error) {
	var out []domain.Department
	err := db.WithContext(ctx).Order("name asc, id asc").Find(&out).Error
	return out, err
}

// UpdateDepartment sets the name and parent of a department.
func UpdateDepartment(ctx context.Context, db *gorm.DB, id uint, name string, parentID *uint) error {
	res := db.WithContext(ctx).
		Model(&domain.Department{}).
		Where("id = ?", id).
		Updates(map[string]any{"name": name, "parent_id": parentID})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DescendantDepartments returns rootID and every department below it, each
// with its depth. UNION (not UNION ALL) keeps the walk finite even if the
// stored tree contains a cycle.
func DescendantDepartments(ctx context.Context, db *gorm.DB, rootID uint) ([]DepartmentLevel, error) {
	out := []DepartmentLevel{}
	err := db.WithContext(ctx).Raw(`
		WITH RECURSIVE tree(id, level) AS (
			SELECT id, 1 FROM department WHERE id = ?
			UNION
			SELECT d.id, t.level + 1
			FROM department d
			JOIN tree t ON d.parent_id = t.id
			WHERE t.level < 64
		)
		SELECT d.id, d.name, d.parent_id, MIN(t.level) AS level
		FROM tree t JOIN department d ON d.id = t.id
		GROUP BY d.id, d.name, d.parent_id
		ORDER BY level, d.name`, rootID).Scan(&out).Error
	return out, err
}

// DescendantDepartmentIDs returns the ids from DescendantDepartments.
func DescendantDepartmentIDs(ctx context.Context, db *gorm.DB, rootID uint) ([]uint, error) {
	levels, err := DescendantDepartments(ctx, db, rootID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(levels))
	for _, l := range levels {
		ids = append(ids, l.ID)
	}
	return ids, nil
}

// AncestorChain returns id and its ancestors up to the root, starting at id
// with level 1.
func AncestorChain(ctx context.Context, db *gorm.DB, id uint) ([]DepartmentLevel, error) {
	out := []DepartmentLevel{}
	err := db.WithContext(ctx).Raw(`
		WITH RECURSIVE chain(id, parent_id, level) AS (
			SELECT id, parent_id, 1 FROM department WHERE id = ?
			UNION
			SELECT d.id, d.parent_id, c.level + 1
			FROM department d
			JOIN chain c ON d.id = c.parent_id
			WHERE c.level < 64
		)
		SELECT d.id, d.name, d.parent_id, MIN(c.level) AS level
		FROM chain c JOIN department d ON d.id = c.id
		GROUP BY d.id, d.name, d.parent_id
		ORDER BY level`, id).Scan(&out).Error
	return out, err
}

// CountDepartments returns the number of departments, optionally limited
// to ids.
func CountDepartments(ctx context.Context, db *gorm.DB, ids []uint) (int64, error) {
	var n int64
	q := db.WithContext(ctx).Model(&domain.Department{})
	if ids != nil {
		q = q.Where("id IN ?", ids)
	}
	err := q.Count(&n).Error
	return n, err
}

// CreatePerson inserts p and assigns it to deptID when non-zero.
func CreatePerson(ctx context.Context, db *gorm.DB, p *domain.Person, deptID uint, isDirector bool) error {
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return err
	}
	if deptID == 0 {
		return nil
	}
	return AssignDepartment(ctx, db, p.ID, deptID, isDirector)
}

// GetPerson loads a person by id.
func GetPerson(ctx context.Context, db *gorm.DB, id uint) (*domain.Person, error) {
	var p domain.Person
	if err := db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPeople loads the persons with the given ids, in id order.
func GetPeople(ctx context.Context, db *gorm.DB, ids []uint) ([]domain.Person, error) {
	var out []domain.Person
	if len(ids) == 0 {
		return out, nil
	}
	err := db.WithContext(ctx).Where("id IN ?", ids).Order("id asc").Find(&out).Error
	return out, err
}

// GetPersonDepartment returns the department assignment of a person, or
// ErrNotFound if the person has none.
func GetPersonDepartment(ctx context.Context, db *gorm.DB, personID uint) (*domain.PersonDepartment, error) {
	var pd domain.PersonDepartment
	if err := db.WithContext(ctx).Where("person_id = ?", personID).First(&pd).Error; err != nil {
		return nil, err
	}
	return &pd, nil
}

// AssignDepartment sets (or replaces) a person's department.
func AssignDepartment(ctx context.Context, db *gorm.DB, personID, deptID uint, isDirector bool) error {
	pd := domain.PersonDepartment{PersonID: personID, DepartmentID: deptID, IsDirector: isDirector}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "person_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"department_id", "is_director"}),
		}).
		Create(&pd).Error
}

// UpdatePerson applies fields to a person.
func UpdatePerson(ctx context.Context, db *gorm.DB, id uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := db.WithContext(ctx).Model(&domain.Person{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPeople returns persons with their department, ordered by name.
func ListPeople(ctx context.Context, db *gorm.DB, f PersonFilter) ([]PersonRow, error) {
	q := db.WithContext(ctx).
		Table("person AS p").
		Select("p.*, pd.department_id, COALESCE(d.name, '') AS department_name, COALESCE(pd.is_director, false) AS is_director").
		Joins("LEFT JOIN person_department pd ON pd.person_id = p.id").
		Joins("LEFT JOIN department d ON d.id = pd.department_id")
	if s := strings.TrimSpace(f.Search); s != "" {
		op := likeOp(db)
		pat := likePattern(s)
		q = q.Where("((p.name || ' ' || p.last_name) "+op+" ? OR p.rut "+op+" ? OR p.email "+op+" ?)", pat, pat, pat)
	}
	if f.DepartmentID != 0 {
		q = q.Where("pd.department_id = ?", f.DepartmentID)
	}
	if f.Rank != "" {
		q = q.Where("p.rank = ?", f.Rank)
	}
	out := []PersonRow{}
	err := q.Order("p.name asc, p.last_name asc, p.id asc").Scan(&out).Error
	return out, err
}

// DistinctRanks returns every rank in use, sorted.
func DistinctRanks(ctx context.Context, db *gorm.DB) ([]string, error) {
	var out []string
	err := db.WithContext(ctx).
		Model(&domain.Person{}).
		Distinct("rank").
		Order("rank asc").
		Pluck("rank", &out).Error
	return out, err
}

// CountPeople returns the number of persons, optionally limited to those
// assigned to deptIDs.
func CountPeople(ctx context.Context, db *gorm.DB, deptIDs []uint) (int64, error) {
	var n int64
	q := db.WithContext(ctx).Model(&domain.Person{})
	if deptIDs != nil {
		q = q.Where("id IN (SELECT person_id FROM person_department WHERE department_id IN ?)", deptIDs)
	}
	err := q.Count(&n).Error
	return n, err
}

// CreateUser inserts a login credential.
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	return db.WithContext(ctx).Create(u).Error
}

// GetUser loads a login credential by username.
func GetUser(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
