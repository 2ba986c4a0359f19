// Package domain defines the persistence models for the commitment tracker:
// the organization chart, commitments and their dependents, meetings, and
// the classification catalogs. These types are mapped with GORM and shared
// across the repository and service layers.
package domain

// Hierarchy ranks as stored in Person.Rank. RankBase is the lowest rank and
// limits a person's visibility to their own department.
const (
	RankBase            = "FUNCIONARIO/A"
	RankServiceDirector = "DIRECTOR DE SERVICIO"
	RankDeputyDirector  = "SUBDIRECTOR/A"
	RankDepartmentHead  = "JEFE/A DE DEPARTAMENTO"
	RankUnitHead        = "JEFE/A DE UNIDAD"
)

// LeadershipRanks are the ranks that make a person head of the department
// they belong to.
var LeadershipRanks = []string{
	RankServiceDirector,
	RankDeputyDirector,
	RankDepartmentHead,
	RankUnitHead,
}

// Department is a node of the organization tree. ParentID is nil for roots.
type Department struct {
	ID       uint   `json:"id"        gorm:"primaryKey"`
	Name     string `json:"name"      gorm:"type:varchar(255);not null"`
	ParentID *uint  `json:"parent_id" gorm:"index:idx_department_parent"`
}

// TableName returns the database table name for Department.
func (Department) TableName() string { return "department" }

// Person is a member of the organization. Rank drives the visibility scope;
// Title is the free-form job title.
type Person struct {
	ID         uint   `json:"id"         gorm:"primaryKey"`
	Name       string `json:"name"       gorm:"type:varchar(120);not null"`
	LastName   string `json:"last_name"  gorm:"type:varchar(120);not null;default:''"`
	Rut        string `json:"rut"        gorm:"type:varchar(12);index:idx_person_rut"`
	Dv         string `json:"dv"         gorm:"type:varchar(1)"`
	Profession string `json:"profession" gorm:"type:varchar(120)"`
	Email      string `json:"email"      gorm:"type:varchar(255)"`
	Title      string `json:"title"      gorm:"type:varchar(120)"`
	PhoneExt   string `json:"phone_ext"  gorm:"type:varchar(16)"`
	Rank       string `json:"rank"       gorm:"type:varchar(64);not null;default:'FUNCIONARIO/A'"`
}

// TableName returns the database table name for Person.
func (Person) TableName() string { return "person" }

// FullName joins the name parts with a single space.
func (p Person) FullName() string {
	if p.LastName == "" {
		return p.Name
	}
	return p.Name + " " + p.LastName
}

// PersonDepartment assigns a person to exactly one department.
type PersonDepartment struct {
	PersonID     uint `json:"person_id"     gorm:"primaryKey;autoIncrement:false"`
	DepartmentID uint `json:"department_id" gorm:"not null;index:idx_person_department_dept"`
	IsDirector   bool `json:"is_director"   gorm:"not null;default:false"`
}

// TableName returns the database table name for PersonDepartment.
func (PersonDepartment) TableName() string { return "person_department" }

// User is a login credential bound to a person.
type User struct {
	Username     string `json:"username"  gorm:"type:varchar(64);primaryKey"`
	PasswordHash string `json:"-"         gorm:"type:varchar(255);not null"`
	PersonID     uint   `json:"person_id" gorm:"not null;uniqueIndex:ux_user_person"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "app_user" }
