package domain

// Area classifies commitments and meetings. A nil DepartmentID makes it
// available to every department.
type Area struct {
	ID           uint   `json:"id"            gorm:"primaryKey"`
	Name         string `json:"name"          gorm:"type:varchar(255);not null"`
	DepartmentID *uint  `json:"department_id" gorm:"index:idx_area_department"`
}

// TableName returns the database table name for Area.
func (Area) TableName() string { return "area" }

// Origin records where a commitment came from. Scoped like Area.
type Origin struct {
	ID           uint   `json:"id"            gorm:"primaryKey"`
	Name         string `json:"name"          gorm:"type:varchar(255);not null"`
	DepartmentID *uint  `json:"department_id" gorm:"index:idx_origin_department"`
}

// TableName returns the database table name for Origin.
func (Origin) TableName() string { return "origin" }
