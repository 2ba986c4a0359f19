package domain

import "time"

// Location is the lifecycle store a commitment currently lives in.
type Location string

const (
	LocationActive   Location = "active"
	LocationArchived Location = "archived"
	LocationDeleted  Location = "deleted"
)

// Valid reports whether l is one of the known locations.
func (l Location) Valid() bool {
	switch l {
	case LocationActive, LocationArchived, LocationDeleted:
		return true
	}
	return false
}

// Well-known commitment statuses. Any other value is accepted and counted
// in the "other" bucket of summaries.
const (
	StatusPending   = "Pendiente"
	StatusCompleted = "Completado"
	StatusOther     = "Otro"
)

// StatusBucket maps a free-form status onto Pendiente, Completado or Otro.
func StatusBucket(status string) string {
	switch status {
	case StatusPending, StatusCompleted:
		return status
	}
	return StatusOther
}

// Commitment is a tracked action item owned by a department.
//
// A commitment lives in exactly one Location. Moving between locations only
// flips Location and bumps Version, so referents, meeting links and
// verifiers stay attached by id. Version is compared on every move to
// detect concurrent transitions.
type Commitment struct {
	ID               uint       `json:"id"                gorm:"primaryKey"`
	Description      string     `json:"description"       gorm:"type:text;not null"`
	Status           string     `json:"status"            gorm:"type:varchar(32);not null;default:'Pendiente'"`
	Priority         string     `json:"priority"          gorm:"type:varchar(32);not null"`
	CreatedAt        time.Time  `json:"created_at"`
	DueDate          *time.Time `json:"due_date,omitempty" gorm:"index:idx_commitment_due"`
	Progress         int        `json:"progress"          gorm:"not null;default:0;check:chk_commitment_progress,progress >= 0 AND progress <= 100"`
	Comment          string     `json:"comment"           gorm:"type:text"`
	DirectionComment string     `json:"direction_comment" gorm:"type:text"`
	DepartmentID     uint       `json:"department_id"     gorm:"not null;index:ix_commitment_active_dept,where:location = 'active';index:ix_commitment_archived_dept,where:location = 'archived';index:ix_commitment_deleted_dept,where:location = 'deleted'"`
	AreaID           *uint      `json:"area_id,omitempty"`
	OriginID         *uint      `json:"origin_id,omitempty"`
	Location         Location   `json:"location"          gorm:"type:varchar(16);not null;default:'active';index:idx_commitment_location;check:chk_commitment_location,location IN ('active','archived','deleted')"`
	Version          int        `json:"version"           gorm:"not null;default:1"`
	MovedAt          *time.Time `json:"moved_at,omitempty"`
	MovedBy          *uint      `json:"moved_by,omitempty"`
}

// TableName returns the database table name for Commitment.
func (Commitment) TableName() string { return "commitment" }

// CommitmentReferent links a person to a commitment. At most one referent
// per commitment carries Principal.
type CommitmentReferent struct {
	CommitmentID uint `json:"commitment_id" gorm:"primaryKey;autoIncrement:false"`
	PersonID     uint `json:"person_id"     gorm:"primaryKey;autoIncrement:false;index:idx_referent_person"`
	Principal    bool `json:"principal"     gorm:"not null;default:false"`
}

// TableName returns the database table name for CommitmentReferent.
func (CommitmentReferent) TableName() string { return "commitment_referent" }

// Verifier is a file reference evidencing progress on a commitment. Only
// the name and the caller-assigned storage path are persisted.
type Verifier struct {
	ID           uint      `json:"id"            gorm:"primaryKey"`
	CommitmentID uint      `json:"commitment_id" gorm:"not null;index:idx_verifier_commitment"`
	FileName     string    `json:"file_name"     gorm:"type:varchar(255);not null"`
	StoragePath  string    `json:"storage_path"  gorm:"type:varchar(512);not null"`
	Description  string    `json:"description"   gorm:"type:text"`
	UploadedAt   time.Time `json:"uploaded_at"   gorm:"not null"`
	UploadedBy   *uint     `json:"uploaded_by,omitempty"`
}

// TableName returns the database table name for Verifier.
func (Verifier) TableName() string { return "commitment_verifier" }

// Change actions recorded in CommitmentChange.
const (
	ActionCreate    = "create"
	ActionUpdate    = "update"
	ActionDerive    = "derive"
	ActionArchive   = "archive"
	ActionUnarchive = "unarchive"
	ActionDelete    = "delete"
	ActionRestore   = "restore"
)

// CommitmentChange is an audit row written for every mutation.
type CommitmentChange struct {
	ID           uint      `json:"id"            gorm:"primaryKey"`
	CommitmentID uint      `json:"commitment_id" gorm:"not null;index:idx_change_commitment"`
	PersonID     uint      `json:"person_id"     gorm:"not null"`
	Action       string    `json:"action"        gorm:"type:varchar(16);not null"`
	ChangedAt    time.Time `json:"changed_at"    gorm:"not null"`
}

// TableName returns the database table name for CommitmentChange.
func (CommitmentChange) TableName() string { return "commitment_change" }
