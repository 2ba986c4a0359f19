package domain

import "time"

// Idempotency records the resource produced by a creation request, keyed by
// (person_id, scope, key). A replay within ExpiresAt returns ResourceID
// without repeating the side effects.
type Idempotency struct {
	ID         string    `gorm:"type:varchar(36);not null;primaryKey"`
	PersonID   uint      `gorm:"not null;uniqueIndex:ux_person_scope_key,priority:1"`
	Scope      string    `gorm:"type:varchar(32);not null;uniqueIndex:ux_person_scope_key,priority:2"`
	Key        string    `gorm:"type:varchar(200);not null;uniqueIndex:ux_person_scope_key,priority:3"`
	ResourceID uint      `gorm:"not null"`
	Status     int       `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
