package repo

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
)

// newTestDB opens a migrated SQLite file in a temp dir. A file rather than
// shared memory keeps pooled connections on the same database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open("sqlite", filepath.Join(t.TempDir(), "repo_test.db"), "")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Logger = logger.Default.LogMode(logger.Silent)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func mustDept(t *testing.T, db *gorm.DB, name string, parent *uint) *domain.Department {
	t.Helper()
	d, err := CreateDepartment(context.Background(), db, name, parent)
	if err != nil {
		t.Fatalf("create department %q: %v", name, err)
	}
	return d
}

func mustPerson(t *testing.T, db *gorm.DB, name, last, rank string, deptID uint) *domain.Person {
	t.Helper()
	p := &domain.Person{Name: name, LastName: last, Rank: rank}
	if err := CreatePerson(context.Background(), db, p, deptID, false); err != nil {
		t.Fatalf("create person %q: %v", name, err)
	}
	return p
}

func mustCommitment(t *testing.T, db *gorm.DB, c domain.Commitment) *domain.Commitment {
	t.Helper()
	if c.Priority == "" {
		c.Priority = "Media"
	}
	if c.Status == "" {
		c.Status = domain.StatusPending
	}
	if err := CreateCommitment(context.Background(), db, &c); err != nil {
		t.Fatalf("create commitment: %v", err)
	}
	return &c
}

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
	return &t
}

func ptr[T any](v T) *T { return &v }
