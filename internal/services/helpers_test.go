package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
	"github.com/nicoiwnl/SGC-Maule/internal/repo"
)

// org is a small organization used by the service tests:
//
//	Dirección (boss)
//	└── Informática (head, staff)
//	    └── Soporte (support)
//	Finanzas (finHead, finStaff)
type org struct {
	db *gorm.DB

	root, it, support, finance uint

	boss, head, staff, supportStaff, finHead, finStaff domain.Actor
}

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.Open("sqlite", filepath.Join(t.TempDir(), "services_test.db"), "")
	require.NoError(t, err)
	db.Logger = logger.Default.LogMode(logger.Silent)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, repo.AutoMigrate(db))
	return db
}

func newOrg(t *testing.T) *org {
	t.Helper()
	ctx := context.Background()
	db := newServiceDB(t)
	o := &org{db: db}

	dept := func(name string, parent *uint) uint {
		d, err := repo.CreateDepartment(ctx, db, name, parent)
		require.NoError(t, err)
		return d.ID
	}
	o.root = dept("Dirección", nil)
	o.it = dept("Informática", &o.root)
	o.support = dept("Soporte", &o.it)
	o.finance = dept("Finanzas", nil)

	actors := &ActorService{DB: db}
	person := func(name, last, rank string, deptID uint) domain.Actor {
		p := &domain.Person{Name: name, LastName: last, Rank: rank}
		require.NoError(t, repo.CreatePerson(ctx, db, p, deptID, false))
		a, err := actors.Resolve(ctx, p.ID)
		require.NoError(t, err)
		return a
	}
	o.boss = person("Ana", "Soto", domain.RankServiceDirector, o.root)
	o.head = person("Bruno", "Díaz", domain.RankDepartmentHead, o.it)
	o.staff = person("Carla", "Muñoz", domain.RankBase, o.it)
	o.supportStaff = person("Diego", "Rojas", domain.RankBase, o.support)
	o.finHead = person("Elena", "Vera", domain.RankDepartmentHead, o.finance)
	o.finStaff = person("Felipe", "Toro", domain.RankBase, o.finance)
	return o
}

// clock is the fixed time used by the services under test.
func clock() time.Time { return time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC) }

func (o *org) commitments() *CommitmentService { return &CommitmentService{DB: o.db, Now: clock} }
func (o *org) lifecycle() *LifecycleService    { return &LifecycleService{DB: o.db, Now: clock} }
func (o *org) reports() *ReportService         { return &ReportService{DB: o.db} }

// create adds a commitment in deptID as the service director.
func (o *org) create(t *testing.T, deptID uint, desc string, referents ...uint) *CommitmentView {
	t.Helper()
	v, err := o.commitments().Create(context.Background(), o.boss, CommitmentInput{
		Description:  desc,
		Priority:     "Alta",
		DueDate:      date(2025, time.March, 10),
		DepartmentID: deptID,
		Referents:    referents,
	})
	require.NoError(t, err)
	return v
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
	return &t
}

func ptr[T any](v T) *T { return &v }

func location(t *testing.T, db *gorm.DB, id uint) domain.Location {
	t.Helper()
	c, err := repo.GetCommitment(context.Background(), db, id, "")
	require.NoError(t, err)
	return c.Location
}

func changeActions(t *testing.T, db *gorm.DB, id uint) []string {
	t.Helper()
	changes, err := repo.ListChanges(context.Background(), db, id)
	require.NoError(t, err)
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = c.Action
	}
	return out
}
