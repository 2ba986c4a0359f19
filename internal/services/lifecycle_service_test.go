package services

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
	"github.com/nicoiwnl/SGC-Maule/internal/repo"
)

func TestArchive_RequiresCompletedAndRoundTrips(t *testing.T) {
	o := newOrg(t)
	ctx := context.Background()
	c := o.create(t, o.it, "Renovar licencias", o.staff.PersonID)

	err := o.lifecycle().Archive(ctx, o.head, c.ID)
	require.ErrorIs(t, err, ErrInvalidState)
	require.Equal(t, domain.LocationActive, location(t, o.db, c.ID))

	_, err = o.commitments().Update(ctx, o.head, c.ID, CommitmentPatch{
		Status:   ptr(domain.StatusCompleted),
		Progress: ptr(100),
	})
	require.NoError(t, err)

	require.NoError(t, o.lifecycle().Archive(ctx, o.head, c.ID))
	require.Equal(t, domain.LocationArchived, location(t, o.db, c.ID))

	_, err = repo.GetCommitment(ctx, o.db, c.ID, domain.LocationActive)
	require.ErrorIs(t, err, repo.ErrNotFound)

	// Dependents stay attached across moves.
	refs, err := repo.ListReferents(ctx, o.db, c.ID)
	require.NoError(t, err)
	require.Len(t, refs, 1)

	require.NoError(t, o.lifecycle().Unarchive(ctx, o.head, c.ID))
	require.Equal(t, domain.LocationActive, location(t, o.db, c.ID))

	require.Equal(t,
		[]string{domain.ActionCreate, domain.ActionUpdate, domain.ActionArchive, domain.ActionUnarchive},
		changeActions(t, o.db, c.ID))
}

func TestSoftDelete_RestoreAndPurge(t *testing.T) {
	o := newOrg(t)
	ctx := context.Background()
	lc := o.lifecycle()
	c := o.create(t, o.it, "Actualizar inventario", o.staff.PersonID, o.head.PersonID)

	require.NoError(t, lc.SoftDelete(ctx, o.head, c.ID))
	require.ErrorIs(t, lc.SoftDelete(ctx, o.head, c.ID), ErrNotFound)
	require.ErrorIs(t, lc.Unarchive(ctx, o.head, c.ID), ErrNotFound)

	require.NoError(t, lc.Restore(ctx, o.head, c.ID))
	require.Equal(t, domain.LocationActive, location(t, o.db, c.ID))

	// Purge never touches active rows.
	require.ErrorIs(t, lc.Purge(ctx, o.boss, c.ID), ErrNotFound)

	require.NoError(t, lc.SoftDelete(ctx, o.head, c.ID))
	require.ErrorIs(t, lc.Purge(ctx, o.head, c.ID), ErrPermission)
	require.NoError(t, lc.Purge(ctx, o.boss, c.ID))

	_, err := repo.GetCommitment(ctx, o.db, c.ID, "")
	require.ErrorIs(t, err, repo.ErrNotFound)
	refs, err := repo.ListReferents(ctx, o.db, c.ID)
	require.NoError(t, err)
	require.Empty(t, refs)
	changes, err := repo.ListChanges(ctx, o.db, c.ID)
	require.NoError(t, err)
	require.Empty(t, changes)

	require.ErrorIs(t, lc.Purge(ctx, o.boss, c.ID), ErrNotFound)
}

func TestLifecycle_Permissions(t *testing.T) {
	o := newOrg(t)
	ctx := context.Background()
	lc := o.lifecycle()
	c := o.create(t, o.support, "Cambiar cableado")

	// Base rank may not manage the lifecycle, even in its own department.
	require.ErrorIs(t, lc.SoftDelete(ctx, o.supportStaff, c.ID), ErrPermission)
	// Another subtree is out of scope.
	require.ErrorIs(t, lc.SoftDelete(ctx, o.finHead, c.ID), ErrPermission)
	// The head of the parent department reaches descendants.
	require.NoError(t, lc.SoftDelete(ctx, o.head, c.ID))
	// The service director is never limited by scope.
	require.NoError(t, lc.Restore(ctx, o.boss, c.ID))
}

func TestBulkPurge_OnlyArchivedAndDeleted(t *testing.T) {
	o := newOrg(t)
	ctx := context.Background()
	lc := o.lifecycle()

	active := o.create(t, o.it, "activo")
	deleted := o.create(t, o.it, "eliminado")
	archived := o.create(t, o.it, "archivado")

	require.NoError(t, lc.SoftDelete(ctx, o.head, deleted.ID))
	_, err := o.commitments().Update(ctx, o.head, archived.ID, CommitmentPatch{Status: ptr(domain.StatusCompleted)})
	require.NoError(t, err)
	require.NoError(t, lc.Archive(ctx, o.head, archived.ID))

	_, err = lc.BulkPurge(ctx, o.head, []uint{deleted.ID})
	require.ErrorIs(t, err, ErrPermission)

	n, err := lc.BulkPurge(ctx, o.boss, []uint{active.ID, deleted.ID, archived.ID, 9999})
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
	require.Equal(t, domain.LocationActive, location(t, o.db, active.ID))
}

func TestMove_ConcurrentChangeIsAConflict(t *testing.T) {
	o := newOrg(t)
	ctx := context.Background()
	c := o.create(t, o.it, "carrera")

	// Simulate a competing transition landing between the read and the
	// compare-and-swap by bumping the version right before the move.
	raced := false
	err := o.db.Callback().Update().Before("gorm:update").Register("test:race", func(tx *gorm.DB) {
		if raced || tx.Statement.Table != "commitment" {
			return
		}
		raced = true
		tx.Session(&gorm.Session{NewDB: true}).Exec("UPDATE commitment SET version = version + 1 WHERE id = ?", c.ID)
	})
	require.NoError(t, err)

	err = o.lifecycle().SoftDelete(ctx, o.head, c.ID)
	require.ErrorIs(t, err, ErrConflict)
	require.True(t, raced)
	// The whole transaction rolled back: still active, no delete audit row.
	require.Equal(t, domain.LocationActive, location(t, o.db, c.ID))
	require.Equal(t, []string{domain.ActionCreate}, changeActions(t, o.db, c.ID))
}

func TestLifecycle_DependentsSurviveRoundTrips(t *testing.T) {
	o := newOrg(t)
	ctx := context.Background()
	lc := o.lifecycle()

	in := meetingInput(o)
	in.Commitments = in.Commitments[:1]
	res, err := o.meetings().Create(ctx, o.head, in)
	require.NoError(t, err)
	id := res.CommitmentIDs[0]
	_, err = (&VerifierService{DB: o.db}).Add(ctx, o.staff, id, "acta.pdf", "uploads/acta.pdf", "")
	require.NoError(t, err)
	_, err = o.commitments().Update(ctx, o.head, id, CommitmentPatch{Status: ptr(domain.StatusCompleted)})
	require.NoError(t, err)

	dependents := func() (int, uint, int) {
		t.Helper()
		refs, err := repo.ListReferents(ctx, o.db, id)
		require.NoError(t, err)
		m, err := repo.MeetingForCommitment(ctx, o.db, id)
		require.NoError(t, err)
		vs, err := repo.ListVerifiers(ctx, o.db, id)
		require.NoError(t, err)
		return len(refs), m.ID, len(vs)
	}
	refs, meetingID, verifiers := dependents()
	require.Equal(t, 1, refs)
	require.Equal(t, res.Meeting.ID, meetingID)
	require.Equal(t, 1, verifiers)

	steps := []struct {
		name string
		move func(context.Context, domain.Actor, uint) error
		want domain.Location
	}{
		{"archive", lc.Archive, domain.LocationArchived},
		{"unarchive", lc.Unarchive, domain.LocationActive},
		{"delete", lc.SoftDelete, domain.LocationDeleted},
		{"restore", lc.Restore, domain.LocationActive},
	}
	for _, st := range steps {
		require.NoError(t, st.move(ctx, o.head, id), st.name)
		require.Equal(t, st.want, location(t, o.db, id), st.name)
		r, m, v := dependents()
		require.Equal(t, []any{refs, meetingID, verifiers}, []any{r, m, v}, st.name)
	}
}

func TestArchive_PendingSiblingStaysInSummary(t *testing.T) {
	o := newOrg(t)
	ctx := context.Background()
	lc := o.lifecycle()

	c1 := o.create(t, o.support, "Pendiente", o.supportStaff.PersonID)
	c2 := o.create(t, o.support, "Terminado", o.supportStaff.PersonID)
	_, err := o.commitments().Update(ctx, o.head, c2.ID, CommitmentPatch{Status: ptr(domain.StatusCompleted)})
	require.NoError(t, err)

	require.NoError(t, lc.Archive(ctx, o.head, c2.ID))
	require.ErrorIs(t, lc.Archive(ctx, o.head, c1.ID), ErrInvalidState)
	require.Equal(t, domain.LocationActive, location(t, o.db, c1.ID))

	s, err := o.reports().Summary(ctx, o.head, ReportQuery{DepartmentID: o.support})
	require.NoError(t, err)
	require.Equal(t, repo.Totals{Total: 1, Completed: 0, Pending: 1}, s.Totals)
}

func TestMove_LogsOncePerTransition(t *testing.T) {
	o := newOrg(t)
	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())
	c := o.create(t, o.it, "Bitácora")

	require.NoError(t, o.lifecycle().SoftDelete(ctx, o.head, c.ID))
	require.NoError(t, o.lifecycle().Restore(ctx, o.head, c.ID))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2, buf.String())
	for i, action := range []string{domain.ActionDelete, domain.ActionRestore} {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(lines[i]), &entry))
		require.Equal(t, "commitment moved", entry["message"])
		require.Equal(t, action, entry["action"])
	}
}
