package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
)

func TestCatalog_VisibilityAndDelete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	parent := mustDept(t, db, "Dirección", nil)
	child := mustDept(t, db, "Finanzas", &parent.ID)
	other := mustDept(t, db, "Otra", nil)

	global := &domain.Area{Name: "General"}
	own := &domain.Area{Name: "Presupuesto", DepartmentID: &child.ID}
	inherited := &domain.Area{Name: "Gestión", DepartmentID: &parent.ID}
	foreign := &domain.Area{Name: "Ajena", DepartmentID: &other.ID}
	for _, a := range []*domain.Area{global, own, inherited, foreign} {
		if err := CreateCatalog(ctx, db, a); err != nil {
			t.Fatalf("CreateCatalog: %v", err)
		}
	}

	list, err := ListCatalogFor[domain.Area](ctx, db, child.ID)
	if err != nil || len(list) != 3 {
		t.Fatalf("ListCatalogFor child: %+v err=%v", list, err)
	}
	for _, a := range list {
		if a.ID == foreign.ID {
			t.Fatalf("foreign area visible to child")
		}
	}
	all, _ := ListCatalogFor[domain.Area](ctx, db, 0)
	if len(all) != 4 {
		t.Fatalf("expected 4 areas unfiltered, got %d", len(all))
	}

	found, err := FindCatalogByName[domain.Area](ctx, db, "presupuesto", &child.ID)
	if err != nil || found.ID != own.ID {
		t.Fatalf("FindCatalogByName: %+v err=%v", found, err)
	}
	if _, err := FindCatalogByName[domain.Area](ctx, db, "presupuesto", &other.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other department, got %v", err)
	}

	cm := mustCommitment(t, db, domain.Commitment{Description: "x", DepartmentID: child.ID, AreaID: &own.ID})
	if err := DeleteCatalog[domain.Area](ctx, db, own.ID); err != nil {
		t.Fatalf("DeleteCatalog: %v", err)
	}
	got, _ := GetCommitment(ctx, db, cm.ID, "")
	if got.AreaID != nil {
		t.Fatalf("area reference should be cleared, got %v", *got.AreaID)
	}
	if err := DeleteCatalog[domain.Area](ctx, db, own.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCatalog_OriginUpdate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	o := &domain.Origin{Name: "Consejo"}
	if err := CreateCatalog(ctx, db, o); err != nil {
		t.Fatalf("CreateCatalog: %v", err)
	}
	if err := UpdateCatalog[domain.Origin](ctx, db, o.ID, "Comité", nil); err != nil {
		t.Fatalf("UpdateCatalog: %v", err)
	}
	got, err := GetCatalog[domain.Origin](ctx, db, o.ID)
	if err != nil || got.Name != "Comité" {
		t.Fatalf("GetCatalog: %+v err=%v", got, err)
	}
	if err := UpdateCatalog[domain.Origin](ctx, db, 999, "x", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertGuest_ByEmail(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	g1, err := UpsertGuest(ctx, db, &domain.Guest{FullName: "Eva", Email: " EVA@x.cl ", Institution: "A"})
	if err != nil {
		t.Fatalf("UpsertGuest: %v", err)
	}
	g2, err := UpsertGuest(ctx, db, &domain.Guest{FullName: "Eva Paz", Email: "eva@x.cl", Institution: "B"})
	if err != nil {
		t.Fatalf("UpsertGuest again: %v", err)
	}
	if g1.ID != g2.ID || g2.FullName != "Eva Paz" || g2.Institution != "B" || g2.Email != "eva@x.cl" {
		t.Fatalf("expected same guest refreshed: g1=%+v g2=%+v", g1, g2)
	}
}

func TestMeetings_CreateListLink(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	d := mustDept(t, db, "Finanzas", nil)
	ana := mustPerson(t, db, "Ana", "Soto", domain.RankBase, d.ID)
	area := &domain.Area{Name: "General"}
	if err := CreateCatalog(ctx, db, area); err != nil {
		t.Fatalf("CreateCatalog: %v", err)
	}

	m := &domain.Meeting{
		Name:   "Comité",
		AreaID: &area.ID,
		Attendees: []domain.MeetingAttendee{
			{Position: 1, PersonID: &ana.ID, DisplayName: "Ana Soto"},
			{Position: 0, DisplayName: "Invitado"},
		},
		Topics: []domain.MeetingTopic{{Position: 0, Topic: "Presupuesto"}},
	}
	if err := CreateMeeting(ctx, db, m); err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}
	older := &domain.Meeting{Name: "Anterior", CreatedAt: time.Now().UTC().Add(-48 * time.Hour)}
	if err := CreateMeeting(ctx, db, older); err != nil {
		t.Fatalf("CreateMeeting older: %v", err)
	}

	got, err := GetMeeting(ctx, db, m.ID)
	if err != nil || len(got.Attendees) != 2 || got.Attendees[0].DisplayName != "Invitado" || len(got.Topics) != 1 {
		t.Fatalf("GetMeeting: %+v err=%v", got, err)
	}

	mine, _ := ListMeetings(ctx, db, MeetingFilter{AttendeeID: ana.ID})
	if len(mine) != 1 || mine[0].ID != m.ID {
		t.Fatalf("ListMeetings by attendee: %+v", mine)
	}
	all, _ := ListMeetings(ctx, db, MeetingFilter{})
	if len(all) != 2 || all[0].ID != m.ID {
		t.Fatalf("expected newest first: %+v", all)
	}
	from := time.Now().UTC().Add(-time.Hour)
	recent, _ := ListMeetings(ctx, db, MeetingFilter{From: &from})
	if len(recent) != 1 {
		t.Fatalf("ListMeetings from: %d", len(recent))
	}
	byArea, _ := ListMeetings(ctx, db, MeetingFilter{AreaID: area.ID})
	if len(byArea) != 1 {
		t.Fatalf("ListMeetings by area: %d", len(byArea))
	}

	c := mustCommitment(t, db, domain.Commitment{Description: "x", DepartmentID: d.ID})
	if err := LinkMeetingCommitment(ctx, db, m.ID, c.ID); err != nil {
		t.Fatalf("LinkMeetingCommitment: %v", err)
	}
	if err := LinkMeetingCommitment(ctx, db, m.ID, c.ID); err != nil {
		t.Fatalf("relink should be a no-op: %v", err)
	}
	ids, _ := MeetingCommitmentIDs(ctx, db, m.ID)
	if len(ids) != 1 || ids[0] != c.ID {
		t.Fatalf("MeetingCommitmentIDs: %v", ids)
	}
	src, err := MeetingForCommitment(ctx, db, c.ID)
	if err != nil || src.ID != m.ID {
		t.Fatalf("MeetingForCommitment: %+v err=%v", src, err)
	}
	if _, err := MeetingForCommitment(ctx, db, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	meetings, links, err := MeetingLinkCounts(ctx, db)
	if err != nil || meetings != 2 || links != 1 {
		t.Fatalf("MeetingLinkCounts: %d %d err=%v", meetings, links, err)
	}
}
