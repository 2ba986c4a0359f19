package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
	"github.com/nicoiwnl/SGC-Maule/internal/repo"
)

func (o *org) meetings() *MeetingService { return &MeetingService{DB: o.db, Now: clock} }

func meetingInput(o *org) MeetingInput {
	return MeetingInput{
		Name:        "Comité de gestión",
		AreaName:    "  recursos   humanos ",
		OriginName:  "comité directivo",
		Place:       "Sala 2",
		Topics:      []string{"Presupuesto", " ", "Dotación"},
		AttendeeIDs: []uint{o.head.PersonID, o.staff.PersonID, o.head.PersonID},
		Guests:      []GuestInput{{FullName: "Gina Pino", Email: "GINA@EXAMPLE.CL"}},
		Commitments: []CommitmentInput{
			{Description: "Enviar acta", Priority: "Alta", DueDate: date(2025, time.March, 20), DepartmentID: o.it, Referents: []uint{o.staff.PersonID}},
			{Description: "Revisar dotación", Priority: "Media", DueDate: date(2025, time.April, 2), DepartmentID: o.support},
		},
	}
}

func TestMeetingCreate(t *testing.T) {
	o := newOrg(t)
	ctx := context.Background()
	svc := o.meetings()

	res, err := svc.Create(ctx, o.head, meetingInput(o))
	require.NoError(t, err)
	require.Len(t, res.CommitmentIDs, 2)

	m, err := repo.GetMeeting(ctx, o.db, res.Meeting.ID)
	require.NoError(t, err)
	require.Len(t, m.Topics, 2)
	require.Equal(t, "Dotación", m.Topics[1].Topic)
	require.Len(t, m.Attendees, 3)
	require.Equal(t, "Bruno Díaz", m.Attendees[0].DisplayName)
	require.Equal(t, "Carla Muñoz", m.Attendees[1].DisplayName)
	require.NotNil(t, m.Attendees[2].GuestID)

	area, err := repo.GetCatalog[domain.Area](ctx, o.db, *m.AreaID)
	require.NoError(t, err)
	require.Equal(t, "Recursos Humanos", area.Name)
	require.Equal(t, o.it, *area.DepartmentID)

	views, err := svc.Commitments(ctx, o.head, m.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	require.Equal(t, domain.StatusPending, views[0].Status)
	require.Equal(t, "Recursos Humanos", views[0].AreaName)
	require.Equal(t, "Comité Directivo", views[1].OriginName)

	found, err := svc.ByCommitment(ctx, res.CommitmentIDs[1])
	require.NoError(t, err)
	require.Equal(t, m.ID, found.ID)

	mine, err := svc.Mine(ctx, o.staff)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	mine, err = svc.Mine(ctx, o.finStaff)
	require.NoError(t, err)
	require.Empty(t, mine)

	// A second meeting reuses the catalog entry and the guest.
	in := meetingInput(o)
	in.AreaName = "RECURSOS HUMANOS"
	in.Guests[0].FullName = "Gina Pino Soto"
	res2, err := svc.Create(ctx, o.head, in)
	require.NoError(t, err)
	require.Equal(t, *m.AreaID, *res2.Meeting.AreaID)
	var guests int64
	require.NoError(t, o.db.Model(&domain.Guest{}).Count(&guests).Error)
	require.EqualValues(t, 1, guests)
}

func TestMeetingCreate_IsAtomic(t *testing.T) {
	o := newOrg(t)
	ctx := context.Background()
	svc := o.meetings()

	in := meetingInput(o)
	in.Commitments[1].Description = ""
	_, err := svc.Create(ctx, o.head, in)
	require.ErrorIs(t, err, ErrValidation)

	n, err := repo.CountMeetings(ctx, o.db)
	require.NoError(t, err)
	require.Zero(t, n)
	areas, err := repo.ListCatalogFor[domain.Area](ctx, o.db, 0)
	require.NoError(t, err)
	require.Empty(t, areas)
	count, err := repo.CountCommitments(ctx, o.db, repo.CommitmentFilter{})
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestMeetingCreate_Validation(t *testing.T) {
	o := newOrg(t)
	ctx := context.Background()
	svc := o.meetings()

	cases := []struct {
		name string
		edit func(*MeetingInput)
	}{
		{"no name", func(in *MeetingInput) { in.Name = "" }},
		{"no commitments", func(in *MeetingInput) { in.Commitments = nil }},
		{"no area", func(in *MeetingInput) { in.AreaName = " " }},
		{"unknown origin id", func(in *MeetingInput) { in.OriginID = ptr(uint(77)) }},
		{"unknown staff", func(in *MeetingInput) { in.StaffID = ptr(uint(5)) }},
		{"unknown attendee", func(in *MeetingInput) { in.AttendeeIDs = []uint{404} }},
		{"guest without email", func(in *MeetingInput) { in.Guests[0].Email = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := meetingInput(o)
			tc.edit(&in)
			_, err := svc.Create(ctx, o.head, in)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestMeetingQueries_NotFound(t *testing.T) {
	o := newOrg(t)
	ctx := context.Background()
	svc := o.meetings()

	_, err := svc.Commitments(ctx, o.head, 12)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = svc.ByCommitment(ctx, 12)
	require.ErrorIs(t, err, ErrNotFound)

	from, to := date(2025, time.May, 1), date(2025, time.April, 1)
	_, err = svc.Filter(ctx, repo.MeetingFilter{From: from, To: to})
	require.ErrorIs(t, err, ErrValidation)
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"  recursos   humanos ": "Recursos Humanos",
		"ÁREA técnica":          "Área Técnica",
		"":                      "",
	}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Fatalf("NormalizeName(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestMeetingCommitments_ActiveAndScoped(t *testing.T) {
	o := newOrg(t)
	ctx := context.Background()
	svc := o.meetings()

	in := meetingInput(o)
	in.Commitments[1].Referents = []uint{o.finStaff.PersonID}
	res, err := svc.Create(ctx, o.head, in)
	require.NoError(t, err)
	enviar, revisar := res.CommitmentIDs[0], res.CommitmentIDs[1]
	require.NoError(t, o.lifecycle().SoftDelete(ctx, o.head, enviar))

	ids := func(a domain.Actor) []uint {
		t.Helper()
		views, err := svc.Commitments(ctx, a, res.Meeting.ID)
		require.NoError(t, err)
		out := []uint{}
		for _, v := range views {
			out = append(out, v.ID)
		}
		return out
	}

	require.Equal(t, []uint{revisar}, ids(o.boss))
	require.Equal(t, []uint{revisar}, ids(o.head))
	require.Equal(t, []uint{revisar}, ids(o.supportStaff))
	// outside the department tree, but named as referent
	require.Equal(t, []uint{revisar}, ids(o.finStaff))
	require.Empty(t, ids(o.finHead))
	require.Empty(t, ids(o.staff))
	require.Empty(t, ids(domain.Actor{PersonID: o.staff.PersonID, Rank: domain.RankBase}))
}
