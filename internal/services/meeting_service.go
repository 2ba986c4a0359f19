// Package services – MeetingService
//
// This file implements meeting registration. A meeting is created together
// with its attendees, topics and the commitments it produced in a single
// transaction; area and origin may be given by id or by a new name, in
// which case the catalog entry is created on the fly.
package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
	"github.com/nicoiwnl/SGC-Maule/internal/repo"
)

// GuestInput is an external attendee, matched to existing guests by email.
type GuestInput struct {
	FullName    string
	Institution string
	Email       string
	Phone       string
}

// MeetingInput carries a meeting and the commitments it produced. Area and
// origin are taken from the id when set, otherwise from the name.
type MeetingInput struct {
	Name         string
	StaffID      *uint
	AreaID       *uint
	AreaName     string
	OriginID     *uint
	OriginName   string
	Place        string
	Subject      string
	NextMeetings string
	MinutesPath  string
	Topics       []string
	AttendeeIDs  []uint
	Guests       []GuestInput
	Commitments  []CommitmentInput
}

// MeetingResult is a created meeting with the ids of its commitments.
type MeetingResult struct {
	Meeting       *domain.Meeting `json:"meeting"`
	CommitmentIDs []uint          `json:"commitment_ids"`
}

// MeetingService records meetings and answers meeting queries.
type MeetingService struct {
	DB *gorm.DB

	// Now is the clock for creation times; defaults to UTC now.
	Now func() time.Time
}

func (s *MeetingService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// NormalizeName collapses whitespace and title-cases a catalog name.
func NormalizeName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	return cases.Title(language.Spanish).String(name)
}

// Create registers a meeting with its attendees, topics and commitments.
// Every commitment starts pending at 0% and is linked to the meeting.
func (s *MeetingService) Create(ctx context.Context, a domain.Actor, in MeetingInput) (*MeetingResult, error) {
	ctx, span := otel.Tracer("services/MeetingService").Start(ctx, "Create",
		trace.WithAttributes(
			attribute.Int64("actor.id", int64(a.PersonID)),
			attribute.Int("commitments", len(in.Commitments)),
		),
	)
	defer span.End()

	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, fmt.Errorf("meeting name is required: %w", ErrValidation)
	}
	if len(in.Commitments) == 0 {
		return nil, fmt.Errorf("at least one commitment is required: %w", ErrValidation)
	}

	var deptID *uint
	if a.HasDepartment {
		d := a.DepartmentID
		deptID = &d
	}
	now := s.now()
	out := &MeetingResult{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		areaID, err := resolveCatalog(ctx, tx, in.AreaID, in.AreaName, deptID, "area",
			func(name string, dept *uint) *domain.Area { return &domain.Area{Name: name, DepartmentID: dept} },
			func(x *domain.Area) uint { return x.ID })
		if err != nil {
			return err
		}
		originID, err := resolveCatalog(ctx, tx, in.OriginID, in.OriginName, deptID, "origin",
			func(name string, dept *uint) *domain.Origin { return &domain.Origin{Name: name, DepartmentID: dept} },
			func(x *domain.Origin) uint { return x.ID })
		if err != nil {
			return err
		}
		if in.StaffID != nil {
			if _, err := repo.GetStaff(ctx, tx, *in.StaffID); err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					return fmt.Errorf("staff %d: %w", *in.StaffID, ErrValidation)
				}
				return err
			}
		}

		attendees, err := meetingAttendees(ctx, tx, in.AttendeeIDs, in.Guests)
		if err != nil {
			return err
		}
		m := &domain.Meeting{
			Name:         in.Name,
			StaffID:      in.StaffID,
			AreaID:       areaID,
			OriginID:     originID,
			CreatedAt:    now,
			Place:        strings.TrimSpace(in.Place),
			Subject:      strings.TrimSpace(in.Subject),
			NextMeetings: strings.TrimSpace(in.NextMeetings),
			MinutesPath:  strings.TrimSpace(in.MinutesPath),
			Attendees:    attendees,
			Topics:       meetingTopics(in.Topics),
		}
		if err := repo.CreateMeeting(ctx, tx, m); err != nil {
			return fmt.Errorf("create meeting: %w", err)
		}

		for i, ci := range in.Commitments {
			if ci.AreaID == nil {
				ci.AreaID = areaID
			}
			if ci.OriginID == nil {
				ci.OriginID = originID
			}
			c, err := createCommitment(ctx, tx, a, ci, now)
			if err != nil {
				return fmt.Errorf("commitment %d: %w", i+1, err)
			}
			if err := repo.LinkMeetingCommitment(ctx, tx, m.ID, c.ID); err != nil {
				return err
			}
			out.CommitmentIDs = append(out.CommitmentIDs, c.ID)
		}
		out.Meeting = m
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

// resolveCatalog returns the id of an existing entry, or finds or creates
// one named name (normalized) owned by deptID.
func resolveCatalog[T repo.Catalog](
	ctx context.Context,
	tx *gorm.DB,
	id *uint,
	name string,
	deptID *uint,
	kind string,
	build func(string, *uint) *T,
	idOf func(*T) uint,
) (*uint, error) {
	if id != nil {
		if _, err := repo.GetCatalog[T](ctx, tx, *id); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, fmt.Errorf("%s %d: %w", kind, *id, ErrValidation)
			}
			return nil, err
		}
		return id, nil
	}
	name = NormalizeName(name)
	if name == "" {
		return nil, fmt.Errorf("%s is required: %w", kind, ErrValidation)
	}
	found, err := repo.FindCatalogByName[T](ctx, tx, name, deptID)
	switch {
	case err == nil:
		v := idOf(found)
		return &v, nil
	case !errors.Is(err, repo.ErrNotFound):
		return nil, err
	}
	item := build(name, deptID)
	if err := repo.CreateCatalog(ctx, tx, item); err != nil {
		return nil, fmt.Errorf("create %s: %w", kind, err)
	}
	v := idOf(item)
	return &v, nil
}

// meetingAttendees resolves persons (in the given order) followed by
// guests into ordered attendee rows. Guests are upserted by email.
func meetingAttendees(ctx context.Context, tx *gorm.DB, personIDs []uint, guests []GuestInput) ([]domain.MeetingAttendee, error) {
	ids := uniqueIDs(personIDs)
	people, err := repo.GetPeople(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]domain.Person, len(people))
	for _, p := range people {
		byID[p.ID] = p
	}

	out := make([]domain.MeetingAttendee, 0, len(ids)+len(guests))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("attendee %d: %w", id, ErrValidation)
		}
		pid := p.ID
		out = append(out, domain.MeetingAttendee{Position: len(out) + 1, PersonID: &pid, DisplayName: p.FullName()})
	}
	for _, g := range guests {
		name := strings.TrimSpace(g.FullName)
		email := strings.TrimSpace(g.Email)
		if name == "" || email == "" {
			return nil, fmt.Errorf("guest name and email are required: %w", ErrValidation)
		}
		stored, err := repo.UpsertGuest(ctx, tx, &domain.Guest{
			FullName:    name,
			Institution: strings.TrimSpace(g.Institution),
			Email:       email,
			Phone:       strings.TrimSpace(g.Phone),
		})
		if err != nil {
			return nil, fmt.Errorf("guest %s: %w", email, err)
		}
		gid := stored.ID
		out = append(out, domain.MeetingAttendee{Position: len(out) + 1, GuestID: &gid, DisplayName: stored.FullName})
	}
	return out, nil
}

func meetingTopics(topics []string) []domain.MeetingTopic {
	out := make([]domain.MeetingTopic, 0, len(topics))
	for _, t := range topics {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, domain.MeetingTopic{Position: len(out) + 1, Topic: t})
		}
	}
	return out
}

// Mine returns the meetings the actor attended, newest first.
func (s *MeetingService) Mine(ctx context.Context, a domain.Actor) ([]domain.Meeting, error) {
	ctx, span := otel.Tracer("services/MeetingService").Start(ctx, "Mine")
	defer span.End()
	return repo.ListMeetings(ctx, s.DB, repo.MeetingFilter{AttendeeID: a.PersonID})
}

// Filter returns meetings by area, origin and creation range [from, to).
func (s *MeetingService) Filter(ctx context.Context, f repo.MeetingFilter) ([]domain.Meeting, error) {
	ctx, span := otel.Tracer("services/MeetingService").Start(ctx, "Filter")
	defer span.End()
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return nil, fmt.Errorf("from must be before to: %w", ErrValidation)
	}
	return repo.ListMeetings(ctx, s.DB, f)
}

// Commitments returns the active commitments produced by a meeting that a
// can see: those in its department scope plus those naming it as referent.
func (s *MeetingService) Commitments(ctx context.Context, a domain.Actor, meetingID uint) ([]CommitmentView, error) {
	ctx, span := otel.Tracer("services/MeetingService").Start(ctx, "Commitments",
		trace.WithAttributes(attribute.Int64("meeting.id", int64(meetingID))),
	)
	defer span.End()

	if _, err := repo.GetMeeting(ctx, s.DB, meetingID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("meeting %d: %w", meetingID, ErrNotFound)
		}
		return nil, err
	}
	rows, err := s.meetingRows(ctx, a, meetingID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(rows) == 0 {
		return []CommitmentView{}, nil
	}
	return buildViews(ctx, s.DB, a, rows, false)
}

func (s *MeetingService) meetingRows(ctx context.Context, a domain.Actor, meetingID uint) ([]repo.CommitmentRow, error) {
	f := repo.CommitmentFilter{Location: domain.LocationActive, MeetingID: meetingID}
	if a.IsTopBoss {
		return repo.ListCommitments(ctx, s.DB, f)
	}

	ids, err := visibleDepartments(ctx, s.DB, a)
	if err != nil {
		return nil, err
	}
	scoped := f
	scoped.Scoped, scoped.DepartmentIDs = true, ids
	rows, err := repo.ListCommitments(ctx, s.DB, scoped)
	if err != nil || a.PersonID == 0 {
		return rows, err
	}

	mine := f
	mine.ReferentID = a.PersonID
	extra, err := repo.ListCommitments(ctx, s.DB, mine)
	if err != nil {
		return nil, err
	}
	for _, r := range extra {
		if !slices.ContainsFunc(rows, func(x repo.CommitmentRow) bool { return x.ID == r.ID }) {
			rows = append(rows, r)
		}
	}
	slices.SortFunc(rows, func(x, y repo.CommitmentRow) int { return cmp.Compare(x.ID, y.ID) })
	return rows, nil
}

// ByCommitment returns the meeting a commitment came from.
func (s *MeetingService) ByCommitment(ctx context.Context, commitmentID uint) (*domain.Meeting, error) {
	ctx, span := otel.Tracer("services/MeetingService").Start(ctx, "ByCommitment",
		trace.WithAttributes(attribute.Int64("commitment.id", int64(commitmentID))),
	)
	defer span.End()

	m, err := repo.MeetingForCommitment(ctx, s.DB, commitmentID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("no meeting for commitment %d: %w", commitmentID, ErrNotFound)
	}
	return m, err
}

// Get returns a meeting together with the ids of its commitments.
func (s *MeetingService) Get(ctx context.Context, id uint) (*MeetingResult, error) {
	ctx, span := otel.Tracer("services/MeetingService").Start(ctx, "Get",
		trace.WithAttributes(attribute.Int64("meeting.id", int64(id))),
	)
	defer span.End()

	m, err := repo.GetMeeting(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("meeting %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	ids, err := repo.MeetingCommitmentIDs(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	return &MeetingResult{Meeting: m, CommitmentIDs: ids}, nil
}
