// Package services – CommitmentService
//
// This file implements commitment creation, editing, referent reassignment
// and the filtered listings (shared, mine, by department, all, archived,
// deleted). Permission checks use the per-request Actor together with the
// department hierarchy scope; every write runs in one transaction and
// appends a CommitmentChange audit row.
package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
	"github.com/nicoiwnl/SGC-Maule/internal/repo"
	"github.com/nicoiwnl/SGC-Maule/internal/utils"
)

// CommitmentInput carries the fields of a new commitment. The first entry
// of Referents becomes the principal referent.
type CommitmentInput struct {
	Description      string
	Priority         string
	DueDate          *time.Time
	DepartmentID     uint
	AreaID           *uint
	OriginID         *uint
	Comment          string
	DirectionComment string
	Referents        []uint
}

// CommitmentPatch is a partial update; nil fields are left unchanged.
// A non-nil Referents reconciles the referent set.
type CommitmentPatch struct {
	Description      *string
	Status           *string
	Priority         *string
	Progress         *int
	Comment          *string
	DirectionComment *string
	DueDate          *time.Time
	Referents        *[]uint
}

// CommitmentView is a commitment as shown to a given actor.
type CommitmentView struct {
	repo.CommitmentRow
	Referents        []repo.ReferentRow `json:"referents"`
	ReferentsDisplay string             `json:"referents_display"`
	CanEdit          bool               `json:"can_edit"`
	CanDerive        bool               `json:"can_derive"`
	VerifierCount    *int64             `json:"verifier_count,omitempty"`
}

// ListFilter holds the optional listing filters as received from callers.
// Progress is a "min-max" range; Month is a Spanish month name or number.
type ListFilter struct {
	Search       string
	Status       string
	Priority     string
	Due          *time.Time
	Progress     string
	Month        string
	Year         int
	AreaID       uint
	DepartmentID uint
	Order        string
	Page         int
	PageSize     int
}

// CommitmentPage is one page of a listing. PageSize 0 means unpaged.
type CommitmentPage struct {
	Items    []CommitmentView `json:"items"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// CommitmentService implements commitment editing and listings.
type CommitmentService struct {
	DB *gorm.DB

	// Now is the clock for audit rows; defaults to UTC now.
	Now func() time.Time
}

func (s *CommitmentService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Create inserts a commitment owned by in.DepartmentID. The department must
// be inside the actor's scope unless the actor is the service director.
func (s *CommitmentService) Create(ctx context.Context, a domain.Actor, in CommitmentInput) (*CommitmentView, error) {
	ctx, span := otel.Tracer("services/CommitmentService").Start(ctx, "Create",
		trace.WithAttributes(
			attribute.Int64("actor.id", int64(a.PersonID)),
			attribute.Int64("department.id", int64(in.DepartmentID)),
		),
	)
	defer span.End()

	var id uint
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := createCommitment(ctx, tx, a, in, s.now())
		if err != nil {
			return err
		}
		id = c.ID
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return s.view(ctx, a, id)
}

// createCommitment validates in and writes the commitment, its referents and
// the audit row using tx. It is shared with MeetingService.
func createCommitment(ctx context.Context, tx *gorm.DB, a domain.Actor, in CommitmentInput, now time.Time) (*domain.Commitment, error) {
	in.Description = strings.TrimSpace(in.Description)
	in.Priority = strings.TrimSpace(in.Priority)
	switch {
	case in.Description == "":
		return nil, fmt.Errorf("description is required: %w", ErrValidation)
	case in.Priority == "":
		return nil, fmt.Errorf("priority is required: %w", ErrValidation)
	case in.DueDate == nil:
		return nil, fmt.Errorf("due date is required: %w", ErrValidation)
	case in.DepartmentID == 0:
		return nil, fmt.Errorf("department is required: %w", ErrValidation)
	}

	if _, err := repo.GetDepartment(ctx, tx, in.DepartmentID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("department %d: %w", in.DepartmentID, ErrValidation)
		}
		return nil, err
	}
	if !a.IsTopBoss {
		ids, err := visibleDepartments(ctx, tx, a)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(ids, in.DepartmentID) {
			return nil, ErrPermission
		}
	}

	refs := uniqueIDs(in.Referents)
	if err := ensurePeople(ctx, tx, refs); err != nil {
		return nil, err
	}

	c := &domain.Commitment{
		Description:      in.Description,
		Status:           domain.StatusPending,
		Priority:         in.Priority,
		CreatedAt:        now,
		DueDate:          in.DueDate,
		Progress:         0,
		Comment:          in.Comment,
		DirectionComment: in.DirectionComment,
		DepartmentID:     in.DepartmentID,
		AreaID:           in.AreaID,
		OriginID:         in.OriginID,
		Location:         domain.LocationActive,
		Version:          1,
	}
	if err := repo.CreateCommitment(ctx, tx, c); err != nil {
		return nil, fmt.Errorf("create commitment: %w", err)
	}
	if len(refs) > 0 {
		if err := repo.AddReferents(ctx, tx, c.ID, refs[:1], true); err != nil {
			return nil, err
		}
		if err := repo.AddReferents(ctx, tx, c.ID, refs[1:], false); err != nil {
			return nil, err
		}
	}
	if err := repo.LogChange(ctx, tx, c.ID, a.PersonID, domain.ActionCreate, now); err != nil {
		return nil, err
	}
	return c, nil
}

// Update applies p to an active commitment. Changing referents additionally
// requires the director flag or heading the owning department.
func (s *CommitmentService) Update(ctx context.Context, a domain.Actor, id uint, p CommitmentPatch) (*CommitmentView, error) {
	ctx, span := otel.Tracer("services/CommitmentService").Start(ctx, "Update",
		trace.WithAttributes(attribute.Int64("commitment.id", int64(id))),
	)
	defer span.End()

	fields := map[string]any{}
	if p.Description != nil {
		d := strings.TrimSpace(*p.Description)
		if d == "" {
			return nil, fmt.Errorf("description must not be empty: %w", ErrValidation)
		}
		fields["description"] = d
	}
	if p.Status != nil {
		st := strings.TrimSpace(*p.Status)
		if st == "" {
			return nil, fmt.Errorf("status must not be empty: %w", ErrValidation)
		}
		fields["status"] = st
	}
	if p.Priority != nil {
		pr := strings.TrimSpace(*p.Priority)
		if pr == "" {
			return nil, fmt.Errorf("priority must not be empty: %w", ErrValidation)
		}
		fields["priority"] = pr
	}
	if p.Progress != nil {
		if *p.Progress < 0 || *p.Progress > 100 {
			return nil, fmt.Errorf("progress %d out of range: %w", *p.Progress, ErrValidation)
		}
		fields["progress"] = *p.Progress
	}
	if p.Comment != nil {
		fields["comment"] = *p.Comment
	}
	if p.DirectionComment != nil {
		fields["direction_comment"] = *p.DirectionComment
	}
	if p.DueDate != nil {
		fields["due_date"] = *p.DueDate
	}
	if len(fields) == 0 && p.Referents == nil {
		return nil, fmt.Errorf("nothing to update: %w", ErrValidation)
	}

	now := s.now()
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := activeCommitment(ctx, tx, id)
		if err != nil {
			return err
		}
		if !a.CanEdit(c.DepartmentID) && !a.IsTopBoss {
			return ErrPermission
		}
		if p.Referents != nil {
			if !a.IsDirector && !a.HeadOf(c.DepartmentID) {
				return ErrPermission
			}
			if err := applyReferents(ctx, tx, id, *p.Referents); err != nil {
				return err
			}
		}
		if err := repo.UpdateCommitment(ctx, tx, id, fields); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return fmt.Errorf("commitment %d: %w", id, ErrConflict)
			}
			return err
		}
		return repo.LogChange(ctx, tx, id, a.PersonID, domain.ActionUpdate, now)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return s.view(ctx, a, id)
}

// Derive reassigns the referents of an active commitment to the desired set.
// The principal referent must remain in the set.
func (s *CommitmentService) Derive(ctx context.Context, a domain.Actor, id uint, referents []uint) (*CommitmentView, error) {
	ctx, span := otel.Tracer("services/CommitmentService").Start(ctx, "Derive",
		trace.WithAttributes(
			attribute.Int64("commitment.id", int64(id)),
			attribute.Int("referents", len(referents)),
		),
	)
	defer span.End()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := activeCommitment(ctx, tx, id)
		if err != nil {
			return err
		}
		if !a.CanEdit(c.DepartmentID) && !a.IsTopBoss {
			return ErrPermission
		}
		if err := applyReferents(ctx, tx, id, referents); err != nil {
			return err
		}
		return repo.LogChange(ctx, tx, id, a.PersonID, domain.ActionDerive, s.now())
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return s.view(ctx, a, id)
}

func activeCommitment(ctx context.Context, tx *gorm.DB, id uint) (*domain.Commitment, error) {
	c, err := repo.GetCommitment(ctx, tx, id, domain.LocationActive)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("commitment %d not active: %w", id, ErrNotFound)
	}
	return c, err
}

// applyReferents reconciles the referents of commitment id with desired.
func applyReferents(ctx context.Context, tx *gorm.DB, id uint, desired []uint) error {
	current, err := repo.ListReferents(ctx, tx, id)
	if err != nil {
		return err
	}
	plan, err := ReconcileReferents(current, desired)
	if err != nil {
		return err
	}
	if err := ensurePeople(ctx, tx, plan.Add); err != nil {
		return err
	}
	if _, err := repo.RemoveNonPrincipalReferents(ctx, tx, id, plan.Keep); err != nil {
		return err
	}
	return repo.AddReferents(ctx, tx, id, plan.Add, false)
}

// ensurePeople fails with ErrValidation unless every id names a person.
func ensurePeople(ctx context.Context, db *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	people, err := repo.GetPeople(ctx, db, ids)
	if err != nil {
		return err
	}
	if len(people) != len(ids) {
		return fmt.Errorf("unknown referent: %w", ErrValidation)
	}
	return nil
}

func uniqueIDs(ids []uint) []uint {
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id != 0 && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// Get returns a commitment if the actor may see it: its department is in
// scope, the actor is one of its referents, or the actor is the service
// director.
func (s *CommitmentService) Get(ctx context.Context, a domain.Actor, id uint) (*CommitmentView, error) {
	ctx, span := otel.Tracer("services/CommitmentService").Start(ctx, "Get",
		trace.WithAttributes(attribute.Int64("commitment.id", int64(id))),
	)
	defer span.End()

	v, err := s.view(ctx, a, id)
	if err != nil {
		return nil, err
	}
	if a.IsTopBoss {
		return v, nil
	}
	ids, err := visibleDepartments(ctx, s.DB, a)
	if err != nil {
		return nil, err
	}
	if slices.Contains(ids, v.DepartmentID) {
		return v, nil
	}
	for _, r := range v.Referents {
		if r.PersonID == a.PersonID {
			return v, nil
		}
	}
	return nil, ErrPermission
}

// History returns the audit trail of a commitment visible to a.
func (s *CommitmentService) History(ctx context.Context, a domain.Actor, id uint) ([]domain.CommitmentChange, error) {
	if _, err := s.Get(ctx, a, id); err != nil {
		return nil, err
	}
	return repo.ListChanges(ctx, s.DB, id)
}

func (s *CommitmentService) view(ctx context.Context, a domain.Actor, id uint) (*CommitmentView, error) {
	row, err := repo.GetCommitmentRow(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("commitment %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	views, err := buildViews(ctx, s.DB, a, []repo.CommitmentRow{*row}, row.Location != domain.LocationActive)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// buildViews attaches referents, permission flags and, when withVerifiers
// is set, verifier counts to rows.
func buildViews(ctx context.Context, db *gorm.DB, a domain.Actor, rows []repo.CommitmentRow, withVerifiers bool) ([]CommitmentView, error) {
	ids := make([]uint, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	refRows, err := repo.ListReferentRows(ctx, db, ids)
	if err != nil {
		return nil, err
	}
	byCommitment := make(map[uint][]repo.ReferentRow, len(rows))
	for _, r := range refRows {
		byCommitment[r.CommitmentID] = append(byCommitment[r.CommitmentID], r)
	}
	var counts map[uint]int64
	if withVerifiers {
		if counts, err = repo.CountVerifiersByCommitment(ctx, db, ids); err != nil {
			return nil, err
		}
	}

	out := make([]CommitmentView, len(rows))
	for i, r := range rows {
		refs := byCommitment[r.ID]
		if refs == nil {
			refs = []repo.ReferentRow{}
		}
		labels := make([]string, len(refs))
		for j, rr := range refs {
			labels[j] = ReferentLabel(rr.Name, rr.LastName, rr.Principal)
		}
		editable := r.Location == domain.LocationActive && (a.CanEdit(r.DepartmentID) || a.IsTopBoss)
		out[i] = CommitmentView{
			CommitmentRow:    r,
			Referents:        refs,
			ReferentsDisplay: strings.Join(labels, ", "),
			CanEdit:          editable,
			CanDerive:        editable,
		}
		if withVerifiers {
			n := counts[r.ID]
			out[i].VerifierCount = &n
		}
	}
	return out, nil
}

// ListShared lists active commitments of the actor's visible departments.
// The service director sees every department.
func (s *CommitmentService) ListShared(ctx context.Context, a domain.Actor, f ListFilter) (*CommitmentPage, error) {
	rf, err := s.scopedFilter(ctx, a, f)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, a, "ListShared", rf, f, false)
}

// ListMine lists active commitments where the actor is a referent.
func (s *CommitmentService) ListMine(ctx context.Context, a domain.Actor, f ListFilter) (*CommitmentPage, error) {
	rf, err := toRepoFilter(f)
	if err != nil {
		return nil, err
	}
	rf.ReferentID = a.PersonID
	if f.DepartmentID != 0 {
		rf.Scoped = true
		rf.DepartmentIDs = []uint{f.DepartmentID}
	}
	return s.list(ctx, a, "ListMine", rf, f, false)
}

// ListByDepartment lists active commitments of one department, which must
// be visible to the actor.
func (s *CommitmentService) ListByDepartment(ctx context.Context, a domain.Actor, deptID uint, f ListFilter) (*CommitmentPage, error) {
	if deptID == 0 {
		return nil, fmt.Errorf("department is required: %w", ErrValidation)
	}
	f.DepartmentID = deptID
	rf, err := s.scopedFilter(ctx, a, f)
	if err != nil {
		return nil, err
	}
	if len(rf.DepartmentIDs) == 0 {
		return nil, ErrPermission
	}
	return s.list(ctx, a, "ListByDepartment", rf, f, false)
}

// ListAll lists every active commitment. It requires the director flag.
func (s *CommitmentService) ListAll(ctx context.Context, a domain.Actor, f ListFilter) (*CommitmentPage, error) {
	if !a.IsDirector {
		return nil, ErrPermission
	}
	rf, err := toRepoFilter(f)
	if err != nil {
		return nil, err
	}
	if f.DepartmentID != 0 {
		rf.Scoped = true
		rf.DepartmentIDs = []uint{f.DepartmentID}
	}
	return s.list(ctx, a, "ListAll", rf, f, false)
}

// ListArchived lists archived commitments in scope with verifier counts.
func (s *CommitmentService) ListArchived(ctx context.Context, a domain.Actor, f ListFilter) (*CommitmentPage, error) {
	return s.listStored(ctx, a, domain.LocationArchived, f)
}

// ListDeleted lists soft-deleted commitments in scope with verifier counts.
func (s *CommitmentService) ListDeleted(ctx context.Context, a domain.Actor, f ListFilter) (*CommitmentPage, error) {
	return s.listStored(ctx, a, domain.LocationDeleted, f)
}

func (s *CommitmentService) listStored(ctx context.Context, a domain.Actor, loc domain.Location, f ListFilter) (*CommitmentPage, error) {
	if !a.CanManageLifecycle() {
		return nil, ErrPermission
	}
	rf, err := s.scopedFilter(ctx, a, f)
	if err != nil {
		return nil, err
	}
	rf.Location = loc
	return s.list(ctx, a, "List"+strings.ToUpper(string(loc[:1]))+string(loc[1:]), rf, f, true)
}

// scopedFilter converts f and restricts it to the actor's visible
// departments, narrowed to f.DepartmentID when set.
func (s *CommitmentService) scopedFilter(ctx context.Context, a domain.Actor, f ListFilter) (repo.CommitmentFilter, error) {
	rf, err := toRepoFilter(f)
	if err != nil {
		return rf, err
	}
	if a.IsTopBoss {
		if f.DepartmentID != 0 {
			rf.Scoped = true
			rf.DepartmentIDs = []uint{f.DepartmentID}
		}
		return rf, nil
	}
	ids, err := visibleDepartments(ctx, s.DB, a)
	if err != nil {
		return rf, err
	}
	rf.Scoped = true
	rf.DepartmentIDs = ids
	if f.DepartmentID != 0 {
		rf.DepartmentIDs = []uint{}
		if slices.Contains(ids, f.DepartmentID) {
			rf.DepartmentIDs = []uint{f.DepartmentID}
		}
	}
	return rf, nil
}

func (s *CommitmentService) list(ctx context.Context, a domain.Actor, op string, rf repo.CommitmentFilter, f ListFilter, withVerifiers bool) (*CommitmentPage, error) {
	ctx, span := otel.Tracer("services/CommitmentService").Start(ctx, op,
		trace.WithAttributes(
			attribute.Int64("actor.id", int64(a.PersonID)),
			attribute.Int("scope.departments", len(rf.DepartmentIDs)),
		),
	)
	defer span.End()

	page := &CommitmentPage{Items: []CommitmentView{}}
	if f.PageSize > 0 {
		page.Page = max(f.Page, 1)
		page.PageSize = f.PageSize
		rf.Limit = f.PageSize
		rf.Offset = (page.Page - 1) * f.PageSize
	}

	rows, err := repo.ListCommitments(ctx, s.DB, rf)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	page.Total = int64(len(rows))
	if rf.Limit > 0 {
		if page.Total, err = repo.CountCommitments(ctx, s.DB, rf); err != nil {
			return nil, err
		}
	}
	if len(rows) == 0 {
		return page, nil
	}
	if page.Items, err = buildViews(ctx, s.DB, a, rows, withVerifiers); err != nil {
		return nil, err
	}
	return page, nil
}

// toRepoFilter validates f and converts it into a repository filter.
func toRepoFilter(f ListFilter) (repo.CommitmentFilter, error) {
	lo, hi, err := utils.ParseRange(f.Progress)
	if err != nil {
		return repo.CommitmentFilter{}, fmt.Errorf("progress: %v: %w", err, ErrValidation)
	}
	order := strings.ToLower(strings.TrimSpace(f.Order))
	if order != "asc" && order != "desc" {
		order = ""
	}
	if f.Year < 0 {
		return repo.CommitmentFilter{}, fmt.Errorf("year %d: %w", f.Year, ErrValidation)
	}
	return repo.CommitmentFilter{
		Search:      strings.TrimSpace(f.Search),
		Status:      strings.TrimSpace(f.Status),
		Priority:    strings.TrimSpace(f.Priority),
		DueDate:     f.Due,
		ProgressMin: lo,
		ProgressMax: hi,
		Month:       MonthNumber(f.Month),
		Year:        f.Year,
		AreaID:      f.AreaID,
		OrderDue:    order,
	}, nil
}
