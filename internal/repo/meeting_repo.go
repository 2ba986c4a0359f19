package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nicoiwnl/SGC-Maule/internal/domain"
)

// MeetingFilter narrows ListMeetings. Zero values mean no restriction.
type MeetingFilter struct {
	AttendeeID uint
	AreaID     uint
	OriginID   uint
	From       *time.Time
	To         *time.Time
}

// CreateMeeting inserts a meeting together with its attendees and topics.
func CreateMeeting(ctx context.Context, db *gorm.DB, m *domain.Meeting) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(m).Error
}

// GetMeeting loads a meeting with attendees and topics in list order.
func GetMeeting(ctx context.Context, db *gorm.DB, id uint) (*domain.Meeting, error) {
	var m domain.Meeting
	err := db.WithContext(ctx).
		Preload("Attendees", func(tx *gorm.DB) *gorm.DB { return tx.Order("position asc") }).
		Preload("Topics", func(tx *gorm.DB) *gorm.DB { return tx.Order("position asc") }).
		First(&m, id).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMeetings returns meetings matching f, newest first, with attendees
// and topics.
func ListMeetings(ctx context.Context, db *gorm.DB, f MeetingFilter) ([]domain.Meeting, error) {
	q := db.WithContext(ctx).
		Preload("Attendees", func(tx *gorm.DB) *gorm.DB { return tx.Order("position asc") }).
		Preload("Topics", func(tx *gorm.DB) *gorm.DB { return tx.Order("position asc") })
	if f.AttendeeID != 0 {
		q = q.Where("id IN (SELECT meeting_id FROM meeting_attendee WHERE person_id = ?)", f.AttendeeID)
	}
	if f.AreaID != 0 {
		q = q.Where("area_id = ?", f.AreaID)
	}
	if f.OriginID != 0 {
		q = q.Where("origin_id = ?", f.OriginID)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}
	out := []domain.Meeting{}
	err := q.Order("created_at desc, id desc").Find(&out).Error
	return out, err
}

// LinkMeetingCommitment associates a commitment with a meeting.
func LinkMeetingCommitment(ctx context.Context, db *gorm.DB, meetingID, commitmentID uint) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.MeetingCommitment{MeetingID: meetingID, CommitmentID: commitmentID}).Error
}

// MeetingCommitmentIDs returns the ids of commitments linked to a meeting.
func MeetingCommitmentIDs(ctx context.Context, db *gorm.DB, meetingID uint) ([]uint, error) {
	var ids []uint
	err := db.WithContext(ctx).
		Model(&domain.MeetingCommitment{}).
		Where("meeting_id = ?", meetingID).
		Order("commitment_id asc").
		Pluck("commitment_id", &ids).Error
	return ids, err
}

// MeetingForCommitment returns the meeting a commitment came from, or
// ErrNotFound.
func MeetingForCommitment(ctx context.Context, db *gorm.DB, commitmentID uint) (*domain.Meeting, error) {
	var link domain.MeetingCommitment
	err := db.WithContext(ctx).
		Where("commitment_id = ?", commitmentID).
		Order("meeting_id asc").
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return GetMeeting(ctx, db, link.MeetingID)
}

// CountMeetings returns the number of meetings.
func CountMeetings(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Meeting{}).Count(&n).Error
	return n, err
}
