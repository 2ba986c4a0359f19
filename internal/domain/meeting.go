package domain

import "time"

// Meeting is a recorded event that originates commitments. Attendees and
// topics are ordered child rows rather than delimited strings.
type Meeting struct {
	ID           uint      `json:"id"            gorm:"primaryKey"`
	Name         string    `json:"name"          gorm:"type:varchar(255);not null"`
	StaffID      *uint     `json:"staff_id,omitempty"`
	AreaID       *uint     `json:"area_id,omitempty"   gorm:"index:idx_meeting_area"`
	OriginID     *uint     `json:"origin_id,omitempty" gorm:"index:idx_meeting_origin"`
	CreatedAt    time.Time `json:"created_at"    gorm:"index:idx_meeting_created"`
	Place        string    `json:"place"         gorm:"type:varchar(255)"`
	Subject      string    `json:"subject"       gorm:"type:text"`
	NextMeetings string    `json:"next_meetings" gorm:"type:text"`
	MinutesPath  string    `json:"minutes_path"  gorm:"type:varchar(512)"`

	Attendees []MeetingAttendee `json:"attendees,omitempty" gorm:"foreignKey:MeetingID;constraint:OnDelete:CASCADE"`
	Topics    []MeetingTopic    `json:"topics,omitempty"    gorm:"foreignKey:MeetingID;constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name for Meeting.
func (Meeting) TableName() string { return "meeting" }

// MeetingAttendee is one entry of a meeting's attendance list. Exactly one
// of PersonID and GuestID is set; DisplayName is a snapshot for listings.
type MeetingAttendee struct {
	ID          uint   `json:"id"          gorm:"primaryKey"`
	MeetingID   uint   `json:"meeting_id"  gorm:"not null;index:idx_attendee_meeting,priority:1"`
	Position    int    `json:"position"    gorm:"not null;index:idx_attendee_meeting,priority:2"`
	PersonID    *uint  `json:"person_id,omitempty" gorm:"index:idx_attendee_person"`
	GuestID     *uint  `json:"guest_id,omitempty"`
	DisplayName string `json:"display_name" gorm:"type:varchar(255);not null"`
}

// TableName returns the database table name for MeetingAttendee.
func (MeetingAttendee) TableName() string { return "meeting_attendee" }

// MeetingTopic is one analyzed topic of a meeting.
type MeetingTopic struct {
	ID        uint   `json:"id"         gorm:"primaryKey"`
	MeetingID uint   `json:"meeting_id" gorm:"not null;index:idx_topic_meeting,priority:1"`
	Position  int    `json:"position"   gorm:"not null;index:idx_topic_meeting,priority:2"`
	Topic     string `json:"topic"      gorm:"type:text;not null"`
}

// TableName returns the database table name for MeetingTopic.
func (MeetingTopic) TableName() string { return "meeting_topic" }

// MeetingCommitment links a commitment to the meeting that produced it.
type MeetingCommitment struct {
	MeetingID    uint `json:"meeting_id"    gorm:"primaryKey;autoIncrement:false"`
	CommitmentID uint `json:"commitment_id" gorm:"primaryKey;autoIncrement:false;index:idx_meeting_commitment_c"`
}

// TableName returns the database table name for MeetingCommitment.
func (MeetingCommitment) TableName() string { return "meeting_commitment" }

// Staff is the body hosting a meeting.
type Staff struct {
	ID   uint   `json:"id"   gorm:"primaryKey"`
	Name string `json:"name" gorm:"type:varchar(255);not null"`
}

// TableName returns the database table name for Staff.
func (Staff) TableName() string { return "staff" }

// Guest is an external meeting attendee, unique by email.
type Guest struct {
	ID          uint   `json:"id"          gorm:"primaryKey"`
	FullName    string `json:"full_name"   gorm:"type:varchar(255);not null"`
	Institution string `json:"institution" gorm:"type:varchar(255)"`
	Email       string `json:"email"       gorm:"type:varchar(255);not null;uniqueIndex:ux_guest_email"`
	Phone       string `json:"phone"       gorm:"type:varchar(32)"`
}

// TableName returns the database table name for Guest.
func (Guest) TableName() string { return "guest" }
