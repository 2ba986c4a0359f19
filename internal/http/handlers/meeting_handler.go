package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nicoiwnl/SGC-Maule/internal/http/middleware"
	"github.com/nicoiwnl/SGC-Maule/internal/repo"
	"github.com/nicoiwnl/SGC-Maule/internal/services"
)

// GuestRequest is an external attendee, matched to known guests by email.
type GuestRequest struct {
	FullName    string `json:"full_name"   binding:"required,max=200" example:"Gina Pino"`
	Institution string `json:"institution" binding:"max=200"`
	Email       string `json:"email"       binding:"required,email"   example:"gina@example.cl"`
	Phone       string `json:"phone"       binding:"max=50"`
}

// CreateMeetingRequest records a meeting and the commitments it produced.
// Area and origin may name an existing entry by id or a new one by name.
type CreateMeetingRequest struct {
	Name         string                    `json:"name"          binding:"required,max=255" example:"Comité de gestión"`
	StaffID      *uint                     `json:"staff_id,omitempty"`
	AreaID       *uint                     `json:"area_id,omitempty"`
	AreaName     string                    `json:"area_name,omitempty"   example:"Recursos Humanos"`
	OriginID     *uint                     `json:"origin_id,omitempty"`
	OriginName   string                    `json:"origin_name,omitempty" example:"Comité Directivo"`
	Place        string                    `json:"place,omitempty"`
	Subject      string                    `json:"subject,omitempty"`
	NextMeetings string                    `json:"next_meetings,omitempty"`
	MinutesPath  string                    `json:"minutes_path,omitempty"`
	Topics       []string                  `json:"topics,omitempty"`
	AttendeeIDs  []uint                    `json:"attendee_ids,omitempty"`
	Guests       []GuestRequest            `json:"guests,omitempty"      binding:"dive"`
	Commitments  []CreateCommitmentRequest `json:"commitments"           binding:"required,min=1,dive"`
}

func (r CreateMeetingRequest) input() services.MeetingInput {
	in := services.MeetingInput{
		Name:         r.Name,
		StaffID:      r.StaffID,
		AreaID:       r.AreaID,
		AreaName:     r.AreaName,
		OriginID:     r.OriginID,
		OriginName:   r.OriginName,
		Place:        r.Place,
		Subject:      r.Subject,
		NextMeetings: r.NextMeetings,
		MinutesPath:  r.MinutesPath,
		Topics:       r.Topics,
		AttendeeIDs:  r.AttendeeIDs,
	}
	for _, g := range r.Guests {
		in.Guests = append(in.Guests, services.GuestInput(g))
	}
	for _, cm := range r.Commitments {
		in.Commitments = append(in.Commitments, cm.input())
	}
	return in
}

// ListMeetingsQuery filters meetings. mine=true lists the caller's own
// meetings and ignores the other filters.
type ListMeetingsQuery struct {
	Mine   bool   `form:"mine"`
	Area   uint   `form:"area"`
	Origin uint   `form:"origin"`
	From   string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To     string `form:"to"   binding:"omitempty,datetime=2006-01-02"`
}

// CreateMeeting godoc
// @ID          createMeeting
// @Summary     Record a meeting with its commitments
// @Description Creates the meeting, its topics, attendees and commitments in one transaction. With an Idempotency-Key, a retry returns the meeting created first (200, Idempotent-Replay: true).
// @Tags        Meetings
// @Accept      json
// @Produce     json
// @Param       X-User-ID        header  int     true  "Person id of the caller"
// @Param       Idempotency-Key  header  string  false "Key for safe retries"
// @Param       body             body    handlers.CreateMeetingRequest  true  "Meeting"
// @Success     201  {object} services.MeetingResult
// @Success     200  {object} services.MeetingResult "Replayed creation"
// @Failure     400  {object} handlers.ErrorResponse "Invalid body"
// @Failure     403  {object} handlers.ErrorResponse "Commitment department outside scope"
// @Router      /meetings [post]
func (h *Handlers) CreateMeeting(c *gin.Context) {
	a, okA := actor(c)
	if !okA {
		return
	}
	ctx := c.Request.Context()

	if id, replay := middleware.ReplayOf(c); replay {
		if res, err := h.meetings.Get(ctx, id); err == nil {
			c.Header(middleware.HeaderIdempotentReplay, "true")
			ok(c, http.StatusOK, res)
			return
		}
	}

	var req CreateMeetingRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.meetings.Create(ctx, a, req.input())
	if err != nil {
		mapServiceError(c, err)
		return
	}
	h.remember(c, a, res.Meeting.ID)
	ok(c, http.StatusCreated, res)
}

// ListMeetings godoc
// @ID          listMeetings
// @Summary     List meetings
// @Tags        Meetings
// @Produce     json
// @Param       X-User-ID  header  int     true   "Person id of the caller"
// @Param       mine       query   bool    false  "Only meetings the caller attended"
// @Param       area       query   int     false  "Area id"
// @Param       origin     query   int     false  "Origin id"
// @Param       from       query   string  false  "Created on or after (YYYY-MM-DD)"
// @Param       to         query   string  false  "Created before (YYYY-MM-DD)"
// @Success     200  {array}  domain.Meeting
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Router      /meetings [get]
func (h *Handlers) ListMeetings(c *gin.Context) {
	a, okA := actor(c)
	if !okA {
		return
	}
	var q ListMeetingsQuery
	if !bindQuery(c, &q) {
		return
	}
	ctx := c.Request.Context()
	if q.Mine {
		ms, err := h.meetings.Mine(ctx, a)
		if err != nil {
			mapServiceError(c, err)
			return
		}
		ok(c, http.StatusOK, ms)
		return
	}

	from, okF := dateParam(c, "from")
	if !okF {
		return
	}
	to, okT := dateParam(c, "to")
	if !okT {
		return
	}
	ms, err := h.meetings.Filter(ctx, repo.MeetingFilter{AreaID: q.Area, OriginID: q.Origin, From: from, To: to})
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, ms)
}

// MeetingCommitments godoc
// @ID          meetingCommitments
// @Summary     Commitments produced by a meeting
// @Tags        Meetings
// @Produce     json
// @Param       X-User-ID  header  int  true  "Person id of the caller"
// @Param       id         path    int  true  "Meeting id"
// @Success     200  {array}  services.CommitmentView
// @Failure     404  {object} handlers.ErrorResponse "Not found"
// @Router      /meetings/{id}/commitments [get]
func (h *Handlers) MeetingCommitments(c *gin.Context) {
	a, okA := actor(c)
	if !okA {
		return
	}
	id, okID := idParam(c, "id")
	if !okID {
		return
	}
	views, err := h.meetings.Commitments(c.Request.Context(), a, id)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, views)
}

// CommitmentMeeting godoc
// @ID          commitmentMeeting
// @Summary     Meeting a commitment came from
// @Tags        Meetings
// @Produce     json
// @Param       X-User-ID  header  int  true  "Person id of the caller"
// @Param       id         path    int  true  "Commitment id"
// @Success     200  {object} domain.Meeting
// @Failure     404  {object} handlers.ErrorResponse "No meeting"
// @Router      /commitments/{id}/meeting [get]
func (h *Handlers) CommitmentMeeting(c *gin.Context) {
	if _, okA := actor(c); !okA {
		return
	}
	id, okID := idParam(c, "id")
	if !okID {
		return
	}
	m, err := h.meetings.ByCommitment(c.Request.Context(), id)
	if err != nil {
		mapServiceError(c, err)
		return
	}
	ok(c, http.StatusOK, m)
}
