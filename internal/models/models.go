package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleMentor Role = "mentor"
	RoleMentee Role = "mentee"
)

// User is collaborator data owned by the account service; read-only here.
type User struct {
	ID       uuid.UUID `db:"id"`
	Role     Role      `db:"role"`
	Name     string    `db:"name"`
	Email    string    `db:"email"`
	Timezone string    `db:"timezone"`
}

type MentorshipStatus string

const (
	MentorshipPending  MentorshipStatus = "pending"
	MentorshipAccepted MentorshipStatus = "accepted"
	MentorshipRejected MentorshipStatus = "rejected"
)

type AvailabilityStatus string

const (
	AvailabilityAvailable   AvailabilityStatus = "available"
	AvailabilityUnavailable AvailabilityStatus = "unavailable"
	AvailabilityBooked      AvailabilityStatus = "booked"
)

// Break is a sub-interval inside an availability window, local time-of-day
// in the window's timezone ("15:04" format).
type Break struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason,omitempty"`
}

// MentorAvailability is either a recurring weekly window (DayOfWeek set) or a
// date-specific override (SpecificDate set). A specific-date row fully
// supersedes the recurring row for that date.
type MentorAvailability struct {
	ID           uuid.UUID          `db:"id"`
	MentorID     uuid.UUID          `db:"mentor_id"`
	IsRecurring  bool               `db:"is_recurring"`
	DayOfWeek    *int               `db:"day_of_week"`   // 0=Sunday..6, recurring rows only
	SpecificDate *time.Time         `db:"specific_date"` // date, non-recurring rows only
	StartTime    string             `db:"start_time"`    // "15:04", local to Timezone
	EndTime      string             `db:"end_time"`
	Timezone     string             `db:"timezone"`
	SlotDuration int                `db:"slot_duration"` // minutes
	Breaks       []Break            `db:"breaks"`
	Status       AvailabilityStatus `db:"status"`
	CreatedAt    time.Time          `db:"created_at"`
	UpdatedAt    time.Time          `db:"updated_at"`
}

type SessionStatus string

const (
	SessionScheduled   SessionStatus = "scheduled"
	SessionConfirmed   SessionStatus = "confirmed"
	SessionInProgress  SessionStatus = "in_progress"
	SessionCompleted   SessionStatus = "completed"
	SessionCancelled   SessionStatus = "cancelled"
	SessionNoShow      SessionStatus = "no_show"
	SessionRescheduled SessionStatus = "rescheduled"
)

// ActiveStatuses are the statuses that count toward scheduling conflicts.
var ActiveStatuses = []SessionStatus{SessionScheduled, SessionConfirmed, SessionInProgress}

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionScheduled, SessionConfirmed, SessionInProgress,
		SessionCompleted, SessionCancelled, SessionNoShow, SessionRescheduled:
		return true
	}
	return false
}

type SessionType string

const (
	SessionTypeVideo    SessionType = "video"
	SessionTypeAudio    SessionType = "audio"
	SessionTypeInPerson SessionType = "in_person"
)

func (t SessionType) Valid() bool {
	switch t {
	case SessionTypeVideo, SessionTypeAudio, SessionTypeInPerson:
		return true
	}
	return false
}

// ValidDuration reports whether d is an allowed session length in minutes.
func ValidDuration(d int) bool {
	switch d {
	case 30, 60, 90, 120:
		return true
	}
	return false
}

type Session struct {
	ID          uuid.UUID     `db:"id"`
	MentorID    uuid.UUID     `db:"mentor_id"`
	MenteeID    uuid.UUID     `db:"mentee_id"`
	ScheduledAt time.Time     `db:"scheduled_at"` // stored UTC
	Duration    int           `db:"duration"`     // minutes
	Timezone    string        `db:"timezone"`     // display reference zone
	Type        SessionType   `db:"type"`
	Status      SessionStatus `db:"status"`

	Title            string  `db:"title"`
	Description      string  `db:"description"`
	MeetingLink      *string `db:"meeting_link"`
	Location         *string `db:"location"`
	IsRecurring      bool    `db:"is_recurring"`
	RecurringPattern *string `db:"recurring_pattern"`
	Notes            *string `db:"notes"`

	// Reschedule negotiation, present only while a request is pending.
	PreviousScheduledAt   *time.Time `db:"previous_scheduled_at"`
	RequestedScheduledAt  *time.Time `db:"requested_scheduled_at"`
	RescheduleRequestedAt *time.Time `db:"reschedule_requested_at"`
	RescheduleReason      *string    `db:"reschedule_reason"`
	RescheduleMessage     *string    `db:"reschedule_message"`

	CancellationReason *string    `db:"cancellation_reason"`
	CancelledBy        *uuid.UUID `db:"cancelled_by"`
	DeclineReason      *string    `db:"decline_reason"`

	// Attendance confirmation, independent of Status.
	MentorConfirmed bool `db:"mentor_confirmed"`
	MenteeConfirmed bool `db:"mentee_confirmed"`

	ReminderSent bool       `db:"reminder_sent"`
	EndedAt      *time.Time `db:"ended_at"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// EndAt returns the exclusive end of the session interval.
func (s *Session) EndAt() time.Time {
	return s.ScheduledAt.Add(time.Duration(s.Duration) * time.Minute)
}

// IsActive reports whether the session counts toward conflicts.
func (s *Session) IsActive() bool {
	switch s.Status {
	case SessionScheduled, SessionConfirmed, SessionInProgress:
		return true
	}
	return false
}

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
)

// GroupSession belongs to the group-mentoring collaborator; this service only
// reads it as another interval source for conflict checks.
type GroupSession struct {
	ID          uuid.UUID     `db:"id"`
	MentorID    uuid.UUID     `db:"mentor_id"`
	ScheduledAt time.Time     `db:"scheduled_at"`
	Duration    int           `db:"duration"`
	Status      SessionStatus `db:"status"`
}

func (g *GroupSession) EndAt() time.Time {
	return g.ScheduledAt.Add(time.Duration(g.Duration) * time.Minute)
}

type GroupSessionParticipant struct {
	GroupSessionID   uuid.UUID        `db:"group_session_id"`
	UserID           uuid.UUID        `db:"user_id"`
	InvitationStatus InvitationStatus `db:"invitation_status"`
}

// SessionFilters narrows ListSessions; nil fields are ignored.
type SessionFilters struct {
	MentorID *uuid.UUID
	MenteeID *uuid.UUID
	Status   *SessionStatus
	Upcoming bool
	Past     bool
	Limit    int
	Offset   int
}
