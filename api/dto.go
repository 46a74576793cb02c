package api

import "time"

type CreateSessionRequest struct {
	MentorID         string  `json:"mentor_id"`
	ScheduledAt      string  `json:"scheduled_at"` // RFC3339
	Duration         int     `json:"duration,omitempty"`
	Type             string  `json:"type,omitempty"`
	Timezone         string  `json:"timezone,omitempty"`
	Title            string  `json:"title,omitempty"`
	Description      string  `json:"description,omitempty"`
	MeetingLink      *string `json:"meeting_link,omitempty"`
	Location         *string `json:"location,omitempty"`
	IsRecurring      bool    `json:"is_recurring,omitempty"`
	RecurringPattern *string `json:"recurring_pattern,omitempty"`
}

// UpdateSessionRequest enumerates the only fields PUT /sessions/{id} may touch.
// Scheduling fields move through the reschedule flow, never through updates.
type UpdateSessionRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	MeetingLink *string `json:"meeting_link,omitempty"`
	Location    *string `json:"location,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

type CancelSessionRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type DeclineSessionRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type RescheduleRequest struct {
	NewScheduledAt string  `json:"new_scheduled_at"` // RFC3339
	Reason         *string `json:"reason,omitempty"`
	Message        *string `json:"message,omitempty"`
}

type DeclineRescheduleRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type ListSessionsQuery struct {
	Status   *string
	MentorID *string
	MenteeID *string
	Upcoming bool
	Past     bool
	Limit    int
	Offset   int
}

type SessionResponse struct {
	ID          string `json:"id"`
	MentorID    string `json:"mentor_id"`
	MenteeID    string `json:"mentee_id"`
	ScheduledAt string `json:"scheduled_at"`
	Duration    int    `json:"duration"`
	Timezone    string `json:"timezone"`
	Type        string `json:"type"`
	Status      string `json:"status"`

	Title            string  `json:"title,omitempty"`
	Description      string  `json:"description,omitempty"`
	MeetingLink      *string `json:"meeting_link,omitempty"`
	Location         *string `json:"location,omitempty"`
	IsRecurring      bool    `json:"is_recurring,omitempty"`
	RecurringPattern *string `json:"recurring_pattern,omitempty"`
	Notes            *string `json:"notes,omitempty"`

	PreviousScheduledAt   *string `json:"previous_scheduled_at,omitempty"`
	RequestedScheduledAt  *string `json:"requested_scheduled_at,omitempty"`
	RescheduleRequestedAt *string `json:"reschedule_requested_at,omitempty"`
	RescheduleReason      *string `json:"reschedule_reason,omitempty"`
	RescheduleMessage     *string `json:"reschedule_message,omitempty"`

	CancellationReason *string `json:"cancellation_reason,omitempty"`
	DeclineReason      *string `json:"decline_reason,omitempty"`

	MentorConfirmed bool    `json:"mentor_confirmed"`
	MenteeConfirmed bool    `json:"mentee_confirmed"`
	EndedAt         *string `json:"ended_at,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

type BreakConfig struct {
	StartTime string `json:"start_time"` // "15:04"
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason,omitempty"`
}

type CreateAvailabilityRequest struct {
	DayOfWeek    *int          `json:"day_of_week,omitempty"`   // recurring rows
	SpecificDate *string       `json:"specific_date,omitempty"` // "2006-01-02", overrides
	StartTime    string        `json:"start_time"`
	EndTime      string        `json:"end_time"`
	Timezone     string        `json:"timezone"`
	SlotDuration int           `json:"slot_duration,omitempty"`
	Breaks       []BreakConfig `json:"breaks,omitempty"`
	Status       string        `json:"status,omitempty"`
}

type AvailabilityResponse struct {
	ID           string        `json:"id"`
	MentorID     string        `json:"mentor_id"`
	IsRecurring  bool          `json:"is_recurring"`
	DayOfWeek    *int          `json:"day_of_week,omitempty"`
	SpecificDate *string       `json:"specific_date,omitempty"`
	StartTime    string        `json:"start_time"`
	EndTime      string        `json:"end_time"`
	Timezone     string        `json:"timezone"`
	SlotDuration int           `json:"slot_duration"`
	Breaks       []BreakConfig `json:"breaks,omitempty"`
	Status       string        `json:"status"`
}

type Slot struct {
	Time      time.Time `json:"time"`
	Available bool      `json:"available"`
}

type SlotsResponse struct {
	Date  string `json:"date"`
	Slots []Slot `json:"slots"`
}
