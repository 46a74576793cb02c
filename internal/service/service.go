package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"mentor-session-service/api"
	"mentor-session-service/internal/lock"
	"mentor-session-service/internal/models"
	"mentor-session-service/internal/notify"
	"mentor-session-service/pkg/response"

	"github.com/google/uuid"
)

// Store is the persistence surface the scheduling core depends on. Methods
// that accept a *sql.Tx participate in the caller's transaction; passing nil
// runs them against the pool (advisory reads).
type Store interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)

	// Collaborator reads
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	HasAcceptedMentorship(ctx context.Context, mentorID, menteeID uuid.UUID) (bool, error)

	// Availability
	UpsertAvailability(ctx context.Context, a *models.MentorAvailability) (uuid.UUID, error)
	GetAvailability(ctx context.Context, id uuid.UUID) (*models.MentorAvailability, error)
	ListMentorAvailability(ctx context.Context, mentorID uuid.UUID) ([]*models.MentorAvailability, error)
	GetDateAvailability(ctx context.Context, tx *sql.Tx, mentorID uuid.UUID, date time.Time) (*models.MentorAvailability, error)
	GetRecurringAvailability(ctx context.Context, tx *sql.Tx, mentorID uuid.UUID, dayOfWeek int) (*models.MentorAvailability, error)
	DeleteAvailability(ctx context.Context, id uuid.UUID) error

	// Sessions
	CreateSession(ctx context.Context, tx *sql.Tx, sess *models.Session) (uuid.UUID, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	GetSessionForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*models.Session, error)
	ListSessions(ctx context.Context, f *models.SessionFilters) ([]*models.Session, int, error)
	UpdateSession(ctx context.Context, tx *sql.Tx, sess *models.Session) error

	// Conflict sources
	CountUserSessionConflicts(ctx context.Context, tx *sql.Tx, userID uuid.UUID, asMentor bool, start, end time.Time, exclude *uuid.UUID) (int, error)
	CountHostGroupConflicts(ctx context.Context, tx *sql.Tx, mentorID uuid.UUID, start, end time.Time) (int, error)
	CountParticipantGroupConflicts(ctx context.Context, tx *sql.Tx, userID uuid.UUID, start, end time.Time) (int, error)
	ListActiveSessionsInRange(ctx context.Context, mentorID uuid.UUID, from, to time.Time) ([]*models.Session, error)
	ListActiveGroupSessionsInRange(ctx context.Context, mentorID uuid.UUID, from, to time.Time) ([]*models.GroupSession, error)
}

// Dispatcher fans booking events out to the notification and email
// collaborators after commit, best effort.
type Dispatcher interface {
	Dispatch(event notify.Event, session *models.Session)
}

type Service struct {
	store      Store
	locker     lock.Locker
	dispatcher Dispatcher
	now        func() time.Time
}

func NewService(store Store, locker lock.Locker, dispatcher Dispatcher) *Service {
	return &Service{
		store:      store,
		locker:     locker,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

const (
	defaultDuration     = 30
	defaultSlotDuration = 30
	bookingLockTTL      = 10 * time.Second
	earlyJoinBuffer     = 5 * time.Minute
)

// EarlyJoinError is returned when a session is started before the early-join
// buffer opens. It unwraps to response.ErrForbidden.
type EarlyJoinError struct {
	MinutesLeft int
}

func (e *EarlyJoinError) Error() string {
	return fmt.Sprintf("session can be started in %d minutes", e.MinutesLeft)
}

func (e *EarlyJoinError) Unwrap() error {
	return response.ErrForbidden
}

func (s *Service) dispatch(event notify.Event, sess *models.Session) {
	if s.dispatcher != nil {
		s.dispatcher.Dispatch(event, sess)
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.UTC().Format(time.RFC3339)
	return &v
}

func toSessionResponse(sess *models.Session) api.SessionResponse {
	return api.SessionResponse{
		ID:          sess.ID.String(),
		MentorID:    sess.MentorID.String(),
		MenteeID:    sess.MenteeID.String(),
		ScheduledAt: sess.ScheduledAt.UTC().Format(time.RFC3339),
		Duration:    sess.Duration,
		Timezone:    sess.Timezone,
		Type:        string(sess.Type),
		Status:      string(sess.Status),

		Title:            sess.Title,
		Description:      sess.Description,
		MeetingLink:      sess.MeetingLink,
		Location:         sess.Location,
		IsRecurring:      sess.IsRecurring,
		RecurringPattern: sess.RecurringPattern,
		Notes:            sess.Notes,

		PreviousScheduledAt:   formatTimePtr(sess.PreviousScheduledAt),
		RequestedScheduledAt:  formatTimePtr(sess.RequestedScheduledAt),
		RescheduleRequestedAt: formatTimePtr(sess.RescheduleRequestedAt),
		RescheduleReason:      sess.RescheduleReason,
		RescheduleMessage:     sess.RescheduleMessage,

		CancellationReason: sess.CancellationReason,
		DeclineReason:      sess.DeclineReason,

		MentorConfirmed: sess.MentorConfirmed,
		MenteeConfirmed: sess.MenteeConfirmed,
		EndedAt:         formatTimePtr(sess.EndedAt),
		CreatedAt:       sess.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toAvailabilityResponse(a *models.MentorAvailability) api.AvailabilityResponse {
	var date *string
	if a.SpecificDate != nil {
		v := a.SpecificDate.Format("2006-01-02")
		date = &v
	}

	breaks := make([]api.BreakConfig, 0, len(a.Breaks))
	for _, b := range a.Breaks {
		breaks = append(breaks, api.BreakConfig{
			StartTime: b.StartTime,
			EndTime:   b.EndTime,
			Reason:    b.Reason,
		})
	}

	return api.AvailabilityResponse{
		ID:           a.ID.String(),
		MentorID:     a.MentorID.String(),
		IsRecurring:  a.IsRecurring,
		DayOfWeek:    a.DayOfWeek,
		SpecificDate: date,
		StartTime:    a.StartTime,
		EndTime:      a.EndTime,
		Timezone:     a.Timezone,
		SlotDuration: a.SlotDuration,
		Breaks:       breaks,
		Status:       string(a.Status),
	}
}
