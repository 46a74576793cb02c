package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"mentor-session-service/api"
	"mentor-session-service/internal/models"
	"mentor-session-service/internal/notify"
	"mentor-session-service/pkg/response"

	"github.com/google/uuid"
)

// CreateSession books a one-on-one session for the mentee. A single
// check-then-write is race prone under concurrent requests for the same
// slot, so the advisory check is repeated inside one transaction immediately
// before the insert; any conflict found there aborts with ErrConflict and the
// caller retries against freshly generated slots. A per-mentor redis lock
// serializes competing bookings so most losers fail fast instead of inside
// the transaction.
func (s *Service) CreateSession(ctx context.Context, menteeID uuid.UUID, req *api.CreateSessionRequest) (*api.SessionResponse, error) {
	const op = "service.CreateSession"

	mentorID, err := uuid.Parse(req.MentorID)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid mentor_id: %w", op, response.ErrInvalidArgument)
	}

	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid scheduled_at: %w", op, response.ErrInvalidArgument)
	}
	scheduledAt = scheduledAt.UTC()
	if !scheduledAt.After(s.now()) {
		return nil, fmt.Errorf("%s: scheduled_at must be in the future: %w", op, response.ErrInvalidArgument)
	}

	duration := req.Duration
	if duration == 0 {
		duration = defaultDuration
	}
	if !models.ValidDuration(duration) {
		return nil, fmt.Errorf("%s: invalid duration %d: %w", op, duration, response.ErrInvalidArgument)
	}

	sessionType := models.SessionTypeVideo
	if req.Type != "" {
		sessionType = models.SessionType(req.Type)
		if !sessionType.Valid() {
			return nil, fmt.Errorf("%s: invalid type %q: %w", op, req.Type, response.ErrInvalidArgument)
		}
	}

	mentor, err := s.store.GetUser(ctx, mentorID)
	if err != nil {
		return nil, fmt.Errorf("%s: mentor: %w", op, err)
	}
	if mentor.Role != models.RoleMentor {
		return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	mentee, err := s.store.GetUser(ctx, menteeID)
	if err != nil {
		return nil, fmt.Errorf("%s: mentee: %w", op, err)
	}

	accepted, err := s.store.HasAcceptedMentorship(ctx, mentorID, menteeID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !accepted {
		return nil, fmt.Errorf("%s: no accepted mentorship: %w", op, response.ErrNotFound)
	}

	end := scheduledAt.Add(time.Duration(duration) * time.Minute)

	// Advisory check before taking the lock; the transaction re-checks.
	if err := s.checkBookable(ctx, nil, mentorID, menteeID, scheduledAt, end, nil); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lockKey := fmt.Sprintf("mentor:%s", mentorID)
	locked, err := s.locker.Lock(ctx, lockKey, bookingLockTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: lock error: %w", op, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", op, response.ErrLocked)
	}
	defer func() {
		_ = s.locker.Unlock(ctx, lockKey)
	}()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	// Authoritative re-check at write time.
	if err := s.checkBookable(ctx, tx, mentorID, menteeID, scheduledAt, end, nil); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	timezone := req.Timezone
	if timezone == "" {
		timezone = mentee.Timezone
	}

	sess := &models.Session{
		MentorID:         mentorID,
		MenteeID:         menteeID,
		ScheduledAt:      scheduledAt,
		Duration:         duration,
		Timezone:         timezone,
		Type:             sessionType,
		Status:           models.SessionScheduled,
		Title:            req.Title,
		Description:      req.Description,
		MeetingLink:      req.MeetingLink,
		Location:         req.Location,
		IsRecurring:      req.IsRecurring,
		RecurringPattern: req.RecurringPattern,
	}

	id, err := s.store.CreateSession(ctx, tx, sess)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%s: create session: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	created, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.dispatch(notify.EventSessionBooked, created)

	resp := toSessionResponse(created)
	return &resp, nil
}

// getOwnedSession loads the session and verifies the caller is a party to it.
func (s *Service) getOwnedSession(ctx context.Context, callerID, id uuid.UUID) (*models.Session, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.MentorID != callerID && sess.MenteeID != callerID {
		return nil, response.ErrForbidden
	}
	return sess, nil
}

func (s *Service) GetSession(ctx context.Context, callerID, id uuid.UUID) (*api.SessionResponse, error) {
	const op = "service.GetSession"

	sess, err := s.getOwnedSession(ctx, callerID, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp := toSessionResponse(sess)
	return &resp, nil
}

func (s *Service) ListSessions(ctx context.Context, callerID uuid.UUID, role models.Role, q *api.ListSessionsQuery) (*api.SessionListResponse, error) {
	const op = "service.ListSessions"

	f := &models.SessionFilters{
		Upcoming: q.Upcoming,
		Past:     q.Past,
		Limit:    q.Limit,
		Offset:   q.Offset,
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	// Listing is always scoped to the caller's own side; the query-string
	// ids only narrow further.
	switch role {
	case models.RoleMentor:
		f.MentorID = &callerID
		if q.MenteeID != nil {
			menteeID, err := uuid.Parse(*q.MenteeID)
			if err != nil {
				return nil, fmt.Errorf("%s: invalid mentee_id: %w", op, response.ErrInvalidArgument)
			}
			f.MenteeID = &menteeID
		}
	case models.RoleMentee:
		f.MenteeID = &callerID
		if q.MentorID != nil {
			mentorID, err := uuid.Parse(*q.MentorID)
			if err != nil {
				return nil, fmt.Errorf("%s: invalid mentor_id: %w", op, response.ErrInvalidArgument)
			}
			f.MentorID = &mentorID
		}
	default:
		return nil, fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}

	if q.Status != nil {
		status := models.SessionStatus(*q.Status)
		if !status.Valid() {
			return nil, fmt.Errorf("%s: invalid status %q: %w", op, *q.Status, response.ErrInvalidArgument)
		}
		f.Status = &status
	}

	sessions, total, err := s.store.ListSessions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp := &api.SessionListResponse{
		Sessions: make([]api.SessionResponse, 0, len(sessions)),
		Total:    total,
		Limit:    f.Limit,
		Offset:   f.Offset,
	}
	for _, sess := range sessions {
		resp.Sessions = append(resp.Sessions, toSessionResponse(sess))
	}

	return resp, nil
}

// UpdateSession applies the explicitly enumerated editable fields; scheduling
// fields only move through the reschedule flow.
func (s *Service) UpdateSession(ctx context.Context, callerID, id uuid.UUID, req *api.UpdateSessionRequest) (*api.SessionResponse, error) {
	const op = "service.UpdateSession"

	sess, err := s.getOwnedSession(ctx, callerID, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if req.Title != nil {
		sess.Title = *req.Title
	}
	if req.Description != nil {
		sess.Description = *req.Description
	}
	if req.MeetingLink != nil {
		sess.MeetingLink = req.MeetingLink
	}
	if req.Location != nil {
		sess.Location = req.Location
	}
	if req.Notes != nil {
		sess.Notes = req.Notes
	}

	if err := s.store.UpdateSession(ctx, nil, sess); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp := toSessionResponse(sess)
	return &resp, nil
}

// AcceptSession transitions scheduled -> confirmed; mentor only.
func (s *Service) AcceptSession(ctx context.Context, mentorID, id uuid.UUID) (*api.SessionResponse, error) {
	const op = "service.AcceptSession"

	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sess.MentorID != mentorID {
		return nil, fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}
	if sess.Status != models.SessionScheduled {
		return nil, fmt.Errorf("%s: cannot accept a %s session: %w", op, sess.Status, response.ErrInvalidArgument)
	}

	sess.Status = models.SessionConfirmed
	if err := s.store.UpdateSession(ctx, nil, sess); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.dispatch(notify.EventSessionAccepted, sess)

	resp := toSessionResponse(sess)
	return &resp, nil
}

// DeclineSession transitions scheduled -> cancelled with a reason; mentor only.
func (s *Service) DeclineSession(ctx context.Context, mentorID, id uuid.UUID, reason *string) (*api.SessionResponse, error) {
	const op = "service.DeclineSession"

	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sess.MentorID != mentorID {
		return nil, fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}
	if sess.Status != models.SessionScheduled {
		return nil, fmt.Errorf("%s: cannot decline a %s session: %w", op, sess.Status, response.ErrInvalidArgument)
	}

	sess.Status = models.SessionCancelled
	sess.CancellationReason = reason
	sess.CancelledBy = &mentorID
	clearRescheduleRequest(sess)
	if err := s.store.UpdateSession(ctx, nil, sess); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.dispatch(notify.EventSessionDeclined, sess)

	resp := toSessionResponse(sess)
	return &resp, nil
}

// CancelSession cancels on behalf of either party. Cancellation is a status
// transition, never a row deletion.
func (s *Service) CancelSession(ctx context.Context, callerID, id uuid.UUID, reason *string) (*api.SessionResponse, error) {
	const op = "service.CancelSession"

	sess, err := s.getOwnedSession(ctx, callerID, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	switch sess.Status {
	case models.SessionCompleted, models.SessionCancelled:
		return nil, fmt.Errorf("%s: cannot cancel a %s session: %w", op, sess.Status, response.ErrInvalidArgument)
	}

	sess.Status = models.SessionCancelled
	sess.CancellationReason = reason
	sess.CancelledBy = &callerID
	clearRescheduleRequest(sess)
	if err := s.store.UpdateSession(ctx, nil, sess); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.dispatch(notify.EventSessionCancelled, sess)

	resp := toSessionResponse(sess)
	return &resp, nil
}

// UpdateSessionStatus moves the session along the lifecycle. The transition
// to in_progress may happen no earlier than five minutes before the start.
func (s *Service) UpdateSessionStatus(ctx context.Context, callerID, id uuid.UUID, statusStr string) (*api.SessionResponse, error) {
	const op = "service.UpdateSessionStatus"

	target := models.SessionStatus(statusStr)
	if !target.Valid() {
		return nil, fmt.Errorf("%s: invalid status %q: %w", op, statusStr, response.ErrInvalidArgument)
	}

	sess, err := s.getOwnedSession(ctx, callerID, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !transitionAllowed(sess.Status, target) {
		return nil, fmt.Errorf("%s: illegal transition %s -> %s: %w", op, sess.Status, target, response.ErrInvalidArgument)
	}

	switch target {
	case models.SessionInProgress:
		earliest := sess.ScheduledAt.Add(-earlyJoinBuffer)
		if now := s.now(); now.Before(earliest) {
			minutes := int(math.Ceil(earliest.Sub(now).Minutes()))
			return nil, fmt.Errorf("%s: %w", op, &EarlyJoinError{MinutesLeft: minutes})
		}
	case models.SessionCompleted:
		endedAt := s.now()
		sess.EndedAt = &endedAt
	case models.SessionCancelled:
		sess.CancelledBy = &callerID
		clearRescheduleRequest(sess)
	case models.SessionNoShow:
		clearRescheduleRequest(sess)
	}

	sess.Status = target
	if err := s.store.UpdateSession(ctx, nil, sess); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp := toSessionResponse(sess)
	return &resp, nil
}

func transitionAllowed(from, to models.SessionStatus) bool {
	switch from {
	case models.SessionScheduled:
		return to == models.SessionConfirmed || to == models.SessionCancelled || to == models.SessionNoShow
	case models.SessionConfirmed:
		return to == models.SessionInProgress || to == models.SessionCancelled || to == models.SessionNoShow
	case models.SessionInProgress:
		return to == models.SessionCompleted || to == models.SessionCancelled
	case models.SessionCompleted, models.SessionCancelled, models.SessionNoShow, models.SessionRescheduled:
		return false
	}
	return false
}

// ConfirmAttendance records the caller's attendance flag; it never touches
// the lifecycle status.
func (s *Service) ConfirmAttendance(ctx context.Context, callerID uuid.UUID, role models.Role, id uuid.UUID) (*api.SessionResponse, error) {
	const op = "service.ConfirmAttendance"

	sess, err := s.getOwnedSession(ctx, callerID, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	switch role {
	case models.RoleMentor:
		sess.MentorConfirmed = true
	case models.RoleMentee:
		sess.MenteeConfirmed = true
	default:
		return nil, fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}

	if err := s.store.UpdateSession(ctx, nil, sess); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp := toSessionResponse(sess)
	return &resp, nil
}
