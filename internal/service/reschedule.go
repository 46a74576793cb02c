package service

import (
	"context"
	"fmt"
	"time"

	"mentor-session-service/api"
	"mentor-session-service/internal/models"
	"mentor-session-service/internal/notify"
	"mentor-session-service/pkg/response"

	"github.com/google/uuid"
)

// clearRescheduleRequest resets the negotiation fields so a stale request
// cannot be accepted after the session has moved on.
func clearRescheduleRequest(sess *models.Session) {
	sess.RequestedScheduledAt = nil
	sess.RescheduleRequestedAt = nil
	sess.RescheduleReason = nil
	sess.RescheduleMessage = nil
}

// RescheduleSession records the mentee's request for a new time without
// touching scheduledAt or status. The new time is validated against
// availability and conflicts right away so obviously impossible requests are
// rejected early; acceptance re-validates authoritatively. Only one request
// may be pending per session; a second request overwrites the first.
func (s *Service) RescheduleSession(ctx context.Context, menteeID, id uuid.UUID, req *api.RescheduleRequest) (*api.SessionResponse, error) {
	const op = "service.RescheduleSession"

	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sess.MenteeID != menteeID {
		return nil, fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}
	if !sess.IsActive() {
		return nil, fmt.Errorf("%s: cannot reschedule a %s session: %w", op, sess.Status, response.ErrInvalidArgument)
	}

	newTime, err := time.Parse(time.RFC3339, req.NewScheduledAt)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid new_scheduled_at: %w", op, response.ErrInvalidArgument)
	}
	newTime = newTime.UTC()

	if !newTime.After(s.now()) {
		return nil, fmt.Errorf("%s: new time must be in the future: %w", op, response.ErrInvalidArgument)
	}
	if newTime.Equal(sess.ScheduledAt) {
		return nil, fmt.Errorf("%s: new time equals current time: %w", op, response.ErrInvalidArgument)
	}

	end := newTime.Add(time.Duration(sess.Duration) * time.Minute)
	if err := s.checkBookable(ctx, nil, sess.MentorID, sess.MenteeID, newTime, end, &sess.ID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	requestedAt := s.now().UTC()
	sess.RequestedScheduledAt = &newTime
	sess.RescheduleRequestedAt = &requestedAt
	sess.RescheduleReason = req.Reason
	sess.RescheduleMessage = req.Message

	if err := s.store.UpdateSession(ctx, nil, sess); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.dispatch(notify.EventRescheduleRequested, sess)

	resp := toSessionResponse(sess)
	return &resp, nil
}

// AcceptReschedule commits the pending requested time. Availability may have
// changed since the request was made, so the new time is re-validated inside
// the transaction with the session row locked, same as a fresh booking.
func (s *Service) AcceptReschedule(ctx context.Context, mentorID, id uuid.UUID) (*api.SessionResponse, error) {
	const op = "service.AcceptReschedule"

	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sess.MentorID != mentorID {
		return nil, fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}
	if !sess.IsActive() {
		return nil, fmt.Errorf("%s: cannot reschedule a %s session: %w", op, sess.Status, response.ErrInvalidArgument)
	}
	if sess.RequestedScheduledAt == nil {
		return nil, fmt.Errorf("%s: no pending reschedule request: %w", op, response.ErrInvalidArgument)
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

	sess, err = s.store.GetSessionForUpdate(ctx, tx, id)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// The session may have been cancelled or completed between the read and
	// the row lock; accepting then would resurrect a terminal session.
	if !sess.IsActive() {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%s: cannot reschedule a %s session: %w", op, sess.Status, response.ErrInvalidArgument)
	}
	if sess.RequestedScheduledAt == nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%s: no pending reschedule request: %w", op, response.ErrInvalidArgument)
	}

	newTime := sess.RequestedScheduledAt.UTC()
	if !newTime.After(s.now()) {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%s: requested time is no longer in the future: %w", op, response.ErrInvalidArgument)
	}

	end := newTime.Add(time.Duration(sess.Duration) * time.Minute)
	if err := s.checkBookable(ctx, tx, sess.MentorID, sess.MenteeID, newTime, end, &sess.ID); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	previous := sess.ScheduledAt
	sess.PreviousScheduledAt = &previous
	sess.ScheduledAt = newTime
	sess.Status = models.SessionConfirmed
	clearRescheduleRequest(sess)
	sess.ReminderSent = false

	if err := s.store.UpdateSession(ctx, tx, sess); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	s.dispatch(notify.EventRescheduleAccepted, sess)

	resp := toSessionResponse(sess)
	return &resp, nil
}

// DeclineReschedule clears the pending request, leaving scheduledAt and
// status untouched.
func (s *Service) DeclineReschedule(ctx context.Context, mentorID, id uuid.UUID, reason *string) (*api.SessionResponse, error) {
	const op = "service.DeclineReschedule"

	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sess.MentorID != mentorID {
		return nil, fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}
	if sess.RequestedScheduledAt == nil {
		return nil, fmt.Errorf("%s: no pending reschedule request: %w", op, response.ErrInvalidArgument)
	}

	clearRescheduleRequest(sess)
	sess.DeclineReason = reason

	if err := s.store.UpdateSession(ctx, nil, sess); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.dispatch(notify.EventRescheduleDeclined, sess)

	resp := toSessionResponse(sess)
	return &resp, nil
}
