package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mentor-session-service/internal/models"
	"mentor-session-service/pkg/response"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Storage struct {
	db *sql.DB
}

func New(storagePath string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

func (s *Storage) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// q returns the transaction when one is in flight, the pool otherwise.
func (s *Storage) q(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return s.db
}

// #### users / mentorships (collaborator reads) ####

func (s *Storage) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "storage.postgres.GetUser"

	var u models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, role, name, email, timezone FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Role, &u.Name, &u.Email, &u.Timezone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &u, nil
}

func (s *Storage) HasAcceptedMentorship(ctx context.Context, mentorID, menteeID uuid.UUID) (bool, error) {
	const op = "storage.postgres.HasAcceptedMentorship"

	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM mentorships
			WHERE mentor_id=$1 AND mentee_id=$2 AND status=$3
		)`, mentorID, menteeID, string(models.MentorshipAccepted)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return exists, nil
}

// #### availability ####

const availabilityColumns = `id, mentor_id, is_recurring, day_of_week, specific_date,
	start_time, end_time, timezone, slot_duration, breaks, status, created_at, updated_at`

func scanAvailability(row interface{ Scan(...any) error }) (*models.MentorAvailability, error) {
	var a models.MentorAvailability
	var breaksRaw []byte

	err := row.Scan(&a.ID, &a.MentorID, &a.IsRecurring, &a.DayOfWeek, &a.SpecificDate,
		&a.StartTime, &a.EndTime, &a.Timezone, &a.SlotDuration, &breaksRaw, &a.Status,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(breaksRaw) > 0 {
		if err := json.Unmarshal(breaksRaw, &a.Breaks); err != nil {
			return nil, err
		}
	}

	return &a, nil
}

// UpsertAvailability inserts or replaces the mentor's window keyed by
// (mentor_id, day_of_week) for recurring rows and (mentor_id, specific_date)
// for overrides. Relies on the matching partial unique indexes.
func (s *Storage) UpsertAvailability(ctx context.Context, a *models.MentorAvailability) (uuid.UUID, error) {
	const op = "storage.postgres.UpsertAvailability"

	breaksRaw, err := json.Marshal(a.Breaks)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: marshal breaks: %w", op, err)
	}

	var query string
	if a.IsRecurring {
		query = `INSERT INTO mentor_availabilities
			(id, mentor_id, is_recurring, day_of_week, specific_date, start_time, end_time,
			 timezone, slot_duration, breaks, status, created_at, updated_at)
			VALUES ($1, $2, TRUE, $3, NULL, $4, $5, $6, $7, $8, $9, now(), now())
			ON CONFLICT (mentor_id, day_of_week) WHERE is_recurring
			DO UPDATE SET start_time = EXCLUDED.start_time,
				end_time = EXCLUDED.end_time,
				timezone = EXCLUDED.timezone,
				slot_duration = EXCLUDED.slot_duration,
				breaks = EXCLUDED.breaks,
				status = EXCLUDED.status,
				updated_at = now()
			RETURNING id`
	} else {
		query = `INSERT INTO mentor_availabilities
			(id, mentor_id, is_recurring, specific_date, day_of_week, start_time, end_time,
			 timezone, slot_duration, breaks, status, created_at, updated_at)
			VALUES ($1, $2, FALSE, $3, NULL, $4, $5, $6, $7, $8, $9, now(), now())
			ON CONFLICT (mentor_id, specific_date) WHERE NOT is_recurring
			DO UPDATE SET start_time = EXCLUDED.start_time,
				end_time = EXCLUDED.end_time,
				timezone = EXCLUDED.timezone,
				slot_duration = EXCLUDED.slot_duration,
				breaks = EXCLUDED.breaks,
				status = EXCLUDED.status,
				updated_at = now()
			RETURNING id`
	}

	var key any
	if a.IsRecurring {
		key = a.DayOfWeek
	} else {
		key = a.SpecificDate
	}

	var id uuid.UUID
	err = s.db.QueryRowContext(ctx, query,
		uuid.New(), a.MentorID, key, a.StartTime, a.EndTime,
		a.Timezone, a.SlotDuration, breaksRaw, string(a.Status)).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) GetAvailability(ctx context.Context, id uuid.UUID) (*models.MentorAvailability, error) {
	const op = "storage.postgres.GetAvailability"

	row := s.db.QueryRowContext(ctx,
		`SELECT `+availabilityColumns+` FROM mentor_availabilities WHERE id=$1`, id)

	a, err := scanAvailability(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return a, nil
}

func (s *Storage) ListMentorAvailability(ctx context.Context, mentorID uuid.UUID) ([]*models.MentorAvailability, error) {
	const op = "storage.postgres.ListMentorAvailability"

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+availabilityColumns+` FROM mentor_availabilities
		WHERE mentor_id=$1
		ORDER BY is_recurring DESC, day_of_week, specific_date`, mentorID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.MentorAvailability
	for rows.Next() {
		a, err := scanAvailability(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

// GetDateAvailability returns the specific-date override row for the given
// calendar date, if any. tx may be nil.
func (s *Storage) GetDateAvailability(ctx context.Context, tx *sql.Tx, mentorID uuid.UUID, date time.Time) (*models.MentorAvailability, error) {
	const op = "storage.postgres.GetDateAvailability"

	row := s.q(tx).QueryRowContext(ctx,
		`SELECT `+availabilityColumns+` FROM mentor_availabilities
		WHERE mentor_id=$1 AND NOT is_recurring AND specific_date=$2`,
		mentorID, date.Format("2006-01-02"))

	a, err := scanAvailability(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return a, nil
}

// GetRecurringAvailability returns the weekly row for the given day of week
// (0=Sunday). tx may be nil.
func (s *Storage) GetRecurringAvailability(ctx context.Context, tx *sql.Tx, mentorID uuid.UUID, dayOfWeek int) (*models.MentorAvailability, error) {
	const op = "storage.postgres.GetRecurringAvailability"

	row := s.q(tx).QueryRowContext(ctx,
		`SELECT `+availabilityColumns+` FROM mentor_availabilities
		WHERE mentor_id=$1 AND is_recurring AND day_of_week=$2`,
		mentorID, dayOfWeek)

	a, err := scanAvailability(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return a, nil
}

func (s *Storage) DeleteAvailability(ctx context.Context, id uuid.UUID) error {
	const op = "storage.postgres.DeleteAvailability"

	res, err := s.db.ExecContext(ctx, `DELETE FROM mentor_availabilities WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

// #### sessions ####

const sessionColumns = `id, mentor_id, mentee_id, scheduled_at, duration, timezone, type, status,
	title, description, meeting_link, location, is_recurring, recurring_pattern, notes,
	previous_scheduled_at, requested_scheduled_at, reschedule_requested_at,
	reschedule_reason, reschedule_message, cancellation_reason, cancelled_by, decline_reason,
	mentor_confirmed, mentee_confirmed, reminder_sent, ended_at, created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (*models.Session, error) {
	var sess models.Session

	err := row.Scan(&sess.ID, &sess.MentorID, &sess.MenteeID, &sess.ScheduledAt,
		&sess.Duration, &sess.Timezone, &sess.Type, &sess.Status,
		&sess.Title, &sess.Description, &sess.MeetingLink, &sess.Location,
		&sess.IsRecurring, &sess.RecurringPattern, &sess.Notes,
		&sess.PreviousScheduledAt, &sess.RequestedScheduledAt, &sess.RescheduleRequestedAt,
		&sess.RescheduleReason, &sess.RescheduleMessage,
		&sess.CancellationReason, &sess.CancelledBy, &sess.DeclineReason,
		&sess.MentorConfirmed, &sess.MenteeConfirmed, &sess.ReminderSent, &sess.EndedAt,
		&sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &sess, nil
}

func (s *Storage) CreateSession(ctx context.Context, tx *sql.Tx, sess *models.Session) (uuid.UUID, error) {
	const op = "storage.postgres.CreateSession"

	id := uuid.New()
	_, err := s.q(tx).ExecContext(ctx,
		`INSERT INTO sessions
		(id, mentor_id, mentee_id, scheduled_at, duration, timezone, type, status,
		 title, description, meeting_link, location, is_recurring, recurring_pattern,
		 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())`,
		id, sess.MentorID, sess.MenteeID, sess.ScheduledAt.UTC(), sess.Duration,
		sess.Timezone, string(sess.Type), string(sess.Status),
		sess.Title, sess.Description, sess.MeetingLink, sess.Location,
		sess.IsRecurring, sess.RecurringPattern)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return uuid.Nil, fmt.Errorf("%s: %w", op, response.ErrConflict)
		}
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	const op = "storage.postgres.GetSession"

	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id=$1`, id)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sess, nil
}

// GetSessionForUpdate locks the session row for the duration of the
// transaction so concurrent reschedule acceptances serialize.
func (s *Storage) GetSessionForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*models.Session, error) {
	const op = "storage.postgres.GetSessionForUpdate"

	row := tx.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id=$1 FOR UPDATE`, id)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sess, nil
}

func (s *Storage) ListSessions(ctx context.Context, f *models.SessionFilters) ([]*models.Session, int, error) {
	const op = "storage.postgres.ListSessions"

	where := `WHERE 1=1`
	args := []any{}
	n := 0

	arg := func(v any) string {
		n++
		args = append(args, v)
		return fmt.Sprintf("$%d", n)
	}

	if f.MentorID != nil {
		where += ` AND mentor_id=` + arg(*f.MentorID)
	}
	if f.MenteeID != nil {
		where += ` AND mentee_id=` + arg(*f.MenteeID)
	}
	if f.Status != nil {
		where += ` AND status=` + arg(string(*f.Status))
	}
	if f.Upcoming {
		where += ` AND scheduled_at >= now()`
	}
	if f.Past {
		where += ` AND scheduled_at < now()`
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions ` + where +
		` ORDER BY scheduled_at ASC LIMIT ` + arg(f.Limit) + ` OFFSET ` + arg(f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}

	return result, total, nil
}

// UpdateSession writes back every mutable session field. tx may be nil.
func (s *Storage) UpdateSession(ctx context.Context, tx *sql.Tx, sess *models.Session) error {
	const op = "storage.postgres.UpdateSession"

	res, err := s.q(tx).ExecContext(ctx,
		`UPDATE sessions SET
			scheduled_at=$2, duration=$3, timezone=$4, type=$5, status=$6,
			title=$7, description=$8, meeting_link=$9, location=$10, notes=$11,
			previous_scheduled_at=$12, requested_scheduled_at=$13, reschedule_requested_at=$14,
			reschedule_reason=$15, reschedule_message=$16,
			cancellation_reason=$17, cancelled_by=$18, decline_reason=$19,
			mentor_confirmed=$20, mentee_confirmed=$21, reminder_sent=$22, ended_at=$23,
			updated_at=now()
		WHERE id=$1`,
		sess.ID, sess.ScheduledAt.UTC(), sess.Duration, sess.Timezone, string(sess.Type),
		string(sess.Status), sess.Title, sess.Description, sess.MeetingLink, sess.Location,
		sess.Notes, sess.PreviousScheduledAt, sess.RequestedScheduledAt,
		sess.RescheduleRequestedAt, sess.RescheduleReason, sess.RescheduleMessage,
		sess.CancellationReason, sess.CancelledBy, sess.DeclineReason,
		sess.MentorConfirmed, sess.MenteeConfirmed, sess.ReminderSent, sess.EndedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

// #### conflict sources ####

const activeStatusFilter = `status IN ('scheduled', 'confirmed', 'in_progress')`

// CountUserSessionConflicts counts active sessions for the user that overlap
// [start, end) on the half-open interval rule. asMentor selects which side of
// the session the user is on. tx may be nil for advisory checks.
func (s *Storage) CountUserSessionConflicts(ctx context.Context, tx *sql.Tx, userID uuid.UUID, asMentor bool, start, end time.Time, exclude *uuid.UUID) (int, error) {
	const op = "storage.postgres.CountUserSessionConflicts"

	col := "mentee_id"
	if asMentor {
		col = "mentor_id"
	}

	query := `SELECT COUNT(*) FROM sessions
		WHERE ` + col + `=$1 AND ` + activeStatusFilter + `
		AND scheduled_at < $3
		AND scheduled_at + (duration * interval '1 minute') > $2`
	args := []any{userID, start.UTC(), end.UTC()}

	if exclude != nil {
		query += ` AND id <> $4`
		args = append(args, *exclude)
	}

	var count int
	if err := s.q(tx).QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return count, nil
}

// CountHostGroupConflicts counts active group sessions hosted by the mentor
// that overlap [start, end). tx may be nil.
func (s *Storage) CountHostGroupConflicts(ctx context.Context, tx *sql.Tx, mentorID uuid.UUID, start, end time.Time) (int, error) {
	const op = "storage.postgres.CountHostGroupConflicts"

	var count int
	err := s.q(tx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM group_sessions
		WHERE mentor_id=$1 AND `+activeStatusFilter+`
		AND scheduled_at < $3
		AND scheduled_at + (duration * interval '1 minute') > $2`,
		mentorID, start.UTC(), end.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return count, nil
}

// CountParticipantGroupConflicts counts active group sessions in which the
// user is an accepted participant that overlap [start, end). tx may be nil.
func (s *Storage) CountParticipantGroupConflicts(ctx context.Context, tx *sql.Tx, userID uuid.UUID, start, end time.Time) (int, error) {
	const op = "storage.postgres.CountParticipantGroupConflicts"

	var count int
	err := s.q(tx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM group_sessions g
		JOIN group_session_participants p ON p.group_session_id = g.id
		WHERE p.user_id=$1 AND p.invitation_status='accepted'
		AND g.`+activeStatusFilter+`
		AND g.scheduled_at < $3
		AND g.scheduled_at + (g.duration * interval '1 minute') > $2`,
		userID, start.UTC(), end.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return count, nil
}

// ListActiveSessionsInRange returns the mentor's active sessions overlapping
// [from, to), used by slot generation.
func (s *Storage) ListActiveSessionsInRange(ctx context.Context, mentorID uuid.UUID, from, to time.Time) ([]*models.Session, error) {
	const op = "storage.postgres.ListActiveSessionsInRange"

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		WHERE mentor_id=$1 AND `+activeStatusFilter+`
		AND scheduled_at < $3
		AND scheduled_at + (duration * interval '1 minute') > $2
		ORDER BY scheduled_at`,
		mentorID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

// ListActiveGroupSessionsInRange returns the mentor's active group sessions
// overlapping [from, to).
func (s *Storage) ListActiveGroupSessionsInRange(ctx context.Context, mentorID uuid.UUID, from, to time.Time) ([]*models.GroupSession, error) {
	const op = "storage.postgres.ListActiveGroupSessionsInRange"

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mentor_id, scheduled_at, duration, status FROM group_sessions
		WHERE mentor_id=$1 AND `+activeStatusFilter+`
		AND scheduled_at < $3
		AND scheduled_at + (duration * interval '1 minute') > $2
		ORDER BY scheduled_at`,
		mentorID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.GroupSession
	for rows.Next() {
		var g models.GroupSession
		if err := rows.Scan(&g.ID, &g.MentorID, &g.ScheduledAt, &g.Duration, &g.Status); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}
