package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mentor-session-service/api"
	"mentor-session-service/internal/models"
	"mentor-session-service/pkg/response"

	"github.com/google/uuid"
)

// parseClock converts a "15:04" time-of-day string to minutes since midnight.
func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}

	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}

	return h*60 + m, nil
}

// clockOnDate places a minutes-since-midnight clock value on a calendar date
// in the given location.
func clockOnDate(date time.Time, minutes int, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), minutes/60, minutes%60, 0, 0, loc)
}

type window struct {
	start  time.Time
	end    time.Time
	breaks [][2]time.Time
}

// resolveWindow materializes an availability row on a calendar date as
// absolute instants in the row's own timezone.
func resolveWindow(a *models.MentorAvailability, date time.Time) (*window, error) {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", a.Timezone, err)
	}

	startClock, err := parseClock(a.StartTime)
	if err != nil {
		return nil, err
	}
	endClock, err := parseClock(a.EndTime)
	if err != nil {
		return nil, err
	}

	w := &window{
		start: clockOnDate(date, startClock, loc),
		end:   clockOnDate(date, endClock, loc),
	}

	for _, b := range a.Breaks {
		bStart, err := parseClock(b.StartTime)
		if err != nil {
			return nil, err
		}
		bEnd, err := parseClock(b.EndTime)
		if err != nil {
			return nil, err
		}
		w.breaks = append(w.breaks, [2]time.Time{
			clockOnDate(date, bStart, loc),
			clockOnDate(date, bEnd, loc),
		})
	}

	return w, nil
}

// covers reports whether [start, end) fits inside the window without
// touching a break.
func (w *window) covers(start, end time.Time) bool {
	if start.Before(w.start) || end.After(w.end) {
		return false
	}
	for _, b := range w.breaks {
		if Overlaps(start, end, b[0], b[1]) {
			return false
		}
	}
	return true
}

// GenerateSlots computes the bookable slot list for a mentor on a calendar
// date ("2006-01-02"). Slots run from the window start in slot-duration
// steps; a slot is unavailable when it intersects a break, an active session
// or group session of the mentor, or starts in the past. Slots that would run
// past the window end are not emitted.
func (s *Service) GenerateSlots(ctx context.Context, mentorID uuid.UUID, dateStr string) (*api.SlotsResponse, error) {
	const op = "service.GenerateSlots"

	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid date: %w", op, response.ErrInvalidArgument)
	}

	if _, err := s.store.GetUser(ctx, mentorID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp := &api.SlotsResponse{Date: dateStr, Slots: []api.Slot{}}

	a, err := s.effectiveAvailability(ctx, nil, mentorID, date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if a == nil {
		return resp, nil
	}

	w, err := resolveWindow(a, date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sessions, err := s.store.ListActiveSessionsInRange(ctx, mentorID, w.start, w.end)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	groupSessions, err := s.store.ListActiveGroupSessionsInRange(ctx, mentorID, w.start, w.end)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	busy := make([][2]time.Time, 0, len(sessions)+len(groupSessions))
	for _, sess := range sessions {
		busy = append(busy, [2]time.Time{sess.ScheduledAt, sess.EndAt()})
	}
	for _, g := range groupSessions {
		busy = append(busy, [2]time.Time{g.ScheduledAt, g.EndAt()})
	}

	now := s.now()
	step := time.Duration(a.SlotDuration) * time.Minute

	for t := w.start; !t.Add(step).After(w.end); t = t.Add(step) {
		end := t.Add(step)

		available := !t.Before(now)
		if available {
			available = w.covers(t, end)
		}
		if available {
			for _, b := range busy {
				if Overlaps(t, end, b[0], b[1]) {
					available = false
					break
				}
			}
		}

		resp.Slots = append(resp.Slots, api.Slot{Time: t, Available: available})
	}

	return resp, nil
}

// checkBookable validates that [start, end) lies inside the mentor's
// effective availability and is free of conflicts for both parties. With a
// non-nil tx this is the authoritative commit-time check; with nil it is
// advisory.
//
// The calendar date that governs the interval depends on the row's own
// timezone, which is not known until a row is found, and a window may cross
// UTC midnight (a Monday evening window in Los Angeles occupies Tuesday in
// UTC). The instant's UTC date and both adjacent dates are therefore all
// candidates; the resolved window that covers [start, end) governs.
func (s *Service) checkBookable(ctx context.Context, tx *sql.Tx, mentorID, menteeID uuid.UUID, start, end time.Time, exclude *uuid.UUID) error {
	const op = "service.checkBookable"

	utcDate := dateOf(start, time.UTC)

	covered := false
	for _, offset := range []int{0, -1, 1} {
		date := utcDate.AddDate(0, 0, offset)

		a, err := s.effectiveAvailability(ctx, tx, mentorID, date)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if a == nil {
			continue
		}

		w, err := resolveWindow(a, date)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if w.covers(start, end) {
			covered = true
			break
		}
	}
	if !covered {
		return fmt.Errorf("%s: outside availability: %w", op, response.ErrConflict)
	}

	conflict, err := s.hasConflict(ctx, tx, mentorID, menteeID, start, end, exclude)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if conflict {
		return fmt.Errorf("%s: %w", op, response.ErrConflict)
	}

	return nil
}

// dateOf strips an instant to its calendar date in loc, midnight-normalized.
func dateOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}
