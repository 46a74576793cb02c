package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Overlaps reports whether the half-open intervals [startA, endA) and
// [startB, endB) intersect. A session ending exactly when another begins
// does not conflict.
func Overlaps(startA, endA, startB, endB time.Time) bool {
	return startA.Before(endB) && startB.Before(endA)
}

// hasConflict runs the four conflict queries for a candidate [start, end)
// interval: the mentor's active sessions, the mentee's active sessions, group
// sessions the mentor hosts, and group sessions the mentee participates in.
// exclude removes the session being moved from its own conflict set. When tx
// is non-nil the queries execute inside the booking transaction, which makes
// this the authoritative check.
func (s *Service) hasConflict(ctx context.Context, tx *sql.Tx, mentorID, menteeID uuid.UUID, start, end time.Time, exclude *uuid.UUID) (bool, error) {
	const op = "service.hasConflict"

	count, err := s.store.CountUserSessionConflicts(ctx, tx, mentorID, true, start, end, exclude)
	if err != nil {
		return false, fmt.Errorf("%s: mentor sessions: %w", op, err)
	}
	if count > 0 {
		return true, nil
	}

	count, err = s.store.CountUserSessionConflicts(ctx, tx, menteeID, false, start, end, exclude)
	if err != nil {
		return false, fmt.Errorf("%s: mentee sessions: %w", op, err)
	}
	if count > 0 {
		return true, nil
	}

	count, err = s.store.CountHostGroupConflicts(ctx, tx, mentorID, start, end)
	if err != nil {
		return false, fmt.Errorf("%s: mentor group sessions: %w", op, err)
	}
	if count > 0 {
		return true, nil
	}

	count, err = s.store.CountParticipantGroupConflicts(ctx, tx, menteeID, start, end)
	if err != nil {
		return false, fmt.Errorf("%s: mentee group sessions: %w", op, err)
	}

	return count > 0, nil
}
