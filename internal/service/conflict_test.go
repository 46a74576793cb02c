package service

import (
	"context"
	"testing"
	"time"

	"mentor-session-service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlaps(t *testing.T) {
	at := func(h, m int) time.Time {
		return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
	}

	tests := []struct {
		name                       string
		startA, endA, startB, endB time.Time
		want                       bool
	}{
		{"identical", at(10, 0), at(11, 0), at(10, 0), at(11, 0), true},
		{"partial overlap", at(10, 0), at(11, 0), at(10, 30), at(11, 30), true},
		{"contained", at(10, 0), at(12, 0), at(10, 30), at(11, 0), true},
		{"back to back, A first", at(10, 0), at(11, 0), at(11, 0), at(12, 0), false},
		{"back to back, B first", at(11, 0), at(12, 0), at(10, 0), at(11, 0), false},
		{"disjoint", at(9, 0), at(9, 30), at(11, 0), at(11, 30), false},
		{"one minute overlap", at(10, 0), at(11, 0), at(10, 59), at(11, 59), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.startA, tt.endA, tt.startB, tt.endB))
			assert.Equal(t, tt.want, Overlaps(tt.startB, tt.endB, tt.startA, tt.endA), "overlap must be symmetric")
		})
	}
}

func TestHasConflict_FourSources(t *testing.T) {
	now := monday.Add(-12 * time.Hour)
	s, store, _, _ := newTestService(now)

	mentorID := store.addUser(models.RoleMentor, "UTC")
	menteeID := store.addUser(models.RoleMentee, "UTC")
	otherMentor := store.addUser(models.RoleMentor, "UTC")

	start := monday.Add(10 * time.Hour)
	end := start.Add(30 * time.Minute)

	ctx := context.Background()

	t.Run("clear calendar", func(t *testing.T) {
		conflict, err := s.hasConflict(ctx, nil, mentorID, menteeID, start, end, nil)
		require.NoError(t, err)
		assert.False(t, conflict)
	})

	t.Run("mentor session", func(t *testing.T) {
		id := store.addSession(&models.Session{
			MentorID: mentorID, MenteeID: store.addUser(models.RoleMentee, "UTC"),
			ScheduledAt: start, Duration: 30, Status: models.SessionConfirmed,
		})
		defer delete(store.sessions, id)

		conflict, err := s.hasConflict(ctx, nil, mentorID, menteeID, start, end, nil)
		require.NoError(t, err)
		assert.True(t, conflict)
	})

	t.Run("mentee session with another mentor", func(t *testing.T) {
		id := store.addSession(&models.Session{
			MentorID: otherMentor, MenteeID: menteeID,
			ScheduledAt: start, Duration: 30, Status: models.SessionScheduled,
		})
		defer delete(store.sessions, id)

		conflict, err := s.hasConflict(ctx, nil, mentorID, menteeID, start, end, nil)
		require.NoError(t, err)
		assert.True(t, conflict)
	})

	t.Run("cancelled session does not count", func(t *testing.T) {
		id := store.addSession(&models.Session{
			MentorID: mentorID, MenteeID: menteeID,
			ScheduledAt: start, Duration: 30, Status: models.SessionCancelled,
		})
		defer delete(store.sessions, id)

		conflict, err := s.hasConflict(ctx, nil, mentorID, menteeID, start, end, nil)
		require.NoError(t, err)
		assert.False(t, conflict)
	})

	t.Run("mentor hosts a group session", func(t *testing.T) {
		store.groupSessions = append(store.groupSessions, &models.GroupSession{
			ID: uuid.New(), MentorID: mentorID,
			ScheduledAt: start.Add(-15 * time.Minute), Duration: 30,
			Status: models.SessionScheduled,
		})
		defer func() { store.groupSessions = nil }()

		conflict, err := s.hasConflict(ctx, nil, mentorID, menteeID, start, end, nil)
		require.NoError(t, err)
		assert.True(t, conflict)
	})

	t.Run("mentee participates in a group session", func(t *testing.T) {
		store.participantGroups[menteeID] = []*models.GroupSession{{
			ID: uuid.New(), MentorID: otherMentor,
			ScheduledAt: start, Duration: 60,
			Status: models.SessionConfirmed,
		}}
		defer delete(store.participantGroups, menteeID)

		conflict, err := s.hasConflict(ctx, nil, mentorID, menteeID, start, end, nil)
		require.NoError(t, err)
		assert.True(t, conflict)
	})

	t.Run("excluded session is ignored", func(t *testing.T) {
		id := store.addSession(&models.Session{
			MentorID: mentorID, MenteeID: menteeID,
			ScheduledAt: start, Duration: 30, Status: models.SessionConfirmed,
		})
		defer delete(store.sessions, id)

		conflict, err := s.hasConflict(ctx, nil, mentorID, menteeID, start, end, &id)
		require.NoError(t, err)
		assert.False(t, conflict)
	})

	t.Run("adjacent session does not conflict", func(t *testing.T) {
		id := store.addSession(&models.Session{
			MentorID: mentorID, MenteeID: menteeID,
			ScheduledAt: end, Duration: 30, Status: models.SessionConfirmed,
		})
		defer delete(store.sessions, id)

		conflict, err := s.hasConflict(ctx, nil, mentorID, menteeID, start, end, nil)
		require.NoError(t, err)
		assert.False(t, conflict)
	})
}
