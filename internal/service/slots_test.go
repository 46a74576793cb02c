package service

import (
	"context"
	"testing"
	"time"

	"mentor-session-service/api"
	"mentor-session-service/internal/models"
	"mentor-session-service/pkg/response"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:00", 540, false},
		{"23:59", 1439, false},
		{"12:30", 750, false},
		{"24:00", 0, true},
		{"09:60", 0, true},
		{"0900", 0, true},
		{"", 0, true},
		{"ab:cd", 0, true},
	}

	for _, tt := range tests {
		got, err := parseClock(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func slotTimes(slots []api.Slot, available bool) []string {
	var out []string
	for _, s := range slots {
		if s.Available == available {
			out = append(out, s.Time.UTC().Format("15:04"))
		}
	}
	return out
}

func TestGenerateSlots_RecurringWindowWithBreak(t *testing.T) {
	now := monday.Add(-12 * time.Hour)
	s, store, _, _ := newTestService(now)
	mentorID := workingMonday(store)

	resp, err := s.GenerateSlots(context.Background(), mentorID, "2026-03-02")
	require.NoError(t, err)

	require.Len(t, resp.Slots, 6)
	assert.Equal(t, []string{"09:00", "09:30", "10:30", "11:00", "11:30"}, slotTimes(resp.Slots, true))
	assert.Equal(t, []string{"10:00"}, slotTimes(resp.Slots, false))
}

func TestGenerateSlots_BookedSessionBlocksSlot(t *testing.T) {
	now := monday.Add(-12 * time.Hour)
	s, store, _, _ := newTestService(now)
	mentorID := workingMonday(store)
	menteeID := store.addUser(models.RoleMentee, "UTC")

	store.addSession(&models.Session{
		MentorID: mentorID, MenteeID: menteeID,
		ScheduledAt: monday.Add(11 * time.Hour), Duration: 30,
		Status: models.SessionConfirmed,
	})

	resp, err := s.GenerateSlots(context.Background(), mentorID, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00", "11:00"}, slotTimes(resp.Slots, false))
}

func TestGenerateSlots_PastSlotsUnavailable(t *testing.T) {
	now := monday.Add(10*time.Hour + 45*time.Minute)
	s, store, _, _ := newTestService(now)
	mentorID := workingMonday(store)

	resp, err := s.GenerateSlots(context.Background(), mentorID, "2026-03-02")
	require.NoError(t, err)

	assert.Equal(t, []string{"11:00", "11:30"}, slotTimes(resp.Slots, true))
	assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30"}, slotTimes(resp.Slots, false))
}

func TestGenerateSlots_NoWindowIsEmptyNotError(t *testing.T) {
	now := monday.Add(-12 * time.Hour)
	s, store, _, _ := newTestService(now)
	mentorID := workingMonday(store)

	// Tuesday has no availability row.
	resp, err := s.GenerateSlots(context.Background(), mentorID, "2026-03-03")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-03", resp.Date)
	assert.Empty(t, resp.Slots)
}

func TestGenerateSlots_OverrideSupersedesRecurring(t *testing.T) {
	now := monday.Add(-12 * time.Hour)
	s, store, _, _ := newTestService(now)
	mentorID := workingMonday(store)

	store.addOverride(mentorID, monday, &models.MentorAvailability{
		StartTime:    "13:00",
		EndTime:      "15:00",
		Timezone:     "UTC",
		SlotDuration: 30,
		Status:       models.AvailabilityAvailable,
	})

	resp, err := s.GenerateSlots(context.Background(), mentorID, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"13:00", "13:30", "14:00", "14:30"}, slotTimes(resp.Slots, true))
	assert.Empty(t, slotTimes(resp.Slots, false))
}

func TestGenerateSlots_UnavailableOverrideYieldsNoSlots(t *testing.T) {
	now := monday.Add(-12 * time.Hour)
	s, store, _, _ := newTestService(now)
	mentorID := workingMonday(store)

	store.addOverride(mentorID, monday, &models.MentorAvailability{
		StartTime:    "09:00",
		EndTime:      "12:00",
		Timezone:     "UTC",
		SlotDuration: 30,
		Status:       models.AvailabilityUnavailable,
	})

	resp, err := s.GenerateSlots(context.Background(), mentorID, "2026-03-02")
	require.NoError(t, err)
	assert.Empty(t, resp.Slots)
}

func TestGenerateSlots_PartialSlotNotEmitted(t *testing.T) {
	now := monday.Add(-12 * time.Hour)
	s, store, _, _ := newTestService(now)
	mentorID := store.addUser(models.RoleMentor, "UTC")

	// 09:00-10:15 with 30-minute slots: 10:00 would run past the window.
	store.addRecurring(mentorID, 1, &models.MentorAvailability{
		StartTime:    "09:00",
		EndTime:      "10:15",
		Timezone:     "UTC",
		SlotDuration: 30,
		Status:       models.AvailabilityAvailable,
	})

	resp, err := s.GenerateSlots(context.Background(), mentorID, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "09:30"}, slotTimes(resp.Slots, true))
	assert.Empty(t, slotTimes(resp.Slots, false))
}

func TestCrossMidnightWindow_SlotsAndBookingAgree(t *testing.T) {
	now := monday.Add(-12 * time.Hour)
	s, store, _, _ := newTestService(now)

	// Monday 18:00-21:00 in Los Angeles is Tuesday 02:00-05:00 UTC.
	mentorID := store.addUser(models.RoleMentor, "America/Los_Angeles")
	store.addRecurring(mentorID, 1, &models.MentorAvailability{
		StartTime:    "18:00",
		EndTime:      "21:00",
		Timezone:     "America/Los_Angeles",
		SlotDuration: 60,
		Status:       models.AvailabilityAvailable,
	})
	menteeID := store.addUser(models.RoleMentee, "UTC")
	store.mentorships[mentorshipKey(mentorID, menteeID)] = true

	resp, err := s.GenerateSlots(context.Background(), mentorID, "2026-03-02")
	require.NoError(t, err)
	require.Len(t, resp.Slots, 3)
	assert.True(t, resp.Slots[0].Available)
	assert.True(t, resp.Slots[0].Time.Equal(time.Date(2026, 3, 3, 2, 0, 0, 0, time.UTC)))

	// Booking the advertised slot succeeds even though the instant falls on
	// Tuesday in UTC.
	created, err := s.CreateSession(context.Background(), menteeID, &api.CreateSessionRequest{
		MentorID:    mentorID.String(),
		ScheduledAt: "2026-03-03T02:00:00Z",
		Duration:    60,
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-03T02:00:00Z", created.ScheduledAt)

	// Just past the window end is still rejected.
	_, err = s.CreateSession(context.Background(), menteeID, &api.CreateSessionRequest{
		MentorID:    mentorID.String(),
		ScheduledAt: "2026-03-03T05:00:00Z",
		Duration:    60,
	})
	assert.ErrorIs(t, err, response.ErrConflict)
}

func TestGenerateSlots_BadDate(t *testing.T) {
	s, store, _, _ := newTestService(monday)
	mentorID := workingMonday(store)

	_, err := s.GenerateSlots(context.Background(), mentorID, "03/02/2026")
	assert.ErrorIs(t, err, response.ErrInvalidArgument)
}

func TestGenerateSlots_UnknownMentor(t *testing.T) {
	s, store, _, _ := newTestService(monday)
	workingMonday(store)

	_, err := s.GenerateSlots(context.Background(), store.addUser(models.RoleMentee, "UTC"), "2026-03-02")
	require.NoError(t, err) // a mentee exists but has no windows

	_, err = s.GenerateSlots(context.Background(), uuid.New(), "2026-03-02")
	assert.ErrorIs(t, err, response.ErrNotFound)
}
