package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mentor-session-service/api"
	"mentor-session-service/internal/models"
	"mentor-session-service/pkg/response"

	"github.com/google/uuid"
)

func (s *Service) UpsertAvailability(ctx context.Context, mentorID uuid.UUID, req *api.CreateAvailabilityRequest) (*api.AvailabilityResponse, error) {
	const op = "service.UpsertAvailability"

	if (req.DayOfWeek == nil) == (req.SpecificDate == nil) {
		return nil, fmt.Errorf("%s: exactly one of day_of_week and specific_date must be set: %w", op, response.ErrInvalidArgument)
	}

	startClock, err := parseClock(req.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid start_time: %w", op, response.ErrInvalidArgument)
	}
	endClock, err := parseClock(req.EndTime)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid end_time: %w", op, response.ErrInvalidArgument)
	}
	if endClock <= startClock {
		return nil, fmt.Errorf("%s: end_time must be after start_time: %w", op, response.ErrInvalidArgument)
	}

	if _, err := time.LoadLocation(req.Timezone); err != nil {
		return nil, fmt.Errorf("%s: invalid timezone %q: %w", op, req.Timezone, response.ErrInvalidArgument)
	}

	slotDuration := req.SlotDuration
	if slotDuration == 0 {
		slotDuration = defaultSlotDuration
	}
	if slotDuration <= 0 || slotDuration > endClock-startClock {
		return nil, fmt.Errorf("%s: slot_duration does not fit the window: %w", op, response.ErrInvalidArgument)
	}

	status := models.AvailabilityAvailable
	if req.Status != "" {
		status = models.AvailabilityStatus(req.Status)
		switch status {
		case models.AvailabilityAvailable, models.AvailabilityUnavailable, models.AvailabilityBooked:
		default:
			return nil, fmt.Errorf("%s: invalid status %q: %w", op, req.Status, response.ErrInvalidArgument)
		}
	}

	a := &models.MentorAvailability{
		MentorID:     mentorID,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Timezone:     req.Timezone,
		SlotDuration: slotDuration,
		Status:       status,
	}

	if req.DayOfWeek != nil {
		if *req.DayOfWeek < 0 || *req.DayOfWeek > 6 {
			return nil, fmt.Errorf("%s: day_of_week out of range: %w", op, response.ErrInvalidArgument)
		}
		a.IsRecurring = true
		a.DayOfWeek = req.DayOfWeek
	} else {
		date, err := time.Parse("2006-01-02", *req.SpecificDate)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid specific_date: %w", op, response.ErrInvalidArgument)
		}
		a.SpecificDate = &date
	}

	for _, b := range req.Breaks {
		bStart, err := parseClock(b.StartTime)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid break start_time: %w", op, response.ErrInvalidArgument)
		}
		bEnd, err := parseClock(b.EndTime)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid break end_time: %w", op, response.ErrInvalidArgument)
		}
		if bEnd <= bStart || bStart < startClock || bEnd > endClock {
			return nil, fmt.Errorf("%s: break must lie inside the window: %w", op, response.ErrInvalidArgument)
		}
		a.Breaks = append(a.Breaks, models.Break{
			StartTime: b.StartTime,
			EndTime:   b.EndTime,
			Reason:    b.Reason,
		})
	}

	id, err := s.store.UpsertAvailability(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	stored, err := s.store.GetAvailability(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp := toAvailabilityResponse(stored)
	return &resp, nil
}

func (s *Service) ListAvailability(ctx context.Context, mentorID uuid.UUID) ([]api.AvailabilityResponse, error) {
	const op = "service.ListAvailability"

	rows, err := s.store.ListMentorAvailability(ctx, mentorID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := make([]api.AvailabilityResponse, 0, len(rows))
	for _, a := range rows {
		result = append(result, toAvailabilityResponse(a))
	}

	return result, nil
}

// DeleteAvailability removes the row after an ownership check; mentors may
// only delete their own windows.
func (s *Service) DeleteAvailability(ctx context.Context, mentorID, id uuid.UUID) error {
	const op = "service.DeleteAvailability"

	a, err := s.store.GetAvailability(ctx, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if a.MentorID != mentorID {
		return fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}

	if err := s.store.DeleteAvailability(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// effectiveAvailability resolves the window that governs a calendar date:
// a specific-date row fully supersedes the recurring row for that date, no
// merge. Returns nil when the mentor is unbookable that day. tx may be nil.
func (s *Service) effectiveAvailability(ctx context.Context, tx *sql.Tx, mentorID uuid.UUID, date time.Time) (*models.MentorAvailability, error) {
	const op = "service.effectiveAvailability"

	override, err := s.store.GetDateAvailability(ctx, tx, mentorID, date)
	if err != nil && !errors.Is(err, response.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if override != nil {
		if override.Status != models.AvailabilityAvailable {
			return nil, nil
		}
		return override, nil
	}

	recurring, err := s.store.GetRecurringAvailability(ctx, tx, mentorID, int(date.Weekday()))
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if recurring.Status != models.AvailabilityAvailable {
		return nil, nil
	}

	return recurring, nil
}
