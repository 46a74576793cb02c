package notify

import (
	"context"
	"log/slog"
	"time"

	"mentor-session-service/internal/models"
	"mentor-session-service/pkg/sl"
)

type Event string

const (
	EventSessionBooked       Event = "session_booked"
	EventSessionAccepted     Event = "session_accepted"
	EventSessionDeclined     Event = "session_declined"
	EventSessionCancelled    Event = "session_cancelled"
	EventRescheduleRequested Event = "reschedule_requested"
	EventRescheduleAccepted  Event = "reschedule_accepted"
	EventRescheduleDeclined  Event = "reschedule_declined"
)

// Notifier delivers session events to the push-notification collaborator.
type Notifier interface {
	Notify(ctx context.Context, event Event, session *models.Session) error
}

// Emailer delivers session events to the email collaborator.
type Emailer interface {
	SendSessionEmail(ctx context.Context, event Event, session *models.Session) error
}

// Dispatcher fans an event out to both collaborators after a booking commits.
// Delivery is best effort: failures are logged and never surfaced to callers.
type Dispatcher struct {
	log      *slog.Logger
	notifier Notifier
	emailer  Emailer
	timeout  time.Duration
}

func NewDispatcher(log *slog.Logger, notifier Notifier, emailer Emailer) *Dispatcher {
	return &Dispatcher{
		log:      log,
		notifier: notifier,
		emailer:  emailer,
		timeout:  10 * time.Second,
	}
}

// Dispatch runs in its own goroutine, detached from the request context.
func (d *Dispatcher) Dispatch(event Event, session *models.Session) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		log := d.log.With(
			slog.String("event", string(event)),
			slog.String("session_id", session.ID.String()),
		)

		if d.notifier != nil {
			if err := d.notifier.Notify(ctx, event, session); err != nil {
				log.Error("notification dispatch failed", sl.Err(err))
			}
		}

		if d.emailer != nil {
			if err := d.emailer.SendSessionEmail(ctx, event, session); err != nil {
				log.Error("email dispatch failed", sl.Err(err))
			}
		}
	}()
}

// LogNotifier is the default stand-in when no push collaborator is configured.
type LogNotifier struct {
	Log *slog.Logger
}

func (n *LogNotifier) Notify(_ context.Context, event Event, session *models.Session) error {
	n.Log.Info("notification",
		slog.String("event", string(event)),
		slog.String("session_id", session.ID.String()),
		slog.String("mentor_id", session.MentorID.String()),
		slog.String("mentee_id", session.MenteeID.String()),
	)
	return nil
}

// LogEmailer is the default stand-in when no email collaborator is configured.
type LogEmailer struct {
	Log *slog.Logger
}

func (e *LogEmailer) SendSessionEmail(_ context.Context, event Event, session *models.Session) error {
	e.Log.Info("session email",
		slog.String("event", string(event)),
		slog.String("session_id", session.ID.String()),
	)
	return nil
}
