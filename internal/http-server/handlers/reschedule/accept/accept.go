package accept

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"mentor-session-service/api"
	"mentor-session-service/internal/auth"
	"mentor-session-service/internal/models"
	"mentor-session-service/pkg/response"
	"mentor-session-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

type RescheduleAccepter interface {
	AcceptReschedule(ctx context.Context, mentorID, id uuid.UUID) (*api.SessionResponse, error)
}

type Response struct {
	response.Response
	Session api.SessionResponse `json:"session,omitempty"`
}

func New(log *slog.Logger, accepter RescheduleAccepter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.reschedule.accept.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		principal, ok := auth.FromContext(r.Context())
		if !ok || principal.Role != models.RoleMentor {
			log.Error("caller is not a mentor")
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error(string(response.FORBIDDEN), "only mentors can accept a reschedule"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			log.Error("invalid session id")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "invalid session id"))
			return
		}

		session, err := accepter.AcceptReschedule(r.Context(), principal.UserID, id)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("session not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "session not found"))
			return
		}

		if errors.Is(err, response.ErrForbidden) {
			log.Error("session belongs to another mentor")
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error(string(response.FORBIDDEN), "session belongs to another mentor"))
			return
		}

		if errors.Is(err, response.ErrInvalidArgument) {
			log.Error("no pending reschedule request", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.INVALID_ARGUMENT), "no pending reschedule request"))
			return
		}

		if errors.Is(err, response.ErrConflict) {
			log.Error("requested time no longer available")
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.CONFLICT), "the requested time is no longer available"))
			return
		}

		if errors.Is(err, response.ErrLocked) {
			log.Error("mentor calendar is locked")
			w.WriteHeader(http.StatusLocked)
			render.JSON(w, r, response.Error(string(response.LOCKED), "another booking is in progress, retry"))
			return
		}

		if err != nil {
			log.Error("Failed to accept reschedule", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to accept reschedule"))
			return
		}

		log.Info("Reschedule accepted", slog.String("session_id", session.ID))

		render.JSON(w, r, Response{
			Session: *session,
		})
	}
}
