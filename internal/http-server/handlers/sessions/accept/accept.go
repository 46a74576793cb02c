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

type SessionAccepter interface {
	AcceptSession(ctx context.Context, mentorID, id uuid.UUID) (*api.SessionResponse, error)
}

type Response struct {
	response.Response
	Session api.SessionResponse `json:"session,omitempty"`
}

func New(log *slog.Logger, accepter SessionAccepter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sessions.accept.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		principal, ok := auth.FromContext(r.Context())
		if !ok || principal.Role != models.RoleMentor {
			log.Error("caller is not a mentor")
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error(string(response.FORBIDDEN), "only mentors can accept sessions"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			log.Error("invalid session id")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "invalid session id"))
			return
		}

		session, err := accepter.AcceptSession(r.Context(), principal.UserID, id)

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
			log.Error("session is not awaiting acceptance", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.INVALID_ARGUMENT), "session is not awaiting acceptance"))
			return
		}

		if err != nil {
			log.Error("Failed to accept session", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to accept session"))
			return
		}

		log.Info("Session accepted", slog.String("session_id", session.ID))

		render.JSON(w, r, Response{
			Session: *session,
		})
	}
}
