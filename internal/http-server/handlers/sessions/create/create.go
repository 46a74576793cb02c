package create

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
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

type SessionCreator interface {
	CreateSession(ctx context.Context, menteeID uuid.UUID, req *api.CreateSessionRequest) (*api.SessionResponse, error)
}

type Request struct {
	api.CreateSessionRequest
}

type Response struct {
	response.Response
	Session api.SessionResponse `json:"session,omitempty"`
}

func New(log *slog.Logger, creator SessionCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sessions.create.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		principal, ok := auth.FromContext(r.Context())
		if !ok || principal.Role != models.RoleMentee {
			log.Error("caller is not a mentee")
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error(string(response.FORBIDDEN), "only mentees can book sessions"))
			return
		}

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		if req.MentorID == "" {
			log.Error("mentor_id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "mentor_id is required"))
			return
		}

		if req.ScheduledAt == "" {
			log.Error("scheduled_at is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "scheduled_at is required"))
			return
		}

		session, err := creator.CreateSession(r.Context(), principal.UserID, &req.CreateSessionRequest)

		if errors.Is(err, response.ErrInvalidArgument) {
			log.Error("invalid booking request", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.INVALID_ARGUMENT), "scheduled time or duration is invalid"))
			return
		}

		if errors.Is(err, response.ErrNotFound) {
			log.Error("mentor or mentorship not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "mentor or mentorship not found"))
			return
		}

		if errors.Is(err, response.ErrConflict) {
			log.Error("scheduling conflict")
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.CONFLICT), "the requested time is not available"))
			return
		}

		if errors.Is(err, response.ErrLocked) {
			log.Error("mentor calendar is locked")
			w.WriteHeader(http.StatusLocked)
			render.JSON(w, r, response.Error(string(response.LOCKED), "another booking is in progress, retry"))
			return
		}

		if err != nil {
			log.Error("Failed to create session", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to create session"))
			return
		}

		log.Info("Session created", slog.String("session_id", session.ID))

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, Response{
			Session: *session,
		})
	}
}
