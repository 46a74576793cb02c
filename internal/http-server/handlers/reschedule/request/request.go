package request

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

type Rescheduler interface {
	RescheduleSession(ctx context.Context, menteeID, id uuid.UUID, req *api.RescheduleRequest) (*api.SessionResponse, error)
}

type Request struct {
	api.RescheduleRequest
}

type Response struct {
	response.Response
	Session api.SessionResponse `json:"session,omitempty"`
}

func New(log *slog.Logger, rescheduler Rescheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.reschedule.request.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		principal, ok := auth.FromContext(r.Context())
		if !ok || principal.Role != models.RoleMentee {
			log.Error("caller is not a mentee")
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error(string(response.FORBIDDEN), "only mentees can request a reschedule"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			log.Error("invalid session id")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "invalid session id"))
			return
		}

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		if req.NewScheduledAt == "" {
			log.Error("new_scheduled_at is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "new_scheduled_at is required"))
			return
		}

		session, err := rescheduler.RescheduleSession(r.Context(), principal.UserID, id, &req.RescheduleRequest)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("session not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "session not found"))
			return
		}

		if errors.Is(err, response.ErrForbidden) {
			log.Error("session belongs to another mentee")
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error(string(response.FORBIDDEN), "session belongs to another mentee"))
			return
		}

		if errors.Is(err, response.ErrInvalidArgument) {
			log.Error("invalid reschedule request", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.INVALID_ARGUMENT), "requested time is invalid"))
			return
		}

		if errors.Is(err, response.ErrConflict) {
			log.Error("requested time conflicts")
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error(string(response.CONFLICT), "the requested time is not available"))
			return
		}

		if err != nil {
			log.Error("Failed to request reschedule", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to request reschedule"))
			return
		}

		log.Info("Reschedule requested", slog.String("session_id", session.ID))

		render.JSON(w, r, Response{
			Session: *session,
		})
	}
}
