package delete

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"mentor-session-service/internal/auth"
	"mentor-session-service/internal/models"
	"mentor-session-service/pkg/response"
	"mentor-session-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

type AvailabilityDeleter interface {
	DeleteAvailability(ctx context.Context, mentorID, id uuid.UUID) error
}

type Response struct {
	response.Response
	Deleted bool `json:"deleted"`
}

func New(log *slog.Logger, deleter AvailabilityDeleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.availability.delete.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		principal, ok := auth.FromContext(r.Context())
		if !ok || principal.Role != models.RoleMentor {
			log.Error("caller is not a mentor")
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error(string(response.FORBIDDEN), "only mentors can manage availability"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			log.Error("invalid availability id")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "invalid availability id"))
			return
		}

		err = deleter.DeleteAvailability(r.Context(), principal.UserID, id)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("availability not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "availability not found"))
			return
		}

		if errors.Is(err, response.ErrForbidden) {
			log.Error("availability belongs to another mentor")
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error(string(response.FORBIDDEN), "availability belongs to another mentor"))
			return
		}

		if err != nil {
			log.Error("Failed to delete availability", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to delete availability"))
			return
		}

		log.Info("Availability deleted", slog.String("availability_id", id.String()))

		render.JSON(w, r, Response{
			Deleted: true,
		})
	}
}
