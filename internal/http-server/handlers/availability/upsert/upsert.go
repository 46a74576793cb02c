package upsert

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

type AvailabilityUpserter interface {
	UpsertAvailability(ctx context.Context, mentorID uuid.UUID, req *api.CreateAvailabilityRequest) (*api.AvailabilityResponse, error)
}

type Request struct {
	api.CreateAvailabilityRequest
}

type Response struct {
	response.Response
	Availability api.AvailabilityResponse `json:"availability,omitempty"`
}

func New(log *slog.Logger, upserter AvailabilityUpserter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.availability.upsert.New"

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

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		if req.StartTime == "" || req.EndTime == "" {
			log.Error("start_time or end_time is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "start_time and end_time are required"))
			return
		}

		if req.Timezone == "" {
			log.Error("timezone is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "timezone is required"))
			return
		}

		availability, err := upserter.UpsertAvailability(r.Context(), principal.UserID, &req.CreateAvailabilityRequest)

		if errors.Is(err, response.ErrInvalidArgument) {
			log.Error("invalid availability", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.INVALID_ARGUMENT), "availability window is invalid"))
			return
		}

		if err != nil {
			log.Error("Failed to upsert availability", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to save availability"))
			return
		}

		log.Info("Availability saved", slog.String("availability_id", availability.ID))

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, Response{
			Availability: *availability,
		})
	}
}
