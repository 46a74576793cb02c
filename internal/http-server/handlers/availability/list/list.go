package list

import (
	"context"
	"log/slog"
	"net/http"

	"mentor-session-service/api"
	"mentor-session-service/pkg/response"
	"mentor-session-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

type AvailabilityLister interface {
	ListAvailability(ctx context.Context, mentorID uuid.UUID) ([]api.AvailabilityResponse, error)
}

type Response struct {
	response.Response
	Availability []api.AvailabilityResponse `json:"availability"`
}

func New(log *slog.Logger, lister AvailabilityLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.availability.list.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		mentorID, err := uuid.Parse(chi.URLParam(r, "mentorID"))
		if err != nil {
			log.Error("invalid mentor id")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "invalid mentor id"))
			return
		}

		availability, err := lister.ListAvailability(r.Context(), mentorID)
		if err != nil {
			log.Error("Failed to list availability", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to list availability"))
			return
		}

		render.JSON(w, r, Response{
			Availability: availability,
		})
	}
}
