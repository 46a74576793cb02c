package slots

import (
	"context"
	"errors"
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

type SlotGenerator interface {
	GenerateSlots(ctx context.Context, mentorID uuid.UUID, date string) (*api.SlotsResponse, error)
}

type Response struct {
	response.Response
	api.SlotsResponse
}

func New(log *slog.Logger, generator SlotGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.availability.slots.New"

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

		date := chi.URLParam(r, "date")

		result, err := generator.GenerateSlots(r.Context(), mentorID, date)

		if errors.Is(err, response.ErrInvalidArgument) {
			log.Error("invalid date")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.INVALID_ARGUMENT), "date must be YYYY-MM-DD"))
			return
		}

		if errors.Is(err, response.ErrNotFound) {
			log.Error("mentor not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "mentor not found"))
			return
		}

		if err != nil {
			log.Error("Failed to generate slots", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to generate slots"))
			return
		}

		render.JSON(w, r, Response{
			SlotsResponse: *result,
		})
	}
}
