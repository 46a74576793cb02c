package list

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"mentor-session-service/api"
	"mentor-session-service/internal/auth"
	"mentor-session-service/internal/models"
	"mentor-session-service/pkg/response"
	"mentor-session-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/google/uuid"
)

type SessionLister interface {
	ListSessions(ctx context.Context, callerID uuid.UUID, role models.Role, q *api.ListSessionsQuery) (*api.SessionListResponse, error)
}

type Response struct {
	response.Response
	api.SessionListResponse
}

func New(log *slog.Logger, lister SessionLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sessions.list.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		principal, ok := auth.FromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error(string(response.FORBIDDEN), "forbidden"))
			return
		}

		q := &api.ListSessionsQuery{}
		query := r.URL.Query()

		if v := query.Get("status"); v != "" {
			q.Status = &v
		}
		if v := query.Get("mentorId"); v != "" {
			q.MentorID = &v
		}
		if v := query.Get("menteeId"); v != "" {
			q.MenteeID = &v
		}
		q.Upcoming = query.Get("upcoming") == "true"
		q.Past = query.Get("past") == "true"
		if v := query.Get("limit"); v != "" {
			q.Limit, _ = strconv.Atoi(v)
		}
		if v := query.Get("offset"); v != "" {
			q.Offset, _ = strconv.Atoi(v)
		}

		result, err := lister.ListSessions(r.Context(), principal.UserID, principal.Role, q)

		if errors.Is(err, response.ErrInvalidArgument) {
			log.Error("invalid list filters", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.INVALID_ARGUMENT), "invalid list filters"))
			return
		}

		if err != nil {
			log.Error("Failed to list sessions", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to list sessions"))
			return
		}

		render.JSON(w, r, Response{
			SessionListResponse: *result,
		})
	}
}
