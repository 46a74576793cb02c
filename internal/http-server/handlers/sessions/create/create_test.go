package create_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mentor-session-service/api"
	"mentor-session-service/internal/auth"
	"mentor-session-service/internal/http-server/handlers/sessions/create"
	"mentor-session-service/pkg/response"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

type creatorMock struct {
	resp      *api.SessionResponse
	err       error
	gotMentee uuid.UUID
}

func (m *creatorMock) CreateSession(_ context.Context, menteeID uuid.UUID, _ *api.CreateSessionRequest) (*api.SessionResponse, error) {
	m.gotMentee = menteeID
	return m.resp, m.err
}

func bearerToken(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID.String(),
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + token
}

func TestCreateHandler(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	menteeID := uuid.New()
	mentorID := uuid.New()

	okResponse := &api.SessionResponse{
		ID:          uuid.New().String(),
		MentorID:    mentorID.String(),
		MenteeID:    menteeID.String(),
		ScheduledAt: "2026-03-02T09:00:00Z",
		Duration:    30,
		Status:      "scheduled",
	}

	validBody := `{"mentor_id":"` + mentorID.String() + `","scheduled_at":"2026-03-02T09:00:00Z"}`

	tests := []struct {
		name       string
		role       string
		body       string
		mockResp   *api.SessionResponse
		mockErr    error
		wantStatus int
	}{
		{"created", "mentee", validBody, okResponse, nil, http.StatusCreated},
		{"mentor cannot book", "mentor", validBody, nil, nil, http.StatusForbidden},
		{"malformed body", "mentee", `{"mentor_id":`, nil, nil, http.StatusBadRequest},
		{"missing mentor_id", "mentee", `{"scheduled_at":"2026-03-02T09:00:00Z"}`, nil, nil, http.StatusBadRequest},
		{"missing scheduled_at", "mentee", `{"mentor_id":"` + mentorID.String() + `"}`, nil, nil, http.StatusBadRequest},
		{"invalid argument", "mentee", validBody, nil, response.ErrInvalidArgument, http.StatusBadRequest},
		{"mentor not found", "mentee", validBody, nil, response.ErrNotFound, http.StatusNotFound},
		{"conflict", "mentee", validBody, nil, response.ErrConflict, http.StatusConflict},
		{"calendar locked", "mentee", validBody, nil, response.ErrLocked, http.StatusLocked},
		{"storage failure", "mentee", validBody, nil, io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creator := &creatorMock{resp: tt.mockResp, err: tt.mockErr}
			handler := auth.New(log, secret)(create.New(log, creator))

			req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewBufferString(tt.body))
			req.Header.Set("Authorization", bearerToken(t, menteeID, tt.role))
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantStatus == http.StatusCreated {
				assert.Equal(t, menteeID, creator.gotMentee)

				var got create.Response
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
				assert.Equal(t, okResponse.ID, got.Session.ID)
				assert.Equal(t, "scheduled", got.Session.Status)
			}
		})
	}
}
