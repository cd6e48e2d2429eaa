package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/paperbase/paperbase/internal/api/middleware"
	"github.com/paperbase/paperbase/internal/api/response"
	"github.com/paperbase/paperbase/internal/user"
)

type userResponse struct {
	ID               string  `json:"id"`
	Username         string  `json:"username"`
	Role             string  `json:"role"`
	Suspended        bool    `json:"suspended"`
	ExternalID       *string `json:"externalId,omitempty"`
	ExternalProvider *string `json:"externalProvider,omitempty"`
	CreatedAt        string  `json:"createdAt"`
}

type suspendRequest struct {
	Suspended bool `json:"suspended"`
}

// UserHandler handles admin user endpoints.
type UserHandler struct {
	repo user.Repository
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(repo user.Repository) *UserHandler {
	return &UserHandler{repo: repo}
}

func toUserResponse(u *user.User) userResponse {
	return userResponse{
		ID:               u.ID.String(),
		Username:         u.Username,
		Role:             u.Role,
		Suspended:        u.Suspended,
		ExternalID:       u.ExternalID,
		ExternalProvider: u.ExternalProvider,
		CreatedAt:        u.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// List handles GET /admin/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	users, err := h.repo.List(r.Context())
	if err != nil {
		slog.Error("failed to list users", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list users", requestID)
		return
	}

	out := make([]userResponse, 0, len(users))
	for i := range users {
		out = append(out, toUserResponse(&users[i]))
	}

	response.Success(w, http.StatusOK, out, requestID)
}

// SetSuspended handles PATCH /admin/users/{id}/suspension.
func (h *UserHandler) SetSuspended(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "User ID must be a valid UUID", requestID)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req suspendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	if err := h.repo.SetSuspended(r.Context(), id, req.Suspended); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "User not found", requestID)
			return
		}
		slog.Error("failed to update user suspension", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update user", requestID)
		return
	}

	response.NoContent(w)
}
