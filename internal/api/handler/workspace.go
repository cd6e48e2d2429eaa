package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/paperbase/paperbase/internal/api/middleware"
	"github.com/paperbase/paperbase/internal/api/response"
	"github.com/paperbase/paperbase/internal/api/validation"
	"github.com/paperbase/paperbase/internal/workspace"
)

type createWorkspaceRequest struct {
	Name string `json:"name"`
}

type memberRequest struct {
	UserID string `json:"userId"`
}

type workspaceResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedBy string `json:"createdBy"`
	CreatedAt string `json:"createdAt"`
}

type memberResponse struct {
	UserID  string `json:"userId"`
	AddedAt string `json:"addedAt"`
}

// WorkspaceHandler handles workspace endpoints. Reads are scoped by the
// caller's principal inside the repository; the handler never widens a
// query itself.
type WorkspaceHandler struct {
	repo workspace.Repository
}

// NewWorkspaceHandler creates a new WorkspaceHandler.
func NewWorkspaceHandler(repo workspace.Repository) *WorkspaceHandler {
	return &WorkspaceHandler{repo: repo}
}

func toWorkspaceResponse(ws *workspace.Workspace) workspaceResponse {
	return workspaceResponse{
		ID:        ws.ID.String(),
		Name:      ws.Name,
		CreatedBy: ws.CreatedBy.String(),
		CreatedAt: ws.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// List handles GET /workspaces.
func (h *WorkspaceHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	p := middleware.GetPrincipal(r.Context())

	workspaces, err := h.repo.List(r.Context(), p)
	if err != nil {
		slog.Error("failed to list workspaces", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list workspaces", requestID)
		return
	}

	out := make([]workspaceResponse, 0, len(workspaces))
	for i := range workspaces {
		out = append(out, toWorkspaceResponse(&workspaces[i]))
	}

	response.Success(w, http.StatusOK, out, requestID)
}

// GetByID handles GET /workspaces/{id}.
func (h *WorkspaceHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	p := middleware.GetPrincipal(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "Workspace ID must be a valid UUID", requestID)
		return
	}

	ws, err := h.repo.GetByID(r.Context(), p, id)
	if err != nil {
		if errors.Is(err, workspace.ErrWorkspaceNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Workspace not found", requestID)
			return
		}
		slog.Error("failed to get workspace", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get workspace", requestID)
		return
	}

	response.Success(w, http.StatusOK, toWorkspaceResponse(ws), requestID)
}

// Create handles POST /admin/workspaces.
func (h *WorkspaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	p := middleware.GetPrincipal(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req createWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateCreateWorkspaceRequest(validation.CreateWorkspaceRequest{
		Name: req.Name,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	ws := &workspace.Workspace{
		Name:      strings.TrimSpace(req.Name),
		CreatedBy: p.SubjectID,
	}

	if err := h.repo.Create(r.Context(), ws); err != nil {
		if errors.Is(err, workspace.ErrDuplicateWorkspaceName) {
			response.Err(w, http.StatusConflict, "CONFLICT", "Workspace name already exists", requestID)
			return
		}
		slog.Error("failed to create workspace", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create workspace", requestID)
		return
	}

	response.Success(w, http.StatusCreated, toWorkspaceResponse(ws), requestID)
}

// AddMember handles POST /admin/workspaces/{id}/members.
func (h *WorkspaceHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "Workspace ID must be a valid UUID", requestID)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateMemberRequest(validation.MemberRequest{UserID: req.UserID})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	userID, _ := uuid.Parse(req.UserID) // already validated

	if err := h.repo.AddMember(r.Context(), id, userID); err != nil {
		switch {
		case errors.Is(err, workspace.ErrMemberExists):
			response.Err(w, http.StatusConflict, "CONFLICT", "User is already a member", requestID)
		case errors.Is(err, workspace.ErrWorkspaceNotFound):
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "Workspace not found", requestID)
		default:
			slog.Error("failed to add member", "error", err, "requestId", requestID)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to add member", requestID)
		}
		return
	}

	response.NoContent(w)
}

// RemoveMember handles DELETE /admin/workspaces/{id}/members/{userId}.
func (h *WorkspaceHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "Workspace ID must be a valid UUID", requestID)
		return
	}

	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "User ID must be a valid UUID", requestID)
		return
	}

	if err := h.repo.RemoveMember(r.Context(), id, userID); err != nil {
		if errors.Is(err, workspace.ErrMemberNotFound) {
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "User is not a member", requestID)
			return
		}
		slog.Error("failed to remove member", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to remove member", requestID)
		return
	}

	response.NoContent(w)
}

// ListMembers handles GET /admin/workspaces/{id}/members.
func (h *WorkspaceHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "Workspace ID must be a valid UUID", requestID)
		return
	}

	members, err := h.repo.ListMembers(r.Context(), id)
	if err != nil {
		slog.Error("failed to list members", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list members", requestID)
		return
	}

	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, memberResponse{
			UserID:  m.UserID.String(),
			AddedAt: m.AddedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}

	response.Success(w, http.StatusOK, out, requestID)
}
