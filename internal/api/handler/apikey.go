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
	"github.com/paperbase/paperbase/internal/apikey"
)

type createKeyRequest struct {
	Name string `json:"name"`
}

type keyResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Prefix    string  `json:"prefix"`
	CreatedBy string  `json:"createdBy"`
	CreatedAt string  `json:"createdAt"`
	RevokedAt *string `json:"revokedAt,omitempty"`
}

type keyWithSecretResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Prefix    string `json:"prefix"`
	Secret    string `json:"secret"`
	CreatedAt string `json:"createdAt"`
}

// APIKeyHandler handles admin API key endpoints.
type APIKeyHandler struct {
	service *apikey.Service
	repo    apikey.Repository
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(service *apikey.Service, repo apikey.Repository) *APIKeyHandler {
	return &APIKeyHandler{
		service: service,
		repo:    repo,
	}
}

// Create handles POST /admin/keys. The raw secret appears in this response
// only; it is never stored or shown again.
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	p := middleware.GetPrincipal(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_JSON", "Request body must be valid JSON", requestID)
		return
	}

	fieldErrors := validation.ValidateCreateKeyRequest(validation.CreateKeyRequest{Name: req.Name})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, "VALIDATION_ERROR", "Input validation failed", fieldErrors, requestID)
		return
	}

	rawKey, prefix, hash, err := h.service.Generate()
	if err != nil {
		slog.Error("failed to generate API key", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create API key", requestID)
		return
	}

	key := &apikey.Key{
		Name:      strings.TrimSpace(req.Name),
		Prefix:    prefix,
		Hash:      hash,
		CreatedBy: p.SubjectID,
	}

	if err := h.repo.Create(r.Context(), key); err != nil {
		slog.Error("failed to create API key", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create API key", requestID)
		return
	}

	response.Success(w, http.StatusCreated, keyWithSecretResponse{
		ID:        key.ID.String(),
		Name:      key.Name,
		Prefix:    key.Prefix,
		Secret:    rawKey,
		CreatedAt: key.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}, requestID)
}

// List handles GET /admin/keys.
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	keys, err := h.repo.List(r.Context())
	if err != nil {
		slog.Error("failed to list API keys", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list API keys", requestID)
		return
	}

	out := make([]keyResponse, 0, len(keys))
	for _, k := range keys {
		resp := keyResponse{
			ID:        k.ID.String(),
			Name:      k.Name,
			Prefix:    k.Prefix,
			CreatedBy: k.CreatedBy.String(),
			CreatedAt: k.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if k.RevokedAt != nil {
			revoked := k.RevokedAt.UTC().Format("2006-01-02T15:04:05Z")
			resp.RevokedAt = &revoked
		}
		out = append(out, resp)
	}

	response.Success(w, http.StatusOK, out, requestID)
}

// Revoke handles DELETE /admin/keys/{id}.
func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Err(w, http.StatusBadRequest, "INVALID_ID", "Key ID must be a valid UUID", requestID)
		return
	}

	if err := h.repo.Revoke(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, apikey.ErrKeyNotFound):
			response.Err(w, http.StatusNotFound, "NOT_FOUND", "API key not found", requestID)
		case errors.Is(err, apikey.ErrKeyRevoked):
			response.Err(w, http.StatusConflict, "CONFLICT", "API key is already revoked", requestID)
		default:
			slog.Error("failed to revoke API key", "error", err, "requestId", requestID)
			response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to revoke API key", requestID)
		}
		return
	}

	response.NoContent(w)
}
