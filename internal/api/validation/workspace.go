package validation

import (
	"strings"

	"github.com/google/uuid"
)

// FieldError describes a single invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// CreateWorkspaceRequest mirrors the fields needed for create workspace validation.
type CreateWorkspaceRequest struct {
	Name string
}

// ValidateCreateWorkspaceRequest validates the fields of a create workspace request.
func ValidateCreateWorkspaceRequest(req CreateWorkspaceRequest) []FieldError {
	var errs []FieldError

	name := strings.TrimSpace(req.Name)
	if name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "name is required"})
	} else if len(name) > 255 {
		errs = append(errs, FieldError{Field: "name", Message: "name must be at most 255 characters"})
	}

	return errs
}

// MemberRequest mirrors the fields needed for add/remove member validation.
type MemberRequest struct {
	UserID string
}

// ValidateMemberRequest validates the fields of an add/remove member request.
func ValidateMemberRequest(req MemberRequest) []FieldError {
	var errs []FieldError

	if req.UserID == "" {
		errs = append(errs, FieldError{Field: "userId", Message: "userId is required"})
	} else if _, err := uuid.Parse(req.UserID); err != nil {
		errs = append(errs, FieldError{Field: "userId", Message: "userId must be a valid UUID"})
	}

	return errs
}
