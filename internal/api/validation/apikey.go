package validation

import "strings"

// CreateKeyRequest mirrors the fields needed for create API key validation.
type CreateKeyRequest struct {
	Name string
}

// ValidateCreateKeyRequest validates the fields of a create API key request.
func ValidateCreateKeyRequest(req CreateKeyRequest) []FieldError {
	var errs []FieldError

	name := strings.TrimSpace(req.Name)
	if name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "name is required"})
	} else if len(name) > 255 {
		errs = append(errs, FieldError{Field: "name", Message: "name must be at most 255 characters"})
	}

	return errs
}
