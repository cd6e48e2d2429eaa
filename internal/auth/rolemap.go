package auth

import (
	"strings"

	"github.com/paperbase/paperbase/internal/user"
)

// externalRoleMap is the fixed mapping from external role claims to local
// roles. Anything not listed maps to the default role; an unrecognized
// value must never escalate to admin.
var externalRoleMap = map[string]string{
	"admin":         user.RoleAdmin,
	"administrator": user.RoleAdmin,
	"owner":         user.RoleAdmin,
	"member":        user.RoleDefault,
	"user":          user.RoleDefault,
	"viewer":        user.RoleDefault,
}

// MapExternalRole maps an external role claim onto exactly one local role.
func MapExternalRole(external string) string {
	if role, ok := externalRoleMap[strings.ToLower(strings.TrimSpace(external))]; ok {
		return role
	}
	return user.RoleDefault
}
