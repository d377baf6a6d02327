package entity

import "strings"

// Role names stored in users.rol
const (
	RoleAdmin     = "admin"
	RoleReception = "recepcion"
	RoleRegistry  = "registro"
	RoleDoctor    = "medico"
)

// roleAliases maps accepted spellings to the canonical role name
var roleAliases = map[string]string{
	"admin":         RoleAdmin,
	"administrador": RoleAdmin,
	"recepcion":     RoleReception,
	"recepción":     RoleReception,
	"registro":      RoleRegistry,
	"medico":        RoleDoctor,
	"médico":        RoleDoctor,
}

// NormalizeRole returns the canonical role name, or "" when the role is unknown.
func NormalizeRole(role string) string {
	return roleAliases[strings.ToLower(strings.TrimSpace(role))]
}

// IsValidRole checks whether role (or one of its aliases) is known
func IsValidRole(role string) bool {
	return NormalizeRole(role) != ""
}
