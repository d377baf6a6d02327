package middleware

import (
	"net/http"

	"clinic-queue/internal/domain/entity"
	"clinic-queue/pkg/response"
)

// RequireRole creates a middleware that checks if the user has any of the required roles
// Role is read from context (set by AuthMiddleware from JWT claims)
func RequireRole(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetRoleFromContext(r.Context())
			if !ok {
				response.Unauthorized(w, "Role information not found")
				return
			}

			allowed := false
			for _, allowedRole := range allowedRoles {
				if role == allowedRole {
					allowed = true
					break
				}
			}

			if !allowed {
				response.Forbidden(w, "You don't have permission to access this resource")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin is a convenience middleware for admin-only endpoints
func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(entity.RoleAdmin)(next)
}

// RequireReception allows reception desk staff and admins
func RequireReception(next http.Handler) http.Handler {
	return RequireRole(entity.RoleAdmin, entity.RoleReception)(next)
}

// RequireRegistry allows registration desk staff and admins
func RequireRegistry(next http.Handler) http.Handler {
	return RequireRole(entity.RoleAdmin, entity.RoleRegistry)(next)
}

// RequireDoctor allows medico accounts; the desk resolves the doctor from the caller
func RequireDoctor(next http.Handler) http.Handler {
	return RequireRole(entity.RoleDoctor)(next)
}

// RequireStaffBoard allows every role that watches the queue board
func RequireStaffBoard(next http.Handler) http.Handler {
	return RequireRole(entity.RoleAdmin, entity.RoleReception, entity.RoleRegistry)(next)
}
