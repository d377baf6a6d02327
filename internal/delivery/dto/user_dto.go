package dto

// Request DTOs

type CreateUserRequest struct {
	Username string `json:"usuario" validate:"required,min=3,max=80"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	FullName string `json:"nombre_completo" validate:"required,notblank,min=2,max=200"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"telefono" validate:"omitempty,max=30"`
	Role     string `json:"rol" validate:"required"`
}

type UpdateUserRequest struct {
	FullName string `json:"nombre_completo" validate:"omitempty,min=2,max=200"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"telefono" validate:"omitempty,max=30"`
	Role     string `json:"rol" validate:"omitempty"`
	IsActive *bool  `json:"activo"`
}

type AdminResetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// Response DTOs

type UserListResponse struct {
	Users []UserResponse `json:"usuarios"`
	Total int            `json:"total"`
}
