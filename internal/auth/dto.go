package auth

import (
	"github.com/ordena-app/ordena-backend/internal/users"
	"github.com/ordena-app/ordena-backend/pkg/enums"
)

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse contains the token and user produced by a successful login.
type LoginResponse struct {
	AccessToken string         `json:"access_token"`
	User        *users.UserDTO `json:"user"`
}

// RegisterRequest captures the fields needed to provision an account.
type RegisterRequest struct {
	Email    string         `json:"email" validate:"required,email"`
	Password string         `json:"password" validate:"required,min=8"`
	Name     string         `json:"name" validate:"required"`
	Role     enums.UserRole `json:"role" validate:"required"`
}

// RegisterResponse returns the provisioned account.
type RegisterResponse struct {
	User *users.UserDTO `json:"user"`
}
