package dto

import "github.com/kuliahku/kuliahku-api/internal/models"

// RegisterRequest is the payload for account creation.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest is the payload for credential login.
type LoginRequest struct {
	Email      string `json:"email" validate:"required"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"remember_me"`
}

// LoginResponse carries the authenticated user and issued tokens. The tokens
// are also set as HTTP-only cookies; the body copy exists for non-browser
// clients.
type LoginResponse struct {
	User          models.PublicUser `json:"user"`
	SessionToken  string            `json:"session_token"`
	RememberToken string            `json:"remember_token,omitempty"`
	ExpiresIn     int64             `json:"expires_in"`
}

// ChangePasswordRequest is the payload for password change.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// UpdateProfileRequest carries mutable profile fields.
type UpdateProfileRequest struct {
	Name         string  `json:"name" validate:"required"`
	NIM          *string `json:"nim"`
	Jurusan      *string `json:"jurusan"`
	Fakultas     *string `json:"fakultas"`
	Angkatan     *string `json:"angkatan"`
	ProfileImage *string `json:"profile_image"`
}
