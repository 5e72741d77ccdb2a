package model

import (
	"time"

	"github.com/google/uuid"
)

// Role separates students from question bank administrators.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// User is an account known to the identity side of the backend.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Phone        *string   `json:"phone,omitempty"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// Role returns the role derived from the admin flag.
func (u *User) Role() Role {
	if u.IsAdmin {
		return RoleAdmin
	}
	return RoleStudent
}

// LoginRequest is the payload for password authentication.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// SignupRequest is the payload for student self-registration.
type SignupRequest struct {
	Email    string  `json:"email" binding:"required,email,max=255"`
	FullName string  `json:"full_name" binding:"required,min=2,max=100"`
	Phone    *string `json:"phone" binding:"omitempty,e164"`
	Password string  `json:"password" binding:"required,min=6,max=128"`
}

// LoginResponse is returned after successful authentication.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
