package models

import (
	"time"

	"github.com/lib/pq"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string         `db:"id" json:"id"`
	Email        string         `db:"email" json:"email"`
	PasswordHash string         `db:"password_hash" json:"-"`
	Name         string         `db:"name" json:"name"`
	Surname      string         `db:"surname" json:"surname"`
	Active       bool           `db:"active" json:"active"`
	Superuser    bool           `db:"superuser" json:"superuser"`
	Scopes       pq.StringArray `db:"scopes" json:"scopes"`
	BlockedAt    *time.Time     `db:"blocked_at" json:"blocked_at,omitempty"`
	LastLogin    *time.Time     `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// IsBlocked reports whether the account may not authenticate.
func (u *User) IsBlocked() bool {
	return !u.Active || u.BlockedAt != nil
}

// CreateUserRequest is the payload accepted when an administrator creates an account.
// Password length and strength are checked by the service after the email uniqueness check.
type CreateUserRequest struct {
	Email     string   `json:"email" binding:"required" validate:"required,email,max=255"`
	Password  string   `json:"password" binding:"required,password_strength" validate:"required,max=72"`
	Name      string   `json:"name" binding:"required" validate:"required,min=3,max=100"`
	Surname   string   `json:"surname" binding:"required" validate:"required,min=3,max=100"`
	Active    *bool    `json:"active"`
	Superuser bool     `json:"superuser"`
	Scopes    []string `json:"scopes"`
}

// RegisterRequest is the public self-registration payload.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required" validate:"required,email,max=255"`
	Password string `json:"password" binding:"required,password_strength" validate:"required,max=72"`
	Name     string `json:"name" binding:"required" validate:"required,min=3,max=100"`
	Surname  string `json:"surname" binding:"required" validate:"required,min=3,max=100"`
}

// UpdateUserRequest carries a partial user update; nil fields are left untouched.
type UpdateUserRequest struct {
	Email     *string `json:"email" validate:"omitempty,email,max=255"`
	Password  *string `json:"password" binding:"omitempty,password_strength" validate:"omitempty,max=72"`
	Name      *string `json:"name" validate:"omitempty,min=3,max=100"`
	Surname   *string `json:"surname" validate:"omitempty,min=3,max=100"`
	Active    *bool   `json:"active"`
	Superuser *bool   `json:"superuser"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Limit      int `json:"limit"`
	Offset     int `json:"offset"`
	TotalCount int `json:"total_count"`
}
