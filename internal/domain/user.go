package domain

import (
	"net/mail"
	"strings"
	"time"
)

type Role string

const (
	RoleResident Role = "resident"
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleResident || r == RoleOwner || r == RoleAdmin
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	Favorites    []string  `json:"favorites"`
	Role         Role      `json:"role"`
	Disabled     bool      `json:"disabled"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

const MinPasswordLen = 6

// Registration is the client-side form a new account submits.
type Registration struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func NormalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (r Registration) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if strings.TrimSpace(r.Email) == "" {
		return &ValidationError{Field: "email", Reason: "required"}
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return &ValidationError{Field: "email", Reason: "invalid"}
	}
	if len(r.Password) < MinPasswordLen {
		return &ValidationError{Field: "password", Reason: "too_short"}
	}
	if r.Password != r.ConfirmPassword {
		return &ValidationError{Field: "confirm_password", Reason: "mismatch"}
	}
	return nil
}
