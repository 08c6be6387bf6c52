package domain

import (
	"strings"
	"time"
)

// Portal names the login surface a credential is presented to
type Portal string

const (
	PortalCitizen   Portal = "citizen"
	PortalAdmin     Portal = "admin"
	PortalSuperuser Portal = "superuser"
)

// User is a portal account. Citizens, staff and superusers share one table.
type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	Phone        string    `json:"phone" db:"phone"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// NormalizeEmail is the form emails are stored and looked up in
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
