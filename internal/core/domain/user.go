package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is a registered investor. Email is the unique login handle.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // bcrypt, never expose
	CreatedAt    time.Time `json:"created_at"`
}

// NormalizeEmail lower-cases and trims an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
