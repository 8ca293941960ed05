package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an account holder. Every user owns exactly one wallet, created in
// the same database transaction as the user row; the wallet carries the
// foreign key back to its owner.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
