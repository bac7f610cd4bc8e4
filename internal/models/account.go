package models

import (
	"errors"
	"time"
)

// Storage-level errors shared by the backend layers.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// Account is the backend's user record. It never leaves the server.
type Account struct {
	Identity
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}
