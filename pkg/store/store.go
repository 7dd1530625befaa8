// Package store defines the persistence port for subscription records.
// Implementations live under internal/storage; the dispatch core only sees
// this interface.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is reported by implementations when no record exists for the
// given UAID.
var ErrNotFound = errors.New("user record not found")

// User is the per-subscription routing record. RouterData is opaque to the
// storage layer; the backend named by RouterType owns its keys.
type User struct {
	UAID        uuid.UUID      `json:"uaid"`
	RouterType  string         `json:"router_type"`
	RouterData  map[string]any `json:"router_data"`
	ConnectedAt time.Time      `json:"connected_at"`
}

// UserStore is the abstract storage client the dispatch core depends on.
type UserStore interface {
	// RegisterUser writes or replaces the record for user.UAID.
	RegisterUser(ctx context.Context, user *User) error

	// GetUser returns the record for uaid, or ErrNotFound.
	GetUser(ctx context.Context, uaid uuid.UUID) (*User, error)

	// RemoveUser deletes the record for uaid. Removing an absent record is
	// not an error; pruning must be idempotent.
	RemoveUser(ctx context.Context, uaid uuid.UUID) error
}
