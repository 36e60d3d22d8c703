// Package sessionstore persists conversation snapshots so an interrupted
// service can restore a chat's history and language settings. Two drivers
// are provided: an in-memory map (single instance) and Redis.
package sessionstore

import (
	"context"
	"errors"
	"time"
)

// Common errors for snapshot store operations.
var (
	ErrNotFound        = errors.New("session snapshot not found")
	ErrVersionConflict = errors.New("session snapshot version conflict")
	ErrAlreadyExists   = errors.New("session snapshot already exists")
)

// Message is one persisted conversation turn.
type Message struct {
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Language   string    `json:"language"`
	TokenCount int       `json:"token_count"`
	Timestamp  time.Time `json:"timestamp"`
}

// Snapshot is the serializable state of one chat session.
type Snapshot struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"` // monotonically increasing, for optimistic locking
	Language  string    `json:"language"`
	History   []Message `json:"history"`
}

// Store defines the interface for snapshot persistence.
type Store interface {
	// Create stores a new snapshot with Version set to 1.
	// Returns ErrAlreadyExists if the id is taken.
	Create(ctx context.Context, snap *Snapshot) error

	// Get retrieves a snapshot by id. Returns nil, nil when absent.
	Get(ctx context.Context, id string) (*Snapshot, error)

	// Update persists a snapshot with optimistic locking: the stored
	// version must match snap.Version, which is then incremented.
	// Returns ErrVersionConflict on mismatch, ErrNotFound when absent.
	Update(ctx context.Context, snap *Snapshot) error

	// Delete removes a snapshot by id. Deleting a missing id is not an
	// error.
	Delete(ctx context.Context, id string) error

	Close() error
}
