package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a room id is unknown to the store.
var ErrNotFound = errors.New("room not found")

// Room represents a persisted code block session.
type Room struct {
	ID            string
	Title         string
	InitialCode   string
	Solution      string
	CurrentCode   string
	MentorPresent bool
	StudentCount  int
	LastActive    time.Time
}

// Summary is the lobby view of a room. It never carries buffer contents.
type Summary struct {
	ID            string
	Title         string
	StudentCount  int
	MentorPresent bool
}

// Summary projects the room onto its lobby view.
func (r *Room) Summary() Summary {
	return Summary{
		ID:            r.ID,
		Title:         r.Title,
		StudentCount:  r.StudentCount,
		MentorPresent: r.MentorPresent,
	}
}

// Seed describes a room to create.
type Seed struct {
	Title       string `yaml:"title"`
	InitialCode string `yaml:"initial_code"`
	Solution    string `yaml:"solution"`
}

// RoomStore handles room persistence.
type RoomStore interface {
	// Load retrieves a room by ID. Returns ErrNotFound for unknown ids.
	Load(ctx context.Context, id string) (*Room, error)

	// Save persists the mutable fields of a room and refreshes LastActive.
	Save(ctx context.Context, room *Room) error

	// Reset reverts the buffer to the initial code and clears occupancy.
	Reset(ctx context.Context, id string) (*Room, error)

	// ListSummaries lists all rooms ordered by title.
	ListSummaries(ctx context.Context) ([]Summary, error)
}

// SeedStore handles bulk room provisioning and maintenance.
type SeedStore interface {
	// CreateRoom inserts a new room with CurrentCode set to InitialCode.
	CreateRoom(ctx context.Context, seed Seed) (*Room, error)

	// DeleteAllRooms removes every room.
	DeleteAllRooms(ctx context.Context) error

	// ResetAll reverts every room and clears occupancy. Occupancy mirrors
	// live connections, so a starting process has none. Returns the number
	// of rooms that still carried occupancy.
	ResetAll(ctx context.Context) (int64, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	RoomStore
	SeedStore

	// Close closes the underlying database connection.
	Close() error
}
