package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/mentorpad-server/internal/store"
)

// Schema creates the rooms table when missing.
const Schema = `
	CREATE TABLE IF NOT EXISTS rooms (
		id             TEXT PRIMARY KEY,
		title          TEXT NOT NULL UNIQUE,
		initial_code   TEXT NOT NULL,
		solution       TEXT NOT NULL,
		current_code   TEXT NOT NULL,
		mentor_present BOOLEAN NOT NULL DEFAULT 0,
		student_count  INTEGER NOT NULL DEFAULT 0 CHECK (student_count >= 0),
		last_active    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema and fixtures.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with single connection; it also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const roomColumns = `id, title, initial_code, solution, current_code, mentor_present, student_count, last_active`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*store.Room, error) {
	var room store.Room
	err := row.Scan(
		&room.ID,
		&room.Title,
		&room.InitialCode,
		&room.Solution,
		&room.CurrentCode,
		&room.MentorPresent,
		&room.StudentCount,
		&room.LastActive,
	)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// ==== RoomStore implementation ====

// Load retrieves a room by ID.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*store.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = ?`

	room, err := scanRoom(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("load room %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query room: %w", err)
	}
	return room, nil
}

// Save persists the mutable fields of a room.
func (s *SQLiteStore) Save(ctx context.Context, room *store.Room) error {
	query := `
		UPDATE rooms
		SET current_code = ?, mentor_present = ?, student_count = ?, last_active = ?
		WHERE id = ?
	`
	now := time.Now().UTC()
	count := room.StudentCount
	if count < 0 {
		count = 0
	}

	result, err := s.db.ExecContext(ctx, query, room.CurrentCode, room.MentorPresent, count, now, room.ID)
	if err != nil {
		return fmt.Errorf("update room: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("save room %s: %w", room.ID, store.ErrNotFound)
	}

	room.StudentCount = count
	room.LastActive = now
	return nil
}

// Reset reverts the buffer to the initial code and clears occupancy.
func (s *SQLiteStore) Reset(ctx context.Context, id string) (*store.Room, error) {
	query := `
		UPDATE rooms
		SET current_code = initial_code, mentor_present = 0, student_count = 0, last_active = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("reset room: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("reset room %s: %w", id, store.ErrNotFound)
	}

	return s.Load(ctx, id)
}

// ListSummaries lists all rooms ordered by title.
func (s *SQLiteStore) ListSummaries(ctx context.Context) ([]store.Summary, error) {
	query := `
		SELECT id, title, student_count, mentor_present
		FROM rooms
		ORDER BY title ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	summaries := make([]store.Summary, 0)
	for rows.Next() {
		var sum store.Summary
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.StudentCount, &sum.MentorPresent); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}

	return summaries, nil
}

// ==== SeedStore implementation ====

// CreateRoom inserts a new room with a generated id.
func (s *SQLiteStore) CreateRoom(ctx context.Context, seed store.Seed) (*store.Room, error) {
	query := `
		INSERT INTO rooms (id, title, initial_code, solution, current_code, last_active)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, query, id, seed.Title, seed.InitialCode, seed.Solution, seed.InitialCode, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}

	return s.Load(ctx, id)
}

// DeleteAllRooms removes every room.
func (s *SQLiteStore) DeleteAllRooms(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rooms`); err != nil {
		return fmt.Errorf("delete rooms: %w", err)
	}
	return nil
}

// ResetAll reverts every room and clears occupancy left by a previous process.
func (s *SQLiteStore) ResetAll(ctx context.Context) (int64, error) {
	var stale int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rooms WHERE mentor_present = 1 OR student_count > 0`,
	).Scan(&stale); err != nil {
		return 0, fmt.Errorf("count occupied rooms: %w", err)
	}

	query := `
		UPDATE rooms
		SET current_code = initial_code, mentor_present = 0, student_count = 0
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return 0, fmt.Errorf("reset all rooms: %w", err)
	}
	return stale, nil
}
