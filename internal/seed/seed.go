// Package seed loads exercise definitions and writes them to a room store.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vovakirdan/mentorpad-server/internal/store"
)

//go:embed exercises.yaml
var builtin []byte

// Builtin returns the bundled exercise set.
func Builtin() ([]store.Seed, error) {
	return parse(builtin)
}

// LoadFile reads a YAML list of exercises.
func LoadFile(path string) ([]store.Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return parse(data)
}

func parse(data []byte) ([]store.Seed, error) {
	var seeds []store.Seed
	if err := yaml.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("parse seeds: %w", err)
	}
	for i, s := range seeds {
		if s.Title == "" {
			return nil, fmt.Errorf("seed %d: title is required", i)
		}
	}
	if len(seeds) == 0 {
		return nil, errors.New("no seeds defined")
	}
	return seeds, nil
}

// Apply replaces every room in st with the given seeds.
func Apply(ctx context.Context, st store.SeedStore, seeds []store.Seed) ([]*store.Room, error) {
	if err := st.DeleteAllRooms(ctx); err != nil {
		return nil, fmt.Errorf("clear rooms: %w", err)
	}

	rooms := make([]*store.Room, 0, len(seeds))
	for _, s := range seeds {
		room, err := st.CreateRoom(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("create room %q: %w", s.Title, err)
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}
