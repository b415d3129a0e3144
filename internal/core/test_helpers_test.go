package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/mentorpad-server/internal/store"
)

var errStoreDown = errors.New("store down")

// fakeStore is an in-memory RoomStore with optional latency and failures.
type fakeStore struct {
	mu    sync.Mutex
	rooms map[string]store.Room

	latency  time.Duration
	failLoad bool
	failSave bool
	saves    int
	resets   int
}

func newFakeStore(rooms ...store.Room) *fakeStore {
	fs := &fakeStore{rooms: make(map[string]store.Room)}
	for _, r := range rooms {
		if r.CurrentCode == "" {
			r.CurrentCode = r.InitialCode
		}
		fs.rooms[r.ID] = r
	}
	return fs
}

func (f *fakeStore) wait(ctx context.Context) error {
	if f.latency == 0 {
		return nil
	}
	select {
	case <-time.After(f.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeStore) Load(ctx context.Context, id string) (*store.Room, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLoad {
		return nil, errStoreDown
	}
	r, ok := f.rooms[id]
	if !ok {
		return nil, fmt.Errorf("load %s: %w", id, store.ErrNotFound)
	}
	return &r, nil
}

func (f *fakeStore) Save(ctx context.Context, room *store.Room) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errStoreDown
	}
	if _, ok := f.rooms[room.ID]; !ok {
		return store.ErrNotFound
	}
	room.LastActive = time.Now()
	f.rooms[room.ID] = *room
	f.saves++
	return nil
}

func (f *fakeStore) Reset(ctx context.Context, id string) (*store.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	r.CurrentCode = r.InitialCode
	r.MentorPresent = false
	r.StudentCount = 0
	f.rooms[id] = r
	f.resets++
	return &r, nil
}

func (f *fakeStore) ListSummaries(ctx context.Context) ([]store.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLoad {
		return nil, errStoreDown
	}
	out := make([]store.Summary, 0, len(f.rooms))
	for _, r := range f.rooms {
		out = append(out, r.Summary())
	}
	return out, nil
}

func (f *fakeStore) room(t *testing.T, id string) store.Room {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[id]
	if !ok {
		t.Fatalf("room %s missing from store", id)
	}
	return r
}

func (f *fakeStore) setFailSave(v bool) {
	f.mu.Lock()
	f.failSave = v
	f.mu.Unlock()
}

type fixture struct {
	store    *fakeStore
	registry *Registry
	hub      *Hub
	coord    *Coordinator
}

func newFixture(t *testing.T, rooms ...store.Room) *fixture {
	t.Helper()
	fs := newFakeStore(rooms...)
	reg := NewRegistry()
	hub := NewHub(nil, nil)
	return &fixture{
		store:    fs,
		registry: reg,
		hub:      hub,
		coord:    NewCoordinator(fs, reg, hub, Options{StoreTimeout: 2 * time.Second}),
	}
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// assertNoEvent drains ch and fails if an event of kind is buffered.
func assertNoEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v: %+v", kind, ev)
			}
		default:
			return
		}
	}
}

func drain(ch <-chan *Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
