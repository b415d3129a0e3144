package core

import (
	"context"
	"sync"
)

// roomLocks serializes room mutations per room id. Entries are dropped
// once no caller holds or waits on them.
type roomLocks struct {
	mu    sync.Mutex
	locks map[string]*roomLock
}

type roomLock struct {
	ch   chan struct{}
	refs int
}

func newRoomLocks() *roomLocks {
	return &roomLocks{locks: make(map[string]*roomLock)}
}

// acquire blocks until the room is free or ctx is done.
func (l *roomLocks) acquire(ctx context.Context, roomID string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[roomID]
	if !ok {
		lk = &roomLock{ch: make(chan struct{}, 1)}
		l.locks[roomID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	select {
	case lk.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-lk.ch
				l.unref(roomID, lk)
			})
		}, nil
	case <-ctx.Done():
		l.unref(roomID, lk)
		return nil, ctx.Err()
	}
}

func (l *roomLocks) unref(roomID string, lk *roomLock) {
	l.mu.Lock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, roomID)
	}
	l.mu.Unlock()
}

func (l *roomLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
