package http

import (
	"sync"
	"time"
)

// frameBudget caps how many inbound frames one connection may send per
// window. Frames past the budget are dropped, the connection stays open.
type frameBudget struct {
	mu          sync.Mutex
	perWindow   int
	window      time.Duration
	windowStart time.Time
	used        int
	dropped     int
	now         func() time.Time
}

func newFrameBudget(perMinute int) *frameBudget {
	return &frameBudget{
		perWindow: perMinute,
		window:    time.Minute,
		now:       time.Now,
	}
}

// spend reports whether another frame fits in the current window.
// A non-positive budget never limits.
func (b *frameBudget) spend() bool {
	if b == nil || b.perWindow <= 0 {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if now.Sub(b.windowStart) >= b.window {
		b.windowStart = now
		b.used = 0
	}
	if b.used >= b.perWindow {
		b.dropped++
		return false
	}
	b.used++
	return true
}

// droppedTotal returns how many frames were refused so far.
func (b *frameBudget) droppedTotal() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
