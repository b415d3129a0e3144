package core

import "sync"

// eventBuffer bounds how far a client may lag before events are dropped.
const eventBuffer = 64

// Client is a connection as seen by the core layer.
type Client struct {
	ID     string
	Events chan *Event

	closed    chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a client with an initialized event channel.
func NewClient(id string) *Client {
	return &Client{
		ID:     id,
		Events: make(chan *Event, eventBuffer),
		closed: make(chan struct{}),
	}
}

// Close marks the connection as gone. Events is left open so late
// broadcasts never panic; they are discarded instead.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.closed
}

// send delivers without blocking. Returns false if the event was dropped.
func (c *Client) send(ev *Event) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
