package core

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/mentorpad-server/internal/metrics"
)

// Broadcaster fans events out to room members, the lobby, or one client.
type Broadcaster interface {
	Subscribe(roomID string, c *Client)
	Unsubscribe(roomID, connID string)
	JoinLobby(c *Client)
	LeaveLobby(connID string)

	ToRoom(roomID string, ev *Event)
	ToRoomExcept(roomID, connID string, ev *Event)
	ToLobby(ev *Event)
	ToClient(c *Client, ev *Event)
}

// Hub tracks broadcast subscriptions. Delivery is best-effort: a slow or
// closed client is skipped and never blocks the others.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*group
	lobby *group

	log     *zerolog.Logger
	metrics *metrics.Metrics
}

// NewHub creates a hub with an empty lobby. logger and m may be nil.
func NewHub(logger *zerolog.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		rooms:   make(map[string]*group),
		lobby:   newGroup("lobby"),
		log:     logger,
		metrics: m,
	}
}

// Subscribe adds a client to a room's audience.
func (h *Hub) Subscribe(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	g, ok := h.rooms[roomID]
	if !ok {
		g = newGroup(roomID)
		h.rooms[roomID] = g
	}
	g.add(c)
}

// Unsubscribe removes a client from a room's audience.
func (h *Hub) Unsubscribe(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	g, ok := h.rooms[roomID]
	if !ok {
		return
	}
	g.remove(connID)
	if g.empty() {
		delete(h.rooms, roomID)
	}
}

// JoinLobby adds a client to the lobby audience.
func (h *Hub) JoinLobby(c *Client) {
	h.mu.Lock()
	h.lobby.add(c)
	h.mu.Unlock()
}

// LeaveLobby removes a client from the lobby audience.
func (h *Hub) LeaveLobby(connID string) {
	h.mu.Lock()
	h.lobby.remove(connID)
	h.mu.Unlock()
}

// ToRoom delivers an event to every member of a room.
func (h *Hub) ToRoom(roomID string, ev *Event) {
	h.ToRoomExcept(roomID, "", ev)
}

// ToRoomExcept delivers an event to every member of a room but connID.
func (h *Hub) ToRoomExcept(roomID, connID string, ev *Event) {
	h.mu.RLock()
	g, ok := h.rooms[roomID]
	dropped := 0
	if ok {
		dropped = g.broadcast(ev, connID)
	}
	h.mu.RUnlock()

	h.reportDropped(roomID, ev, dropped)
}

// ToLobby delivers an event to every lobby subscriber.
func (h *Hub) ToLobby(ev *Event) {
	h.mu.RLock()
	dropped := h.lobby.broadcast(ev, "")
	h.mu.RUnlock()

	h.reportDropped(h.lobby.name, ev, dropped)
}

// ToClient delivers an event to a single connection.
func (h *Hub) ToClient(c *Client, ev *Event) {
	if c == nil {
		return
	}
	if !c.send(ev) {
		h.reportDropped(c.ID, ev, 1)
	}
}

// RoomSize returns the number of clients subscribed to a room.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if g, ok := h.rooms[roomID]; ok {
		return len(g.clients)
	}
	return 0
}

// LobbySize returns the number of lobby subscribers.
func (h *Hub) LobbySize() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.lobby.clients)
}

func (h *Hub) reportDropped(target string, ev *Event, dropped int) {
	if dropped == 0 {
		return
	}
	h.metrics.BroadcastDropped(dropped)
	h.log.Debug().Str("target", target).Int("kind", int(ev.Kind)).Int("dropped", dropped).Msg("event dropped")
}
