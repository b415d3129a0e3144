package core

// group is a set of clients subscribed to the same broadcast channel:
// one per room plus the lobby.
type group struct {
	name    string
	clients map[string]*Client
}

func newGroup(name string) *group {
	return &group{
		name:    name,
		clients: make(map[string]*Client),
	}
}

// add inserts a client into the group. Returns true if newly added.
func (g *group) add(c *Client) bool {
	if _, exists := g.clients[c.ID]; exists {
		return false
	}
	g.clients[c.ID] = c
	return true
}

// remove deletes a client from the group. Returns true if removed.
func (g *group) remove(connID string) bool {
	if _, exists := g.clients[connID]; !exists {
		return false
	}
	delete(g.clients, connID)
	return true
}

// broadcast sends an event to every client except the given id and
// returns how many deliveries were dropped.
func (g *group) broadcast(event *Event, except string) int {
	dropped := 0
	for id, client := range g.clients {
		if id == except {
			continue
		}
		if !client.send(event) {
			// Slow or gone consumer.
			dropped++
		}
	}
	return dropped
}

func (g *group) empty() bool {
	return len(g.clients) == 0
}
