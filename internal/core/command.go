package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinLobby subscribes the client to lobby summaries.
	CommandJoinLobby CommandKind = iota
	// CommandJoinRoom joins a room as mentor or student.
	CommandJoinRoom
	// CommandLeaveRoom leaves the current room.
	CommandLeaveRoom
	// CommandCodeChange replaces the shared buffer.
	CommandCodeChange
)

// Command represents an action requested by a client.
type Command struct {
	Kind        CommandKind
	Room        string
	WantsMentor bool
	Text        string
}
