package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoinLobby  = "join-lobby"
	InboundTypeJoinRoom   = "join-room"
	InboundTypeLeaveRoom  = "leave-room"
	InboundTypeCodeChange = "code-change"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventMembershipChanged = "membership-changed"
	EventSummaryChanged    = "summary-changed"
	EventCodeUpdate        = "code-update"
	EventSolutionMatched   = "solution-matched"
	EventMentorLeft        = "mentor-left"
	EventRoomJoined        = "room-joined"
	EventLobbySnapshot     = "lobby-snapshot"
	EventJoinError         = "join-error"
)

// JoinRoomData requests to join a room as mentor or student.
type JoinRoomData struct {
	RoomID      string `json:"roomId"`
	WantsMentor bool   `json:"wantsMentor"`
}

// CodeChangeData replaces the shared buffer of a room.
type CodeChangeData struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// MembershipChanged carries the occupancy of a room to its members.
type MembershipChanged struct {
	RoomID        string `json:"roomId"`
	StudentCount  int    `json:"studentCount"`
	MentorPresent bool   `json:"mentorPresent"`
}

// Summary describes a room in the lobby.
type Summary struct {
	RoomID        string `json:"roomId"`
	Title         string `json:"title"`
	StudentCount  int    `json:"studentCount"`
	MentorPresent bool   `json:"mentorPresent"`
}

// CodeUpdate carries the new buffer to the other members of a room.
type CodeUpdate struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

// RoomRef names a room; used by solution-matched and mentor-left.
type RoomRef struct {
	RoomID string `json:"roomId"`
}

// RoomJoined confirms a join and hands the client the current buffer.
type RoomJoined struct {
	RoomID        string `json:"roomId"`
	Title         string `json:"title"`
	Role          string `json:"role"`
	CurrentCode   string `json:"currentCode"`
	StudentCount  int    `json:"studentCount"`
	MentorPresent bool   `json:"mentorPresent"`
}

// LobbySnapshot lists every room for a new lobby subscriber.
type LobbySnapshot struct {
	Rooms []Summary `json:"rooms"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
