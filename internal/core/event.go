package core

import "github.com/vovakirdan/mentorpad-server/internal/store"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventMembershipChanged carries the room's occupancy counters.
	EventMembershipChanged EventKind = iota
	// EventSummaryChanged carries a room summary to the lobby.
	EventSummaryChanged
	// EventCodeUpdate carries the new buffer to the other room members.
	EventCodeUpdate
	// EventSolutionMatched fires when the buffer equals the solution.
	EventSolutionMatched
	// EventMentorLeft tells students the session is over.
	EventMentorLeft
	// EventRoomJoined confirms a join to the joining connection.
	EventRoomJoined
	// EventLobbySnapshot delivers all summaries to a new lobby subscriber.
	EventLobbySnapshot
	// EventJoinError reports a rejected join to the joining connection.
	EventJoinError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind          EventKind
	Room          string
	Title         string
	StudentCount  int
	MentorPresent bool
	Text          string
	Role          Role
	Summaries     []store.Summary // For EventLobbySnapshot
	Error         *CoreError
}

func membershipChanged(room *store.Room) *Event {
	return &Event{
		Kind:          EventMembershipChanged,
		Room:          room.ID,
		StudentCount:  room.StudentCount,
		MentorPresent: room.MentorPresent,
	}
}

func summaryChanged(room *store.Room) *Event {
	return &Event{
		Kind:          EventSummaryChanged,
		Room:          room.ID,
		Title:         room.Title,
		StudentCount:  room.StudentCount,
		MentorPresent: room.MentorPresent,
	}
}

func codeUpdate(roomID, text string) *Event {
	return &Event{Kind: EventCodeUpdate, Room: roomID, Text: text}
}

func solutionMatched(roomID string) *Event {
	return &Event{Kind: EventSolutionMatched, Room: roomID}
}

func mentorLeft(roomID string) *Event {
	return &Event{Kind: EventMentorLeft, Room: roomID}
}

func roomJoined(room *store.Room, role Role) *Event {
	return &Event{
		Kind:          EventRoomJoined,
		Room:          room.ID,
		Title:         room.Title,
		StudentCount:  room.StudentCount,
		MentorPresent: room.MentorPresent,
		Text:          room.CurrentCode,
		Role:          role,
	}
}

func lobbySnapshot(summaries []store.Summary) *Event {
	return &Event{Kind: EventLobbySnapshot, Summaries: summaries}
}

func joinError(roomID string, err error) *Event {
	return &Event{Kind: EventJoinError, Room: roomID, Error: ToCoreError(err)}
}
