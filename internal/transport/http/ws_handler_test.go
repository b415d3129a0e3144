package http

import (
	"context"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/mentorpad-server/internal/core"
	"github.com/vovakirdan/mentorpad-server/internal/proto"
	"github.com/vovakirdan/mentorpad-server/internal/store"
)

func TestHealthEndpoint(t *testing.T) {
	env := startTestServer(t)

	resp, err := env.server.Client().Get(env.server.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := startTestServer(t)

	resp, err := env.server.Client().Get(env.server.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebSocketSessionRoundTrip(t *testing.T) {
	env := startTestServer(t)
	roomID := env.room.ID

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mentor := dial(t, ctx, env.server)
	student := dial(t, ctx, env.server)

	send(t, ctx, mentor, proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomID: roomID, WantsMentor: true})
	joined := decode[proto.RoomJoined](t, readEvent(t, ctx, mentor, proto.EventRoomJoined).Data)
	if joined.Role != string(core.RoleMentor) || joined.CurrentCode != "let x = 1" {
		t.Fatalf("unexpected mentor join: %+v", joined)
	}
	// The mentor sees its own arrival first.
	members := decode[proto.MembershipChanged](t, readEvent(t, ctx, mentor, proto.EventMembershipChanged).Data)
	if members.StudentCount != 0 || !members.MentorPresent {
		t.Fatalf("unexpected membership: %+v", members)
	}

	send(t, ctx, student, proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomID: roomID})
	joined = decode[proto.RoomJoined](t, readEvent(t, ctx, student, proto.EventRoomJoined).Data)
	if joined.Role != string(core.RoleStudent) || joined.StudentCount != 1 || !joined.MentorPresent {
		t.Fatalf("unexpected student join: %+v", joined)
	}

	members = decode[proto.MembershipChanged](t, readEvent(t, ctx, mentor, proto.EventMembershipChanged).Data)
	if members.StudentCount != 1 || !members.MentorPresent {
		t.Fatalf("unexpected membership: %+v", members)
	}

	send(t, ctx, student, proto.InboundTypeCodeChange, proto.CodeChangeData{RoomID: roomID, Text: "let x = 2"})

	update := decode[proto.CodeUpdate](t, readEvent(t, ctx, mentor, proto.EventCodeUpdate).Data)
	if update.Text != "let x = 2" {
		t.Fatalf("unexpected code update: %+v", update)
	}
	readEvent(t, ctx, mentor, proto.EventSolutionMatched)
	readEvent(t, ctx, student, proto.EventSolutionMatched)

	stored, err := env.store.Load(ctx, roomID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored.CurrentCode != "let x = 2" {
		t.Fatalf("expected persisted code, got %q", stored.CurrentCode)
	}

	student.Close(websocket.StatusNormalClosure, "bye")

	members = decode[proto.MembershipChanged](t, readEvent(t, ctx, mentor, proto.EventMembershipChanged).Data)
	if members.StudentCount != 0 || !members.MentorPresent {
		t.Fatalf("unexpected membership after disconnect: %+v", members)
	}
}

func TestWebSocketSecondMentorRejected(t *testing.T) {
	env := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first := dial(t, ctx, env.server)
	second := dial(t, ctx, env.server)

	send(t, ctx, first, proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomID: env.room.ID, WantsMentor: true})
	readEvent(t, ctx, first, proto.EventRoomJoined)

	send(t, ctx, second, proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomID: env.room.ID, WantsMentor: true})
	out := readEvent(t, ctx, second, proto.EventJoinError)
	if out.Type != proto.OutboundTypeError || out.Error == nil || out.Error.Code != core.ErrCodeMentorSlotTaken {
		t.Fatalf("unexpected join error: %+v", out)
	}
	if out.Error.Msg != "Mentor already present" {
		t.Fatalf("unexpected message: %q", out.Error.Msg)
	}
}

func TestWebSocketMalformedFrameKeepsConnection(t *testing.T) {
	env := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, env.server)

	if err := conn.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	send(t, ctx, conn, "no-such-type", nil)
	send(t, ctx, conn, proto.InboundTypeJoinRoom, map[string]any{"roomId": 42})

	send(t, ctx, conn, proto.InboundTypeJoinLobby, nil)
	snapshot := decode[proto.LobbySnapshot](t, readEvent(t, ctx, conn, proto.EventLobbySnapshot).Data)
	if len(snapshot.Rooms) != 1 || snapshot.Rooms[0].RoomID != env.room.ID {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
}

func TestWebSocketLobbySeesSummaryChanges(t *testing.T) {
	env := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lobby := dial(t, ctx, env.server)
	student := dial(t, ctx, env.server)

	send(t, ctx, lobby, proto.InboundTypeJoinLobby, nil)
	readEvent(t, ctx, lobby, proto.EventLobbySnapshot)

	send(t, ctx, student, proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomID: env.room.ID})
	summary := decode[proto.Summary](t, readEvent(t, ctx, lobby, proto.EventSummaryChanged).Data)
	if summary.RoomID != env.room.ID || summary.StudentCount != 1 || summary.Title != "Assign" {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	send(t, ctx, student, proto.InboundTypeLeaveRoom, nil)
	summary = decode[proto.Summary](t, readEvent(t, ctx, lobby, proto.EventSummaryChanged).Data)
	if summary.StudentCount != 0 {
		t.Fatalf("unexpected summary after leave: %+v", summary)
	}
}

func TestWebSocketDroppedSocketReleasesMembership(t *testing.T) {
	env := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lobby := dial(t, ctx, env.server)
	send(t, ctx, lobby, proto.InboundTypeJoinLobby, nil)
	readEvent(t, ctx, lobby, proto.EventLobbySnapshot)

	student := dial(t, ctx, env.server)
	send(t, ctx, student, proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomID: env.room.ID})
	readEvent(t, ctx, student, proto.EventRoomJoined)
	send(t, ctx, student, proto.InboundTypeCodeChange, proto.CodeChangeData{RoomID: env.room.ID, Text: "half done"})

	summary := decode[proto.Summary](t, readEvent(t, ctx, lobby, proto.EventSummaryChanged).Data)
	if summary.StudentCount != 1 {
		t.Fatalf("unexpected summary after join: %+v", summary)
	}

	// Drop the socket without a close handshake.
	student.CloseNow()

	summary = decode[proto.Summary](t, readEvent(t, ctx, lobby, proto.EventSummaryChanged).Data)
	if summary.StudentCount != 0 || summary.MentorPresent {
		t.Fatalf("unexpected summary after drop: %+v", summary)
	}

	room := waitRoom(t, env, func(r *store.Room) bool { return r.CurrentCode == "let x = 1" })
	if room.StudentCount != 0 || room.MentorPresent {
		t.Fatalf("expected released room, got %+v", room)
	}
}

func TestShutdownReleasesLiveSessions(t *testing.T) {
	env := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mentor := dial(t, ctx, env.server)
	student := dial(t, ctx, env.server)
	send(t, ctx, mentor, proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomID: env.room.ID, WantsMentor: true})
	readEvent(t, ctx, mentor, proto.EventRoomJoined)
	send(t, ctx, student, proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomID: env.room.ID})
	readEvent(t, ctx, student, proto.EventRoomJoined)
	send(t, ctx, student, proto.InboundTypeCodeChange, proto.CodeChangeData{RoomID: env.room.ID, Text: "edited"})
	readEvent(t, ctx, mentor, proto.EventCodeUpdate)

	if err := env.srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	// Shutdown returns only after every disconnect reached the store.
	room, err := env.store.Load(ctx, env.room.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if room.MentorPresent || room.StudentCount != 0 || room.CurrentCode != "let x = 1" {
		t.Fatalf("expected reset room after shutdown, got %+v", room)
	}

	late, _, err := websocket.Dial(ctx, "ws"+env.server.URL[len("http"):]+"/ws", nil)
	if err == nil {
		late.CloseNow()
		t.Fatalf("expected new sessions to be refused after shutdown")
	}
}
