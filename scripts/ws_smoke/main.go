package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/mentorpad-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

type outbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	room := flag.String("room", "", "room id (default: first room in the lobby)")
	mentor := flag.Bool("mentor", false, "join as mentor")
	text := flag.String("text", "// hello from smoke test", "code to send after joining")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(typ string, data any) error {
		var raw json.RawMessage
		if data != nil {
			payload, err := json.Marshal(data)
			if err != nil {
				return fmt.Errorf("marshal %s: %w", typ, err)
			}
			raw = payload
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: raw}); err != nil {
			return fmt.Errorf("send %s: %w", typ, err)
		}
		return nil
	}

	if *room == "" {
		if err := send(proto.InboundTypeJoinLobby, nil); err != nil {
			return err
		}
		out, err := waitFor(ctx, conn, proto.EventLobbySnapshot)
		if err != nil {
			return err
		}
		var snapshot proto.LobbySnapshot
		if err := json.Unmarshal(out.Data, &snapshot); err != nil {
			return fmt.Errorf("decode snapshot: %w", err)
		}
		if len(snapshot.Rooms) == 0 {
			return errors.New("lobby is empty, run the seed command first")
		}
		*room = snapshot.Rooms[0].RoomID
		fmt.Printf("lobby: %d rooms, using %q (%s)\n", len(snapshot.Rooms), snapshot.Rooms[0].Title, *room)
	}

	if err := send(proto.InboundTypeJoinRoom, proto.JoinRoomData{RoomID: *room, WantsMentor: *mentor}); err != nil {
		return err
	}
	out, err := waitFor(ctx, conn, proto.EventRoomJoined, proto.EventJoinError)
	if err != nil {
		return err
	}
	if out.Error != nil {
		return fmt.Errorf("join rejected: %s (%s)", out.Error.Msg, out.Error.Code)
	}
	fmt.Printf("joined: %s\n", out.Data)

	if !*mentor {
		if err := send(proto.InboundTypeCodeChange, proto.CodeChangeData{RoomID: *room, Text: *text}); err != nil {
			return err
		}
	}

	// Print whatever the room sends until the deadline.
	for {
		var msg outbound
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		fmt.Printf("received: type=%s event=%s data=%s\n", msg.Type, msg.Event, msg.Data)
	}
}

func waitFor(ctx context.Context, conn *websocket.Conn, events ...string) (outbound, error) {
	for {
		var msg outbound
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return msg, fmt.Errorf("waiting for %v: %w", events, err)
		}
		for _, e := range events {
			if msg.Event == e {
				return msg, nil
			}
		}
	}
}
