package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/mentorpad-server/internal/config"
	"github.com/vovakirdan/mentorpad-server/internal/core"
	"github.com/vovakirdan/mentorpad-server/internal/metrics"
	"github.com/vovakirdan/mentorpad-server/internal/proto"
	"github.com/vovakirdan/mentorpad-server/internal/store"
	"github.com/vovakirdan/mentorpad-server/internal/store/sqlite"
)

type testEnv struct {
	server *httptest.Server
	srv    *Server
	store  store.Store
	hub    *core.Hub
	room   *store.Room
}

// createTestStore creates an in-memory SQLite store with one seeded room.
func createTestStore(t *testing.T) (store.Store, *store.Room) {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	room, err := st.CreateRoom(context.Background(), store.Seed{
		Title:       "Assign",
		InitialCode: "let x = 1",
		Solution:    "let x = 2",
	})
	if err != nil {
		t.Fatalf("failed to seed room: %v", err)
	}
	return st, room
}

func startTestServer(t *testing.T) *testEnv {
	t.Helper()

	st, room := createTestStore(t)
	disabledLogger := zerolog.Nop()
	m := metrics.New()

	hub := core.NewHub(&disabledLogger, m)
	coord := core.NewCoordinator(st, core.NewRegistry(), hub, core.Options{
		StoreTimeout: 2 * time.Second,
		Logger:       &disabledLogger,
		Metrics:      m,
	})

	cfg := config.Config{
		Addr:               ":0",
		ReadHeaderTimeout:  time.Second,
		ShutdownTimeout:    time.Second,
		MaxMessageBytes:    1 << 20,
		RateLimitPerMinute: 1000,
	}
	server := NewServer(coord, st, &cfg, &disabledLogger, m)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, srv: server, store: st, hub: hub, room: room}
}

type testOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func dial(t *testing.T, ctx context.Context, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, "ws"+ts.URL[len("http"):]+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	var raw json.RawMessage
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		raw = payload
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: raw}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// waitRoom polls the store until cond holds for the seeded room.
func waitRoom(t *testing.T, env *testEnv, cond func(*store.Room) bool) *store.Room {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for {
		room, err := env.store.Load(context.Background(), env.room.ID)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if cond(room) {
			return room
		}
		if time.Now().After(deadline) {
			t.Fatalf("room never reached expected state: %+v", room)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// readEvent reads frames until one named event arrives.
func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, event string) testOutbound {
	t.Helper()

	for {
		var out testOutbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if out.Event == event {
			return out
		}
	}
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return v
}
