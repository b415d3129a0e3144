package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/mentorpad-server/internal/metrics"
	"github.com/vovakirdan/mentorpad-server/internal/store"
)

// DefaultStoreTimeout bounds lock waits and store calls of one operation.
const DefaultStoreTimeout = 5 * time.Second

// Target selects the audience of a delivery.
type Target int

const (
	TargetRoom Target = iota
	TargetRoomExcept
	TargetLobby
	TargetClient
)

// Delivery is one event addressed to an audience.
type Delivery struct {
	Target Target
	RoomID string
	Except string
	Client *Client
	Event  *Event
}

// Outcome is the decided result of an operation: the room state to persist
// and the events to deliver once it is persisted.
type Outcome struct {
	Room       *store.Room
	Role       Role
	Matched    bool
	Reset      bool
	Deliveries []Delivery
}

// Options configures a Coordinator.
type Options struct {
	StoreTimeout time.Duration
	Logger       *zerolog.Logger
	Metrics      *metrics.Metrics
}

// Coordinator is the only component that mutates room occupancy and
// buffer state. Mutations of one room run one at a time.
type Coordinator struct {
	store   store.RoomStore
	members MembershipRegistry
	hub     Broadcaster
	sweeper *Sweeper
	locks   *roomLocks

	timeout time.Duration
	log     *zerolog.Logger
	metrics *metrics.Metrics
}

// NewCoordinator wires a coordinator over the given store, registry and hub.
func NewCoordinator(st store.RoomStore, members MembershipRegistry, hub Broadcaster, opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	timeout := opts.StoreTimeout
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &Coordinator{
		store:   st,
		members: members,
		hub:     hub,
		sweeper: NewSweeper(st, hub, logger, opts.Metrics),
		locks:   newRoomLocks(),
		timeout: timeout,
		log:     logger,
		metrics: opts.Metrics,
	}
}

// Handle dispatches an inbound command from client.
func (c *Coordinator) Handle(ctx context.Context, client *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandJoinLobby:
		_ = c.JoinLobby(ctx, client)
	case CommandJoinRoom:
		_, _ = c.JoinRoom(ctx, client, cmd.Room, cmd.WantsMentor)
	case CommandLeaveRoom:
		_, _ = c.Leave(ctx, client.ID)
	case CommandCodeChange:
		_, _ = c.ApplyEdit(ctx, client.ID, cmd.Room, cmd.Text)
	default:
		c.log.Warn().Str("conn_id", client.ID).Int("kind", int(cmd.Kind)).Msg("unknown command")
	}
}

// JoinLobby subscribes client to lobby summaries and sends it the current list.
func (c *Coordinator) JoinLobby(ctx context.Context, client *Client) error {
	c.hub.JoinLobby(client)

	ctx, cancel := c.storeContext(ctx)
	defer cancel()

	summaries, err := c.store.ListSummaries(ctx)
	if err != nil {
		c.log.Error().Err(err).Str("conn_id", client.ID).Msg("list summaries for lobby")
		return fmt.Errorf("%w: list summaries: %w", ErrStoreUnavailable, err)
	}
	c.hub.ToClient(client, lobbySnapshot(summaries))
	return nil
}

// JoinRoom admits client into a room as mentor or student. On failure nothing
// is registered or subscribed and the client receives a join error.
func (c *Coordinator) JoinRoom(ctx context.Context, client *Client, roomID string, wantsMentor bool) (*Outcome, error) {
	role := RoleFor(wantsMentor)

	out, err := c.joinRoom(ctx, client, roomID, role)
	if err != nil {
		c.metrics.Join(string(role), joinResult(err))
		logEvent := c.log.Info()
		if errors.Is(err, ErrStoreUnavailable) {
			logEvent = c.log.Error()
		}
		logEvent.Err(err).Str("conn_id", client.ID).Str("room_id", roomID).Str("role", string(role)).Msg("join rejected")
		c.hub.ToClient(client, joinError(roomID, err))
		return nil, err
	}

	c.metrics.Join(string(role), "ok")
	c.log.Info().Str("conn_id", client.ID).Str("room_id", roomID).Str("role", string(role)).
		Int("student_count", out.Room.StudentCount).Msg("joined room")
	return out, nil
}

func (c *Coordinator) joinRoom(ctx context.Context, client *Client, roomID string, role Role) (*Outcome, error) {
	if roomID == "" {
		return nil, ErrMalformedEvent
	}
	if m, ok := c.members.Lookup(client.ID); ok {
		return nil, fmt.Errorf("%w: member of %s", ErrAlreadyJoined, m.RoomID)
	}

	ctx, cancel := c.storeContext(ctx)
	defer cancel()

	release, err := c.locks.acquire(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire room: %w", ErrStoreUnavailable, err)
	}
	defer release()

	room, err := c.load(ctx, roomID)
	if err != nil {
		return nil, err
	}

	out, err := decideJoin(room, client, role)
	if err != nil {
		return nil, err
	}

	if err := c.save(ctx, out.Room); err != nil {
		return nil, err
	}

	c.members.Record(client.ID, roomID, role)
	c.hub.Subscribe(roomID, client)
	c.deliver(out)
	return out, nil
}

// Leave removes the connection from its room. Unknown connections are a no-op.
func (c *Coordinator) Leave(ctx context.Context, connID string) (*Outcome, error) {
	return c.leave(ctx, connID, false)
}

// Disconnect handles connection loss. It is safe to call more than once.
func (c *Coordinator) Disconnect(ctx context.Context, client *Client) (*Outcome, error) {
	client.Close()
	c.hub.LeaveLobby(client.ID)
	return c.leave(ctx, client.ID, true)
}

func (c *Coordinator) leave(ctx context.Context, connID string, gone bool) (*Outcome, error) {
	m, ok := c.members.Lookup(connID)
	if !ok {
		return nil, nil
	}

	ctx, cancel := c.storeContext(ctx)
	defer cancel()

	release, err := c.locks.acquire(ctx, m.RoomID)
	if err != nil {
		err = fmt.Errorf("%w: acquire room: %w", ErrStoreUnavailable, err)
		c.abandonLeave(connID, m, gone, err)
		return nil, err
	}
	defer release()

	// A concurrent duplicate may have handled this connection while we waited.
	m, ok = c.members.Remove(connID)
	if !ok {
		return nil, nil
	}

	room, err := c.load(ctx, m.RoomID)
	if errors.Is(err, ErrRoomNotFound) {
		c.hub.Unsubscribe(m.RoomID, connID)
		c.log.Warn().Str("conn_id", connID).Str("room_id", m.RoomID).Msg("left a room that no longer exists")
		return nil, err
	}
	if err != nil {
		c.abandonLeave(connID, m, gone, err)
		return nil, err
	}

	out := decideLeave(room, m.Role)
	if err := c.save(ctx, out.Room); err != nil {
		c.abandonLeave(connID, m, gone, err)
		return nil, err
	}
	c.hub.Unsubscribe(m.RoomID, connID)

	reset, err := c.sweeper.MaybeReset(ctx, out.Room)
	if err != nil {
		c.log.Error().Err(err).Str("room_id", m.RoomID).Msg("reset empty room")
	}
	out.Reset = reset

	c.deliver(out)
	c.log.Info().Str("conn_id", connID).Str("room_id", m.RoomID).Str("role", string(m.Role)).
		Bool("disconnect", gone).Int("student_count", out.Room.StudentCount).Msg("left room")
	return out, nil
}

// abandonLeave undoes the registry side of a failed leave. A live connection
// keeps its membership so a later leave retries; a gone one cannot retry.
func (c *Coordinator) abandonLeave(connID string, m Membership, gone bool, err error) {
	if gone {
		c.members.Remove(connID)
		c.hub.Unsubscribe(m.RoomID, connID)
		c.log.Error().Err(err).Str("conn_id", connID).Str("room_id", m.RoomID).Str("role", string(m.Role)).
			Msg("disconnect not persisted, room counters may be stale")
		return
	}
	c.members.Record(connID, m.RoomID, m.Role)
	c.log.Error().Err(err).Str("conn_id", connID).Str("room_id", m.RoomID).Msg("leave abandoned")
}

// ApplyEdit replaces the room buffer with text. Edits from unknown
// connections, from mentors, or aimed at another room are dropped.
func (c *Coordinator) ApplyEdit(ctx context.Context, connID, roomID, text string) (*Outcome, error) {
	m, ok := c.members.Lookup(connID)
	if !ok || m.Role != RoleStudent || (roomID != "" && roomID != m.RoomID) {
		c.log.Debug().Str("conn_id", connID).Str("room_id", roomID).Msg("edit dropped")
		return nil, nil
	}

	ctx, cancel := c.storeContext(ctx)
	defer cancel()

	release, err := c.locks.acquire(ctx, m.RoomID)
	if err != nil {
		err = fmt.Errorf("%w: acquire room: %w", ErrStoreUnavailable, err)
		c.log.Error().Err(err).Str("conn_id", connID).Str("room_id", m.RoomID).Msg("edit abandoned")
		return nil, err
	}
	defer release()

	if current, ok := c.members.Lookup(connID); !ok || current != m {
		return nil, nil
	}

	room, err := c.load(ctx, m.RoomID)
	if err != nil {
		c.log.Error().Err(err).Str("conn_id", connID).Str("room_id", m.RoomID).Msg("edit abandoned")
		return nil, err
	}

	out := decideEdit(room, connID, text)
	if err := c.save(ctx, out.Room); err != nil {
		c.log.Error().Err(err).Str("conn_id", connID).Str("room_id", m.RoomID).Msg("edit abandoned")
		return nil, err
	}

	c.deliver(out)
	c.metrics.Edit()
	if out.Matched {
		c.metrics.SolutionMatched()
		c.log.Info().Str("conn_id", connID).Str("room_id", m.RoomID).Msg("solution matched")
	}
	return out, nil
}

// OverwriteCode replaces the buffer without a sending connection, e.g. from
// the HTTP API. Every room member receives the new text.
func (c *Coordinator) OverwriteCode(ctx context.Context, roomID, text string) (*store.Room, error) {
	ctx, cancel := c.storeContext(ctx)
	defer cancel()

	release, err := c.locks.acquire(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire room: %w", ErrStoreUnavailable, err)
	}
	defer release()

	room, err := c.load(ctx, roomID)
	if err != nil {
		return nil, err
	}

	out := decideEdit(room, "", text)
	out.Deliveries = out.Deliveries[:1]
	if err := c.save(ctx, out.Room); err != nil {
		return nil, err
	}

	c.deliver(out)
	return out.Room, nil
}

func decideJoin(room *store.Room, client *Client, role Role) (*Outcome, error) {
	if role == RoleMentor && room.MentorPresent {
		return nil, ErrMentorSlotTaken
	}

	next := *room
	if role == RoleMentor {
		next.MentorPresent = true
	} else {
		next.StudentCount++
	}

	return &Outcome{
		Room: &next,
		Role: role,
		Deliveries: []Delivery{
			{Target: TargetClient, Client: client, Event: roomJoined(&next, role)},
			{Target: TargetRoom, RoomID: next.ID, Event: membershipChanged(&next)},
			{Target: TargetLobby, Event: summaryChanged(&next)},
		},
	}, nil
}

func decideLeave(room *store.Room, role Role) *Outcome {
	next := *room
	deliveries := make([]Delivery, 0, 3)

	if role == RoleMentor {
		next.MentorPresent = false
		deliveries = append(deliveries, Delivery{Target: TargetRoom, RoomID: next.ID, Event: mentorLeft(next.ID)})
	} else {
		next.StudentCount = max(0, next.StudentCount-1)
	}

	deliveries = append(deliveries,
		Delivery{Target: TargetRoom, RoomID: next.ID, Event: membershipChanged(&next)},
		Delivery{Target: TargetLobby, Event: summaryChanged(&next)},
	)
	return &Outcome{Room: &next, Role: role, Deliveries: deliveries}
}

func decideEdit(room *store.Room, sender, text string) *Outcome {
	next := *room
	next.CurrentCode = text

	out := &Outcome{
		Room: &next,
		Role: RoleStudent,
		Deliveries: []Delivery{
			{Target: TargetRoomExcept, RoomID: next.ID, Except: sender, Event: codeUpdate(next.ID, text)},
		},
	}
	if Matches(text, next.Solution) {
		out.Matched = true
		out.Deliveries = append(out.Deliveries, Delivery{Target: TargetRoom, RoomID: next.ID, Event: solutionMatched(next.ID)})
	}
	return out
}

func (c *Coordinator) deliver(out *Outcome) {
	for _, d := range out.Deliveries {
		switch d.Target {
		case TargetRoom:
			c.hub.ToRoom(d.RoomID, d.Event)
		case TargetRoomExcept:
			c.hub.ToRoomExcept(d.RoomID, d.Except, d.Event)
		case TargetLobby:
			c.hub.ToLobby(d.Event)
		case TargetClient:
			c.hub.ToClient(d.Client, d.Event)
		}
	}
}

// storeContext detaches from the caller's cancellation so a connection that
// drops mid-operation still completes its mutation, bounded by the timeout.
func (c *Coordinator) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
}

func (c *Coordinator) load(ctx context.Context, roomID string) (*store.Room, error) {
	room, err := c.store.Load(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
		}
		return nil, fmt.Errorf("%w: load room: %w", ErrStoreUnavailable, err)
	}
	return room, nil
}

func (c *Coordinator) save(ctx context.Context, room *store.Room) error {
	if err := c.store.Save(ctx, room); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrRoomNotFound, room.ID)
		}
		return fmt.Errorf("%w: save room: %w", ErrStoreUnavailable, err)
	}
	return nil
}

func joinResult(err error) string {
	switch {
	case errors.Is(err, ErrMentorSlotTaken):
		return "mentor_slot_taken"
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrAlreadyJoined):
		return "already_joined"
	case errors.Is(err, ErrMalformedEvent):
		return "malformed"
	default:
		return "store_unavailable"
	}
}
