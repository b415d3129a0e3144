package http

import (
	"encoding/json"
	"fmt"

	"github.com/vovakirdan/mentorpad-server/internal/core"
	"github.com/vovakirdan/mentorpad-server/internal/proto"
	"github.com/vovakirdan/mentorpad-server/internal/store"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, error) {
	switch inbound.Type {
	case proto.InboundTypeJoinLobby:
		return &core.Command{Kind: core.CommandJoinLobby}, nil
	case proto.InboundTypeJoinRoom:
		var join proto.JoinRoomData
		if err := decodeData(inbound.Data, &join); err != nil {
			return nil, err
		}
		if join.RoomID == "" {
			return nil, fmt.Errorf("%w: roomId is required", core.ErrMalformedEvent)
		}
		return &core.Command{
			Kind:        core.CommandJoinRoom,
			Room:        join.RoomID,
			WantsMentor: join.WantsMentor,
		}, nil
	case proto.InboundTypeLeaveRoom:
		return &core.Command{Kind: core.CommandLeaveRoom}, nil
	case proto.InboundTypeCodeChange:
		var change proto.CodeChangeData
		if err := decodeData(inbound.Data, &change); err != nil {
			return nil, err
		}
		if change.RoomID == "" {
			return nil, fmt.Errorf("%w: roomId is required", core.ErrMalformedEvent)
		}
		return &core.Command{
			Kind: core.CommandCodeChange,
			Room: change.RoomID,
			Text: change.Text,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", core.ErrMalformedEvent, inbound.Type)
	}
}

func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing data", core.ErrMalformedEvent)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %w", core.ErrMalformedEvent, err)
	}
	return nil
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventMembershipChanged:
		return eventOutbound(proto.EventMembershipChanged, proto.MembershipChanged{
			RoomID:        event.Room,
			StudentCount:  event.StudentCount,
			MentorPresent: event.MentorPresent,
		})
	case core.EventSummaryChanged:
		return eventOutbound(proto.EventSummaryChanged, proto.Summary{
			RoomID:        event.Room,
			Title:         event.Title,
			StudentCount:  event.StudentCount,
			MentorPresent: event.MentorPresent,
		})
	case core.EventCodeUpdate:
		return eventOutbound(proto.EventCodeUpdate, proto.CodeUpdate{RoomID: event.Room, Text: event.Text})
	case core.EventSolutionMatched:
		return eventOutbound(proto.EventSolutionMatched, proto.RoomRef{RoomID: event.Room})
	case core.EventMentorLeft:
		return eventOutbound(proto.EventMentorLeft, proto.RoomRef{RoomID: event.Room})
	case core.EventRoomJoined:
		return eventOutbound(proto.EventRoomJoined, proto.RoomJoined{
			RoomID:        event.Room,
			Title:         event.Title,
			Role:          string(event.Role),
			CurrentCode:   event.Text,
			StudentCount:  event.StudentCount,
			MentorPresent: event.MentorPresent,
		})
	case core.EventLobbySnapshot:
		return eventOutbound(proto.EventLobbySnapshot, proto.LobbySnapshot{Rooms: summariesToProto(event.Summaries)})
	case core.EventJoinError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Event: proto.EventJoinError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Event: proto.EventJoinError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func eventOutbound(name string, data any) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeEvent, Event: name, Data: data}
}

func summariesToProto(in []store.Summary) []proto.Summary {
	out := make([]proto.Summary, 0, len(in))
	for _, s := range in {
		out = append(out, proto.Summary{
			RoomID:        s.ID,
			Title:         s.Title,
			StudentCount:  s.StudentCount,
			MentorPresent: s.MentorPresent,
		})
	}
	return out
}
