package core

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/mentorpad-server/internal/metrics"
	"github.com/vovakirdan/mentorpad-server/internal/store"
)

// Sweeper resets rooms once their last occupant is gone.
type Sweeper struct {
	store   store.RoomStore
	hub     Broadcaster
	log     *zerolog.Logger
	metrics *metrics.Metrics
}

// NewSweeper creates a sweeper. It must only be invoked after a leave.
func NewSweeper(st store.RoomStore, hub Broadcaster, logger *zerolog.Logger, m *metrics.Metrics) *Sweeper {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Sweeper{store: st, hub: hub, log: logger, metrics: m}
}

// MaybeReset reverts an unoccupied room to its initial code and announces the
// reset to the lobby. room is updated in place when a reset happens.
func (s *Sweeper) MaybeReset(ctx context.Context, room *store.Room) (bool, error) {
	if room.StudentCount != 0 || room.MentorPresent {
		return false, nil
	}

	reset, err := s.store.Reset(ctx, room.ID)
	if err != nil {
		return false, fmt.Errorf("%w: reset room: %w", ErrStoreUnavailable, err)
	}
	*room = *reset

	s.hub.ToLobby(summaryChanged(room))
	s.metrics.RoomReset()
	s.log.Info().Str("room_id", room.ID).Msg("room reset")
	return true, nil
}
