package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/mentorpad-server/internal/core"
	"github.com/vovakirdan/mentorpad-server/internal/store"
)

// RoomHandlers provides HTTP handlers for the code block endpoints.
type RoomHandlers struct {
	store store.RoomStore
	coord *core.Coordinator
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(st store.RoomStore, coord *core.Coordinator, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		store: st,
		coord: coord,
		log:   logger,
	}
}

// SummaryResponse represents a room in the list endpoint.
type SummaryResponse struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	StudentCount  int    `json:"studentCount"`
	MentorPresent bool   `json:"mentorPresent"`
}

// RoomResponse represents a full room in API responses.
type RoomResponse struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	InitialCode   string `json:"initialCode"`
	Solution      string `json:"solution"`
	CurrentCode   string `json:"currentCode"`
	StudentCount  int    `json:"studentCount"`
	MentorPresent bool   `json:"mentorPresent"`
	LastActive    string `json:"lastActive"`
}

// UpdateCodeRequest represents the update code request body.
type UpdateCodeRequest struct {
	CurrentCode *string `json:"currentCode" binding:"required"`
}

// ListRooms returns every room summary.
// GET /api/codeblocks
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	summaries, err := h.store.ListSummaries(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := make([]SummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		resp = append(resp, SummaryResponse{
			ID:            s.ID,
			Title:         s.Title,
			StudentCount:  s.StudentCount,
			MentorPresent: s.MentorPresent,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// GetRoom returns one room with its buffer.
// GET /api/codeblocks/:id
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	id := c.Param("id")

	room, err := h.store.Load(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		h.log.Error().Err(err).Str("room_id", id).Msg("failed to load room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, roomToResponse(room))
}

// UpdateCode overwrites the shared buffer and broadcasts it to the room.
// PUT /api/codeblocks/:id
func (h *RoomHandlers) UpdateCode(c *gin.Context) {
	id := c.Param("id")

	var req UpdateCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid update code request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	room, err := h.coord.OverwriteCode(c.Request.Context(), id, *req.CurrentCode)
	if err != nil {
		if errors.Is(err, core.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		h.log.Error().Err(err).Str("room_id", id).Msg("failed to update code")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "store unavailable"})
		return
	}

	c.JSON(http.StatusOK, roomToResponse(room))
}

func roomToResponse(room *store.Room) RoomResponse {
	return RoomResponse{
		ID:            room.ID,
		Title:         room.Title,
		InitialCode:   room.InitialCode,
		Solution:      room.Solution,
		CurrentCode:   room.CurrentCode,
		StudentCount:  room.StudentCount,
		MentorPresent: room.MentorPresent,
		LastActive:    room.LastActive.UTC().Format(time.RFC3339),
	}
}
