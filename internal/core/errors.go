package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeRoomNotFound     = "room_not_found"
	ErrCodeMentorSlotTaken  = "mentor_slot_taken"
	ErrCodeAlreadyJoined    = "already_joined"
	ErrCodeStoreUnavailable = "store_unavailable"
	ErrCodeBadRequest       = "bad_request"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrMentorSlotTaken  = errors.New("mentor already present")
	ErrAlreadyJoined    = errors.New("already joined a room")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrMalformedEvent   = errors.New("malformed event")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// ToCoreError maps a domain error onto its wire representation.
func ToCoreError(err error) *CoreError {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return coreError(ErrCodeRoomNotFound, "Room not found")
	case errors.Is(err, ErrMentorSlotTaken):
		return coreError(ErrCodeMentorSlotTaken, "Mentor already present")
	case errors.Is(err, ErrAlreadyJoined):
		return coreError(ErrCodeAlreadyJoined, "Already joined a room")
	case errors.Is(err, ErrMalformedEvent):
		return coreError(ErrCodeBadRequest, "Malformed event")
	default:
		return coreError(ErrCodeStoreUnavailable, "Failed to join room")
	}
}
