package relay

import (
	"errors"

	"github.com/BioHazard786/Warpcall/internal/protocol"
)

// Request errors. They are reported to the requesting connection only.
var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomFull        = errors.New("room is full")
	ErrNotInRoom       = errors.New("not in room")
	ErrNoPeer          = errors.New("no other peer in room")
	ErrUnsupportedKind = errors.New("unsupported message type")
	ErrBadRequest      = errors.New("malformed message")
	ErrRateLimited     = errors.New("too many messages")
)

// ErrorCode maps a request error to its wire code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return protocol.CodeRoomNotFound
	case errors.Is(err, ErrRoomFull):
		return protocol.CodeRoomFull
	case errors.Is(err, ErrNotInRoom):
		return protocol.CodeNotInRoom
	case errors.Is(err, ErrNoPeer):
		return protocol.CodeNoPeer
	case errors.Is(err, ErrUnsupportedKind):
		return protocol.CodeUnsupportedKind
	case errors.Is(err, ErrRateLimited):
		return protocol.CodeRateLimited
	default:
		return protocol.CodeBadRequest
	}
}

// errorMessage builds the wire error for err.
func errorMessage(err error) *protocol.Message {
	return protocol.NewError(ErrorCode(err), err.Error())
}
