package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/Warpcall/internal/protocol"
)

// Relay errors a join can fail with.
var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")

	// ErrDisconnected is returned by requests when the relay connection ends.
	ErrDisconnected = errors.New("disconnected from relay")
)

// RelayError is an error message sent by the relay.
type RelayError struct {
	Code    string
	Message string
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("relay: %s (%s)", e.Message, e.Code)
}

// Is matches the sentinel for the error code.
func (e *RelayError) Is(target error) bool {
	switch target {
	case ErrRoomNotFound:
		return e.Code == protocol.CodeRoomNotFound
	case ErrRoomFull:
		return e.Code == protocol.CodeRoomFull
	}
	return false
}

// Handler routes incoming signaling messages to typed channels.
type Handler struct {
	client *Client
	logger *slog.Logger

	Hello       chan string
	RoomCreated chan string
	RoomJoined  chan string
	// PeerJoined and PeerLeft carry the peer's connection identifier.
	PeerJoined chan string
	PeerLeft   chan string
	Offer      chan webrtc.SessionDescription
	Answer     chan webrtc.SessionDescription
	Candidate  chan webrtc.ICECandidateInit
	Error      chan *RelayError

	done chan struct{}
}

// NewHandler creates a new message handler.
func NewHandler(client *Client, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		client:      client,
		logger:      logger,
		Hello:       make(chan string, 1),
		RoomCreated: make(chan string, 1),
		RoomJoined:  make(chan string, 1),
		PeerJoined:  make(chan string, 4),
		PeerLeft:    make(chan string, 4),
		Offer:       make(chan webrtc.SessionDescription, 4),
		Answer:      make(chan webrtc.SessionDescription, 4),
		Candidate:   make(chan webrtc.ICECandidateInit, 64),
		Error:       make(chan *RelayError, 4),
		done:        make(chan struct{}),
	}
}

// Start routes messages until the connection ends. It blocks.
func (h *Handler) Start() {
	defer close(h.done)

	for msg := range h.client.Incoming() {
		switch msg.Type {
		case protocol.TypeHello:
			var hello protocol.HelloPayload
			if err := msg.DecodePayload(&hello); err != nil {
				h.logger.Warn("Bad hello payload", "err", err)
				continue
			}
			h.Hello <- hello.ConnID

		case protocol.TypeRoomCreated:
			h.RoomCreated <- msg.RoomID

		case protocol.TypeRoomJoined:
			h.RoomJoined <- msg.RoomID

		case protocol.TypePeerJoined:
			h.PeerJoined <- msg.From

		case protocol.TypePeerLeft:
			h.PeerLeft <- msg.From

		case protocol.TypeOffer, protocol.TypeAnswer:
			var desc webrtc.SessionDescription
			if err := msg.DecodePayload(&desc); err != nil {
				h.logger.Warn("Bad session description", "type", msg.Type, "err", err)
				continue
			}
			if msg.Type == protocol.TypeOffer {
				h.Offer <- desc
			} else {
				h.Answer <- desc
			}

		case protocol.TypeCandidate:
			var c webrtc.ICECandidateInit
			if err := msg.DecodePayload(&c); err != nil {
				h.logger.Warn("Bad ICE candidate", "err", err)
				continue
			}
			h.Candidate <- c

		case protocol.TypeError:
			var e protocol.ErrorPayload
			if err := msg.DecodePayload(&e); err != nil {
				e = protocol.ErrorPayload{Error: "Unknown error from server", Code: protocol.CodeBadRequest}
			}
			h.Error <- &RelayError{Code: e.Code, Message: e.Error}

		default:
			h.logger.Debug("Ignoring message", "type", msg.Type)
		}
	}
}

// Done is closed when Start returns.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

// CreateRoom asks the relay for a new room and waits for its identifier.
func (h *Handler) CreateRoom(ctx context.Context) (string, error) {
	if err := h.client.SendMessage(&protocol.Message{Type: protocol.TypeCreateRoom}); err != nil {
		return "", err
	}

	select {
	case id := <-h.RoomCreated:
		return id, nil
	case err := <-h.Error:
		return "", err
	case <-h.done:
		return "", ErrDisconnected
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// JoinRoom joins room id. It fails with an error matching ErrRoomNotFound or
// ErrRoomFull when the relay refuses.
func (h *Handler) JoinRoom(ctx context.Context, id string) error {
	if err := h.client.SendMessage(&protocol.Message{Type: protocol.TypeJoinRoom, RoomID: id}); err != nil {
		return err
	}

	select {
	case <-h.RoomJoined:
		return nil
	case err := <-h.Error:
		return err
	case <-h.done:
		return ErrDisconnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LeaveRoom tells the relay we left room id. The relay does not acknowledge it.
func (h *Handler) LeaveRoom(id string) error {
	return h.client.SendMessage(&protocol.Message{Type: protocol.TypeLeaveRoom, RoomID: id})
}
