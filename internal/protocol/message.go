package protocol

import (
	"encoding/json"
	"fmt"
)

// Message defines the structure for all C2S (client to server) and S2C
// (server to client) websocket messages.
//
// Payload is always JSON, whatever codec frames the envelope. The relay never
// looks inside it.
type Message struct {
	Type    string          `json:"type" msgpack:"type"`
	Payload json.RawMessage `json:"payload,omitempty" msgpack:"payload,omitempty"`
	RoomID  string          `json:"room_id,omitempty" msgpack:"room_id,omitempty"`

	// From is the connection identifier of the sender, set by the relay on
	// forwarded negotiation messages.
	From string `json:"from,omitempty" msgpack:"from,omitempty"`
}

// Message type constants.
const (
	TypeCreateRoom = "create-room"
	TypeJoinRoom   = "join-room"
	TypeLeaveRoom  = "leave-room"

	TypeOffer     = "offer"
	TypeAnswer    = "answer"
	TypeCandidate = "candidate"

	TypeHello       = "hello"
	TypeRoomCreated = "room-created"
	TypeRoomJoined  = "room-joined"
	TypePeerJoined  = "peer-joined"
	TypePeerLeft    = "peer-left"
	TypeError       = "error"
)

// Error codes carried in ErrorPayload.Code.
const (
	CodeRoomNotFound    = "room_not_found"
	CodeRoomFull        = "room_full"
	CodeNotInRoom       = "not_in_room"
	CodeNoPeer          = "no_peer"
	CodeUnsupportedKind = "unsupported_kind"
	CodeBadRequest      = "bad_request"
	CodeRateLimited     = "rate_limited"
)

// IsNegotiation reports whether kind is one of the opaque negotiation kinds
// the relay forwards between room members.
func IsNegotiation(kind string) bool {
	switch kind {
	case TypeOffer, TypeAnswer, TypeCandidate:
		return true
	}
	return false
}

// HelloPayload tells a freshly connected client its connection identifier.
type HelloPayload struct {
	ConnID string `json:"conn_id"`
}

// ErrorPayload represents error messages from the relay.
type ErrorPayload struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// NewMessage creates a new Message with the given type and a JSON encoded payload.
// A nil payload produces a message without one.
func NewMessage(t string, payload any) (*Message, error) {
	msg := &Message{Type: t}
	if payload == nil {
		return msg, nil
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", t, err)
	}
	msg.Payload = b
	return msg, nil
}

// NewError builds an error message for the given code.
func NewError(code, text string) *Message {
	b, _ := json.Marshal(ErrorPayload{Error: text, Code: code})
	return &Message{Type: TypeError, Payload: b}
}

// DecodePayload decodes the message payload into the provided struct.
func (m *Message) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s message has no payload", m.Type)
	}
	return json.Unmarshal(m.Payload, v)
}
