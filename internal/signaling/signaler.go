package signaling

import (
	"github.com/pion/webrtc/v4"

	"github.com/BioHazard786/Warpcall/internal/protocol"
)

// RoomSignaler sends negotiation messages to the other member of a room.
type RoomSignaler struct {
	client *Client
	room   string
}

func NewRoomSignaler(client *Client, room string) *RoomSignaler {
	return &RoomSignaler{client: client, room: room}
}

func (s *RoomSignaler) SendOffer(desc webrtc.SessionDescription) error {
	return s.send(protocol.TypeOffer, desc)
}

func (s *RoomSignaler) SendAnswer(desc webrtc.SessionDescription) error {
	return s.send(protocol.TypeAnswer, desc)
}

func (s *RoomSignaler) SendCandidate(c webrtc.ICECandidateInit) error {
	return s.send(protocol.TypeCandidate, c)
}

func (s *RoomSignaler) send(kind string, payload any) error {
	msg, err := protocol.NewMessage(kind, payload)
	if err != nil {
		return err
	}
	msg.RoomID = s.room
	return s.client.SendMessage(msg)
}
