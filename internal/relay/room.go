package relay

// RoomID identifies a room. It is opaque to clients.
type RoomID string

// ConnID identifies one relay connection.
type ConnID string

// RoomCapacity is the number of participants a room holds.
const RoomCapacity = 2

// Room is a call between at most two connections. Participants[0] is the
// connection that created the room, or the one left behind when the creator
// leaves.
type Room struct {
	ID           RoomID
	Participants []ConnID
}

func (r *Room) has(conn ConnID) bool {
	for _, p := range r.Participants {
		if p == conn {
			return true
		}
	}
	return false
}

func (r *Room) remove(conn ConnID) {
	for i, p := range r.Participants {
		if p == conn {
			r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)
			return
		}
	}
}

// peerOf returns the other participant, if any.
func (r *Room) peerOf(conn ConnID) (ConnID, bool) {
	for _, p := range r.Participants {
		if p != conn {
			return p, true
		}
	}
	return "", false
}

func (r *Room) clone() Room {
	return Room{ID: r.ID, Participants: append([]ConnID(nil), r.Participants...)}
}
