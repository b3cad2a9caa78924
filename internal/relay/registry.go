package relay

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/BioHazard786/Warpcall/internal/metrics"
	"github.com/BioHazard786/Warpcall/internal/protocol"
)

// Notifier delivers relay events to connections.
type Notifier interface {
	Notify(to ConnID, msg *protocol.Message)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(to ConnID, msg *protocol.Message)

func (f NotifierFunc) Notify(to ConnID, msg *protocol.Message) { f(to, msg) }

// Registry owns every room and the connection to room index.
//
// All mutations run under one lock. Events produced by a mutation are
// delivered through the Notifier after the lock is released.
type Registry struct {
	mu      sync.Mutex
	rooms   map[RoomID]*Room
	members map[ConnID]RoomID

	notifier Notifier
	newID    IDGenerator
	metrics  *metrics.Relay
	logger   *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithIDGenerator replaces the default UUID room identifiers.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Registry) { r.newID = g }
}

// WithMetrics records room counts and events.
func WithMetrics(m *metrics.Relay) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty registry delivering events to n.
func NewRegistry(n Notifier, opts ...Option) *Registry {
	r := &Registry{
		rooms:    make(map[RoomID]*Room),
		members:  make(map[ConnID]RoomID),
		notifier: n,
		newID:    UUIDs(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type event struct {
	to  ConnID
	msg *protocol.Message
}

// CreateRoom opens a room with conn as its only participant. A connection
// already in a room leaves it first.
func (r *Registry) CreateRoom(conn ConnID) RoomID {
	r.mu.Lock()
	events := r.leaveLocked(conn)

	id := r.newID()
	for {
		if _, taken := r.rooms[id]; !taken {
			break
		}
		id = r.newID()
	}

	r.rooms[id] = &Room{ID: id, Participants: []ConnID{conn}}
	r.members[conn] = id
	r.metrics.SetRooms(len(r.rooms))
	r.mu.Unlock()

	r.logger.Info("Room created", "room", id, "conn", conn)
	r.deliver(events)
	return id
}

// JoinRoom adds conn to room id and tells the other participant.
//
// Joining the room conn is already in succeeds without effect. A full room is
// left untouched.
func (r *Registry) JoinRoom(id RoomID, conn ConnID) error {
	r.mu.Lock()
	room, ok := r.rooms[id]
	if !ok {
		r.mu.Unlock()
		return ErrRoomNotFound
	}
	if room.has(conn) {
		r.mu.Unlock()
		return nil
	}
	if len(room.Participants) >= RoomCapacity {
		r.mu.Unlock()
		return ErrRoomFull
	}

	events := r.leaveLocked(conn)
	room.Participants = append(room.Participants, conn)
	r.members[conn] = id

	for _, p := range room.Participants {
		if p == conn {
			continue
		}
		events = append(events, event{to: p, msg: &protocol.Message{
			Type:   protocol.TypePeerJoined,
			RoomID: string(id),
			From:   string(conn),
		}})
	}
	r.mu.Unlock()

	r.logger.Info("Client joined room", "room", id, "conn", conn)
	r.deliver(events)
	return nil
}

// Relay forwards a negotiation payload from sender to the other participant
// of room. The payload is not inspected.
func (r *Registry) Relay(kind string, room RoomID, payload json.RawMessage, sender ConnID) error {
	if !protocol.IsNegotiation(kind) {
		return ErrUnsupportedKind
	}

	r.mu.Lock()
	rm, ok := r.rooms[room]
	if !ok || !rm.has(sender) {
		r.mu.Unlock()
		return ErrNotInRoom
	}
	target, ok := rm.peerOf(sender)
	r.mu.Unlock()
	if !ok {
		return ErrNoPeer
	}

	r.metrics.Relayed(kind)
	r.logger.Debug("Relaying signal", "kind", kind, "room", room, "from", sender, "to", target)
	r.notifier.Notify(target, &protocol.Message{
		Type:    kind,
		Payload: payload,
		RoomID:  string(room),
		From:    string(sender),
	})
	return nil
}

// Leave removes conn from its room. An emptied room is deleted, otherwise the
// remaining participant receives peer-left. Unknown connections are ignored.
func (r *Registry) Leave(conn ConnID) {
	r.mu.Lock()
	events := r.leaveLocked(conn)
	r.mu.Unlock()

	r.deliver(events)
}

func (r *Registry) leaveLocked(conn ConnID) []event {
	id, ok := r.members[conn]
	if !ok {
		return nil
	}
	delete(r.members, conn)

	room := r.rooms[id]
	room.remove(conn)
	if len(room.Participants) == 0 {
		delete(r.rooms, id)
		r.metrics.SetRooms(len(r.rooms))
		r.logger.Info("Room deleted", "room", id)
		return nil
	}

	r.logger.Info("Peer left room", "room", id, "conn", conn)
	events := make([]event, 0, len(room.Participants))
	for _, p := range room.Participants {
		events = append(events, event{to: p, msg: &protocol.Message{
			Type:   protocol.TypePeerLeft,
			RoomID: string(id),
			From:   string(conn),
		}})
	}
	return events
}

func (r *Registry) deliver(events []event) {
	for _, e := range events {
		r.metrics.Event(e.msg.Type)
		r.notifier.Notify(e.to, e.msg)
	}
}

// Room returns a copy of room id.
func (r *Registry) Room(id RoomID) (Room, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[id]
	if !ok {
		return Room{}, false
	}
	return room.clone(), true
}

// RoomOf returns the room conn is in.
func (r *Registry) RoomOf(conn ConnID) (RoomID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.members[conn]
	return id, ok
}

// Len returns the number of open rooms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.rooms)
}
