package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"go.viam.com/test"

	"github.com/BioHazard786/Warpcall/internal/protocol"
)

type delivered struct {
	to  ConnID
	msg *protocol.Message
}

type recorder struct {
	mu  sync.Mutex
	out []delivered
}

func (r *recorder) Notify(to ConnID, msg *protocol.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, delivered{to, msg})
}

func (r *recorder) take() []delivered {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.out
	r.out = nil
	return out
}

func sequentialIDs(ids ...RoomID) IDGenerator {
	i := 0
	return func() RoomID {
		id := ids[i%len(ids)]
		i++
		return id
	}
}

// checkRooms asserts every room holds one or two participants and the
// membership index agrees with the rooms.
func checkRooms(t *testing.T, r *Registry) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := 0
	for id, room := range r.rooms {
		test.That(t, len(room.Participants), test.ShouldBeGreaterThan, 0)
		test.That(t, len(room.Participants), test.ShouldBeLessThanOrEqualTo, RoomCapacity)
		for _, p := range room.Participants {
			test.That(t, r.members[p], test.ShouldEqual, id)
			seen++
		}
	}
	test.That(t, len(r.members), test.ShouldEqual, seen)
}

func TestCreateJoinAndThirdJoin(t *testing.T) {
	rec := &recorder{}
	r := NewRegistry(rec, WithIDGenerator(sequentialIDs("room-1")))

	id := r.CreateRoom("a")
	test.That(t, id, test.ShouldEqual, RoomID("room-1"))
	test.That(t, rec.take(), test.ShouldBeEmpty)

	test.That(t, r.JoinRoom(id, "b"), test.ShouldBeNil)
	events := rec.take()
	test.That(t, events, test.ShouldHaveLength, 1)
	test.That(t, events[0].to, test.ShouldEqual, ConnID("a"))
	test.That(t, events[0].msg.Type, test.ShouldEqual, protocol.TypePeerJoined)
	test.That(t, events[0].msg.From, test.ShouldEqual, "b")
	test.That(t, events[0].msg.RoomID, test.ShouldEqual, "room-1")

	err := r.JoinRoom(id, "c")
	test.That(t, errors.Is(err, ErrRoomFull), test.ShouldBeTrue)
	test.That(t, rec.take(), test.ShouldBeEmpty)

	room, ok := r.Room(id)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, room.Participants, test.ShouldResemble, []ConnID{"a", "b"})
	_, inRoom := r.RoomOf("c")
	test.That(t, inRoom, test.ShouldBeFalse)
	checkRooms(t, r)
}

func TestJoinUnknownRoom(t *testing.T) {
	rec := &recorder{}
	r := NewRegistry(rec)

	err := r.JoinRoom("nope", "a")
	test.That(t, errors.Is(err, ErrRoomNotFound), test.ShouldBeTrue)
	test.That(t, ErrorCode(err), test.ShouldEqual, protocol.CodeRoomNotFound)
	test.That(t, r.Len(), test.ShouldEqual, 0)
}

func TestRejoinSameRoomIsNoop(t *testing.T) {
	rec := &recorder{}
	r := NewRegistry(rec)

	id := r.CreateRoom("a")
	test.That(t, r.JoinRoom(id, "a"), test.ShouldBeNil)
	test.That(t, rec.take(), test.ShouldBeEmpty)

	room, _ := r.Room(id)
	test.That(t, room.Participants, test.ShouldResemble, []ConnID{"a"})
}

func TestCreateRoomLeavesPreviousRoom(t *testing.T) {
	rec := &recorder{}
	r := NewRegistry(rec, WithIDGenerator(sequentialIDs("one", "two")))

	first := r.CreateRoom("a")
	test.That(t, r.JoinRoom(first, "b"), test.ShouldBeNil)
	rec.take()

	second := r.CreateRoom("b")
	test.That(t, second, test.ShouldEqual, RoomID("two"))

	events := rec.take()
	test.That(t, events, test.ShouldHaveLength, 1)
	test.That(t, events[0].to, test.ShouldEqual, ConnID("a"))
	test.That(t, events[0].msg.Type, test.ShouldEqual, protocol.TypePeerLeft)

	id, _ := r.RoomOf("b")
	test.That(t, id, test.ShouldEqual, second)
	test.That(t, r.Len(), test.ShouldEqual, 2)
	checkRooms(t, r)
}

func TestCreateRoomRetriesOnCollision(t *testing.T) {
	r := NewRegistry(&recorder{}, WithIDGenerator(sequentialIDs("dup", "dup", "fresh")))

	test.That(t, r.CreateRoom("a"), test.ShouldEqual, RoomID("dup"))
	test.That(t, r.CreateRoom("b"), test.ShouldEqual, RoomID("fresh"))
	checkRooms(t, r)
}

func TestRelay(t *testing.T) {
	rec := &recorder{}
	r := NewRegistry(rec)
	id := r.CreateRoom("a")
	payload := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)

	err := r.Relay(protocol.TypeOffer, id, payload, "a")
	test.That(t, errors.Is(err, ErrNoPeer), test.ShouldBeTrue)

	test.That(t, r.JoinRoom(id, "b"), test.ShouldBeNil)
	rec.take()

	test.That(t, r.Relay(protocol.TypeOffer, id, payload, "a"), test.ShouldBeNil)
	events := rec.take()
	test.That(t, events, test.ShouldHaveLength, 1)
	test.That(t, events[0].to, test.ShouldEqual, ConnID("b"))
	test.That(t, events[0].msg.Type, test.ShouldEqual, protocol.TypeOffer)
	test.That(t, events[0].msg.From, test.ShouldEqual, "a")
	test.That(t, string(events[0].msg.Payload), test.ShouldEqual, string(payload))

	err = r.Relay(protocol.TypeCreateRoom, id, nil, "a")
	test.That(t, errors.Is(err, ErrUnsupportedKind), test.ShouldBeTrue)

	err = r.Relay(protocol.TypeCandidate, id, payload, "stranger")
	test.That(t, errors.Is(err, ErrNotInRoom), test.ShouldBeTrue)

	err = r.Relay(protocol.TypeCandidate, "missing", payload, "a")
	test.That(t, errors.Is(err, ErrNotInRoom), test.ShouldBeTrue)
	test.That(t, rec.take(), test.ShouldBeEmpty)
}

func TestLeave(t *testing.T) {
	rec := &recorder{}
	r := NewRegistry(rec)

	t.Run("unknown connection is a no-op", func(t *testing.T) {
		r.Leave("ghost")
		r.Leave("ghost")
		test.That(t, rec.take(), test.ShouldBeEmpty)
	})

	t.Run("remaining participant is told", func(t *testing.T) {
		id := r.CreateRoom("a")
		test.That(t, r.JoinRoom(id, "b"), test.ShouldBeNil)
		rec.take()

		r.Leave("a")
		events := rec.take()
		test.That(t, events, test.ShouldHaveLength, 1)
		test.That(t, events[0].to, test.ShouldEqual, ConnID("b"))
		test.That(t, events[0].msg.Type, test.ShouldEqual, protocol.TypePeerLeft)
		test.That(t, events[0].msg.From, test.ShouldEqual, "a")

		room, ok := r.Room(id)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, room.Participants, test.ShouldResemble, []ConnID{"b"})

		r.Leave("a")
		test.That(t, rec.take(), test.ShouldBeEmpty)

		r.Leave("b")
		test.That(t, rec.take(), test.ShouldBeEmpty)
		_, ok = r.Room(id)
		test.That(t, ok, test.ShouldBeFalse)
		test.That(t, r.Len(), test.ShouldEqual, 0)
	})
}

func TestRoomReturnsCopy(t *testing.T) {
	r := NewRegistry(&recorder{})
	id := r.CreateRoom("a")

	room, _ := r.Room(id)
	room.Participants[0] = "mallory"

	again, _ := r.Room(id)
	test.That(t, again.Participants, test.ShouldResemble, []ConnID{"a"})
}

func TestRacingJoinsAdmitOne(t *testing.T) {
	for round := 0; round < 20; round++ {
		r := NewRegistry(&recorder{})
		id := r.CreateRoom("host")

		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			joined int
			full   int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := r.JoinRoom(id, ConnID(fmt.Sprintf("guest-%d", i)))
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					joined++
				} else if errors.Is(err, ErrRoomFull) {
					full++
				}
			}(i)
		}
		wg.Wait()

		test.That(t, joined, test.ShouldEqual, 1)
		test.That(t, full, test.ShouldEqual, 7)
		checkRooms(t, r)
	}
}

func TestWordsIDs(t *testing.T) {
	gen := Words()
	for i := 0; i < 50; i++ {
		parts := strings.Split(string(gen()), "-")
		test.That(t, parts, test.ShouldHaveLength, 4)
		for _, p := range parts {
			test.That(t, p, test.ShouldNotBeEmpty)
		}
	}
}
